// qfilter: quality filtering of demultiplexed sequencing reads.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/qfilter/blob/master/LICENSE.txt>.

package fastq

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const records = "@r1 first\nACGT\n+\nII#!\n" +
	"@r2\nNNAC\n+\n~~~~\n"

func TestReader(t *testing.T) {
	r, err := NewReader(strings.NewReader(records), SangerOffset)
	require.NoError(t, err)

	read, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "r1 first", read.ID)
	assert.Equal(t, "ACGT", string(read.Seq))
	assert.Equal(t, []byte{40, 40, 2, 0}, read.Qual)

	read, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "r2", read.ID)
	assert.Equal(t, "NNAC", string(read.Seq))
	assert.Equal(t, []byte{93, 93, 93, 93}, read.Qual)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, r.Records())
	assert.NoError(t, r.Err())
}

func TestReaderKeepsReads(t *testing.T) {
	r, err := NewReader(strings.NewReader(records), SangerOffset)
	require.NoError(t, err)
	first, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(first.Seq))
	assert.Equal(t, []byte{40, 40, 2, 0}, first.Qual)
}

func TestReaderIllumina(t *testing.T) {
	r, err := NewReader(strings.NewReader("@r\nAC\n+\nAh\n"), Illumina13Offset)
	require.NoError(t, err)
	read, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 40}, read.Qual)
}

func TestReaderQualityOutOfRange(t *testing.T) {
	input := "@r1\nACGT\n+\nhhhh\n@r2\nACGT\n+\nhh5h\n"
	r, err := NewReader(strings.NewReader(input), Illumina13Offset)
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Record)
	assert.Equal(t, "r2", perr.ID)
	assert.Equal(t, err, r.Err())
	_, again := r.Next()
	assert.Equal(t, err, again)
}

func TestReaderNotFastq(t *testing.T) {
	r, err := NewReader(strings.NewReader(">r1\nACGT\n"), SangerOffset)
	if err != nil {
		assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
		return
	}
	_, err = r.Next()
	assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestReaderInvalidOffset(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), 50)
	assert.Error(t, err)
	_, err = NewWriter(io.Discard, 0)
	assert.Error(t, err)
}

func TestReaderFetch(t *testing.T) {
	var input strings.Builder
	for i := 0; i < 25; i++ {
		input.WriteString("@r\nA\n+\nI\n")
	}
	r, err := NewReader(strings.NewReader(input.String()), SangerOffset)
	require.NoError(t, err)
	var starts []int
	for r.Fetch(10) > 0 {
		batch := r.Data().(*Batch)
		starts = append(starts, batch.Start)
	}
	assert.Equal(t, []int{0, 10, 20}, starts)
	assert.NoError(t, r.Err())
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, SangerOffset)
	require.NoError(t, err)
	require.NoError(t, w.WriteRead(&Read{ID: "r1", Seq: []byte("ACGT"), Qual: []byte{40, 40, 2, 0}}))
	assert.Equal(t, "@r1\nACGT\n+\nII#!\n", buf.String())

	assert.Error(t, w.WriteRead(&Read{ID: "r2", Seq: []byte("ACGT"), Qual: []byte{40}}))
	assert.Error(t, w.WriteRead(&Read{ID: "r3", Seq: []byte("A"), Qual: []byte{94}}))
}

func TestTruncate(t *testing.T) {
	read := &Read{Seq: []byte("ACGT"), Qual: []byte{1, 2, 3, 4}}
	read.Truncate(6)
	assert.Equal(t, 4, read.Len())
	read.Truncate(2)
	assert.Equal(t, "AC", string(read.Seq))
	assert.Equal(t, []byte{1, 2}, read.Qual)
}

func TestHasFastqExt(t *testing.T) {
	assert.True(t, HasFastqExt("a_1_L001_R1_001.fastq.gz"))
	assert.True(t, HasFastqExt("a.fq"))
	assert.False(t, HasFastqExt("MANIFEST"))
	assert.False(t, HasFastqExt("a.gz"))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	reads := []*Read{
		{ID: "r1", Seq: []byte("ACGT"), Qual: []byte{40, 30, 20, 10}},
		{ID: "r2", Seq: []byte("GGCC"), Qual: []byte{1, 2, 3, 4}},
	}
	for _, name := range []string{"plain.fastq", "compressed.fastq.gz"} {
		path := filepath.Join(dir, name)
		out, err := Create(path, Illumina13Offset, -1)
		require.NoError(t, err)
		for _, read := range reads {
			require.NoError(t, out.WriteRead(read))
		}
		require.NoError(t, out.Close())

		in, err := Open(path, Illumina13Offset)
		require.NoError(t, err)
		for _, read := range reads {
			got, err := in.Next()
			require.NoError(t, err)
			assert.Equal(t, read, got)
		}
		_, err = in.Next()
		assert.Equal(t, io.EOF, err)
		require.NoError(t, in.Close())
	}

	content, err := os.ReadFile(filepath.Join(dir, "compressed.fastq.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, content[:2])
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fastq")
	require.NoError(t, os.WriteFile(path, nil, 0666))
	in, err := Open(path, SangerOffset)
	require.NoError(t, err)
	_, err = in.Next()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, in.Close())
}

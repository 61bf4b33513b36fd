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

package demux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/qfilter/fastq"
)

func touch(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0666))
	}
}

func TestWriteOpen(t *testing.T) {
	dir := t.TempDir()
	a := &Archive{Dir: dir, PhredOffset: fastq.Illumina13Offset, Samples: []Sample{
		{ID: "s2", Filename: SampleFilename("s2", 1)},
		{ID: "s1", Filename: SampleFilename("s1", 2)},
	}}
	touch(t, dir, a.Samples[0].Filename, a.Samples[1].Filename)
	require.NoError(t, Write(a))

	b, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "s2_1_L001_R1_001.fastq.gz", b.Samples[0].Filename)
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := "# forward reads only\n" +
		"sample-id,filename,direction\n" +
		"s1, s1.fastq.gz, forward\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), []byte(manifest), 0666))
	samples, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, []Sample{{ID: "s1", Filename: "s1.fastq.gz"}}, samples)
}

func TestReadManifestRejectsReverse(t *testing.T) {
	dir := t.TempDir()
	manifest := "sample-id,filename,direction\n" +
		"s1,s1_R1.fastq.gz,forward\n" +
		"s1,s1_R2.fastq.gz,reverse\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), []byte(manifest), 0666))
	_, err := ReadManifest(dir)
	assert.Error(t, err)
}

func TestReadManifestRejectsUnknownDirection(t *testing.T) {
	dir := t.TempDir()
	manifest := "sample-id,filename,direction\n" +
		"s1,s1.fastq.gz,sideways\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), []byte(manifest), 0666))
	_, err := ReadManifest(dir)
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	dir := t.TempDir()
	md, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, fastq.SangerOffset, md.PhredOffset)

	require.NoError(t, WriteMetadata(dir, Metadata{PhredOffset: fastq.Illumina13Offset}))
	md, err = ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, fastq.Illumina13Offset, md.PhredOffset)

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFilename), []byte("phred-offset: 50\n"), 0666))
	_, err = ReadMetadata(dir)
	assert.Error(t, err)
}

func TestInferSamples(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "beta_S2_L001_R1_001.fastq.gz", "alpha_S1_L001_R1_001.fastq", "notes.txt")
	a, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, fastq.SangerOffset, a.PhredOffset)
	assert.Equal(t, []Sample{
		{ID: "alpha", Filename: "alpha_S1_L001_R1_001.fastq"},
		{ID: "beta", Filename: "beta_S2_L001_R1_001.fastq.gz"},
	}, a.Samples)
}

func TestInferSamplesRejectsReverse(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "alpha_S1_L001_R1_001.fastq.gz", "alpha_S1_L001_R2_001.fastq.gz")
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestOpenErrors(t *testing.T) {
	empty := t.TempDir()
	_, err := Open(empty)
	assert.Error(t, err, "no samples")

	missing := t.TempDir()
	require.NoError(t, WriteManifest(missing, []Sample{{ID: "s1", Filename: "s1.fastq.gz"}}))
	_, err = Open(missing)
	assert.Error(t, err, "missing sample file")

	duplicate := t.TempDir()
	touch(t, duplicate, "a.fastq", "b.fastq")
	require.NoError(t, WriteManifest(duplicate, []Sample{{ID: "s1", Filename: "a.fastq"}, {ID: "s1", Filename: "b.fastq"}}))
	_, err = Open(duplicate)
	assert.Error(t, err, "duplicate sample")
}

func TestOpenRejectsUnusableSampleIDs(t *testing.T) {
	for _, id := range []string{"a/b", `a\b`, "..", "#a"} {
		dir := t.TempDir()
		touch(t, dir, "s.fastq")
		require.NoError(t, WriteManifest(dir, []Sample{{ID: id, Filename: "s.fastq"}}))
		_, err := Open(dir)
		assert.Error(t, err, id)
	}
}

func TestInferSamplesRejectsCommentLikeIDs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "#a_S1_L001_R1_001.fastq.gz")
	_, err := Open(dir)
	assert.Error(t, err)
}

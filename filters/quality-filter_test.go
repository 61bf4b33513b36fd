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

package filters

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/qfilter/fastq"
	"github.com/exascience/qfilter/stats"
)

func makeRead(id, seq string, qual ...byte) *fastq.Read {
	return &fastq.Read{ID: id, Seq: []byte(seq), Qual: qual}
}

func uniformScores(n int, q byte) []byte {
	return bytes.Repeat([]byte{q}, n)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())

	for _, params := range []Parameters{
		{MinQuality: -1, QualityWindow: 3, MinLengthFraction: 0.75},
		{MinQuality: 4, QualityWindow: -1, MinLengthFraction: 0.75},
		{MinQuality: 4, QualityWindow: 3, MinLengthFraction: -0.1},
		{MinQuality: 4, QualityWindow: 3, MinLengthFraction: 1.5},
		{MinQuality: 4, QualityWindow: 3, MinLengthFraction: math.NaN()},
		{MinQuality: 4, QualityWindow: 3, MinLengthFraction: 0.75, MaxAmbiguous: -1},
	} {
		var perr *ParameterError
		assert.True(t, errors.As(params.Validate(), &perr), "%+v", params)
	}

	edge := Parameters{MinLengthFraction: 1}
	assert.NoError(t, edge.Validate())
}

func TestFilterReadTooShort(t *testing.T) {
	params := Parameters{MinQuality: 20, QualityWindow: 0, MinLengthFraction: 0.5, MaxAmbiguous: 0}
	read := makeRead("r1", "ACGTACGTAC", 30, 30, 30, 2, 30, 30, 30, 30, 30, 30)
	verdict, err := params.FilterRead(read)
	require.NoError(t, err)
	assert.Equal(t, TruncatedTooShort, verdict.Outcome)
	assert.Equal(t, 3, verdict.Truncation)
	assert.True(t, verdict.Truncated())
	assert.Equal(t, 10, read.Len(), "dropped reads are not modified")
}

func TestFilterReadTooManyAmbiguous(t *testing.T) {
	params := Parameters{MinQuality: 20, QualityWindow: 0, MinLengthFraction: 0.5, MaxAmbiguous: 1}
	read := makeRead("r1", "ACGNNTT", 30, 30, 30, 30, 30, 2, 2)
	verdict, err := params.FilterRead(read)
	require.NoError(t, err)
	assert.Equal(t, TooManyAmbiguous, verdict.Outcome)
	assert.Equal(t, 5, verdict.Truncation)
}

func TestFilterReadAmbiguousOnlyAfterTruncation(t *testing.T) {
	params := Parameters{MinQuality: 20, QualityWindow: 0, MinLengthFraction: 0.5, MaxAmbiguous: 0}
	read := makeRead("r1", "ACGTACGNNN", 30, 30, 30, 30, 30, 30, 30, 2, 2, 2)
	verdict, err := params.FilterRead(read)
	require.NoError(t, err)
	assert.Equal(t, Passed, verdict.Outcome)
	assert.Equal(t, "ACGTACG", string(read.Seq))
	assert.Equal(t, uniformScores(7, 30), read.Qual)
}

func TestFilterReadTooShortBeforeAmbiguous(t *testing.T) {
	params := Parameters{MinQuality: 20, QualityWindow: 0, MinLengthFraction: 0.9, MaxAmbiguous: 0}
	read := makeRead("r1", "NNNNACGTAC", 30, 30, 30, 30, 2, 30, 30, 30, 30, 30)
	verdict, err := params.FilterRead(read)
	require.NoError(t, err)
	assert.Equal(t, TruncatedTooShort, verdict.Outcome)

	var s stats.SampleStats
	verdict.Tally(&s)
	assert.Equal(t, stats.SampleStats{Input: 1, Truncated: 1, TooShort: 1}, s)
}

func TestFilterReadUntouched(t *testing.T) {
	params := DefaultParameters()
	read := makeRead("r1", "ACGT", uniformScores(4, 40)...)
	verdict, err := params.FilterRead(read)
	require.NoError(t, err)
	assert.Equal(t, Passed, verdict.Outcome)
	assert.False(t, verdict.Truncated())

	var s stats.SampleStats
	verdict.Tally(&s)
	assert.Equal(t, stats.SampleStats{Input: 1, Retained: 1}, s)
	require.NoError(t, s.Check())
}

func TestFilterReadIntegrity(t *testing.T) {
	params := DefaultParameters()

	_, err := params.FilterRead(makeRead("empty", ""))
	var ierr *IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "empty", ierr.Read)
	assert.True(t, errors.Is(err, ErrEmptyRead))

	_, err = params.FilterRead(makeRead("mismatch", "ACGT", 30, 30))
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "mismatch", ierr.Read)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "truncated too short", TruncatedTooShort.String())
	assert.Equal(t, "too many ambiguous", TooManyAmbiguous.String())
}

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
	"errors"
	"fmt"
)

// Supported PHRED offsets.
const (
	SangerOffset     = 33
	Illumina13Offset = 64
)

// The highest printable character that can occur in a quality line.
const maxQualityChar = '~'

// ErrInvalid is returned when a FASTQ record is malformed.
var ErrInvalid = errors.New("invalid FASTQ record")

// A Read is a single FASTQ record.
type Read struct {
	// ID is the header line without the leading '@'.
	ID string

	// Seq holds the nucleotide calls.
	Seq []byte

	// Qual holds one decoded PHRED score per entry in Seq.
	Qual []byte
}

// Len returns the number of bases in the read.
func (read *Read) Len() int {
	return len(read.Seq)
}

// Truncate cuts the sequence and the quality scores of the read to
// at most n entries.
func (read *Read) Truncate(n int) {
	if n < len(read.Seq) {
		read.Seq = read.Seq[:n]
	}
	if n < len(read.Qual) {
		read.Qual = read.Qual[:n]
	}
}

// A Batch is a slice of consecutive reads of a FASTQ stream.
type Batch struct {
	// Start is the 0-based position of the first read in the stream.
	Start int

	Reads []*Read
}

// A ParseError reports which record of a FASTQ stream could not be parsed.
type ParseError struct {
	// Record is the 1-based number of the offending record.
	Record int

	// ID is the header of the offending record, if it could be read.
	ID string

	Err error
}

func (e *ParseError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("FASTQ record %v (@%v): %v", e.Record, e.ID, e.Err)
	}
	return fmt.Sprintf("FASTQ record %v: %v", e.Record, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CheckOffset returns an error if offset is not a supported PHRED offset.
func CheckOffset(offset int) error {
	switch offset {
	case SangerOffset, Illumina13Offset:
		return nil
	default:
		return fmt.Errorf("unsupported PHRED offset %v (must be %v or %v)", offset, SangerOffset, Illumina13Offset)
	}
}

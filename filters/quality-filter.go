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
	"errors"
	"fmt"

	"github.com/exascience/qfilter/fastq"
	"github.com/exascience/qfilter/stats"
)

// Parameters configure the quality filter.
type Parameters struct {
	// MinQuality is the minimum acceptable PHRED score.
	MinQuality int

	// QualityWindow is the maximum number of consecutive base calls
	// below MinQuality that are tolerated before truncating.
	QualityWindow int

	// MinLengthFraction is the minimum fraction of the original read
	// length that must remain after truncation.
	MinLengthFraction float64

	// MaxAmbiguous is the maximum number of ambiguous base calls
	// tolerated after truncation.
	MaxAmbiguous int
}

// DefaultParameters returns the default filter parameters.
func DefaultParameters() Parameters {
	return Parameters{
		MinQuality:        4,
		QualityWindow:     3,
		MinLengthFraction: 0.75,
		MaxAmbiguous:      0,
	}
}

// A ParameterError reports an invalid filter parameter.
type ParameterError struct {
	Name   string
	Value  interface{}
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %v %v: %v", e.Name, e.Value, e.Reason)
}

// Validate checks the parameters before any read is filtered.
func (params Parameters) Validate() error {
	if params.MinQuality < 0 {
		return &ParameterError{"min-quality", params.MinQuality, "must not be negative"}
	}
	if params.QualityWindow < 0 {
		return &ParameterError{"quality-window", params.QualityWindow, "must not be negative"}
	}
	if !(params.MinLengthFraction >= 0 && params.MinLengthFraction <= 1) {
		return &ParameterError{"min-length-fraction", params.MinLengthFraction, "must be between 0 and 1"}
	}
	if params.MaxAmbiguous < 0 {
		return &ParameterError{"max-ambiguous", params.MaxAmbiguous, "must not be negative"}
	}
	return nil
}

// An Outcome is the final decision about a read.
type Outcome int

// The possible outcomes, in the order in which they are checked.
const (
	Passed Outcome = iota
	TruncatedTooShort
	TooManyAmbiguous
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case TruncatedTooShort:
		return "truncated too short"
	case TooManyAmbiguous:
		return "too many ambiguous"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// A Verdict records how a read was filtered.
type Verdict struct {
	Outcome Outcome

	// Truncation is the number of bases kept by Truncate.
	Truncation int

	// Length is the original length of the read.
	Length int
}

// Truncated reports whether the read was shortened.
func (v Verdict) Truncated() bool {
	return v.Truncation < v.Length
}

// Tally records the verdict in the given sample statistics.
func (v Verdict) Tally(s *stats.SampleStats) {
	s.Input++
	if v.Truncated() {
		s.Truncated++
	}
	switch v.Outcome {
	case Passed:
		s.Retained++
	case TruncatedTooShort:
		s.TooShort++
	case TooManyAmbiguous:
		s.TooManyAmbiguous++
	}
}

var (
	// ErrEmptyRead is reported for reads without bases.
	ErrEmptyRead = errors.New("empty read")

	// ErrLengthMismatch is reported for reads whose number of quality
	// scores differs from their number of bases.
	ErrLengthMismatch = errors.New("sequence and quality scores differ in length")
)

// An IntegrityError reports corrupt input: an unreadable archive or
// sample file, a malformed FASTQ record, or an inconsistent read.
type IntegrityError struct {
	Sample string

	// Read is the identifier of the offending read, if known.
	Read string

	// Number is the 1-based position of the read in its sample, or 0.
	Number int

	Err error
}

func (e *IntegrityError) Error() string {
	msg := "corrupt input"
	if e.Sample != "" {
		msg += fmt.Sprintf(" in sample %v", e.Sample)
	}
	switch {
	case e.Number > 0 && e.Read != "":
		msg += fmt.Sprintf(", read %v (@%v)", e.Number, e.Read)
	case e.Number > 0:
		msg += fmt.Sprintf(", read %v", e.Number)
	case e.Read != "":
		msg += fmt.Sprintf(", read @%v", e.Read)
	}
	return msg + ": " + e.Err.Error()
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// FilterRead decides the verdict for a single read.
//
// The too-short check comes strictly before the ambiguity check, and
// both look at the truncated read only, so every read gets exactly one
// outcome. Reads that pass are truncated in place. Empty reads and
// reads whose sequence and quality scores differ in length are
// reported as an *IntegrityError.
func (params Parameters) FilterRead(read *fastq.Read) (Verdict, error) {
	length := len(read.Seq)
	if length == 0 {
		return Verdict{}, &IntegrityError{Read: read.ID, Err: ErrEmptyRead}
	}
	if length != len(read.Qual) {
		return Verdict{}, &IntegrityError{Read: read.ID, Err: fmt.Errorf("%w (%v bases, %v scores)", ErrLengthMismatch, length, len(read.Qual))}
	}
	t := Truncate(read.Qual, params.MinQuality, params.QualityWindow)
	verdict := Verdict{Truncation: t, Length: length}
	switch {
	case float64(t)/float64(length) < params.MinLengthFraction:
		verdict.Outcome = TruncatedTooShort
	case CountAmbiguous(read.Seq[:t]) > params.MaxAmbiguous:
		verdict.Outcome = TooManyAmbiguous
	default:
		verdict.Outcome = Passed
		read.Truncate(t)
	}
	return verdict, nil
}

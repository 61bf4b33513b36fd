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

package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/willf/bitset"
)

// Column names of the statistics artifact, in file order.
const (
	SampleIDColumn         = "sample-id"
	InputColumn            = "total-input-reads"
	RetainedColumn         = "total-retained-reads"
	TruncatedColumn        = "reads-truncated"
	TooShortColumn         = "reads-too-short-after-truncation"
	TooManyAmbiguousColumn = "reads-exceeding-maximum-ambiguous-bases"
)

// Columns lists the required columns of the statistics artifact.
var Columns = []string{
	SampleIDColumn,
	InputColumn,
	RetainedColumn,
	TruncatedColumn,
	TooShortColumn,
	TooManyAmbiguousColumn,
}

// DefaultFilename is the conventional file name of the statistics artifact.
const DefaultFilename = "stats.csv"

type statsRow struct {
	SampleID         string `csv:"sample-id"`
	Input            uint64 `csv:"total-input-reads"`
	Retained         uint64 `csv:"total-retained-reads"`
	Truncated        uint64 `csv:"reads-truncated"`
	TooShort         uint64 `csv:"reads-too-short-after-truncation"`
	TooManyAmbiguous uint64 `csv:"reads-exceeding-maximum-ambiguous-bases"`
}

// A FormatError reports a statistics table that violates the schema.
type FormatError struct {
	// File is the name of the table, if it was read from a file.
	File string

	// Row is the 1-based number of the offending data row, or 0 for the header.
	Row int

	// Column names the offending column, if known.
	Column string

	Reason string
}

func (e *FormatError) Error() string {
	msg := "invalid filter statistics"
	if e.File != "" {
		msg += " in " + e.File
	}
	switch {
	case e.Row == 0 && e.Column != "":
		msg += fmt.Sprintf(", header column %v", e.Column)
	case e.Row == 0:
		msg += ", header"
	case e.Column != "":
		msg += fmt.Sprintf(", row %v, column %v", e.Row, e.Column)
	default:
		msg += fmt.Sprintf(", row %v", e.Row)
	}
	return msg + ": " + e.Reason
}

// Encode writes the artifact as a CSV table, sorted by sample identifier.
func Encode(w io.Writer, a *Artifact) error {
	rows := make([]*statsRow, 0, a.Len())
	for _, id := range a.SampleIDs() {
		s := a.samples[id]
		rows = append(rows, &statsRow{
			SampleID:         id,
			Input:            s.Input,
			Retained:         s.Retained,
			Truncated:        s.Truncated,
			TooShort:         s.TooShort,
			TooManyAmbiguous: s.TooManyAmbiguous,
		})
	}
	return gocsv.Marshal(rows, w)
}

// columnPositions validates the header and returns the position of
// each required column in it.
func columnPositions(header []string) ([]int, error) {
	seen := bitset.New(uint(len(Columns)))
	positions := make([]int, len(Columns))
	for pos, name := range header {
		for i, column := range Columns {
			if name != column {
				continue
			}
			if seen.Test(uint(i)) {
				return nil, &FormatError{Column: name, Reason: "duplicate column"}
			}
			seen.Set(uint(i))
			positions[i] = pos
		}
	}
	if seen.Count() != uint(len(Columns)) {
		for i, column := range Columns {
			if !seen.Test(uint(i)) {
				return nil, &FormatError{Column: column, Reason: "missing required column"}
			}
		}
	}
	return positions, nil
}

// parseCounter parses a counter in base 10. Signs and leading zeros
// are rejected, so that every counter has exactly one representation.
func parseCounter(value string) (uint64, bool) {
	if len(value) > 1 && value[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseUint(value, 10, 64)
	return n, err == nil
}

// Decode reads and validates a CSV statistics table. Tables with
// missing or duplicate required columns, empty, negative, or
// non-numeric counters, duplicate or empty sample identifiers, or
// inconsistent counters are rejected with a *FormatError. Columns not
// in Columns are ignored.
func Decode(r io.Reader) (*Artifact, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &FormatError{Row: perr.Line - 1, Reason: perr.Err.Error()}
		}
		return nil, err
	}
	if len(records) == 0 {
		return nil, &FormatError{Reason: "missing header"}
	}
	positions, err := columnPositions(records[0])
	if err != nil {
		return nil, err
	}
	a := NewArtifact()
	ids := make(map[string]int, len(records)-1)
	for i, record := range records[1:] {
		row := i + 1
		var counters [5]uint64
		for c, pos := range positions {
			value := record[pos]
			if value == "" {
				return nil, &FormatError{Row: row, Column: Columns[c], Reason: "empty value"}
			}
			if c == 0 {
				continue
			}
			n, ok := parseCounter(value)
			if !ok {
				return nil, &FormatError{Row: row, Column: Columns[c], Reason: fmt.Sprintf("counter %q is not a non-negative decimal integer", value)}
			}
			counters[c-1] = n
		}
		id := record[positions[0]]
		if previous, ok := ids[id]; ok {
			return nil, &FormatError{Row: row, Column: SampleIDColumn, Reason: fmt.Sprintf("duplicate sample identifier %v (first seen in row %v)", id, previous)}
		}
		ids[id] = row
		s := SampleStats{
			Input:            counters[0],
			Retained:         counters[1],
			Truncated:        counters[2],
			TooShort:         counters[3],
			TooManyAmbiguous: counters[4],
		}
		if err := s.Check(); err != nil {
			return nil, &FormatError{Row: row, Reason: err.Error()}
		}
		if err := a.Add(id, s); err != nil {
			return nil, &FormatError{Row: row, Column: SampleIDColumn, Reason: err.Error()}
		}
	}
	return a, nil
}

// ReadFile reads and validates the statistics table in the named file.
func ReadFile(name string) (a *Artifact, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	a, err = Decode(f)
	var ferr *FormatError
	if errors.As(err, &ferr) {
		ferr.File = name
	}
	return a, err
}

// WriteFile writes the artifact to the named file. The table is first
// written to a temporary file in the same directory, which is then
// renamed, so that readers never observe a partially written table.
func WriteFile(name string, a *Artifact) (err error) {
	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = Encode(tmp, a); err != nil {
		return fmt.Errorf("%w, while writing filter statistics to %v", err, name)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

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

// Package stats holds the per-sample quality filtering statistics and
// their on-disk representation.
//
// The statistics artifact is a comma-separated table with one row per
// sample, sorted by sample identifier, and a header naming the columns
// listed in Columns, in that order.
package stats

import (
	"fmt"
	"sort"
)

// SampleStats accumulates the filtering outcomes of the reads of one sample.
type SampleStats struct {
	// Input counts all reads of the sample.
	Input uint64

	// Retained counts the reads written to the output.
	Retained uint64

	// Truncated counts the reads that were shortened, whatever their
	// final outcome.
	Truncated uint64

	// TooShort counts the reads dropped because too little of them
	// remained after truncation.
	TooShort uint64

	// TooManyAmbiguous counts the reads dropped because of ambiguous
	// base calls after truncation.
	TooManyAmbiguous uint64
}

// Add adds the counters of other to s.
func (s *SampleStats) Add(other SampleStats) {
	s.Input += other.Input
	s.Retained += other.Retained
	s.Truncated += other.Truncated
	s.TooShort += other.TooShort
	s.TooManyAmbiguous += other.TooManyAmbiguous
}

// Dropped returns the number of reads that were not retained.
func (s SampleStats) Dropped() uint64 {
	return s.TooShort + s.TooManyAmbiguous
}

// Check verifies that the counters are consistent: every read is either
// retained, too short, or too ambiguous, and no more reads are
// truncated than were read.
func (s SampleStats) Check() error {
	if s.Dropped() > s.Input || s.Retained != s.Input-s.Dropped() {
		return fmt.Errorf("retained reads (%v) do not equal input reads (%v) minus too short (%v) and too ambiguous (%v) reads",
			s.Retained, s.Input, s.TooShort, s.TooManyAmbiguous)
	}
	if s.Truncated > s.Input {
		return fmt.Errorf("truncated reads (%v) exceed input reads (%v)", s.Truncated, s.Input)
	}
	return nil
}

// An Artifact maps sample identifiers to their statistics. Samples can
// only be added, never replaced or removed.
type Artifact struct {
	samples map[string]SampleStats
}

// NewArtifact returns an empty Artifact.
func NewArtifact() *Artifact {
	return &Artifact{samples: make(map[string]SampleStats)}
}

// Add records the statistics of a sample. It fails if the sample
// identifier is empty or was already added.
func (a *Artifact) Add(sampleID string, s SampleStats) error {
	if sampleID == "" {
		return fmt.Errorf("empty sample identifier")
	}
	if _, ok := a.samples[sampleID]; ok {
		return fmt.Errorf("duplicate sample identifier %v", sampleID)
	}
	a.samples[sampleID] = s
	return nil
}

// Get returns the statistics of the given sample.
func (a *Artifact) Get(sampleID string) (SampleStats, bool) {
	s, ok := a.samples[sampleID]
	return s, ok
}

// Len returns the number of samples.
func (a *Artifact) Len() int {
	return len(a.samples)
}

// SampleIDs returns the sample identifiers in sorted order.
func (a *Artifact) SampleIDs() []string {
	ids := make([]string, 0, len(a.samples))
	for id := range a.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Totals returns the sum of the statistics of all samples.
func (a *Artifact) Totals() (total SampleStats) {
	for _, s := range a.samples {
		total.Add(s)
	}
	return total
}

// Equal reports whether a and b hold the same samples with the same counters.
func (a *Artifact) Equal(b *Artifact) bool {
	if len(a.samples) != len(b.samples) {
		return false
	}
	for id, s := range a.samples {
		if t, ok := b.samples[id]; !ok || s != t {
			return false
		}
	}
	return true
}

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
	"fmt"
	"path/filepath"

	"github.com/exascience/qfilter/fastq"
)

// Names of the bookkeeping files of an archive.
const (
	ManifestFilename = "MANIFEST"
	MetadataFilename = "metadata.yml"
)

// Read directions recorded in a MANIFEST.
const (
	Forward = "forward"
	Reverse = "reverse"
)

// A Sample names the FASTQ file that holds the reads of one sample.
type Sample struct {
	ID string

	// Filename is relative to the archive directory.
	Filename string
}

// An Archive is a directory of per-sample FASTQ files.
type Archive struct {
	Dir         string
	PhredOffset int
	Samples     []Sample
}

// Metadata is the content of metadata.yml.
type Metadata struct {
	PhredOffset int `yaml:"phred-offset"`
}

type manifestRow struct {
	SampleID  string `csv:"sample-id"`
	Filename  string `csv:"filename"`
	Direction string `csv:"direction"`
}

// Path returns the full pathname of the FASTQ file of the given sample.
func (a *Archive) Path(s Sample) string {
	return filepath.Join(a.Dir, s.Filename)
}

// OpenSample opens the FASTQ file of the given sample for input.
func (a *Archive) OpenSample(s Sample) (*fastq.InputFile, error) {
	f, err := fastq.Open(a.Path(s), a.PhredOffset)
	if err != nil {
		return nil, fmt.Errorf("%w, while opening the reads of sample %v", err, s.ID)
	}
	return f, nil
}

// SampleFilename returns the Casava 1.8 file name used for the n-th
// sample written to an archive.
func SampleFilename(sampleID string, n int) string {
	return fmt.Sprintf("%v_%v_L001_R1_001%v%v", sampleID, n, fastq.FastqExt, fastq.GzipExt)
}

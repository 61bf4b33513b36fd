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
	"encoding/csv"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/exascience/qfilter/fastq"
	"github.com/exascience/qfilter/internal"
)

// casavaFilename matches <sample>_<barcode>_L<lane>_R<read>_<set>.fastq[.gz].
var casavaFilename = regexp.MustCompile(`^(.+)_([^_]+)_L(\d+)_R([12])_(\d+)\.f(ast)?q(\.gz)?$`)

// ReadMetadata reads the metadata.yml file of an archive directory.
// A missing file yields the default PHRED offset.
func ReadMetadata(dir string) (Metadata, error) {
	md := Metadata{PhredOffset: fastq.SangerOffset}
	data, err := ioutil.ReadFile(filepath.Join(dir, MetadataFilename))
	if errors.Is(err, os.ErrNotExist) {
		return md, nil
	} else if err != nil {
		return md, err
	}
	if err := yaml.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("%w, while parsing %v", err, filepath.Join(dir, MetadataFilename))
	}
	if err := fastq.CheckOffset(md.PhredOffset); err != nil {
		return md, fmt.Errorf("%w in %v", err, filepath.Join(dir, MetadataFilename))
	}
	return md, nil
}

// WriteMetadata writes a metadata.yml file to an archive directory.
func WriteMetadata(dir string, md Metadata) error {
	data, err := yaml.Marshal(&md)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(dir, MetadataFilename), data, 0666)
}

// ReadManifest reads the MANIFEST file of an archive directory.
func ReadManifest(dir string) (samples []Sample, err error) {
	name := filepath.Join(dir, ManifestFilename)
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	var rows []*manifestRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("%w, while parsing %v", err, name)
	}
	for i, row := range rows {
		switch {
		case row.SampleID == "" || row.Filename == "":
			return nil, fmt.Errorf("entry %v in %v lacks a sample identifier or file name", i+1, name)
		case row.Direction == Reverse:
			return nil, fmt.Errorf("entry %v in %v: reverse reads of sample %v are not supported, only single-end archives can be filtered", i+1, name, row.SampleID)
		case row.Direction != Forward:
			return nil, fmt.Errorf("entry %v in %v: invalid direction %q for sample %v", i+1, name, row.Direction, row.SampleID)
		}
		samples = append(samples, Sample{ID: row.SampleID, Filename: row.Filename})
	}
	return samples, nil
}

// WriteManifest writes a MANIFEST file listing the forward reads of
// the given samples.
func WriteManifest(dir string, samples []Sample) (err error) {
	f, err := os.Create(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	rows := make([]*manifestRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, &manifestRow{SampleID: s.ID, Filename: s.Filename, Direction: Forward})
	}
	return gocsv.Marshal(rows, f)
}

// inferSamples derives the samples of an archive without a MANIFEST
// from Casava 1.8 file names.
func inferSamples(dir string) ([]Sample, error) {
	files, err := internal.Directory(dir)
	if err != nil {
		return nil, err
	}
	var samples []Sample
	for _, file := range files {
		if !fastq.HasFastqExt(file) {
			continue
		}
		m := casavaFilename.FindStringSubmatch(file)
		if m == nil {
			return nil, fmt.Errorf("cannot derive a sample identifier from file name %v in %v", file, dir)
		}
		if m[4] == "2" {
			return nil, fmt.Errorf("reverse reads in %v are not supported, only single-end archives can be filtered", file)
		}
		samples = append(samples, Sample{ID: m[1], Filename: file})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}

// checkSampleID reports sample identifiers that cannot be used in the
// file names and MANIFEST of an output archive.
func checkSampleID(id string) error {
	switch {
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("sample identifier %q contains a path separator", id)
	case id == "." || id == "..":
		return fmt.Errorf("sample identifier %q is not a valid file name", id)
	case strings.HasPrefix(id, "#"):
		return fmt.Errorf("sample identifier %q starts with the MANIFEST comment character", id)
	}
	return nil
}

// Open opens an archive directory: it reads its metadata.yml and its
// MANIFEST, or infers the samples from Casava 1.8 file names, and
// checks that every sample file exists and that no sample occurs twice.
func Open(dir string) (*Archive, error) {
	md, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	samples, err := ReadManifest(dir)
	if errors.Is(err, os.ErrNotExist) {
		samples, err = inferSamples(dir)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples found in %v", dir)
	}
	a := &Archive{Dir: dir, PhredOffset: md.PhredOffset, Samples: samples}
	seen := make(map[string]bool, len(samples))
	for _, s := range samples {
		if err := checkSampleID(s.ID); err != nil {
			return nil, fmt.Errorf("%w in %v", err, dir)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("sample %v occurs more than once in %v", s.ID, dir)
		}
		seen[s.ID] = true
		if _, err := os.Stat(a.Path(s)); err != nil {
			return nil, fmt.Errorf("%w, for sample %v", err, s.ID)
		}
	}
	return a, nil
}

// Write writes the MANIFEST and metadata.yml files of the archive. The
// sample files themselves must already be in place.
func Write(a *Archive) error {
	if err := WriteManifest(a.Dir, a.Samples); err != nil {
		return err
	}
	return WriteMetadata(a.Dir, Metadata{PhredOffset: a.PhredOffset})
}

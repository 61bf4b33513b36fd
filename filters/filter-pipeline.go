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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/qfilter/demux"
	"github.com/exascience/qfilter/fastq"
	"github.com/exascience/qfilter/internal"
	"github.com/exascience/qfilter/stats"
)

const (
	minBatchSize = 1024
	maxBatchSize = 65536
)

// filteredBatch is the result of filtering one batch of reads: the
// retained reads in FASTQ format, and the statistics of the batch.
type filteredBatch struct {
	records []byte
	stats   stats.SampleStats
}

func integrityError(sampleID string, err error) error {
	var ierr *IntegrityError
	if errors.As(err, &ierr) {
		if ierr.Sample == "" {
			ierr.Sample = sampleID
		}
		return ierr
	}
	var perr *fastq.ParseError
	if errors.As(err, &perr) {
		return &IntegrityError{Sample: sampleID, Read: perr.ID, Number: perr.Record, Err: perr.Err}
	}
	return &IntegrityError{Sample: sampleID, Err: err}
}

// FilterSample filters all reads from reader and writes the retained
// reads to writer, in input order. It returns the statistics of the
// sample.
//
// Verdicts are computed in parallel on batches of reads, while a
// strictly ordered pipeline stage writes the batches and accumulates
// the statistics, so only a bounded number of batches is in memory at
// any time. Corrupt reads abort the sample with an *IntegrityError.
func FilterSample(ctx context.Context, sampleID string, reader *fastq.Reader, writer *fastq.Writer, params Parameters) (result stats.SampleStats, err error) {
	var p pipeline.Pipeline
	p.Source(reader)
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			batch := data.(*fastq.Batch)
			filtered := &filteredBatch{records: internal.ReserveByteBuffer()}
			if err := ctx.Err(); err != nil {
				p.SetErr(err)
				return filtered
			}
			for i, read := range batch.Reads {
				verdict, err := params.FilterRead(read)
				if err != nil {
					ierr := err.(*IntegrityError)
					ierr.Sample = sampleID
					ierr.Number = batch.Start + i + 1
					p.SetErr(ierr)
					return filtered
				}
				verdict.Tally(&filtered.stats)
				if verdict.Outcome != Passed {
					continue
				}
				if filtered.records, err = writer.Format(read, filtered.records); err != nil {
					p.SetErr(fmt.Errorf("%w, while formatting read %v of sample %v", err, read.ID, sampleID))
					return filtered
				}
			}
			return filtered
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			filtered := data.(*filteredBatch)
			result.Add(filtered.stats)
			if len(filtered.records) > 0 {
				if _, err := writer.Write(filtered.records); err != nil {
					p.SetErr(fmt.Errorf("%w, while writing reads of sample %v", err, sampleID))
				}
			}
			internal.ReleaseByteBuffer(filtered.records)
			return nil
		})),
	)
	p.Run()
	if err := p.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stats.SampleStats{}, err
		}
		return stats.SampleStats{}, integrityError(sampleID, err)
	}
	if err := reader.Err(); err != nil {
		return stats.SampleStats{}, integrityError(sampleID, err)
	}
	return result, nil
}

// filterSampleFile filters the reads of one sample of the input
// archive into the named output file.
func filterSampleFile(ctx context.Context, input *demux.Archive, sample demux.Sample, output string, params Parameters, level int) (result stats.SampleStats, err error) {
	in, err := input.OpenSample(sample)
	if err != nil {
		return result, integrityError(sample.ID, err)
	}
	defer func() {
		if nerr := in.Close(); err == nil && nerr != nil {
			err = integrityError(sample.ID, nerr)
		}
	}()
	out, err := fastq.Create(output, input.PhredOffset, level)
	if err != nil {
		return result, err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	return FilterSample(ctx, sample.ID, in.Reader, out.Writer, params)
}

type sampleResult struct {
	stats stats.SampleStats
	err   error
}

// QScore quality-filters every sample of the input archive into a new
// archive at outputDir, and returns the filter statistics.
//
// The parameters are validated before any read is processed. Samples
// are filtered in parallel, and their statistics are merged in sample
// order. The output archive is prepared in a staging directory next to
// outputDir, which is renamed into place only after every sample has
// been filtered successfully; on failure it is removed, and no
// statistics are returned. Samples without retained reads are
// recorded in the statistics, but get no file in the output archive.
func QScore(ctx context.Context, input *demux.Archive, outputDir string, params Parameters, level int) (*stats.Artifact, error) {
	return qscore(ctx, input, outputDir, params, level, nil)
}

// QScoreFiles is like QScore, but also writes the filter statistics to
// statsFile. The statistics are written before the output archive is
// renamed into place, so the archive only appears together with its
// statistics.
func QScoreFiles(ctx context.Context, input *demux.Archive, outputDir, statsFile string, params Parameters, level int) (*stats.Artifact, error) {
	return qscore(ctx, input, outputDir, params, level, func(artifact *stats.Artifact) error {
		return stats.WriteFile(statsFile, artifact)
	})
}

func qscore(ctx context.Context, input *demux.Archive, outputDir string, params Parameters, level int, commit func(*stats.Artifact) error) (artifact *stats.Artifact, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(outputDir); err == nil {
		return nil, fmt.Errorf("output directory %v already exists", outputDir)
	}
	staging := internal.StagingPathname(outputDir)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if nerr := os.RemoveAll(staging); nerr != nil {
				log.Printf("Warning: could not remove staging directory %v: %v", staging, nerr)
			}
		}
	}()

	results := make([]sampleResult, len(input.Samples))
	filenames := make([]string, len(input.Samples))
	parallel.Range(0, len(input.Samples), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				continue
			}
			sample := input.Samples[i]
			filenames[i] = demux.SampleFilename(sample.ID, i)
			results[i].stats, results[i].err = filterSampleFile(ctx, input, sample, filepath.Join(staging, filenames[i]), params, level)
		}
	})

	artifact = stats.NewArtifact()
	output := &demux.Archive{Dir: staging, PhredOffset: input.PhredOffset}
	for i, result := range results {
		if result.err != nil {
			return nil, result.err
		}
		sample := input.Samples[i]
		if err := artifact.Add(sample.ID, result.stats); err != nil {
			return nil, err
		}
		if result.stats.Retained == 0 {
			if err := os.Remove(filepath.Join(staging, filenames[i])); err != nil {
				return nil, err
			}
			continue
		}
		output.Samples = append(output.Samples, demux.Sample{ID: sample.ID, Filename: filenames[i]})
	}
	if len(output.Samples) == 0 {
		log.Println("Warning: all reads of all samples were filtered out; the parameter choices may have been too stringent for the data.")
	}
	if err := demux.Write(output); err != nil {
		return nil, err
	}
	if commit != nil {
		if err := commit(artifact); err != nil {
			return nil, err
		}
	}
	if err := os.Rename(staging, outputDir); err != nil {
		return nil, err
	}
	return artifact, nil
}

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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/exascience/qfilter/internal"
	"github.com/exascience/qfilter/utils"
	"github.com/exascience/qfilter/utils/bgzf"
)

// A Reader parses FASTQ records from an io.Reader.
//
// Reader implements pipeline.Source: each batch fetched by a pargo
// pipeline is a *Batch of reads in file order. A Reader is not safe for
// concurrent use.
type Reader struct {
	fastx   *fastx.Reader
	offset  byte
	records int
	ctx     context.Context
	err     error
	data    interface{}
}

// NewReader returns a Reader that decodes quality lines with the
// given PHRED offset.
func NewReader(r io.Reader, offset int) (*Reader, error) {
	if err := CheckOffset(offset); err != nil {
		return nil, err
	}
	reader := &Reader{offset: byte(offset)}
	buf := bufio.NewReader(r)
	if _, err := buf.Peek(1); err == io.EOF {
		reader.err = io.EOF
		return reader, nil
	} else if err != nil {
		return nil, err
	}
	fr, err := fastx.NewReaderFromIO(seq.DNAredundant, buf, fastx.DefaultIDRegexp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	reader.fastx = fr
	return reader, nil
}

// Records returns the number of records parsed so far.
func (r *Reader) Records() int {
	return r.records
}

func (r *Reader) fail(id string, err error) error {
	r.err = &ParseError{Record: r.records + 1, ID: id, Err: err}
	return r.err
}

// Next parses the next record. It returns io.EOF when the input is
// exhausted. Once Next returns an error, it returns the same error on
// every further call.
func (r *Reader) Next() (*Read, error) {
	if r.err != nil {
		return nil, r.err
	}
	record, err := r.fastx.Read()
	if err == io.EOF {
		r.err = io.EOF
		return nil, io.EOF
	} else if err != nil {
		return nil, r.fail("", fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	read := &Read{ID: string(record.Name)}
	if len(record.Seq.Seq) > 0 && len(record.Seq.Qual) == 0 {
		return nil, r.fail(read.ID, fmt.Errorf("%w: record without quality scores", ErrInvalid))
	}
	// the fastx reader reuses its buffers
	read.Seq = append([]byte(nil), record.Seq.Seq...)
	read.Qual = make([]byte, len(record.Seq.Qual))
	for i, c := range record.Seq.Qual {
		if c < r.offset || c > maxQualityChar {
			return nil, r.fail(read.ID, fmt.Errorf("%w: quality character %q at position %v out of range for PHRED offset %v", ErrInvalid, c, i+1, r.offset))
		}
		read.Qual[i] = c - r.offset
	}
	r.records++
	return read, nil
}

// Err implements the method of the pipeline.Source interface.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Prepare implements the method of the pipeline.Source interface.
func (r *Reader) Prepare(ctx context.Context) int {
	r.ctx = ctx
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (r *Reader) Fetch(size int) (fetched int) {
	if r.err != nil {
		r.data = nil
		return 0
	}
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			r.data = nil
			return 0
		}
	}
	batch := &Batch{Start: r.records, Reads: make([]*Read, 0, size)}
	for len(batch.Reads) < size {
		read, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			r.data = nil
			return 0
		}
		batch.Reads = append(batch.Reads, read)
	}
	r.data = batch
	return len(batch.Reads)
}

// Data implements the method of the pipeline.Source interface.
func (r *Reader) Data() interface{} {
	return r.data
}

// A Writer formats reads as FASTQ records.
type Writer struct {
	w      io.Writer
	offset byte
}

// NewWriter returns a Writer that encodes quality scores with the
// given PHRED offset.
func NewWriter(w io.Writer, offset int) (*Writer, error) {
	if err := CheckOffset(offset); err != nil {
		return nil, err
	}
	return &Writer{w: w, offset: byte(offset)}, nil
}

// Format appends the FASTQ representation of read to out.
func (w *Writer) Format(read *Read, out []byte) ([]byte, error) {
	if len(read.Seq) != len(read.Qual) {
		return out, fmt.Errorf("read %v has %v bases but %v quality scores", read.ID, len(read.Seq), len(read.Qual))
	}
	qual := make([]byte, len(read.Qual))
	for i, q := range read.Qual {
		c := q + w.offset
		if c < q || c > maxQualityChar {
			return out, fmt.Errorf("PHRED score %v of read %v cannot be encoded with offset %v", q, read.ID, w.offset)
		}
		qual[i] = c
	}
	record := &fastx.Record{
		ID:   []byte(read.ID),
		Name: []byte(read.ID),
		Seq:  &seq.Seq{Alphabet: seq.DNAredundant, Seq: read.Seq, Qual: qual},
	}
	return append(out, record.Format(0)...), nil
}

// Write writes blocks of bytes produced by Format.
func (w *Writer) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

// WriteRead formats and writes a single read.
func (w *Writer) WriteRead(read *Read) error {
	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()
	var err error
	if buf, err = w.Format(read, buf); err != nil {
		return err
	}
	_, err = w.w.Write(buf)
	return err
}

// File name extensions recognized by Open and Create.
const (
	FastqExt = ".fastq"
	FqExt    = ".fq"
	GzipExt  = ".gz"
)

// HasFastqExt reports whether name looks like a (possibly gzipped) FASTQ file name.
func HasFastqExt(name string) bool {
	name = strings.TrimSuffix(name, GzipExt)
	ext := filepath.Ext(name)
	return ext == FastqExt || ext == FqExt
}

// InputFile is a FASTQ file opened for input.
type InputFile struct {
	*Reader
	file *os.File
	gz   io.ReadCloser
}

// Open opens a FASTQ file for input. Compression is detected from the
// content of the file, not from its name: BGZF files are decompressed
// in parallel, other gzip files sequentially.
func Open(name string, offset int) (*InputFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	gz, err := utils.HandleBGZF(bufio.NewReader(file))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w, while opening %v", err, name)
	}
	reader, err := NewReader(gz, offset)
	if err != nil {
		_ = gz.Close()
		_ = file.Close()
		return nil, err
	}
	return &InputFile{Reader: reader, file: file, gz: gz}, nil
}

// Close closes the FASTQ input file.
func (f *InputFile) Close() error {
	err := f.gz.Close()
	if nerr := f.file.Close(); err == nil {
		err = nerr
	}
	return err
}

// OutputFile is a FASTQ file opened for output.
type OutputFile struct {
	*Writer
	file *os.File
	bgzf *bgzf.Writer
}

// Create creates a FASTQ file for output. If the name ends in .gz, the
// output is BGZF compressed with the given compression level.
func Create(name string, offset, level int) (*OutputFile, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	f := &OutputFile{file: file}
	var w io.Writer = file
	if filepath.Ext(name) == GzipExt {
		if f.bgzf, err = bgzf.NewWriter(file, level); err != nil {
			_ = file.Close()
			return nil, err
		}
		w = f.bgzf
	}
	if f.Writer, err = NewWriter(w, offset); err != nil {
		if f.bgzf != nil {
			_ = f.bgzf.Close()
		}
		_ = file.Close()
		return nil, err
	}
	return f, nil
}

// Close flushes any compressed blocks and closes the FASTQ output file.
func (f *OutputFile) Close() (err error) {
	if f.bgzf != nil {
		err = f.bgzf.Close()
	}
	if nerr := f.file.Close(); err == nil {
		err = nerr
	}
	return err
}

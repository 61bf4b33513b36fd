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

package bgzf

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/exascience/pargo/pipeline"
)

// maxInputSize bounds the uncompressed size of a block so that even
// incompressible data fits in a BGZF block after deflating.
const maxInputSize = 0xff00

// Compression levels, as in compress/flate.
const (
	NoCompression      = flate.NoCompression
	BestSpeed          = flate.BestSpeed
	BestCompression    = flate.BestCompression
	DefaultCompression = flate.DefaultCompression
	HuffmanOnly        = flate.HuffmanOnly
)

type (
	// Writer compresses a BGZF stream in parallel.
	Writer struct {
		w       io.Writer
		level   int
		p       pipeline.Pipeline
		wait    sync.WaitGroup
		pending *block
		blocks  chan *block
		closed  bool

		// used by the pipeline source only
		data interface{}
	}

	// pendingSource feeds uncompressed blocks to the pipeline of a Writer.
	pendingSource Writer
)

// Err implements the method of the pipeline.Source interface.
func (*pendingSource) Err() error {
	return nil
}

// Prepare implements the method of the pipeline.Source interface.
func (*pendingSource) Prepare(_ context.Context) int {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *pendingSource) Fetch(_ int) int {
	if b, ok := <-src.blocks; ok {
		src.data = b
		return 1
	}
	src.data = nil
	return 0
}

// Data implements the method of the pipeline.Source interface.
func (src *pendingSource) Data() interface{} {
	return src.data
}

var flateWriters sync.Map

func flateWriterPool(level int) *sync.Pool {
	pool, _ := flateWriters.LoadOrStore(level, &sync.Pool{})
	return pool.(*sync.Pool)
}

func deflate(b *block, level int) (*block, error) {
	out := blockPool.Get().(*block)
	buf := bytes.NewBuffer(out.data[:0])
	buf.Write(blockHeader)
	buf.Write([]byte{0, 0}) // BSIZE, patched below
	pool := flateWriterPool(level)
	var fw *flate.Writer
	if pooled := pool.Get(); pooled != nil {
		fw = pooled.(*flate.Writer)
		fw.Reset(buf)
	} else {
		var err error
		if fw, err = flate.NewWriter(buf, level); err != nil {
			return out, err
		}
	}
	defer pool.Put(fw)
	if _, err := fw.Write(b.data); err != nil {
		return out, err
	}
	if err := fw.Close(); err != nil {
		return out, err
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(b.data))
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(b.data)))
	buf.Write(trailer[:])
	out.data = buf.Bytes()
	if len(out.data) > maxBlockSize {
		return out, fmt.Errorf("compressed BGZF block of %v bytes exceeds maximum block size", len(out.data))
	}
	binary.LittleEndian.PutUint16(out.data[len(blockHeader):len(blockHeader)+2], uint16(len(out.data)-1))
	return out, nil
}

// NewWriter returns a Writer for the given io.Writer.
//
// Levels follow compress/flate: 1 (BestSpeed) to 9 (BestCompression),
// 0 (NoCompression), -1 (DefaultCompression), and -2 (HuffmanOnly).
// The caller must call Close to flush the last block and append the
// BGZF EOF marker.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid compression level %v", level)
	}
	bgzf := &Writer{
		w:       w,
		level:   level,
		pending: blockPool.Get().(*block),
		blocks:  make(chan *block, 1),
	}
	bgzf.pending.data = bgzf.pending.data[:0]
	bgzf.p.Source((*pendingSource)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			b := data.(*block)
			out, err := deflate(b, level)
			if err != nil {
				bgzf.p.SetErr(err)
			}
			blockPool.Put(b)
			return out
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			out := data.(*block)
			if _, err := w.Write(out.data); err != nil {
				bgzf.p.SetErr(err)
			}
			blockPool.Put(out)
			return nil
		})),
	)
	bgzf.wait.Add(1)
	go func() {
		defer bgzf.wait.Done()
		bgzf.p.Run()
		// keep draining so that Write never blocks after a pipeline error
		for b := range bgzf.blocks {
			blockPool.Put(b)
		}
	}()
	return bgzf, nil
}

func (bgzf *Writer) flush() {
	bgzf.blocks <- bgzf.pending
	bgzf.pending = blockPool.Get().(*block)
	bgzf.pending.data = bgzf.pending.data[:0]
}

// Write implements the method of the io.Writer interface.
func (bgzf *Writer) Write(p []byte) (n int, err error) {
	if bgzf.closed {
		return 0, errors.New("write to closed BGZF writer")
	}
	for len(p) > 0 {
		free := maxInputSize - len(bgzf.pending.data)
		if free == 0 {
			bgzf.flush()
			continue
		}
		if free > len(p) {
			free = len(p)
		}
		bgzf.pending.data = append(bgzf.pending.data, p[:free]...)
		p = p[free:]
		n += free
	}
	return n, nil
}

// Close flushes the last block, waits for all blocks to be written,
// and appends the BGZF EOF marker.
func (bgzf *Writer) Close() error {
	if bgzf.closed {
		return nil
	}
	bgzf.closed = true
	if len(bgzf.pending.data) > 0 {
		bgzf.flush()
	}
	close(bgzf.blocks)
	bgzf.wait.Wait()
	if err := bgzf.p.Err(); err != nil {
		return err
	}
	_, err := bgzf.w.Write(eofBlock)
	return err
}

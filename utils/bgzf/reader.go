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

// Package bgzf reads and writes blocked gzip (BGZF) streams in parallel.
//
// A BGZF stream is a series of gzip members of at most 64 KiB each,
// so any gzip reader can decompress it, but the blocks can also be
// inflated and deflated independently. Both Reader and Writer run a
// pargo pipeline that processes blocks in parallel and reassembles
// them in order.
package bgzf

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/exascience/pargo/pipeline"
)

// maxBlockSize is the maximum size of a BGZF block, compressed or not.
const maxBlockSize = 65536

// The BGZF header of a block without its BSIZE field: gzip magic,
// deflate, FEXTRA, and the 'BC' extra subfield of length 2.
var blockHeader = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00,
}

// eofBlock is the empty block that terminates a BGZF stream.
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// IsGzip determines whether the given reader produces a gzip stream
// by peeking at its first two bytes.
func IsGzip(buf *bufio.Reader) (bool, error) {
	magic, err := buf.Peek(2)
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return magic[0] == 0x1f && magic[1] == 0x8b, nil
}

// IsBGZF determines whether the given reader produces a BGZF stream
// by peeking at the header of its first gzip member.
func IsBGZF(buf *bufio.Reader) (bool, error) {
	header, err := buf.Peek(len(blockHeader))
	if err == io.EOF || err == bufio.ErrBufferFull {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return header[0] == 0x1f && header[1] == 0x8b && header[3]&0x04 != 0 &&
		header[12] == 'B' && header[13] == 'C', nil
}

type (
	// block is one compressed or uncompressed BGZF block.
	block struct {
		data  []byte
		crc32 uint32
		size  uint32
	}

	// Reader decompresses a BGZF stream in parallel.
	Reader struct {
		r       flate.Reader
		gz      *gzip.Reader
		p       pipeline.Pipeline
		wait    sync.WaitGroup
		blocks  chan *block
		done    chan struct{}
		ctx     context.Context
		cancel  func()
		current *block
		index   int

		// fields used by the pipeline source only
		err  error
		data interface{}
	}

	// blockSource reads compressed blocks for the pipeline of a Reader.
	blockSource Reader
)

var blockPool = sync.Pool{New: func() interface{} {
	return &block{data: make([]byte, 0, maxBlockSize)}
}}

func (src *blockSource) readBlock() (*block, error) {
	extra := src.gz.Extra
	for i := 0; i+4 <= len(extra); {
		slen := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if extra[i] == 'B' && extra[i+1] == 'C' && slen == 2 && i+6 <= len(extra) {
			bsize := int(binary.LittleEndian.Uint16(extra[i+4 : i+6]))
			cdataSize := bsize - len(extra) - 19
			if cdataSize < 0 || cdataSize > maxBlockSize {
				return nil, fmt.Errorf("invalid BGZF block size %v", bsize+1)
			}
			b := blockPool.Get().(*block)
			b.data = b.data[:cdataSize]
			if _, err := io.ReadFull(src.r, b.data); err != nil {
				return nil, err
			}
			var trailer [8]byte
			if _, err := io.ReadFull(src.r, trailer[:]); err != nil {
				return nil, err
			}
			b.crc32 = binary.LittleEndian.Uint32(trailer[0:4])
			b.size = binary.LittleEndian.Uint32(trailer[4:8])
			if b.size > maxBlockSize {
				return nil, fmt.Errorf("invalid uncompressed BGZF block size %v", b.size)
			}
			switch err := src.gz.Reset(src.r); err {
			case nil:
			case io.EOF:
				if b.size != 0 {
					return nil, errors.New("invalid BGZF stream: missing EOF block")
				}
				return b, io.EOF
			default:
				return nil, fmt.Errorf("%w, while reading a BGZF block header", err)
			}
			return b, nil
		}
		i += 4 + slen
	}
	return nil, errors.New("missing BC subfield in BGZF block header")
}

// Err implements the method of the pipeline.Source interface.
func (src *blockSource) Err() error {
	if src.err == io.EOF {
		return nil
	}
	return src.err
}

// Prepare implements the method of the pipeline.Source interface.
func (src *blockSource) Prepare(_ context.Context) int {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *blockSource) Fetch(_ int) int {
	if src.err != nil {
		src.data = nil
		return 0
	}
	b, err := src.readBlock()
	if err != nil {
		src.err = err
		if err != io.EOF {
			src.data = nil
			return 0
		}
	}
	src.data = b
	return 1
}

// Data implements the method of the pipeline.Source interface.
func (src *blockSource) Data() interface{} {
	return src.data
}

var flateReaders sync.Pool

func inflate(b *block) (*block, error) {
	compressed := bytes.NewReader(b.data)
	var fr io.ReadCloser
	if pooled := flateReaders.Get(); pooled != nil {
		fr = pooled.(io.ReadCloser)
		if err := fr.(flate.Resetter).Reset(compressed, nil); err != nil {
			fr = flate.NewReader(compressed)
		}
	} else {
		fr = flate.NewReader(compressed)
	}
	defer flateReaders.Put(fr)
	out := blockPool.Get().(*block)
	out.data = out.data[:b.size]
	if _, err := io.ReadFull(fr, out.data); err == io.EOF {
		return out, io.ErrUnexpectedEOF
	} else if err != nil {
		return out, err
	}
	if crc32.ChecksumIEEE(out.data) != b.crc32 {
		return out, errors.New("CRC-32 mismatch in BGZF block")
	}
	return out, fr.Close()
}

// NewReader returns a Reader for the given BGZF stream. The caller
// must call Close to stop the background decompression.
func NewReader(r flate.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w, while opening a BGZF stream", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	bgzf := &Reader{
		r:      r,
		gz:     gz,
		blocks: make(chan *block, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	bgzf.p.Source((*blockSource)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			b := data.(*block)
			out, err := inflate(b)
			if err != nil {
				bgzf.p.SetErr(err)
			}
			blockPool.Put(b)
			return out
		})),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			select {
			case <-bgzf.ctx.Done():
				bgzf.p.SetErr(bgzf.ctx.Err())
			case bgzf.blocks <- data.(*block):
			}
			return nil
		}, func() {
			close(bgzf.blocks)
		})),
	)
	bgzf.wait.Add(1)
	go func() {
		defer bgzf.wait.Done()
		defer close(bgzf.done)
		bgzf.p.Run()
	}()
	return bgzf, nil
}

func (bgzf *Reader) receive(b *block, ok bool) error {
	if !ok {
		bgzf.wait.Wait()
		if err := bgzf.p.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	bgzf.current = b
	bgzf.index = 0
	return nil
}

func (bgzf *Reader) nextBlock() error {
	select {
	case <-bgzf.ctx.Done():
		return bgzf.ctx.Err()
	case b, ok := <-bgzf.blocks:
		return bgzf.receive(b, ok)
	case <-bgzf.done:
		select {
		case b, ok := <-bgzf.blocks:
			return bgzf.receive(b, ok)
		default:
			if err := bgzf.p.Err(); err != nil {
				return err
			}
			return io.ErrUnexpectedEOF
		}
	}
}

// Read implements the method of the io.Reader interface.
func (bgzf *Reader) Read(p []byte) (n int, err error) {
	for bgzf.current == nil || bgzf.index == len(bgzf.current.data) {
		if bgzf.current != nil {
			blockPool.Put(bgzf.current)
			bgzf.current = nil
		}
		if err = bgzf.nextBlock(); err != nil {
			return 0, err
		}
	}
	n = copy(p, bgzf.current.data[bgzf.index:])
	bgzf.index += n
	return n, nil
}

// Close stops the decompression pipeline and reports any error it
// encountered.
func (bgzf *Reader) Close() error {
	bgzf.cancel()
	bgzf.wait.Wait()
	if err := bgzf.gz.Close(); err != nil {
		return err
	}
	if err := bgzf.p.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

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

package utils

import (
	"bufio"
	"compress/gzip"
	"io"
	"io/ioutil"

	"github.com/exascience/qfilter/utils/bgzf"
)

// HandleBGZF checks whether the given reader produces a gzip stream
// by peeking at its first bytes. It returns a parallel bgzf.Reader
// for BGZF streams, a sequential multi-member gzip.Reader for other
// gzip streams, and the given reader unchanged otherwise.
//
// The returned ReadCloser must be closed, but closing it does not
// close the underlying reader.
func HandleBGZF(buf *bufio.Reader) (io.ReadCloser, error) {
	if ok, err := bgzf.IsGzip(buf); err != nil {
		return nil, err
	} else if !ok {
		return ioutil.NopCloser(buf), nil
	}
	if ok, err := bgzf.IsBGZF(buf); err != nil {
		return nil, err
	} else if ok {
		r, err := bgzf.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := gzip.NewReader(buf)
	if err != nil {
		return nil, err
	}
	return r, nil
}

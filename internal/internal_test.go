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

package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a", "c"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0666); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	files, err := Directory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(files, ",") != "a,b,c" {
		t.Errorf("Directory failed: %v", files)
	}
	files, err = Directory(filepath.Join(dir, "b"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != "b" {
		t.Errorf("Directory on a file failed: %v", files)
	}
}

func TestStagingPathname(t *testing.T) {
	p1 := StagingPathname("/tmp/out/")
	p2 := StagingPathname("/tmp/out")
	if filepath.Dir(p1) != "/tmp" || !strings.HasPrefix(filepath.Base(p1), ".out-") {
		t.Errorf("StagingPathname failed: %v", p1)
	}
	if p1 == p2 {
		t.Error("StagingPathname is not unique")
	}
}

func TestByteBuffer(t *testing.T) {
	buf := ReserveByteBuffer()
	if len(buf) != 0 {
		t.Error("ReserveByteBuffer returned a non-empty buffer")
	}
	buf = append(buf, "data"...)
	ReleaseByteBuffer(buf)
	if buf = ReserveByteBuffer(); len(buf) != 0 {
		t.Error("ReserveByteBuffer returned a non-empty buffer")
	}
}

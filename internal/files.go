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
	"sort"

	"github.com/google/uuid"
)

// Directory returns the sorted names of the regular files in dir.
// If dir names a file, Directory returns its base name only.
func Directory(dir string) (files []string, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Base(dir)}, nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := f.Close()
		if err == nil {
			err = nerr
		}
	}()
	infos, err := f.Readdir(0)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Mode().IsRegular() {
			files = append(files, info.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// StagingPathname returns a unique hidden pathname next to target,
// where output for target can be prepared before it is renamed into
// place.
func StagingPathname(target string) string {
	dir, base := filepath.Split(filepath.Clean(target))
	return filepath.Join(dir, "."+base+"-"+uuid.New().String())
}

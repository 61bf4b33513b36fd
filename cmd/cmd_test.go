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

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0%", percentage(0, 0))
	assert.Equal(t, "50.00%", percentage(1, 2))
	assert.Equal(t, "100.00%", percentage(3, 3))
}

func TestCheckCreateDir(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, checkCreateDir("", dir), "existing directory")
	assert.False(t, checkCreateDir("", ""), "missing name")
	assert.False(t, checkCreateDir("", "--timed"), "flag instead of name")
	assert.True(t, checkCreateDir("", filepath.Join(dir, "a", "out")))
	_, err := os.Stat(filepath.Join(dir, "a"))
	assert.NoError(t, err, "parent directory is created")
}

func TestCheckCreate(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sub", "stats.csv")
	assert.True(t, checkCreate("", name))
	_, err := os.Stat(name)
	assert.True(t, os.IsNotExist(err), "probe file is removed")
	assert.True(t, checkExist("", dir))
	assert.False(t, checkExist("", name))
}

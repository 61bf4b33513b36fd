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

// Truncate returns the number of leading quality scores to keep.
//
// Scores are scanned from left to right while counting consecutive
// scores below minQuality. As soon as such a run grows longer than
// qualityWindow, the read is cut right before the first score of that
// run. A score of at least minQuality resets the count. If no run is
// long enough, Truncate returns len(scores).
//
// A qualityWindow of 0 cuts at the first score below minQuality.
func Truncate(scores []byte, minQuality, qualityWindow int) int {
	run := 0
	for i, q := range scores {
		if int(q) >= minQuality {
			run = 0
			continue
		}
		run++
		if run > qualityWindow {
			return i + 1 - run
		}
	}
	return len(scores)
}

// CountAmbiguous returns the number of ambiguous base calls (N) in seq.
func CountAmbiguous(seq []byte) (n int) {
	for _, base := range seq {
		if base == 'N' || base == 'n' {
			n++
		}
	}
	return n
}

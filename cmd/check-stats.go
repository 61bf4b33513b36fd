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
	"flag"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/exascience/qfilter/stats"
)

// CheckStatsHelp is the help string for this command.
const CheckStatsHelp = "\ncheck-stats parameters:\n" +
	"qfilter check-stats stats-file\n" +
	"[--per-sample]\n"

// CheckStats implements the qfilter check-stats command.
func CheckStats() error {
	var perSample bool

	var flags flag.FlagSet

	flags.BoolVar(&perSample, "per-sample", false, "log the statistics of every sample")

	parseFlags(&flags, 3, CheckStatsHelp)

	statsFile := getFilename(os.Args[2], CheckStatsHelp)

	if !checkExist("", statsFile) {
		os.Exit(1)
	}

	artifact, err := stats.ReadFile(statsFile)
	if err != nil {
		return err
	}

	log.Printf("%v is a valid filter statistics file.", statsFile)
	if perSample {
		for _, id := range artifact.SampleIDs() {
			s, _ := artifact.Get(id)
			log.Printf("%v: %v of %v reads retained (%v)", id, humanize.Comma(int64(s.Retained)), humanize.Comma(int64(s.Input)), percentage(s.Retained, s.Input))
		}
	}
	logTotals(artifact)
	return nil
}

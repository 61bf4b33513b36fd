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

// qfilter quality-filters demultiplexed sequencing reads. Reads are
// truncated at the first run of low-quality base calls that exceeds a
// tolerated window, and discarded when they end up too short or carry
// too many ambiguous bases. Per-sample statistics are written to a CSV
// file.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/qfilter/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: q-score, check-stats")
	fmt.Fprint(os.Stderr, "\n", cmd.QScoreHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.CheckStatsHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "q-score":
		err = cmd.QScore()
	case "check-stats":
		err = cmd.CheckStats()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

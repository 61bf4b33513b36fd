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
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/exascience/qfilter/demux"
	"github.com/exascience/qfilter/filters"
	"github.com/exascience/qfilter/stats"
	"github.com/exascience/qfilter/utils/bgzf"
)

// QScoreHelp is the help string for this command.
const QScoreHelp = "\nq-score parameters:\n" +
	"qfilter q-score demux-directory output-directory stats-file\n" +
	"[--min-quality nr]\n" +
	"[--quality-window nr]\n" +
	"[--min-length-fraction fraction]\n" +
	"[--max-ambiguous nr]\n" +
	"[--compression-level nr]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

func percentage(part, whole uint64) string {
	if whole == 0 {
		return "0%"
	}
	return humanize.FormatFloat("#,###.##", 100*float64(part)/float64(whole)) + "%"
}

func logTotals(artifact *stats.Artifact) {
	total := artifact.Totals()
	log.Printf("Samples: %v", humanize.Comma(int64(artifact.Len())))
	log.Printf("Input reads: %v", humanize.Comma(int64(total.Input)))
	log.Printf("Retained reads: %v (%v)", humanize.Comma(int64(total.Retained)), percentage(total.Retained, total.Input))
	log.Printf("Truncated reads: %v (%v)", humanize.Comma(int64(total.Truncated)), percentage(total.Truncated, total.Input))
	log.Printf("Too short after truncation: %v (%v)", humanize.Comma(int64(total.TooShort)), percentage(total.TooShort, total.Input))
	log.Printf("Too many ambiguous bases: %v (%v)", humanize.Comma(int64(total.TooManyAmbiguous)), percentage(total.TooManyAmbiguous, total.Input))
}

// QScore implements the qfilter q-score command.
func QScore() error {
	var (
		profile, logPath string
		nrOfThreads      int
		compressionLevel int
		timed            bool
	)

	params := filters.DefaultParameters()

	var flags flag.FlagSet

	flags.IntVar(&params.MinQuality, "min-quality", params.MinQuality, "minimum acceptable PHRED score")
	flags.IntVar(&params.QualityWindow, "quality-window", params.QualityWindow, "maximum number of consecutive low-quality base calls")
	flags.Float64Var(&params.MinLengthFraction, "min-length-fraction", params.MinLengthFraction, "minimum length of a truncated read as a fraction of its input length")
	flags.IntVar(&params.MaxAmbiguous, "max-ambiguous", params.MaxAmbiguous, "maximum number of ambiguous base calls")
	flags.IntVar(&compressionLevel, "compression-level", bgzf.DefaultCompression, "compression level of the output files")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 5, QScoreHelp)

	input := getFilename(os.Args[2], QScoreHelp)
	output := getFilename(os.Args[3], QScoreHelp)
	statsFile := getFilename(os.Args[4], QScoreHelp)

	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}

	if !checkCreateDir("", output) {
		sanityChecksFailed = true
	}

	if !checkCreate("", statsFile) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if err := params.Validate(); err != nil {
		sanityChecksFailed = true
		log.Println("Error:", err)
	}

	if compressionLevel < bgzf.HuffmanOnly || compressionLevel > bgzf.BestCompression {
		sanityChecksFailed = true
		log.Println("Error: Invalid compression-level: ", compressionLevel)
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, QScoreHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " q-score ", input, " ", output, " ", statsFile)
	fmt.Fprint(&command, " --min-quality ", params.MinQuality)
	fmt.Fprint(&command, " --quality-window ", params.QualityWindow)
	fmt.Fprint(&command, " --min-length-fraction ", params.MinLengthFraction)
	fmt.Fprint(&command, " --max-ambiguous ", params.MaxAmbiguous)
	if compressionLevel != bgzf.DefaultCompression {
		fmt.Fprint(&command, " --compression-level ", compressionLevel)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	ctx, cancel := interruptContext()
	defer cancel()

	var archive *demux.Archive
	if err := timedRun(timed, profile, "Opening demultiplexed archive.", 1, func() (err error) {
		if archive, err = demux.Open(input); err != nil {
			return &filters.IntegrityError{Err: err}
		}
		return nil
	}); err != nil {
		return err
	}
	log.Printf("Found %v samples with phred offset %v.", humanize.Comma(int64(len(archive.Samples))), archive.PhredOffset)

	var artifact *stats.Artifact
	if err := timedRun(timed, profile, "Filtering reads and writing filter statistics.", 2, func() (err error) {
		artifact, err = filters.QScoreFiles(ctx, archive, output, statsFile, params, compressionLevel)
		return err
	}); err != nil {
		return err
	}

	logTotals(artifact)
	return nil
}

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

/*
Package fastq implements reading and writing of FASTQ files.

Reads are parsed into Read values that carry decoded PHRED scores rather
than the ASCII characters of the quality line. The PHRED offset used for
decoding and encoding is a property of a Reader or Writer, and is
typically 33 (Sanger / Illumina 1.8+) or 64 (Illumina 1.3 to 1.7).

A Reader implements the pargo pipeline.Source interface, so that the
reads of a FASTQ file can be streamed in batches through a pargo
pipeline.
*/
package fastq

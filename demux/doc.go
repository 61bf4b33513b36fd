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
Package demux reads and writes directory-backed archives of
demultiplexed sequencing reads.

An archive directory holds one FASTQ file of forward reads per sample,
a MANIFEST file that maps sample identifiers to file names, and a
metadata.yml file that records the PHRED offset of the quality scores:

	MANIFEST
	metadata.yml
	sample-1_0_L001_R1_001.fastq.gz
	sample-2_1_L001_R1_001.fastq.gz

The MANIFEST is a comma-separated table with the header
"sample-id,filename,direction"; lines starting with '#' are comments.
Archives without a MANIFEST are accepted when their files follow the
Casava 1.8 naming scheme, in which case sample identifiers are derived
from the file names. Archives without a metadata.yml use PHRED offset 33.
*/
package demux

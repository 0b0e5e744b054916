// HoneyBADGER: detecting CNVs and LOH in single-cell RNA-seq data.
// Copyright (c) 2026 the HoneyBADGER authors.

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
// <https://github.com/sqsun/HoneyBADGER/blob/master/LICENSE.txt>.

package bed

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sqsun/HoneyBADGER/utils"
)

// A Bed represents the regions of a BED file, grouped by chromosome.
// See https://genome.ucsc.edu/FAQ/FAQformat.html#format1
type Bed struct {
	// Track lines, in the order they appear in the file.
	Tracks []*Track
	// Maps chromosome name to regions, sorted by Start.
	RegionMap map[utils.Symbol][]*Region
}

// A Track is a struct for representing BED track lines.
type Track struct {
	// All track fields are optional.
	Fields map[string]string
}

// A Region is a struct for representing intervals as defined in a BED
// file. Start is 0-based, End is exclusive.
type Region struct {
	Chrom  utils.Symbol
	Start  int32
	End    int32
	Name   string // "" if absent
	Score  int    // -1 if absent
	Strand byte   // '+', '-' or 0 if absent
}

// NewRegion allocates and initializes a new Region. Optional fields
// are given in order: name, score, strand. Later optional fields
// (thickStart and beyond) are ignored.
func NewRegion(chrom utils.Symbol, start int32, end int32, fields []string) (*Region, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid region %v:%v-%v", *chrom, start, end)
	}
	region := &Region{Chrom: chrom, Start: start, End: end, Score: -1}
	if len(fields) > 0 && fields[0] != "." {
		region.Name = fields[0]
	}
	if len(fields) > 1 && fields[1] != "." {
		score, err := strconv.Atoi(fields[1])
		if err != nil || score < 0 || score > 1000 {
			return nil, fmt.Errorf("invalid Score field: %v", fields[1])
		}
		region.Score = score
	}
	if len(fields) > 2 && fields[2] != "." {
		if fields[2] != "+" && fields[2] != "-" {
			return nil, fmt.Errorf("invalid Strand field: %v", fields[2])
		}
		region.Strand = fields[2][0]
	}
	return region, nil
}

// NewBed allocates and initializes an empty bed.
func NewBed() *Bed {
	return &Bed{
		RegionMap: make(map[utils.Symbol][]*Region),
	}
}

// AddRegion adds a region to the bed region map.
func (bed *Bed) AddRegion(region *Region) {
	bed.RegionMap[region.Chrom] = append(bed.RegionMap[region.Chrom], region)
}

// Chroms returns the chromosomes of the bed in natural genome order.
func (bed *Bed) Chroms() []utils.Symbol {
	chroms := make([]utils.Symbol, 0, len(bed.RegionMap))
	for chrom := range bed.RegionMap {
		chroms = append(chroms, chrom)
	}
	sort.Slice(chroms, func(i, j int) bool {
		return utils.CompareChrom(*chroms[i], *chroms[j]) < 0
	})
	return chroms
}

func (bed *Bed) sortRegions() {
	for _, regions := range bed.RegionMap {
		sort.SliceStable(regions, func(i, j int) bool {
			return regions[i].Start < regions[j].Start
		})
	}
}

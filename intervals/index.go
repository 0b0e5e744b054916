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

package intervals

import "sort"

// Index answers containment queries over possibly overlapping
// intervals on several chromosomes, such as gene bodies that share
// positions with other genes.
type Index struct {
	chroms map[string]*chromIndex
}

type chromIndex struct {
	intervals []Interval // sorted by Start
	maxEnd    []int32    // maxEnd[i] = max End over intervals[:i+1]
	territory []Interval // flattened union of intervals
}

// NewIndex builds an Index. The interval slices are sorted in place.
func NewIndex(intervals map[string][]Interval) *Index {
	index := &Index{chroms: make(map[string]*chromIndex, len(intervals))}
	for chrom, ivals := range intervals {
		ParallelSortByStart(ivals)
		maxEnd := make([]int32, len(ivals))
		for i, ival := range ivals {
			maxEnd[i] = ival.End
			if i > 0 && maxEnd[i-1] > maxEnd[i] {
				maxEnd[i] = maxEnd[i-1]
			}
		}
		territory := ParallelFlatten(append([]Interval(nil), ivals...))
		index.chroms[chrom] = &chromIndex{intervals: ivals, maxEnd: maxEnd, territory: territory}
	}
	return index
}

// Covered reports whether pos falls inside any interval on chrom.
func (index *Index) Covered(chrom string, pos int32) bool {
	c, ok := index.chroms[chrom]
	if !ok {
		return false
	}
	return Overlap(c.territory, pos, pos)
}

// Containing returns the IDs of all intervals on chrom that contain
// pos, in order of their Start position.
func (index *Index) Containing(chrom string, pos int32) (ids []int) {
	c, ok := index.chroms[chrom]
	if !ok || !Overlap(c.territory, pos, pos) {
		return nil
	}
	// intervals[:high] are all intervals starting at or before pos
	high := sort.Search(len(c.intervals), func(i int) bool {
		return c.intervals[i].Start > pos
	})
	// maxEnd is non-decreasing, so everything before low ends before pos
	low := sort.Search(high, func(i int) bool {
		return c.maxEnd[i] >= pos
	})
	for _, ival := range c.intervals[low:high] {
		if ival.End >= pos {
			ids = append(ids, ival.ID)
		}
	}
	return ids
}

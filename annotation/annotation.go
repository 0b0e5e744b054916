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

// Package annotation holds gene coordinates and SNP positions, their
// natural genome order, and the mapping of SNPs onto genes.
package annotation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sqsun/HoneyBADGER/utils"
)

// A Gene is an annotated gene body. Coordinates are 1-based and
// closed.
type Gene struct {
	Name  string `csv:"gene"`
	Chrom string `csv:"chrom"`
	Start int32  `csv:"start"`
	End   int32  `csv:"end"`
}

// A SNP is a single-nucleotide variant position, named chr:pos in
// input matrices.
type SNP struct {
	Name  string
	Chrom utils.Symbol
	Pos   int32
}

// ParseSNP parses a SNP name of the form chr:pos, optionally followed
// by :ref:alt or similar suffixes, which are ignored. Names of the
// form chr_pos are accepted as well.
func ParseSNP(name string) (SNP, error) {
	sep := ":"
	if !strings.Contains(name, sep) {
		sep = "_"
	}
	parts := strings.Split(name, sep)
	if len(parts) < 2 || parts[0] == "" {
		return SNP{}, fmt.Errorf("SNP name %v is not of the form chr:pos", name)
	}
	pos, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil || pos <= 0 {
		return SNP{}, fmt.Errorf("SNP name %v has an invalid position", name)
	}
	return SNP{Name: name, Chrom: utils.Intern(parts[0]), Pos: int32(pos)}, nil
}

// Validate checks that a gene has a name, a chromosome and a
// well-formed range.
func (g Gene) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("gene without a name at %v:%v-%v", g.Chrom, g.Start, g.End)
	}
	if g.Chrom == "" {
		return fmt.Errorf("gene %v has no chromosome", g.Name)
	}
	if g.Start <= 0 || g.End < g.Start {
		return fmt.Errorf("gene %v has an invalid range %v-%v", g.Name, g.Start, g.End)
	}
	return nil
}

// GeneLess orders genes by chromosome (naturally), start, end and
// name.
func GeneLess(a, b *Gene) bool {
	if c := utils.CompareChrom(a.Chrom, b.Chrom); c != 0 {
		return c < 0
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	return a.Name < b.Name
}

// SNPLess orders SNPs by chromosome (naturally), position and name.
func SNPLess(a, b *SNP) bool {
	if c := utils.CompareChrom(*a.Chrom, *b.Chrom); c != 0 {
		return c < 0
	}
	if a.Pos != b.Pos {
		return a.Pos < b.Pos
	}
	return a.Name < b.Name
}

// SortGenes sorts genes into genome order.
func SortGenes(genes []Gene) {
	sort.SliceStable(genes, func(i, j int) bool {
		return GeneLess(&genes[i], &genes[j])
	})
}

// GenomeOrder returns the permutation that sorts items into genome
// order, given a less function on indices. Useful to reorder matrix
// rows alongside their annotation.
func GenomeOrder(n int, less func(i, j int) bool) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(order[i], order[j])
	})
	return order
}

// ByName indexes genes by name. The first occurrence of a duplicated
// name wins; the number of ignored duplicates is returned.
func ByName(genes []Gene) (index map[string]*Gene, duplicates int) {
	index = make(map[string]*Gene, len(genes))
	for i := range genes {
		if _, ok := index[genes[i].Name]; ok {
			duplicates++
			continue
		}
		index[genes[i].Name] = &genes[i]
	}
	return index, duplicates
}

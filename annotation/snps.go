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

package annotation

import (
	"github.com/sqsun/HoneyBADGER/intervals"
	"github.com/sqsun/HoneyBADGER/utils"
)

// GeneMap is the result of mapping SNPs onto gene bodies.
type GeneMap struct {
	// Genes[i] lists the indices (into the gene slice) of all genes
	// whose body contains SNP i; empty for intergenic SNPs.
	Genes [][]int
	// Intergenic counts SNPs that fall outside every gene.
	Intergenic int
}

// MapSNPs maps every SNP onto the genes that contain it.
func MapSNPs(snps []SNP, genes []Gene) GeneMap {
	byChrom := make(map[string][]intervals.Interval)
	for i, gene := range genes {
		chrom := utils.CanonicalChrom(gene.Chrom)
		byChrom[chrom] = append(byChrom[chrom], intervals.Interval{Start: gene.Start, End: gene.End, ID: i})
	}
	index := intervals.NewIndex(byChrom)
	result := GeneMap{Genes: make([][]int, len(snps))}
	for i, snp := range snps {
		chrom := utils.CanonicalChrom(*snp.Chrom)
		if !index.Covered(chrom, snp.Pos) {
			result.Intergenic++
			continue
		}
		result.Genes[i] = index.Containing(chrom, snp.Pos)
	}
	return result
}

// PointIntervals returns, per canonical chromosome, the positions of
// the given SNPs as point intervals labeled with their index. The
// SNPs must be in genome order, so every slice is sorted.
func PointIntervals(snps []SNP) map[string][]intervals.Interval {
	result := make(map[string][]intervals.Interval)
	for i, snp := range snps {
		chrom := utils.CanonicalChrom(*snp.Chrom)
		result[chrom] = append(result[chrom], intervals.Interval{Start: snp.Pos, End: snp.Pos, ID: i})
	}
	return result
}

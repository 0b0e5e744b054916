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

package cnv

import (
	"fmt"
	"sort"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/intervals"
	"github.com/sqsun/HoneyBADGER/utils"
)

// Kind is the type of a copy-number event.
type Kind int

// Event kinds.
const (
	Amplification Kind = iota
	Deletion
	LOH
)

var kindNames = [...]string{"amplification", "deletion", "LOH"}

func (k Kind) String() string {
	return kindNames[k]
}

// Source tells which data a region was identified from.
type Source int

// Region sources.
const (
	GeneBased Source = iota
	AlleleBased
)

var sourceNames = [...]string{"gene-based", "allele-based"}

func (s Source) String() string {
	return sourceNames[s]
}

// A Posterior holds the posterior probabilities of one cell for one
// region. Models that could not be evaluated for the cell are NaN.
type Posterior struct {
	Amp, Del, Neutral float64
	LOH               float64
	CombinedDel       float64
}

// A Region is a contiguous run of genes or SNPs on one chromosome
// with a putative copy-number event. Coordinates are 1-based, closed.
type Region struct {
	Chrom      string
	Start, End int32
	Kind       Kind
	Source     Source
	// Genes and SNPs name the features inside the region, from both
	// branches when available. The genes of an allele-based region
	// include those its SNPs were mapped to by SetGeneFactors.
	Genes []string
	SNPs  []string
	// LLR is the log-likelihood ratio of the event over the neutral
	// state on the pooled data of the cells the region was found in,
	// and PValue its chi-square p-value.
	LLR, PValue float64
	// Confidence is the mean HMM posterior of the event state over the
	// region, on the same data as LLR.
	Confidence float64
	// Posteriors are indexed like HoneyBadger.Cells; nil until
	// retested.
	Posteriors []Posterior

	genes, snps []int
	first, last int
}

type regionKey struct {
	source      Source
	kind        Kind
	chrom       string
	first, last int
}

func (region *Region) key() regionKey {
	return regionKey{region.Source, region.Kind, region.Chrom, region.first, region.last}
}

// ID returns a readable identifier that is unique within an analysis.
func (region *Region) ID() string {
	return fmt.Sprintf("%v:%v-%v:%v:%v", region.Chrom, region.Start, region.End, region.Kind, region.Source)
}

// addRegion adds a region to the boundary set unless it is already
// there, in which case the strongest evidence is kept.
func (hb *HoneyBadger) addRegion(region *Region) bool {
	key := region.key()
	if existing, ok := hb.keys[key]; ok {
		if region.LLR > existing.LLR {
			existing.LLR, existing.PValue, existing.Confidence = region.LLR, region.PValue, region.Confidence
		}
		return false
	}
	hb.keys[key] = region
	hb.attachFeatures(region)
	hb.Regions = append(hb.Regions, region)
	return true
}

// dropRegions removes all regions from the given source.
func (hb *HoneyBadger) dropRegions(source Source) {
	kept := hb.Regions[:0]
	for _, region := range hb.Regions {
		if region.Source == source {
			delete(hb.keys, region.key())
		} else {
			kept = append(kept, region)
		}
	}
	for i := len(kept); i < len(hb.Regions); i++ {
		hb.Regions[i] = nil
	}
	hb.Regions = kept
}

// attachFeatures fills in the genes and SNPs of a region from both
// branches: the features of its own source are already set, the
// others are found by position.
func (hb *HoneyBadger) attachFeatures(region *Region) {
	if region.Source != GeneBased {
		region.genes = hb.genesOf(region)
	}
	if region.Source != AlleleBased {
		region.snps = nil
		points := hb.snpIndex[utils.CanonicalChrom(region.Chrom)]
		for _, point := range intervals.Intersect(points, region.Start, region.End) {
			region.snps = append(region.snps, point.ID)
		}
	}
	region.Genes = region.Genes[:0]
	seen := make(map[string]bool, len(region.genes))
	for _, g := range region.genes {
		name := hb.Genes[g].Name
		seen[name] = true
		region.Genes = append(region.Genes, name)
	}
	if region.Source != GeneBased && hb.snpGenes != nil {
		for _, s := range region.snps {
			for _, name := range hb.snpGenes[s] {
				if !seen[name] {
					seen[name] = true
					region.Genes = append(region.Genes, name)
				}
			}
		}
	}
	region.SNPs = region.SNPs[:0]
	for _, s := range region.snps {
		region.SNPs = append(region.SNPs, hb.SNPs[s].Name)
	}
}

// genesOf finds the expression genes of an allele-based region: the
// genes mapped to its SNPs by SetGeneFactors when available,
// otherwise the genes overlapping its span.
func (hb *HoneyBadger) genesOf(region *Region) (genes []int) {
	if hb.snpGenes != nil {
		byName := make(map[string]int, len(hb.Genes))
		for i := range hb.Genes {
			byName[hb.Genes[i].Name] = i
		}
		seen := make(map[int]bool)
		for _, s := range region.snps {
			for _, name := range hb.snpGenes[s] {
				if g, ok := byName[name]; ok && !seen[g] {
					seen[g] = true
					genes = append(genes, g)
				}
			}
		}
		sort.Ints(genes)
		return genes
	}
	for i := range hb.Genes {
		gene := &hb.Genes[i]
		if gene.End >= region.Start && gene.Start <= region.End && utils.SameChrom(gene.Chrom, region.Chrom) {
			genes = append(genes, i)
		}
	}
	return genes
}

// reattachFeatures refreshes the cross-branch features of all regions
// after data of one branch changed.
func (hb *HoneyBadger) reattachFeatures() {
	for _, region := range hb.Regions {
		hb.attachFeatures(region)
	}
}

// A featureRange is a run [lo, hi) of genes or SNPs on one
// chromosome.
type featureRange struct {
	chrom  string
	lo, hi int
}

func chromRanges(n int, chromOf func(i int) string, chroms []string) (ranges []featureRange) {
	for lo := 0; lo < n; {
		chrom := chromOf(lo)
		hi := lo + 1
		for hi < n && chromOf(hi) == chrom {
			hi++
		}
		if selected(chrom, chroms) {
			ranges = append(ranges, featureRange{chrom: chrom, lo: lo, hi: hi})
		}
		lo = hi
	}
	return ranges
}

func selected(chrom string, chroms []string) bool {
	if chroms == nil {
		return true
	}
	for _, c := range chroms {
		if utils.SameChrom(c, chrom) {
			return true
		}
	}
	return false
}

func (hb *HoneyBadger) geneRanges(chroms []string) []featureRange {
	return chromRanges(len(hb.Genes), func(i int) string { return hb.Genes[i].Chrom }, chroms)
}

func (hb *HoneyBadger) snpRanges(chroms []string) []featureRange {
	return chromRanges(len(hb.SNPs), func(i int) string { return *hb.SNPs[i].Chrom }, chroms)
}

func geneSpan(genes []annotation.Gene, lo, hi int) (start, end int32) {
	start, end = genes[lo].Start, genes[lo].End
	for _, gene := range genes[lo+1 : hi+1] {
		if gene.End > end {
			end = gene.End
		}
	}
	return start, end
}

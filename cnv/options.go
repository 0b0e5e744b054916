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

import "github.com/sqsun/HoneyBADGER/cluster"

// GexpOptions configure SetGexpMats.
type GexpOptions struct {
	// Filter drops lowly expressed genes.
	Filter bool
	// A gene is kept if its mean expression in the test cells and in
	// the reference both exceed MinMeanBoth, or its test mean exceeds
	// MinMeanTest, or its reference value exceeds MinMeanRef.
	MinMeanBoth, MinMeanTest, MinMeanRef float64
	// Scale centers every cell and the reference to mean 0.
	Scale bool
}

// DefaultGexpOptions returns the default expression options.
func DefaultGexpOptions() GexpOptions {
	return GexpOptions{
		Filter:      true,
		MinMeanBoth: 4.5,
		MinMeanTest: 6,
		MinMeanRef:  8,
		Scale:       true,
	}
}

// MvFitOptions configure SetMvFit.
type MvFitOptions struct {
	// NumGenes are the gene set sizes to sample.
	NumGenes []int
	// Reps is the number of random gene sets per size.
	Reps int
	// Seed makes sampling reproducible, independently of Threads.
	Seed int64
	// Threads bounds the parallelism; 0 means the number of CPUs.
	Threads int
}

// DefaultMvFitOptions returns the default fit options: gene set sizes
// 5, 10, ..., 100 with 50 repetitions each.
func DefaultMvFitOptions() MvFitOptions {
	numGenes := make([]int, 0, 20)
	for k := 5; k <= 100; k += 5 {
		numGenes = append(numGenes, k)
	}
	return MvFitOptions{NumGenes: numGenes, Reps: 50}
}

// DevOptions configure SetGexpDev.
type DevOptions struct {
	// The deviance is the 1-Alpha quantile of absolute window means.
	Alpha float64
	// N is the number of random windows.
	N int
	// WindowSize is the number of contiguous genes per window.
	WindowSize int
	Seed       int64
}

// DefaultDevOptions returns the default deviance options.
func DefaultDevOptions() DevOptions {
	return DevOptions{Alpha: 0.25, N: 100, WindowSize: 101}
}

// BoundaryOptions configure CalcGexpCnvBoundaries.
type BoundaryOptions struct {
	// Init discards earlier gene-based regions and clusters cells on
	// their expression profiles instead of on posteriors.
	Init bool
	// MinTraverse is the minimum number of cells in a dendrogram node
	// for the node to be segmented.
	MinTraverse int
	// T is the probability of switching state between adjacent genes.
	T float64
	// MinNumGenes is the minimum number of genes in a region.
	MinNumGenes int
	// Trim is the fraction of cells trimmed from each tail when
	// averaging a node's expression.
	Trim float64
	// Chroms restricts the search; nil means all chromosomes.
	Chroms []string
	// MaxIterations bounds the number of cluster-segment-retest
	// rounds; the rounds also stop when no new region is found.
	MaxIterations int
	Threads       int
}

// DefaultBoundaryOptions returns the default boundary options.
func DefaultBoundaryOptions() BoundaryOptions {
	return BoundaryOptions{
		Init:          true,
		MinTraverse:   3,
		T:             1e-6,
		MinNumGenes:   3,
		Trim:          0.1,
		MaxIterations: 1,
	}
}

// AlleleOptions configure SetAlleleMats.
type AlleleOptions struct {
	// Filter keeps only covered, putatively heterozygous SNPs.
	Filter bool
	// SNPs whose bulk allele fraction is below the threshold, or above
	// one minus the threshold, are considered homozygous.
	HetDevianceThreshold float64
	// MinCell is the minimum number of cells covering a SNP.
	MinCell int
	Threads int
}

// DefaultAlleleOptions returns the default allele options.
func DefaultAlleleOptions() AlleleOptions {
	return AlleleOptions{Filter: true, HetDevianceThreshold: 0.05, MinCell: 3}
}

// AlleleBoundaryOptions configure CalcAlleleCnvBoundaries.
type AlleleBoundaryOptions struct {
	Init        bool
	MinTraverse int
	T           float64
	// Pd and Pn are the expected lesser-allele fractions under LOH and
	// under a neutral heterozygous state.
	Pd, Pn     float64
	MinNumSnps int
	Chroms     []string
	Threads    int
}

// DefaultAlleleBoundaryOptions returns the default allele boundary
// options.
func DefaultAlleleBoundaryOptions() AlleleBoundaryOptions {
	return AlleleBoundaryOptions{
		Init:        true,
		MinTraverse: 3,
		T:           1e-6,
		Pd:          0.1,
		Pn:          0.45,
		MinNumSnps:  5,
	}
}

// RetestOptions configure RetestIdentifiedCnvs.
type RetestOptions struct {
	// RetestBoundGenes computes expression-based posteriors.
	RetestBoundGenes bool
	// RetestBoundSnps computes allele-based posteriors.
	RetestBoundSnps bool
	// Prior probabilities of amplification, deletion and neutral.
	PriorAmp, PriorDel, PriorNeutral float64
	Pd, Pn                           float64
	Threads                          int
}

// DefaultRetestOptions returns the default, expression-only, retest
// options.
func DefaultRetestOptions() RetestOptions {
	return RetestOptions{
		RetestBoundGenes: true,
		PriorAmp:         0.25,
		PriorDel:         0.25,
		PriorNeutral:     0.5,
		Pd:               0.1,
		Pn:               0.45,
	}
}

// SummaryOptions configure SummarizeResults.
type SummaryOptions struct {
	GeneBased, AlleleBased bool
	// T is the posterior above which a cell is called.
	T float64
	// Allele-based regions with fewer SNPs are not reported.
	MinNumSnps int
}

// DefaultSummaryOptions returns the default summary options.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{GeneBased: true, AlleleBased: true, T: 0.75, MinNumSnps: 5}
}

// ClusterOptions configure ClusterCells.
type ClusterOptions struct {
	Linkage cluster.Linkage
	Threads int
}

// DefaultClusterOptions returns average linkage.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{Linkage: cluster.Average}
}

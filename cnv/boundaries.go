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
	"math"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sqsun/HoneyBADGER/cluster"
	"github.com/sqsun/HoneyBADGER/hmm"
)

const (
	gexpSmoothing   = 101
	alleleSmoothing = 25
	minSD           = 1e-6
)

// smooth returns the centered moving average of a profile, computed
// separately within every feature range.
func smooth(profile []float64, ranges []featureRange, window int) []float64 {
	result := make([]float64, 0, len(profile))
	half := window / 2
	for _, r := range ranges {
		prefix := make([]float64, r.hi-r.lo+1)
		for i := r.lo; i < r.hi; i++ {
			prefix[i-r.lo+1] = prefix[i-r.lo] + profile[i]
		}
		n := r.hi - r.lo
		for i := 0; i < n; i++ {
			lo, hi := i-half, i+half+1
			if lo < 0 {
				lo = 0
			}
			if hi > n {
				hi = n
			}
			result = append(result, (prefix[hi]-prefix[lo])/float64(hi-lo))
		}
	}
	return result
}

// clusterColumns clusters the given cells on their feature vectors.
func clusterColumns(features [][]float64, correlation bool, threads int) (*cluster.Tree, error) {
	var dist *cluster.Distance
	if correlation {
		dist = cluster.Correlation(features, threads)
	} else {
		dist = cluster.Euclidean(features, threads)
	}
	return cluster.Hclust(dist, cluster.Average)
}

// traverse collects the distinct cell sets of all dendrogram nodes
// with at least minCells cells, root first.
func traverse(tree *cluster.Tree, minCells int) (groups [][]int) {
	tree.Walk(func(node *cluster.Node, _ int) bool {
		if node.Size < minCells {
			return false
		}
		groups = append(groups, node.Leaves())
		return true
	})
	return groups
}

// posteriorFeatures returns, per column of a branch, one feature per
// retested region of the given source: Amp - Del for gene-based
// regions, LOH for allele-based ones. NaN features are 0. Returns nil
// when no such region has posteriors.
func (hb *HoneyBadger) posteriorFeatures(source Source, columns []int) [][]float64 {
	var regions []*Region
	for _, region := range hb.Regions {
		if region.Source == source && region.Posteriors != nil {
			regions = append(regions, region)
		}
	}
	if len(regions) == 0 {
		return nil
	}
	cellOf := make(map[int]int, len(columns))
	for c, col := range columns {
		if col >= 0 {
			cellOf[col] = c
		}
	}
	features := make([][]float64, len(cellOf))
	for col := range features {
		row := make([]float64, len(regions))
		for i, region := range regions {
			p := region.Posteriors[cellOf[col]]
			v := p.LOH
			if source == GeneBased {
				v = p.Amp - p.Del
			}
			if !math.IsNaN(v) {
				row[i] = v
			}
		}
		features[col] = row
	}
	return features
}

var chiSquared1 = distuv.ChiSquared{K: 1}

func regionPValue(llr float64) float64 {
	if llr <= 0 {
		return 1
	}
	p := chiSquared1.Survival(2 * llr)
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return p
}

// runConfidence is the mean posterior probability of a run's state
// over the run.
func runConfidence(posterior [][]float64, run hmm.Run) float64 {
	var sum float64
	for t := run.Start; t <= run.End; t++ {
		sum += posterior[t][run.State]
	}
	return sum / float64(run.Len())
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CalcGexpCnvBoundaries identifies regions of amplification and
// deletion from expression. Cells are clustered, every dendrogram
// node with at least MinTraverse cells is segmented with a 3-state
// HMM, and the resulting regions are added to the boundary set. With
// more than one iteration, the new regions are retested and the cells
// reclustered on their posteriors before the next round. Returns the
// number of new regions.
func (hb *HoneyBadger) CalcGexpCnvBoundaries(opts BoundaryOptions) (int, error) {
	switch {
	case hb.Norm == nil:
		return 0, ErrNoGexp
	case hb.mvFit == nil:
		return 0, ErrNoMvFit
	case hb.dev == 0:
		return 0, ErrNoDev
	}
	if opts.MinTraverse < 1 || opts.MinNumGenes < 1 {
		return 0, fmt.Errorf("invalid boundary options %+v", opts)
	}
	model, err := hmm.NewModel([]float64{0.25, 0.5, 0.25}, opts.T)
	if err != nil {
		return 0, err
	}
	ranges := hb.geneRanges(opts.Chroms)
	if len(ranges) == 0 {
		return 0, fmt.Errorf("no genes on chromosomes %v", opts.Chroms)
	}
	if opts.Init {
		hb.dropRegions(GeneBased)
	}
	iterations := opts.MaxIterations
	if iterations < 1 {
		iterations = 1
	}

	ncells := len(hb.gexp)
	total := 0
	for iter := 0; iter < iterations; iter++ {
		features := hb.posteriorFeatures(GeneBased, hb.gexpCol)
		correlation := features == nil || (opts.Init && iter == 0)
		if correlation {
			allRanges := hb.geneRanges(nil)
			features = make([][]float64, ncells)
			parallel.Range(0, ncells, opts.Threads, func(low, high int) {
				for c := low; c < high; c++ {
					features[c] = smooth(hb.gexp[c], allRanges, gexpSmoothing)
				}
			})
		}
		tree, err := clusterColumns(features, correlation, opts.Threads)
		if err != nil {
			return total, err
		}
		groups := traverse(tree, opts.MinTraverse)
		hb.logf("Expression round %v: segmenting %v nodes", iter+1, len(groups))

		added := 0
		for _, group := range groups {
			profile, sd := hb.nodeProfile(group, opts.Trim)
			regions, err := hb.segmentGexp(model, profile, sd, ranges, opts)
			if err != nil {
				return total, err
			}
			for _, region := range regions {
				region.LLR = hb.gexpLLR(region, profile, sd)
				region.PValue = regionPValue(region.LLR)
				if hb.addRegion(region) {
					added++
				}
			}
		}
		total += added
		hb.logf("Expression round %v: %v new regions", iter+1, added)
		if added == 0 || iter+1 == iterations {
			break
		}
		retest := DefaultRetestOptions()
		retest.Threads = opts.Threads
		if err := hb.retest(retest, GeneBased); err != nil {
			return total, err
		}
	}
	return total, nil
}

// nodeProfile returns the per-gene trimmed mean of the normalized
// expression over a group of cells, and the expected standard
// deviation of a single gene of that profile.
func (hb *HoneyBadger) nodeProfile(cells []int, trim float64) (profile []float64, sd float64) {
	profile = make([]float64, len(hb.Genes))
	values := make([]float64, len(cells))
	for g := range profile {
		for i, c := range cells {
			values[i] = hb.gexp[c][g]
		}
		profile[g] = trimmedMean(values, trim)
	}
	for _, c := range cells {
		sd += hb.ExpectedSD(c, 1)
	}
	sd /= float64(len(cells))
	sd /= math.Sqrt(float64(len(cells)))
	if !(sd > minSD) {
		sd = minSD
	}
	return profile, sd
}

// gexpEmissions returns the log densities of the profile values under
// deletion, neutral and amplification.
func (hb *HoneyBadger) gexpEmissions(profile []float64, sd float64) [][]float64 {
	states := [3]distuv.Normal{
		{Mu: -hb.dev, Sigma: sd},
		{Mu: 0, Sigma: sd},
		{Mu: hb.dev, Sigma: sd},
	}
	emissions := make([][]float64, len(profile))
	for i, x := range profile {
		emissions[i] = []float64{states[0].LogProb(x), states[1].LogProb(x), states[2].LogProb(x)}
	}
	return emissions
}

// segmentGexp runs the expression HMM on every chromosome range of a
// node profile and returns the non-neutral runs of at least
// MinNumGenes genes.
func (hb *HoneyBadger) segmentGexp(model *hmm.Model, profile []float64, sd float64, ranges []featureRange, opts BoundaryOptions) ([]*Region, error) {
	found := make([][]*Region, len(ranges))
	errs := make([]error, len(ranges))
	parallel.Range(0, len(ranges), opts.Threads, func(low, high int) {
		for i := low; i < high; i++ {
			r := ranges[i]
			emissions := hb.gexpEmissions(profile[r.lo:r.hi], sd)
			path, _, err := model.Viterbi(emissions)
			if err != nil {
				errs[i] = fmt.Errorf("chromosome %v: %w", r.chrom, err)
				continue
			}
			posterior, _, err := model.Posterior(emissions)
			if err != nil {
				errs[i] = fmt.Errorf("chromosome %v: %w", r.chrom, err)
				continue
			}
			for _, run := range hmm.Runs(path) {
				if run.State == 1 || run.Len() < opts.MinNumGenes {
					continue
				}
				kind := Deletion
				if run.State == 2 {
					kind = Amplification
				}
				first, last := r.lo+run.Start, r.lo+run.End
				start, end := geneSpan(hb.Genes, first, last)
				genes := make([]int, 0, run.Len())
				for g := first; g <= last; g++ {
					genes = append(genes, g)
				}
				found[i] = append(found[i], &Region{
					Chrom:      r.chrom,
					Start:      start,
					End:        end,
					Kind:       kind,
					Source:     GeneBased,
					Confidence: runConfidence(posterior, run),
					genes:      genes,
					first:      first,
					last:       last,
				})
			}
		}
	})
	if err := firstError(errs); err != nil {
		return nil, err
	}
	var regions []*Region
	for _, f := range found {
		regions = append(regions, f...)
	}
	return regions, nil
}

// gexpLLR is the log-likelihood ratio of a region's event over the
// neutral state on the profile of the node it was found in.
func (hb *HoneyBadger) gexpLLR(region *Region, profile []float64, sd float64) float64 {
	mu := hb.dev
	if region.Kind == Deletion {
		mu = -hb.dev
	}
	event, neutral := distuv.Normal{Mu: mu, Sigma: sd}, distuv.Normal{Mu: 0, Sigma: sd}
	var llr float64
	for _, g := range region.genes {
		llr += event.LogProb(profile[g]) - neutral.LogProb(profile[g])
	}
	return llr
}

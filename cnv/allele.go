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
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/BenLubar/memoize"
	"github.com/exascience/pargo/parallel"
	"github.com/willf/bitset"
	"gonum.org/v1/gonum/mat"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/hmm"
	"github.com/sqsun/HoneyBADGER/matrix"
)

// BulkCounts are allele counts per SNP from a matched bulk sample.
type BulkCounts struct {
	Alt, Cov *matrix.Vector
}

func lchoose(n, k int64) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}

var memoizedLchoose = memoize.Memoize(lchoose)

// logBinom is the binomial log probability of m successes in n trials.
func logBinom(m, n int64, p float64) float64 {
	lc := memoizedLchoose.(func(int64, int64) float64)(n, m)
	return lc + float64(m)*math.Log(p) + float64(n-m)*math.Log1p(-p)
}

func count(v float64) int64 {
	return int64(math.Round(v))
}

// SetAlleleMats sets the alternate-allele and total coverage counts
// (SNPs x cells) of the test cells. Bulk counts are used to decide
// which allele is the lesser one; when bulk is nil they are pooled
// from the cells. Setting new allele data discards earlier allele
// results.
func (hb *HoneyBadger) SetAlleleMats(alt, cov *matrix.Matrix, bulk *BulkCounts, opts AlleleOptions) error {
	if err := alt.Validate(); err != nil {
		return fmt.Errorf("invalid alternate allele matrix: %w", err)
	}
	if err := cov.Validate(); err != nil {
		return fmt.Errorf("invalid coverage matrix: %w", err)
	}
	if !sameNames(alt.Rows, cov.Rows) || !sameNames(alt.Cols, cov.Cols) {
		return errors.New("alternate allele and coverage matrices must have the same rows and columns")
	}
	nsnps, ncells := alt.Dims()
	snps := make([]annotation.SNP, nsnps)
	for i, name := range alt.Rows {
		snp, err := annotation.ParseSNP(name)
		if err != nil {
			return err
		}
		snps[i] = snp
		altRow, covRow := alt.Row(i), cov.Row(i)
		for j := range altRow {
			if altRow[j] < 0 || altRow[j] > covRow[j] {
				return fmt.Errorf("SNP %v in cell %v: alternate count %v not within coverage %v", name, alt.Cols[j], altRow[j], covRow[j])
			}
		}
	}

	bulkAlt, bulkCov := make([]float64, nsnps), make([]float64, nsnps)
	if bulk != nil {
		altIndex, covIndex := bulk.Alt.Index(), bulk.Cov.Index()
		for i, name := range alt.Rows {
			a, ok1 := altIndex[name]
			c, ok2 := covIndex[name]
			if !ok1 || !ok2 {
				return fmt.Errorf("SNP %v missing from bulk counts", name)
			}
			bulkAlt[i], bulkCov[i] = bulk.Alt.Values[a], bulk.Cov.Values[c]
		}
	} else {
		for i := 0; i < nsnps; i++ {
			for j := 0; j < ncells; j++ {
				bulkAlt[i] += alt.At(i, j)
				bulkCov[i] += cov.At(i, j)
			}
		}
	}

	keep := parallel.RangeReduce(0, nsnps, opts.Threads, func(low, high int) interface{} {
		set := bitset.New(uint(nsnps))
		for i := low; i < high; i++ {
			if opts.Filter {
				covered := 0
				for _, v := range cov.Row(i) {
					if v > 0 {
						covered++
					}
				}
				if covered < opts.MinCell || !(bulkCov[i] > 0) {
					continue
				}
				e := bulkAlt[i] / bulkCov[i]
				if e < opts.HetDevianceThreshold || e > 1-opts.HetDevianceThreshold {
					continue
				}
			}
			set.Set(uint(i))
		}
		return set
	}, func(x, y interface{}) interface{} {
		set := x.(*bitset.BitSet)
		set.InPlaceUnion(y.(*bitset.BitSet))
		return set
	}).(*bitset.BitSet)

	var kept []int
	for i, ok := keep.NextSet(0); ok; i, ok = keep.NextSet(i + 1) {
		kept = append(kept, int(i))
	}
	hb.logf("Alleles: %v of %v SNPs retained", len(kept), nsnps)
	if len(kept) == 0 {
		return errors.New("no heterozygous SNPs retained")
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return annotation.SNPLess(&snps[kept[i]], &snps[kept[j]])
	})

	hb.SNPs = make([]annotation.SNP, len(kept))
	lesser, total := mat.NewDense(len(kept), ncells, nil), mat.NewDense(len(kept), ncells, nil)
	parallel.Range(0, len(kept), opts.Threads, func(low, high int) {
		for i := low; i < high; i++ {
			s := kept[i]
			hb.SNPs[i] = snps[s]
			refIsLesser := bulkCov[s] > 0 && bulkAlt[s]/bulkCov[s] > 0.5
			for j := 0; j < ncells; j++ {
				a, c := alt.At(s, j), cov.At(s, j)
				if refIsLesser {
					a = c - a
				}
				lesser.Set(i, j, a)
				total.Set(i, j, c)
			}
		}
	})
	hb.Lesser, hb.Cov = lesser, total
	hb.lesser, hb.cov = transpose(lesser), transpose(total)
	hb.AlleleCells = append([]string(nil), alt.Cols...)
	hb.snpIndex = annotation.PointIntervals(hb.SNPs)
	hb.snpGenes = nil
	hb.dropRegions(AlleleBased)
	hb.rebuildCells()
	hb.reattachFeatures()
	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetGeneFactors maps every retained SNP to the genes containing it.
func (hb *HoneyBadger) SetGeneFactors(genes []annotation.Gene) error {
	if hb.Lesser == nil {
		return ErrNoAlleles
	}
	if len(genes) == 0 {
		return ErrNoAnnotation
	}
	mapping := annotation.MapSNPs(hb.SNPs, genes)
	hb.snpGenes = make([][]string, len(hb.SNPs))
	for i, gs := range mapping.Genes {
		for _, g := range gs {
			hb.snpGenes[i] = append(hb.snpGenes[i], genes[g].Name)
		}
	}
	hb.logf("Alleles: %v of %v SNPs outside annotated genes", mapping.Intergenic, len(hb.SNPs))
	hb.reattachFeatures()
	return nil
}

// SNPGenes returns the names of the genes containing each SNP, or nil
// before SetGeneFactors.
func (hb *HoneyBadger) SNPGenes() [][]string {
	return hb.snpGenes
}

// CalcAlleleCnvBoundaries identifies regions of LOH from allele
// counts, using the same dendrogram traversal as the expression
// branch and a 2-state binomial HMM on pooled lesser-allele counts.
// Returns the number of new regions.
func (hb *HoneyBadger) CalcAlleleCnvBoundaries(opts AlleleBoundaryOptions) (int, error) {
	if hb.Lesser == nil {
		return 0, ErrNoAlleles
	}
	if opts.MinTraverse < 1 || opts.MinNumSnps < 1 {
		return 0, fmt.Errorf("invalid allele boundary options %+v", opts)
	}
	if !(opts.Pd > 0 && opts.Pd < 1 && opts.Pn > 0 && opts.Pn < 1) {
		return 0, fmt.Errorf("allele fractions Pd %v and Pn %v must be in (0, 1)", opts.Pd, opts.Pn)
	}
	model, err := hmm.NewModel([]float64{0.5, 0.5}, opts.T)
	if err != nil {
		return 0, err
	}
	ranges := hb.snpRanges(opts.Chroms)
	if len(ranges) == 0 {
		return 0, fmt.Errorf("no SNPs on chromosomes %v", opts.Chroms)
	}
	if opts.Init {
		hb.dropRegions(AlleleBased)
	}

	ncells := len(hb.lesser)
	features := hb.posteriorFeatures(AlleleBased, hb.alleleCol)
	if features == nil {
		allRanges := hb.snpRanges(nil)
		features = make([][]float64, ncells)
		parallel.Range(0, ncells, opts.Threads, func(low, high int) {
			for c := low; c < high; c++ {
				deviation := make([]float64, len(hb.SNPs))
				for s, n := range hb.cov[c] {
					if n > 0 {
						deviation[s] = hb.lesser[c][s]/n - 0.5
					}
				}
				features[c] = smooth(deviation, allRanges, alleleSmoothing)
			}
		})
	}
	tree, err := clusterColumns(features, false, opts.Threads)
	if err != nil {
		return 0, err
	}
	groups := traverse(tree, opts.MinTraverse)
	hb.logf("Alleles: segmenting %v nodes", len(groups))

	added := 0
	for _, group := range groups {
		m, n := hb.pooledCounts(group)
		regions, err := hb.segmentAlleles(model, m, n, ranges, opts)
		if err != nil {
			return added, err
		}
		for _, region := range regions {
			for _, s := range region.snps {
				region.LLR += logBinom(m[s], n[s], opts.Pd) - logBinom(m[s], n[s], opts.Pn)
			}
			region.PValue = regionPValue(region.LLR)
			if hb.addRegion(region) {
				added++
			}
		}
	}
	hb.logf("Alleles: %v new regions", added)
	return added, nil
}

// pooledCounts sums the lesser-allele and total counts of a group of
// cells per SNP.
func (hb *HoneyBadger) pooledCounts(cells []int) (m, n []int64) {
	m, n = make([]int64, len(hb.SNPs)), make([]int64, len(hb.SNPs))
	for _, c := range cells {
		for s := range m {
			m[s] += count(hb.lesser[c][s])
			n[s] += count(hb.cov[c][s])
		}
	}
	return m, n
}

func (hb *HoneyBadger) segmentAlleles(model *hmm.Model, m, n []int64, ranges []featureRange, opts AlleleBoundaryOptions) ([]*Region, error) {
	found := make([][]*Region, len(ranges))
	errs := make([]error, len(ranges))
	parallel.Range(0, len(ranges), opts.Threads, func(low, high int) {
		for i := low; i < high; i++ {
			r := ranges[i]
			var used []int
			var emissions [][]float64
			for s := r.lo; s < r.hi; s++ {
				if n[s] == 0 {
					continue
				}
				used = append(used, s)
				emissions = append(emissions, []float64{
					logBinom(m[s], n[s], opts.Pn),
					logBinom(m[s], n[s], opts.Pd),
				})
			}
			if len(used) == 0 {
				continue
			}
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
				if run.State != 1 || run.Len() < opts.MinNumSnps {
					continue
				}
				snps := append([]int(nil), used[run.Start:run.End+1]...)
				first, last := snps[0], snps[len(snps)-1]
				found[i] = append(found[i], &Region{
					Chrom:      r.chrom,
					Start:      hb.SNPs[first].Pos,
					End:        hb.SNPs[last].Pos,
					Kind:       LOH,
					Source:     AlleleBased,
					Confidence: runConfidence(posterior, run),
					snps:       snps,
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

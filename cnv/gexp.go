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

	"github.com/carbocation/runningvariance"
	"github.com/exascience/pargo/parallel"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/internal"
	"github.com/sqsun/HoneyBADGER/matrix"
)

// SetGexpMats sets the expression matrix of the test cells (genes x
// cells), the reference expression per gene, and the gene
// coordinates. Genes missing from any of the three are dropped. The
// normalized expression is the (optionally centered) test expression
// minus the reference, with genes in genome order. Setting new
// expression data discards earlier expression results.
func (hb *HoneyBadger) SetGexpMats(test *matrix.Matrix, ref *matrix.Vector, genes []annotation.Gene, opts GexpOptions) error {
	if err := test.Validate(); err != nil {
		return fmt.Errorf("invalid expression matrix: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("invalid reference expression: %w", err)
	}
	if len(genes) == 0 {
		return ErrNoAnnotation
	}
	_, ncells := test.Dims()
	if ncells < 2 {
		return fmt.Errorf("need at least 2 cells, got %v", ncells)
	}
	byName, duplicates := annotation.ByName(genes)
	if duplicates > 0 {
		hb.logf("Ignoring %v duplicate gene annotations", duplicates)
	}
	refIndex := ref.Index()

	var rows []int
	var kept []annotation.Gene
	var refValues []float64
	var missingRef, missingCoords, filtered int
	for i, name := range test.Rows {
		r, ok := refIndex[name]
		if !ok {
			missingRef++
			continue
		}
		gene, ok := byName[name]
		if !ok {
			missingCoords++
			continue
		}
		if err := gene.Validate(); err != nil {
			return err
		}
		if opts.Filter {
			meanTest, meanRef := stat.Mean(test.Row(i), nil), ref.Values[r]
			if !((meanTest > opts.MinMeanBoth && meanRef > opts.MinMeanBoth) ||
				meanTest > opts.MinMeanTest || meanRef > opts.MinMeanRef) {
				filtered++
				continue
			}
		}
		rows = append(rows, i)
		kept = append(kept, *gene)
		refValues = append(refValues, ref.Values[r])
	}
	hb.logf("Expression: %v genes without reference, %v without coordinates, %v filtered out", missingRef, missingCoords, filtered)
	if len(rows) == 0 {
		return errors.New("no genes shared by the expression matrix, the reference and the annotation")
	}

	order := annotation.GenomeOrder(len(kept), func(i, j int) bool {
		return annotation.GeneLess(&kept[i], &kept[j])
	})
	sortedRows := make([]int, len(order))
	hb.Genes = make([]annotation.Gene, len(order))
	sortedRef := make([]float64, len(order))
	for i, o := range order {
		sortedRows[i] = rows[o]
		hb.Genes[i] = kept[o]
		sortedRef[i] = refValues[o]
	}
	norm := test.SelectRows(sortedRows).Data
	if opts.Scale {
		for j := 0; j < ncells; j++ {
			col := mat.Col(nil, j, norm)
			floats.AddConst(-stat.Mean(col, nil), col)
			norm.SetCol(j, col)
		}
		floats.AddConst(-stat.Mean(sortedRef, nil), sortedRef)
	}
	for i, v := range sortedRef {
		row := norm.RawRowView(i)
		floats.AddConst(-v, row)
	}

	hb.Norm = norm
	hb.GexpCells = append([]string(nil), test.Cols...)
	hb.gexp = transpose(norm)
	hb.mvFit = nil
	hb.dev = 0
	hb.dropRegions(GeneBased)
	hb.rebuildCells()
	hb.reattachFeatures()
	hb.logf("Expression: %v genes x %v cells retained", len(hb.Genes), ncells)
	return nil
}

// SetMvFit fits, for every cell, how the variance of the mean
// normalized expression of k random genes decreases with k.
func (hb *HoneyBadger) SetMvFit(opts MvFitOptions) error {
	if hb.Norm == nil {
		return ErrNoGexp
	}
	ngenes := len(hb.Genes)
	var sizes []float64
	for _, k := range opts.NumGenes {
		if k > 0 && k <= ngenes {
			sizes = append(sizes, float64(k))
		}
	}
	if len(sizes) < 2 {
		return fmt.Errorf("need at least 2 gene set sizes between 1 and %v for the mean-variance fit", ngenes)
	}
	if opts.Reps < 2 {
		return fmt.Errorf("need at least 2 repetitions for the mean-variance fit, got %v", opts.Reps)
	}
	fits := make([]MvFit, len(hb.gexp))
	errs := make([]error, len(hb.gexp))
	parallel.Range(0, len(hb.gexp), opts.Threads, func(low, high int) {
		perm := internal.Identity(ngenes)
		var sample []int
		for c := low; c < high; c++ {
			profile := hb.gexp[c]
			r := internal.NewRand(opts.Seed + int64(c))
			for i := range perm {
				perm[i] = i
			}
			var xs, ys []float64
			for _, size := range sizes {
				k := int(size)
				rs := runningvariance.NewRunningStat()
				for rep := 0; rep < opts.Reps; rep++ {
					sample = internal.Sample(r, perm, k, sample)
					var sum float64
					for _, g := range sample {
						sum += profile[g]
					}
					rs.Push(sum / size)
				}
				sd := rs.StandardDeviation()
				if v := sd * sd; v > 0 && !math.IsNaN(v) {
					xs = append(xs, math.Log10(size))
					ys = append(ys, math.Log10(v))
				}
			}
			if len(xs) < 2 {
				errs[c] = fmt.Errorf("cell %v has no expression variance", hb.GexpCells[c])
				continue
			}
			alpha, beta := stat.LinearRegression(xs, ys, nil, false)
			fits[c] = MvFit{Intercept: alpha, Slope: beta}
		}
	})
	if err := firstError(errs); err != nil {
		return err
	}
	hb.mvFit = fits
	hb.logf("Mean-variance fit done for %v cells", len(fits))
	return nil
}

// MvFits returns the per-cell fits, indexed like GexpCells.
func (hb *HoneyBadger) MvFits() []MvFit {
	return hb.mvFit
}

// ExpectedSD returns the expected standard deviation of the mean
// normalized expression of n genes in the given expression cell.
func (hb *HoneyBadger) ExpectedSD(cell, n int) float64 {
	fit := hb.mvFit[cell]
	return math.Sqrt(math.Pow(10, fit.Intercept+fit.Slope*math.Log10(float64(n))))
}

// SetGexpDev estimates the expected deviance of the normalized
// expression of a CNV from random windows of contiguous genes.
func (hb *HoneyBadger) SetGexpDev(opts DevOptions) error {
	if hb.Norm == nil {
		return ErrNoGexp
	}
	if !(opts.Alpha > 0 && opts.Alpha < 1) {
		return fmt.Errorf("alpha %v not in (0, 1)", opts.Alpha)
	}
	if opts.N < 1 || opts.WindowSize < 1 {
		return fmt.Errorf("invalid window sampling: %v windows of size %v", opts.N, opts.WindowSize)
	}
	ranges := hb.geneRanges(nil)
	size := opts.WindowSize
	longest := 0
	for _, r := range ranges {
		if n := r.hi - r.lo; n > longest {
			longest = n
		}
	}
	if size > longest {
		hb.logf("Window size %v exceeds the longest chromosome, using %v genes", size, longest)
		size = longest
	}
	// every valid window start, across chromosomes
	var starts []int
	for _, r := range ranges {
		for lo := r.lo; lo+size <= r.hi; lo++ {
			starts = append(starts, lo)
		}
	}
	rng := internal.NewRand(opts.Seed)
	means := make(stats.Float64Data, 0, opts.N*len(hb.gexp))
	for i := 0; i < opts.N; i++ {
		lo := starts[rng.Intn(len(starts))]
		for _, profile := range hb.gexp {
			means = append(means, math.Abs(stat.Mean(profile[lo:lo+size], nil)))
		}
	}
	dev, err := stats.Percentile(means, 100*(1-opts.Alpha))
	if err != nil {
		return fmt.Errorf("deviance estimation: %w", err)
	}
	return hb.SetDev(dev)
}

// SetDev sets the expected expression deviance of a CNV directly.
func (hb *HoneyBadger) SetDev(dev float64) error {
	if !(dev > 0) || math.IsInf(dev, 0) {
		return fmt.Errorf("deviance must be positive and finite, got %v", dev)
	}
	hb.dev = dev
	hb.logf("Expression deviance set to %v", dev)
	return nil
}

// Dev returns the expected expression deviance, or 0 if not set.
func (hb *HoneyBadger) Dev() float64 {
	return hb.dev
}

// trimmedMean returns the mean of xs without the trim fraction of
// smallest and largest values. xs is reordered.
func trimmedMean(xs []float64, trim float64) float64 {
	k := int(math.Floor(trim * float64(len(xs))))
	if k > 0 && 2*k < len(xs) {
		sort.Float64s(xs)
		xs = xs[k : len(xs)-k]
	}
	return floats.Sum(xs) / float64(len(xs))
}

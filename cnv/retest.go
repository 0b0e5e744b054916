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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// RetestIdentifiedCnvs computes, for every region and every cell, the
// posterior probabilities of the region's states. Expression-based
// posteriors need genes in the region and allele-based posteriors need
// SNPs, whatever the source of the region. When both are requested,
// a combined deletion posterior is derived from both kinds of
// evidence.
func (hb *HoneyBadger) RetestIdentifiedCnvs(opts RetestOptions) error {
	return hb.retest(opts, -1)
}

// retest retests the regions of one source, or all regions when
// source is negative.
func (hb *HoneyBadger) retest(opts RetestOptions, source Source) error {
	if len(hb.Regions) == 0 {
		return ErrNoRegions
	}
	if opts.RetestBoundGenes {
		switch {
		case hb.Norm == nil:
			return ErrNoGexp
		case hb.mvFit == nil:
			return ErrNoMvFit
		case hb.dev == 0:
			return ErrNoDev
		}
	}
	if opts.RetestBoundSnps {
		if hb.Lesser == nil {
			return ErrNoAlleles
		}
		if !(opts.Pd > 0 && opts.Pd < 1 && opts.Pn > 0 && opts.Pn < 1) {
			return fmt.Errorf("allele fractions Pd %v and Pn %v must be in (0, 1)", opts.Pd, opts.Pn)
		}
	}
	if !(opts.PriorAmp > 0 && opts.PriorDel > 0 && opts.PriorNeutral > 0) {
		return fmt.Errorf("priors must be positive, got %v/%v/%v", opts.PriorAmp, opts.PriorDel, opts.PriorNeutral)
	}
	logPrior := [3]float64{math.Log(opts.PriorDel), math.Log(opts.PriorNeutral), math.Log(opts.PriorAmp)}

	var regions []*Region
	for _, region := range hb.Regions {
		if source < 0 || region.Source == source {
			regions = append(regions, region)
		}
	}
	for _, region := range regions {
		posteriors := make([]Posterior, len(hb.Cells))
		parallel.Range(0, len(hb.Cells), opts.Threads, func(low, high int) {
			for c := low; c < high; c++ {
				posteriors[c] = hb.cellPosterior(region, c, opts, logPrior)
			}
		})
		region.Posteriors = posteriors
	}
	hb.logf("Retested %v regions in %v cells", len(regions), len(hb.Cells))
	return nil
}

func (hb *HoneyBadger) cellPosterior(region *Region, cell int, opts RetestOptions, logPrior [3]float64) Posterior {
	nan := math.NaN()
	p := Posterior{Amp: nan, Del: nan, Neutral: nan, LOH: nan, CombinedDel: nan}

	var gexpLik [3]float64
	gexpOK := false
	if col := hb.gexpCol[cell]; opts.RetestBoundGenes && col >= 0 && len(region.genes) > 0 {
		gexpLik, gexpOK = hb.gexpLikelihoods(region, col), true
		var joint [3]float64
		for s := range joint {
			joint[s] = logPrior[s] + gexpLik[s]
		}
		total := floats.LogSumExp(joint[:])
		p.Del = math.Exp(joint[0] - total)
		p.Neutral = math.Exp(joint[1] - total)
		p.Amp = math.Exp(joint[2] - total)
	}

	var lossLik, hetLik float64
	alleleOK := false
	if col := hb.alleleCol[cell]; opts.RetestBoundSnps && col >= 0 && len(region.snps) > 0 {
		lossLik, hetLik, alleleOK = hb.alleleLikelihoods(region, col, opts.Pd, opts.Pn)
		if alleleOK {
			p.LOH = math.Exp(lossLik - floats.LogSumExp([]float64{lossLik, hetLik}))
		}
	}

	if gexpOK && alleleOK {
		del := logPrior[0] + gexpLik[0] + lossLik
		neutral := logPrior[1] + gexpLik[1] + hetLik
		p.CombinedDel = math.Exp(del - floats.LogSumExp([]float64{del, neutral}))
	}
	return p
}

// gexpLikelihoods returns the log likelihoods of the mean normalized
// expression of the region's genes in one expression cell under
// deletion, neutral and amplification.
func (hb *HoneyBadger) gexpLikelihoods(region *Region, col int) (lik [3]float64) {
	profile := hb.gexp[col]
	var sum float64
	for _, g := range region.genes {
		sum += profile[g]
	}
	n := len(region.genes)
	x := sum / float64(n)
	sd := hb.ExpectedSD(col, n)
	if !(sd > minSD) {
		sd = minSD
	}
	for s, mu := range [3]float64{-hb.dev, 0, hb.dev} {
		lik[s] = distuv.Normal{Mu: mu, Sigma: sd}.LogProb(x)
	}
	return lik
}

// alleleLikelihoods returns the log likelihoods of the lesser-allele
// counts of the region's SNPs in one allele cell under LOH and under
// heterozygosity. ok is false when the cell covers none of the SNPs.
func (hb *HoneyBadger) alleleLikelihoods(region *Region, col int, pd, pn float64) (loss, het float64, ok bool) {
	lesser, cov := hb.lesser[col], hb.cov[col]
	for _, s := range region.snps {
		n := count(cov[s])
		if n == 0 {
			continue
		}
		m := count(lesser[s])
		loss += logBinom(m, n, pd)
		het += logBinom(m, n, pn)
		ok = true
	}
	return loss, het, ok
}

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
	"math"
	"sort"

	"github.com/willf/bitset"

	"github.com/sqsun/HoneyBADGER/cluster"
	"github.com/sqsun/HoneyBADGER/utils"
)

// A Summary describes one region and the cells carrying its event.
type Summary struct {
	Chrom           string  `csv:"chrom"`
	Start           int32   `csv:"start"`
	End             int32   `csv:"end"`
	Width           int32   `csv:"width"`
	Kind            string  `csv:"kind"`
	Source          string  `csv:"source"`
	Genes           int     `csv:"n_genes"`
	SNPs            int     `csv:"n_snps"`
	LLR             float64 `csv:"llr"`
	PValue          float64 `csv:"pvalue"`
	Confidence      float64 `csv:"confidence"`
	MeanAmp         float64 `csv:"mean_amp"`
	MeanDel         float64 `csv:"mean_del"`
	MeanLOH         float64 `csv:"mean_loh"`
	MeanCombinedDel float64 `csv:"mean_combined_del"`
	CalledCells     int     `csv:"called_cells"`
	Call            string  `csv:"call"`

	region *Region
}

// eventPosterior is the posterior of the region's own event, using
// the combined deletion posterior when it is available.
func eventPosterior(region *Region, p Posterior) float64 {
	switch region.Kind {
	case Amplification:
		return p.Amp
	case Deletion:
		if !math.IsNaN(p.CombinedDel) {
			return p.CombinedDel
		}
		return p.Del
	}
	return p.LOH
}

// CalledCells returns the set of cells (indexed like Cells) whose
// posterior for the region's event exceeds t.
func (region *Region) CalledCells(t float64) *bitset.BitSet {
	called := bitset.New(uint(len(region.Posteriors)))
	for c, p := range region.Posteriors {
		if eventPosterior(region, p) > t {
			called.Set(uint(c))
		}
	}
	return called
}

func nanMean(posteriors []Posterior, field func(Posterior) float64) float64 {
	var sum float64
	var n int
	for _, p := range posteriors {
		if v := field(p); !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SummarizeResults returns one row per selected region, in genome
// order. Posterior columns are NaN for regions that were not
// retested.
func (hb *HoneyBadger) SummarizeResults(opts SummaryOptions) ([]Summary, error) {
	if len(hb.Regions) == 0 {
		return nil, ErrNoRegions
	}
	var rows []Summary
	for _, region := range hb.Regions {
		switch region.Source {
		case GeneBased:
			if !opts.GeneBased {
				continue
			}
		case AlleleBased:
			if !opts.AlleleBased || len(region.snps) < opts.MinNumSnps {
				continue
			}
		}
		row := Summary{
			Chrom:           region.Chrom,
			Start:           region.Start,
			End:             region.End,
			Width:           region.End - region.Start + 1,
			Kind:            region.Kind.String(),
			Source:          region.Source.String(),
			Genes:           len(region.Genes),
			SNPs:            len(region.SNPs),
			LLR:             region.LLR,
			PValue:          region.PValue,
			Confidence:      region.Confidence,
			MeanAmp:         nanMean(region.Posteriors, func(p Posterior) float64 { return p.Amp }),
			MeanDel:         nanMean(region.Posteriors, func(p Posterior) float64 { return p.Del }),
			MeanLOH:         nanMean(region.Posteriors, func(p Posterior) float64 { return p.LOH }),
			MeanCombinedDel: nanMean(region.Posteriors, func(p Posterior) float64 { return p.CombinedDel }),
			CalledCells:     int(region.CalledCells(opts.T).Count()),
			Call:            "neutral",
			region:          region,
		}
		if row.CalledCells > 0 {
			row.Call = row.Kind
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].region, rows[j].region
		if c := utils.CompareChrom(a.Chrom, b.Chrom); c != 0 {
			return c < 0
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Kind < b.Kind
	})
	hb.logf("Summarized %v regions", len(rows))
	return rows, nil
}

// ClusterCells clusters all cells on their posteriors: Amp - Del for
// every retested gene-based region and LOH for every retested
// allele-based region, with NaN counted as 0.
func (hb *HoneyBadger) ClusterCells(opts ClusterOptions) (*cluster.Tree, error) {
	var regions []*Region
	for _, region := range hb.Regions {
		if region.Posteriors != nil {
			regions = append(regions, region)
		}
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	features := make([][]float64, len(hb.Cells))
	for c := range features {
		row := make([]float64, len(regions))
		for i, region := range regions {
			p := region.Posteriors[c]
			v := p.LOH
			if region.Source == GeneBased {
				v = p.Amp - p.Del
			}
			if !math.IsNaN(v) {
				row[i] = v
			}
		}
		features[c] = row
	}
	tree, err := cluster.Hclust(cluster.Euclidean(features, opts.Threads), opts.Linkage)
	if err != nil {
		return nil, err
	}
	hb.logf("Clustered %v cells on %v regions", len(hb.Cells), len(regions))
	return tree, nil
}

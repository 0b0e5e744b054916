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

// Package cnv detects copy-number variations and loss of
// heterozygosity in single cells from single-cell RNA-seq expression
// and allele counts. The entry point is HoneyBadger, which holds the
// data and results of one analysis and is driven through a fixed
// sequence of operations: set the matrices, fit the variance model,
// identify boundaries with an HMM, retest them per cell, and
// summarize.
package cnv

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/intervals"
)

// Errors returned when an operation is called before its
// prerequisites.
var (
	ErrNoGexp       = errors.New("no expression data: call SetGexpMats first")
	ErrNoMvFit      = errors.New("no mean-variance fit: call SetMvFit first")
	ErrNoDev        = errors.New("no expression deviance: call SetGexpDev or SetDev first")
	ErrNoAlleles    = errors.New("no allele data: call SetAlleleMats first")
	ErrNoRegions    = errors.New("no CNV regions: calculate boundaries first")
	ErrNoAnnotation = errors.New("no gene annotation")
)

// A MvFit is the per-cell fit log10(var) = Intercept + Slope*log10(k)
// of the variance of the mean expression of k random genes.
type MvFit struct {
	Intercept float64
	Slope     float64
}

// A HoneyBadger holds the inputs, models and results of one analysis.
type HoneyBadger struct {
	// RunID identifies the analysis in logs and outputs.
	RunID uuid.UUID
	// Verbose enables progress logging.
	Verbose bool

	// Cells is the union of the expression and allele cells,
	// expression cells first. Posteriors are indexed by it.
	Cells []string

	// Genes are the retained genes in genome order, and Norm holds
	// their normalized expression (genes x expression cells).
	Genes     []annotation.Gene
	GexpCells []string
	Norm      *mat.Dense
	gexp      [][]float64 // cells x genes view of Norm
	mvFit     []MvFit
	dev       float64

	// SNPs are the retained putatively heterozygous SNPs in genome
	// order; Lesser and Cov hold the lesser-allele and total counts
	// (SNPs x allele cells).
	SNPs        []annotation.SNP
	AlleleCells []string
	Lesser, Cov *mat.Dense
	lesser, cov [][]float64 // cells x SNPs views
	snpGenes    [][]string
	snpIndex    map[string][]intervals.Interval

	// per entry of Cells, the column in the expression or allele
	// matrices, or -1
	gexpCol, alleleCol []int

	// Regions is the boundary set, in order of discovery.
	Regions []*Region
	keys    map[regionKey]*Region
}

// New creates an empty analysis with a fresh run ID.
func New() *HoneyBadger {
	return &HoneyBadger{
		RunID: uuid.New(),
		keys:  make(map[regionKey]*Region),
	}
}

func (hb *HoneyBadger) logf(format string, v ...interface{}) {
	if hb.Verbose {
		log.Printf(format, v...)
	}
}

// rebuildCells recomputes the cell union after one of the branches
// changed, and invalidates all posteriors.
func (hb *HoneyBadger) rebuildCells() {
	hb.Cells = nil
	hb.gexpCol, hb.alleleCol = nil, nil
	index := make(map[string]int)
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		i := len(hb.Cells)
		index[name] = i
		hb.Cells = append(hb.Cells, name)
		hb.gexpCol = append(hb.gexpCol, -1)
		hb.alleleCol = append(hb.alleleCol, -1)
		return i
	}
	for j, name := range hb.GexpCells {
		hb.gexpCol[add(name)] = j
	}
	for j, name := range hb.AlleleCells {
		hb.alleleCol[add(name)] = j
	}
	for _, region := range hb.Regions {
		region.Posteriors = nil
	}
}

// transpose returns the columns of m as rows.
func transpose(m *mat.Dense) [][]float64 {
	_, c := m.Dims()
	result := make([][]float64, c)
	for j := range result {
		result[j] = mat.Col(nil, j, m)
	}
	return result
}

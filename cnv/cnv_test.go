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
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/cluster"
	"github.com/sqsun/HoneyBADGER/hmm"
	"github.com/sqsun/HoneyBADGER/internal"
	"github.com/sqsun/HoneyBADGER/matrix"
)

const (
	nchroms      = 3
	genesPerChr  = 60
	ncells       = 30
	affected     = 15 // cells 0..14 carry the events
	eventFirst   = 20
	eventLast    = 39
	noise        = 0.3
	baseline     = 10
	ampChrom     = "1"
	deletedChrom = "2"
)

type dataset struct {
	test     *matrix.Matrix
	ref      *matrix.Vector
	genes    []annotation.Gene
	alt, cov *matrix.Matrix
}

func inEvent(i int) bool {
	return i >= eventFirst && i <= eventLast
}

// synthetic builds expression with an amplification on chromosome 1
// and a deletion on chromosome 2 in the affected cells, and allele
// counts with a matching LOH on chromosome 2. Every gene holds one SNP.
func synthetic() dataset {
	r := internal.NewRand(42)
	var cells []string
	for c := 0; c < ncells; c++ {
		cells = append(cells, fmt.Sprintf("cell%02d", c))
	}
	var data dataset
	var geneNames, snpNames []string
	var expr, alt, cov []float64
	ref := &matrix.Vector{}
	for chr := 1; chr <= nchroms; chr++ {
		chrom := fmt.Sprint(chr)
		for i := 0; i < genesPerChr; i++ {
			name := fmt.Sprintf("g%v_%v", chrom, i)
			start := int32(i*1000 + 1)
			data.genes = append(data.genes, annotation.Gene{Name: name, Chrom: chrom, Start: start, End: start + 499})
			geneNames = append(geneNames, name)
			ref.Names = append(ref.Names, name)
			ref.Values = append(ref.Values, baseline)
			snpNames = append(snpNames, fmt.Sprintf("%v:%v", chrom, start+100))
			for c := 0; c < ncells; c++ {
				v := baseline + noise*r.NormFloat64()
				lost := false
				if c < affected && inEvent(i) {
					switch chrom {
					case ampChrom:
						v++
					case deletedChrom:
						v--
						lost = true
					}
				}
				expr = append(expr, v)
				depth := 0
				if r.Float64() < 0.8 {
					depth = 2 + r.Intn(6)
				}
				a := 0
				if !lost {
					for k := 0; k < depth; k++ {
						a += r.Intn(2)
					}
				}
				alt = append(alt, float64(a))
				cov = append(cov, float64(depth))
			}
		}
	}
	var err error
	if data.test, err = matrix.New(geneNames, cells, expr); err != nil {
		panic(err)
	}
	if data.alt, err = matrix.New(snpNames, cells, alt); err != nil {
		panic(err)
	}
	if data.cov, err = matrix.New(snpNames, cells, cov); err != nil {
		panic(err)
	}
	data.ref = ref
	return data
}

func gexpReady(t *testing.T, data dataset) *HoneyBadger {
	hb := New()
	if err := hb.SetGexpMats(data.test, data.ref, data.genes, DefaultGexpOptions()); err != nil {
		t.Fatal(err)
	}
	if err := hb.SetMvFit(DefaultMvFitOptions()); err != nil {
		t.Fatal(err)
	}
	if err := hb.SetDev(1); err != nil {
		t.Fatal(err)
	}
	return hb
}

func findRegion(hb *HoneyBadger, source Source, kind Kind, chrom string) *Region {
	var best *Region
	for _, region := range hb.Regions {
		if region.Source != source || region.Kind != kind || region.Chrom != chrom {
			continue
		}
		if best == nil || region.last-region.first > best.last-best.first {
			best = region
		}
	}
	return best
}

func TestPrerequisites(t *testing.T) {
	hb := New()
	if err := hb.SetMvFit(DefaultMvFitOptions()); err != ErrNoGexp {
		t.Errorf("SetMvFit: expected ErrNoGexp, got %v", err)
	}
	if _, err := hb.CalcGexpCnvBoundaries(DefaultBoundaryOptions()); err != ErrNoGexp {
		t.Errorf("CalcGexpCnvBoundaries: expected ErrNoGexp, got %v", err)
	}
	if _, err := hb.CalcAlleleCnvBoundaries(DefaultAlleleBoundaryOptions()); err != ErrNoAlleles {
		t.Errorf("CalcAlleleCnvBoundaries: expected ErrNoAlleles, got %v", err)
	}
	if err := hb.SetGeneFactors(nil); err != ErrNoAlleles {
		t.Errorf("SetGeneFactors: expected ErrNoAlleles, got %v", err)
	}
	if err := hb.RetestIdentifiedCnvs(DefaultRetestOptions()); err != ErrNoRegions {
		t.Errorf("RetestIdentifiedCnvs: expected ErrNoRegions, got %v", err)
	}
	if _, err := hb.SummarizeResults(DefaultSummaryOptions()); err != ErrNoRegions {
		t.Errorf("SummarizeResults: expected ErrNoRegions, got %v", err)
	}

	data := synthetic()
	if err := hb.SetGexpMats(data.test, data.ref, data.genes, DefaultGexpOptions()); err != nil {
		t.Fatal(err)
	}
	if _, err := hb.CalcGexpCnvBoundaries(DefaultBoundaryOptions()); err != ErrNoMvFit {
		t.Errorf("expected ErrNoMvFit, got %v", err)
	}
	if err := hb.SetMvFit(DefaultMvFitOptions()); err != nil {
		t.Fatal(err)
	}
	if _, err := hb.CalcGexpCnvBoundaries(DefaultBoundaryOptions()); err != ErrNoDev {
		t.Errorf("expected ErrNoDev, got %v", err)
	}
	if err := hb.SetDev(0); err == nil {
		t.Error("expected an error for a zero deviance")
	}
}

func TestSetGexpMats(t *testing.T) {
	data := synthetic()
	// drop one gene from the annotation and make another one lowly expressed
	genes := append([]annotation.Gene(nil), data.genes[1:]...)
	ref := &matrix.Vector{
		Names:  append([]string(nil), data.ref.Names...),
		Values: append([]float64(nil), data.ref.Values...),
	}
	ref.Values[5] = 0
	test := data.test.SelectRows(internal.Identity(len(data.test.Rows)))
	for c := 0; c < ncells; c++ {
		test.Data.Set(5, c, 1)
	}
	hb := New()
	if err := hb.SetGexpMats(test, ref, genes, DefaultGexpOptions()); err != nil {
		t.Fatal(err)
	}
	if len(hb.Genes) != nchroms*genesPerChr-2 {
		t.Errorf("expected %v genes, got %v", nchroms*genesPerChr-2, len(hb.Genes))
	}
	for _, gene := range hb.Genes {
		if gene.Name == data.genes[0].Name || gene.Name == data.genes[5].Name {
			t.Errorf("gene %v should have been dropped", gene.Name)
		}
	}
	for i := 1; i < len(hb.Genes); i++ {
		if annotation.GeneLess(&hb.Genes[i], &hb.Genes[i-1]) {
			t.Fatal("genes are not in genome order")
		}
	}
	r, c := hb.Norm.Dims()
	if r != len(hb.Genes) || c != ncells || len(hb.Cells) != ncells {
		t.Errorf("unexpected dimensions %v x %v", r, c)
	}
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += hb.Norm.At(i, j)
		}
		if math.Abs(sum/float64(r)) > 1e-9 {
			t.Errorf("cell %v is not centered", j)
		}
	}

	one, _ := matrix.New([]string{"g1_0"}, []string{"c"}, []float64{10})
	if err := New().SetGexpMats(one, ref, genes, DefaultGexpOptions()); err == nil {
		t.Error("expected an error for a single cell")
	}
	if err := New().SetGexpMats(test, ref, nil, DefaultGexpOptions()); err != ErrNoAnnotation {
		t.Errorf("expected ErrNoAnnotation, got %v", err)
	}
}

func TestSetMvFit(t *testing.T) {
	data := synthetic()
	hb := gexpReady(t, data)
	fit := hb.MvFits()[ncells-1]
	if fit.Slope < -2 || fit.Slope > -0.8 {
		t.Errorf("unexpected mean-variance slope %v", fit.Slope)
	}
	if sd := hb.ExpectedSD(ncells-1, 1); sd < 0.15 || sd > 1 {
		t.Errorf("unexpected single gene SD %v", sd)
	}
	if hb.ExpectedSD(0, 50) >= hb.ExpectedSD(0, 5) {
		t.Error("expected SD does not decrease with the number of genes")
	}

	opts := DefaultMvFitOptions()
	opts.Threads = 1
	if err := hb.SetMvFit(opts); err != nil {
		t.Fatal(err)
	}
	sequential := append([]MvFit(nil), hb.MvFits()...)
	opts.Threads = 4
	if err := hb.SetMvFit(opts); err != nil {
		t.Fatal(err)
	}
	for c, fit := range hb.MvFits() {
		if fit != sequential[c] {
			t.Fatalf("fit of cell %v depends on the number of threads", c)
		}
	}

	opts.NumGenes = []int{5}
	if err := hb.SetMvFit(opts); err == nil {
		t.Error("expected an error for a single gene set size")
	}
}

func TestSetGexpDev(t *testing.T) {
	hb := gexpReady(t, synthetic())
	if err := hb.SetGexpDev(DefaultDevOptions()); err != nil {
		t.Fatal(err)
	}
	if dev := hb.Dev(); !(dev > 0 && dev < 2) {
		t.Errorf("unexpected deviance %v", dev)
	}
	opts := DefaultDevOptions()
	opts.Alpha = 1
	if err := hb.SetGexpDev(opts); err == nil {
		t.Error("expected an error for alpha 1")
	}
}

func TestGexpBoundaries(t *testing.T) {
	hb := gexpReady(t, synthetic())
	opts := DefaultBoundaryOptions()
	opts.MaxIterations = 2
	n, err := hb.CalcGexpCnvBoundaries(opts)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || n != len(hb.Regions) {
		t.Fatalf("expected new regions, got %v of %v", n, len(hb.Regions))
	}
	amp := findRegion(hb, GeneBased, Amplification, ampChrom)
	del := findRegion(hb, GeneBased, Deletion, deletedChrom)
	if amp == nil || del == nil {
		t.Fatalf("events not found: %v", hb.Regions)
	}
	for _, region := range []*Region{amp, del} {
		if region.first%genesPerChr > eventFirst+2 || region.last%genesPerChr < eventLast-2 {
			t.Errorf("region %v does not cover the event", region.ID())
		}
		if len(region.Genes) != region.last-region.first+1 {
			t.Errorf("region %v has %v genes", region.ID(), len(region.Genes))
		}
		if !(region.Confidence > 0.5 && region.Confidence <= 1) {
			t.Errorf("region %v has confidence %v", region.ID(), region.Confidence)
		}
	}
	significant := 0
	for _, region := range hb.Regions {
		if region.Chrom == "3" {
			t.Errorf("false positive %v", region.ID())
		}
		if region.PValue < 1e-6 {
			significant++
		}
		if region.PValue < 0 || region.PValue > 1 {
			t.Errorf("region %v: p-value %v for LLR %v", region.ID(), region.PValue, region.LLR)
		}
	}
	if significant < 2 {
		t.Errorf("only %v significant regions", significant)
	}

	// a second call without Init only adds regions not seen before
	opts.Init = false
	opts.MaxIterations = 1
	before := len(hb.Regions)
	n, err = hb.CalcGexpCnvBoundaries(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(hb.Regions) != before+n {
		t.Errorf("boundary set grew by %v, expected %v", len(hb.Regions)-before, n)
	}
	seen := make(map[regionKey]bool)
	for _, region := range hb.Regions {
		if seen[region.key()] {
			t.Errorf("duplicate region %v", region.ID())
		}
		seen[region.key()] = true
	}
}

func TestGexpRetestAndSummary(t *testing.T) {
	hb := gexpReady(t, synthetic())
	if _, err := hb.CalcGexpCnvBoundaries(DefaultBoundaryOptions()); err != nil {
		t.Fatal(err)
	}
	if err := hb.RetestIdentifiedCnvs(DefaultRetestOptions()); err != nil {
		t.Fatal(err)
	}
	for _, region := range hb.Regions {
		for c, p := range region.Posteriors {
			if math.Abs(p.Amp+p.Del+p.Neutral-1) > 1e-9 {
				t.Fatalf("posteriors of cell %v do not sum to 1: %+v", c, p)
			}
			if !math.IsNaN(p.LOH) || !math.IsNaN(p.CombinedDel) {
				t.Fatalf("allele posteriors without allele data: %+v", p)
			}
		}
	}
	amp := findRegion(hb, GeneBased, Amplification, ampChrom)
	if amp == nil {
		t.Fatal("amplification not found")
	}
	called := amp.CalledCells(0.75)
	for c := 0; c < ncells; c++ {
		if called.Test(uint(c)) != (c < affected) {
			t.Errorf("cell %v: called %v, amp posterior %v", c, called.Test(uint(c)), amp.Posteriors[c].Amp)
		}
	}

	rows, err := hb.SummarizeResults(DefaultSummaryOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(hb.Regions) {
		t.Errorf("expected %v summary rows, got %v", len(hb.Regions), len(rows))
	}
	for i, row := range rows {
		if i > 0 && rows[i-1].Chrom == row.Chrom && rows[i-1].Start > row.Start {
			t.Error("summary is not in genome order")
		}
		if row.region == amp {
			if row.CalledCells != affected || row.Call != "amplification" {
				t.Errorf("unexpected amplification summary %+v", row)
			}
			if !math.IsNaN(row.MeanLOH) {
				t.Errorf("mean LOH should be NaN, got %v", row.MeanLOH)
			}
		}
	}
	opts := DefaultSummaryOptions()
	opts.GeneBased = false
	if rows, err := hb.SummarizeResults(opts); err != nil || len(rows) != 0 {
		t.Errorf("expected no allele-based rows, got %v, %v", len(rows), err)
	}
}

func TestAlleleBoundaries(t *testing.T) {
	data := synthetic()
	hb := New()
	if err := hb.SetAlleleMats(data.alt, data.cov, nil, DefaultAlleleOptions()); err != nil {
		t.Fatal(err)
	}
	if len(hb.SNPs) < nchroms*genesPerChr-5 {
		t.Errorf("too many SNPs filtered: %v left", len(hb.SNPs))
	}
	if err := hb.SetGeneFactors(data.genes); err != nil {
		t.Fatal(err)
	}
	for i, genes := range hb.SNPGenes() {
		if len(genes) != 1 {
			t.Errorf("SNP %v maps to genes %v", hb.SNPs[i].Name, genes)
		}
	}
	n, err := hb.CalcAlleleCnvBoundaries(DefaultAlleleBoundaryOptions())
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("no LOH found")
	}
	loh := findRegion(hb, AlleleBased, LOH, deletedChrom)
	if loh == nil {
		t.Fatalf("LOH not found: %v", hb.Regions)
	}
	if loh.Start > int32((eventFirst+3)*1000) || loh.End < int32((eventLast-3)*1000) {
		t.Errorf("LOH region %v does not cover the event", loh.ID())
	}
	for _, region := range hb.Regions {
		if region.Chrom != deletedChrom {
			t.Errorf("false positive %v", region.ID())
		}
	}
	// every SNP lies in its own gene, so without expression data the
	// genes come from the SNP factors alone
	if len(loh.Genes) != len(loh.SNPs) {
		t.Errorf("LOH has %v genes for %v SNPs", len(loh.Genes), len(loh.SNPs))
	}
	for i, snp := range loh.SNPs {
		if i < len(loh.Genes) && !strings.HasPrefix(loh.Genes[i], "g"+deletedChrom+"_") {
			t.Errorf("SNP %v mapped to gene %v", snp, loh.Genes[i])
		}
	}

	opts := DefaultRetestOptions()
	opts.RetestBoundGenes, opts.RetestBoundSnps = false, true
	if err := hb.RetestIdentifiedCnvs(opts); err != nil {
		t.Fatal(err)
	}
	for c, p := range loh.Posteriors {
		if (p.LOH > 0.75) != (c < affected) {
			t.Errorf("cell %v: LOH posterior %v", c, p.LOH)
		}
		if !math.IsNaN(p.Amp) {
			t.Errorf("expression posterior without expression data: %+v", p)
		}
	}

	for _, test := range []struct {
		minNumSnps int
		keepsLOH   bool
	}{
		{1, true},
		{len(loh.SNPs), true},
		{len(loh.SNPs) + 1, false},
		{len(hb.SNPs) + 1, false},
	} {
		summary := DefaultSummaryOptions()
		summary.MinNumSnps = test.minNumSnps
		rows, err := hb.SummarizeResults(summary)
		if err != nil {
			t.Fatal(err)
		}
		if test.minNumSnps == 1 && len(rows) != len(hb.Regions) {
			t.Errorf("MinNumSnps 1: expected %v rows, got %v", len(hb.Regions), len(rows))
		}
		keptLOH := false
		for _, row := range rows {
			keptLOH = keptLOH || row.region == loh
			if row.SNPs < test.minNumSnps {
				t.Errorf("MinNumSnps %v: row with %v SNPs", test.minNumSnps, row.SNPs)
			}
			if row.Genes != row.SNPs {
				t.Errorf("row %v-%v has %v genes for %v SNPs", row.Start, row.End, row.Genes, row.SNPs)
			}
		}
		if keptLOH != test.keepsLOH {
			t.Errorf("MinNumSnps %v: LOH reported %v, expected %v", test.minNumSnps, keptLOH, test.keepsLOH)
		}
	}
}

func TestSetAlleleMatsErrors(t *testing.T) {
	data := synthetic()
	hb := New()
	if err := hb.SetAlleleMats(data.alt, data.alt.SelectRows([]int{0, 1}), nil, DefaultAlleleOptions()); err == nil {
		t.Error("expected an error for mismatched matrices")
	}
	if err := hb.SetAlleleMats(data.cov, data.alt, nil, DefaultAlleleOptions()); err == nil {
		t.Error("expected an error for alternate counts exceeding coverage")
	}
	bulk := &BulkCounts{
		Alt: &matrix.Vector{Names: []string{"1:101"}, Values: []float64{5}},
		Cov: &matrix.Vector{Names: []string{"1:101"}, Values: []float64{10}},
	}
	if err := hb.SetAlleleMats(data.alt, data.cov, bulk, DefaultAlleleOptions()); err == nil {
		t.Error("expected an error for incomplete bulk counts")
	}
}

func TestJointAnalysis(t *testing.T) {
	data := synthetic()
	hb := gexpReady(t, data)
	if err := hb.SetAlleleMats(data.alt, data.cov, nil, DefaultAlleleOptions()); err != nil {
		t.Fatal(err)
	}
	if len(hb.Cells) != ncells {
		t.Fatalf("expected %v cells, got %v", ncells, len(hb.Cells))
	}
	if _, err := hb.CalcGexpCnvBoundaries(DefaultBoundaryOptions()); err != nil {
		t.Fatal(err)
	}
	if _, err := hb.CalcAlleleCnvBoundaries(DefaultAlleleBoundaryOptions()); err != nil {
		t.Fatal(err)
	}
	del := findRegion(hb, GeneBased, Deletion, deletedChrom)
	if del == nil {
		t.Fatal("deletion not found")
	}
	if len(del.SNPs) != len(del.Genes) {
		t.Errorf("deletion has %v genes but %v SNPs", len(del.Genes), len(del.SNPs))
	}
	loh := findRegion(hb, AlleleBased, LOH, deletedChrom)
	if loh == nil || len(loh.Genes) == 0 {
		t.Fatal("LOH without genes")
	}

	opts := DefaultRetestOptions()
	opts.RetestBoundSnps = true
	if err := hb.RetestIdentifiedCnvs(opts); err != nil {
		t.Fatal(err)
	}
	for c, p := range del.Posteriors {
		if (p.CombinedDel > 0.75) != (c < affected) {
			t.Errorf("cell %v: combined deletion posterior %v", c, p.CombinedDel)
		}
	}

	rows, err := hb.SummarizeResults(DefaultSummaryOptions())
	if err != nil {
		t.Fatal(err)
	}
	tree, err := hb.ClusterCells(DefaultClusterOptions())
	if err != nil {
		t.Fatal(err)
	}
	labels, err := tree.Cut(2)
	if err != nil {
		t.Fatal(err)
	}
	for c := range labels {
		if (labels[c] == labels[0]) != (c < affected) {
			t.Errorf("cell %v is clustered with the wrong group", c)
		}
	}

	var summary, posteriors, bedOut, newick bytes.Buffer
	if err := hb.WriteSummary(&summary, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(summary.String()), "\n")
	if !strings.HasPrefix(lines[0], "# honeybadger") || !strings.Contains(lines[0], hb.RunID.String()) {
		t.Errorf("unexpected summary comment %v", lines[0])
	}
	if lines[1] != summaryHeader || len(lines) != len(rows)+2 {
		t.Errorf("unexpected summary table %v", lines[1])
	}
	if err := hb.WritePosteriors(&posteriors); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(posteriors.String(), "\n"); n != len(hb.Regions)*ncells+1 {
		t.Errorf("expected %v posterior lines, got %v", len(hb.Regions)*ncells+1, n)
	}
	if err := RegionsBed(rows).Write(&bedOut); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(bedOut.String(), "\n"); n != len(rows)+1 {
		t.Errorf("expected %v BED lines, got %v", len(rows)+1, n)
	}
	if err := hb.WriteTree(&newick, tree); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(newick.String(), ";\n") || !strings.Contains(newick.String(), "cell07") {
		t.Errorf("unexpected Newick output %v", newick.String())
	}
	if _, err := hb.ClusterCells(ClusterOptions{Linkage: cluster.Complete, Threads: 1}); err != nil {
		t.Error(err)
	}

	records, err := hb.CutClusters(tree, 2)
	if err != nil {
		t.Fatal(err)
	}
	for c, record := range records {
		if record.Cell != hb.Cells[c] || record.Cluster < 1 || record.Cluster > 2 {
			t.Errorf("unexpected cluster record %+v", record)
		}
	}
	var clusters bytes.Buffer
	if err := WriteClusters(&clusters, records); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(clusters.String(), "cell\tcluster\n") || strings.Count(clusters.String(), "\n") != ncells+1 {
		t.Errorf("unexpected cluster table %v", clusters.String())
	}
	if _, err := hb.CutClusters(tree, ncells+1); err == nil {
		t.Error("expected an error for too many clusters")
	}
}

const summaryHeader = "chrom\tstart\tend\twidth\tkind\tsource\tn_genes\tn_snps\tllr\tpvalue\tconfidence\t" +
	"mean_amp\tmean_del\tmean_loh\tmean_combined_del\tcalled_cells\tcall"

func TestWriteSummaryColumns(t *testing.T) {
	hb := New()
	region := &Region{Chrom: "1", Start: 100, End: 200, Kind: LOH, Source: AlleleBased}
	rows := []Summary{{
		Chrom:  region.Chrom,
		Start:  region.Start,
		End:    region.End,
		Width:  101,
		Kind:   region.Kind.String(),
		Source: region.Source.String(),
		Call:   "neutral",
		region: region,
	}}
	var out bytes.Buffer
	if err := hb.WriteSummary(&out, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %v", lines)
	}
	if lines[1] != summaryHeader {
		t.Errorf("unexpected header %q", lines[1])
	}
	fields := strings.Split(lines[2], "\t")
	if len(fields) != strings.Count(summaryHeader, "\t")+1 {
		t.Fatalf("expected %v fields, got %v", strings.Count(summaryHeader, "\t")+1, len(fields))
	}
	if fields[0] != "1" || fields[3] != "101" || fields[4] != "LOH" || fields[5] != "allele-based" || fields[len(fields)-1] != "neutral" {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestLesserAllele(t *testing.T) {
	snps, cells := []string{"1:100", "1:200"}, []string{"a", "b", "c"}
	alt, err := matrix.New(snps, cells, []float64{3, 4, 2, 1, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	cov, err := matrix.New(snps, cells, []float64{4, 5, 3, 4, 5, 3})
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name   string
		bulk   *BulkCounts
		lesser []float64
	}{
		// pooled fractions are 9/12 and 2/12
		{"pooled", nil, []float64{1, 1, 1, 1, 0, 1}},
		{"bulk", &BulkCounts{
			Alt: &matrix.Vector{Names: snps, Values: []float64{2, 8}},
			Cov: &matrix.Vector{Names: snps, Values: []float64{10, 10}},
		}, []float64{3, 4, 2, 3, 5, 2}},
		// a balanced bulk keeps the alternate allele
		{"balanced", &BulkCounts{
			Alt: &matrix.Vector{Names: snps, Values: []float64{5, 5}},
			Cov: &matrix.Vector{Names: snps, Values: []float64{10, 10}},
		}, []float64{3, 4, 2, 1, 0, 1}},
	} {
		hb := New()
		opts := DefaultAlleleOptions()
		opts.Filter = false
		if err := hb.SetAlleleMats(alt, cov, test.bulk, opts); err != nil {
			t.Fatalf("%v: %v", test.name, err)
		}
		for i := range snps {
			for j := range cells {
				if got, want := hb.Lesser.At(i, j), test.lesser[i*len(cells)+j]; got != want {
					t.Errorf("%v: lesser count of SNP %v in cell %v is %v, expected %v", test.name, i, j, got, want)
				}
				if hb.Cov.At(i, j) != cov.At(i, j) {
					t.Errorf("%v: coverage changed", test.name)
				}
			}
		}
	}
}

func TestChromRestriction(t *testing.T) {
	data := synthetic()
	for _, test := range []struct {
		chroms []string
		kinds  map[string]Kind
		fails  bool
	}{
		{[]string{"chr" + ampChrom}, map[string]Kind{ampChrom: Amplification}, false},
		{[]string{deletedChrom}, map[string]Kind{deletedChrom: Deletion}, false},
		{[]string{"3"}, nil, false},
		{[]string{"7"}, nil, true},
	} {
		hb := gexpReady(t, data)
		opts := DefaultBoundaryOptions()
		opts.Chroms = test.chroms
		_, err := hb.CalcGexpCnvBoundaries(opts)
		if (err != nil) != test.fails {
			t.Errorf("chromosomes %v: unexpected error %v", test.chroms, err)
			continue
		}
		for _, region := range hb.Regions {
			if _, ok := test.kinds[region.Chrom]; !ok {
				t.Errorf("chromosomes %v: region %v outside the selection", test.chroms, region.ID())
			}
		}
		for chrom, kind := range test.kinds {
			if findRegion(hb, GeneBased, kind, chrom) == nil {
				t.Errorf("chromosomes %v: %v on %v not found", test.chroms, kind, chrom)
			}
		}
	}

	for _, test := range []struct {
		chroms []string
		loh    bool
		fails  bool
	}{
		{[]string{"chr" + deletedChrom}, true, false},
		{[]string{ampChrom, "3"}, false, false},
		{[]string{"X"}, false, true},
	} {
		hb := New()
		if err := hb.SetAlleleMats(data.alt, data.cov, nil, DefaultAlleleOptions()); err != nil {
			t.Fatal(err)
		}
		opts := DefaultAlleleBoundaryOptions()
		opts.Chroms = test.chroms
		_, err := hb.CalcAlleleCnvBoundaries(opts)
		if (err != nil) != test.fails {
			t.Errorf("chromosomes %v: unexpected error %v", test.chroms, err)
			continue
		}
		if (findRegion(hb, AlleleBased, LOH, deletedChrom) != nil) != test.loh {
			t.Errorf("chromosomes %v: LOH found %v, expected %v", test.chroms, !test.loh, test.loh)
		}
		for _, region := range hb.Regions {
			if !selected(region.Chrom, test.chroms) {
				t.Errorf("chromosomes %v: region %v outside the selection", test.chroms, region.ID())
			}
		}
	}
}

func TestSegmentationErrors(t *testing.T) {
	data := synthetic()
	hb := gexpReady(t, data)
	model, err := hmm.NewModel([]float64{0.25, 0.5, 0.25}, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	profile := make([]float64, len(hb.Genes))
	profile[genesPerChr+3] = math.NaN()
	if _, err := hb.segmentGexp(model, profile, 0.1, hb.geneRanges(nil), DefaultBoundaryOptions()); err == nil {
		t.Error("expected an error for an undefined expression profile")
	}
	profile[genesPerChr+3] = 0
	if _, err := hb.segmentGexp(model, profile, 0.1, hb.geneRanges(nil), DefaultBoundaryOptions()); err != nil {
		t.Error(err)
	}

	if err := hb.SetAlleleMats(data.alt, data.cov, nil, DefaultAlleleOptions()); err != nil {
		t.Fatal(err)
	}
	binomial, err := hmm.NewModel([]float64{0.5, 0.5}, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	m, n := hb.pooledCounts(internal.Identity(ncells))
	opts := DefaultAlleleBoundaryOptions()
	opts.Pn = math.NaN()
	if _, err := hb.segmentAlleles(binomial, m, n, hb.snpRanges(nil), opts); err == nil {
		t.Error("expected an error for undefined allele fractions")
	}
}


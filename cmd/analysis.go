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

package cmd

import (
	"bufio"
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/sqsun/HoneyBADGER/annotation"
	"github.com/sqsun/HoneyBADGER/cluster"
	"github.com/sqsun/HoneyBADGER/cnv"
	"github.com/sqsun/HoneyBADGER/internal"
	"github.com/sqsun/HoneyBADGER/matrix"
)

const commonHelp = "[--posterior-threshold nr]\n" +
	"[--linkage [average | complete | single]]\n" +
	"[--clusters k]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

const gexpFlagsHelp = "[--no-filter]\n" +
	"[--min-mean-both nr]\n" +
	"[--min-mean-test nr]\n" +
	"[--min-mean-ref nr]\n" +
	"[--no-scale]\n" +
	"[--num-genes n,n,...]\n" +
	"[--mv-reps n]\n" +
	"[--dev nr]\n" +
	"[--alpha nr]\n" +
	"[--window-size n]\n" +
	"[--nr-of-windows n]\n" +
	"[--min-traverse n]\n" +
	"[--t nr]\n" +
	"[--min-num-genes n]\n" +
	"[--trim nr]\n" +
	"[--chroms chr,chr,...]\n" +
	"[--max-iterations n]\n" +
	"[--seed n]\n"

const alleleFlagsHelp = "[--cov-matrix file]\n" +
	"[--bulk-alt file --bulk-cov file]\n" +
	"[--no-snp-filter]\n" +
	"[--het-deviance-threshold nr]\n" +
	"[--min-cell n]\n" +
	"[--pd nr]\n" +
	"[--pn nr]\n" +
	"[--min-num-snps n]\n" +
	"[--allele-chroms chr,chr,...]\n"

// analysisFlags collects the command line options shared by the
// honeybadger commands.
type analysisFlags struct {
	gexp     cnv.GexpOptions
	mvFit    cnv.MvFitOptions
	dev      cnv.DevOptions
	boundary cnv.BoundaryOptions
	allele   cnv.AlleleOptions
	alleleBd cnv.AlleleBoundaryOptions
	retest   cnv.RetestOptions
	summary  cnv.SummaryOptions

	noFilter, noScale, noSnpFilter bool
	numGenes, chroms, alleleChroms string
	fixedDev                       float64
	seed                           int64
	covMatrix, bulkAlt, bulkCov    string
	linkage                        string
	clusters                       int
	nrOfThreads                    int
	timed                          bool
	profile, logPath               string
}

func newAnalysisFlags() *analysisFlags {
	return &analysisFlags{
		gexp:     cnv.DefaultGexpOptions(),
		mvFit:    cnv.DefaultMvFitOptions(),
		dev:      cnv.DefaultDevOptions(),
		boundary: cnv.DefaultBoundaryOptions(),
		allele:   cnv.DefaultAlleleOptions(),
		alleleBd: cnv.DefaultAlleleBoundaryOptions(),
		retest:   cnv.DefaultRetestOptions(),
		summary:  cnv.DefaultSummaryOptions(),
	}
}

func (a *analysisFlags) registerCommon(flags *flag.FlagSet) {
	flags.Float64Var(&a.summary.T, "posterior-threshold", a.summary.T, "posterior probability above which a cell is called")
	flags.StringVar(&a.linkage, "linkage", cluster.Average.String(), "linkage for clustering cells on their posteriors")
	flags.IntVar(&a.clusters, "clusters", 0, "cut the cell dendrogram into this many clusters and write them")
	flags.IntVar(&a.nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&a.timed, "timed", false, "measure the runtime")
	flags.StringVar(&a.profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&a.logPath, "log-path", "", "write log files to the specified directory")
}

func (a *analysisFlags) registerGexp(flags *flag.FlagSet) {
	flags.BoolVar(&a.noFilter, "no-filter", false, "keep lowly expressed genes")
	flags.Float64Var(&a.gexp.MinMeanBoth, "min-mean-both", a.gexp.MinMeanBoth, "minimum mean expression in both test and reference")
	flags.Float64Var(&a.gexp.MinMeanTest, "min-mean-test", a.gexp.MinMeanTest, "minimum mean expression in the test cells alone")
	flags.Float64Var(&a.gexp.MinMeanRef, "min-mean-ref", a.gexp.MinMeanRef, "minimum expression in the reference alone")
	flags.BoolVar(&a.noScale, "no-scale", false, "do not center expression")
	flags.StringVar(&a.numGenes, "num-genes", "", "gene set sizes for the mean-variance fit")
	flags.IntVar(&a.mvFit.Reps, "mv-reps", a.mvFit.Reps, "random gene sets per size for the mean-variance fit")
	flags.Float64Var(&a.fixedDev, "dev", 0, "expected expression deviance of a CNV (estimated when 0)")
	flags.Float64Var(&a.dev.Alpha, "alpha", a.dev.Alpha, "deviance quantile level")
	flags.IntVar(&a.dev.WindowSize, "window-size", a.dev.WindowSize, "genes per window for deviance estimation")
	flags.IntVar(&a.dev.N, "nr-of-windows", a.dev.N, "windows for deviance estimation")
	flags.IntVar(&a.boundary.MinTraverse, "min-traverse", a.boundary.MinTraverse, "minimum number of cells in a segmented cluster")
	flags.Float64Var(&a.boundary.T, "t", a.boundary.T, "HMM state switch probability")
	flags.IntVar(&a.boundary.MinNumGenes, "min-num-genes", a.boundary.MinNumGenes, "minimum number of genes in a region")
	flags.Float64Var(&a.boundary.Trim, "trim", a.boundary.Trim, "fraction of cells trimmed from each tail")
	flags.StringVar(&a.chroms, "chroms", "", "restrict expression boundaries to these chromosomes")
	flags.IntVar(&a.boundary.MaxIterations, "max-iterations", a.boundary.MaxIterations, "maximum cluster-segment-retest rounds")
	flags.Int64Var(&a.seed, "seed", 0, "random seed")
}

func (a *analysisFlags) registerAllele(flags *flag.FlagSet) {
	flags.StringVar(&a.covMatrix, "cov-matrix", "", "coverage matrix, when allele counts are not given as VCF")
	flags.StringVar(&a.bulkAlt, "bulk-alt", "", "bulk alternate allele counts")
	flags.StringVar(&a.bulkCov, "bulk-cov", "", "bulk coverage")
	flags.BoolVar(&a.noSnpFilter, "no-snp-filter", false, "keep all SNPs")
	flags.Float64Var(&a.allele.HetDevianceThreshold, "het-deviance-threshold", a.allele.HetDevianceThreshold, "maximum deviation of the bulk allele fraction from 0 or 1 for homozygous SNPs")
	flags.IntVar(&a.allele.MinCell, "min-cell", a.allele.MinCell, "minimum number of cells covering a SNP")
	flags.Float64Var(&a.alleleBd.Pd, "pd", a.alleleBd.Pd, "expected lesser allele fraction under LOH")
	flags.Float64Var(&a.alleleBd.Pn, "pn", a.alleleBd.Pn, "expected lesser allele fraction when heterozygous")
	flags.IntVar(&a.alleleBd.MinNumSnps, "min-num-snps", a.alleleBd.MinNumSnps, "minimum number of SNPs in a region")
	flags.StringVar(&a.alleleChroms, "allele-chroms", "", "restrict allele boundaries to these chromosomes")
}

// finish copies the derived settings into the option structs, and
// logs and reports invalid settings.
func (a *analysisFlags) finish() bool {
	ok := true
	a.gexp.Filter, a.gexp.Scale = !a.noFilter, !a.noScale
	a.allele.Filter = !a.noSnpFilter
	if a.numGenes != "" {
		sizes, err := parseSizes(a.numGenes)
		if err != nil {
			log.Println("Error: Invalid --num-genes:", err)
			ok = false
		}
		a.mvFit.NumGenes = sizes
	}
	a.mvFit.Seed, a.dev.Seed = a.seed, a.seed
	a.boundary.Chroms = parseChroms(a.chroms)
	a.alleleBd.Chroms = parseChroms(a.alleleChroms)
	a.retest.Pd, a.retest.Pn = a.alleleBd.Pd, a.alleleBd.Pn
	a.summary.MinNumSnps = a.alleleBd.MinNumSnps
	a.mvFit.Threads, a.boundary.Threads, a.allele.Threads = a.nrOfThreads, a.nrOfThreads, a.nrOfThreads
	a.alleleBd.Threads, a.retest.Threads = a.nrOfThreads, a.nrOfThreads
	if a.nrOfThreads < 0 {
		log.Println("Error: Invalid nr-of-threads: ", a.nrOfThreads)
		ok = false
	}
	if _, err := cluster.ParseLinkage(a.linkage); err != nil {
		log.Println("Error:", err)
		ok = false
	}
	if a.clusters < 0 {
		log.Println("Error: Invalid number of clusters: ", a.clusters)
		ok = false
	}
	if (a.bulkAlt == "") != (a.bulkCov == "") {
		log.Println("Error: --bulk-alt and --bulk-cov must be given together.")
		ok = false
	}
	if a.bulkAlt != "" && (!checkExist("--bulk-alt", a.bulkAlt) || !checkExist("--bulk-cov", a.bulkCov)) {
		ok = false
	}
	if a.covMatrix != "" && !checkExist("--cov-matrix", a.covMatrix) {
		ok = false
	}
	if a.profile != "" && !checkCreate("--profile", a.profile) {
		ok = false
	}
	return ok
}

func isVcf(filename string) bool {
	return strings.HasSuffix(filename, ".vcf") || strings.HasSuffix(filename, ".vcf.gz")
}

// checkAlleleInput checks that allele counts come either from a VCF
// file or from an alternate allele matrix plus --cov-matrix.
func (a *analysisFlags) checkAlleleInput(alleles string) bool {
	if isVcf(alleles) {
		if a.covMatrix != "" {
			log.Println("Warning: The --cov-matrix option is ignored for VCF input.")
		}
		return true
	}
	if a.covMatrix == "" {
		log.Println("Error: Allele counts given as a matrix require a coverage matrix. Please add the --cov-matrix option to your call.")
		return false
	}
	return true
}

func checkOutputPrefix(prefix string) bool {
	return checkCreate("", prefix+".summary.tsv")
}

func readGexpInputs(exprFile, refFile string) (*matrix.Matrix, *matrix.Vector, error) {
	test, err := matrix.ReadMatrix(exprFile)
	if err != nil {
		return nil, nil, err
	}
	ref, err := matrix.ReadVector(refFile)
	if err != nil {
		return nil, nil, err
	}
	return test, ref, nil
}

func (a *analysisFlags) readAlleleInputs(alleles string) (alt, cov *matrix.Matrix, bulk *cnv.BulkCounts, err error) {
	if isVcf(alleles) {
		alt, cov, err = matrix.ReadVcfAlleles(alleles)
	} else {
		if alt, err = matrix.ReadMatrix(alleles); err == nil {
			cov, err = matrix.ReadMatrix(a.covMatrix)
		}
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if a.bulkAlt != "" {
		bulk = &cnv.BulkCounts{}
		if bulk.Alt, err = matrix.ReadVector(a.bulkAlt); err != nil {
			return nil, nil, nil, err
		}
		if bulk.Cov, err = matrix.ReadVector(a.bulkCov); err != nil {
			return nil, nil, nil, err
		}
	}
	return alt, cov, bulk, nil
}

func readGenes(filename string) ([]annotation.Gene, error) {
	genes, err := annotation.ReadGenes(filename)
	if err != nil {
		return nil, err
	}
	log.Printf("Read %v gene coordinates from %v.\n", len(genes), filepath.Base(filename))
	return genes, nil
}

// runGexp runs the expression branch up to boundary detection.
func (a *analysisFlags) runGexp(hb *cnv.HoneyBadger, test *matrix.Matrix, ref *matrix.Vector, genes []annotation.Gene) (err error) {
	timedRun(a.timed, a.profile, "Setting expression matrices.", 1, func() {
		err = hb.SetGexpMats(test, ref, genes, a.gexp)
	})
	if err != nil {
		return err
	}
	timedRun(a.timed, a.profile, "Fitting mean-variance model.", 2, func() {
		err = hb.SetMvFit(a.mvFit)
	})
	if err != nil {
		return err
	}
	if a.fixedDev > 0 {
		err = hb.SetDev(a.fixedDev)
	} else {
		timedRun(a.timed, a.profile, "Estimating expression deviance.", 3, func() {
			err = hb.SetGexpDev(a.dev)
		})
	}
	if err != nil {
		return err
	}
	timedRun(a.timed, a.profile, "Calculating expression CNV boundaries.", 4, func() {
		var n int
		n, err = hb.CalcGexpCnvBoundaries(a.boundary)
		log.Printf("Found %v expression-based regions.\n", n)
	})
	return err
}

// runAllele runs the allele branch up to boundary detection.
func (a *analysisFlags) runAllele(hb *cnv.HoneyBadger, alt, cov *matrix.Matrix, bulk *cnv.BulkCounts, genes []annotation.Gene) (err error) {
	timedRun(a.timed, a.profile, "Setting allele matrices.", 5, func() {
		err = hb.SetAlleleMats(alt, cov, bulk, a.allele)
		if err == nil {
			err = hb.SetGeneFactors(genes)
		}
	})
	if err != nil {
		return err
	}
	timedRun(a.timed, a.profile, "Calculating allele CNV boundaries.", 6, func() {
		var n int
		n, err = hb.CalcAlleleCnvBoundaries(a.alleleBd)
		log.Printf("Found %v allele-based regions.\n", n)
	})
	return err
}

// finishAnalysis retests all regions, summarizes and clusters the
// cells, and writes the output files.
func (a *analysisFlags) finishAnalysis(hb *cnv.HoneyBadger, prefix string) (err error) {
	if len(hb.Regions) == 0 {
		log.Println("No CNV regions found, no output written.")
		return nil
	}
	timedRun(a.timed, a.profile, "Retesting identified CNVs.", 7, func() {
		err = hb.RetestIdentifiedCnvs(a.retest)
	})
	if err != nil {
		return err
	}
	rows, err := hb.SummarizeResults(a.summary)
	if err != nil {
		return err
	}
	linkage, _ := cluster.ParseLinkage(a.linkage)
	tree, err := hb.ClusterCells(cnv.ClusterOptions{Linkage: linkage, Threads: a.nrOfThreads})
	if err != nil {
		return err
	}
	var clusters []cnv.ClusterRecord
	if a.clusters > 0 {
		if clusters, err = hb.CutClusters(tree, a.clusters); err != nil {
			return err
		}
	}
	if err = internal.WriteFile(prefix+".summary.tsv", func(w *bufio.Writer) error {
		return hb.WriteSummary(w, rows)
	}); err != nil {
		return err
	}
	if err = internal.WriteFile(prefix+".posteriors.tsv", func(w *bufio.Writer) error {
		return hb.WritePosteriors(w)
	}); err != nil {
		return err
	}
	if err = internal.WriteFile(prefix+".regions.bed", func(w *bufio.Writer) error {
		return cnv.RegionsBed(rows).Write(w)
	}); err != nil {
		return err
	}
	if err = internal.WriteFile(prefix+".tree.nwk", func(w *bufio.Writer) error {
		return hb.WriteTree(w, tree)
	}); err != nil {
		return err
	}
	if clusters != nil {
		if err = internal.WriteFile(prefix+".clusters.tsv", func(w *bufio.Writer) error {
			return cnv.WriteClusters(w, clusters)
		}); err != nil {
			return err
		}
	}
	log.Printf("Wrote %v regions for %v cells with prefix %v (run %v).\n", len(rows), len(hb.Cells), prefix, hb.RunID)
	return nil
}

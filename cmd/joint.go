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
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sqsun/HoneyBADGER/cnv"
)

// JointHelp is the help string for this command.
const JointHelp = "\njoint parameters:\n" +
	"honeybadger joint expr-matrix ref-vector (alleles.vcf[.gz] | alt-matrix --cov-matrix file) genes output-prefix\n" +
	gexpFlagsHelp + alleleFlagsHelp +
	"[--gene-based-only]\n" +
	commonHelp

// Joint implements the honeybadger joint command: CNV and LOH
// detection from expression and allele counts of the same cells, with
// combined deletion posteriors.
func Joint() error {
	var geneBasedOnly bool

	a := newAnalysisFlags()
	var flags flag.FlagSet
	a.registerGexp(&flags)
	a.registerAllele(&flags)
	flags.BoolVar(&geneBasedOnly, "gene-based-only", false, "report only regions identified from expression")
	a.registerCommon(&flags)

	parseFlags(&flags, 7, JointHelp)

	exprFile := getFilename(os.Args[2], JointHelp)
	refFile := getFilename(os.Args[3], JointHelp)
	allelesFile := getFilename(os.Args[4], JointHelp)
	genesFile := getFilename(os.Args[5], JointHelp)
	prefix := getFilename(os.Args[6], JointHelp)

	setLogOutput(a.logPath)

	// sanity checks

	var sanityChecksFailed bool

	for _, input := range []string{exprFile, refFile, allelesFile, genesFile} {
		if !checkExist("", input) {
			sanityChecksFailed = true
		}
	}
	if !checkOutputPrefix(prefix) {
		sanityChecksFailed = true
	}
	if !a.finish() {
		sanityChecksFailed = true
	}
	if !a.checkAlleleInput(allelesFile) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, JointHelp)
		os.Exit(1)
	}

	a.retest.RetestBoundGenes, a.retest.RetestBoundSnps = true, true
	a.summary.GeneBased, a.summary.AlleleBased = true, !geneBasedOnly

	// executing command

	log.Println("Executing command:\n", os.Args)

	test, ref, err := readGexpInputs(exprFile, refFile)
	if err != nil {
		return err
	}
	alt, cov, bulk, err := a.readAlleleInputs(allelesFile)
	if err != nil {
		return err
	}
	genes, err := readGenes(genesFile)
	if err != nil {
		return err
	}
	hb := cnv.New()
	hb.Verbose = true
	log.Println("Run", hb.RunID)
	if err := a.runGexp(hb, test, ref, genes); err != nil {
		return err
	}
	if err := a.runAllele(hb, alt, cov, bulk, genes); err != nil {
		return err
	}
	return a.finishAnalysis(hb, prefix)
}

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

// AlleleHelp is the help string for this command.
const AlleleHelp = "\nallele parameters:\n" +
	"honeybadger allele (alleles.vcf[.gz] | alt-matrix --cov-matrix file) genes output-prefix\n" +
	alleleFlagsHelp + commonHelp

// Allele implements the honeybadger allele command: LOH detection
// from allele counts alone.
func Allele() error {
	a := newAnalysisFlags()
	var flags flag.FlagSet
	a.registerAllele(&flags)
	a.registerCommon(&flags)

	parseFlags(&flags, 5, AlleleHelp)

	allelesFile := getFilename(os.Args[2], AlleleHelp)
	genesFile := getFilename(os.Args[3], AlleleHelp)
	prefix := getFilename(os.Args[4], AlleleHelp)

	setLogOutput(a.logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", allelesFile) {
		sanityChecksFailed = true
	}
	if !checkExist("", genesFile) {
		sanityChecksFailed = true
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
		fmt.Fprint(os.Stderr, AlleleHelp)
		os.Exit(1)
	}

	a.retest.RetestBoundGenes, a.retest.RetestBoundSnps = false, true
	a.summary.GeneBased, a.summary.AlleleBased = false, true

	// executing command

	log.Println("Executing command:\n", os.Args)

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
	if err := a.runAllele(hb, alt, cov, bulk, genes); err != nil {
		return err
	}
	return a.finishAnalysis(hb, prefix)
}

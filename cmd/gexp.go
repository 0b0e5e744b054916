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

// GexpHelp is the help string for this command.
const GexpHelp = "\ngexp parameters:\n" +
	"honeybadger gexp expr-matrix ref-vector genes output-prefix\n" +
	gexpFlagsHelp + commonHelp

// Gexp implements the honeybadger gexp command: CNV detection from
// expression alone.
func Gexp() error {
	a := newAnalysisFlags()
	var flags flag.FlagSet
	a.registerGexp(&flags)
	a.registerCommon(&flags)

	parseFlags(&flags, 6, GexpHelp)

	exprFile := getFilename(os.Args[2], GexpHelp)
	refFile := getFilename(os.Args[3], GexpHelp)
	genesFile := getFilename(os.Args[4], GexpHelp)
	prefix := getFilename(os.Args[5], GexpHelp)

	setLogOutput(a.logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", exprFile) {
		sanityChecksFailed = true
	}
	if !checkExist("", refFile) {
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

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, GexpHelp)
		os.Exit(1)
	}

	a.retest.RetestBoundGenes, a.retest.RetestBoundSnps = true, false
	a.summary.GeneBased, a.summary.AlleleBased = true, false

	// executing command

	log.Println("Executing command:\n", os.Args)

	test, ref, err := readGexpInputs(exprFile, refFile)
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
	return a.finishAnalysis(hb, prefix)
}

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

// HoneyBADGER detects copy-number variations and loss of
// heterozygosity in single cells from single-cell RNA-seq expression
// and allele counts.
//
// Please see https://github.com/sqsun/HoneyBADGER for a documentation
// of the tool, and the cnv package for the API documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sqsun/HoneyBADGER/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: gexp, allele, joint")
	fmt.Fprint(os.Stderr, "\n", cmd.GexpHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.AlleleHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.JointHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "gexp":
		err = cmd.Gexp()
	case "allele":
		err = cmd.Allele()
	case "joint":
		err = cmd.Joint()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

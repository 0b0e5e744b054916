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

package utils

import (
	"strconv"
	"strings"

	"github.com/exascience/pargo/sync"

	"github.com/sqsun/HoneyBADGER/internal"
)

type symbolName string

// A Symbol is a unique pointer to a chromosome name.
type Symbol *string

// Hash is required by the pargo symbol table.
func (s symbolName) Hash() uint64 {
	return internal.StringHash(string(s))
}

var symbolTable = sync.NewMap(0)

/*
Intern returns a Symbol for the given chromosome name.

Matrices with hundreds of thousands of SNP rows repeat the same couple
of dozen chromosome names over and over, so SNP records keep interned
names. Intern always returns the same pointer for equal strings, and
*Intern(s) == s always holds.

It is safe for multiple goroutines to call Intern concurrently.
*/
func Intern(s string) Symbol {
	entry, _ := symbolTable.LoadOrStore(symbolName(s), Symbol(&s))
	return entry.(Symbol)
}

// CanonicalChrom strips a leading "chr" (in any case) from a
// chromosome name, so that "chr7", "Chr7" and "7" compare equal.
func CanonicalChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// chromRank maps canonical chromosome names to their position in the
// natural genome order: autosomes numerically, then X, Y and M.
// Unknown contigs get rank -1.
func chromRank(chrom string) int {
	c := CanonicalChrom(chrom)
	if n, err := strconv.Atoi(c); err == nil && n > 0 {
		return n
	}
	switch strings.ToUpper(c) {
	case "X":
		return 1000
	case "Y":
		return 1001
	case "M", "MT":
		return 1002
	}
	return -1
}

// CompareChrom orders chromosome names naturally (1 < 2 < 10 < X < Y <
// M), followed by all other contigs in lexicographic order. The
// result is negative, zero, or positive, like strings.Compare.
func CompareChrom(a, b string) int {
	ra, rb := chromRank(a), chromRank(b)
	switch {
	case ra >= 0 && rb >= 0:
		return ra - rb
	case ra >= 0:
		return -1
	case rb >= 0:
		return 1
	}
	return strings.Compare(CanonicalChrom(a), CanonicalChrom(b))
}

// SameChrom reports whether two chromosome names denote the same
// chromosome, ignoring a "chr" prefix.
func SameChrom(a, b string) bool {
	return CanonicalChrom(a) == CanonicalChrom(b)
}

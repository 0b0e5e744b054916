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

package internal

import (
	"math/rand"

	"github.com/exascience/pargo/pipeline"
)

// Rand is the random number generator used for all sampling.
type Rand = rand.Rand

// NewRand returns a Go-style random number generator.
func NewRand(seed int64) *Rand {
	return rand.New(rand.NewSource(seed))
}

// Sample draws k distinct indices from [0, n) into buf using a partial
// Fisher-Yates shuffle of perm. perm must hold a permutation of [0, n)
// and is left permuted; reusing it across calls keeps sampling
// allocation-free. k must not exceed n.
func Sample(r *Rand, perm []int, k int, buf []int) []int {
	n := len(perm)
	buf = buf[:0]
	for i := 0; i < k; i++ {
		j := i + r.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
		buf = append(buf, perm[i])
	}
	return buf
}

// Identity returns the permutation 0, 1, ..., n-1.
func Identity(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// RunPipeline runs p and returns its first error, if any.
func RunPipeline(p *pipeline.Pipeline) error {
	p.Run()
	return p.Err()
}

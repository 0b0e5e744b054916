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

package hmm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func gaussianEmissions(xs, means []float64, sd float64) [][]float64 {
	emissions := make([][]float64, len(xs))
	for t, x := range xs {
		emissions[t] = make([]float64, len(means))
		for s, mu := range means {
			emissions[t][s] = distuv.Normal{Mu: mu, Sigma: sd}.LogProb(x)
		}
	}
	return emissions
}

func TestNewModel(t *testing.T) {
	m, err := NewModel([]float64{1, 2, 1}, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(math.Exp(m.LogInit[1])-0.5) > 1e-12 {
		t.Error("initial probabilities are not normalized")
	}
	for i, row := range m.LogTrans {
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v)
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("transition row %v sums to %v", i, sum)
		}
	}
	for _, bad := range []struct {
		init []float64
		t    float64
	}{
		{[]float64{1}, 0.1},
		{[]float64{1, 1}, 0},
		{[]float64{1, 1}, 1},
		{[]float64{0, 0}, 0.1},
		{[]float64{1, -1, 1}, 0.1},
	} {
		if _, err := NewModel(bad.init, bad.t); err == nil {
			t.Errorf("expected an error for %+v", bad)
		}
	}
}

func TestViterbiSegments(t *testing.T) {
	var xs []float64
	for i := 0; i < 30; i++ {
		switch {
		case i >= 10 && i < 18:
			xs = append(xs, 1.05)
		case i >= 22 && i < 27:
			xs = append(xs, -0.95)
		default:
			xs = append(xs, 0.02*float64(i%3-1))
		}
	}
	m, err := NewModel([]float64{0.25, 0.5, 0.25}, 1e-4)
	if err != nil {
		t.Fatal(err)
	}
	path, logProb, err := m.Viterbi(gaussianEmissions(xs, []float64{-1, 0, 1}, 0.3))
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(logProb, 0) || math.IsNaN(logProb) {
		t.Errorf("invalid log probability %v", logProb)
	}
	runs := Runs(path)
	expected := []Run{{1, 0, 9}, {2, 10, 17}, {1, 18, 21}, {0, 22, 26}, {1, 27, 29}}
	if len(runs) != len(expected) {
		t.Fatalf("unexpected runs %v", runs)
	}
	for i := range runs {
		if runs[i] != expected[i] {
			t.Errorf("run %v: got %v, expected %v", i, runs[i], expected[i])
		}
	}
	if expected[1].Len() != 8 {
		t.Error("Run.Len is wrong")
	}
}

func TestPosterior(t *testing.T) {
	xs := []float64{0, 0, 0, 2, 2, 2, 0, 0}
	m, err := NewModel([]float64{0.5, 0.5}, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	emissions := gaussianEmissions(xs, []float64{0, 2}, 0.5)
	posterior, logLik, err := m.Posterior(emissions)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range posterior {
		if math.Abs(p[0]+p[1]-1) > 1e-9 {
			t.Errorf("posterior %v does not sum to 1: %v", i, p)
		}
	}
	if posterior[4][1] < 0.99 || posterior[1][0] < 0.99 {
		t.Errorf("unexpected posteriors %v", posterior)
	}

	// brute force the likelihood over all 2^8 paths
	total := math.Inf(-1)
	for mask := 0; mask < 1<<len(xs); mask++ {
		lp := 0.0
		prev := -1
		for i := range xs {
			s := (mask >> i) & 1
			if i == 0 {
				lp += m.LogInit[s]
			} else {
				lp += m.LogTrans[prev][s]
			}
			lp += emissions[i][s]
			prev = s
		}
		hi, lo := math.Max(total, lp), math.Min(total, lp)
		total = hi + math.Log1p(math.Exp(lo-hi))
	}
	if math.Abs(total-logLik) > 1e-8 {
		t.Errorf("forward log-likelihood %v differs from brute force %v", logLik, total)
	}
}

func TestErrors(t *testing.T) {
	m, err := NewModel([]float64{1, 1}, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Viterbi(nil); err != ErrEmpty {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	if _, _, err := m.Posterior([][]float64{{0, 0, 0}}); err == nil {
		t.Error("expected a dimension error")
	}
	if _, _, err := m.Viterbi([][]float64{{0, math.NaN()}}); err == nil {
		t.Error("expected a NaN error")
	}
	if _, _, err := m.Posterior([][]float64{{math.Inf(-1), math.Inf(-1)}}); err == nil {
		t.Error("expected a zero likelihood error")
	}
}

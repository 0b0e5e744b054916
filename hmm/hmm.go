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

// Package hmm implements discrete-state hidden Markov models over
// sequences of observations whose per-state emission log-likelihoods
// have been computed by the caller. It is used to segment genes or
// SNPs along a chromosome into copy-number states.
package hmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrEmpty is returned for sequences without observations.
var ErrEmpty = errors.New("hmm: empty observation sequence")

// A Model is a hidden Markov model with log-space initial and
// transition probabilities. LogTrans[i][j] is the log probability of
// moving from state i to state j.
type Model struct {
	LogInit  []float64
	LogTrans [][]float64
}

// NewModel creates a sticky model: from every state, the chain stays
// with probability 1-t and moves to each other state with probability
// t/(n-1). init holds the initial state probabilities and is
// normalized.
func NewModel(init []float64, t float64) (*Model, error) {
	n := len(init)
	if n < 2 {
		return nil, fmt.Errorf("hmm: need at least 2 states, got %v", n)
	}
	if !(t > 0 && t < 1) {
		return nil, fmt.Errorf("hmm: transition probability %v not in (0, 1)", t)
	}
	sum := floats.Sum(init)
	if !(sum > 0) {
		return nil, fmt.Errorf("hmm: initial probabilities must sum to a positive value")
	}
	m := &Model{LogInit: make([]float64, n), LogTrans: make([][]float64, n)}
	stay, move := math.Log(1-t), math.Log(t/float64(n-1))
	for i, p := range init {
		if p < 0 {
			return nil, fmt.Errorf("hmm: negative initial probability %v", p)
		}
		m.LogInit[i] = math.Log(p / sum)
		m.LogTrans[i] = make([]float64, n)
		for j := range m.LogTrans[i] {
			if i == j {
				m.LogTrans[i][j] = stay
			} else {
				m.LogTrans[i][j] = move
			}
		}
	}
	return m, nil
}

// States returns the number of states.
func (m *Model) States() int {
	return len(m.LogInit)
}

func (m *Model) check(emissions [][]float64) error {
	if len(emissions) == 0 {
		return ErrEmpty
	}
	n := m.States()
	if len(m.LogTrans) != n {
		return fmt.Errorf("hmm: transition matrix has %v rows, expected %v", len(m.LogTrans), n)
	}
	for i, row := range m.LogTrans {
		if len(row) != n {
			return fmt.Errorf("hmm: transition row %v has %v entries, expected %v", i, len(row), n)
		}
	}
	for i, e := range emissions {
		if len(e) != n {
			return fmt.Errorf("hmm: observation %v has %v emissions, expected %v", i, len(e), n)
		}
		for _, v := range e {
			if math.IsNaN(v) {
				return fmt.Errorf("hmm: observation %v has a NaN emission", i)
			}
		}
	}
	return nil
}

type float64Matrix struct {
	cols  int
	array []float64
}

func newFloat64Matrix(rows, cols int) float64Matrix {
	return float64Matrix{cols: cols, array: make([]float64, rows*cols)}
}

func (m float64Matrix) rowView(row int) []float64 {
	offset := row * m.cols
	return m.array[offset : offset+m.cols]
}

// Viterbi returns the most likely state path for the given emission
// log-likelihoods (emissions[t][state]) and its log probability. Ties
// are broken in favor of the lower state index.
func (m *Model) Viterbi(emissions [][]float64) (path []int, logProb float64, err error) {
	if err = m.check(emissions); err != nil {
		return nil, 0, err
	}
	n, length := m.States(), len(emissions)
	score := newFloat64Matrix(length, n)
	back := make([]int, length*n)

	first := score.rowView(0)
	for s := 0; s < n; s++ {
		first[s] = m.LogInit[s] + emissions[0][s]
	}
	for t := 1; t < length; t++ {
		prev, cur := score.rowView(t-1), score.rowView(t)
		for s := 0; s < n; s++ {
			best, arg := math.Inf(-1), 0
			for r := 0; r < n; r++ {
				if v := prev[r] + m.LogTrans[r][s]; v > best {
					best, arg = v, r
				}
			}
			cur[s] = best + emissions[t][s]
			back[t*n+s] = arg
		}
	}

	last := score.rowView(length - 1)
	path = make([]int, length)
	logProb = math.Inf(-1)
	for s, v := range last {
		if v > logProb {
			logProb, path[length-1] = v, s
		}
	}
	for t := length - 1; t > 0; t-- {
		path[t-1] = back[t*n+path[t]]
	}
	return path, logProb, nil
}

// Posterior runs the forward-backward algorithm and returns the
// posterior state probabilities per observation (posterior[t][state])
// together with the log-likelihood of the whole sequence.
func (m *Model) Posterior(emissions [][]float64) (posterior [][]float64, logLik float64, err error) {
	if err = m.check(emissions); err != nil {
		return nil, 0, err
	}
	n, length := m.States(), len(emissions)
	alpha := newFloat64Matrix(length, n)
	beta := newFloat64Matrix(length, n)
	terms := make([]float64, n)

	first := alpha.rowView(0)
	for s := 0; s < n; s++ {
		first[s] = m.LogInit[s] + emissions[0][s]
	}
	for t := 1; t < length; t++ {
		prev, cur := alpha.rowView(t-1), alpha.rowView(t)
		for s := 0; s < n; s++ {
			for r := 0; r < n; r++ {
				terms[r] = prev[r] + m.LogTrans[r][s]
			}
			cur[s] = floats.LogSumExp(terms) + emissions[t][s]
		}
	}
	for t := length - 2; t >= 0; t-- {
		next, cur := beta.rowView(t+1), beta.rowView(t)
		for s := 0; s < n; s++ {
			for r := 0; r < n; r++ {
				terms[r] = m.LogTrans[s][r] + emissions[t+1][r] + next[r]
			}
			cur[s] = floats.LogSumExp(terms)
		}
	}

	logLik = floats.LogSumExp(alpha.rowView(length - 1))
	if math.IsInf(logLik, -1) {
		return nil, logLik, errors.New("hmm: observation sequence has zero likelihood under the model")
	}
	posterior = make([][]float64, length)
	for t := range posterior {
		a, b := alpha.rowView(t), beta.rowView(t)
		row := make([]float64, n)
		for s := range row {
			row[s] = math.Exp(a[s] + b[s] - logLik)
		}
		posterior[t] = row
	}
	return posterior, logLik, nil
}

// A Run is a maximal stretch of observations [Start, End] (inclusive)
// assigned to the same state.
type Run struct {
	State      int
	Start, End int
}

// Len returns the number of observations in the run.
func (r Run) Len() int {
	return r.End - r.Start + 1
}

// Runs splits a state path into maximal runs.
func Runs(path []int) (runs []Run) {
	for i, s := range path {
		if i == 0 || s != path[i-1] {
			runs = append(runs, Run{State: s, Start: i, End: i})
		} else {
			runs[len(runs)-1].End = i
		}
	}
	return runs
}

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

// Package matrix provides labeled numeric matrices and vectors, as
// used for gene expression (genes x cells) and allele counts (SNPs x
// cells), together with readers for delimited and VCF inputs.
package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// A Matrix is a dense matrix with named rows and columns.
type Matrix struct {
	Rows []string
	Cols []string
	Data *mat.Dense
}

// A Vector is a named vector, such as a reference expression profile
// or bulk allele counts.
type Vector struct {
	Names  []string
	Values []float64
}

// New creates a Matrix from row-major data. A nil data slice creates a
// zero matrix.
func New(rows, cols []string, data []float64) (*Matrix, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("matrix must have at least one row and one column, got %v x %v", len(rows), len(cols))
	}
	if data != nil && len(data) != len(rows)*len(cols) {
		return nil, fmt.Errorf("matrix data has %v entries, expected %v x %v", len(data), len(rows), len(cols))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: mat.NewDense(len(rows), len(cols), data)}, nil
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return len(m.Rows), len(m.Cols)
}

// At returns the value at row i and column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data.At(i, j)
}

// Row returns a view of row i. Changes to the slice change the matrix.
func (m *Matrix) Row(i int) []float64 {
	return m.Data.RawRowView(i)
}

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 {
	return mat.Col(nil, j, m.Data)
}

// RowIndex maps row names to row indices.
func (m *Matrix) RowIndex() map[string]int {
	return nameIndex(m.Rows)
}

// ColIndex maps column names to column indices.
func (m *Matrix) ColIndex() map[string]int {
	return nameIndex(m.Cols)
}

func nameIndex(names []string) map[string]int {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return index
}

// SelectRows returns a new matrix holding the given rows, in the given
// order.
func (m *Matrix) SelectRows(rows []int) *Matrix {
	_, c := m.Dims()
	names := make([]string, len(rows))
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		names[i] = m.Rows[row]
		data = append(data, m.Row(row)...)
	}
	if len(rows) == 0 {
		return &Matrix{Rows: names, Cols: m.Cols}
	}
	return &Matrix{Rows: names, Cols: m.Cols, Data: mat.NewDense(len(rows), c, data)}
}

// Validate checks that row and column names are unique and that all
// values are finite.
func (m *Matrix) Validate() error {
	if err := uniqueNames("row", m.Rows); err != nil {
		return err
	}
	if err := uniqueNames("column", m.Cols); err != nil {
		return err
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j, v := range m.Row(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite value %v at row %v, column %v", v, m.Rows[i], m.Cols[j])
			}
		}
	}
	if r == 0 || c == 0 {
		return fmt.Errorf("empty matrix")
	}
	return nil
}

func uniqueNames(kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate %v name %v", kind, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Index maps vector names to positions.
func (v *Vector) Index() map[string]int {
	return nameIndex(v.Names)
}

// Validate checks that names are unique and values finite.
func (v *Vector) Validate() error {
	if len(v.Names) != len(v.Values) {
		return fmt.Errorf("vector has %v names but %v values", len(v.Names), len(v.Values))
	}
	if err := uniqueNames("vector", v.Names); err != nil {
		return err
	}
	for i, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("non-finite value %v for %v", x, v.Names[i])
		}
	}
	return nil
}

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

package matrix

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
	"github.com/exascience/pargo/pipeline"

	"github.com/sqsun/HoneyBADGER/internal"
)

const sniffSize = 1 << 16

// preferred delimiters, in order of preference
var delimiters = []rune{'\t', ',', ';', '|', ' '}

// SniffDelimiter returns the most likely delimiter of the CSV-like
// content in r, and a reader that still yields all of r. Only
// tab, comma, semicolon, pipe and space are considered; tab is the
// fallback.
func SniffDelimiter(r io.Reader) (io.Reader, rune, error) {
	buf := bufio.NewReaderSize(r, sniffSize)
	sample, err := buf.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, 0, err
	}
	// only sample complete lines
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i+1]
	}
	candidates := make(map[rune]bool)
	d := detector.New()
	for _, c := range d.DetectDelimiter(bytes.NewReader(sample), '"') {
		if len(c) > 0 {
			candidates[rune(c[0])] = true
		}
	}
	for _, c := range delimiters {
		if candidates[c] {
			return buf, c, nil
		}
	}
	for _, c := range delimiters {
		if bytes.ContainsRune(sample, c) {
			return buf, c, nil
		}
	}
	return buf, '\t', nil
}

func splitLine(line string, delimiter rune) []string {
	line = strings.TrimRight(line, "\r")
	if delimiter == ' ' {
		return strings.Fields(line)
	}
	fields := strings.Split(line, string(delimiter))
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return fields
}

type parsedRow struct {
	name   string
	values []float64
}

// ReadMatrix reads a (possibly gzipped) delimited matrix file. The
// first line holds the column names, optionally preceded by a corner
// entry; every other line holds a row name followed by one value per
// column.
func ReadMatrix(filename string) (m *Matrix, err error) {
	file, err := internal.Open(filename)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if nerr := file.Close(); err == nil && nerr != nil {
			m, err = nil, nerr
		}
	}()
	m, err = Read(file)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return m, nil
}

// Read reads a delimited matrix from r. Lines are parsed in parallel.
func Read(r io.Reader) (*Matrix, error) {
	in, delimiter, err := SniffDelimiter(r)
	if err != nil {
		return nil, pfx.Err(err)
	}
	reader := bufio.NewReader(in)
	header, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || header == "") {
		return nil, pfx.Err(fmt.Errorf("missing header line: %w", err))
	}
	cols := splitLine(strings.TrimRight(header, "\n"), delimiter)

	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(reader))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		rows := make([]parsedRow, 0, len(lines))
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fields := splitLine(line, delimiter)
			row := parsedRow{name: fields[0], values: make([]float64, len(fields)-1)}
			for i, field := range fields[1:] {
				value, err := strconv.ParseFloat(field, 64)
				if err != nil {
					p.SetErr(fmt.Errorf("row %v: %w", fields[0], err))
					return rows
				}
				row.values[i] = value
			}
			rows = append(rows, row)
		}
		return rows
	})))
	var (
		names []string
		data  []float64
		width = -1
	)
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, batch interface{}) interface{} {
		for _, row := range batch.([]parsedRow) {
			if width < 0 {
				width = len(row.values)
			} else if len(row.values) != width {
				p.SetErr(fmt.Errorf("row %v has %v values, expected %v", row.name, len(row.values), width))
				return batch
			}
			names = append(names, row.name)
			data = append(data, row.values...)
		}
		return batch
	})))
	if err := internal.RunPipeline(&p); err != nil {
		return nil, pfx.Err(err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("matrix has no rows")
	}
	switch len(cols) {
	case width:
	case width + 1:
		cols = cols[1:]
	default:
		return nil, fmt.Errorf("header has %v columns but rows have %v values", len(cols), width)
	}
	m, err := New(names, cols, data)
	if err != nil {
		return nil, err
	}
	return m, m.Validate()
}

// ReadVector reads a (possibly gzipped) two-column file of names and
// values. A header line is skipped when its second field is not
// numeric.
func ReadVector(filename string) (v *Vector, err error) {
	file, err := internal.Open(filename)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if nerr := file.Close(); err == nil && nerr != nil {
			v, err = nil, nerr
		}
	}()
	in, delimiter, err := SniffDelimiter(file)
	if err != nil {
		return nil, pfx.Err(err)
	}
	v = &Vector{}
	scanner := bufio.NewScanner(in)
	for lineNr := 1; scanner.Scan(); lineNr++ {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		fields := splitLine(scanner.Text(), delimiter)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%v line %v: expected name and value", filename, lineNr)
		}
		value, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			if lineNr == 1 {
				continue
			}
			return nil, pfx.Err(fmt.Errorf("%v line %v: %w", filename, lineNr, err))
		}
		v.Names = append(v.Names, fields[0])
		v.Values = append(v.Values, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}
	if len(v.Names) == 0 {
		return nil, fmt.Errorf("%v: vector has no entries", filename)
	}
	return v, v.Validate()
}

// Write formats m as a tab-separated matrix with a corner entry.
func Write(w io.Writer, corner string, m *Matrix) error {
	out := bufio.NewWriter(w)
	if _, err := out.WriteString(corner); err != nil {
		return err
	}
	for _, col := range m.Cols {
		if _, err := out.WriteString("\t" + col); err != nil {
			return err
		}
	}
	if err := out.WriteByte('\n'); err != nil {
		return err
	}
	var buf []byte
	for i, name := range m.Rows {
		buf = append(buf[:0], name...)
		for _, v := range m.Row(i) {
			buf = append(buf, '\t')
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return out.Flush()
}

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
	"bytes"
	"fmt"
	"io/ioutil"
	"strings"
	"testing"
)

func TestReadTabWithCorner(t *testing.T) {
	m, err := Read(strings.NewReader("gene\tc1\tc2\tc3\nA\t1\t2\t3\nB\t4.5\t5\t-6\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Dims(); r != 2 || c != 3 {
		t.Fatalf("unexpected dimensions %v x %v", r, c)
	}
	if m.Cols[0] != "c1" || m.Rows[1] != "B" {
		t.Error("names not parsed")
	}
	if m.At(1, 0) != 4.5 || m.At(1, 2) != -6 {
		t.Error("values not parsed")
	}
}

func TestReadCSVWithoutCorner(t *testing.T) {
	m, err := Read(strings.NewReader("\"c1\",\"c2\"\r\nA,1,2\r\nB,3,4\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Dims(); r != 2 || c != 2 {
		t.Fatalf("unexpected dimensions %v x %v", r, c)
	}
	if m.Cols[1] != "c2" || m.At(1, 1) != 4 {
		t.Error("CSV matrix not parsed")
	}
}

func TestReadErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"gene\tc1\tc2\n",
		"gene\tc1\tc2\nA\t1\t2\nB\t1\n",
		"gene\tc1\tc2\nA\t1\tx\n",
		"gene\tc1\tc2\nA\t1\t2\nA\t3\t4\n",
		"gene\tc1\tc2\tc3\tc4\nA\t1\t2\n",
	} {
		if _, err := Read(strings.NewReader(input)); err == nil {
			t.Errorf("expected an error for %q", input)
		}
	}
}

func TestReadManyRows(t *testing.T) {
	var in bytes.Buffer
	in.WriteString("snp\tcellA\tcellB\n")
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&in, "1:%d\t%d\t2\n", i+1, i)
	}
	m, err := Read(&in)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := m.Dims(); r != 5000 {
		t.Fatalf("expected 5000 rows, got %v", r)
	}
	for i, name := range m.Rows {
		if name != fmt.Sprintf("1:%d", i+1) || m.At(i, 0) != float64(i) {
			t.Fatalf("row order not preserved at %v: %v", i, name)
		}
	}
}

func TestSelectRowsAndWrite(t *testing.T) {
	m, err := New([]string{"A", "B", "C"}, []string{"x", "y"}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	sub := m.SelectRows([]int{2, 0})
	var out bytes.Buffer
	if err := Write(&out, "gene", sub); err != nil {
		t.Fatal(err)
	}
	if expected := "gene\tx\ty\nC\t5\t6\nA\t1\t2\n"; out.String() != expected {
		t.Errorf("unexpected output %q", out.String())
	}
	sub.Row(0)[0] = 50
	if m.At(2, 0) != 5 {
		t.Error("SelectRows must copy the data")
	}
}

func TestReadVector(t *testing.T) {
	dir := t.TempDir()
	name := dir + "/ref.csv"
	if err := ioutil.WriteFile(name, []byte("gene,mean\nA,1.5\nB,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	v, err := ReadVector(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Names) != 2 || v.Names[1] != "B" || v.Values[0] != 1.5 {
		t.Errorf("unexpected vector %+v", v)
	}
}

func TestParseAD(t *testing.T) {
	tests := []struct {
		ad       string
		ref, alt float64
		fail     bool
	}{
		{"12,3", 12, 3, false},
		{".", 0, 0, false},
		{"", 0, 0, false},
		{"4,.", 4, 0, false},
		{"1,2,7", 1, 2, false},
		{"5", 0, 0, true},
		{"a,b", 0, 0, true},
	}
	for _, test := range tests {
		ref, alt, err := parseAD(test.ad)
		if (err != nil) != test.fail {
			t.Errorf("parseAD(%q) error = %v", test.ad, err)
			continue
		}
		if ref != test.ref || alt != test.alt {
			t.Errorf("parseAD(%q) = %v, %v", test.ad, ref, alt)
		}
	}
}

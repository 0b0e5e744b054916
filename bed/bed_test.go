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

package bed

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sqsun/HoneyBADGER/utils"
)

const genesBed = `browser position chr1:1-1000
track name="genes" description="test genes"
chr2	500	900	GENE3	0	+
chr1	2000	3000	GENE2	10	-
# comment
chr1	100	200	GENE1
`

func TestRead(t *testing.T) {
	bed, err := Read(strings.NewReader(genesBed))
	if err != nil {
		t.Fatal(err)
	}
	if len(bed.Tracks) != 1 || bed.Tracks[0].Fields["name"] != "genes" {
		t.Errorf("unexpected tracks %v", bed.Tracks)
	}
	chr1 := bed.RegionMap[utils.Intern("chr1")]
	if len(chr1) != 2 {
		t.Fatalf("expected 2 regions on chr1, got %v", len(chr1))
	}
	if chr1[0].Name != "GENE1" || chr1[1].Name != "GENE2" {
		t.Error("regions are not sorted by start")
	}
	if chr1[0].Score != -1 || chr1[0].Strand != 0 {
		t.Error("absent optional fields should be marked absent")
	}
	if chr1[1].Score != 10 || chr1[1].Strand != '-' {
		t.Error("optional fields not parsed")
	}
	chroms := bed.Chroms()
	if len(chroms) != 2 || *chroms[0] != "chr1" || *chroms[1] != "chr2" {
		t.Errorf("unexpected chromosome order %v", chroms)
	}
}

func TestReadErrors(t *testing.T) {
	for _, input := range []string{
		"chr1\t100\n",
		"chr1\tx\t200\n",
		"chr1\t300\t200\n",
		"chr1\t100\t200\tA\t2000\n",
		"chr1\t100\t200\tA\t0\t*\n",
	} {
		if _, err := Read(strings.NewReader(input)); err == nil {
			t.Errorf("expected an error for %q", input)
		}
	}
}

func TestWrite(t *testing.T) {
	bed := NewBed()
	region, err := NewRegion(utils.Intern("chr2"), 10, 20, []string{"amp"})
	if err != nil {
		t.Fatal(err)
	}
	bed.AddRegion(region)
	region, err = NewRegion(utils.Intern("chr1"), 30, 40, nil)
	if err != nil {
		t.Fatal(err)
	}
	bed.AddRegion(region)
	var out bytes.Buffer
	if err := bed.Write(&out); err != nil {
		t.Fatal(err)
	}
	if expected := "chr1\t30\t40\t.\nchr2\t10\t20\tamp\n"; out.String() != expected {
		t.Errorf("unexpected output %q", out.String())
	}
}

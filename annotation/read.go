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

package annotation

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/sqsun/HoneyBADGER/bed"
	"github.com/sqsun/HoneyBADGER/internal"
	"github.com/sqsun/HoneyBADGER/matrix"
)

// ReadGenes reads a gene coordinate table. Files ending in .bed or
// .bed.gz are read as BED, with the name column holding the gene
// name; everything else is read as a delimited table with a header
// that includes the columns gene, chrom, start and end. The genes are
// returned in genome order.
func ReadGenes(filename string) (genes []Gene, err error) {
	defer func() {
		if err == nil {
			SortGenes(genes)
		}
	}()
	name := strings.TrimSuffix(strings.ToLower(filename), ".gz")
	if filepath.Ext(name) == ".bed" {
		b, err := bed.ParseBed(filename)
		if err != nil {
			return nil, err
		}
		return FromBed(b)
	}
	file, err := internal.Open(filename)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if nerr := file.Close(); err == nil && nerr != nil {
			genes, err = nil, nerr
		}
	}()
	return ReadGeneTable(file)
}

// ReadGeneTable reads a delimited gene coordinate table from r.
func ReadGeneTable(r io.Reader) ([]Gene, error) {
	in, delimiter, err := matrix.SniffDelimiter(r)
	if err != nil {
		return nil, pfx.Err(err)
	}
	cr := csv.NewReader(in)
	cr.Comma = delimiter
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var records []*Gene
	if err := gocsv.UnmarshalCSV(cr, &records); err != nil {
		return nil, pfx.Err(err)
	}
	genes := make([]Gene, 0, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
		genes = append(genes, *record)
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("gene table contains no genes")
	}
	return genes, nil
}

// FromBed converts BED regions into genes. BED starts are 0-based, so
// they are shifted to the 1-based closed coordinates used for genes.
func FromBed(b *bed.Bed) ([]Gene, error) {
	var genes []Gene
	for _, chrom := range b.Chroms() {
		for _, region := range b.RegionMap[chrom] {
			gene := Gene{Name: region.Name, Chrom: *chrom, Start: region.Start + 1, End: region.End}
			if err := gene.Validate(); err != nil {
				return nil, err
			}
			genes = append(genes, gene)
		}
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("BED file contains no genes")
	}
	return genes, nil
}

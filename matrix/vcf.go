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
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/vcfgo"

	"github.com/sqsun/HoneyBADGER/internal"
)

// ReadVcfAlleles reads per-cell allele counts from a multi-sample VCF
// file in which every sample is a cell. The AD format field (ref,alt)
// provides the counts. Only bi-allelic single-nucleotide variants are
// kept; rows are named chr:pos. The result holds the alternate allele
// counts and the total coverage (ref + alt).
func ReadVcfAlleles(filename string) (alt, cov *Matrix, err error) {
	file, err := internal.Open(filename)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}
	defer func() {
		if nerr := file.Close(); err == nil && nerr != nil {
			alt, cov, err = nil, nil, nerr
		}
	}()

	rdr, err := vcfgo.NewReader(bufio.NewReaderSize(file, 1<<20), true)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}
	cells := append([]string(nil), rdr.Header.SampleNames...)
	if len(cells) == 0 {
		return nil, nil, fmt.Errorf("%v: VCF has no samples", filename)
	}

	var (
		names            []string
		altData, covData []float64
		seen             = make(map[string]bool)
		skipped          int
	)
	for i := 0; ; i++ {
		variant := rdr.Read()
		if variant == nil {
			break
		}
		if len(variant.Ref()) != 1 || len(variant.Alt()) != 1 || len(variant.Alt()[0]) != 1 {
			skipped++
			continue
		}
		name := variant.Chrom() + ":" + strconv.FormatUint(variant.Pos, 10)
		if seen[name] {
			skipped++
			continue
		}
		if err := variant.Header.ParseSamples(variant); err != nil {
			return nil, nil, pfx.Err(fmt.Errorf("%v: %w", name, err))
		}
		if len(variant.Samples) != len(cells) {
			return nil, nil, fmt.Errorf("%v: variant %v has %v samples, expected %v", filename, name, len(variant.Samples), len(cells))
		}
		seen[name] = true
		names = append(names, name)
		for _, sample := range variant.Samples {
			var refCount, altCount float64
			if sample != nil {
				if refCount, altCount, err = parseAD(sample.Fields["AD"]); err != nil {
					return nil, nil, fmt.Errorf("%v: variant %v: %w", filename, name, err)
				}
			}
			altData = append(altData, altCount)
			covData = append(covData, refCount+altCount)
		}
		if i > 0 && i%100000 == 0 {
			log.Printf("Read %d variants. Last %s\n", i, name)
		}
	}
	if err := rdr.Error(); err != nil {
		return nil, nil, pfx.Err(err)
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%v: VCF has no bi-allelic SNVs", filename)
	}
	if skipped > 0 {
		log.Printf("Skipped %d VCF records that are not bi-allelic SNVs or are duplicated.\n", skipped)
	}
	if alt, err = New(names, cells, altData); err != nil {
		return nil, nil, err
	}
	if cov, err = New(names, cells, covData); err != nil {
		return nil, nil, err
	}
	return alt, cov, nil
}

// parseAD parses an AD entry such as "12,3". Missing entries count as
// zero coverage.
func parseAD(ad string) (ref, alt float64, err error) {
	if ad == "" || ad == "." {
		return 0, 0, nil
	}
	parts := strings.Split(ad, ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid AD entry %v", ad)
	}
	counts := [2]float64{}
	for i := 0; i < 2; i++ {
		if parts[i] == "." {
			continue
		}
		n, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid AD entry %v", ad)
		}
		counts[i] = float64(n)
	}
	return counts[0], counts[1], nil
}

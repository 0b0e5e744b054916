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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/sqsun/HoneyBADGER/internal"
	"github.com/sqsun/HoneyBADGER/utils"
)

// ParseBed parses a (possibly gzipped) BED file. See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format1
func ParseBed(filename string) (bed *Bed, err error) {
	file, err := internal.Open(filename)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if nerr := file.Close(); err == nil && nerr != nil {
			bed, err = nil, nerr
		}
	}()
	return Read(file)
}

// Read parses BED content from r.
func Read(r io.Reader) (*Bed, error) {
	bed := NewBed()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for lineNr := 1; scanner.Scan(); lineNr++ {
		line := scanner.Text()
		if line == "" ||
			strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "browser") {
			continue
		}
		if strings.HasPrefix(line, "track") {
			bed.Tracks = append(bed.Tracks, &Track{Fields: parseTrackFields(line[len("track"):])})
			continue
		}
		data := strings.Split(line, "\t")
		if len(data) < 3 {
			return nil, fmt.Errorf("line %v: expected at least 3 BED columns, got %v", lineNr, len(data))
		}
		start, err := strconv.ParseInt(data[1], 10, 32)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("line %v: %w", lineNr, err))
		}
		end, err := strconv.ParseInt(data[2], 10, 32)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("line %v: %w", lineNr, err))
		}
		region, err := NewRegion(utils.Intern(data[0]), int32(start), int32(end), data[3:])
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", lineNr, err)
		}
		bed.AddRegion(region)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}
	bed.sortRegions()
	return bed, nil
}

func parseTrackFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, entry := range strings.Fields(s) {
		if i := strings.IndexByte(entry, '='); i > 0 {
			fields[entry[:i]] = strings.Trim(entry[i+1:], `"`)
		}
	}
	return fields
}

// Write formats bed in BED6 (BED4 when no region has score or strand)
// with its track lines first. Chromosomes are written in natural
// genome order.
func (bed *Bed) Write(w io.Writer) error {
	out := bufio.NewWriter(w)
	for _, track := range bed.Tracks {
		if _, err := out.WriteString("track"); err != nil {
			return err
		}
		for key, value := range track.Fields {
			if _, err := fmt.Fprintf(out, " %v=\"%v\"", key, value); err != nil {
				return err
			}
		}
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
	}
	six := false
	for _, regions := range bed.RegionMap {
		for _, region := range regions {
			if region.Score >= 0 || region.Strand != 0 {
				six = true
			}
		}
	}
	var buf []byte
	for _, chrom := range bed.Chroms() {
		for _, region := range bed.RegionMap[chrom] {
			buf = buf[:0]
			buf = append(buf, *region.Chrom...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(region.Start), 10)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(region.End), 10)
			buf = append(buf, '\t')
			if region.Name == "" {
				buf = append(buf, '.')
			} else {
				buf = append(buf, region.Name...)
			}
			if six {
				buf = append(buf, '\t')
				if region.Score < 0 {
					buf = append(buf, '0')
				} else {
					buf = strconv.AppendInt(buf, int64(region.Score), 10)
				}
				buf = append(buf, '\t')
				if region.Strand == 0 {
					buf = append(buf, '.')
				} else {
					buf = append(buf, region.Strand)
				}
			}
			buf = append(buf, '\n')
			if _, err := out.Write(buf); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

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

package cnv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"

	"github.com/sqsun/HoneyBADGER/bed"
	"github.com/sqsun/HoneyBADGER/cluster"
	"github.com/sqsun/HoneyBADGER/utils"
)

func tsvWriter(w io.Writer) *gocsv.SafeCSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return gocsv.NewSafeCSVWriter(cw)
}

// WriteSummary writes summary rows as a tab-separated table, preceded
// by a comment line identifying the run.
func (hb *HoneyBadger) WriteSummary(w io.Writer, rows []Summary) error {
	if _, err := fmt.Fprintf(w, "# %v %v run %v\n", utils.ProgramName, utils.ProgramVersion, hb.RunID); err != nil {
		return err
	}
	return gocsv.MarshalCSV(rows, tsvWriter(w))
}

// A PosteriorRecord is one line of the posterior table.
type PosteriorRecord struct {
	Region      string  `csv:"region"`
	Cell        string  `csv:"cell"`
	Amp         float64 `csv:"amp"`
	Del         float64 `csv:"del"`
	Neutral     float64 `csv:"neutral"`
	LOH         float64 `csv:"loh"`
	CombinedDel float64 `csv:"combined_del"`
}

// PosteriorRecords flattens the posteriors of all retested regions,
// region by region.
func (hb *HoneyBadger) PosteriorRecords() []PosteriorRecord {
	var records []PosteriorRecord
	for _, region := range hb.Regions {
		id := region.ID()
		for c, p := range region.Posteriors {
			records = append(records, PosteriorRecord{
				Region:      id,
				Cell:        hb.Cells[c],
				Amp:         p.Amp,
				Del:         p.Del,
				Neutral:     p.Neutral,
				LOH:         p.LOH,
				CombinedDel: p.CombinedDel,
			})
		}
	}
	return records
}

// WritePosteriors writes the per-cell posteriors of all retested
// regions as a tab-separated table.
func (hb *HoneyBadger) WritePosteriors(w io.Writer) error {
	records := hb.PosteriorRecords()
	if len(records) == 0 {
		return ErrNoRegions
	}
	return gocsv.MarshalCSV(records, tsvWriter(w))
}

// RegionsBed converts summary rows to BED regions named
// kind:source:called-cells, scored by -10*log10(p-value) capped at
// 1000.
func RegionsBed(rows []Summary) *bed.Bed {
	result := bed.NewBed()
	result.Tracks = append(result.Tracks, &bed.Track{Fields: map[string]string{"name": utils.ProgramName}})
	for _, row := range rows {
		score := 1000
		if row.PValue > 0 {
			score = int(math.Min(1000, math.Round(-10*math.Log10(row.PValue))))
		}
		result.AddRegion(&bed.Region{
			Chrom: utils.Intern(row.Chrom),
			Start: row.Start - 1,
			End:   row.End,
			Name:  fmt.Sprintf("%v:%v:%v", row.Kind, row.Source, row.CalledCells),
			Score: score,
		})
	}
	return result
}

// WriteTree writes a dendrogram over Cells in Newick format.
func (hb *HoneyBadger) WriteTree(w io.Writer, tree *cluster.Tree) error {
	newick, err := tree.Newick(hb.Cells)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, newick)
	return err
}

// A ClusterRecord assigns a cell to a group of a cut dendrogram.
type ClusterRecord struct {
	Cell    string `csv:"cell"`
	Cluster int    `csv:"cluster"`
}

// CutClusters cuts a dendrogram over Cells into k groups, numbered
// from 1 in dendrogram order.
func (hb *HoneyBadger) CutClusters(tree *cluster.Tree, k int) ([]ClusterRecord, error) {
	labels, err := tree.Cut(k)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(hb.Cells) {
		return nil, fmt.Errorf("dendrogram over %v items does not match %v cells", len(labels), len(hb.Cells))
	}
	records := make([]ClusterRecord, len(labels))
	for c, label := range labels {
		records[c] = ClusterRecord{Cell: hb.Cells[c], Cluster: label + 1}
	}
	return records, nil
}

// WriteClusters writes cluster assignments as a tab-separated table.
func WriteClusters(w io.Writer, records []ClusterRecord) error {
	return gocsv.MarshalCSV(records, tsvWriter(w))
}

// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ImputeResult holds the materialized phased alleles over the full
// reference marker set: X = A1 + A2 entrywise.
type ImputeResult struct {
	Rows, Cols int
	A1, A2     []uint8   // Rows × Cols row-major, one matrix per strand
	Quality    []float64 // per-row IMPQ
}

func (r *ImputeResult) Dosage(row, col int) int {
	return int(r.A1[row*r.Cols+col]) + int(r.A2[row*r.Cols+col])
}

// ImputeAlleles applies each sample's strand mosaics to the full
// reference panel. Mosaics must already be in full-row coordinates
// (UpdateMarkerPositions).
func ImputeAlleles(ch *CompressedHaplotypes, href *RefPanel, phase []HaplotypeMosaicPair) (*ImputeResult, error) {
	res := &ImputeResult{Rows: href.Rows, Cols: len(phase)}
	res.A1 = make([]uint8, res.Rows*res.Cols)
	res.A2 = make([]uint8, res.Rows*res.Cols)
	for j := range phase {
		for si, strand := range []*StrandMosaic{&phase[j].Strand1, &phase[j].Strand2} {
			out := res.A1
			if si == 1 {
				out = res.A2
			}
			segs := strand.Segments
			if len(segs) == 0 || segs[0].Start != 0 {
				return nil, fmt.Errorf("sample %d strand %d mosaic does not cover row 0", j, si+1)
			}
			for k, seg := range segs {
				if seg.Window < 0 || seg.Window >= ch.NumWindows() {
					return nil, fmt.Errorf("sample %d strand %d segment %d has unknown window label %d", j, si+1, k, seg.Window)
				}
				if seg.Hap < 0 || int(seg.Hap) >= href.Cols {
					return nil, fmt.Errorf("sample %d strand %d segment %d has haplotype label %d outside panel", j, si+1, k, seg.Hap)
				}
				end := href.Rows
				if k+1 < len(segs) {
					end = segs[k+1].Start
				}
				for row := seg.Start; row < end; row++ {
					out[row*res.Cols+j] = href.At(row, int(seg.Hap))
				}
			}
		}
	}
	log.Infof("imputed %d samples over %d reference rows", res.Cols, res.Rows)
	return res, nil
}

// ImputationQuality turns the per-sample window scores into one IMPQ
// value per full reference row: typed rows carry the cohort mean score
// of their window, untyped rows the mean of the two nearest typed rows'
// values, clamped to the first/last typed value at the ends.
func ImputationQuality(scores [][]float64, ch *CompressedHaplotypes, typedToFull []int, fullRows int) []float64 {
	typed := make([]float64, len(typedToFull))
	for r := range typed {
		wi := r / ch.Width
		sum := 0.0
		for j := range scores {
			sum += scores[j][wi]
		}
		if len(scores) > 0 {
			typed[r] = sum / float64(len(scores))
		}
	}
	impq := make([]float64, fullRows)
	if len(typed) == 0 {
		return impq
	}
	k := 0
	for row := 0; row < fullRows; row++ {
		for k < len(typedToFull) && typedToFull[k] < row {
			k++
		}
		switch {
		case k < len(typedToFull) && typedToFull[k] == row:
			impq[row] = typed[k]
		case k == 0:
			impq[row] = typed[0]
		case k == len(typedToFull):
			impq[row] = typed[len(typed)-1]
		default:
			impq[row] = (typed[k-1] + typed[k]) / 2
		}
	}
	return impq
}

// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import "fmt"

// MosaicSegment is one strand segment: the haplotype label covering
// rows [Start .. next segment's Start). Window records which window's
// dictionary the label was chosen under.
type MosaicSegment struct {
	Start  int
	Hap    hapID
	Window int
}

// StrandMosaic is a sorted segment list covering [first Start .. Length).
type StrandMosaic struct {
	Segments []MosaicSegment
	Length   int
}

// push appends a segment, merging no-op label repeats. A start at or
// before the previous segment's replaces that segment's label, so
// starts stay strictly increasing.
func (m *StrandMosaic) push(start int, hap hapID, window int) {
	if n := len(m.Segments); n > 0 {
		last := &m.Segments[n-1]
		if last.Hap == hap {
			return
		}
		if start <= last.Start {
			last.Hap = hap
			last.Window = window
			return
		}
	}
	m.Segments = append(m.Segments, MosaicSegment{Start: start, Hap: hap, Window: window})
}

// hapAt returns the label covering row, or -1 before the first segment.
func (m *StrandMosaic) hapAt(row int) hapID {
	lo, hi := 0, len(m.Segments)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Segments[mid].Start <= row {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return -1
	}
	return m.Segments[lo-1].Hap
}

// HaplotypeMosaicPair is one sample's phased result: two strand
// mosaics.
type HaplotypeMosaicPair struct {
	Strand1, Strand2 StrandMosaic
}

// UpdateMarkerPositions remaps segment starts from typed-row space to
// full reference rows. The first segment is widened to cover any
// untyped rows before the first typed marker.
func (hmp *HaplotypeMosaicPair) UpdateMarkerPositions(typedToFull []int, fullRows int) error {
	for _, m := range []*StrandMosaic{&hmp.Strand1, &hmp.Strand2} {
		for i := range m.Segments {
			t := m.Segments[i].Start
			if t < 0 || t >= len(typedToFull) {
				return fmt.Errorf("segment start %d outside typed row range", t)
			}
			m.Segments[i].Start = typedToFull[t]
		}
		if len(m.Segments) > 0 {
			m.Segments[0].Start = 0
		}
		m.Length = fullRows
	}
	return nil
}

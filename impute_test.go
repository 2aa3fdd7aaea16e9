// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImputeAllelesCoversFullRange(t *testing.T) {
	panel := randomPanel(31, 20, 4)
	ch, err := BuildCompressed(panel, 10)
	require.NoError(t, err)
	phase := []HaplotypeMosaicPair{{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 0, Window: 0}}, Length: 20},
		Strand2: StrandMosaic{Segments: []MosaicSegment{
			{Start: 0, Hap: 1, Window: 0},
			{Start: 12, Hap: 3, Window: 1},
		}, Length: 20},
	}}
	imp, err := ImputeAlleles(ch, panel, phase)
	require.NoError(t, err)
	require.Equal(t, 20, imp.Rows)
	require.Equal(t, 1, imp.Cols)
	for row := 0; row < 20; row++ {
		want := int(panel.At(row, 0))
		h2 := 1
		if row >= 12 {
			h2 = 3
		}
		want += int(panel.At(row, h2))
		assert.Equal(t, want, imp.Dosage(row, 0), "row %d", row)
	}
}

func TestImputeAllelesRejectsBadMosaics(t *testing.T) {
	panel := randomPanel(31, 20, 4)
	ch, err := BuildCompressed(panel, 10)
	require.NoError(t, err)

	// mosaic not covering row 0
	_, err = ImputeAlleles(ch, panel, []HaplotypeMosaicPair{{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 3, Hap: 0, Window: 0}}},
		Strand2: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 1, Window: 0}}},
	}})
	assert.Error(t, err)

	// unknown window label
	_, err = ImputeAlleles(ch, panel, []HaplotypeMosaicPair{{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 0, Window: 9}}},
		Strand2: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 1, Window: 0}}},
	}})
	assert.Error(t, err)

	// haplotype label outside the panel
	_, err = ImputeAlleles(ch, panel, []HaplotypeMosaicPair{{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 7, Window: 0}}},
		Strand2: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 1, Window: 0}}},
	}})
	assert.Error(t, err)
}

func TestImputationQuality(t *testing.T) {
	panel := randomPanel(31, 4, 4)
	ch, err := BuildCompressed(panel, 2)
	require.NoError(t, err)
	// 2 samples × 2 windows; typed rows 0,1 in window 0, rows 2,3 in
	// window 1
	scores := [][]float64{{1, 3}, {3, 5}}
	typedToFull := []int{2, 4, 6, 8}
	impq := ImputationQuality(scores, ch, typedToFull, 11)
	// typed rows carry their window's cohort mean: 2 and 4
	assert.Equal(t, 2.0, impq[2])
	assert.Equal(t, 2.0, impq[4])
	assert.Equal(t, 4.0, impq[6])
	assert.Equal(t, 4.0, impq[8])
	// untyped rows: clamped before the first and after the last typed
	// row, averaged between
	assert.Equal(t, 2.0, impq[0])
	assert.Equal(t, 2.0, impq[1])
	assert.Equal(t, 2.0, impq[3])
	assert.Equal(t, 3.0, impq[5])
	assert.Equal(t, 4.0, impq[7])
	assert.Equal(t, 4.0, impq[9])
	assert.Equal(t, 4.0, impq[10])
}

func TestUpdateMarkerPositions(t *testing.T) {
	hmp := HaplotypeMosaicPair{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 0, Window: 0}, {Start: 3, Hap: 2, Window: 1}}},
		Strand2: StrandMosaic{Segments: []MosaicSegment{{Start: 0, Hap: 1, Window: 0}}},
	}
	typedToFull := []int{5, 7, 9, 11, 13}
	require.NoError(t, hmp.UpdateMarkerPositions(typedToFull, 20))
	// the first segment widens to cover untyped rows before row 5
	assert.Equal(t, 0, hmp.Strand1.Segments[0].Start)
	assert.Equal(t, 11, hmp.Strand1.Segments[1].Start)
	assert.Equal(t, 20, hmp.Strand1.Length)
	assert.Equal(t, 0, hmp.Strand2.Segments[0].Start)

	bad := HaplotypeMosaicPair{
		Strand1: StrandMosaic{Segments: []MosaicSegment{{Start: 99, Hap: 0, Window: 0}}},
	}
	assert.Error(t, bad.UpdateMarkerPositions(typedToFull, 20))
}

func TestStrandMosaicPush(t *testing.T) {
	var m StrandMosaic
	m.push(0, 4, 0)
	m.push(10, 4, 1) // same label: merged
	m.push(10, 5, 1)
	m.push(10, 6, 2) // same start: replaced
	require.Len(t, m.Segments, 2)
	assert.Equal(t, MosaicSegment{Start: 10, Hap: 6, Window: 2}, m.Segments[1])
	assert.Equal(t, hapID(4), m.hapAt(9))
	assert.Equal(t, hapID(6), m.hapAt(10))
	var empty StrandMosaic
	assert.Equal(t, hapID(-1), empty.hapAt(0))
}

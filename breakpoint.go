// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import "math"

// allele reads one reference allele at a typed row, from the raw panel
// when available, otherwise through the window dictionary.
func (e *Engine) allele(row int, h hapID) float64 {
	if e.Htyped != nil {
		return float64(e.Htyped.At(row, int(h)))
	}
	return float64(e.CH.Allele(row, h))
}

// stretchBounds is the typed-row range handed to breakpoint search for
// the transition into window w: the two adjacent windows plus the
// configured flank on each side, clamped to the typed range.
func (e *Engine) stretchBounds(w int) (start, rows int) {
	prevWin, win := &e.CH.Windows[w-1], &e.CH.Windows[w]
	fl := e.Opts.flankWidth()
	start = prevWin.Start - fl
	if start < 0 {
		start = 0
	}
	end := win.Start + win.Rows + fl
	if end > e.CH.TypedRows {
		end = e.CH.TypedRows
	}
	return start, end - start
}

// searchBreakpointSingle scans a contiguous stretch of typed rows
// [start .. start+rows) for the crossover of one strand from cur to
// next, holding the other strand at fixed. A breakpoint b means rows
// 0..b of the stretch stay on cur and rows b+1.. switch to next; the
// returned b is therefore the 0-based index of the last row on cur.
// Ties between splits go to the smallest b. When no split strictly
// improves on staying on cur throughout, the sentinel (-1, errFull) is
// returned and the caller emits no segment break.
//
// The scan is O(rows) after an O(rows) init: moving the split down by
// one row changes the residual at a single marker.
func (e *Engine) searchBreakpointSingle(sample, start, rows int, fixed, cur, next hapID) (int, float64) {
	// residual with no switch (all rows on cur)
	err := 0.0
	for i := 0; i < rows; i++ {
		v := e.X.At(start+i, sample)
		if v == missingGenotype {
			continue
		}
		r := float64(v) - e.allele(start+i, fixed) - e.allele(start+i, cur)
		err += r * r
	}
	errFull := err
	best, bestb := math.Inf(1), -1
	for b := rows - 2; b >= 0; b-- {
		// row b+1 flips from cur to next
		v := e.X.At(start+b+1, sample)
		if v != missingGenotype {
			rc := float64(v) - e.allele(start+b+1, fixed) - e.allele(start+b+1, cur)
			rn := float64(v) - e.allele(start+b+1, fixed) - e.allele(start+b+1, next)
			err += rn*rn - rc*rc
		}
		if err <= best {
			best, bestb = err, b
		}
	}
	if best < errFull {
		return bestb, best
	}
	return -1, errFull
}

// searchBreakpointPair is the double-switch variant: both strands cross
// over within the stretch. It scans the (rows)² split grid with the
// same incremental update on the inner strand and returns one
// breakpoint per strand, -1 meaning that strand does not break inside
// the stretch. Ties go to the lexicographically smallest (b1, b2), with
// the no-switch pair preferred when nothing strictly improves on it.
func (e *Engine) searchBreakpointPair(sample, start, rows int, cur1, next1, cur2, next2 hapID) (int, int, float64) {
	obs := make([]bool, rows)
	x := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v := e.X.At(start+i, sample)
		if v != missingGenotype {
			obs[i] = true
			x[i] = float64(v)
		}
	}
	a1c := make([]float64, rows)
	a1n := make([]float64, rows)
	a2c := make([]float64, rows)
	a2n := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a1c[i] = e.allele(start+i, cur1)
		a1n[i] = e.allele(start+i, next1)
		a2c[i] = e.allele(start+i, cur2)
		a2n[i] = e.allele(start+i, next2)
	}
	sq := func(v float64) float64 { return v * v }

	var errFull float64
	best, best1, best2 := math.Inf(1), rows-1, rows-1
	for b1 := rows - 1; b1 >= 0; b1-- {
		// strand 1 fixed at this split; scan strand 2 downward
		err := 0.0
		for i := 0; i < rows; i++ {
			if !obs[i] {
				continue
			}
			s1 := a1c[i]
			if i > b1 {
				s1 = a1n[i]
			}
			err += sq(x[i] - s1 - a2c[i])
		}
		if b1 == rows-1 {
			errFull = err
		}
		if err <= best {
			best, best1, best2 = err, b1, rows-1
		}
		for b2 := rows - 2; b2 >= 0; b2-- {
			if obs[b2+1] {
				s1 := a1c[b2+1]
				if b2+1 > b1 {
					s1 = a1n[b2+1]
				}
				err += sq(x[b2+1]-s1-a2n[b2+1]) - sq(x[b2+1]-s1-a2c[b2+1])
			}
			if err <= best {
				best, best1, best2 = err, b1, b2
			}
		}
	}
	if !(best < errFull) {
		return -1, -1, errFull
	}
	bk1, bk2 := best1, best2
	if bk1 == rows-1 {
		bk1 = -1
	}
	if bk2 == rows-1 {
		bk2 = -1
	}
	return bk1, bk2, best
}

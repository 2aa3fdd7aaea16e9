// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"
	"math"
)

// pairError is the switch cost between consecutive window pairs:
// λ·min(parallel, crossover)², where parallel counts label changes with
// strands kept aligned and crossover counts them with strands swapped.
// It is symmetric under swapping both arguments' strands and zero iff
// the unordered pairs are equal.
func pairError(a, b, c, d hapID, lambda float64) float64 {
	par, cross := 0, 0
	if a != c {
		par++
	}
	if b != d {
		par++
	}
	if a != d {
		cross++
	}
	if b != c {
		cross++
	}
	m := par
	if cross < m {
		m = cross
	}
	return lambda * float64(m*m)
}

// dpShortestPath picks one candidate pair per window minimizing the
// total switch cost Σ pairError between consecutive choices. A
// non-nil prev is a fixed pair preceding the first window (the last
// choice of the previous chunk); its switch cost into window 0 is part
// of the objective. Switch cost ties break toward the candidate with
// the smaller observation score, then toward the later candidate.
// Returns the chosen index per window and the minimal total cost.
func dpShortestPath(cands [][]labelPair, lambda float64, prev *labelPair) ([]int, float64) {
	wcnt := len(cands)
	bestErr := make([][]float64, wcnt)
	next := make([][]int, wcnt)
	for lw := range bestErr {
		bestErr[lw] = make([]float64, len(cands[lw]))
		next[lw] = make([]int, len(cands[lw]))
	}
	for lw := wcnt - 2; lw >= 0; lw-- {
		for i, ci := range cands[lw] {
			best, bestj, bestSc := math.Inf(1), 0, math.Inf(1)
			for j, cj := range cands[lw+1] {
				v := pairError(ci.h1, ci.h2, cj.h1, cj.h2, lambda) + bestErr[lw+1][j]
				if v < best || (v == best && cj.score <= bestSc) {
					best, bestj, bestSc = v, j, cj.score
				}
			}
			bestErr[lw][i] = best
			next[lw][i] = bestj
		}
	}
	start, startErr, startSc := 0, math.Inf(1), math.Inf(1)
	for i, ci := range cands[0] {
		v := bestErr[0][i]
		if prev != nil {
			v += pairError(prev.h1, prev.h2, ci.h1, ci.h2, lambda)
		}
		if v < startErr || (v == startErr && ci.score <= startSc) {
			start, startErr, startSc = i, v, ci.score
		}
	}
	chosen := make([]int, wcnt)
	chosen[0] = start
	for lw := 1; lw < wcnt; lw++ {
		chosen[lw] = next[lw-1][chosen[lw-1]]
	}
	return chosen, startErr
}

// reconcileDP stitches one sample's candidate pair lists into strand
// mosaics by a shortest path over window-indexed pair vertices,
// minimizing total switch cost, then refines each transition with
// breakpoint search. st carries the previous chunk's final oriented
// pair so the path objective and the breakpoint search both cover the
// transition across the chunk seam.
func (e *Engine) reconcileDP(sample, w0, w1 int, cands [][]labelPair, hmp *HaplotypeMosaicPair, st *reconcileState) error {
	for lw := range cands {
		if len(cands[lw]) == 0 {
			return fmt.Errorf("no candidate pairs for sample %d window %d", sample, w0+lw)
		}
	}
	var prev *labelPair
	if st.havePrev {
		prev = &labelPair{h1: st.prev1, h2: st.prev2}
	}
	chosen, _ := dpShortestPath(cands, e.Opts.Lambda, prev)

	// forward trace, orienting each chosen pair against the running
	// strands: swap when crossover beats parallel, keep on ties
	wcnt := w1 - w0
	var a, b hapID
	startLw := 0
	if st.havePrev {
		a, b = st.prev1, st.prev2
	} else {
		a, b = cands[0][chosen[0]].h1, cands[0][chosen[0]].h2
		startRow := e.CH.Windows[w0].Start
		hmp.Strand1.push(startRow, a, w0)
		hmp.Strand2.push(startRow, b, w0)
		startLw = 1
	}
	for lw := startLw; lw < wcnt; lw++ {
		c, d := cands[lw][chosen[lw]].h1, cands[lw][chosen[lw]].h2
		par, cross := 0, 0
		if a != c {
			par++
		}
		if b != d {
			par++
		}
		if a != d {
			cross++
		}
		if b != c {
			cross++
		}
		if cross < par {
			c, d = d, c
		}
		if a == c && b == d {
			continue
		}
		e.refineTransition(sample, w0+lw, a != c, b != d, a, c, b, d, hmp)
		a, b = c, d
	}
	st.prev1, st.prev2, st.havePrev = a, b, true
	last := &e.CH.Windows[w1-1]
	hmp.Strand1.Length = last.Start + last.Rows
	hmp.Strand2.Length = hmp.Strand1.Length
	return nil
}

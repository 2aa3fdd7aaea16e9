// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"math"
	"sort"
	"time"
)

// lassoSearch reduces the quadratic scan by a stepwise prescreen: for
// each sample it greedily picks r columns with the largest residual
// correlation |N[j,a] − 2·Σ_{s∈S} G[a,s]|, then searches pairs with a
// restricted to the picked set and b unrestricted. Ties in the greedy
// pick go to the smallest column index.
func (sc *pairScratch) lassoSearch(n, d, r int, keepCands bool) {
	if r >= d {
		sc.exhaustiveSearch(n, d, keepCands)
		return
	}
	for j := 0; j < n; j++ {
		t := time.Now()
		nrow := sc.nbuf[j*d : (j+1)*d]
		copy(sc.grad[:d], nrow)
		for a := range sc.inSet[:d] {
			sc.inSet[a] = false
		}
		sc.selected = sc.selected[:0]
		for step := 0; step < r; step++ {
			pick, pickval := -1, -1.0
			for a := 0; a < d; a++ {
				if sc.inSet[a] {
					continue
				}
				v := math.Abs(sc.grad[a])
				if v > pickval {
					pick, pickval = a, v
				}
			}
			if pick < 0 {
				break
			}
			sc.inSet[pick] = true
			sc.selected = append(sc.selected, pick)
			for a := 0; a < d; a++ {
				sc.grad[a] -= 2 * sc.gbuf[a*d+pick]
			}
		}
		sort.Ints(sc.selected)
		sc.timers[timerScreen] += time.Since(t)

		t = time.Now()
		best := math.Inf(1)
		besta, bestb := uniqueID(0), uniqueID(0)
		var cands []pairCand
		if keepCands {
			cands = sc.cands[j]
		}
		for _, a := range sc.selected {
			for b := 0; b < d; b++ {
				lo, hi := a, b
				if hi < lo {
					lo, hi = hi, lo
				}
				s := sc.pairScore(nrow, d, lo, hi)
				if s < best {
					best = s
					besta, bestb = uniqueID(lo), uniqueID(hi)
				}
				if keepCands {
					cands = pushCand(cands, pairCand{uniqueID(lo), uniqueID(hi), s})
				}
			}
		}
		sc.happair1[j], sc.happair2[j], sc.hapscore[j] = besta, bestb, best
		if keepCands {
			sc.cands[j] = cands
		}
		sc.timers[timerScan] += time.Since(t)
	}
}

// thinSearch keeps, per sample, the tf columns most aligned with x_j
// (largest N[j,a], ties to the smallest index) and solves the restricted
// tf × tf pair search over them.
func (sc *pairScratch) thinSearch(n, d, tf int, keepCands bool) {
	if tf >= d {
		sc.exhaustiveSearch(n, d, keepCands)
		return
	}
	if cap(sc.selected) < d {
		sc.selected = make([]int, 0, d)
	}
	for j := 0; j < n; j++ {
		t := time.Now()
		nrow := sc.nbuf[j*d : (j+1)*d]
		sc.selected = sc.selected[:d]
		for a := range sc.selected {
			sc.selected[a] = a
		}
		sort.Slice(sc.selected, func(x, y int) bool {
			ax, ay := sc.selected[x], sc.selected[y]
			if nrow[ax] != nrow[ay] {
				return nrow[ax] > nrow[ay]
			}
			return ax < ay
		})
		sc.selected = sc.selected[:tf]
		sort.Ints(sc.selected)
		sc.timers[timerScreen] += time.Since(t)

		t = time.Now()
		best := math.Inf(1)
		besta, bestb := uniqueID(0), uniqueID(0)
		var cands []pairCand
		if keepCands {
			cands = sc.cands[j]
		}
		for bi, b := range sc.selected {
			gb := sc.gbuf[b*d+b] - nrow[b]
			for _, a := range sc.selected[:bi+1] {
				s := sc.gbuf[a*d+a] + 2*sc.gbuf[a*d+b] - nrow[a] + gb
				if s < best {
					best = s
					besta, bestb = uniqueID(a), uniqueID(b)
				}
				if keepCands {
					cands = pushCand(cands, pairCand{uniqueID(a), uniqueID(b), s})
				}
			}
		}
		sc.happair1[j], sc.happair2[j], sc.hapscore[j] = besta, bestb, best
		if keepCands {
			sc.cands[j] = cands
		}
		sc.timers[timerScan] += time.Since(t)
	}
}

// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Stage indices of the per-worker timer array.
const (
	timerScreen = iota
	timerAssemble
	timerScan
	timerRescreen
	timerExpand
	numTimers
)

// pairCandidates is how many scan candidates are retained per sample
// for rescreen and for DP reconciliation.
const pairCandidates = 8

type pairCand struct {
	a, b  uniqueID
	score float64
}

// pairScratch is one worker's reusable state. Buffers grow monotonically
// so the per-window hot path does not allocate.
type pairScratch struct {
	xwork    []float64 // p × n, missing entries pre-imputed
	ubuf     []float64 // p × d
	gbuf     []float64 // d × d, UᵀU
	nbuf     []float64 // n × d, 2XᵀU
	xnorm    []float64 // ‖x_j‖² per sample
	happair1 []uniqueID
	happair2 []uniqueID
	hapscore []float64
	cands    [][]pairCand // per sample, best-first
	grad     []float64
	selected []int
	inSet    []bool
	timers   [numTimers]time.Duration
}

func grow(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

func (sc *pairScratch) resize(p, n, d int, wantCands bool) {
	sc.xwork = grow(sc.xwork, p*n)
	sc.ubuf = grow(sc.ubuf, p*d)
	sc.gbuf = grow(sc.gbuf, d*d)
	sc.nbuf = grow(sc.nbuf, n*d)
	sc.xnorm = grow(sc.xnorm, n)
	sc.grad = grow(sc.grad, d)
	if cap(sc.happair1) < n {
		sc.happair1 = make([]uniqueID, n)
		sc.happair2 = make([]uniqueID, n)
		sc.hapscore = make([]float64, n)
	}
	sc.happair1 = sc.happair1[:n]
	sc.happair2 = sc.happair2[:n]
	sc.hapscore = sc.hapscore[:n]
	if cap(sc.inSet) < d {
		sc.inSet = make([]bool, d)
	}
	sc.inSet = sc.inSet[:d]
	if wantCands {
		if cap(sc.cands) < n {
			sc.cands = make([][]pairCand, n)
		}
		sc.cands = sc.cands[:n]
		for j := range sc.cands {
			sc.cands[j] = sc.cands[j][:0]
		}
	}
}

// prepare fills xwork from the window slice of x, imputing missing
// entries with twice the window allele frequency, and copies the unique
// matrix into float form, applying inverse-variance scaling if asked.
func (sc *pairScratch) prepare(win *CompressedWindow, x *GenotypeMatrix, altfreq []float64, opts *Options) error {
	p, n, d := win.Rows, x.Cols, win.NUnique
	for i := 0; i < p; i++ {
		row := x.Row(win.Start + i)
		sum, cnt := 0, 0
		for _, v := range row {
			if v != missingGenotype {
				sum += int(v)
				cnt++
			}
		}
		fill := 0.0
		if cnt > 0 {
			fill = float64(sum) / float64(cnt) // = 2·q̂ for this row
		}
		for j, v := range row {
			if v == missingGenotype {
				sc.xwork[i*n+j] = fill
			} else {
				sc.xwork[i*n+j] = float64(v)
			}
		}
	}
	for i := 0; i < p; i++ {
		for u := 0; u < d; u++ {
			sc.ubuf[i*d+u] = float64(win.Unique[i*d+u])
		}
	}
	if opts.ScaleAlleleFreq {
		for i := 0; i < p; i++ {
			pfreq := altfreq[win.Start+i]
			w := 1.98
			if pfreq >= 0.15 && pfreq <= 0.85 {
				w = 1 / math.Sqrt(2*pfreq*(1-pfreq))
			}
			for j := 0; j < n; j++ {
				sc.xwork[i*n+j] *= w
			}
			for u := 0; u < d; u++ {
				sc.ubuf[i*d+u] *= w
			}
		}
	}
	for j := 0; j < n; j++ {
		ss := 0.0
		for i := 0; i < p; i++ {
			v := sc.xwork[i*n+j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite work entry at window row %d sample %d", win.Start+i, j)
			}
			ss += v * v
		}
		sc.xnorm[j] = ss
	}
	return nil
}

// assemble computes G = UᵀU and N = 2XᵀU with gonum.
func (sc *pairScratch) assemble(p, n, d int) {
	u := mat.NewDense(p, d, sc.ubuf[:p*d])
	g := mat.NewDense(d, d, sc.gbuf[:d*d])
	g.Mul(u.T(), u)
	xw := mat.NewDense(p, n, sc.xwork[:p*n])
	nd := mat.NewDense(n, d, sc.nbuf[:n*d])
	nd.Mul(xw.T(), u)
	for i := range sc.nbuf[:n*d] {
		sc.nbuf[i] *= 2
	}
}

// pairScore is ‖u_a+u_b‖² − N[j,a] − N[j,b] given the sample's N row.
func (sc *pairScratch) pairScore(nrow []float64, d, a, b int) float64 {
	g := sc.gbuf
	return g[a*d+a] + g[b*d+b] + 2*g[a*d+b] - nrow[a] - nrow[b]
}

// pushCand keeps the per-sample candidate list sorted best-first,
// bounded at pairCandidates entries.
func pushCand(cands []pairCand, c pairCand) []pairCand {
	pos := len(cands)
	for pos > 0 && cands[pos-1].score > c.score {
		pos--
	}
	if pos >= pairCandidates {
		return cands
	}
	if len(cands) < pairCandidates {
		cands = append(cands, pairCand{})
	}
	copy(cands[pos+1:], cands[pos:])
	cands[pos] = c
	return cands
}

// search runs the pair-search kernel for one window, leaving results in
// happair1/happair2/hapscore (unique-column space) and, when wantCands
// is set, per-sample candidate lists for DP reconciliation.
func (sc *pairScratch) search(win *CompressedWindow, x *GenotypeMatrix, altfreq []float64, opts *Options, wantCands bool) error {
	p, n, d := win.Rows, x.Cols, win.NUnique
	if d == 0 {
		return fmt.Errorf("window at row %d has an empty haplotype panel", win.Start)
	}
	keepCands := wantCands || opts.Rescreen
	sc.resize(p, n, d, keepCands)
	t := time.Now()
	if err := sc.prepare(win, x, altfreq, opts); err != nil {
		return err
	}
	sc.assemble(p, n, d)
	sc.timers[timerAssemble] += time.Since(t)

	switch {
	case d > opts.MaxHaplotypes && opts.Lasso > 0:
		sc.lassoSearch(n, d, opts.Lasso, keepCands)
	case d > opts.MaxHaplotypes && opts.Thinning > 0:
		sc.thinSearch(n, d, opts.Thinning, keepCands)
	default:
		sc.exhaustiveSearch(n, d, keepCands)
	}

	for j := 0; j < n; j++ {
		if math.IsInf(sc.hapscore[j], 1) {
			return fmt.Errorf("pair search found no pair for sample %d in window at row %d", j, win.Start)
		}
		sc.hapscore[j] += sc.xnorm[j]
		if sc.hapscore[j] < 0 {
			// squared residual computed by difference of large
			// terms; clamp the rounding residue
			sc.hapscore[j] = 0
		}
	}
	if opts.Rescreen {
		t = time.Now()
		sc.rescreen(win, x, n)
		sc.timers[timerRescreen] += time.Since(t)
	}
	return nil
}

// exhaustiveSearch scans the full upper triangle a ≤ b. The iteration
// order (b outer, a inner) with strict improvement keeps the first-found
// minimum, so equal-scoring pairs resolve deterministically.
func (sc *pairScratch) exhaustiveSearch(n, d int, keepCands bool) {
	t := time.Now()
	for j := 0; j < n; j++ {
		nrow := sc.nbuf[j*d : (j+1)*d]
		best := math.Inf(1)
		besta, bestb := uniqueID(0), uniqueID(0)
		var cands []pairCand
		if keepCands {
			cands = sc.cands[j]
		}
		for b := 0; b < d; b++ {
			gb := sc.gbuf[b*d+b] - nrow[b]
			for a := 0; a <= b; a++ {
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
	}
	sc.timers[timerScan] += time.Since(t)
}

// rescreen rescores the retained candidate pairs on observed entries
// only and keeps the best. Ties keep the lexicographically smallest
// pair.
func (sc *pairScratch) rescreen(win *CompressedWindow, x *GenotypeMatrix, n int) {
	p, d := win.Rows, win.NUnique
	for j := 0; j < n; j++ {
		cands := sc.cands[j]
		if len(cands) == 0 {
			continue
		}
		best := math.Inf(1)
		besta, bestb := sc.happair1[j], sc.happair2[j]
		for _, c := range cands {
			err := 0.0
			for i := 0; i < p; i++ {
				v := x.At(win.Start+i, j)
				if v == missingGenotype {
					continue
				}
				r := float64(v) - float64(win.Unique[i*d+int(c.a)]) - float64(win.Unique[i*d+int(c.b)])
				err += r * r
			}
			if err < best || (err == best && (c.a < besta || (c.a == besta && c.b < bestb))) {
				best = err
				besta, bestb = c.a, c.b
			}
		}
		sc.happair1[j], sc.happair2[j] = besta, bestb
		sc.hapscore[j] = best
	}
}

// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// optHapSets is one chunk's OptimalHaplotypeSet storage: per sample,
// two bit-sets over the complete panel per window.
type optHapSets struct {
	strand1, strand2 []hapSet // indexed by chunk-local window
}

// labelPair is a candidate ordered pair in complete-label space, kept
// for DP reconciliation.
type labelPair struct {
	h1, h2 hapID
	score  float64
}

// Engine runs the windowed pair search and phase reconciliation over a
// target cohort.
type Engine struct {
	Opts   Options
	CH     *CompressedHaplotypes
	X      *GenotypeMatrix
	Htyped *RefPanel // reference restricted to typed rows
}

// PhaseResult is the per-sample strand mosaics plus per-window scores,
// in typed-row coordinates until UpdateMarkerPositions is applied.
type PhaseResult struct {
	Phase        []HaplotypeMosaicPair
	WindowScores [][]float64 // [sample][window]
	Timers       [numTimers]time.Duration
}

func (e *Engine) validate() error {
	if e.X.Rows != e.CH.TypedRows {
		return fmt.Errorf("row count mismatch: target has %d typed rows, reference dictionary has %d", e.X.Rows, e.CH.TypedRows)
	}
	if e.Htyped != nil && e.Htyped.Rows != e.X.Rows {
		return fmt.Errorf("row count mismatch: target has %d typed rows, typed reference panel has %d", e.X.Rows, e.Htyped.Rows)
	}
	if e.Htyped != nil && e.Htyped.Cols != e.CH.TotalHaps {
		return fmt.Errorf("haplotype count mismatch: panel has %d, dictionary has %d", e.Htyped.Cols, e.CH.TotalHaps)
	}
	return nil
}

// windowsPerChunk bounds the number of windows processed at once so the
// peak footprint (X slab + per-thread M/N scratch + OHS bit-sets) stays
// within 80% of the RAM budget. A zero budget means one chunk.
func windowsPerChunk(ram int64, avgUnique, totalHaps, perWindowRows, samples, threads, totalWindows int) int {
	if ram <= 0 {
		return totalWindows
	}
	words := (totalHaps + 63) / 64
	perWindow := int64(samples) * 2 * int64(words) * 8
	d := int64(avgUnique)
	fixed := int64(threads) * 8 * (int64(perWindowRows)*int64(samples) + int64(perWindowRows)*d + d*d + int64(samples)*d)
	fixed += int64(perWindowRows) * int64(totalWindows) * int64(samples) // X slab
	budget := ram * 8 / 10
	avail := budget - fixed
	if avail < perWindow {
		return 1
	}
	n := int(avail / perWindow)
	if n > totalWindows {
		n = totalWindows
	}
	return n
}

func (e *Engine) avgUnique() int {
	if len(e.CH.Windows) == 0 {
		return 0
	}
	sum := 0
	for i := range e.CH.Windows {
		sum += e.CH.Windows[i].NUnique
	}
	return sum / len(e.CH.Windows)
}

// Run executes the pipeline: chunked window search, redundancy
// expansion, and phase reconciliation, returning per-sample mosaics.
func (e *Engine) Run() (*PhaseResult, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	threads := e.Opts.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}
	nwin := e.CH.NumWindows()
	nsamp := e.X.Cols
	res := &PhaseResult{
		Phase:        make([]HaplotypeMosaicPair, nsamp),
		WindowScores: make([][]float64, nsamp),
	}
	for j := range res.WindowScores {
		res.WindowScores[j] = make([]float64, nwin)
	}

	scratch := make([]*pairScratch, threads)
	ids := make(chan int, threads)
	for i := 0; i < threads; i++ {
		scratch[i] = &pairScratch{}
		ids <- i
	}
	states := make([]reconcileState, nsamp)

	chunkLen := windowsPerChunk(e.Opts.RAMBytes, e.avgUnique(), e.CH.TotalHaps, e.Opts.Width, nsamp, threads, nwin)
	if chunkLen < 1 {
		chunkLen = 1
	}
	words := (e.CH.TotalHaps + 63) / 64
	var done int64

	for w0 := 0; w0 < nwin; w0 += chunkLen {
		w1 := w0 + chunkLen
		if w1 > nwin {
			w1 = nwin
		}
		wcnt := w1 - w0
		log.Infof("windows %d-%d of %d", w0, w1-1, nwin)

		var ohs []optHapSets
		var cands [][][]labelPair // [sample][local window][cand]
		if e.Opts.FastMethod {
			backing := make([]uint64, nsamp*wcnt*2*words)
			ohs = make([]optHapSets, nsamp)
			for j := range ohs {
				ohs[j].strand1 = make([]hapSet, wcnt)
				ohs[j].strand2 = make([]hapSet, wcnt)
				for lw := 0; lw < wcnt; lw++ {
					off := ((j*wcnt+lw)*2 + 0) * words
					ohs[j].strand1[lw] = hapSet(backing[off : off+words])
					ohs[j].strand2[lw] = hapSet(backing[off+words : off+2*words])
				}
			}
		} else {
			cands = make([][][]labelPair, nsamp)
			for j := range cands {
				cands[j] = make([][]labelPair, wcnt)
			}
		}

		var th throttle
		th.Max = threads
		for w := w0; w < w1; w++ {
			w := w
			th.Go(func() error {
				id := <-ids
				defer func() { ids <- id }()
				sc := scratch[id]
				win := &e.CH.Windows[w]
				err := sc.search(win, e.X, e.CH.AltFreq, &e.Opts, !e.Opts.FastMethod)
				if err != nil {
					return err
				}
				t := time.Now()
				lw := w - w0
				for j := 0; j < nsamp; j++ {
					res.WindowScores[j][w] = sc.hapscore[j]
					if e.Opts.FastMethod {
						expandPair(win, sc.happair1[j], sc.happair2[j], ohs[j].strand1[lw], ohs[j].strand2[lw], e.Opts.ExpandRedundants)
					} else {
						cs := sc.cands[j]
						out := make([]labelPair, len(cs))
						for k, c := range cs {
							out[k] = labelPair{win.First[c.a], win.First[c.b], c.score + sc.xnorm[j]}
						}
						cands[j][lw] = out
					}
				}
				sc.timers[timerExpand] += time.Since(t)
				if n := atomic.AddInt64(&done, 1); n%200 == 0 {
					log.Infof("searched %d/%d windows", n, nwin)
				}
				return nil
			})
		}
		if err := th.Wait(); err != nil {
			return nil, err
		}

		var rth throttle
		rth.Max = threads
		for j := 0; j < nsamp; j++ {
			j := j
			rth.Go(func() error {
				if e.Opts.FastMethod {
					return e.reconcileIntersection(j, w0, w1, &ohs[j], &res.Phase[j], &states[j])
				}
				return e.reconcileDP(j, w0, w1, cands[j], &res.Phase[j], &states[j])
			})
		}
		if err := rth.Wait(); err != nil {
			return nil, err
		}
	}

	for _, sc := range scratch {
		for i, d := range sc.timers {
			res.Timers[i] += d
		}
	}
	log.Infof("pair search timers: screen %v assemble %v scan %v rescreen %v expand %v",
		res.Timers[timerScreen], res.Timers[timerAssemble], res.Timers[timerScan],
		res.Timers[timerRescreen], res.Timers[timerExpand])
	return res, nil
}

// expandPair maps a unique-column pair back to complete-panel bit-sets
// through the window's equivalence classes.
func expandPair(win *CompressedWindow, a, b uniqueID, s1, s2 hapSet, expandRedundants bool) {
	rep1, mem1 := win.members(a)
	rep2, mem2 := win.members(b)
	s1.clear()
	s2.clear()
	if expandRedundants && mem1 != nil {
		s1.setList(mem1)
	} else {
		s1.add(rep1)
	}
	if expandRedundants && mem2 != nil {
		s2.setList(mem2)
	} else {
		s2.add(rep2)
	}
}

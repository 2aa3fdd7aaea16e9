// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

// reconcileState carries one sample's reconciliation state across
// chunk boundaries: the running intersection chains and committed
// labels of the last window processed (intersection mode), or the last
// chosen oriented pair (DP mode). The zero value means no windows have
// been processed yet.
type reconcileState struct {
	chain1, chain2 hapSet
	lab1, lab2     hapID
	prev1, prev2   hapID
	havePrev       bool
}

// collapseTo reduces a committed run set to a single haplotype,
// keeping pref when the set still contains it so labels stay stable
// across run and chunk boundaries.
func collapseTo(s hapSet, pref hapID) hapID {
	if pref >= 0 && s.has(pref) {
		s.clear()
		s.add(pref)
		return pref
	}
	h := s.first()
	if h >= 0 {
		s.clear()
		s.add(h)
	}
	return h
}

// refineTransition locates the switch position for the transition into
// window w (whose breaking strands are brk1/brk2) and appends the new
// segments. The stretch spans windows w-1 and w plus flanks, so it
// works the same whether the transition is inside a chunk or across a
// chunk seam.
func (e *Engine) refineTransition(sample, w int, brk1, brk2 bool, cur1, next1, cur2, next2 hapID, hmp *HaplotypeMosaicPair) {
	stretchStart, stretchRows := e.stretchBounds(w)
	switch {
	case brk1 && brk2:
		b1, b2, _ := e.searchBreakpointPair(sample, stretchStart, stretchRows, cur1, next1, cur2, next2)
		if b1 >= 0 {
			hmp.Strand1.push(stretchStart+b1+1, next1, w)
		}
		if b2 >= 0 {
			hmp.Strand2.push(stretchStart+b2+1, next2, w)
		}
	case brk1:
		b, _ := e.searchBreakpointSingle(sample, stretchStart, stretchRows, next2, cur1, next1)
		if b >= 0 {
			hmp.Strand1.push(stretchStart+b+1, next1, w)
		}
	default:
		b, _ := e.searchBreakpointSingle(sample, stretchStart, stretchRows, next1, cur2, next2)
		if b >= 0 {
			hmp.Strand2.push(stretchStart+b+1, next2, w)
		}
	}
}

// reconcileIntersection stitches one sample's per-window bit-sets into
// two strand mosaics by iterated intersection, then locates switch
// breakpoints where runs of consensus end.
//
// Windows [w0..w1) are this chunk's global range; ohs holds that range
// chunk-locally. st carries the chains and final labels from the
// previous chunk so runs, crossover orientation, and breakpoint search
// continue across the seam. Segments are appended to hmp in typed-row
// space.
func (e *Engine) reconcileIntersection(sample, w0, w1 int, ohs *optHapSets, hmp *HaplotypeMosaicPair, st *reconcileState) error {
	wcnt := w1 - w0
	s1, s2 := ohs.strand1, ohs.strand2
	fresh := st.chain1 == nil
	if fresh {
		st.chain1 = newHapSet(e.CH.TotalHaps)
		st.chain2 = newHapSet(e.CH.TotalHaps)
	}
	chain1, chain2 := st.chain1, st.chain2
	span1, span2 := 0, 0
	for lw := 0; lw < wcnt; lw++ {
		if lw == 0 && fresh {
			chain1.copyFrom(s1[0])
			chain2.copyFrom(s2[0])
			span1, span2 = 1, 1
			continue
		}
		// crossover flip: keep each window's pair oriented with the
		// running chains by overlap size; ties prefer no flip
		ac := chain1.intersectionCount(s1[lw])
		ad := chain1.intersectionCount(s2[lw])
		bc := chain2.intersectionCount(s1[lw])
		bd := chain2.intersectionCount(s2[lw])
		if ac+bd < ad+bc {
			s1[lw], s2[lw] = s2[lw], s1[lw]
		}
		if chain1.intersectionCount(s1[lw]) == 0 {
			for ww := lw - span1; ww < lw; ww++ {
				s1[ww].copyFrom(chain1)
			}
			chain1.copyFrom(s1[lw])
			span1 = 1
		} else {
			chain1.intersect(s1[lw])
			span1++
		}
		if chain2.intersectionCount(s2[lw]) == 0 {
			for ww := lw - span2; ww < lw; ww++ {
				s2[ww].copyFrom(chain2)
			}
			chain2.copyFrom(s2[lw])
			span2 = 1
		} else {
			chain2.intersect(s2[lw])
			span2++
		}
	}
	for ww := wcnt - span1; ww < wcnt; ww++ {
		s1[ww].copyFrom(chain1)
	}
	for ww := wcnt - span2; ww < wcnt; ww++ {
		s2[ww].copyFrom(chain2)
	}
	// collapse each committed run set to its chosen haplotype so every
	// window ends with exactly one bit per strand; prefer the previous
	// window's label so equivalence classes resolve consistently
	pref1, pref2 := hapID(-1), hapID(-1)
	if !fresh {
		pref1, pref2 = st.lab1, st.lab2
	}
	for lw := 0; lw < wcnt; lw++ {
		pref1 = collapseTo(s1[lw], pref1)
		pref2 = collapseTo(s2[lw], pref2)
	}

	// convert the committed runs to segments, searching breakpoints at
	// run boundaries, including the boundary with the previous chunk
	if fresh {
		startRow := e.CH.Windows[w0].Start
		hmp.Strand1.push(startRow, s1[0].first(), w0)
		hmp.Strand2.push(startRow, s2[0].first(), w0)
	} else {
		brk1 := s1[0].first() != st.lab1
		brk2 := s2[0].first() != st.lab2
		if brk1 || brk2 {
			e.refineTransition(sample, w0, brk1, brk2, st.lab1, s1[0].first(), st.lab2, s2[0].first(), hmp)
		}
	}
	for lw := 1; lw < wcnt; lw++ {
		cur1, next1 := s1[lw-1].first(), s1[lw].first()
		cur2, next2 := s2[lw-1].first(), s2[lw].first()
		brk1 := cur1 != next1
		brk2 := cur2 != next2
		if !brk1 && !brk2 {
			continue
		}
		e.refineTransition(sample, w0+lw, brk1, brk2, cur1, next1, cur2, next2, hmp)
	}
	st.lab1 = s1[wcnt-1].first()
	st.lab2 = s2[wcnt-1].first()
	last := &e.CH.Windows[w1-1]
	hmp.Strand1.Length = last.Start + last.Rows
	hmp.Strand2.Length = hmp.Strand1.Length
	return nil
}

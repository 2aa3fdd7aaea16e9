// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import "math/bits"

// hapSet is a dense bit-vector over complete-panel haplotype indices
// [0..D). All sets operated on together must be sized for the same D.
type hapSet []uint64

func newHapSet(nhaps int) hapSet {
	return make(hapSet, (nhaps+63)/64)
}

func (s hapSet) add(h hapID) {
	s[uint32(h)>>6] |= 1 << (uint32(h) & 63)
}

func (s hapSet) has(h hapID) bool {
	return s[uint32(h)>>6]&(1<<(uint32(h)&63)) != 0
}

func (s hapSet) clear() {
	for i := range s {
		s[i] = 0
	}
}

func (s hapSet) copyFrom(src hapSet) {
	copy(s, src)
}

// intersect replaces s with s ∩ other and reports whether the result is
// non-empty.
func (s hapSet) intersect(other hapSet) bool {
	any := uint64(0)
	for i := range s {
		s[i] &= other[i]
		any |= s[i]
	}
	return any != 0
}

// intersectionCount returns |s ∩ other| without modifying either set.
func (s hapSet) intersectionCount(other hapSet) int {
	n := 0
	for i := range s {
		n += bits.OnesCount64(s[i] & other[i])
	}
	return n
}

func (s hapSet) count() int {
	n := 0
	for i := range s {
		n += bits.OnesCount64(s[i])
	}
	return n
}

func (s hapSet) empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

// first returns the lowest set bit, or -1 if the set is empty.
func (s hapSet) first() hapID {
	for i, w := range s {
		if w != 0 {
			return hapID(i*64 + bits.TrailingZeros64(w))
		}
	}
	return -1
}

func (s hapSet) equal(other hapSet) bool {
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// setList fills s with exactly the given members.
func (s hapSet) setList(members []hapID) {
	s.clear()
	for _, h := range members {
		s.add(h)
	}
}

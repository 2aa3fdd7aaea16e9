// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHapSetBasics(t *testing.T) {
	s := newHapSet(130)
	assert.True(t, s.empty())
	assert.Equal(t, hapID(-1), s.first())
	s.add(0)
	s.add(63)
	s.add(64)
	s.add(129)
	assert.Equal(t, 4, s.count())
	assert.True(t, s.has(64))
	assert.False(t, s.has(65))
	assert.Equal(t, hapID(0), s.first())

	other := newHapSet(130)
	other.add(64)
	other.add(129)
	other.add(1)
	assert.Equal(t, 2, s.intersectionCount(other))

	cp := newHapSet(130)
	cp.copyFrom(s)
	assert.True(t, cp.equal(s))
	assert.True(t, cp.intersect(other))
	assert.Equal(t, 2, cp.count())
	assert.Equal(t, hapID(64), cp.first())

	cp.setList([]hapID{5, 7})
	assert.Equal(t, 2, cp.count())
	assert.True(t, cp.has(5))
	assert.True(t, cp.has(7))
	cp.clear()
	assert.True(t, cp.empty())
}

func TestHapSetDisjointIntersect(t *testing.T) {
	a := newHapSet(64)
	b := newHapSet(64)
	a.add(3)
	b.add(4)
	assert.Equal(t, 0, a.intersectionCount(b))
	assert.False(t, a.intersect(b))
	assert.True(t, a.empty())
}

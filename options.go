// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

// Options collects the engine tunables. The zero value is not usable;
// start from DefaultOptions.
type Options struct {
	// Width is the number of typed markers per window.
	Width int
	// FlankWidth is the extra rows on each side of a window made
	// available to breakpoint search. 0 means Width/10.
	FlankWidth int
	// FastMethod selects intersection-mode reconciliation; false
	// selects the dynamic-programming mode.
	FastMethod bool
	// MaxHaplotypes is the per-window unique-column count above which
	// the screening variants activate.
	MaxHaplotypes int
	// Lasso, when positive, enables the stepwise prescreen with that
	// many columns per sample.
	Lasso int
	// Thinning, when positive, enables top-k thinning with that many
	// columns per sample.
	Thinning int
	// Rescreen enables observed-entry rescoring of the top candidate
	// pairs after the scan.
	Rescreen bool
	// ScaleAlleleFreq enables inverse-variance row scaling.
	ScaleAlleleFreq bool
	// Lambda is the DP switch penalty.
	Lambda float64
	// ExpandRedundants controls whether redundancy expansion stores
	// full hapmap equivalence classes (true) or just the canonical
	// representative (false).
	ExpandRedundants bool
	// Threads is the worker pool size. 0 means runtime.NumCPU().
	Threads int
	// RAMBytes bounds chunk sizing. 0 means a single chunk.
	RAMBytes int64
}

func DefaultOptions() Options {
	return Options{
		Width:            400,
		FastMethod:       true,
		MaxHaplotypes:    800,
		Lambda:           1.0,
		ExpandRedundants: true,
	}
}

func (o *Options) flankWidth() int {
	if o.FlankWidth > 0 {
		return o.FlankWidth
	}
	return o.Width / 10
}

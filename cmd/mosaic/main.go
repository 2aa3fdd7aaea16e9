// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "github.com/mosaicphase/mosaic"

func main() {
	mosaic.Main()
}

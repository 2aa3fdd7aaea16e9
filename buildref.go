// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// buildRef reads a phased reference VCF, deduplicates per-window
// haplotypes, and writes the compressed library.
type buildRef struct{}

func (cmd *buildRef) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "reference VCF input `file` (phased)")
	outputFilename := flags.String("o", "", "output library `file` (.gob.gz)")
	width := flags.Int("width", DefaultOptions().Width, "typed markers per window")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *outputFilename == "" {
		err = fmt.Errorf("-o is required")
		return 2
	}

	var input io.ReadCloser
	if *inputFilename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = os.Open(*inputFilename)
		if err != nil {
			return 1
		}
		defer input.Close()
	}
	samples, recs, err := readVCF(input, strings.HasSuffix(*inputFilename, ".gz"))
	if err != nil {
		return 1
	}
	panel, sites, err := panelFromRecords(samples, recs)
	if err != nil {
		return 1
	}
	log.Infof("reference: %d markers, %d samples (%d haplotypes)", panel.Rows, len(samples), panel.Cols)
	ch, err := BuildCompressed(panel, *width)
	if err != nil {
		return 1
	}
	out, err := os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return 1
	}
	defer out.Close()
	err = WriteRefLibrary(out, ch, panel, sites)
	if err != nil {
		return 1
	}
	err = out.Close()
	if err != nil {
		return 1
	}
	log.Info("build-ref: done")
	return 0
}

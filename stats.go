// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// statsCmd summarizes a compressed reference library as JSON.
type statsCmd struct{}

func (cmd *statsCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "library input `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
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
	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	err = cmd.doStats(input, strings.HasSuffix(*inputFilename, ".gz"), bufw)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *statsCmd) doStats(input io.Reader, gz bool, output io.Writer) error {
	var ret struct {
		Haplotypes        int
		TypedRows         int
		FullRows          int
		Width             int
		Windows           int
		UniqueColumnsMin  int
		UniqueColumnsMax  int
		UniqueColumnsMean float64
		ClassSizeCounts   []int // a[x]==y means y equivalence classes of size x
		AltFreqMean       float64
	}
	var uniques []float64
	err := DecodeRefLibrary(input, gz, func(ent *RefLibraryEntry) error {
		if ent.Meta != nil {
			ret.Haplotypes = ent.Meta.TotalHaps
			ret.TypedRows = ent.Meta.TypedRows
			ret.FullRows = ent.Meta.FullRows
			ret.Width = ent.Meta.Width
		}
		for i := range ent.Windows {
			w := &ent.Windows[i]
			ret.Windows++
			uniques = append(uniques, float64(w.NUnique))
			if ret.UniqueColumnsMin == 0 || w.NUnique < ret.UniqueColumnsMin {
				ret.UniqueColumnsMin = w.NUnique
			}
			if w.NUnique > ret.UniqueColumnsMax {
				ret.UniqueColumnsMax = w.NUnique
			}
			singles := w.NUnique - len(w.Members)
			for len(ret.ClassSizeCounts) < 2 {
				ret.ClassSizeCounts = append(ret.ClassSizeCounts, 0)
			}
			ret.ClassSizeCounts[1] += singles
			for _, members := range w.Members {
				for len(ret.ClassSizeCounts) <= len(members) {
					ret.ClassSizeCounts = append(ret.ClassSizeCounts, 0)
				}
				ret.ClassSizeCounts[len(members)]++
			}
		}
		if len(ent.AltFreq) > 0 {
			ret.AltFreqMean = stat.Mean(ent.AltFreq, nil)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("library decode: %w", err)
	}
	if len(uniques) > 0 {
		ret.UniqueColumnsMean = stat.Mean(uniques, nil)
	}
	return json.NewEncoder(output).Encode(ret)
}

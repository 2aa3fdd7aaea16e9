// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy runs the imputation pipeline and writes the dosage and
// per-strand allele matrices as .npy files.
type exportNumpy struct {
	opts Options
}

func writeNpyInt16(filename string, data []int16, rows, cols int) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteInt16(data)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}

func writeNpyFloat64(filename string, data []float64, rows, cols int) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(data)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	refFilename := flags.String("ref", "", "reference panel `file` (VCF or .gob.gz library)")
	inputFilename := flags.String("i", "-", "target VCF input `file`")
	outputDir := flags.String("output-dir", ".", "output `directory`")
	def := DefaultOptions()
	flags.IntVar(&cmd.opts.Width, "width", def.Width, "typed markers per window")
	flags.IntVar(&cmd.opts.MaxHaplotypes, "max-haplotypes", def.MaxHaplotypes, "unique-haplotype count above which screening activates")
	flags.IntVar(&cmd.opts.Threads, "threads", 0, "worker threads (0 = all CPUs)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *refFilename == "" {
		err = fmt.Errorf("-ref is required")
		return 2
	}
	cmd.opts.FastMethod = true
	cmd.opts.Lambda = def.Lambda
	cmd.opts.ExpandRedundants = true

	run, err := runImputation(cmd.opts, *refFilename, *inputFilename, stdin)
	if err != nil {
		return 1
	}
	res := run.result
	dosage := make([]int16, res.Rows*res.Cols)
	strand1 := make([]int16, res.Rows*res.Cols)
	strand2 := make([]int16, res.Rows*res.Cols)
	for i := range dosage {
		strand1[i] = int16(res.A1[i])
		strand2[i] = int16(res.A2[i])
		dosage[i] = strand1[i] + strand2[i]
	}
	err = writeNpyInt16(*outputDir+"/matrix.npy", dosage, res.Rows, res.Cols)
	if err != nil {
		return 1
	}
	err = writeNpyInt16(*outputDir+"/strand1.npy", strand1, res.Rows, res.Cols)
	if err != nil {
		return 1
	}
	err = writeNpyInt16(*outputDir+"/strand2.npy", strand2, res.Rows, res.Cols)
	if err != nil {
		return 1
	}
	err = writeNpyFloat64(*outputDir+"/impq.npy", res.Quality, res.Rows, 1)
	if err != nil {
		return 1
	}
	log.Infof("export-numpy: wrote %d×%d matrices to %s", res.Rows, res.Cols, *outputDir)
	return 0
}

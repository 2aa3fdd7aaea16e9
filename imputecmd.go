// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// imputer runs the full pipeline: target + reference in, phased VCF
// out.
type imputer struct {
	opts Options
}

// imputationRun is everything the impute/export commands need from one
// pipeline execution.
type imputationRun struct {
	samples []string
	sites   []Site
	result  *ImputeResult
	phase   []HaplotypeMosaicPair
}

func runImputation(opts Options, refFilename, targetFilename string, stdin io.Reader) (*imputationRun, error) {
	var target io.ReadCloser
	var err error
	if targetFilename == "-" {
		target = io.NopCloser(stdin)
	} else {
		target, err = os.Open(targetFilename)
		if err != nil {
			return nil, err
		}
		defer target.Close()
	}
	samples, recs, err := readVCF(target, strings.HasSuffix(targetFilename, ".gz"))
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	log.Infof("target: %d markers, %d samples", len(recs), len(samples))

	var ch *CompressedHaplotypes
	var panel *RefPanel
	var sites []Site
	if strings.HasSuffix(refFilename, ".gob") || strings.HasSuffix(refFilename, ".gob.gz") {
		f, err := os.Open(refFilename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ch, panel, sites, err = ReadRefLibrary(f, strings.HasSuffix(refFilename, ".gz"))
		if err != nil {
			return nil, fmt.Errorf("reference library: %w", err)
		}
		if panel == nil || len(sites) == 0 {
			return nil, fmt.Errorf("reference library %s has no panel records", refFilename)
		}
	} else {
		f, err := os.Open(refFilename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		refSamples, refRecs, err := readVCF(f, strings.HasSuffix(refFilename, ".gz"))
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		panel, sites, err = panelFromRecords(refSamples, refRecs)
		if err != nil {
			return nil, err
		}
	}

	typedToFull, x, err := alignTarget(sites, recs, len(samples))
	if err != nil {
		return nil, err
	}
	htyped, err := panel.TypedSubset(typedToFull)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.TypedRows != x.Rows || ch.Width != opts.Width {
		// the prebuilt dictionary assumes every library row is typed;
		// rebuild over the target's typed subset when they differ
		if ch != nil {
			log.Infof("rebuilding window dictionary for %d of %d typed rows", x.Rows, ch.TypedRows)
		}
		ch, err = BuildCompressed(htyped, opts.Width)
		if err != nil {
			return nil, err
		}
	}

	eng := &Engine{Opts: opts, CH: ch, X: x, Htyped: htyped}
	res, err := eng.Run()
	if err != nil {
		return nil, err
	}
	for j := range res.Phase {
		if err := res.Phase[j].UpdateMarkerPositions(typedToFull, panel.Rows); err != nil {
			return nil, err
		}
	}
	imp, err := ImputeAlleles(ch, panel, res.Phase)
	if err != nil {
		return nil, err
	}
	imp.Quality = ImputationQuality(res.WindowScores, ch, typedToFull, panel.Rows)
	return &imputationRun{samples: samples, sites: sites, result: imp, phase: res.Phase}, nil
}

func (cmd *imputer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprofAddr := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	refFilename := flags.String("ref", "", "reference panel `file` (VCF or .gob.gz library)")
	inputFilename := flags.String("i", "-", "target VCF input `file`")
	outputFilename := flags.String("o", "-", "phased VCF output `file`")
	unphased := flags.Bool("unphased", false, "emit genotypes with / instead of |")
	def := DefaultOptions()
	flags.IntVar(&cmd.opts.Width, "width", def.Width, "typed markers per window")
	flags.IntVar(&cmd.opts.FlankWidth, "flank-width", 0, "extra rows per side for breakpoint search (default width/10)")
	dp := flags.Bool("dp", false, "use dynamic-programming phase reconciliation instead of intersection mode")
	flags.IntVar(&cmd.opts.MaxHaplotypes, "max-haplotypes", def.MaxHaplotypes, "unique-haplotype count above which screening activates")
	flags.IntVar(&cmd.opts.Lasso, "lasso", 0, "stepwise prescreen size `r` (0 = off)")
	flags.IntVar(&cmd.opts.Thinning, "tf", 0, "thinning size (0 = off)")
	flags.BoolVar(&cmd.opts.Rescreen, "rescreen", false, "rescore top candidate pairs on observed entries")
	flags.BoolVar(&cmd.opts.ScaleAlleleFreq, "scale-allelefreq", false, "inverse-variance row scaling")
	flags.Float64Var(&cmd.opts.Lambda, "lambda", def.Lambda, "DP switch penalty")
	flags.BoolVar(&cmd.opts.ExpandRedundants, "expand-redundants", true, "expand unique pairs to full equivalence classes")
	flags.IntVar(&cmd.opts.Threads, "threads", 0, "worker threads (0 = all CPUs)")
	flags.Int64Var(&cmd.opts.RAMBytes, "ram", 0, "memory budget in `bytes` for chunk sizing (0 = one chunk)")
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
	cmd.opts.FastMethod = !*dp

	if *pprofAddr != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	run, err := runImputation(cmd.opts, *refFilename, *inputFilename, stdin)
	if err != nil {
		return 1
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
	w := io.Writer(output)
	var zw *pgzip.Writer
	if strings.HasSuffix(*outputFilename, ".gz") {
		zw = pgzip.NewWriter(output)
		w = zw
	}
	sep := byte('|')
	if *unphased {
		sep = '/'
	}
	err = writePhasedVCF(w, run.samples, run.sites, run.result, sep)
	if err != nil {
		return 1
	}
	if zw != nil {
		err = zw.Close()
		if err != nil {
			return 1
		}
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	log.Info("impute: done")
	return 0
}

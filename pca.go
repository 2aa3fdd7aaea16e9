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

	"github.com/james-bowman/nlp"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// goPCA computes principal components of an imputed dosage matrix
// (markers × samples, as written by export-numpy) and writes the
// per-sample component coordinates.
type goPCA struct{}

func (cmd *goPCA) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "matrix.npy", "dosage matrix input `file` (markers × samples)")
	outputFilename := flags.String("o", "pca.npy", "output `file`")
	components := flags.Int("components", 4, "number of components")
	normalize := flags.Bool("normalize", false, "center and scale marker rows before fitting")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	f, err := os.Open(*inputFilename)
	if err != nil {
		return 1
	}
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	if err != nil {
		return 1
	}
	data, err := npy.GetInt16()
	if err != nil {
		return 1
	}
	if len(npy.Shape) != 2 {
		err = fmt.Errorf("input is not a matrix (shape %v)", npy.Shape)
		return 1
	}
	rows, cols := npy.Shape[0], npy.Shape[1]
	floatdata := make([]float64, len(data))
	for i, v := range data {
		floatdata[i] = float64(v)
	}
	if *normalize {
		for i := 0; i < rows; i++ {
			row := floatdata[i*cols : (i+1)*cols]
			mean, std := stat.MeanStdDev(row, nil)
			if std == 0 {
				std = 1
			}
			for j := range row {
				row[j] = (row[j] - mean) / std
			}
		}
	}
	// nlp wants observations in columns; markers are features, so the
	// markers × samples layout is already right
	mtx := mat.NewDense(rows, cols, floatdata)

	log.Print("fitting")
	transformer := nlp.NewPCA(*components)
	transformer.Fit(mtx)
	log.Print("transforming")
	out, err := transformer.Transform(mtx)
	if err != nil {
		return 1
	}
	outT := out.T()
	orows, ocols := outT.Dims()
	buf := make([]float64, orows*ocols)
	for i := 0; i < orows; i++ {
		for j := 0; j < ocols; j++ {
			buf[i*ocols+j] = outT.At(i, j)
		}
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
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{orows, ocols}
	err = npw.WriteFloat64(buf)
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
	log.Printf("pca: wrote %d×%d components", orows, ocols)
	return 0
}

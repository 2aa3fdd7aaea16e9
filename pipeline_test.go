// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

// writeRefVCF renders a panel as a phased VCF with two haplotypes per
// reference sample.
func writeRefVCF(path string, panel *RefPanel) error {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for s := 0; s < panel.Cols/2; s++ {
		fmt.Fprintf(&b, "\tr%d", s)
	}
	b.WriteString("\n")
	for row := 0; row < panel.Rows; row++ {
		fmt.Fprintf(&b, "1\t%d\t.\tA\tG\t.\tPASS\t.\tGT", 100+10*row)
		for s := 0; s < panel.Cols/2; s++ {
			fmt.Fprintf(&b, "\t%d|%d", panel.At(row, 2*s), panel.At(row, 2*s+1))
		}
		b.WriteString("\n")
	}
	return ioutil.WriteFile(path, []byte(b.String()), 0644)
}

func writeTargetVCF(path string, x *GenotypeMatrix) error {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for j := 0; j < x.Cols; j++ {
		fmt.Fprintf(&b, "\tt%d", j)
	}
	b.WriteString("\n")
	for row := 0; row < x.Rows; row++ {
		fmt.Fprintf(&b, "1\t%d\t.\tA\tG\t.\tPASS\t.\tGT", 100+10*row)
		for j := 0; j < x.Cols; j++ {
			switch x.At(row, j) {
			case missingGenotype:
				b.WriteString("\t./.")
			case 0:
				b.WriteString("\t0/0")
			case 1:
				b.WriteString("\t0/1")
			default:
				b.WriteString("\t1/1")
			}
		}
		b.WriteString("\n")
	}
	return ioutil.WriteFile(path, []byte(b.String()), 0644)
}

func (s *pipelineSuite) TestBuildRefImputeExportPCA(c *check.C) {
	tmpdir := c.MkDir()
	panel := randomPanel(123, 60, 8)
	complementColumn(panel, 4, 3)

	x := NewGenotypeMatrix(60, 2)
	genotypesFromPair(x, panel, 0, 0, 1)
	genotypesWithSwitch(x, panel, 1, 2, 3, 4, 30)
	// a few missing entries, away from the switch boundary
	for _, row := range []int{7, 41} {
		x.Set(row, 0, missingGenotype)
	}
	for _, row := range []int{5, 50} {
		x.Set(row, 1, missingGenotype)
	}
	truth := func(row, j int) int {
		if j == 0 {
			return int(panel.At(row, 0) + panel.At(row, 1))
		}
		h2 := 3
		if row >= 30 {
			h2 = 4
		}
		return int(panel.At(row, 2) + panel.At(row, h2))
	}

	err := writeRefVCF(tmpdir+"/ref.vcf", panel)
	c.Assert(err, check.IsNil)
	err = writeTargetVCF(tmpdir+"/target.vcf", x)
	c.Assert(err, check.IsNil)

	c.Log("=== build-ref ===")
	exited := (&buildRef{}).RunCommand("build-ref", []string{
		"-i", tmpdir + "/ref.vcf",
		"-o", tmpdir + "/lib.gob.gz",
		"-width", "15",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	c.Log("=== stats ===")
	exited = (&statsCmd{}).RunCommand("stats", []string{
		"-i", tmpdir + "/lib.gob.gz",
		"-o", tmpdir + "/stats.json",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	statsBuf, err := ioutil.ReadFile(tmpdir + "/stats.json")
	c.Assert(err, check.IsNil)
	var st struct {
		Haplotypes int
		Windows    int
		TypedRows  int
	}
	err = json.Unmarshal(statsBuf, &st)
	c.Assert(err, check.IsNil)
	c.Check(st.Haplotypes, check.Equals, 8)
	c.Check(st.Windows, check.Equals, 4)
	c.Check(st.TypedRows, check.Equals, 60)

	c.Log("=== impute ===")
	exited = (&imputer{}).RunCommand("impute", []string{
		"-ref", tmpdir + "/lib.gob.gz",
		"-i", tmpdir + "/target.vcf",
		"-o", tmpdir + "/out.vcf",
		"-width", "15",
		"-threads", "2",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	f, err := os.Open(tmpdir + "/out.vcf")
	c.Assert(err, check.IsNil)
	defer f.Close()
	samples, recs, err := readVCF(f, false)
	c.Assert(err, check.IsNil)
	c.Check(samples, check.DeepEquals, []string{"t0", "t1"})
	c.Assert(recs, check.HasLen, 60)
	for row, rec := range recs {
		for j := 0; j < 2; j++ {
			c.Check(rec.phased[j], check.Equals, true)
			c.Check(int(rec.genotype(j)), check.Equals, truth(row, j),
				check.Commentf("row %d sample %d", row, j))
		}
	}

	c.Log("=== export-numpy ===")
	exited = (&exportNumpy{}).RunCommand("export-numpy", []string{
		"-ref", tmpdir + "/lib.gob.gz",
		"-i", tmpdir + "/target.vcf",
		"-output-dir", tmpdir,
		"-width", "15",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	npyf, err := os.Open(tmpdir + "/matrix.npy")
	c.Assert(err, check.IsNil)
	defer npyf.Close()
	npy, err := gonpy.NewReader(npyf)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{60, 2})
	dosage, err := npy.GetInt16()
	c.Assert(err, check.IsNil)
	for row := 0; row < 60; row++ {
		for j := 0; j < 2; j++ {
			c.Check(int(dosage[row*2+j]), check.Equals, truth(row, j))
		}
	}

	c.Log("=== pca ===")
	exited = (&goPCA{}).RunCommand("pca", []string{
		"-i", tmpdir + "/matrix.npy",
		"-o", tmpdir + "/pca.npy",
		"-components", "2",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	pcaf, err := os.Open(tmpdir + "/pca.npy")
	c.Assert(err, check.IsNil)
	defer pcaf.Close()
	pnpy, err := gonpy.NewReader(pcaf)
	c.Assert(err, check.IsNil)
	c.Check(pnpy.Shape, check.DeepEquals, []int{2, 2})
}

func (s *pipelineSuite) TestImputeUnphasedSeparator(c *check.C) {
	tmpdir := c.MkDir()
	panel := randomPanel(9, 20, 4)
	x := NewGenotypeMatrix(20, 1)
	genotypesFromPair(x, panel, 0, 0, 2)
	c.Assert(writeRefVCF(tmpdir+"/ref.vcf", panel), check.IsNil)
	c.Assert(writeTargetVCF(tmpdir+"/target.vcf", x), check.IsNil)

	exited := (&imputer{}).RunCommand("impute", []string{
		"-ref", tmpdir + "/ref.vcf",
		"-i", tmpdir + "/target.vcf",
		"-o", tmpdir + "/out.vcf",
		"-width", "15",
		"-unphased",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	out, err := ioutil.ReadFile(tmpdir + "/out.vcf")
	c.Assert(err, check.IsNil)
	c.Check(strings.Contains(string(out), "|"), check.Equals, false)
}

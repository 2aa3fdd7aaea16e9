// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const targetVCF = `##fileformat=VCFv4.2
##source=test
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2
1	100	.	A	G	.	PASS	.	GT	0/1	1|1
1	150	.	C	T	.	PASS	.	GT:DP	./.:3	0/0:7
1	200	.	G	C,T	.	PASS	.	GT	0/0	0/1
1	250	.	T	A	.	PASS	.	GT	1	.
`

func TestReadVCF(t *testing.T) {
	samples, recs, err := readVCF(strings.NewReader(targetVCF), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, samples)
	require.Len(t, recs, 3) // multiallelic row skipped

	assert.Equal(t, Site{Chrom: "1", Pos: 100, ID: ".", Ref: "A", Alt: "G"}, recs[0].Site)
	assert.Equal(t, int8(1), recs[0].genotype(0))
	assert.Equal(t, int8(2), recs[0].genotype(1))
	assert.False(t, recs[0].phased[0])
	assert.True(t, recs[0].phased[1])

	assert.Equal(t, missingGenotype, recs[1].genotype(0))
	assert.Equal(t, int8(0), recs[1].genotype(1))

	// haploid call doubled, bare missing
	assert.Equal(t, int8(2), recs[2].genotype(0))
	assert.Equal(t, missingGenotype, recs[2].genotype(1))
}

func TestAlignTarget(t *testing.T) {
	refSites := []Site{
		{Chrom: "1", Pos: 50, Ref: "A", Alt: "C"},
		{Chrom: "1", Pos: 100, Ref: "A", Alt: "G"},
		{Chrom: "1", Pos: 150, Ref: "C", Alt: "T"},
		{Chrom: "1", Pos: 250, Ref: "T", Alt: "G"}, // allele mismatch vs target
	}
	_, recs, err := readVCF(strings.NewReader(targetVCF), false)
	require.NoError(t, err)
	typedToFull, x, err := alignTarget(refSites, recs, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, typedToFull)
	require.Equal(t, 2, x.Rows)
	assert.Equal(t, int8(1), x.At(0, 0))
	assert.Equal(t, missingGenotype, x.At(1, 0))
}

func TestPanelFromRecords(t *testing.T) {
	refVCF := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tr1\tr2\n" +
		"1\t10\t.\tA\tG\t.\t.\t.\tGT\t0|1\t1|1\n" +
		"1\t20\t.\tC\tT\t.\t.\t.\tGT\t1|0\t0|0\n"
	samples, recs, err := readVCF(strings.NewReader(refVCF), false)
	require.NoError(t, err)
	panel, sites, err := panelFromRecords(samples, recs)
	require.NoError(t, err)
	require.Equal(t, 2, panel.Rows)
	require.Equal(t, 4, panel.Cols)
	assert.Equal(t, []uint8{0, 1, 1, 1}, panel.Data[:4])
	assert.Equal(t, []uint8{1, 0, 0, 0}, panel.Data[4:])
	assert.Equal(t, 10, sites[0].Pos)

	// reference with missing alleles is fatal
	badVCF := strings.Replace(refVCF, "1|0", ".|0", 1)
	samples, recs, err = readVCF(strings.NewReader(badVCF), false)
	require.NoError(t, err)
	_, _, err = panelFromRecords(samples, recs)
	assert.Error(t, err)
}

func TestWritePhasedVCF(t *testing.T) {
	res := &ImputeResult{
		Rows: 2, Cols: 2,
		A1:      []uint8{0, 1, 1, 0},
		A2:      []uint8{1, 1, 0, 0},
		Quality: []float64{0.5, 1.25},
	}
	sites := []Site{
		{Chrom: "1", Pos: 10, Ref: "A", Alt: "G"},
		{Chrom: "1", Pos: 20, ID: "rs7", Ref: "C", Alt: "T"},
	}
	var buf bytes.Buffer
	require.NoError(t, writePhasedVCF(&buf, []string{"s1", "s2"}, sites, res, '|'))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ts1\ts2", lines[3])
	assert.Equal(t, "1\t10\t.\tA\tG\t.\tPASS\tIMPQ=0.5\tGT\t0|1\t1|1", lines[4])
	assert.Equal(t, "1\t20\trs7\tC\tT\t.\tPASS\tIMPQ=1.25\tGT\t1|0\t0|0", lines[5])
}

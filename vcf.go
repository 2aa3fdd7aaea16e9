// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// vcfRecord is one parsed marker line: site metadata plus per-sample
// allele pairs (-1 = missing).
type vcfRecord struct {
	Site
	a1, a2 []int8
	phased []bool
}

func (r *vcfRecord) genotype(j int) int8 {
	if r.a1[j] < 0 || r.a2[j] < 0 {
		return missingGenotype
	}
	return r.a1[j] + r.a2[j]
}

func parseAllele(s string) int8 {
	if s == "." || s == "" {
		return -1
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 1 {
		return -1
	}
	return int8(v)
}

// readVCF parses a biallelic VCF stream (gz = gzip/pgzip compressed),
// keeping only the GT field of each sample column.
func readVCF(rdr io.Reader, gz bool) ([]string, []vcfRecord, error) {
	if gz {
		zr, err := pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<20))
		if err != nil {
			return nil, nil, err
		}
		defer zr.Close()
		rdr = zr
	}
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	var samples []string
	var recs []vcfRecord
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if strings.HasPrefix(line, "##") || line == "" {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			fields := strings.Split(line, "\t")
			if len(fields) < 10 {
				return nil, nil, fmt.Errorf("line %d: header has no sample columns", lineno)
			}
			samples = fields[9:]
			continue
		}
		if samples == nil {
			return nil, nil, fmt.Errorf("line %d: record before #CHROM header", lineno)
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 10 {
			return nil, nil, fmt.Errorf("line %d: truncated record", lineno)
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: bad position %q", lineno, fields[1])
		}
		if strings.ContainsRune(fields[4], ',') {
			log.Warnf("line %d: skipping multiallelic site %s:%s", lineno, fields[0], fields[1])
			continue
		}
		rec := vcfRecord{
			Site:   Site{Chrom: fields[0], Pos: pos, ID: fields[2], Ref: fields[3], Alt: fields[4]},
			a1:     make([]int8, len(samples)),
			a2:     make([]int8, len(samples)),
			phased: make([]bool, len(samples)),
		}
		for j, sf := range fields[9:] {
			gt := sf
			if i := strings.IndexByte(gt, ':'); i >= 0 {
				gt = gt[:i]
			}
			sep := strings.IndexAny(gt, "|/")
			if sep < 0 {
				// haploid call; duplicate it
				a := parseAllele(gt)
				rec.a1[j], rec.a2[j] = a, a
				continue
			}
			rec.a1[j] = parseAllele(gt[:sep])
			rec.a2[j] = parseAllele(gt[sep+1:])
			rec.phased[j] = gt[sep] == '|'
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return samples, recs, nil
}

// panelFromRecords builds a phased reference panel (two haplotypes per
// sample) plus site metadata. Missing alleles in a reference are a
// fatal input error.
func panelFromRecords(samples []string, recs []vcfRecord) (*RefPanel, []Site, error) {
	panel := NewRefPanel(len(recs), 2*len(samples))
	sites := make([]Site, len(recs))
	for i := range recs {
		rec := &recs[i]
		sites[i] = rec.Site
		for j := range samples {
			if rec.a1[j] < 0 || rec.a2[j] < 0 {
				return nil, nil, fmt.Errorf("reference %s:%d sample %s has a missing allele", rec.Chrom, rec.Pos, samples[j])
			}
			panel.Set(i, 2*j, uint8(rec.a1[j]))
			panel.Set(i, 2*j+1, uint8(rec.a2[j]))
		}
	}
	return panel, sites, nil
}

// alignTarget matches target records to reference sites by chrom+pos,
// producing the typed-row genotype matrix and the monotone typed-to-full
// row map. Target sites absent from the reference are dropped with a
// warning.
func alignTarget(refSites []Site, recs []vcfRecord, nsamples int) ([]int, *GenotypeMatrix, error) {
	type key struct {
		chrom string
		pos   int
	}
	index := make(map[key]int, len(refSites))
	for i, s := range refSites {
		index[key{s.Chrom, s.Pos}] = i
	}
	var typedToFull []int
	var kept []*vcfRecord
	prev := -1
	dropped := 0
	for i := range recs {
		rec := &recs[i]
		full, ok := index[key{rec.Chrom, rec.Pos}]
		if !ok {
			dropped++
			continue
		}
		if ref := refSites[full]; ref.Ref != rec.Ref || ref.Alt != rec.Alt {
			dropped++
			log.Warnf("allele mismatch at %s:%d (target %s/%s, reference %s/%s); dropping",
				rec.Chrom, rec.Pos, rec.Ref, rec.Alt, refSites[full].Ref, refSites[full].Alt)
			continue
		}
		if full <= prev {
			return nil, nil, fmt.Errorf("target markers out of order at %s:%d", rec.Chrom, rec.Pos)
		}
		prev = full
		typedToFull = append(typedToFull, full)
		kept = append(kept, rec)
	}
	if dropped > 0 {
		log.Warnf("dropped %d target markers not usable against the reference", dropped)
	}
	if len(kept) == 0 {
		return nil, nil, fmt.Errorf("no target markers match the reference panel")
	}
	x := NewGenotypeMatrix(len(kept), nsamples)
	for i, rec := range kept {
		for j := 0; j < nsamples; j++ {
			x.Set(i, j, rec.genotype(j))
		}
	}
	return typedToFull, x, nil
}

// writePhasedVCF renders the imputed result over the full reference
// marker set. Phased alleles use sep ('|' for phased output).
func writePhasedVCF(w io.Writer, samples []string, sites []Site, res *ImputeResult, sep byte) error {
	bufw := bufio.NewWriterSize(w, 1<<20)
	fmt.Fprintf(bufw, "##fileformat=VCFv4.2\n")
	fmt.Fprintf(bufw, "##INFO=<ID=IMPQ,Number=1,Type=Float,Description=\"Imputation quality (windowed pair-search residual)\">\n")
	fmt.Fprintf(bufw, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	fmt.Fprintf(bufw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, s := range samples {
		fmt.Fprintf(bufw, "\t%s", s)
	}
	fmt.Fprintf(bufw, "\n")
	if len(sites) != res.Rows {
		return fmt.Errorf("site metadata has %d rows, imputed result has %d", len(sites), res.Rows)
	}
	for row := 0; row < res.Rows; row++ {
		s := sites[row]
		id := s.ID
		if id == "" {
			id = "."
		}
		fmt.Fprintf(bufw, "%s\t%d\t%s\t%s\t%s\t.\tPASS\tIMPQ=%.4g\tGT", s.Chrom, s.Pos, id, s.Ref, s.Alt, res.Quality[row])
		for j := 0; j < res.Cols; j++ {
			fmt.Fprintf(bufw, "\t%d%c%d", res.A1[row*res.Cols+j], sep, res.A2[row*res.Cols+j])
		}
		fmt.Fprintf(bufw, "\n")
	}
	return bufw.Flush()
}

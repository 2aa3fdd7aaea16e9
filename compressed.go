// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// hapID is a 0-based complete-panel haplotype index.
type hapID int32

// uniqueID is a 0-based column index into one window's deduplicated
// haplotype matrix.
type uniqueID int32

const missingGenotype = int8(-1)

// GenotypeMatrix holds typed-marker genotypes, rows = markers, cols =
// samples, entries 0/1/2 or missingGenotype.
type GenotypeMatrix struct {
	Rows, Cols int
	Data       []int8 // row-major
}

func NewGenotypeMatrix(rows, cols int) *GenotypeMatrix {
	return &GenotypeMatrix{Rows: rows, Cols: cols, Data: make([]int8, rows*cols)}
}

func (g *GenotypeMatrix) At(row, col int) int8     { return g.Data[row*g.Cols+col] }
func (g *GenotypeMatrix) Set(row, col int, v int8) { g.Data[row*g.Cols+col] = v }
func (g *GenotypeMatrix) Row(row int) []int8       { return g.Data[row*g.Cols : (row+1)*g.Cols] }

// RefPanel is a phased reference panel, rows = markers, cols =
// haplotypes, entries 0/1.
type RefPanel struct {
	Rows, Cols int
	Data       []uint8 // row-major
}

func NewRefPanel(rows, cols int) *RefPanel {
	return &RefPanel{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

func (r *RefPanel) At(row, col int) uint8     { return r.Data[row*r.Cols+col] }
func (r *RefPanel) Set(row, col int, v uint8) { r.Data[row*r.Cols+col] = v }

// TypedSubset returns a new panel containing only the given rows, in
// order. typedToFull must be strictly increasing.
func (r *RefPanel) TypedSubset(typedToFull []int) (*RefPanel, error) {
	sub := NewRefPanel(len(typedToFull), r.Cols)
	prev := -1
	for i, row := range typedToFull {
		if row <= prev || row >= r.Rows {
			return nil, fmt.Errorf("typed-to-full map not strictly increasing within panel bounds at entry %d (row %d)", i, row)
		}
		prev = row
		copy(sub.Data[i*sub.Cols:(i+1)*sub.Cols], r.Data[row*r.Cols:(row+1)*r.Cols])
	}
	return sub, nil
}

// Site describes one reference marker.
type Site struct {
	Chrom string
	Pos   int
	ID    string
	Ref   string
	Alt   string
}

// CompressedWindow is one window's deduplicated haplotype dictionary.
type CompressedWindow struct {
	Start   int     // first typed row of the window
	Rows    int     // typed rows in the window
	NUnique int     // d_w
	Unique  []uint8 // Rows × NUnique row-major, entries 0/1

	// First[u] is the lowest complete index whose window pattern is
	// column u. Members lists equivalence classes with at least two
	// haplotypes, keyed by their First entry; singletons are absent.
	First   []hapID
	Members map[hapID][]hapID

	// ColOf[h] is the unique column of complete haplotype h.
	ColOf []uniqueID
}

// members returns the complete-panel equivalence class of unique column
// u, or nil plus the representative for singleton classes.
func (w *CompressedWindow) members(u uniqueID) (hapID, []hapID) {
	rep := w.First[u]
	return rep, w.Members[rep]
}

// CompressedHaplotypes is the read-only per-window dictionary the engine
// searches against.
type CompressedHaplotypes struct {
	TotalHaps int // D
	TypedRows int // P
	Width     int
	Windows   []CompressedWindow
	AltFreq   []float64 // per typed row, alt-allele frequency in the panel
}

func (ch *CompressedHaplotypes) NumWindows() int { return len(ch.Windows) }

// Allele returns the reference allele of complete haplotype h at typed
// row `row`, via the window dictionary.
func (ch *CompressedHaplotypes) Allele(row int, h hapID) uint8 {
	w := &ch.Windows[row/ch.Width]
	return w.Unique[(row-w.Start)*w.NUnique+int(w.ColOf[h])]
}

// BuildCompressed windows the typed rows of ref and deduplicates each
// window's haplotype patterns. Distinct patterns are detected by
// blake2b-256 of the column's window slice, the same trick the tile
// dictionary uses for sequence dedup.
func BuildCompressed(ref *RefPanel, width int) (*CompressedHaplotypes, error) {
	if width < 1 {
		return nil, fmt.Errorf("invalid window width %d", width)
	}
	if ref.Rows == 0 || ref.Cols == 0 {
		return nil, fmt.Errorf("empty reference panel (%d rows × %d haplotypes)", ref.Rows, ref.Cols)
	}
	nwin := (ref.Rows + width - 1) / width
	ch := &CompressedHaplotypes{
		TotalHaps: ref.Cols,
		TypedRows: ref.Rows,
		Width:     width,
		Windows:   make([]CompressedWindow, nwin),
		AltFreq:   make([]float64, ref.Rows),
	}
	for row := 0; row < ref.Rows; row++ {
		sum := 0
		for col := 0; col < ref.Cols; col++ {
			sum += int(ref.At(row, col))
		}
		ch.AltFreq[row] = float64(sum) / float64(ref.Cols)
	}
	pattern := make([]uint8, width)
	for wi := range ch.Windows {
		w := &ch.Windows[wi]
		w.Start = wi * width
		w.Rows = width
		if w.Start+w.Rows > ref.Rows {
			w.Rows = ref.Rows - w.Start
		}
		w.ColOf = make([]uniqueID, ref.Cols)
		seen := map[[blake2b.Size256]byte]uniqueID{}
		for h := 0; h < ref.Cols; h++ {
			for i := 0; i < w.Rows; i++ {
				pattern[i] = ref.At(w.Start+i, h)
			}
			hash := blake2b.Sum256(pattern[:w.Rows])
			u, ok := seen[hash]
			if !ok {
				u = uniqueID(w.NUnique)
				w.NUnique++
				seen[hash] = u
				w.First = append(w.First, hapID(h))
			} else {
				if w.Members == nil {
					w.Members = map[hapID][]hapID{}
				}
				rep := w.First[u]
				if len(w.Members[rep]) == 0 {
					w.Members[rep] = append(w.Members[rep], rep)
				}
				w.Members[rep] = append(w.Members[rep], hapID(h))
			}
			w.ColOf[h] = u
		}
		w.Unique = make([]uint8, w.Rows*w.NUnique)
		for h := 0; h < ref.Cols; h++ {
			u := int(w.ColOf[h])
			if int(w.First[u]) != h {
				continue
			}
			for i := 0; i < w.Rows; i++ {
				w.Unique[i*w.NUnique+u] = ref.At(w.Start+i, h)
			}
		}
	}
	log.Infof("BuildCompressed: %d typed rows, %d haplotypes, %d windows of width %d", ref.Rows, ref.Cols, nwin, width)
	return ch, nil
}

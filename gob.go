// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"bufio"
	"encoding/gob"
	"io"
	"io/ioutil"

	"github.com/klauspost/pgzip"
)

// RefLibraryEntry is one record of a compressed reference library
// stream. A library file is a gob stream of these, usually pgzip
// compressed; the first entry carries Meta, windows follow in order,
// and the raw panel (needed for imputing untyped rows) comes last.
type RefLibraryEntry struct {
	Meta    *RefLibraryMeta
	Windows []CompressedWindow
	AltFreq []float64
	Panel   *RefPanel
	Sites   []Site
}

type RefLibraryMeta struct {
	TotalHaps int
	TypedRows int
	Width     int
	FullRows  int
}

// WriteRefLibrary writes ch plus the raw panel and site metadata as a
// compressed library stream.
func WriteRefLibrary(w io.Writer, ch *CompressedHaplotypes, panel *RefPanel, sites []Site) error {
	bufw := bufio.NewWriterSize(w, 1<<24)
	zw := pgzip.NewWriter(bufw)
	enc := gob.NewEncoder(zw)
	err := enc.Encode(RefLibraryEntry{Meta: &RefLibraryMeta{
		TotalHaps: ch.TotalHaps,
		TypedRows: ch.TypedRows,
		Width:     ch.Width,
		FullRows:  panel.Rows,
	}})
	if err != nil {
		return err
	}
	// one entry per window keeps the peak decode allocation at one
	// window's dictionary
	for i := range ch.Windows {
		err = enc.Encode(RefLibraryEntry{Windows: ch.Windows[i : i+1]})
		if err != nil {
			return err
		}
	}
	err = enc.Encode(RefLibraryEntry{AltFreq: ch.AltFreq, Panel: panel, Sites: sites})
	if err != nil {
		return err
	}
	err = zw.Close()
	if err != nil {
		return err
	}
	return bufw.Flush()
}

// DecodeRefLibrary reads a library stream, calling cb for each entry.
func DecodeRefLibrary(rdr io.Reader, gz bool, cb func(*RefLibraryEntry) error) error {
	zrdr := ioutil.NopCloser(rdr)
	var err error
	if gz {
		zrdr, err = pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<20))
		if err != nil {
			return err
		}
	}
	dec := gob.NewDecoder(zrdr)
	for err == nil {
		var ent RefLibraryEntry
		err = dec.Decode(&ent)
		if err == nil {
			err = cb(&ent)
		}
	}
	if err != io.EOF {
		return err
	}
	return zrdr.Close()
}

// ReadRefLibrary reassembles a full library from a stream written by
// WriteRefLibrary.
func ReadRefLibrary(rdr io.Reader, gz bool) (*CompressedHaplotypes, *RefPanel, []Site, error) {
	var ch CompressedHaplotypes
	var panel *RefPanel
	var sites []Site
	err := DecodeRefLibrary(rdr, gz, func(ent *RefLibraryEntry) error {
		if ent.Meta != nil {
			ch.TotalHaps = ent.Meta.TotalHaps
			ch.TypedRows = ent.Meta.TypedRows
			ch.Width = ent.Meta.Width
		}
		ch.Windows = append(ch.Windows, ent.Windows...)
		if len(ent.AltFreq) > 0 {
			ch.AltFreq = ent.AltFreq
		}
		if ent.Panel != nil {
			panel = ent.Panel
		}
		if len(ent.Sites) > 0 {
			sites = ent.Sites
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return &ch, panel, sites, nil
}

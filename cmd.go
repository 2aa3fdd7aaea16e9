// Copyright (C) The Mosaic Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mosaic

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type commandHandler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

var handlers = map[string]commandHandler{
	"build-ref":    &buildRef{},
	"impute":       &imputer{},
	"export-numpy": &exportNumpy{},
	"pca":          &goPCA{},
	"stats":        &statsCmd{},
}

func init() {
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(30)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func usage(stderr io.Writer) {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(stderr, "usage: mosaic <command> [options]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(stderr, "  %s\n", name)
	}
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	handler, ok := handlers[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	os.Exit(handler.RunCommand("mosaic "+os.Args[1], os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
}

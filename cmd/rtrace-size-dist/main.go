// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/mmap"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation/index"
	"github.com/rtrace/timeline/cmd/internal/spinner"
)

var (
	outputFile string
	resource   string
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Utility that generates an allocation size\n")
		fmt.Fprintf(flag.CommandLine.Output(), "distribution from an sp-rtrace text trace.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&outputFile, "o", "./size.data", "location to write output file")
	flag.StringVar(&resource, "resource", "", "resource type to report (default the first declared)")
}

func checkFlags() error {
	if flag.NArg() != 1 {
		return errors.New("incorrect number of arguments")
	}
	return nil
}

func run() error {
	r, err := mmap.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to map trace: %v", err)
	}
	defer r.Close()
	fmt.Println("Generating parser...")
	p, err := timeline.NewParser(r)
	if err != nil {
		return fmt.Errorf("creating parser: %v", err)
	}

	var pMu sync.Mutex
	spinner.Start(func() float64 {
		pMu.Lock()
		prog := p.Progress()
		pMu.Unlock()
		return prog
	}, spinner.Format("Processing... %.1f%%"))
	tr, err := p.Parse()
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("parsing events: %v", err)
	}

	if resource == "" {
		names := tr.Resources()
		if len(names) == 0 {
			return errors.New("trace declares no resource types")
		}
		resource = names[0]
	}
	events, err := tr.Events(resource)
	if err != nil {
		return err
	}
	events = append([]timeline.Event(nil), events...)
	timeline.SortEvents(events)

	hist := NewSizeHist()
	live := index.New()
	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case timeline.EventAlloc:
			if live.Alloc(ev) {
				hist.Add(ev.Size)
			}
		case timeline.EventFree:
			if e, ok := live.Free(ev.ID); ok {
				hist.Free(e.Event.Size)
			}
		}
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating data file: %v", err)
	}
	defer out.Close()
	fmt.Fprintf(out, "# GeneratedFrom: %s\n", filepath.Base(flag.Arg(0)))
	fmt.Fprintf(out, "# Resource: %s\n", resource)
	fmt.Fprintf(out, "# Median: %d\n", hist.Median())
	fmt.Fprintf(out, "Size,Freed,Live\n")
	hist.ForEach(func(size uint64, b SizeBin) {
		fmt.Fprintf(out, "%d,%d,%d\n", size, b.Freed, b.Live)
	})

	fmt.Printf("Allocations: %s\n", humanize.Comma(int64(hist.Count())))
	fmt.Printf("Still live:  %s\n", humanize.Comma(int64(live.Len())))
	fmt.Printf("Median size: %s\n", humanize.IBytes(hist.Median()))
	return nil
}

func main() {
	flag.Parse()
	if err := checkFlags(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

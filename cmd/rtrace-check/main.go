// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/mmap"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/cmd/internal/spinner"
)

var printFlag *bool = flag.Bool("print", false, "print events in capture order")

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Utility that sanity-checks sp-rtrace text traces\n")
		fmt.Fprintf(flag.CommandLine.Output(), "and prints some statistics.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func handleError(err error, usage bool) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if usage {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(2)
}

// problem is an event the plain identifier view cannot account for.
type problem struct {
	ev  timeline.Event
	msg string
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		handleError(errors.New("incorrect number of arguments"), true)
	}
	r, err := mmap.Open(flag.Arg(0))
	if err != nil {
		handleError(fmt.Errorf("failed to map trace: %v", err), false)
	}
	defer r.Close()
	fmt.Println("Generating parser...")
	p, err := timeline.NewParser(r)
	if err != nil {
		handleError(fmt.Errorf("creating parser: %v", err), false)
	}
	fmt.Println("Parsing events...")

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
		handleError(fmt.Errorf("parsing events: %v", err), false)
	}
	tr.Sort()

	const maxErrors = 20
	var problems []problem
	total := 0
	for _, res := range tr.Resources() {
		events, err := tr.Events(res)
		if err != nil {
			handleError(err, false)
		}
		// Identifiers live without reference counting.
		live := make(map[string]bool)
		allocs, frees := 0, 0
		for _, ev := range events {
			if *printFlag {
				printEvent(&ev)
			}
			switch ev.Kind {
			case timeline.EventAlloc:
				if live[ev.ID] {
					problems = append(problems, problem{ev, "allocated over live identifier"})
					total++
				}
				live[ev.ID] = true
				allocs++
			case timeline.EventFree:
				if !live[ev.ID] {
					problems = append(problems, problem{ev, "freed unknown identifier"})
					total++
				}
				delete(live, ev.ID)
				frees++
			}
		}
		fmt.Printf("%s:\n", res)
		fmt.Printf("  Allocs: %s\n", humanize.Comma(int64(allocs)))
		fmt.Printf("  Frees:  %s\n", humanize.Comma(int64(frees)))
		fmt.Printf("  Live:   %s\n", humanize.Comma(int64(len(live))))
	}
	fmt.Printf("Contexts: %d\n", len(tr.Contexts()))
	fmt.Printf("Start:    %s\n", timeline.FormatTimestamp(tr.Offset))
	fmt.Printf("Length:   %s\n", timeline.FormatOffset(tr.LastTimestamp()))

	if total != 0 {
		fmt.Fprintf(os.Stderr, "found %d irregularities in trace:\n", total)
		for i, pr := range problems {
			if i == maxErrors {
				fmt.Fprintf(os.Stderr, "  ... and %d more\n", total-maxErrors)
				break
			}
			fmt.Fprintf(os.Stderr, "  #%d [%s] %s %s %s\n", pr.ev.Sequence, timeline.FormatTimestamp(pr.ev.Timestamp), pr.ev.Resource, pr.msg, pr.ev.ID)
		}
	}
}

func printEvent(ev *timeline.Event) {
	switch ev.Kind {
	case timeline.EventAlloc:
		fmt.Printf("#%d [%s] @%x alloc<%s>(%d) = %s\n", ev.Sequence, timeline.FormatTimestamp(ev.Timestamp), ev.Context, ev.Resource, ev.Size, ev.ID)
	case timeline.EventFree:
		fmt.Printf("#%d [%s] @%x free<%s>(%s)\n", ev.Sequence, timeline.FormatTimestamp(ev.Timestamp), ev.Context, ev.Resource, ev.ID)
	}
}

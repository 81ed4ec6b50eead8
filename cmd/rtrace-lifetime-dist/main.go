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

	"go.uber.org/zap"
	"golang.org/x/exp/mmap"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/cmd/internal/spinner"
	"github.com/rtrace/timeline/engine"
)

var (
	outputFile string
	bucket     int64
	resource   string
	verbose    bool
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Utility that generates an allocation lifetime\n")
		fmt.Fprintf(flag.CommandLine.Output(), "distribution from an sp-rtrace text trace.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&outputFile, "o", "./lifetime.csv", "location to write output file")
	flag.Int64Var(&bucket, "bucket", 100, "bucket width in milliseconds")
	flag.StringVar(&resource, "resource", "", "only report the named resource type")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
}

func checkFlags() error {
	if flag.NArg() != 1 {
		return errors.New("incorrect number of arguments")
	}
	if bucket < 1 {
		return errors.New("bucket width must be positive")
	}
	return nil
}

func run() error {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	log, err := zc.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer log.Sync()

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

	opts := engine.DefaultOptions()
	opts.Mode = aggregation.ModeLifetime
	opts.Resource = resource
	// Pages are consumed here, not rendered.
	opts.PageLimit = 0
	rep, err := engine.Run(tr, opts, log)
	if err != nil {
		return err
	}

	closed, open := NewDurationHist(bucket), NewDurationHist(bucket)
	for _, pg := range rep.Pages {
		for _, iv := range pg.Intervals {
			if iv.Open {
				open.Add(iv.End - iv.Start)
			} else {
				closed.Add(iv.End - iv.Start)
			}
		}
	}

	fmt.Println("Writing distribution...")
	f, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "# GeneratedFrom: %s\n", filepath.Base(flag.Arg(0)))
	fmt.Fprintf(f, "# BucketWidth: %d\n", bucket)
	fmt.Fprintf(f, "Bucket,Freed,Live\n")
	n := closed.Len()
	if open.Len() > n {
		n = open.Len()
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(f, "%s,%d,%d\n", timeline.FormatOffset(int64(i)*bucket), closed.Bucket(i), open.Bucket(i))
	}
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

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/mmap"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/cmd/internal/spinner"
	"github.com/rtrace/timeline/config"
	"github.com/rtrace/timeline/engine"
)

// sizeFlags collects repeated -size arguments.
type sizeFlags []string

func (s *sizeFlags) String() string {
	return strings.Join(*s, " ")
}

func (s *sizeFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var (
	configFile   string
	outputDir    string
	modeFlag     string
	sliceFlag    string
	timeFlag     string
	indexFlag    string
	contextFlag  string
	resourceFlag string
	pageCapacity int
	pageLimit    int
	verbose      bool
	sizes        sizeFlags

	cfg *config.Config
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Utility that generates totals, activity or lifetime\n")
		fmt.Fprintf(flag.CommandLine.Output(), "reports from an sp-rtrace text trace.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&configFile, "c", "", "TOML configuration file; flags override its values")
	flag.StringVar(&outputDir, "o", ".", "directory to write data files to")
	flag.StringVar(&modeFlag, "mode", "", "report mode: totals, activity or lifetime")
	flag.StringVar(&sliceFlag, "slice", "", "activity window width, in milliseconds or as a duration (default trace length/100)")
	flag.StringVar(&timeFlag, "time", "", "time filter [start],[end]; negative bounds count back from the end of the trace")
	flag.StringVar(&indexFlag, "index", "", "event index filter [min]-[max] (k and m suffixes)")
	flag.StringVar(&contextFlag, "context", "", "hexadecimal context mask filter")
	flag.StringVar(&resourceFlag, "resource", "", "only report the named resource type")
	flag.IntVar(&pageCapacity, "page-capacity", 0, "lifetime intervals per page")
	flag.IntVar(&pageLimit, "page-limit", 0, "lifetime page count above which a warning is issued")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Var(&sizes, "size", "size filter [min]-[max] (k and m suffixes); may be repeated")
}

// checkFlags loads the configuration and applies the flags set on the
// command line over it.
func checkFlags() error {
	if flag.NArg() != 1 {
		return errors.New("incorrect number of arguments")
	}
	var err error
	if configFile != "" {
		if cfg, err = config.ReadConfig(configFile); err != nil {
			return fmt.Errorf("reading configuration: %v", err)
		}
	} else {
		cfg = config.Default()
	}

	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "mode":
			err = cfg.Mode.UnmarshalText([]byte(modeFlag))
		case "slice":
			err = cfg.Slice.UnmarshalText([]byte(sliceFlag))
		case "time":
			err = cfg.TimeFilter.UnmarshalText([]byte(timeFlag))
		case "index":
			err = cfg.IndexFilter.UnmarshalText([]byte(indexFlag))
		case "context":
			err = cfg.ContextFilter.UnmarshalText([]byte(contextFlag))
		case "resource":
			cfg.Resource = resourceFlag
		case "page-capacity":
			cfg.PageCapacity = pageCapacity
		case "page-limit":
			cfg.PageLimit = pageLimit
		case "size":
			cfg.SizeFilters = cfg.SizeFilters[:0]
			for _, s := range sizes {
				var r config.SizeRange
				if err = r.UnmarshalText([]byte(s)); err != nil {
					return
				}
				cfg.SizeFilters = append(cfg.SizeFilters, r)
			}
		}
		if err != nil {
			err = fmt.Errorf("-%s: %v", f.Name, err)
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func newLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	return zc.Build()
}

func run() error {
	log, err := newLogger()
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
	}, spinner.Format("Parsing... %.1f%%"))
	tr, err := p.Parse()
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("parsing trace: %v", err)
	}
	log.Debug("trace parsed",
		zap.Int("events", tr.Len()),
		zap.Strings("resources", tr.Resources()),
		zap.Int("contexts", len(tr.Contexts())))

	opts := cfg.Options()
	rep, err := engine.Run(tr, opts, log)
	if err != nil {
		return err
	}
	if rep.Empty {
		fmt.Println("No events in range.")
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %v", err)
	}
	files, err := writeReport(outputDir, rep)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, tr, rep)
	fmt.Printf("Wrote %d data files to %s\n", files, outputDir)
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

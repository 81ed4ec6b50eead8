// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/activity"
	"github.com/rtrace/timeline/aggregation/lifetime"
	"github.com/rtrace/timeline/aggregation/totals"
)

// seriesFile returns the data file name of a series.
func seriesFile(s *aggregation.Series) string {
	name := fmt.Sprintf("%s-%08x-%s.dat", s.Resource, s.Context.Mask, s.Name)
	return strings.ReplaceAll(name, " ", "_")
}

// writeReport writes one data file per series and per lifetime page
// into dir. Returns the number of files written.
func writeReport(dir string, rep *aggregation.Report) (int, error) {
	n := 0
	for _, s := range rep.Series {
		err := writeFile(filepath.Join(dir, seriesFile(s)), func(w io.Writer) {
			fmt.Fprintf(w, "# %s %s (%s)\n", s.Resource, s.Name, s.Context.Name)
			fmt.Fprintf(w, "# max %d\n", s.Max())
			for _, p := range s.Points {
				fmt.Fprintf(w, "%d %d\n", p.Timestamp, p.Value)
			}
		})
		if err != nil {
			return n, err
		}
		n++
	}
	for i, pg := range rep.Pages {
		err := writeFile(filepath.Join(dir, fmt.Sprintf("lifetime-%04d.dat", i)), func(w io.Writer) {
			fmt.Fprintf(w, "# resource id context start end size open\n")
			for _, iv := range pg.Intervals {
				fmt.Fprintf(w, "%s %s %08x %d %d %d %t\n", iv.Resource, iv.ID, iv.Context, iv.Start, iv.End, iv.Size, iv.Open)
			}
		})
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeFile(path string, f func(w io.Writer)) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating data file: %v", err)
	}
	w := bufio.NewWriter(out)
	f(w)
	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %v", path, err)
	}
	return out.Close()
}

func usage(u totals.Usage) string {
	return fmt.Sprintf("%s allocs, %s", humanize.Comma(int64(u.Count)), humanize.IBytes(u.Size))
}

func peak(p aggregation.Peak, offset int64) string {
	return fmt.Sprintf("%s allocs, %s at %s", humanize.Comma(int64(p.Count)), humanize.IBytes(p.Size), timeline.FormatTimestamp(offset+p.Timestamp))
}

// printSummary writes the per-resource statistics of a report. Peak
// instants are printed as wall-clock times, shifted by the trace start.
func printSummary(w io.Writer, tr *timeline.Trace, rep *aggregation.Report) {
	at := func(ts int64) string { return timeline.FormatTimestamp(tr.Offset + ts) }
	fmt.Fprintf(w, "%s report, trace start %s, %s events\n",
		rep.Mode, timeline.FormatTimestamp(tr.Offset), humanize.Comma(int64(tr.Len())))
	fmt.Fprintf(w, "Range: %s .. %s\n", timeline.FormatOffset(rep.Range.XMin), timeline.FormatOffset(rep.Range.XMax))
	if rep.Mode == aggregation.ModeActivity {
		fmt.Fprintf(w, "Slice: %s\n", timeline.FormatOffset(rep.Slice))
	}
	for _, s := range rep.Summaries {
		fmt.Fprintf(w, "%s:\n", s.ResourceName())
		switch s := s.(type) {
		case *totals.Summary:
			fmt.Fprintf(w, "  end totals:  %s\n", usage(s.EndTotals))
			fmt.Fprintf(w, "  end leaks:   %s\n", usage(s.EndLeaks))
			fmt.Fprintf(w, "  peak leaks:  %s at %s\n", usage(s.PeakLeaks), at(s.PeakTimestamp))
			fmt.Fprintf(w, "  peak totals: %s\n", usage(s.PeakTotals))
		case *activity.Summary:
			fmt.Fprintf(w, "  peak size:   %s\n", peak(s.PeakSize, tr.Offset))
			fmt.Fprintf(w, "  peak allocs: %s\n", peak(s.PeakAllocs, tr.Offset))
			fmt.Fprintf(w, "  peak frees:  %s frees at %s\n", humanize.Comma(int64(s.PeakFrees.Count)), at(s.PeakFrees.Timestamp))
		case *lifetime.Summary:
			fmt.Fprintf(w, "  allocs:  %s (%d freed, %d live)\n", humanize.Comma(int64(s.Allocs)), s.Closed, s.Open)
			fmt.Fprintf(w, "  min:     %s x%d, first at %s\n", humanize.IBytes(s.Min.Size), s.Min.Count, at(s.Min.Timestamp))
			fmt.Fprintf(w, "  max:     %s x%d, first at %s\n", humanize.IBytes(s.Max.Size), s.Max.Count, at(s.Max.Timestamp))
			fmt.Fprintf(w, "  average: %s\n", humanize.IBytes(s.Average))
			fmt.Fprintf(w, "  median:  %s\n", humanize.IBytes(s.Median))
		}
	}
	if rep.PageLimitExceeded {
		fmt.Fprintf(w, "warning: %d lifetime pages, rendering may be slow\n", len(rep.Pages))
	}
}

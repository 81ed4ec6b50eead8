// Package aggregation defines the contract shared by the report
// aggregators and the numeric series and summaries they produce for
// a renderer.
package aggregation

import (
	"fmt"
	"strings"

	"github.com/rtrace/timeline"
)

// Mode selects the report an engine run produces.
type Mode uint8

const (
	ModeBad Mode = iota
	ModeTotals
	ModeActivity
	ModeLifetime
)

func (m Mode) String() string {
	switch m {
	case ModeTotals:
		return "totals"
	case ModeActivity:
		return "activity"
	case ModeLifetime:
		return "lifetime"
	}
	return "bad"
}

// ParseMode parses a report mode name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "totals", "t":
		return ModeTotals, nil
	case "activity", "a":
		return ModeActivity, nil
	case "lifetime", "l":
		return ModeLifetime, nil
	}
	return ModeBad, fmt.Errorf("invalid report mode %q (valid modes: totals, activity, lifetime)", name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMode(string(text))
	return err
}

// Resource is the input of one resource type: its filtered events
// in capture order.
type Resource struct {
	Name string

	// Overhead is the bookkeeping cost, in bytes, of every live
	// allocation of this resource type. Zero if not tracked.
	Overhead uint64

	Events []timeline.Event
}

// Input is what every aggregator consumes.
type Input struct {
	Resources []Resource

	// Contexts are the contexts series are sliced by. The first
	// entry is always the "all" pseudo-context.
	Contexts []timeline.Context

	// End is the last timestamp of the unfiltered trace.
	End int64
}

// Point is one series sample.
type Point struct {
	Timestamp int64
	Value     uint64
}

// Series is a sequence of samples, non-decreasing in timestamp, for
// one resource type and context.
type Series struct {
	Resource string
	Context  timeline.Context
	Name     string
	Points   []Point
}

// NewSeries creates an empty series.
func NewSeries(resource string, ctx timeline.Context, name string) *Series {
	return &Series{Resource: resource, Context: ctx, Name: name}
}

// Add appends a sample to the series.
func (s *Series) Add(ts int64, v uint64) {
	s.Points = append(s.Points, Point{Timestamp: ts, Value: v})
}

// Max returns the largest sample value.
func (s *Series) Max() uint64 {
	m := uint64(0)
	for _, p := range s.Points {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}

// Peak is the maximum observed value of a metric and the instant it
// was first reached.
type Peak struct {
	Timestamp int64
	Count     uint64
	Size      uint64
}

// Interval is the lifetime of one resource.
type Interval struct {
	Resource string
	ID       string
	Context  uint32
	Start    int64
	End      int64
	Size     uint64

	// Open is set when the resource was still live at the end of the
	// trace; End is then the trace's last timestamp.
	Open bool
}

// Page is a bounded collection of lifetime intervals.
type Page struct {
	Intervals []Interval
}

// Range is the extent of a report's data.
type Range struct {
	XMin, XMax int64
	YMax       uint64
	Y2Max      uint64
}

// Summary is the per-resource statistics of a report. The concrete
// type depends on the report mode.
type Summary interface {
	ResourceName() string
}

// Report is the output of one aggregator run.
type Report struct {
	Mode   Mode
	Series []*Series
	Range  Range

	// Summaries holds one entry per resource type, in input order.
	Summaries []Summary

	// Slice is the activity window width in milliseconds.
	Slice int64

	// Pages and PageLimitExceeded are set by lifetime reports.
	Pages             []*Page
	PageLimitExceeded bool

	// Empty is set when no event passed the filters.
	Empty bool
}

// Aggregator describes a report producer.
type Aggregator interface {
	// Mode returns the report mode the aggregator implements.
	Mode() Mode

	// Aggregate consumes the input in a single pass and produces
	// its report. Input events must be sorted with
	// timeline.SortEvents. Aggregate must not retain or modify the
	// input.
	Aggregate(in *Input) (*Report, error)
}

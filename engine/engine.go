// Package engine runs a report over a captured trace: it resolves and
// applies the filters, orders the events of every resource type and
// hands them to the aggregator of the selected report mode.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/activity"
	"github.com/rtrace/timeline/aggregation/lifetime"
	"github.com/rtrace/timeline/aggregation/totals"
	"github.com/rtrace/timeline/filter"
)

// ErrNoAggregator is returned for report modes without an aggregator.
var ErrNoAggregator = errors.New("no aggregator for report mode")

// DefaultOverhead is the per-allocation bookkeeping cost of the
// resource types known to have one.
var DefaultOverhead = map[string]uint64{
	"memory": 8,
}

// Options is the configuration surface of a run.
type Options struct {
	Mode aggregation.Mode

	// Slice is the activity window width in milliseconds. Zero
	// selects one from the trace duration.
	Slice int64

	SizeFilters   []filter.SizeRange
	TimeFilter    *filter.TimeRange
	IndexFilter   *filter.IndexRange
	ContextFilter *filter.ContextMask

	// Resource restricts the report to a single resource type.
	Resource string

	// PageCapacity and PageLimit control lifetime paging.
	PageCapacity int
	PageLimit    int

	// Overhead maps resource types to their per-allocation
	// overhead in bytes.
	Overhead map[string]uint64
}

// DefaultOptions returns options for a totals report with default
// paging and overheads.
func DefaultOptions() *Options {
	o := &Options{
		Mode:         aggregation.ModeTotals,
		PageCapacity: lifetime.DefaultPageCapacity,
		PageLimit:    lifetime.DefaultPageLimit,
		Overhead:     make(map[string]uint64, len(DefaultOverhead)),
	}
	for k, v := range DefaultOverhead {
		o.Overhead[k] = v
	}
	return o
}

// NewAggregator returns the aggregator of the configured report mode.
func NewAggregator(o *Options) (aggregation.Aggregator, error) {
	switch o.Mode {
	case aggregation.ModeTotals:
		return totals.New(), nil
	case aggregation.ModeActivity:
		return activity.New(o.Slice), nil
	case aggregation.ModeLifetime:
		return &lifetime.Aggregator{PageCapacity: o.PageCapacity, PageLimit: o.PageLimit}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNoAggregator, o.Mode)
}

// Filters builds the filter chain for a trace whose last timestamp is
// last. End-relative time bounds are resolved against last.
func (o *Options) Filters(last int64) filter.Chain {
	var chain filter.Chain
	if o.Resource != "" {
		chain = append(chain, filter.Resource(o.Resource))
	}
	if o.IndexFilter != nil {
		chain = append(chain, *o.IndexFilter)
	}
	if o.ContextFilter != nil {
		chain = append(chain, *o.ContextFilter)
	}
	for _, r := range o.SizeFilters {
		chain = append(chain, r)
	}
	if o.TimeFilter != nil {
		chain = append(chain, o.TimeFilter.Resolve(last))
	}
	return chain
}

// Run produces the report configured by o over t.
//
// A trace with no events left after filtering yields a report with
// Empty set and a nil error. A lifetime report above its page limit is
// returned with PageLimitExceeded set and a warning logged.
func Run(t *timeline.Trace, o *Options, log *zap.Logger) (*aggregation.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run", xid.New().String()), zap.Stringer("mode", o.Mode))

	agg, err := NewAggregator(o)
	if err != nil {
		return nil, err
	}
	in, err := Prepare(t, o, log)
	if err != nil {
		return nil, err
	}
	n := 0
	for i := range in.Resources {
		n += len(in.Resources[i].Events)
	}
	if n == 0 {
		log.Info("no events in range")
		return &aggregation.Report{Mode: o.Mode, Empty: true}, nil
	}

	rep, err := agg.Aggregate(in)
	if err != nil {
		return nil, fmt.Errorf("%v report: %w", o.Mode, err)
	}
	if rep.PageLimitExceeded {
		log.Warn("lifetime report exceeds page limit, output may be degraded",
			zap.Int("pages", len(rep.Pages)),
			zap.Int("limit", o.PageLimit))
	}
	log.Info("report generated",
		zap.Int("events", n),
		zap.Int("series", len(rep.Series)),
		zap.Int("pages", len(rep.Pages)))
	return rep, nil
}

// Prepare validates, filters and orders the events of t into an
// aggregator input. The trace is not modified.
func Prepare(t *timeline.Trace, o *Options, log *zap.Logger) (*aggregation.Input, error) {
	if log == nil {
		log = zap.NewNop()
	}
	names := t.Resources()
	declared := make(map[string]bool, len(names))
	for _, name := range names {
		declared[name] = true
	}
	if o.Resource != "" {
		if !declared[o.Resource] {
			return nil, fmt.Errorf("resource filter: %w: %q", timeline.ErrUnknownResource, o.Resource)
		}
		names = []string{o.Resource}
	}

	last := t.LastTimestamp()
	chain := o.Filters(last)
	in := &aggregation.Input{Contexts: t.ReportContexts(), End: last}
	for _, name := range names {
		events, err := t.Events(name)
		if err != nil {
			return nil, err
		}
		for i := range events {
			if !declared[events[i].Resource] {
				return nil, fmt.Errorf("event %d: %w: %q", events[i].Sequence, timeline.ErrUnknownResource, events[i].Resource)
			}
		}
		filtered := chain.Apply(events)
		timeline.SortEvents(filtered)
		log.Debug("resource prepared",
			zap.String("resource", name),
			zap.Int("events", len(events)),
			zap.Int("filtered", len(filtered)))
		in.Resources = append(in.Resources, aggregation.Resource{
			Name:     name,
			Overhead: o.Overhead[name],
			Events:   filtered,
		})
	}
	return in, nil
}

// Package totals implements the totals report: the running size of
// live allocations over time, per context, with end-of-trace and peak
// leak statistics.
package totals

import (
	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/index"
)

// Usage is an allocation count and the sum of their sizes.
type Usage struct {
	Count uint64
	Size  uint64
}

func (u *Usage) add(size uint64) {
	u.Count++
	u.Size += size
}

func (u *Usage) remove(size uint64) {
	u.Count--
	u.Size -= size
}

// Summary holds the statistics of one resource type, computed over
// all contexts.
type Summary struct {
	Resource string

	// EndTotals counts every allocation that made a resource live.
	EndTotals Usage

	// EndLeaks counts the allocations still live at the end of the
	// trace.
	EndLeaks Usage

	// PeakLeaks is the highest live size observed, and PeakTotals
	// the value of EndTotals at that instant.
	PeakLeaks     Usage
	PeakTotals    Usage
	PeakTimestamp int64
}

// ResourceName implements aggregation.Summary.
func (s *Summary) ResourceName() string {
	return s.Resource
}

// Aggregator produces totals reports.
type Aggregator struct{}

// New returns a totals Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Mode implements aggregation.Aggregator.
func (*Aggregator) Mode() aggregation.Mode {
	return aggregation.ModeTotals
}

// Aggregate implements aggregation.Aggregator.
//
// Every context is a separate pass over the events of a resource type
// with its own live index, so a resource freed in a context other than
// the one it was allocated in stays live in the allocating context.
func (a *Aggregator) Aggregate(in *aggregation.Input) (*aggregation.Report, error) {
	rep := &aggregation.Report{Mode: aggregation.ModeTotals}
	rep.Range.XMin = -1
	names := make([]string, len(in.Resources))
	for i := range in.Resources {
		names[i] = in.Resources[i].Name
	}
	for _, ctx := range in.Contexts {
		set := index.NewSet(names)
		for i := range in.Resources {
			res := &in.Resources[i]
			var stats *Summary
			if ctx.IsAll() {
				stats = &Summary{Resource: res.Name}
			}
			series, err := a.pass(rep, set, res, ctx, stats)
			if err != nil {
				return nil, err
			}
			rep.Series = append(rep.Series, series...)
			if stats != nil {
				rep.Summaries = append(rep.Summaries, stats)
			}
		}
	}
	if rep.Range.XMin < 0 {
		rep.Range.XMin = 0
	}
	return rep, nil
}

// pass walks the events of one resource type in one context. Summary
// statistics and the auxiliary series are only collected when stats
// is non-nil, which is the case for the "all" context.
func (a *Aggregator) pass(rep *aggregation.Report, set *index.Set, res *aggregation.Resource, ctx timeline.Context, stats *Summary) ([]*aggregation.Series, error) {
	totals := aggregation.NewSeries(res.Name, ctx, "totals")
	var allocs, overhead *aggregation.Series
	if stats != nil {
		allocs = aggregation.NewSeries(res.Name, ctx, "total allocs")
		if res.Overhead != 0 {
			overhead = aggregation.NewSeries(res.Name, ctx, "overhead")
		}
	}

	var total, live uint64
	for i := range res.Events {
		ev := &res.Events[i]
		if !ev.Matches(ctx) {
			continue
		}
		x, err := set.For(ev.Resource)
		if err != nil {
			return nil, err
		}
		var size uint64
		switch ev.Kind {
		case timeline.EventAlloc:
			if !x.Alloc(ev) {
				continue
			}
			size = ev.Size
			total += size
			live++
			if stats != nil {
				stats.EndTotals.add(size)
				stats.EndLeaks.add(size)
				if stats.EndLeaks.Size > stats.PeakLeaks.Size {
					stats.PeakLeaks = stats.EndLeaks
					stats.PeakTotals = stats.EndTotals
					stats.PeakTimestamp = ev.Timestamp
				}
				allocs.Add(ev.Timestamp, stats.EndTotals.Count)
				if stats.EndTotals.Count > rep.Range.Y2Max {
					rep.Range.Y2Max = stats.EndTotals.Count
				}
			}
		case timeline.EventFree:
			e, ok := x.Free(ev.ID)
			if !ok {
				continue
			}
			size = e.Event.Size
			total -= size
			live--
			if stats != nil {
				stats.EndLeaks.remove(size)
			}
		default:
			continue
		}
		if overhead != nil {
			v := total + live*res.Overhead
			overhead.Add(ev.Timestamp, v)
			if v > rep.Range.YMax {
				rep.Range.YMax = v
			}
		}
		if size == 0 {
			continue
		}
		totals.Add(ev.Timestamp, total)
		if total > rep.Range.YMax {
			rep.Range.YMax = total
		}
		if rep.Range.XMin < 0 || ev.Timestamp < rep.Range.XMin {
			rep.Range.XMin = ev.Timestamp
		}
		if ev.Timestamp > rep.Range.XMax {
			rep.Range.XMax = ev.Timestamp
		}
	}

	var out []*aggregation.Series
	for _, s := range []*aggregation.Series{totals, allocs, overhead} {
		if s != nil && len(s.Points) != 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

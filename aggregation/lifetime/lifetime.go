// Package lifetime implements the lifetime report: the interval each
// resource stayed live, from its allocation to its final release.
package lifetime

import (
	"golang.org/x/exp/slices"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/index"
)

const (
	// DefaultPageCapacity is the number of intervals per page.
	DefaultPageCapacity = 1000

	// DefaultPageLimit is the number of pages above which a report
	// is flagged as degraded.
	DefaultPageLimit = 100
)

// SizeStat is an extreme allocation size, how many allocations had
// it, and when it was first seen.
type SizeStat struct {
	Size      uint64
	Count     uint64
	Timestamp int64
}

// Summary holds the allocation size statistics of one resource type.
type Summary struct {
	Resource string

	// Allocs is the number of allocations that made a resource live.
	Allocs uint64

	Min, Max SizeStat
	Average  uint64
	Median   uint64

	// Closed and Open count the intervals ended by a release and by
	// the end of the trace.
	Closed, Open int
}

// ResourceName implements aggregation.Summary.
func (s *Summary) ResourceName() string {
	return s.Resource
}

func (s *Summary) add(ev *timeline.Event) {
	if s.Allocs == 0 || ev.Size < s.Min.Size {
		s.Min = SizeStat{Size: ev.Size, Timestamp: ev.Timestamp}
	}
	if ev.Size == s.Min.Size {
		s.Min.Count++
	}
	if s.Allocs == 0 || ev.Size > s.Max.Size {
		s.Max = SizeStat{Size: ev.Size, Timestamp: ev.Timestamp}
	}
	if ev.Size == s.Max.Size {
		s.Max.Count++
	}
	s.Allocs++
}

// finish computes the average and median of sizes. sizes is sorted
// in place.
func (s *Summary) finish(sizes []uint64) {
	n := len(sizes)
	if n == 0 {
		return
	}
	var total uint64
	for _, sz := range sizes {
		total += sz
	}
	s.Average = total / uint64(n)
	slices.Sort(sizes)
	if n%2 == 1 {
		s.Median = sizes[n/2]
	} else {
		s.Median = (sizes[n/2-1] + sizes[n/2]) / 2
	}
}

// Aggregator produces lifetime reports.
type Aggregator struct {
	// PageCapacity is the number of intervals per page.
	PageCapacity int

	// PageLimit is the number of pages a report may have before it
	// is flagged with PageLimitExceeded. Zero or less disables the
	// check.
	PageLimit int
}

// New returns a lifetime Aggregator with the default paging.
func New() *Aggregator {
	return &Aggregator{PageCapacity: DefaultPageCapacity, PageLimit: DefaultPageLimit}
}

// Mode implements aggregation.Aggregator.
func (*Aggregator) Mode() aggregation.Mode {
	return aggregation.ModeLifetime
}

// Aggregate implements aggregation.Aggregator.
//
// Resources still live at the end of the input produce one open
// interval each, ending at the input's end timestamp.
func (a *Aggregator) Aggregate(in *aggregation.Input) (*aggregation.Report, error) {
	rep := &aggregation.Report{Mode: aggregation.ModeLifetime}
	rep.Range.XMin = -1
	names := make([]string, len(in.Resources))
	for i := range in.Resources {
		names[i] = in.Resources[i].Name
	}
	set := index.NewSet(names)
	p := newPager(a.PageCapacity)

	for i := range in.Resources {
		res := &in.Resources[i]
		stats := &Summary{Resource: res.Name}
		var sizes []uint64
		for j := range res.Events {
			ev := &res.Events[j]
			x, err := set.For(ev.Resource)
			if err != nil {
				return nil, err
			}
			switch ev.Kind {
			case timeline.EventAlloc:
				if !x.Alloc(ev) {
					continue
				}
				stats.add(ev)
				sizes = append(sizes, ev.Size)
				if rep.Range.XMin < 0 || ev.Timestamp < rep.Range.XMin {
					rep.Range.XMin = ev.Timestamp
				}
				if ev.Size > rep.Range.YMax {
					rep.Range.YMax = ev.Size
				}
			case timeline.EventFree:
				e, ok := x.Free(ev.ID)
				if !ok {
					continue
				}
				end := ev.Timestamp
				if end < e.Event.Timestamp {
					// Capture order disagrees with the clock.
					end = e.Event.Timestamp
				}
				p.add(interval(&e.Event, end, false))
				stats.Closed++
			}
		}
		x, err := set.For(res.Name)
		if err != nil {
			return nil, err
		}
		for _, e := range x.Live() {
			end := in.End
			if end < e.Event.Timestamp {
				end = e.Event.Timestamp
			}
			p.add(interval(&e.Event, end, true))
			stats.Open++
		}
		stats.finish(sizes)
		rep.Summaries = append(rep.Summaries, stats)
	}

	rep.Pages = p.pages
	rep.PageLimitExceeded = a.PageLimit > 0 && len(p.pages) > a.PageLimit
	if rep.Range.XMin < 0 {
		rep.Range.XMin = 0
	}
	rep.Range.XMax = in.End
	if rep.Range.XMax <= rep.Range.XMin {
		rep.Range.XMax = rep.Range.XMin + 1
	}
	return rep, nil
}

func interval(alloc *timeline.Event, end int64, open bool) aggregation.Interval {
	return aggregation.Interval{
		Resource: alloc.Resource,
		ID:       alloc.ID,
		Context:  alloc.Context,
		Start:    alloc.Timestamp,
		End:      end,
		Size:     alloc.Size,
		Open:     open,
	}
}

// Package activity implements the activity report: allocation and
// deallocation rates measured over a sliding time window.
package activity

import (
	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/index"
)

// sliceDivisor is the number of windows the trace is divided into when
// no window width is configured.
const sliceDivisor = 100

// SliceWidth returns the window width for a trace ending at end. A
// non-positive slice selects end/100. The result is at least one.
func SliceWidth(slice, end int64) int64 {
	if slice <= 0 {
		slice = end / sliceDivisor
	}
	if slice < 1 {
		slice = 1
	}
	return slice
}

// SliceStep returns the sampling step for a window width: half the
// width, at least one.
func SliceStep(slice int64) int64 {
	if step := slice / 2; step > 0 {
		return step
	}
	return 1
}

// Summary holds the activity peaks of one resource type over all
// contexts. The three peaks are tracked independently and may occur
// at different instants.
type Summary struct {
	Resource string

	// PeakSize is the largest allocated size within a window.
	PeakSize aggregation.Peak

	// PeakAllocs is the largest allocation count within a window.
	PeakAllocs aggregation.Peak

	// PeakFrees is the largest deallocation count within a window.
	// Its Count field is the free count.
	PeakFrees aggregation.Peak
}

// ResourceName implements aggregation.Summary.
func (s *Summary) ResourceName() string {
	return s.Resource
}

func (s *Summary) update(w *window, ts int64) {
	if w.size > s.PeakSize.Size {
		s.PeakSize = aggregation.Peak{Timestamp: ts, Count: w.allocs, Size: w.size}
	}
	if w.allocs > s.PeakAllocs.Count {
		s.PeakAllocs = aggregation.Peak{Timestamp: ts, Count: w.allocs, Size: w.size}
	}
	if w.frees > s.PeakFrees.Count {
		s.PeakFrees = aggregation.Peak{Timestamp: ts, Count: w.frees, Size: w.size}
	}
}

// Aggregator produces activity reports.
type Aggregator struct {
	// Slice is the window width in milliseconds. Zero selects a
	// width from the trace duration, see SliceWidth.
	Slice int64
}

// New returns an activity Aggregator with the given window width.
func New(slice int64) *Aggregator {
	return &Aggregator{Slice: slice}
}

// Mode implements aggregation.Aggregator.
func (*Aggregator) Mode() aggregation.Mode {
	return aggregation.ModeActivity
}

// Aggregate implements aggregation.Aggregator.
func (a *Aggregator) Aggregate(in *aggregation.Input) (*aggregation.Report, error) {
	slice := SliceWidth(a.Slice, in.End)
	rep := &aggregation.Report{
		Mode:  aggregation.ModeActivity,
		Slice: slice,
		Range: aggregation.Range{XMin: 0, XMax: in.End},
	}
	names := make([]string, len(in.Resources))
	for i := range in.Resources {
		names[i] = in.Resources[i].Name
	}
	for _, ctx := range in.Contexts {
		set := index.NewSet(names)
		for i := range in.Resources {
			s := newSampler(&in.Resources[i], ctx, set, slice)
			if ctx.IsAll() {
				s.stats = &Summary{Resource: in.Resources[i].Name}
				rep.Summaries = append(rep.Summaries, s.stats)
			}
			if err := s.run(NewCursor(SliceStep(slice), in.End)); err != nil {
				return nil, err
			}
			if s.admitted != 0 {
				rep.Series = append(rep.Series, s.rate, s.allocs, s.frees)
			}
			if s.ymax > rep.Range.YMax {
				rep.Range.YMax = s.ymax
			}
			if s.y2max > rep.Range.Y2Max {
				rep.Range.Y2Max = s.y2max
			}
		}
	}
	return rep, nil
}

// sampler is the state of one activity pass over the events of a
// resource type in a context.
type sampler struct {
	res   *aggregation.Resource
	ctx   timeline.Context
	set   *index.Set
	slice int64

	next     int
	admitted int
	w        window

	rate, allocs, frees *aggregation.Series
	stats               *Summary
	ymax, y2max         uint64
}

func newSampler(res *aggregation.Resource, ctx timeline.Context, set *index.Set, slice int64) *sampler {
	return &sampler{
		res:    res,
		ctx:    ctx,
		set:    set,
		slice:  slice,
		rate:   aggregation.NewSeries(res.Name, ctx, "rate"),
		allocs: aggregation.NewSeries(res.Name, ctx, "allocs"),
		frees:  aggregation.NewSeries(res.Name, ctx, "frees"),
	}
}

// run drives the sampler over every cursor instant. Stretches where
// nothing can enter or leave the window are skipped.
func (s *sampler) run(cur *Cursor) error {
	for cur.Next() {
		if err := s.advance(cur.Value(), cur.Last()); err != nil {
			return err
		}
		wake := int64(-1)
		if s.next < len(s.res.Events) {
			wake = s.res.Events[s.next].Timestamp
		}
		if oldest, ok := s.w.oldest(); ok {
			if expire := oldest + s.slice + 1; wake < 0 || expire < wake {
				wake = expire
			}
		}
		if wake < 0 {
			// Nothing left to happen, go straight to the final instant.
			cur.Seek(cur.last)
			continue
		}
		cur.Seek(wake)
	}
	return nil
}

// advance admits every event up to instant c, then evicts the events
// which fell out of the window ending at c. A sample is recorded at
// each admitted event, and at c when the eviction changed the window
// or c is the final instant not already sampled.
func (s *sampler) advance(c int64, last bool) error {
	events := s.res.Events
	for ; s.next < len(events) && events[s.next].Timestamp <= c; s.next++ {
		ev := &events[s.next]
		if !ev.Matches(s.ctx) {
			continue
		}
		x, err := s.set.For(ev.Resource)
		if err != nil {
			return err
		}
		sl := slot{timestamp: ev.Timestamp, kind: ev.Kind}
		switch ev.Kind {
		case timeline.EventAlloc:
			if !x.Alloc(ev) {
				continue
			}
			sl.size = ev.Size
		case timeline.EventFree:
			if _, ok := x.Free(ev.ID); !ok {
				continue
			}
		default:
			continue
		}
		s.w.evict(ev.Timestamp - s.slice)
		s.w.push(sl)
		s.admitted++
		s.emit(ev.Timestamp)
	}
	if evicted := s.w.evict(c - s.slice); evicted || (last && !s.sampledAt(c)) {
		s.emit(c)
	}
	return nil
}

// sampledAt reports whether the most recent sample was taken at ts.
func (s *sampler) sampledAt(ts int64) bool {
	n := len(s.rate.Points)
	return n > 0 && s.rate.Points[n-1].Timestamp == ts
}

func (s *sampler) emit(ts int64) {
	s.rate.Add(ts, s.w.size)
	s.allocs.Add(ts, s.w.allocs)
	s.frees.Add(ts, s.w.frees)
	if s.w.size > s.ymax {
		s.ymax = s.w.size
	}
	if s.w.allocs > s.y2max {
		s.y2max = s.w.allocs
	}
	if s.w.frees > s.y2max {
		s.y2max = s.w.frees
	}
	if s.stats != nil {
		s.stats.update(&s.w, ts)
	}
}

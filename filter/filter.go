// Package filter provides the event inclusion predicates applied to a
// trace before any event reaches an aggregator.
package filter

import (
	"github.com/rtrace/timeline"
)

// Filter is an event inclusion predicate.
type Filter interface {
	// Validate reports whether the event passes the filter.
	Validate(ev *timeline.Event) bool
}

// Chain is a conjunction of filters. An empty Chain accepts every
// event.
type Chain []Filter

// Validate implements the Filter interface.
func (c Chain) Validate(ev *timeline.Event) bool {
	for _, f := range c {
		if !f.Validate(ev) {
			return false
		}
	}
	return true
}

// Apply returns the events that pass all filters, preserving order.
// The input slice is not modified.
func (c Chain) Apply(events []timeline.Event) []timeline.Event {
	out := make([]timeline.Event, 0, len(events))
	for i := range events {
		if c.Validate(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}

// SizeRange accepts allocations whose size lies within [Min, Max].
//
// Zero-size events, which includes every free, are never subject to
// size gating.
type SizeRange struct {
	Min uint64
	Max uint64 // 0 means unbounded.
}

// Validate implements the Filter interface.
func (r SizeRange) Validate(ev *timeline.Event) bool {
	if ev.Size == 0 {
		return true
	}
	if ev.Size < r.Min {
		return false
	}
	return r.Max == 0 || ev.Size <= r.Max
}

// IndexRange accepts events whose sequence number lies within
// [Min, Max].
type IndexRange struct {
	Min uint64
	Max uint64 // 0 means unbounded.
}

// Validate implements the Filter interface.
func (r IndexRange) Validate(ev *timeline.Event) bool {
	if ev.Sequence < r.Min {
		return false
	}
	return r.Max == 0 || ev.Sequence <= r.Max
}

// ContextMask accepts events allocated in any context of the mask. A
// zero mask accepts only events allocated outside any context.
type ContextMask uint32

// Validate implements the Filter interface.
func (m ContextMask) Validate(ev *timeline.Event) bool {
	return (m == 0 && ev.Context == 0) || uint32(m)&ev.Context != 0
}

// Resource accepts events of a single resource type.
type Resource string

// Validate implements the Filter interface.
func (r Resource) Validate(ev *timeline.Event) bool {
	return ev.Resource == string(r)
}

// TimeBound is one end of a TimeRange.
type TimeBound struct {
	// Set reports whether the bound applies at all.
	Set bool

	// Relative reports whether Value counts back from the end of the
	// trace. A bound written as -0 is relative with a zero Value.
	Relative bool

	// Value is a timestamp in milliseconds. A negative value is
	// relative to the end of the trace even when Relative is unset.
	Value int64
}

// Resolve returns the absolute timestamp of the bound for a trace
// whose last timestamp is last. End-relative bounds reaching before
// the start of the trace resolve to zero.
func (b TimeBound) Resolve(last int64) int64 {
	if !b.Relative && b.Value >= 0 {
		return b.Value
	}
	if v := last + b.Value; v > 0 {
		return v
	}
	return 0
}

// TimeRange is an unresolved time filter. It must be resolved against
// the trace before it can be used, see Resolve.
type TimeRange struct {
	Start TimeBound
	End   TimeBound
}

// Resolve turns the range into a filter for a trace whose last
// timestamp is last.
func (r TimeRange) Resolve(last int64) Window {
	w := Window{Start: 0, End: -1}
	if r.Start.Set {
		w.Start = r.Start.Resolve(last)
	}
	if r.End.Set {
		w.End = r.End.Resolve(last)
	}
	return w
}

// Window accepts events whose timestamp lies within [Start, End].
type Window struct {
	Start int64
	End   int64 // Negative means unbounded.
}

// Validate implements the Filter interface.
func (w Window) Validate(ev *timeline.Event) bool {
	if ev.Timestamp < w.Start {
		return false
	}
	return w.End < 0 || ev.Timestamp <= w.End
}

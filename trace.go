// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// ErrUnknownResource is returned when an event references a resource
// type that was never declared. It indicates an inconsistent capture.
var ErrUnknownResource = errors.New("unknown resource type")

// Trace is a fully captured resource trace: the declared resource
// types and contexts, and the events recorded for each resource type.
type Trace struct {
	// Offset is the raw timestamp, in milliseconds, which
	// event timestamps are relative to.
	Offset int64

	resources []string
	events    map[string][]Event
	contexts  []Context
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{events: make(map[string][]Event)}
}

// RegisterResource declares a resource type.
//
// Returns false if the resource type was already declared.
func (t *Trace) RegisterResource(name string) bool {
	if _, ok := t.events[name]; ok {
		return false
	}
	t.resources = append(t.resources, name)
	t.events[name] = nil
	return true
}

// Resources returns the declared resource types in declaration order.
func (t *Trace) Resources() []string {
	return append([]string(nil), t.resources...)
}

// RegisterContext declares a named context mask.
//
// Returns false if the mask was already declared or collides with
// one of the MaskAll and MaskNone pseudo-masks.
func (t *Trace) RegisterContext(mask uint32, name string) bool {
	if c := (Context{Mask: mask}); c.IsAll() || c.IsNone() {
		return false
	}
	for _, c := range t.contexts {
		if c.Mask == mask {
			return false
		}
	}
	t.contexts = append(t.contexts, Context{Mask: mask, Name: name})
	return true
}

// Contexts returns the declared contexts in declaration order.
func (t *Trace) Contexts() []Context {
	return append([]Context(nil), t.contexts...)
}

// ReportContexts returns the contexts a report is sliced by: the
// "all" pseudo-context first and, if any context was declared, the
// "none" pseudo-context followed by the declared contexts.
func (t *Trace) ReportContexts() []Context {
	out := []Context{{Mask: MaskAll, Name: "all allocations"}}
	if len(t.contexts) == 0 {
		return out
	}
	out = append(out, Context{Mask: MaskNone, Name: "no contexts"})
	return append(out, t.contexts...)
}

// Add appends an event to the trace.
//
// An event with an empty resource name is attributed to the first
// declared resource type. An event naming an undeclared resource
// type fails with ErrUnknownResource.
func (t *Trace) Add(ev Event) error {
	if ev.Resource == "" && len(t.resources) != 0 {
		ev.Resource = t.resources[0]
	}
	list, ok := t.events[ev.Resource]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownResource, ev.Resource)
	}
	t.events[ev.Resource] = append(list, ev)
	return nil
}

// Events returns the events recorded for a resource type.
//
// The returned slice is shared with the trace and must not be modified.
func (t *Trace) Events(resource string) ([]Event, error) {
	list, ok := t.events[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	return list, nil
}

// Len returns the total number of events in the trace.
func (t *Trace) Len() int {
	n := 0
	for _, list := range t.events {
		n += len(list)
	}
	return n
}

// LastTimestamp returns the greatest event timestamp in the trace.
func (t *Trace) LastTimestamp() int64 {
	last := int64(0)
	for _, list := range t.events {
		for i := range list {
			if list[i].Timestamp > last {
				last = list[i].Timestamp
			}
		}
	}
	return last
}

// Sort puts the events of every resource type into capture order.
// See SortEvents.
func (t *Trace) Sort() {
	for _, name := range t.resources {
		SortEvents(t.events[name])
	}
}

// CompareEvents orders a before b by sequence number and then by
// timestamp, returning a negative, zero or positive result.
func CompareEvents(a, b Event) int {
	switch {
	case a.Sequence < b.Sequence:
		return -1
	case a.Sequence > b.Sequence:
		return 1
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	}
	return 0
}

// SortEvents stably orders events by sequence number and then by
// timestamp. Several events may share a timestamp at the capture's
// time resolution, so the sequence number decides causality.
//
// All aggregators require their input in this order.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, CompareEvents)
}

// IsSorted reports whether events are in the order SortEvents produces.
func IsSorted(events []Event) bool {
	return slices.IsSortedFunc(events, CompareEvents)
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

// EventKind indicates what kind of resource trace event
// is captured.
type EventKind uint8

const (
	EventBad   EventKind = iota
	EventAlloc           // Allocation.
	EventFree            // Deallocation.
)

func (k EventKind) String() string {
	switch k {
	case EventAlloc:
		return "alloc"
	case EventFree:
		return "free"
	}
	return "bad"
}

// Event represents a single resource allocation or deallocation.
//
// Events are values and are never modified once they have been
// added to a Trace.
type Event struct {
	// Sequence is the emission order of the event in the
	// captured trace.
	Sequence uint64

	// Timestamp is the time in milliseconds relative to the
	// trace's timestamp offset. Events captured without timing
	// information have a zero timestamp.
	Timestamp int64

	// Context is the allocation context bitmask.
	Context uint32

	// Resource is the name of the resource type.
	Resource string

	// ID identifies the allocated resource within its type.
	ID string

	// Size is the size of the allocation.
	// Only valid when Kind == EventAlloc.
	Size uint64

	// Kind indicates what kind of event this is.
	Kind EventKind
}

const (
	// MaskAll is the pseudo-mask that matches every event.
	MaskAll uint32 = 0xFFFFFFFF

	// MaskNone is the pseudo-mask that matches only events
	// allocated outside any context.
	MaskNone uint32 = 0
)

// Context is a named allocation context mask.
type Context struct {
	Mask uint32
	Name string
}

// IsAll reports whether c is the "all contexts" pseudo-mask.
func (c Context) IsAll() bool {
	return c.Mask == MaskAll
}

// IsNone reports whether c is the "no context" pseudo-mask.
func (c Context) IsNone() bool {
	return c.Mask == MaskNone
}

// Matches reports whether an event context value belongs to c.
func (c Context) Matches(ctx uint32) bool {
	switch {
	case c.IsAll():
		return true
	case c.IsNone():
		return ctx == 0
	}
	return ctx&c.Mask != 0
}

// Matches reports whether the event belongs to context c.
func (e *Event) Matches(c Context) bool {
	return c.Matches(e.Context)
}

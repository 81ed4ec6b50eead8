// Package index tracks live resources by identifier so that repeated
// allocations of a live identifier are counted once.
package index

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/rtrace/timeline"
)

// Entry is the allocation record of a live resource.
type Entry struct {
	// Event is the allocation that made the resource live.
	Event timeline.Event

	// RefCount is the number of allocations of the identifier
	// not yet matched by a free. Always positive for a live entry.
	RefCount uint32
}

// Index is the set of live resources of one resource type.
type Index struct {
	m map[string]*Entry
}

// New creates an empty Index.
func New() *Index {
	return &Index{m: make(map[string]*Entry)}
}

// Alloc registers an allocation.
//
// Returns true if the identifier was not live and a new entry was
// created. An allocation of an already live identifier only
// increments its reference count and returns false.
func (x *Index) Alloc(ev *timeline.Event) bool {
	if e, ok := x.m[ev.ID]; ok {
		e.RefCount++
		return false
	}
	x.m[ev.ID] = &Entry{Event: *ev, RefCount: 1}
	return true
}

// Free registers a deallocation of the identifier.
//
// Returns the entry and true when the reference count drops to zero
// and the resource retires. Frees of identifiers that are not live
// are ignored.
func (x *Index) Free(id string) (Entry, bool) {
	e, ok := x.m[id]
	if !ok {
		return Entry{}, false
	}
	e.RefCount--
	if e.RefCount > 0 {
		return Entry{}, false
	}
	delete(x.m, id)
	return *e, true
}

// Lookup returns the entry of a live identifier.
func (x *Index) Lookup(id string) (Entry, bool) {
	e, ok := x.m[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of live identifiers.
func (x *Index) Len() int {
	return len(x.m)
}

// Live returns the live entries ordered by their allocation's
// capture order.
func (x *Index) Live() []Entry {
	out := make([]Entry, 0, len(x.m))
	for _, e := range x.m {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return timeline.CompareEvents(a.Event, b.Event)
	})
	return out
}

// Set holds one Index per declared resource type.
type Set struct {
	m map[string]*Index
}

// NewSet creates an Index for each of the given resource types.
func NewSet(resources []string) *Set {
	s := &Set{m: make(map[string]*Index, len(resources))}
	for _, r := range resources {
		s.m[r] = New()
	}
	return s
}

// For returns the Index of a resource type. Resource types the Set was
// not created with fail with timeline.ErrUnknownResource.
func (s *Set) For(resource string) (*Index, error) {
	x, ok := s.m[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", timeline.ErrUnknownResource, resource)
	}
	return x, nil
}

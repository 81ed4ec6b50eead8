package activity

import "github.com/rtrace/timeline"

// slot is an event admitted into the window.
type slot struct {
	timestamp int64
	kind      timeline.EventKind
	size      uint64
}

// window is a FIFO of admitted events, ordered by timestamp, with the
// running totals of its content.
type window struct {
	slots  []slot
	head   int
	size   uint64
	allocs uint64
	frees  uint64
}

func (w *window) push(s slot) {
	switch s.kind {
	case timeline.EventAlloc:
		w.size += s.size
		w.allocs++
	case timeline.EventFree:
		w.frees++
	}
	w.slots = append(w.slots, s)
}

// evict drops the events older than before from the front of the
// window. Returns whether anything was dropped.
func (w *window) evict(before int64) bool {
	dropped := 0
	for w.head < len(w.slots) && w.slots[w.head].timestamp < before {
		s := &w.slots[w.head]
		switch s.kind {
		case timeline.EventAlloc:
			w.size -= s.size
			w.allocs--
		case timeline.EventFree:
			w.frees--
		}
		w.head++
		dropped++
	}
	if w.head == len(w.slots) {
		w.slots = w.slots[:0]
		w.head = 0
	} else if w.head > len(w.slots)/2 {
		n := copy(w.slots, w.slots[w.head:])
		w.slots = w.slots[:n]
		w.head = 0
	}
	return dropped != 0
}

func (w *window) len() int {
	return len(w.slots) - w.head
}

// oldest returns the timestamp of the oldest event in the window.
func (w *window) oldest() (int64, bool) {
	if w.len() == 0 {
		return 0, false
	}
	return w.slots[w.head].timestamp, true
}

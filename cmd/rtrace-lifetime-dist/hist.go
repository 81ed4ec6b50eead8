// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

// DurationHist is a histogram of lifetimes in fixed width buckets.
type DurationHist struct {
	width int64
	bins  []uint64
}

func NewDurationHist(width int64) *DurationHist {
	if width < 1 {
		width = 1
	}
	return &DurationHist{width: width}
}

// Add counts a lifetime of d milliseconds.
func (h *DurationHist) Add(d int64) {
	if d < 0 {
		d = 0
	}
	i := d / h.width
	if i >= int64(len(h.bins)) {
		h.bins = append(h.bins, make([]uint64, i-int64(len(h.bins))+1)...)
	}
	h.bins[i]++
}

// Len returns the number of buckets.
func (h *DurationHist) Len() int {
	return len(h.bins)
}

// Bucket returns the count of bucket i, or zero past the last bucket.
func (h *DurationHist) Bucket(i int) uint64 {
	if i >= len(h.bins) {
		return 0
	}
	return h.bins[i]
}

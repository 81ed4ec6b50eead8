// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "golang.org/x/exp/slices"

// SizeBin counts the allocations of one size by whether they were
// released before the end of the trace.
type SizeBin struct {
	Freed uint64
	Live  uint64
}

func (b *SizeBin) total() uint64 {
	return b.Freed + b.Live
}

// SizeHist is an allocation size histogram. Small sizes are kept in a
// dense array, larger ones in a map.
type SizeHist struct {
	small [32 << 10]SizeBin
	large map[uint64]*SizeBin
	count uint64
}

func NewSizeHist() *SizeHist {
	return &SizeHist{
		large: make(map[uint64]*SizeBin),
	}
}

func (s *SizeHist) bin(size uint64) *SizeBin {
	if size < uint64(len(s.small)) {
		return &s.small[size]
	}
	b, ok := s.large[size]
	if !ok {
		b = new(SizeBin)
		s.large[size] = b
	}
	return b
}

// Add counts a live allocation of the given size.
func (s *SizeHist) Add(size uint64) {
	s.bin(size).Live++
	s.count++
}

// Free moves an allocation of the given size from live to freed.
func (s *SizeHist) Free(size uint64) {
	b := s.bin(size)
	if b.Live == 0 {
		panic("free below zero")
	}
	b.Live--
	b.Freed++
}

// Count returns the number of allocations counted.
func (s *SizeHist) Count() uint64 {
	return s.count
}

// ForEach calls f for every non-empty bin in increasing size order.
func (s *SizeHist) ForEach(f func(size uint64, b SizeBin)) {
	for i := range s.small {
		if s.small[i].total() != 0 {
			f(uint64(i), s.small[i])
		}
	}
	keys := make([]uint64, 0, len(s.large))
	for size, b := range s.large {
		if b.total() != 0 {
			keys = append(keys, size)
		}
	}
	slices.Sort(keys)
	for _, size := range keys {
		f(size, *s.large[size])
	}
}

// Median returns the median allocation size. For an even count it is
// the mean of the two middle sizes.
func (s *SizeHist) Median() uint64 {
	if s.count == 0 {
		return 0
	}
	lo, hi := (s.count-1)/2, s.count/2
	var loSize, hiSize uint64
	seen := uint64(0)
	s.ForEach(func(size uint64, b SizeBin) {
		n := b.total()
		if seen <= lo && lo < seen+n {
			loSize = size
		}
		if seen <= hi && hi < seen+n {
			hiSize = size
		}
		seen += n
	})
	return (loSize + hiSize) / 2
}

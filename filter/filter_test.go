package filter

import (
	"errors"
	"testing"

	"github.com/rtrace/timeline"
)

func Test_SizeRange(t *testing.T) {
	r := SizeRange{Min: 16, Max: 64}
	for _, c := range []struct {
		size uint64
		want bool
	}{
		{0, true},
		{8, false},
		{16, true},
		{64, true},
		{65, false},
	} {
		ev := timeline.Event{Size: c.size, Kind: timeline.EventAlloc}
		if got := r.Validate(&ev); got != c.want {
			t.Errorf("SizeRange.Validate: size %d: want %v, got %v", c.size, c.want, got)
		}
	}
	free := timeline.Event{Kind: timeline.EventFree}
	if !r.Validate(&free) {
		t.Errorf("SizeRange.Validate: frees must not be size gated")
	}
	open := SizeRange{Min: 100}
	big := timeline.Event{Size: 1 << 40}
	if !open.Validate(&big) {
		t.Errorf("SizeRange.Validate: zero Max should be unbounded")
	}
}

func Test_ContextMask(t *testing.T) {
	for _, c := range []struct {
		mask ContextMask
		ctx  uint32
		want bool
	}{
		{0, 0, true},
		{0, 1, false},
		{1, 0, false},
		{3, 2, true},
		{4, 3, false},
	} {
		ev := timeline.Event{Context: c.ctx}
		if got := c.mask.Validate(&ev); got != c.want {
			t.Errorf("ContextMask.Validate: mask %x ctx %x: want %v, got %v", c.mask, c.ctx, c.want, got)
		}
	}
}

func Test_TimeRangeRelativeStart(t *testing.T) {
	r := TimeRange{Start: TimeBound{Set: true, Value: -5000}}
	w := r.Resolve(20000)
	if w.Start != 15000 {
		t.Errorf("TimeRange.Resolve: want start 15000, got %d", w.Start)
	}
	chain := Chain{w}
	events := []timeline.Event{{Timestamp: 0}, {Timestamp: 14999}, {Timestamp: 15000}, {Timestamp: 20000}}
	got := chain.Apply(events)
	if len(got) != 2 || got[0].Timestamp != 15000 {
		t.Errorf("Chain.Apply: events before 15000 should be excluded, got %v", got)
	}
	if len(events) != 4 {
		t.Errorf("Chain.Apply: input modified")
	}
}

func Test_TimeRangeResolve(t *testing.T) {
	for _, c := range []struct {
		r          TimeRange
		start, end int64
	}{
		{TimeRange{}, 0, -1},
		{TimeRange{End: TimeBound{Set: true, Value: 100}}, 0, 100},
		{TimeRange{Start: TimeBound{Set: true, Value: -50000}}, 0, -1},
		{TimeRange{Start: TimeBound{Set: true, Value: 10}, End: TimeBound{Set: true, Value: -1000}}, 10, 19000},
	} {
		w := c.r.Resolve(20000)
		if w.Start != c.start || w.End != c.end {
			t.Errorf("TimeRange.Resolve(%+v): want [%d,%d], got [%d,%d]", c.r, c.start, c.end, w.Start, w.End)
		}
	}
}

func Test_ChainEmpty(t *testing.T) {
	var c Chain
	ev := timeline.Event{Size: 5}
	if !c.Validate(&ev) {
		t.Errorf("Chain.Validate: empty chain should accept everything")
	}
	c = Chain{Resource("file"), IndexRange{Min: 2}}
	for _, ev := range []timeline.Event{{Resource: "memory", Sequence: 3}, {Resource: "file", Sequence: 1}} {
		if c.Validate(&ev) {
			t.Errorf("Chain.Validate: %+v should be rejected", ev)
		}
	}
	ok := timeline.Event{Resource: "file", Sequence: 2}
	if !c.Validate(&ok) {
		t.Errorf("Chain.Validate: %+v should pass", ok)
	}
}

func Test_ParseSizeRange(t *testing.T) {
	for _, c := range []struct {
		text     string
		min, max uint64
		err      bool
	}{
		{"16-64", 16, 64, false},
		{"1k-2K", 1024, 2048, false},
		{"1m-", 1 << 20, 0, false},
		{"-512", 0, 512, false},
		{"128", 128, 0, false},
		{"64-16", 0, 0, true},
		{"-", 0, 0, true},
		{"x-1", 0, 0, true},
		{"1g", 0, 0, true},
		{"20000000000000m-", 0, 0, true},
		{"-17592186044416m", 0, 0, true},
		{"0-0", 0, 0, true},
		{"-0", 0, 0, true},
		{"-0k", 0, 0, true},
		{"0-", 0, 0, false},
		{"17592186044415m", 17592186044415 << 20, 0, false},
	} {
		r, err := ParseSizeRange(c.text)
		if (err != nil) != c.err {
			t.Errorf("ParseSizeRange(%q): unexpected error state: %v", c.text, err)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrMalformedRange) {
				t.Errorf("ParseSizeRange(%q): want ErrMalformedRange, got %v", c.text, err)
			}
			continue
		}
		if r.Min != c.min || r.Max != c.max {
			t.Errorf("ParseSizeRange(%q): want %d-%d, got %d-%d", c.text, c.min, c.max, r.Min, r.Max)
		}
	}
}

func Test_ParseIndexRange(t *testing.T) {
	r, err := ParseIndexRange("2k-1m")
	if err != nil {
		t.Fatalf("ParseIndexRange: %v", err)
	}
	if r.Min != 2000 || r.Max != 1000000 {
		t.Errorf("ParseIndexRange: want 2000-1000000, got %d-%d", r.Min, r.Max)
	}
	for _, text := range []string{
		"-18446744073709552k",
		"18446744073709552k-",
		"18446744073710m",
		"0-0",
		"-0",
		"5-0k",
	} {
		if _, err := ParseIndexRange(text); !errors.Is(err, ErrMalformedRange) {
			t.Errorf("ParseIndexRange(%q): want ErrMalformedRange, got %v", text, err)
		}
	}
	if r, err := ParseIndexRange("18446744073709551k"); err != nil || r.Min != 18446744073709551000 {
		t.Errorf("ParseIndexRange: largest scaled bound should parse, got %d %v", r.Min, err)
	}
}

func abs(v int64) TimeBound { return TimeBound{Set: true, Value: v} }
func rel(v int64) TimeBound { return TimeBound{Set: true, Relative: true, Value: v} }

func Test_ParseTimeRange(t *testing.T) {
	for _, c := range []struct {
		text       string
		start, end TimeBound
		err        bool
	}{
		{"-5", rel(-5000), TimeBound{}, false},
		{"1.5,3", abs(1500), abs(3000), false},
		{",1:00", TimeBound{}, abs(60000), false},
		{"10,-2", abs(10000), rel(-2000), false},
		{"-0,", rel(0), TimeBound{}, false},
		{",-0", TimeBound{}, rel(0), false},
		{"0,-0", abs(0), rel(0), false},
		{"-3,-0", rel(-3000), rel(0), false},
		{"3,1", TimeBound{}, TimeBound{}, true},
		{"-1,-3", TimeBound{}, TimeBound{}, true},
		{"-0,-3", TimeBound{}, TimeBound{}, true},
		{",", TimeBound{}, TimeBound{}, true},
		{"a,b", TimeBound{}, TimeBound{}, true},
	} {
		r, err := ParseTimeRange(c.text)
		if (err != nil) != c.err {
			t.Errorf("ParseTimeRange(%q): unexpected error state: %v", c.text, err)
			continue
		}
		if err == nil && (r.Start != c.start || r.End != c.end) {
			t.Errorf("ParseTimeRange(%q): want %+v,%+v got %+v,%+v", c.text, c.start, c.end, r.Start, r.End)
		}
	}
}

func Test_TimeRangeEndRelativeZero(t *testing.T) {
	// -0 names the last timestamp, 0 names the first.
	for _, c := range []struct {
		text       string
		start, end int64
	}{
		{"-0,", 20000, -1},
		{",-0", 0, 20000},
		{"0,", 0, -1},
		{",0", 0, 0},
	} {
		r, err := ParseTimeRange(c.text)
		if err != nil {
			t.Fatalf("ParseTimeRange(%q): %v", c.text, err)
		}
		w := r.Resolve(20000)
		if w.Start != c.start || w.End != c.end {
			t.Errorf("ParseTimeRange(%q).Resolve: want [%d,%d], got [%d,%d]", c.text, c.start, c.end, w.Start, w.End)
		}
	}
}

func Test_ParseContextMask(t *testing.T) {
	for _, c := range []struct {
		text string
		want ContextMask
		err  bool
	}{
		{"0x10", 0x10, false},
		{"ff", 0xff, false},
		{"0", 0, false},
		{"zz", 0, true},
		{"1ffffffff", 0, true},
	} {
		m, err := ParseContextMask(c.text)
		if (err != nil) != c.err {
			t.Errorf("ParseContextMask(%q): unexpected error state: %v", c.text, err)
			continue
		}
		if err == nil && m != c.want {
			t.Errorf("ParseContextMask(%q): want %x, got %x", c.text, c.want, m)
		}
	}
}

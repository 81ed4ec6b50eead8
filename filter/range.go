package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rtrace/timeline"
)

// ErrMalformedRange is returned for filter arguments that cannot be
// parsed.
var ErrMalformedRange = errors.New("malformed filter range")

func malformed(text, format string, args ...interface{}) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedRange, text, fmt.Sprintf(format, args...))
}

// parseScaled parses <value>[k|K|m|M] where the modifiers multiply the
// value by kilo and mega.
func parseScaled(text string, kilo uint64) (uint64, error) {
	mult := uint64(1)
	switch text[len(text)-1] {
	case 'k', 'K':
		mult = kilo
	case 'm', 'M':
		mult = kilo * kilo
	}
	if mult != 1 {
		text = text[:len(text)-1]
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint64/mult {
		return 0, strconv.ErrRange
	}
	return v * mult, nil
}

// splitRange splits min<sep>max. A text without the separator is a
// lower bound only.
func splitRange(text, sep string) (lo, hi string) {
	if i := strings.Index(text, sep); i >= 0 {
		return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+len(sep):])
	}
	return strings.TrimSpace(text), ""
}

func parseBounds(text string, kilo uint64) (lo, hi uint64, err error) {
	l, h := splitRange(text, "-")
	if l == "" && h == "" {
		return 0, 0, malformed(text, "empty range")
	}
	if l != "" {
		if lo, err = parseScaled(l, kilo); err != nil {
			return 0, 0, malformed(text, "invalid lower bound")
		}
	}
	if h != "" {
		if hi, err = parseScaled(h, kilo); err != nil {
			return 0, 0, malformed(text, "invalid upper bound")
		}
		// A zero maximum reads as unbounded downstream.
		if hi == 0 {
			return 0, 0, malformed(text, "zero upper bound")
		}
		if hi < lo {
			return 0, 0, malformed(text, "upper bound below lower bound")
		}
	}
	return lo, hi, nil
}

// ParseSizeRange parses a size range of the form [min]-[max]. Bounds
// accept k and m suffixes for kibibytes and mebibytes.
func ParseSizeRange(text string) (SizeRange, error) {
	lo, hi, err := parseBounds(text, 1024)
	if err != nil {
		return SizeRange{}, err
	}
	return SizeRange{Min: lo, Max: hi}, nil
}

// ParseIndexRange parses a sequence range of the form [min]-[max].
// Bounds accept k and m suffixes for thousands and millions.
func ParseIndexRange(text string) (IndexRange, error) {
	lo, hi, err := parseBounds(text, 1000)
	if err != nil {
		return IndexRange{}, err
	}
	return IndexRange{Min: lo, Max: hi}, nil
}

// ParseTimeRange parses a time range of the form [start],[end] where
// each bound is [-][hh:][mm:]ss[.mmm]. A negative bound counts back
// from the end of the trace.
func ParseTimeRange(text string) (TimeRange, error) {
	l, h := splitRange(text, ",")
	if l == "" && h == "" {
		return TimeRange{}, malformed(text, "empty range")
	}
	var r TimeRange
	if l != "" {
		v, err := timeline.ParseTimestamp(l)
		if err != nil {
			return TimeRange{}, malformed(text, "invalid start: %v", err)
		}
		r.Start = TimeBound{Set: true, Relative: l[0] == '-', Value: v}
	}
	if h != "" {
		v, err := timeline.ParseTimestamp(h)
		if err != nil {
			return TimeRange{}, malformed(text, "invalid end: %v", err)
		}
		r.End = TimeBound{Set: true, Relative: h[0] == '-', Value: v}
	}
	// Bounds of the same kind can be checked before resolution.
	if r.Start.Set && r.End.Set && r.Start.Relative == r.End.Relative && r.End.Value < r.Start.Value {
		return TimeRange{}, malformed(text, "end before start")
	}
	return r, nil
}

// ParseContextMask parses a hexadecimal context mask, with or without
// a 0x prefix.
func ParseContextMask(text string) (ContextMask, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(text), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, malformed(text, "invalid context mask")
	}
	return ContextMask(v), nil
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimestamp formats a millisecond timestamp as hh:mm:ss.mmm.
func FormatTimestamp(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	msecs := ms % 1000
	secs := ms / 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, secs/3600, secs/60%60, secs%60, msecs)
}

// FormatOffset formats a millisecond offset in its shortest form:
// hours and minutes are omitted when zero and the fraction loses its
// trailing zeros. For example 61500 is formatted as "1:01.5".
func FormatOffset(ms int64) string {
	var b strings.Builder
	if ms < 0 {
		b.WriteByte('-')
		ms = -ms
	}
	msecs := ms % 1000
	secs := ms / 1000
	hours, minutes, seconds := secs/3600, secs/60%60, secs%60
	switch {
	case hours != 0:
		fmt.Fprintf(&b, "%d:%02d:%02d", hours, minutes, seconds)
	case minutes != 0:
		fmt.Fprintf(&b, "%d:%02d", minutes, seconds)
	default:
		fmt.Fprintf(&b, "%d", seconds)
	}
	if msecs != 0 {
		frac := fmt.Sprintf("%03d", msecs)
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(frac, "0"))
	}
	return b.String()
}

// ParseTimestamp parses [+|-][hh:][mm:]ss[.mmm] into signed
// milliseconds. A leading '+' is accepted and ignored. The fraction
// is read as a decimal fraction of a second, so ".5" is 500ms.
func ParseTimestamp(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var ms int64
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := s[dot+1:]
		if frac == "" || len(frac) > 3 {
			return 0, fmt.Errorf("invalid fraction in timestamp %q", text)
		}
		v, err := strconv.ParseUint(frac, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid fraction in timestamp %q", text)
		}
		for i := len(frac); i < 3; i++ {
			v *= 10
		}
		ms = int64(v)
		s = s[:dot]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("too many fields in timestamp %q", text)
	}
	var secs int64
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", text)
		}
		secs = secs*60 + int64(v)
	}
	ms += secs * 1000
	if neg {
		ms = -ms
	}
	return ms, nil
}

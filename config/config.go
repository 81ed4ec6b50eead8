// Package config reads the TOML configuration of a timeline report.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/lifetime"
	"github.com/rtrace/timeline/engine"
	"github.com/rtrace/timeline/filter"
)

type Config struct { // Exported for TOML
	Mode          aggregation.Mode  `toml:"mode"`
	Slice         Millis            `toml:"slice"`
	SizeFilters   []SizeRange       `toml:"size-filters"`
	TimeFilter    TimeRange         `toml:"time-filter"`
	IndexFilter   IndexRange        `toml:"index-filter"`
	ContextFilter ContextMask       `toml:"context-filter"`
	Resource      string            `toml:"resource"`
	PageCapacity  int               `toml:"page-capacity"`
	PageLimit     int               `toml:"page-limit"`
	Overhead      map[string]uint64 `toml:"overhead"`
}

// Millis is a window width. Plain numbers are milliseconds, anything
// else is parsed as a Go duration.
type Millis struct{ time.Duration }

func (m *Millis) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		m.Duration = time.Duration(v) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid slice %q: %v", s, err)
	}
	m.Duration = d
	return nil
}

// Milliseconds returns the width in whole milliseconds.
func (m Millis) Milliseconds() int64 {
	return m.Duration.Milliseconds()
}

// SizeRange is a size filter in its textual [min]-[max] form.
type SizeRange struct{ filter.SizeRange }

func (r *SizeRange) UnmarshalText(text []byte) (err error) {
	r.SizeRange, err = filter.ParseSizeRange(string(text))
	return err
}

// TimeRange is a time filter in its textual [start],[end] form.
type TimeRange struct {
	filter.TimeRange
	Set bool
}

func (r *TimeRange) UnmarshalText(text []byte) (err error) {
	r.TimeRange, err = filter.ParseTimeRange(string(text))
	r.Set = err == nil
	return err
}

// IndexRange is a sequence filter in its textual [min]-[max] form.
type IndexRange struct {
	filter.IndexRange
	Set bool
}

func (r *IndexRange) UnmarshalText(text []byte) (err error) {
	r.IndexRange, err = filter.ParseIndexRange(string(text))
	r.Set = err == nil
	return err
}

// ContextMask is a hexadecimal context filter.
type ContextMask struct {
	filter.ContextMask
	Set bool
}

func (m *ContextMask) UnmarshalText(text []byte) (err error) {
	m.ContextMask, err = filter.ParseContextMask(string(text))
	m.Set = err == nil
	return err
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{
		Mode:         aggregation.ModeTotals,
		PageCapacity: lifetime.DefaultPageCapacity,
		PageLimit:    lifetime.DefaultPageLimit,
		Overhead:     make(map[string]uint64, len(engine.DefaultOverhead)),
	}
	for k, v := range engine.DefaultOverhead {
		c.Overhead[k] = v
	}
	return c
}

// ReadConfig decodes the file at path over the defaults and validates
// the result.
var ReadConfig = func(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration text over the defaults and validates the
// result.
func Parse(text string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults for values
// left at zero.
func (c *Config) Validate() error {
	for _, f := range []func() error{
		c.processMode,
		c.processSlice,
		c.processPaging,
		c.processOverhead,
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) processMode() error {
	if c.Mode == aggregation.ModeBad {
		c.Mode = aggregation.ModeTotals
	}
	return nil
}

func (c *Config) processSlice() error {
	if c.Slice.Duration < 0 {
		return fmt.Errorf("slice must not be negative: %v", c.Slice.Duration)
	}
	if c.Slice.Duration != 0 && c.Slice.Duration < time.Millisecond {
		return fmt.Errorf("slice below one millisecond: %v", c.Slice.Duration)
	}
	return nil
}

func (c *Config) processPaging() error {
	if c.PageCapacity < 0 {
		return fmt.Errorf("page-capacity must not be negative: %d", c.PageCapacity)
	}
	if c.PageCapacity == 0 {
		c.PageCapacity = lifetime.DefaultPageCapacity
	}
	// A non-positive page-limit disables the check.
	return nil
}

func (c *Config) processOverhead() error {
	if c.Overhead == nil {
		c.Overhead = make(map[string]uint64)
	}
	for name := range c.Overhead {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("overhead: empty resource name")
		}
	}
	return nil
}

// Options returns the engine options described by the configuration.
func (c *Config) Options() *engine.Options {
	o := &engine.Options{
		Mode:         c.Mode,
		Slice:        c.Slice.Milliseconds(),
		Resource:     c.Resource,
		PageCapacity: c.PageCapacity,
		PageLimit:    c.PageLimit,
		Overhead:     make(map[string]uint64, len(c.Overhead)),
	}
	for k, v := range c.Overhead {
		o.Overhead[k] = v
	}
	for _, r := range c.SizeFilters {
		o.SizeFilters = append(o.SizeFilters, r.SizeRange)
	}
	if c.TimeFilter.Set {
		tr := c.TimeFilter.TimeRange
		o.TimeFilter = &tr
	}
	if c.IndexFilter.Set {
		ir := c.IndexFilter.IndexRange
		o.IndexFilter = &ir
	}
	if c.ContextFilter.Set {
		cm := c.ContextFilter.ContextMask
		o.ContextFilter = &cm
	}
	return o
}

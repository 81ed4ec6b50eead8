package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/lifetime"
	"github.com/rtrace/timeline/filter"
)

const sample = `
mode = "activity"
slice = "250ms"
size-filters = ["1k-4k", "64k-"]
time-filter = "-5,"
index-filter = "10-2k"
context-filter = "0x4"
resource = "memory"
page-capacity = 500
page-limit = 20

[overhead]
file = 4
`

func Test_Parse(t *testing.T) {
	cfg, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mode != aggregation.ModeActivity {
		t.Errorf("Parse: want activity mode, got %v", cfg.Mode)
	}
	if cfg.Slice.Duration != 250*time.Millisecond {
		t.Errorf("Parse: want 250ms slice, got %v", cfg.Slice.Duration)
	}
	if len(cfg.SizeFilters) != 2 || cfg.SizeFilters[0].Min != 1024 || cfg.SizeFilters[0].Max != 4096 || cfg.SizeFilters[1].Min != 64<<10 {
		t.Errorf("Parse: unexpected size filters %+v", cfg.SizeFilters)
	}
	if !cfg.TimeFilter.Set || cfg.TimeFilter.Start.Value != -5000 || cfg.TimeFilter.End.Set {
		t.Errorf("Parse: unexpected time filter %+v", cfg.TimeFilter)
	}
	if cfg.Overhead["memory"] != 8 || cfg.Overhead["file"] != 4 {
		t.Errorf("Parse: overheads should merge with defaults, got %v", cfg.Overhead)
	}

	o := cfg.Options()
	if o.Mode != aggregation.ModeActivity || o.Slice != 250 || o.Resource != "memory" {
		t.Errorf("Options: unexpected %+v", o)
	}
	if o.IndexFilter == nil || *o.IndexFilter != (filter.IndexRange{Min: 10, Max: 2000}) {
		t.Errorf("Options: unexpected index filter %+v", o.IndexFilter)
	}
	if o.ContextFilter == nil || *o.ContextFilter != 4 {
		t.Errorf("Options: unexpected context filter %v", o.ContextFilter)
	}
	if o.TimeFilter == nil || o.TimeFilter.Resolve(20000).Start != 15000 {
		t.Errorf("Options: time filter should resolve to 15000")
	}
	if o.PageCapacity != 500 || o.PageLimit != 20 || len(o.SizeFilters) != 2 {
		t.Errorf("Options: unexpected paging or size filters %+v", o)
	}
}

func Test_ParseDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	o := cfg.Options()
	if o.Mode != aggregation.ModeTotals || o.Slice != 0 {
		t.Errorf("Parse: want totals with automatic slice, got %v %d", o.Mode, o.Slice)
	}
	if o.TimeFilter != nil || o.IndexFilter != nil || o.ContextFilter != nil || len(o.SizeFilters) != 0 {
		t.Errorf("Parse: defaults should not filter, got %+v", o)
	}
	if o.PageCapacity != lifetime.DefaultPageCapacity || o.PageLimit != lifetime.DefaultPageLimit {
		t.Errorf("Parse: unexpected paging defaults %d %d", o.PageCapacity, o.PageLimit)
	}
	if o.Overhead["memory"] != 8 {
		t.Errorf("Parse: want memory overhead 8, got %d", o.Overhead["memory"])
	}
}

func Test_ParseErrors(t *testing.T) {
	for _, text := range []string{
		`mode = "histogram"`,
		`size-filters = ["4k-1k"]`,
		`time-filter = "3,1"`,
		`context-filter = "xyz"`,
		`slice = "-5ms"`,
		`slice = "soon"`,
		`page-capacity = -1`,
	} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q): want error", text)
		}
	}
	_, err := Parse(`size-filters = ["oops"]`)
	if err == nil || !strings.Contains(err.Error(), filter.ErrMalformedRange.Error()) {
		t.Errorf("Parse: malformed ranges should report ErrMalformedRange, got %v", err)
	}
}

func Test_SliceNumber(t *testing.T) {
	cfg, err := Parse("slice = 40")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Options().Slice != 40 {
		t.Errorf("Parse: plain numbers are milliseconds, got %d", cfg.Options().Slice)
	}
}

func Test_ReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Resource != "memory" {
		t.Errorf("ReadConfig: want resource memory, got %q", cfg.Resource)
	}
	if _, err := ReadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("ReadConfig: missing file should fail")
	}
}

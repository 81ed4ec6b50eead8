package engine

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rtrace/timeline"
	"github.com/rtrace/timeline/aggregation"
	"github.com/rtrace/timeline/aggregation/totals"
	"github.com/rtrace/timeline/filter"
)

// makeTrace returns a trace with one allocation per second of a 16
// byte block, freed half a second later, up to 20s.
func makeTrace(t *testing.T) *timeline.Trace {
	tr := timeline.NewTrace()
	tr.RegisterResource("memory")
	tr.RegisterResource("file")
	tr.RegisterContext(1, "worker")
	seq := uint64(0)
	for ts := int64(0); ts <= 20000; ts += 1000 {
		id := fmt.Sprintf("0x%x", ts)
		seq++
		if err := tr.Add(timeline.Event{Sequence: seq, Timestamp: ts, Resource: "memory", ID: id, Size: 16, Kind: timeline.EventAlloc, Context: uint32(ts/1000) % 2}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if ts == 20000 {
			break
		}
		seq++
		if err := tr.Add(timeline.Event{Sequence: seq, Timestamp: ts + 500, Resource: "memory", ID: id, Kind: timeline.EventFree}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	seq++
	tr.Add(timeline.Event{Sequence: seq, Timestamp: 3000, Resource: "file", ID: "0x3", Size: 1, Kind: timeline.EventAlloc})
	return tr
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func Test_PrepareRelativeTimeFilter(t *testing.T) {
	tr := makeTrace(t)
	o := DefaultOptions()
	o.TimeFilter = &filter.TimeRange{Start: filter.TimeBound{Set: true, Value: -5000}}
	in, err := Prepare(tr, o, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if in.End != 20000 {
		t.Errorf("Prepare: want end 20000, got %d", in.End)
	}
	for _, res := range in.Resources {
		for _, ev := range res.Events {
			if ev.Timestamp < 15000 {
				t.Errorf("Prepare: %s event at %d passed a start of 15000", res.Name, ev.Timestamp)
			}
		}
		if !timeline.IsSorted(res.Events) {
			t.Errorf("Prepare: %s events not sorted", res.Name)
		}
	}
	if n := len(in.Resources[0].Events); n != 11 {
		t.Errorf("Prepare: want 11 memory events, got %d", n)
	}
	if len(in.Resources[1].Events) != 0 {
		t.Errorf("Prepare: file event at 3000 should be excluded")
	}
	if in.Resources[0].Overhead != 8 || in.Resources[1].Overhead != 0 {
		t.Errorf("Prepare: unexpected overheads %d %d", in.Resources[0].Overhead, in.Resources[1].Overhead)
	}
}

func Test_PrepareKeepsTrace(t *testing.T) {
	tr := timeline.NewTrace()
	tr.RegisterResource("memory")
	tr.Add(timeline.Event{Sequence: 2, Timestamp: 5, Resource: "memory", ID: "b", Size: 1, Kind: timeline.EventAlloc})
	tr.Add(timeline.Event{Sequence: 1, Timestamp: 5, Resource: "memory", ID: "a", Size: 1, Kind: timeline.EventAlloc})
	in, err := Prepare(tr, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if in.Resources[0].Events[0].ID != "a" {
		t.Errorf("Prepare: events should be sorted by sequence")
	}
	mem, _ := tr.Events("memory")
	if mem[0].ID != "b" {
		t.Errorf("Prepare: trace events must not be reordered")
	}
}

func Test_RunTotals(t *testing.T) {
	log, logs := observed()
	rep, err := Run(makeTrace(t), DefaultOptions(), log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Empty || rep.Mode != aggregation.ModeTotals {
		t.Fatalf("Run: unexpected report %+v", rep)
	}
	if len(rep.Summaries) != 2 {
		t.Fatalf("Run: want a summary per resource, got %d", len(rep.Summaries))
	}
	mem := rep.Summaries[0].(*totals.Summary)
	if mem.EndTotals.Count != 21 || mem.EndLeaks.Count != 1 || mem.EndLeaks.Size != 16 {
		t.Errorf("Run: memory totals %+v leaks %+v", mem.EndTotals, mem.EndLeaks)
	}
	if logs.FilterMessage("report generated").Len() != 1 {
		t.Errorf("Run: missing report log entry")
	}
	entries := logs.FilterMessage("resource prepared").All()
	if len(entries) != 2 {
		t.Fatalf("Run: want 2 debug entries, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["run"]; !ok {
		t.Errorf("Run: log entries should carry the run id")
	}
}

func Test_RunEmpty(t *testing.T) {
	log, logs := observed()
	o := DefaultOptions()
	o.Mode = aggregation.ModeActivity
	o.TimeFilter = &filter.TimeRange{Start: filter.TimeBound{Set: true, Value: 50000}}
	rep, err := Run(makeTrace(t), o, log)
	if err != nil {
		t.Fatalf("Run: no events in range must not be an error: %v", err)
	}
	if !rep.Empty || len(rep.Series) != 0 {
		t.Errorf("Run: want an empty report, got %+v", rep)
	}
	if logs.FilterMessage("no events in range").FilterField(zap.Stringer("mode", aggregation.ModeActivity)).Len() != 1 {
		t.Errorf("Run: missing no events log entry")
	}
}

func Test_RunPageLimit(t *testing.T) {
	log, logs := observed()
	o := DefaultOptions()
	o.Mode = aggregation.ModeLifetime
	o.PageCapacity = 4
	o.PageLimit = 2
	rep, err := Run(makeTrace(t), o, log)
	if err != nil {
		t.Fatalf("Run: degraded output must not be an error: %v", err)
	}
	// 21 memory intervals and 1 file interval.
	if len(rep.Pages) != 6 || !rep.PageLimitExceeded {
		t.Errorf("Run: want 6 pages over the limit, got %d %v", len(rep.Pages), rep.PageLimitExceeded)
	}
	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warn) != 1 || warn[0].ContextMap()["limit"] != int64(2) {
		t.Errorf("Run: want one page limit warning, got %v", warn)
	}
}

func Test_RunResourceFilter(t *testing.T) {
	o := DefaultOptions()
	o.Resource = "file"
	rep, err := Run(makeTrace(t), o, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Summaries) != 1 || rep.Summaries[0].ResourceName() != "file" {
		t.Errorf("Run: want only the file resource, got %v", rep.Summaries)
	}

	o.Resource = "socket"
	if _, err := Run(makeTrace(t), o, nil); !errors.Is(err, timeline.ErrUnknownResource) {
		t.Errorf("Run: want ErrUnknownResource, got %v", err)
	}
}

func Test_RunContextFilter(t *testing.T) {
	o := DefaultOptions()
	m := filter.ContextMask(1)
	o.ContextFilter = &m
	in, err := Prepare(makeTrace(t), o, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for _, ev := range in.Resources[0].Events {
		if ev.Context&1 == 0 {
			t.Errorf("Prepare: event outside context 1 passed: %+v", ev)
		}
	}
	if len(in.Contexts) != 3 {
		t.Errorf("Prepare: want all, none and one declared context, got %d", len(in.Contexts))
	}
}

func Test_RunBadMode(t *testing.T) {
	o := DefaultOptions()
	o.Mode = aggregation.ModeBad
	if _, err := Run(makeTrace(t), o, nil); !errors.Is(err, ErrNoAggregator) {
		t.Errorf("Run: want ErrNoAggregator, got %v", err)
	}
}

func Test_NewAggregator(t *testing.T) {
	for _, m := range []aggregation.Mode{aggregation.ModeTotals, aggregation.ModeActivity, aggregation.ModeLifetime} {
		a, err := NewAggregator(&Options{Mode: m})
		if err != nil {
			t.Errorf("NewAggregator(%v): %v", m, err)
			continue
		}
		if a.Mode() != m {
			t.Errorf("NewAggregator(%v): got aggregator for %v", m, a.Mode())
		}
	}
}

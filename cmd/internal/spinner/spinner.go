// Package spinner prints the progress of a long running step on a
// single terminal line.
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Option is a configuration option for the spinner.
type Option func(cfg *spinnerCfg)

// Format sets the format string of the progress line.
//
// The string must have exactly one verb in it to support
// a float64 value which is a percent completion.
func Format(ft string) Option {
	return func(cfg *spinnerCfg) {
		cfg.format = ft
	}
}

// Period sets the period between screen updates.
func Period(p time.Duration) Option {
	return func(cfg *spinnerCfg) {
		cfg.period = p
	}
}

// Output sets where the progress line is written. The default is
// standard error, which keeps standard output free for reports.
func Output(w io.Writer) Option {
	return func(cfg *spinnerCfg) {
		cfg.out = w
	}
}

type spinnerCfg struct {
	period time.Duration
	format string
	out    io.Writer
}

var state struct {
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Start starts the global spinner. sample is called once per period
// and must return the degree of progress between 0 and 1.
//
// Start panics if a spinner is already running.
func Start(sample func() float64, options ...Option) {
	cfg := spinnerCfg{
		period: time.Second,
		format: "Progress: %.1f%%",
		out:    os.Stderr,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.running {
		panic("tried to start spinner twice")
	}

	state.running = true
	state.done = make(chan struct{})
	begin := time.Now()
	go func() {
		t := time.NewTicker(cfg.period)
		defer t.Stop()
		for {
			fmt.Fprintf(cfg.out, cfg.format+" (%v)\r", sample()*100, time.Since(begin).Truncate(time.Second))
			select {
			case <-state.done:
				fmt.Fprintf(cfg.out, cfg.format+" (%v)\n", sample()*100, time.Since(begin).Truncate(time.Millisecond))
				close(state.done)
				return
			case <-t.C:
			}
		}
	}()
}

// Stop stops the running spinner after printing a final progress line.
// It does nothing if no spinner is running.
func Stop() {
	state.mu.Lock()
	if !state.running {
		state.mu.Unlock()
		return
	}
	done := state.done
	state.mu.Unlock()

	done <- struct{}{}
	<-done

	state.mu.Lock()
	state.running = false
	state.mu.Unlock()
}

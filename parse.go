// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultResource is the resource type events are attributed to when
// a trace declares no resource types at all.
const DefaultResource = "memory"

// binaryHandshake is the first byte of a binary sp-rtrace stream.
const binaryHandshake = 0xF0

const minShardSize = 64 << 10

const maxLineSize = 1 << 20

// Source is a resource trace source.
type Source interface {
	io.ReaderAt

	// Len returns the size of the trace in bytes.
	Len() int
}

// Parser contains the text trace parsing state.
type Parser struct {
	src    Source
	shards []shard
	done   atomic.Uint64
}

// shard is a line-aligned byte range of the source.
type shard struct {
	start, end int64
}

var (
	reCall     = regexp.MustCompile(`^([0-9]+)\.(?: :[0-9a-fA-F]+)?(?: @([0-9a-fA-F]+))?(?: \[([^\]]+)\])? ([^(<]+)(?:<([^>]+)>)?\(([^)]*)\)(?: = (0x[0-9a-fA-F]+))?`)
	reResource = regexp.MustCompile(`^<([0-9a-fA-F]+)> : (\S+) \(([^)]*)\)`)
	reContext  = regexp.MustCompile(`^@ ([0-9a-fA-F]+) : (.*)$`)
	reAddress  = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
)

type recordKind uint8

const (
	recResource recordKind = iota
	recContext
	recAlloc
	recFree
)

// record is one recognized trace line.
type record struct {
	kind      recordKind
	line      int
	index     uint64
	context   uint32
	timestamp int64
	resource  string
	id        string
	size      uint64
	name      string
}

type shardResult struct {
	records []record
	lines   int
}

// NewParser creates and initializes a new Parser given a Source.
//
// Initialization splits the source into line-aligned shards which
// are parsed concurrently by Parse.
func NewParser(r Source) (*Parser, error) {
	p := &Parser{src: r}
	size := int64(r.Len())
	if size == 0 {
		return p, nil
	}
	var first [1]byte
	if _, err := r.ReadAt(first[:], 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if first[0] == binaryHandshake {
		return nil, errors.New("binary traces are not supported, convert to text format first")
	}

	shards := int64(runtime.GOMAXPROCS(-1))
	if size/shards < minShardSize {
		shards = size / minShardSize
		if shards == 0 {
			shards = 1
		}
	}
	perShard := size / shards
	start := int64(0)
	for i := int64(1); i < shards && start < size; i++ {
		end, err := nextLine(r, i*perShard)
		if err != nil {
			return nil, fmt.Errorf("splitting trace: %v", err)
		}
		if end <= start {
			continue
		}
		p.shards = append(p.shards, shard{start: start, end: end})
		start = end
	}
	if start < size {
		p.shards = append(p.shards, shard{start: start, end: size})
	}
	return p, nil
}

// nextLine returns the offset of the first line starting at or after off.
func nextLine(r Source, off int64) (int64, error) {
	size := int64(r.Len())
	if off == 0 {
		return 0, nil
	}
	var buf [4096]byte
	// Start one byte early so a line starting exactly at off is kept.
	for pos := off - 1; pos < size; {
		n, err := r.ReadAt(buf[:], pos)
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			return pos + int64(i) + 1, nil
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		pos += int64(n)
	}
	return size, nil
}

// Progress returns the fraction of the trace parsed so far.
func (p *Parser) Progress() float64 {
	if len(p.shards) == 0 {
		return 1
	}
	return float64(p.done.Load()) / float64(len(p.shards))
}

// Parse parses the whole source into a Trace.
//
// Event timestamps are made relative to the first non-zero timestamp
// in the trace, which is stored as the trace offset. Events are kept
// in emission order; they are not sorted.
func (p *Parser) Parse() (*Trace, error) {
	results := make([]shardResult, len(p.shards))
	var eg errgroup.Group
	for i := range p.shards {
		i := i
		eg.Go(func() error {
			res, err := p.parseShard(p.shards[i])
			if err != nil {
				return err
			}
			results[i] = res
			p.done.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	t := NewTrace()
	haveOffset := false
	base := 0
	for i := range results {
		for _, rec := range results[i].records {
			line := base + rec.line
			switch rec.kind {
			case recResource:
				t.RegisterResource(rec.name)
			case recContext:
				t.RegisterContext(rec.context, rec.name)
			case recAlloc, recFree:
				if rec.resource == "" && len(t.resources) == 0 {
					t.RegisterResource(DefaultResource)
				}
				if !haveOffset && rec.timestamp != 0 {
					t.Offset = rec.timestamp
					haveOffset = true
				}
				ev := Event{
					Sequence: rec.index,
					Context:  rec.context,
					Resource: rec.resource,
					ID:       rec.id,
					Size:     rec.size,
					Kind:     EventAlloc,
				}
				if rec.kind == recFree {
					ev.Kind = EventFree
				}
				if rec.timestamp != 0 {
					ev.Timestamp = rec.timestamp - t.Offset
				}
				if err := t.Add(ev); err != nil {
					return nil, fmt.Errorf("line %d: %w", line+1, err)
				}
			}
		}
		base += results[i].lines
	}
	return t, nil
}

func (p *Parser) parseShard(s shard) (shardResult, error) {
	buf := make([]byte, s.end-s.start)
	if n, err := p.src.ReadAt(buf, s.start); n < len(buf) {
		return shardResult{}, fmt.Errorf("reading trace at offset %d: %v", s.start, err)
	}
	var res shardResult
	sc := bufio.NewScanner(bytes.NewReader(buf))
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for ; sc.Scan(); res.lines++ {
		rec, ok, err := parseLine(sc.Text())
		if err != nil {
			return shardResult{}, fmt.Errorf("parsing %q: %v", sc.Text(), err)
		}
		if !ok {
			continue
		}
		rec.line = res.lines
		res.records = append(res.records, rec)
	}
	if err := sc.Err(); err != nil {
		return shardResult{}, fmt.Errorf("scanning trace: %v", err)
	}
	return res, nil
}

// parseLine recognizes a single trace line. Lines which are not
// resource, context or call records are skipped.
func parseLine(line string) (record, bool, error) {
	if m := reCall.FindStringSubmatch(line); m != nil {
		rec := record{kind: recAlloc, resource: m[5]}
		var err error
		if rec.index, err = strconv.ParseUint(m[1], 10, 64); err != nil {
			return record{}, false, fmt.Errorf("invalid index: %v", err)
		}
		if m[2] != "" {
			ctx, err := strconv.ParseUint(m[2], 16, 32)
			if err != nil {
				return record{}, false, fmt.Errorf("invalid context: %v", err)
			}
			rec.context = uint32(ctx)
		}
		if m[3] != "" {
			if rec.timestamp, err = ParseTimestamp(m[3]); err != nil {
				return record{}, false, err
			}
		}
		if m[7] != "" {
			rec.id = m[7]
			if rec.size, err = strconv.ParseUint(m[6], 10, 64); err != nil {
				return record{}, false, fmt.Errorf("invalid size: %v", err)
			}
			return rec, true, nil
		}
		if !reAddress.MatchString(m[6]) {
			return record{}, false, nil
		}
		rec.kind = recFree
		rec.id = m[6]
		return rec, true, nil
	}
	if m := reResource.FindStringSubmatch(line); m != nil {
		return record{kind: recResource, name: m[2]}, true, nil
	}
	if m := reContext.FindStringSubmatch(line); m != nil {
		mask, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			return record{}, false, fmt.Errorf("invalid context mask: %v", err)
		}
		return record{kind: recContext, context: uint32(mask), name: m[2]}, true, nil
	}
	return record{}, false, nil
}

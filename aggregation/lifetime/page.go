package lifetime

import "github.com/rtrace/timeline/aggregation"

// pager collects intervals into pages of bounded capacity.
type pager struct {
	capacity int
	pages    []*aggregation.Page
	cur      *aggregation.Page
}

func newPager(capacity int) *pager {
	if capacity < 1 {
		capacity = DefaultPageCapacity
	}
	return &pager{capacity: capacity}
}

// add appends an interval to the current page, starting a new page
// once the current one is full.
func (p *pager) add(iv aggregation.Interval) {
	if p.cur == nil || len(p.cur.Intervals) == p.capacity {
		p.cur = &aggregation.Page{Intervals: make([]aggregation.Interval, 0, p.capacity)}
		p.pages = append(p.pages, p.cur)
	}
	p.cur.Intervals = append(p.cur.Intervals, iv)
}

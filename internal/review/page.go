package review

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"reviewdesk/internal/auditapi"

	"github.com/benbjohnson/clock"
)

const (
	DefaultPageSize    = 20
	DefaultSettleDelay = 500 * time.Millisecond
)

// PageState is a snapshot of the queue page.
type PageState struct {
	PageNum  int    `json:"pageNum"`
	PageSize int    `json:"pageSize"`
	Total    int64  `json:"total"`
	Items    []Item `json:"items"`
	Loading  bool   `json:"loading"`
}

// QueuePage holds the paging state of the active category and runs the
// fetch cycle against its list endpoint. Every fetch carries a sequence
// number; a response that settles after a newer fetch was issued is dropped.
type QueuePage struct {
	mu     sync.Mutex
	state  PageState
	issued uint64
	closed bool

	clock    clock.Clock
	settle   time.Duration
	notifier Notifier
	onChange func()
}

func newQueuePage(clk clock.Clock, pageSize int, settle time.Duration, notifier Notifier, onChange func()) *QueuePage {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &QueuePage{
		state:    PageState{PageNum: 1, PageSize: pageSize},
		clock:    clk,
		settle:   settle,
		notifier: notifier,
		onChange: onChange,
	}
}

// Fetch loads the current page of b's category. On failure the page is
// emptied, the moderator is notified and the error is returned.
func (p *QueuePage) Fetch(ctx context.Context, b Binding) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.issued++
	seq := p.issued
	pageNum, pageSize := p.state.PageNum, p.state.PageSize
	p.state.Loading = true
	p.mu.Unlock()
	p.changed()

	logPrefix := fmt.Sprintf("[QueuePage Cat:%s Seq:%d]", b.Category, seq)
	items, total, err := b.List(ctx, pageNum, pageSize)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.Printf("%s Session closed, dropping response", logPrefix)
		return nil
	}
	if seq < p.issued {
		latest := p.issued
		p.mu.Unlock()
		log.Printf("%s Dropping stale response, latest fetch is %d", logPrefix, latest)
		return nil
	}
	if err != nil {
		p.state.Items = nil
		p.state.Total = 0
	} else {
		if len(items) > pageSize {
			items = items[:pageSize]
		}
		p.state.Items = items
		p.state.Total = total
	}
	p.mu.Unlock()

	p.clock.AfterFunc(p.settle, func() { p.settleLoading(seq) })
	p.changed()

	if err != nil {
		log.Printf("%s List failed: %v", logPrefix, err)
		p.notifier.Notify(ctx, Notice{
			Level:     LevelError,
			MessageID: MsgListFailed,
			Data:      map[string]interface{}{"Category": b.Category.Key(), "Message": auditapi.Message(err)},
		})
		return fmt.Errorf("failed to list pending %s: %w", b.Category, err)
	}
	return nil
}

// SetPage moves to page n and fetches it.
func (p *QueuePage) SetPage(ctx context.Context, b Binding, n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	p.mu.Lock()
	p.state.PageNum = n
	p.mu.Unlock()
	return p.Fetch(ctx, b)
}

// SetPageSize changes the page size and fetches again.
func (p *QueuePage) SetPageSize(ctx context.Context, b Binding, n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	p.mu.Lock()
	p.state.PageSize = n
	p.mu.Unlock()
	return p.Fetch(ctx, b)
}

// State returns a copy of the current page state.
func (p *QueuePage) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.state
	state.Items = append([]Item(nil), p.state.Items...)
	return state
}

// Find returns the row on the current page whose identity is id.
func (p *QueuePage) Find(b Binding, id int64) (Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.state.Items {
		if rowID, ok := b.Identity(row); ok && rowID == id {
			return row, true
		}
	}
	return nil, false
}

// reset returns to page 1 and drops rows of the previous category.
func (p *QueuePage) reset() {
	p.mu.Lock()
	p.state.PageNum = 1
	p.state.Items = nil
	p.state.Total = 0
	p.mu.Unlock()
}

func (p *QueuePage) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *QueuePage) settleLoading(seq uint64) {
	p.mu.Lock()
	if p.closed || seq != p.issued || !p.state.Loading {
		p.mu.Unlock()
		return
	}
	p.state.Loading = false
	p.mu.Unlock()
	p.changed()
}

func (p *QueuePage) changed() {
	if p.onChange != nil {
		p.onChange()
	}
}

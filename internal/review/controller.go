package review

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Clock           clock.Clock
	Category        Category
	PageSize        int
	RefreshInterval time.Duration
	SettleDelay     time.Duration
	Visibility      *Visibility
}

// Snapshot is the reactive state a front-end renders.
type Snapshot struct {
	Category      Category         `json:"category"`
	Columns       []string         `json:"columns"`
	Page          PageState        `json:"page"`
	Selection     []int64          `json:"selection"`
	Pending       *PendingDecision `json:"pending,omitempty"`
	Detail        *DetailView      `json:"detail,omitempty"`
	DetailLoading bool             `json:"detailLoading"`
	Visible       bool             `json:"visible"`
	Refreshing    bool             `json:"refreshing"`
}

// Controller is one moderator's review session. It owns the queue page,
// selection, decision orchestrator, detail aggregator and refresh
// scheduler, and ties their lifecycle to Mount and Close.
type Controller struct {
	mu        sync.Mutex
	active    Category
	lifetime  context.Context
	mounted   bool
	closed    bool
	unobserve func()

	registry   *Registry
	notifier   Notifier
	visibility *Visibility
	page       *QueuePage
	selection  *Selection
	decisions  *Orchestrator
	details    *DetailAggregator
	scheduler  *Scheduler

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int
}

// NewController creates an unmounted controller. A nil notifier discards
// notices.
func NewController(registry *Registry, notifier Notifier, opts Options) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Visibility == nil {
		opts.Visibility = NewVisibility(true)
	}

	c := &Controller{
		active:     opts.Category,
		lifetime:   context.Background(),
		registry:   registry,
		notifier:   notifier,
		visibility: opts.Visibility,
		listeners:  make(map[int]func(Snapshot)),
	}
	c.page = newQueuePage(opts.Clock, opts.PageSize, opts.SettleDelay, notifier, c.publish)
	c.selection = NewSelection(c.publish)
	c.decisions = newOrchestrator(registry, c.selection, c.Search, opts.Clock, notifier, c.publish)
	c.details = newDetailAggregator(registry, notifier, c.publish)
	c.scheduler = NewScheduler(opts.Clock, opts.RefreshInterval, c.visibility.Visible, c.scheduledRefresh)
	return c
}

// Mount performs the first fetch, starts the refresh scheduler and begins
// observing visibility. ctx bounds the background refreshes and should
// live as long as the session.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.lifetime = ctx
	c.unobserve = c.visibility.Observe(c.scheduler.HandleVisibility)
	c.mu.Unlock()

	log.Printf("[Controller Cat:%s] Mounted", c.Category())
	c.scheduler.Start()
	return c.page.Fetch(ctx, c.binding())
}

// Close stops the scheduler, detaches the visibility observer and drops
// the results of fetches still in flight. It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unobserve := c.unobserve
	c.unobserve = nil
	c.mu.Unlock()

	c.scheduler.Close()
	if unobserve != nil {
		unobserve()
	}
	c.page.close()
	c.decisions.cancelPending()
	log.Printf("[Controller Cat:%s] Closed", c.Category())
}

// Category returns the active category.
func (c *Controller) Category() Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Visibility returns the visibility flag the controller observes.
func (c *Controller) Visibility() *Visibility { return c.visibility }

// Search re-fetches the current page.
func (c *Controller) Search(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.page.Fetch(ctx, c.binding())
}

func (c *Controller) SetPage(ctx context.Context, n int) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.page.SetPage(ctx, c.binding(), n)
}

func (c *Controller) SetPageSize(ctx context.Context, n int) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.page.SetPageSize(ctx, c.binding(), n)
}

// SwitchCategory makes cat active: back to page 1, selection cleared,
// any pending decision cancelled, the scheduler restarted and one fetch
// issued for cat.
func (c *Controller) SwitchCategory(ctx context.Context, cat Category) error {
	b := c.registry.Binding(cat)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.active = cat
	c.mu.Unlock()

	log.Printf("[Controller Cat:%s] Switching category", cat)
	c.decisions.cancelPending()
	c.page.reset()
	c.selection.Clear()
	c.scheduler.Start()
	return c.page.Fetch(ctx, b)
}

// SetSelection replaces the selected ids.
func (c *Controller) SetSelection(ids []int64) { c.selection.Set(ids) }

// ToggleSelection flips id and reports whether it is now selected.
func (c *Controller) ToggleSelection(id int64) bool { return c.selection.Toggle(id) }

func (c *Controller) ClearSelection() { c.selection.Clear() }

// Find returns the row with id on the current page.
func (c *Controller) Find(id int64) (Item, bool) {
	return c.page.Find(c.binding(), id)
}

// Begin starts a single-row decision on the row with id on the current page.
func (c *Controller) Begin(action Action, id int64) (*PendingDecision, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	row, ok := c.Find(id)
	if !ok {
		return nil, ErrUnknownItem
	}
	return c.decisions.BeginRow(action, c.Category(), row)
}

// BeginRow starts a single-row decision on row.
func (c *Controller) BeginRow(action Action, row Item) (*PendingDecision, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.decisions.BeginRow(action, c.Category(), row)
}

// BeginBatch starts a decision on the current selection.
func (c *Controller) BeginBatch(ctx context.Context, action Action) (*PendingDecision, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.decisions.BeginBatch(ctx, action, c.Category())
}

// Confirm executes the pending decision id. See Orchestrator.Confirm.
func (c *Controller) Confirm(ctx context.Context, id string, reason *string) (*Outcome, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.decisions.Confirm(ctx, id, reason)
}

// Cancel abandons the pending decision id.
func (c *Controller) Cancel(id string) error { return c.decisions.Cancel(id) }

// Pending returns the decision awaiting confirmation, or nil.
func (c *Controller) Pending() *PendingDecision { return c.decisions.Pending() }

// ViewDetail loads the detail panel for row.
func (c *Controller) ViewDetail(ctx context.Context, row Item) (*DetailView, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.details.Load(ctx, c.Category(), row)
}

// CloseDetail dismisses the detail panel.
func (c *Controller) CloseDetail() { c.details.Dismiss() }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	cat := c.Category()
	return Snapshot{
		Category:      cat,
		Columns:       c.registry.Binding(cat).Columns,
		Page:          c.page.State(),
		Selection:     c.selection.IDs(),
		Pending:       c.decisions.Pending(),
		Detail:        c.details.View(),
		DetailLoading: c.details.Loading(),
		Visible:       c.visibility.Visible(),
		Refreshing:    c.scheduler.Running(),
	}
}

// Subscribe calls fn with a fresh snapshot after every state change until
// the returned function is called. fn runs in the goroutine that made the
// change and must not block.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Controller) publish() {
	c.listenersMu.Lock()
	if len(c.listeners) == 0 {
		c.listenersMu.Unlock()
		return
	}
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.Unlock()

	snapshot := c.Snapshot()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (c *Controller) scheduledRefresh() {
	c.mu.Lock()
	ctx := c.lifetime
	c.mu.Unlock()
	if err := c.Search(ctx); err != nil {
		log.Printf("[Controller Cat:%s] Scheduled refresh failed: %v", c.Category(), err)
	}
}

func (c *Controller) binding() Binding { return c.registry.Binding(c.Category()) }

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package review

import (
	"context"
	"fmt"
	"log"
	"sync"

	"reviewdesk/internal/auditapi"
)

// DetailView is the composite record shown in the detail panel. Primary is
// a *auditapi.SongDetail for songs and the (parent) *auditapi.PostDetail for
// posts and replies. Subject is the inspected row itself.
type DetailView struct {
	Category Category             `json:"category"`
	Primary  interface{}          `json:"primary"`
	Subject  Item                 `json:"subject"`
	Replies  []auditapi.ReplyItem `json:"replies"`
}

// Song returns the primary song record.
func (v *DetailView) Song() (*auditapi.SongDetail, bool) {
	song, ok := v.Primary.(*auditapi.SongDetail)
	return song, ok
}

// Post returns the primary post record.
func (v *DetailView) Post() (*auditapi.PostDetail, bool) {
	post, ok := v.Primary.(*auditapi.PostDetail)
	return post, ok
}

// Reply returns the inspected reply when the view is for a reply row.
func (v *DetailView) Reply() (auditapi.ReplyItem, bool) {
	reply, ok := v.Subject.(auditapi.ReplyItem)
	return reply, ok
}

// DetailAggregator loads detail views on demand. Each load replaces the
// previous view wholesale; a load that finishes after a newer one started
// does not replace the newer view.
type DetailAggregator struct {
	mu      sync.Mutex
	seq     uint64
	loading bool
	view    *DetailView

	registry *Registry
	notifier Notifier
	onChange func()
}

func newDetailAggregator(registry *Registry, notifier Notifier, onChange func()) *DetailAggregator {
	return &DetailAggregator{registry: registry, notifier: notifier, onChange: onChange}
}

// Load fetches the primary record for row and, for threaded categories, the
// first page of the post's replies. A failed reply listing only leaves the
// replies empty; a failed primary fetch leaves no view and is returned.
func (d *DetailAggregator) Load(ctx context.Context, c Category, row Item) (*DetailView, error) {
	b := d.registry.Binding(c)
	primaryID, ok := b.PrimaryID(row)
	if !ok {
		return nil, ErrUnknownItem
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.loading = true
	d.view = nil
	d.mu.Unlock()
	d.changed()

	defer func() {
		d.mu.Lock()
		if seq == d.seq {
			d.loading = false
		}
		d.mu.Unlock()
		d.changed()
	}()

	logPrefix := fmt.Sprintf("[Detail Cat:%s ID:%d]", c, primaryID)
	primary, err := b.Detail(ctx, primaryID)
	if err == nil && primary == nil {
		err = auditapi.ErrEmptyPayload
	}
	if err != nil {
		log.Printf("%s Primary fetch failed: %v", logPrefix, err)
		d.notifier.Notify(ctx, Notice{
			Level:     LevelError,
			MessageID: MsgDetailFailed,
			Data:      map[string]interface{}{"Message": auditapi.Message(err)},
		})
		return nil, fmt.Errorf("failed to load %s detail %d: %w", c, primaryID, err)
	}

	view := &DetailView{Category: c, Primary: primary, Subject: row, Replies: []auditapi.ReplyItem{}}
	if b.Threaded {
		replies, err := d.registry.Replies(ctx, primaryID, 1, ReplyPageSize)
		if err != nil {
			log.Printf("%s Reply listing failed, showing none: %v", logPrefix, err)
		} else if replies != nil {
			view.Replies = replies
		}
	}

	d.mu.Lock()
	if seq == d.seq {
		d.view = view
	} else {
		log.Printf("%s Superseded by a newer detail request", logPrefix)
	}
	d.mu.Unlock()
	return view, nil
}

// View returns the current detail view, or nil when the panel is closed.
func (d *DetailAggregator) View() *DetailView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

func (d *DetailAggregator) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Dismiss closes the panel.
func (d *DetailAggregator) Dismiss() {
	d.mu.Lock()
	d.seq++
	d.view = nil
	d.loading = false
	d.mu.Unlock()
	d.changed()
}

func (d *DetailAggregator) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}

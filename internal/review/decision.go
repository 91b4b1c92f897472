package review

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"reviewdesk/internal/auditapi"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// MaxReasonLength is the longest accepted reject reason, in characters.
const MaxReasonLength = 500

// Action is a moderation decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction resolves "approve" or "reject".
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}

// PromptState is the confirmation state of a decision.
type PromptState int

const (
	StatePendingConfirmation PromptState = iota
	StateConfirmed
	StateCancelled
)

func (s PromptState) String() string {
	switch s {
	case StatePendingConfirmation:
		return "pending_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s PromptState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PendingDecision is a decision waiting for the moderator's confirmation
// (approve) or reason (reject).
type PendingDecision struct {
	ID        string      `json:"id"`
	Action    Action      `json:"action"`
	Category  Category    `json:"category"`
	Targets   []int64     `json:"targets"`
	Batch     bool        `json:"batch"`
	State     PromptState `json:"state"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Outcome describes a confirmed decision after every request settled.
type Outcome struct {
	DecisionID string   `json:"decisionId"`
	Action     Action   `json:"action"`
	Category   Category `json:"category"`
	Targets    []int64  `json:"targets"`
	Batch      bool     `json:"batch"`
	Reason     *string  `json:"reason"`
	Processed  int      `json:"processed"`
	Failed     int      `json:"failed"`
}

// ValidateReason checks a reject reason before it is accepted.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return ErrReasonTooLong
	}
	return nil
}

// Orchestrator runs approve and reject decisions. At most one decision is
// pending at a time; beginning another cancels it.
type Orchestrator struct {
	mu      sync.Mutex
	pending *PendingDecision

	registry  *Registry
	selection *Selection
	refresh   func(ctx context.Context) error
	clock     clock.Clock
	notifier  Notifier
	onChange  func()
}

func newOrchestrator(registry *Registry, selection *Selection, refresh func(context.Context) error, clk clock.Clock, notifier Notifier, onChange func()) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		selection: selection,
		refresh:   refresh,
		clock:     clk,
		notifier:  notifier,
		onChange:  onChange,
	}
}

// BeginRow starts a decision on a single row of category c.
func (o *Orchestrator) BeginRow(action Action, c Category, row Item) (*PendingDecision, error) {
	id, ok := o.registry.Binding(c).Identity(row)
	if !ok {
		return nil, ErrUnknownItem
	}
	return o.begin(action, c, []int64{id}, false), nil
}

// BeginBatch starts a decision on the current selection. An empty selection
// is rejected with a warning and nothing else happens.
func (o *Orchestrator) BeginBatch(ctx context.Context, action Action, c Category) (*PendingDecision, error) {
	targets := o.selection.IDs()
	if len(targets) == 0 {
		o.notifier.Notify(ctx, Notice{Level: LevelWarning, MessageID: MsgEmptySelection})
		return nil, ErrEmptySelection
	}
	return o.begin(action, c, targets, true), nil
}

func (o *Orchestrator) begin(action Action, c Category, targets []int64, batch bool) *PendingDecision {
	d := &PendingDecision{
		ID:        ulid.Make().String(),
		Action:    action,
		Category:  c,
		Targets:   targets,
		Batch:     batch,
		State:     StatePendingConfirmation,
		CreatedAt: o.clock.Now(),
	}

	o.mu.Lock()
	if o.pending != nil {
		log.Printf("[Decision %s] Superseded by %s", o.pending.ID, d.ID)
		o.pending.State = StateCancelled
	}
	o.pending = d
	o.mu.Unlock()
	o.changed()

	copied := *d
	return &copied
}

// Pending returns a copy of the pending decision, or nil.
func (o *Orchestrator) Pending() *PendingDecision {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	copied := *o.pending
	copied.Targets = append([]int64(nil), o.pending.Targets...)
	return &copied
}

// Cancel abandons decision id without side effects.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	if o.pending == nil || o.pending.ID != id {
		o.mu.Unlock()
		return ErrDecisionNotPending
	}
	o.pending.State = StateCancelled
	o.pending = nil
	o.mu.Unlock()
	log.Printf("[Decision %s] Cancelled", id)
	o.changed()
	return nil
}

func (o *Orchestrator) cancelPending() {
	o.mu.Lock()
	d := o.pending
	if d != nil {
		d.State = StateCancelled
		o.pending = nil
	}
	o.mu.Unlock()
	if d != nil {
		log.Printf("[Decision %s] Cancelled by session change", d.ID)
		o.changed()
	}
}

// Confirm executes decision id. For rejects, a nil reason sends no reason
// and a non-nil one is validated, trimmed and sent even when empty. An
// invalid reason leaves the decision pending.
func (o *Orchestrator) Confirm(ctx context.Context, id string, reason *string) (*Outcome, error) {
	o.mu.Lock()
	d := o.pending
	if d == nil || d.ID != id {
		o.mu.Unlock()
		return nil, ErrDecisionNotPending
	}

	var sendReason *string
	if d.Action == ActionReject && reason != nil {
		if err := ValidateReason(*reason); err != nil {
			o.mu.Unlock()
			o.notifier.Notify(ctx, Notice{
				Level:     LevelWarning,
				MessageID: MsgReasonTooLong,
				Data:      map[string]interface{}{"Limit": MaxReasonLength},
			})
			return nil, err
		}
		trimmed := strings.TrimSpace(*reason)
		sendReason = &trimmed
	}

	d.State = StateConfirmed
	o.pending = nil
	decision := *d
	o.mu.Unlock()
	o.changed()

	return o.execute(ctx, decision, sendReason)
}

func (o *Orchestrator) execute(ctx context.Context, d PendingDecision, reason *string) (*Outcome, error) {
	logPrefix := fmt.Sprintf("[Decision %s %s %s]", d.ID, d.Action, d.Category)
	binding := o.registry.Binding(d.Category)

	errs := make([]error, len(d.Targets))
	var g errgroup.Group
	for i, id := range d.Targets {
		g.Go(func() error {
			var err error
			if d.Action == ActionApprove {
				err = binding.Approve(ctx, id)
			} else {
				err = binding.Reject(ctx, id, reason)
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s %d: %w", d.Category, id, err)
			}
			return errs[i]
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}

	outcome := &Outcome{
		DecisionID: d.ID,
		Action:     d.Action,
		Category:   d.Category,
		Targets:    d.Targets,
		Batch:      d.Batch,
		Reason:     reason,
		Processed:  len(d.Targets) - len(failed),
		Failed:     len(failed),
	}

	if len(failed) > 0 {
		log.Printf("%s %d of %d request(s) failed: %v", logPrefix, len(failed), len(d.Targets), failed[0])
		o.notifier.Notify(ctx, Notice{
			Level:     LevelError,
			MessageID: MsgDecisionFailed,
			Data: map[string]interface{}{
				"Action":  string(d.Action),
				"Failed":  len(failed),
				"Total":   len(d.Targets),
				"Message": auditapi.Message(failed[0]),
			},
		})
		return outcome, &BatchError{Action: d.Action, Total: len(d.Targets), Errs: failed}
	}

	log.Printf("%s %d item(s) processed", logPrefix, len(d.Targets))
	o.notifier.Notify(ctx, Notice{
		Level:     LevelSuccess,
		MessageID: MsgDecisionSucceeded,
		Data:      map[string]interface{}{"Action": string(d.Action), "Count": len(d.Targets)},
	})
	if err := o.refresh(ctx); err != nil {
		log.Printf("%s Refresh after decision failed: %v", logPrefix, err)
	}
	if d.Batch {
		o.selection.Clear()
	}
	return outcome, nil
}

func (o *Orchestrator) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}

package review

import "context"

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message IDs of the notices raised by the queue. Front-ends localize them.
const (
	MsgListFailed        = "MsgQueueListFailed"
	MsgDecisionSucceeded = "MsgDecisionSucceeded"
	MsgDecisionFailed    = "MsgDecisionFailed"
	MsgEmptySelection    = "MsgEmptySelection"
	MsgReasonTooLong     = "MsgReasonTooLong"
	MsgDetailFailed      = "MsgDetailFailed"
)

// Notice is a non-blocking message for the moderator.
type Notice struct {
	Level     Level                  `json:"level"`
	MessageID string                 `json:"messageId"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers notices to the moderator's front-end.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

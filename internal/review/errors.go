package review

import (
	"errors"
	"fmt"

	"reviewdesk/internal/auditapi"
)

// ErrValidation marks input rejected locally, before any request is sent.
var ErrValidation = errors.New("validation failed")

var (
	ErrEmptySelection     = fmt.Errorf("%w: no items selected", ErrValidation)
	ErrReasonTooLong      = fmt.Errorf("%w: reason is longer than %d characters", ErrValidation, MaxReasonLength)
	ErrInvalidPage        = fmt.Errorf("%w: page number and page size must be at least 1", ErrValidation)
	ErrUnknownItem        = fmt.Errorf("%w: item is not on the current page", ErrValidation)
	ErrDecisionNotPending = fmt.Errorf("%w: decision is not pending", ErrValidation)
	ErrClosed             = errors.New("review session is closed")
)

// ErrorKind groups failures by how they are reported to the moderator.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindServerRejection
	KindTransport
	KindPartialBatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindServerRejection:
		return "server_rejection"
	case KindTransport:
		return "transport"
	case KindPartialBatch:
		return "partial_batch"
	}
	return "unknown"
}

// BatchError reports a decision in which at least one request failed.
// The requests that succeeded are not rolled back.
type BatchError struct {
	Action Action
	Total  int
	Errs   []error
}

func (e *BatchError) Failed() int { return len(e.Errs) }

func (e *BatchError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("%s failed", e.Action)
	}
	return fmt.Sprintf("%s failed for %d of %d item(s): %v", e.Action, len(e.Errs), e.Total, e.Errs[0])
}

func (e *BatchError) Unwrap() []error { return e.Errs }

// Classify maps an error returned by this package to its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		if batchErr.Failed() < batchErr.Total {
			return KindPartialBatch
		}
		if len(batchErr.Errs) > 0 {
			return Classify(batchErr.Errs[0])
		}
	}
	if errors.Is(err, ErrValidation) {
		return KindValidation
	}
	var serverErr *auditapi.ServerError
	if errors.As(err, &serverErr) {
		return KindServerRejection
	}
	return KindTransport
}

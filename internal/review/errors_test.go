package review

import (
	"errors"
	"fmt"
	"testing"

	"reviewdesk/internal/auditapi"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	serverErr := &auditapi.ServerError{Code: 500, Message: "boom"}
	transportErr := errors.New("i/o timeout")

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Nil", nil, KindNone},
		{"Validation", ErrReasonTooLong, KindValidation},
		{"WrappedValidation", fmt.Errorf("confirm: %w", ErrEmptySelection), KindValidation},
		{"Server", fmt.Errorf("list: %w", serverErr), KindServerRejection},
		{"HTTP", &auditapi.HTTPError{Method: "GET", Path: "/x", Status: 502}, KindTransport},
		{"Transport", transportErr, KindTransport},
		{"Partial", &BatchError{Action: ActionApprove, Total: 3, Errs: []error{transportErr}}, KindPartialBatch},
		{"AllFailedServer", &BatchError{Action: ActionReject, Total: 1, Errs: []error{serverErr}}, KindServerRejection},
		{"AllFailedTransport", &BatchError{Action: ActionReject, Total: 2, Errs: []error{transportErr, transportErr}}, KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestBatchError(t *testing.T) {
	cause := errors.New("timeout")
	err := &BatchError{Action: ActionApprove, Total: 3, Errs: []error{cause}}
	assert.Equal(t, 1, err.Failed())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "1 of 3")
}

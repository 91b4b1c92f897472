package auditapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// CodeSuccess is the envelope code of a successful call.
const CodeSuccess = 0

// ErrEmptyPayload is returned when a successful envelope carries no data
// where a record was expected.
var ErrEmptyPayload = errors.New("response carried no data")

// Envelope is the {code,message,data} wrapper of every API response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Envelope) hasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ServerError is a well-formed envelope whose code is not CodeSuccess.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request (code %d): %s", e.Code, e.Message)
}

// HTTPError is a non-2xx response. Message is taken from the body's
// envelope when it has one.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Message extracts the text a moderator should see for err: the server's
// own message when there is one, the error text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Message != "" {
		return serverErr.Message
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return http.StatusText(httpErr.Status)
	}
	return err.Error()
}

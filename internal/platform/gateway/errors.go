package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Kind classifies why a remote operation failed.
type Kind string

const (
	KindTransport Kind = "transport"
	KindHTTP      Kind = "http"
	KindShape     Kind = "shape"
	KindDecode    Kind = "decode"
)

// ErrEmptyBody is wrapped by shape errors raised when a single-entity
// response carried no body at all.
var ErrEmptyBody = errors.New("response body is empty")

// RemoteOperationError is the single failure type produced by the gateway.
// Status is zero when no HTTP response was received.
type RemoteOperationError struct {
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
	Path    string `json:"path,omitempty"`
	Err     error  `json:"-"`
}

func (e *RemoteOperationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %d: %s", e.Op, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// UserMessage is the backend's own wording, suitable for display.
func (e *RemoteOperationError) UserMessage() string { return e.Message }

// AsRemote extracts a RemoteOperationError from err's chain.
func AsRemote(err error) (*RemoteOperationError, bool) {
	var re *RemoteOperationError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HTTPStatus returns the status a UI-facing handler should answer with for
// err: the backend's own status for HTTP failures, 502 for transport and
// body failures, 500 otherwise.
func HTTPStatus(err error) int {
	re, ok := AsRemote(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if re.Kind == KindHTTP && re.Status >= 400 {
		return re.Status
	}
	return http.StatusBadGateway
}

func transportError(op, path string, err error) *RemoteOperationError {
	return &RemoteOperationError{
		Kind:    KindTransport,
		Message: describeTransportError(err),
		Op:      op,
		Path:    path,
		Err:     err,
	}
}

// describeTransportError keeps the transport message but names the usual
// cause so the operator does not have to guess.
func describeTransportError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused: " + msg
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return "request timed out: " + msg
	case strings.Contains(msg, "no such host"):
		return "backend host not found: " + msg
	case strings.Contains(msg, "EOF"):
		return "connection closed before a response was received: " + msg
	}
	return msg
}

func httpError(op, path string, status int, body []byte) *RemoteOperationError {
	return &RemoteOperationError{
		Kind:    KindHTTP,
		Status:  status,
		Message: failureMessage(status, body),
		Op:      op,
		Path:    path,
	}
}

// failureMessage prefers the body's "message" field, then the raw body text,
// then the status text.
func failureMessage(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(trimmed, &parsed); err == nil {
			if m, ok := parsed["message"].(string); ok && m != "" {
				return m
			}
		}
		return string(trimmed)
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("request failed with status %d (%s)", status, text)
	}
	return fmt.Sprintf("request failed with status %d", status)
}

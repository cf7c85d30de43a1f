package octane

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotAuthenticated is returned when an operation is invoked before a
// successful Authenticate call.
var ErrNotAuthenticated = errors.New("octane: not authenticated, call Authenticate first")

// ConfigError reports a defect in the client configuration or the route
// document. It is fatal at construction or compile time and never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "octane: config: " + e.Message
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports a parameter that failed schema validation. The
// call fails before any request is sent.
type ValidationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("octane: missing required parameter %q", e.Param)
	}
	return fmt.Sprintf("octane: invalid value for parameter %q: %s", e.Param, stringifyValue(e.Value))
}

func stringifyValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

// StatusError is an HTTP-level failure: any response with status >= 400,
// carrying enough structure for callers to branch without string-parsing.
type StatusError struct {
	Code    int
	Status  string // human-readable reason phrase
	Message string
	Body    []byte
	Headers http.Header
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("octane: HTTP %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("octane: HTTP %d %s", e.Code, e.Status)
}

// Unauthorized reports whether the failure is a 401.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized
}

// NewStatusError builds a StatusError from a response, pulling the message
// out of the server's {code, status, message} error payload when present.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	e := &StatusError{
		Code:    resp.StatusCode,
		Status:  http.StatusText(resp.StatusCode),
		Body:    body,
		Headers: resp.Header,
	}
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			e.Message = payload.Message
		} else if payload.Description != "" {
			e.Message = payload.Description
		}
	}
	if e.Message == "" && len(body) > 0 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if !strings.HasPrefix(msg, "<") { // skip HTML error pages
			e.Message = msg
		}
	}
	return e
}

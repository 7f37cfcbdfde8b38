package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for HTTP status classification. Match with errors.Is.
var (
	ErrBadRequest   = errors.New("backend: bad request")
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrNotFound     = errors.New("backend: not found")
	ErrConflict     = errors.New("backend: conflict")
	ErrValidation   = errors.New("backend: validation failed")
	ErrThrottled    = errors.New("backend: throttled")
	ErrServerError  = errors.New("backend: server error")
	ErrUnexpected   = errors.New("backend: unexpected response")
)

// APIError carries the status code and the human-readable message the backend returned.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401/403-class failure, one that invalidates the credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Message extracts the single string shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var msgErr *messageError
	if errors.As(err, &msgErr) {
		return msgErr.msg
	}
	return err.Error()
}

// messageError is a failure reported inside a 2xx body (success=false).
type messageError struct {
	msg string
	err error
}

func (e *messageError) Error() string { return e.msg }
func (e *messageError) Unwrap() error { return e.err }

func failed(msg string) error {
	return &messageError{msg: msg, err: ErrUnexpected}
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}
		if code >= http.StatusBadRequest {
			return ErrUnexpected
		}
		return nil
	}
}

// errorBody covers the shapes the backend uses for failures. Detail is a string or a list of validation entries.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// newAPIError builds an [APIError], preferring detail, then message, then error, then the raw body.
func newAPIError(code int, body []byte) *APIError {
	msg := ""

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		msg = detailMessage(eb.Detail)
		if msg == "" {
			msg = eb.Message
		}
		if msg == "" {
			msg = eb.Error
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		msg = text
	}

	if msg == "" {
		msg = fmt.Sprintf("HTTP %d error", code)
	}
	return &APIError{StatusCode: code, Message: msg, Err: classifyStatus(code)}
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

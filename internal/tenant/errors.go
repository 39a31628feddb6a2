package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthRequired is returned before any request when no token is stored.
	ErrAuthRequired = errors.New("authentication required")
	// ErrTokenExpired is returned when the stored token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnauthorized is returned when the service rejects the token.
	ErrUnauthorized = errors.New("token rejected, please log in again")
	// ErrRequestFailed wraps every transport or non-success response.
	ErrRequestFailed = errors.New("tenant request failed")
)

// RemoteError is a non-success response. Message is the service's own text.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrRequestFailed.
func (e *RemoteError) Unwrap() error {
	return ErrRequestFailed
}

// decodeError builds a RemoteError from a failed response body. The
// service reports failures as {"detail": "..."} or {"message": "..."}.
func decodeError(status int, body []byte) *RemoteError {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = detailText(payload.Detail)
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return &RemoteError{Status: status, Message: msg}
}

// detailText accepts a plain string detail or a list of validation errors.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		var parts []string
		for _, it := range items {
			if it.Msg != "" {
				parts = append(parts, it.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return string(raw)
}

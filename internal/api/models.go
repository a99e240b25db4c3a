package api

import (
	"context"
	"time"

	"github.com/luispater/feeOptOut/internal/portal"
)

const SessionHeader = "X-Session-ID"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// PageResponse describes the tab the agent is attached to.
type PageResponse struct {
	URL   string      `json:"url"`
	Page  portal.Kind `json:"page"`
	Queue QueueStats  `json:"queue"`
}

// SessionResponse lists what a session has opted out of so far.
type SessionResponse struct {
	ID        string       `json:"id"`
	Completed []portal.Fee `json:"completed"`
}

// RequestTask represents a queued message
type RequestTask struct {
	ID        string
	Context   context.Context
	Session   *portal.Session
	Request   portal.Request
	Response  chan portal.Response
	CreatedAt time.Time
}

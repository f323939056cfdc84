package models

import "time"

// SessionEventType names a lifecycle transition.
type SessionEventType string

const (
	SessionOpened   SessionEventType = "opened"
	SessionExtended SessionEventType = "extended"
	SessionClosed   SessionEventType = "closed"
)

// CloseReason explains why a session ended.
type CloseReason string

const (
	CloseReasonTimeout  CloseReason = "timeout"
	CloseReasonForced   CloseReason = "forced"
	CloseReasonEnded    CloseReason = "ended"
	CloseReasonShutdown CloseReason = "shutdown"
)

// SessionEvent is published after a session was opened, extended or closed.
// Deadline is set while the session has a pending timeout.
type SessionEvent struct {
	Type     SessionEventType `json:"type"`
	Reason   CloseReason      `json:"reason,omitempty"`
	Session  Session          `json:"session"`
	Deadline *time.Time       `json:"deadline,omitempty"`
	At       time.Time        `json:"at"`
}

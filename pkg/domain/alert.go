package domain

import "time"

// AlertLevel classifies user visible alerts.
type AlertLevel string

const (
	AlertError   AlertLevel = "error"
	AlertWarning AlertLevel = "warn"
	AlertInfo    AlertLevel = "info"
)

// Alert is a user visible message raised when an orchestration step aborts.
type Alert struct {
	Level   AlertLevel `json:"type"`
	NodeID  string     `json:"nodeId,omitempty"`
	Method  string     `json:"method,omitempty"`
	Message string     `json:"message"`
	Time    time.Time  `json:"time"`
}

// Alert messages shown when re-execution is aborted on the client.
const (
	MsgValidationFailed = "Client-side validation failed. Please check the page for errors."
	MsgRetrievalFailed  = "Retrieving page values failed. Please check the page for errors."
)

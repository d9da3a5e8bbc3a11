package model

import "time"

// LogLevel classifies transfer log messages. Internal messages never leave
// the transfer; all other levels are forwarded to the owning group.
type LogLevel string

const (
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelInternal LogLevel = "internal"
)

// ForwardsToGroup reports whether entries at this level are forwarded to
// the owning group's log channel.
func (l LogLevel) ForwardsToGroup() bool {
	return l != LogLevelInternal
}

// TransferLogEntry is one line of a transfer's append-only log trail.
type TransferLogEntry struct {
	ID         int64     `json:"id"`
	TransferID string    `json:"transfer_id"`
	Message    string    `json:"message"`
	Level      LogLevel  `json:"level"`
	Transient  bool      `json:"transient"`
	CreatedAt  time.Time `json:"created_at"`
}

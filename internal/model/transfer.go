package model

import "time"

// Transfer is a single backup or restore job. It belongs to exactly one
// Group and, when spawned by the schedule pipeline, references the
// Schedule that produced it.
type Transfer struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	ScheduleID     *string    `json:"schedule_id,omitempty"`
	Type           string     `json:"type"`
	FromURL        string     `json:"from_url"`
	ToURL          string     `json:"to_url"`
	ProcessedBytes int64      `json:"processed_bytes"`
	Succeeded      *bool      `json:"succeeded,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	TransferTypeBackup  = "backup"
	TransferTypeRestore = "restore"
)

// TransferState is the derived lifecycle state of a transfer.
type TransferState string

const (
	StatePending    TransferState = "pending"
	StateInProgress TransferState = "in_progress"
	StateSucceeded  TransferState = "succeeded"
	StateFailed     TransferState = "failed"
	StateCanceled   TransferState = "canceled"
)

// State derives the lifecycle state from the timestamp and outcome fields.
// The outcome flag is authoritative once finished_at is set.
func (t *Transfer) State() TransferState {
	switch {
	case t.FinishedAt == nil && t.StartedAt == nil:
		return StatePending
	case t.FinishedAt == nil:
		return StateInProgress
	case t.CanceledAt != nil:
		return StateCanceled
	case t.Succeeded != nil && *t.Succeeded:
		return StateSucceeded
	default:
		return StateFailed
	}
}

func (t *Transfer) Started() bool  { return t.StartedAt != nil }
func (t *Transfer) Finished() bool { return t.FinishedAt != nil }
func (t *Transfer) Canceled() bool { return t.CanceledAt != nil }
func (t *Transfer) Deleted() bool  { return t.DeletedAt != nil }

func (t *Transfer) HasSucceeded() bool {
	return t.FinishedAt != nil && t.Succeeded != nil && *t.Succeeded
}

func (t *Transfer) HasFailed() bool {
	return t.FinishedAt != nil && t.Succeeded != nil && !*t.Succeeded
}

func (t *Transfer) InProgress() bool {
	return t.StartedAt != nil && t.FinishedAt == nil
}

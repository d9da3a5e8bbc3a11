package model

import "time"

// Group is the tenant-scoped owner of transfers and schedules. The
// orchestration core reads it for ownership checks and log routing only.
type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	LogInputURL string     `json:"log_input_url,omitempty"`
	BackupLimit int        `json:"backup_limit"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (g *Group) Deleted() bool { return g.DeletedAt != nil }

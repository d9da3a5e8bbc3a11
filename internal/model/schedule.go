package model

import "time"

// Schedule is a recurring-run definition that spawns transfers. Cron is a
// standard five-field cron expression evaluated at the resolver's grain.
type Schedule struct {
	ID        string     `json:"id"`
	GroupID   string     `json:"group_id"`
	Name      string     `json:"name"`
	Cron      string     `json:"cron"`
	FromURL   string     `json:"from_url"`
	ToURL     string     `json:"to_url"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// LastRunAt is the created_at anchor of the most recent transfer this
	// schedule produced. Populated by the resolver query, not a column.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

func (s *Schedule) Deleted() bool { return s.DeletedAt != nil }

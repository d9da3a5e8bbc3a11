package core

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edvin/transferd/internal/model"
	"github.com/edvin/transferd/internal/platform"
)

// ScheduleResolver determines which schedules are due at a given instant.
// A schedule is due when its cron expression matches the instant truncated
// to the resolver's grain and it has not already produced a transfer for
// that occurrence. Running the resolver twice for the same instant is a
// no-op the second time.
type ScheduleResolver struct {
	db     DB
	parser cron.Parser
	grain  time.Duration
}

func NewScheduleResolver(db DB) *ScheduleResolver {
	return &ScheduleResolver{
		db:     db,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		grain:  time.Minute,
	}
}

// Anchor truncates t to the resolver's matching grain. Transfers created
// for an occurrence carry the anchor as created_at, which is what makes
// the dedup check an equality compare.
func (r *ScheduleResolver) Anchor(t time.Time) time.Time {
	return t.Truncate(r.grain)
}

// DueSchedules returns the schedules whose expression matches t and which
// have no transfer for this occurrence yet. Schedules with unparseable
// expressions are reported as failures so the caller can surface them
// without aborting the pass.
func (r *ScheduleResolver) DueSchedules(ctx context.Context, t time.Time) ([]model.Schedule, []ScheduleFailure, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.group_id, s.name, s.cron, s.from_url, s.to_url, s.deleted_at, s.created_at, s.updated_at,
		        max(x.created_at)
		 FROM schedules s
		 LEFT JOIN transfers x ON x.schedule_id = s.id
		 WHERE s.deleted_at IS NULL
		 GROUP BY s.id, s.group_id, s.name, s.cron, s.from_url, s.to_url, s.deleted_at, s.created_at, s.updated_at
		 ORDER BY s.created_at`)
	if err != nil {
		return nil, nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	anchor := r.Anchor(t)
	var due []model.Schedule
	var failures []ScheduleFailure
	for rows.Next() {
		var s model.Schedule
		if err := rows.Scan(&s.ID, &s.GroupID, &s.Name, &s.Cron, &s.FromURL,
			&s.ToURL, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt, &s.LastRunAt); err != nil {
			return nil, nil, fmt.Errorf("scan schedule: %w", err)
		}

		spec, err := r.parser.Parse(s.Cron)
		if err != nil {
			failures = append(failures, ScheduleFailure{
				ScheduleID: s.ID,
				Err:        fmt.Errorf("parse cron %q: %w", s.Cron, err),
			})
			continue
		}
		if !spec.Next(anchor.Add(-time.Second)).Equal(anchor) {
			continue
		}
		// Already satisfied for this occurrence.
		if s.LastRunAt != nil && !s.LastRunAt.Before(anchor) {
			continue
		}
		due = append(due, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return due, failures, nil
}

// ScheduleProcessor turns one due schedule into a transfer.
type ScheduleProcessor struct {
	db DB
}

func NewScheduleProcessor(db DB) *ScheduleProcessor {
	return &ScheduleProcessor{db: db}
}

// Process creates the transfer for a schedule's occurrence at anchor. The
// transfer's created_at is the anchor, not the wall clock, so ordering
// among simultaneously-due schedules is deterministic and the resolver's
// dedup compare holds.
func (p *ScheduleProcessor) Process(ctx context.Context, schedule *model.Schedule, anchor time.Time) (*model.Transfer, error) {
	var deletedAt *time.Time
	if err := p.db.QueryRow(ctx,
		`SELECT deleted_at FROM groups WHERE id = $1`, schedule.GroupID).Scan(&deletedAt); err != nil {
		return nil, fmt.Errorf("get group %s: %w", schedule.GroupID, err)
	}
	if deletedAt != nil {
		return nil, fmt.Errorf("group %s is deleted", schedule.GroupID)
	}

	transfer := &model.Transfer{
		ID:         platform.NewID(),
		GroupID:    schedule.GroupID,
		ScheduleID: &schedule.ID,
		Type:       model.TransferTypeBackup,
		FromURL:    schedule.FromURL,
		ToURL:      schedule.ToURL,
		CreatedAt:  anchor,
		UpdatedAt:  anchor,
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO transfers (id, group_id, schedule_id, type, from_url, to_url, processed_bytes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		transfer.ID, transfer.GroupID, transfer.ScheduleID, transfer.Type,
		transfer.FromURL, transfer.ToURL, transfer.ProcessedBytes,
		transfer.CreatedAt, transfer.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert scheduled transfer: %w", err)
	}
	return transfer, nil
}

// ScheduleRunResult is the outcome of one resolution pass.
type ScheduleRunResult struct {
	Created  []model.Transfer
	Failures []ScheduleFailure
}

// ScheduleManager orchestrates a full resolution pass: resolve due
// schedules, process each into a transfer, and collect per-schedule
// failures without aborting the batch. It holds no state of its own, so
// invoking it more often than its configured period is safe.
type ScheduleManager struct {
	resolver  *ScheduleResolver
	processor *ScheduleProcessor
}

func NewScheduleManager(resolver *ScheduleResolver, processor *ScheduleProcessor) *ScheduleManager {
	return &ScheduleManager{resolver: resolver, processor: processor}
}

// RunSchedules resolves and processes every schedule due at t. One
// schedule's failure never prevents the others from running; the error
// return is reserved for the resolution query itself.
func (m *ScheduleManager) RunSchedules(ctx context.Context, t time.Time) (*ScheduleRunResult, error) {
	due, failures, err := m.resolver.DueSchedules(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("resolve due schedules: %w", err)
	}

	result := &ScheduleRunResult{Failures: failures}
	anchor := m.resolver.Anchor(t)
	for i := range due {
		transfer, err := m.processor.Process(ctx, &due[i], anchor)
		if err != nil {
			result.Failures = append(result.Failures, ScheduleFailure{
				ScheduleID: due[i].ID,
				Err:        err,
			})
			continue
		}
		result.Created = append(result.Created, *transfer)
	}
	return result, nil
}

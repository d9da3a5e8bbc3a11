package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/transferd/internal/model"
)

const scheduleCols = `id, group_id, name, cron, from_url, to_url, deleted_at, created_at, updated_at`

// ScheduleService manages the recurring-run definitions that the resolver
// turns into transfers.
type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

func (s *ScheduleService) Create(ctx context.Context, schedule *model.Schedule) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO schedules (id, group_id, name, cron, from_url, to_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		schedule.ID, schedule.GroupID, schedule.Name, schedule.Cron,
		schedule.FromURL, schedule.ToURL, schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return sched, nil
}

func (s *ScheduleService) ListByGroup(ctx context.Context, groupID string, limit int, cursor string) ([]model.Schedule, bool, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules WHERE group_id = $1 AND deleted_at IS NULL`
	args := []any{groupID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list schedules for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sched)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate schedules: %w", err)
	}

	hasMore := len(schedules) > limit
	if hasMore {
		schedules = schedules[:limit]
	}
	return schedules, hasMore, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE schedules SET deleted_at = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete schedule %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func scanSchedule(row pgx.Row) (*model.Schedule, error) {
	var sched model.Schedule
	err := row.Scan(&sched.ID, &sched.GroupID, &sched.Name, &sched.Cron,
		&sched.FromURL, &sched.ToURL, &sched.DeletedAt, &sched.CreatedAt,
		&sched.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

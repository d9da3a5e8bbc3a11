package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/transferd/internal/model"
)

const transferCols = `id, group_id, schedule_id, type, from_url, to_url, processed_bytes, succeeded, started_at, finished_at, canceled_at, deleted_at, created_at, updated_at`

// GroupLogger forwards transfer log lines to the owning group's log
// channel. Implemented by GroupService.
type GroupLogger interface {
	LogForGroup(ctx context.Context, groupID, message string, level model.LogLevel) error
}

// TransferService manages the transfer lifecycle: creation, the claim
// queue, state transitions, progress, and the per-transfer log trail.
// Every transition is a conditional update so concurrent actors resolve to
// exactly one outcome.
type TransferService struct {
	db     DB
	groups GroupLogger
}

func NewTransferService(db DB, groups GroupLogger) *TransferService {
	return &TransferService{db: db, groups: groups}
}

func (s *TransferService) Create(ctx context.Context, transfer *model.Transfer) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO transfers (id, group_id, schedule_id, type, from_url, to_url, processed_bytes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		transfer.ID, transfer.GroupID, transfer.ScheduleID, transfer.Type,
		transfer.FromURL, transfer.ToURL, transfer.ProcessedBytes,
		transfer.CreatedAt, transfer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *TransferService) GetByID(ctx context.Context, id string) (*model.Transfer, error) {
	t, err := scanTransfer(s.db.QueryRow(ctx,
		`SELECT `+transferCols+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get transfer %s: %w", id, err)
	}
	return t, nil
}

func (s *TransferService) ListByGroup(ctx context.Context, groupID string, limit int, cursor string) ([]model.Transfer, bool, error) {
	query := `SELECT ` + transferCols + ` FROM transfers WHERE group_id = $1 AND deleted_at IS NULL`
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
		return nil, false, fmt.Errorf("list transfers for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate transfers: %w", err)
	}

	hasMore := len(transfers) > limit
	if hasMore {
		transfers = transfers[:limit]
	}
	return transfers, hasMore, nil
}

// BeginNextPending atomically claims one pending transfer, marking it
// started at now, and returns it. On-demand transfers (no originating
// schedule) are always preferred over scheduled ones regardless of age;
// within each tier the oldest created_at wins. Returns ErrNoPendingWork
// when the pending set is empty. A transfer that finished before it was
// ever claimed (canceled while pending) is terminal and never selected.
//
// The select-and-mark is a single statement with SKIP LOCKED so two
// concurrent workers never claim the same transfer.
func (s *TransferService) BeginNextPending(ctx context.Context, now time.Time) (*model.Transfer, error) {
	t, err := scanTransfer(s.db.QueryRow(ctx,
		`UPDATE transfers SET started_at = $1, updated_at = now()
		 WHERE id = (
		   SELECT id FROM transfers
		   WHERE started_at IS NULL AND finished_at IS NULL AND deleted_at IS NULL
		   ORDER BY (schedule_id IS NOT NULL), created_at
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+transferCols, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPendingWork
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending transfer: %w", err)
	}
	return t, nil
}

// Cancel marks an unfinished transfer as canceled and failed at now.
// Canceling a finished transfer, including an already-canceled one, is a
// no-op and leaves all timestamps untouched.
func (s *TransferService) Cancel(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE transfers SET canceled_at = $2, finished_at = $2, succeeded = false, updated_at = now()
		 WHERE id = $1 AND finished_at IS NULL`, id, now)
	if err != nil {
		return fmt.Errorf("cancel transfer %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Finished() {
		return nil
	}
	return ErrConcurrentModification
}

// Complete marks a transfer as finished successfully at now. Completing an
// already-successful transfer is a no-op preserving the original
// finished_at; completing a failed transfer returns ErrAlreadyFailed.
func (s *TransferService) Complete(ctx context.Context, id string, now time.Time) error {
	return s.finish(ctx, id, now, true, ErrAlreadyFailed)
}

// Fail marks a transfer as finished unsuccessfully at now. Failing an
// already-failed transfer is a no-op; failing a successful transfer
// returns ErrAlreadySucceeded.
func (s *TransferService) Fail(ctx context.Context, id string, now time.Time) error {
	return s.finish(ctx, id, now, false, ErrAlreadySucceeded)
}

func (s *TransferService) finish(ctx context.Context, id string, now time.Time, succeeded bool, conflict error) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE transfers SET finished_at = $2, succeeded = $3, updated_at = now()
		 WHERE id = $1 AND finished_at IS NULL`, id, now, succeeded)
	if err != nil {
		return fmt.Errorf("finish transfer %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case t.Succeeded != nil && *t.Succeeded == succeeded:
		// Repeated terminal call with the same outcome; keep the original
		// finished_at.
		return nil
	case t.Finished():
		return conflict
	default:
		return ErrConcurrentModification
	}
}

// Retry returns a transfer to pending from any state, clearing started_at,
// finished_at, canceled_at, and the outcome flag.
func (s *TransferService) Retry(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE transfers SET started_at = NULL, finished_at = NULL, canceled_at = NULL, succeeded = NULL, updated_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("retry transfer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("retry transfer %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// Destroy tombstones a transfer. An in-progress transfer is canceled as
// part of the same statement, so the row's old values decide the CASEs.
func (s *TransferService) Destroy(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE transfers SET
		   deleted_at  = $2,
		   canceled_at = CASE WHEN started_at IS NOT NULL AND finished_at IS NULL THEN $2 ELSE canceled_at END,
		   succeeded   = CASE WHEN started_at IS NOT NULL AND finished_at IS NULL THEN false ELSE succeeded END,
		   finished_at = CASE WHEN started_at IS NOT NULL AND finished_at IS NULL THEN $2 ELSE finished_at END,
		   updated_at  = now()
		 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("destroy transfer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("destroy transfer %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// MarkProgress overwrites processed_bytes, bumps updated_at even when the
// count is unchanged, and emits a transient log line with the new value.
func (s *TransferService) MarkProgress(ctx context.Context, id string, bytes int64, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE transfers SET processed_bytes = $2, updated_at = now() WHERE id = $1`, id, bytes)
	if err != nil {
		return fmt.Errorf("mark progress on transfer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark progress on transfer %s: %w", id, pgx.ErrNoRows)
	}
	return s.Log(ctx, id, fmt.Sprintf("progress: %d", bytes), model.LogLevelInfo, true, now)
}

// Counts returns the sizes of the pending and in-progress sets.
func (s *TransferService) Counts(ctx context.Context) (pending, inProgress int, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE started_at IS NULL AND finished_at IS NULL),
		        count(*) FILTER (WHERE started_at IS NOT NULL AND finished_at IS NULL)
		 FROM transfers WHERE deleted_at IS NULL`).Scan(&pending, &inProgress)
	if err != nil {
		return 0, 0, fmt.Errorf("count transfers: %w", err)
	}
	return pending, inProgress, nil
}

func scanTransfer(row pgx.Row) (*model.Transfer, error) {
	var t model.Transfer
	err := row.Scan(&t.ID, &t.GroupID, &t.ScheduleID, &t.Type, &t.FromURL,
		&t.ToURL, &t.ProcessedBytes, &t.Succeeded, &t.StartedAt, &t.FinishedAt,
		&t.CanceledAt, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

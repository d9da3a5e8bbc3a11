package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/transferd/internal/model"
)

// Log appends a message to the transfer's log trail and forwards it to the
// owning group. Transient messages are forwarded but never persisted;
// internal messages are persisted but never leave the transfer.
func (s *TransferService) Log(ctx context.Context, transferID, message string, level model.LogLevel, transient bool, now time.Time) error {
	if !transient {
		_, err := s.db.Exec(ctx,
			`INSERT INTO transfer_log_entries (transfer_id, message, level, transient, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			transferID, message, level, transient, now)
		if err != nil {
			return fmt.Errorf("append log entry for transfer %s: %w", transferID, err)
		}
	}

	if !level.ForwardsToGroup() {
		return nil
	}

	var groupID string
	if err := s.db.QueryRow(ctx,
		`SELECT group_id FROM transfers WHERE id = $1`, transferID).Scan(&groupID); err != nil {
		return fmt.Errorf("resolve group for transfer %s: %w", transferID, err)
	}
	if err := s.groups.LogForGroup(ctx, groupID, message, level); err != nil {
		return fmt.Errorf("forward log for transfer %s: %w", transferID, err)
	}
	return nil
}

// ListLogs returns a transfer's persisted log entries in creation order.
func (s *TransferService) ListLogs(ctx context.Context, transferID string) ([]model.TransferLogEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, transfer_id, message, level, transient, created_at
		 FROM transfer_log_entries WHERE transfer_id = $1 ORDER BY id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("list log entries for transfer %s: %w", transferID, err)
	}
	defer rows.Close()

	var entries []model.TransferLogEntry
	for rows.Next() {
		var e model.TransferLogEntry
		if err := rows.Scan(&e.ID, &e.TransferID, &e.Message, &e.Level, &e.Transient, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return entries, nil
}

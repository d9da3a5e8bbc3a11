package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/transferd/internal/model"
)

func scanScheduleInto(s model.Schedule) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = s.ID
		*(dest[1].(*string)) = s.GroupID
		*(dest[2].(*string)) = s.Name
		*(dest[3].(*string)) = s.Cron
		*(dest[4].(*string)) = s.FromURL
		*(dest[5].(*string)) = s.ToURL
		*(dest[6].(**time.Time)) = s.DeletedAt
		*(dest[7].(*time.Time)) = s.CreatedAt
		*(dest[8].(*time.Time)) = s.UpdatedAt
		*(dest[9].(**time.Time)) = s.LastRunAt
		return nil
	}
}

func TestScheduleResolver_Anchor(t *testing.T) {
	r := NewScheduleResolver(&mockDB{})
	instant := time.Date(2026, 8, 29, 10, 30, 42, 999, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), r.Anchor(instant))
}

func TestScheduleResolver_DueSchedules(t *testing.T) {
	db := &mockDB{}
	r := NewScheduleResolver(db)
	ctx := context.Background()
	instant := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	anchor := r.Anchor(instant)
	earlier := anchor.Add(-time.Hour)

	rows := newMockRows(
		// Due: matches every minute, last run an hour ago.
		scanScheduleInto(model.Schedule{
			ID: "test-schedule-1", GroupID: "test-group-1", Name: "hourly",
			Cron: "* * * * *", LastRunAt: &earlier,
		}),
		// Not due: only fires at midnight.
		scanScheduleInto(model.Schedule{
			ID: "test-schedule-2", GroupID: "test-group-1", Name: "nightly",
			Cron: "0 0 * * *",
		}),
		// Bad expression: reported, not fatal.
		scanScheduleInto(model.Schedule{
			ID: "test-schedule-3", GroupID: "test-group-1", Name: "broken",
			Cron: "not a cron line",
		}),
		// Already satisfied for this occurrence.
		scanScheduleInto(model.Schedule{
			ID: "test-schedule-4", GroupID: "test-group-1", Name: "done",
			Cron: "* * * * *", LastRunAt: &anchor,
		}),
		// Due: never run before.
		scanScheduleInto(model.Schedule{
			ID: "test-schedule-5", GroupID: "test-group-2", Name: "fresh",
			Cron: "30 10 * * *",
		}),
	)
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FROM schedules") && strings.Contains(sql, "deleted_at IS NULL")
	}), mock.Anything).Return(rows, nil)

	due, failures, err := r.DueSchedules(ctx, instant)
	require.NoError(t, err)

	require.Len(t, due, 2)
	assert.Equal(t, "test-schedule-1", due[0].ID)
	assert.Equal(t, "test-schedule-5", due[1].ID)

	require.Len(t, failures, 1)
	assert.Equal(t, "test-schedule-3", failures[0].ScheduleID)
	assert.Contains(t, failures[0].Err.Error(), "parse cron")
	db.AssertExpectations(t)
}

func TestScheduleResolver_DueSchedules_SecondPassIsNoOp(t *testing.T) {
	db := &mockDB{}
	r := NewScheduleResolver(db)
	ctx := context.Background()
	instant := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	anchor := r.Anchor(instant)

	// After the first pass created a transfer, the schedule's newest
	// transfer carries the anchor itself.
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scanScheduleInto(model.Schedule{
			ID: "test-schedule-1", GroupID: "test-group-1", Name: "hourly",
			Cron: "* * * * *", LastRunAt: &anchor,
		})), nil)

	due, failures, err := r.DueSchedules(ctx, instant)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Empty(t, failures)
}

func TestScheduleProcessor_Process(t *testing.T) {
	db := &mockDB{}
	p := NewScheduleProcessor(db)
	ctx := context.Background()
	anchor := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FROM groups")
	}), []any{"test-group-1"}).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(**time.Time)) = nil
		return nil
	}})
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO transfers")
	}), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	schedule := &model.Schedule{
		ID:      "test-schedule-1",
		GroupID: "test-group-1",
		FromURL: "postgres://from.example.com/db",
		ToURL:   "s3://bucket/backups",
	}
	transfer, err := p.Process(ctx, schedule, anchor)
	require.NoError(t, err)

	assert.NotEmpty(t, transfer.ID)
	assert.Equal(t, "test-group-1", transfer.GroupID)
	require.NotNil(t, transfer.ScheduleID)
	assert.Equal(t, "test-schedule-1", *transfer.ScheduleID)
	assert.Equal(t, model.TransferTypeBackup, transfer.Type)
	assert.Equal(t, anchor, transfer.CreatedAt)
	assert.Equal(t, anchor, transfer.UpdatedAt)
	db.AssertExpectations(t)
}

func TestScheduleProcessor_Process_DeletedGroup(t *testing.T) {
	db := &mockDB{}
	p := NewScheduleProcessor(db)
	ctx := context.Background()
	deletedAt := time.Now().Add(-time.Hour)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(**time.Time)) = &deletedAt
			return nil
		}})

	_, err := p.Process(ctx, &model.Schedule{ID: "test-schedule-1", GroupID: "test-group-1"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleted")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleManager_RunSchedules_CollectsPartialFailures(t *testing.T) {
	db := &mockDB{}
	manager := NewScheduleManager(NewScheduleResolver(db), NewScheduleProcessor(db))
	ctx := context.Background()
	instant := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	deletedAt := instant.Add(-time.Hour)

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(
			scanScheduleInto(model.Schedule{
				ID: "test-schedule-1", GroupID: "test-group-1", Cron: "* * * * *",
			}),
			scanScheduleInto(model.Schedule{
				ID: "test-schedule-2", GroupID: "test-group-2", Cron: "* * * * *",
			}),
		), nil)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-group-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(**time.Time)) = nil
			return nil
		}})
	// Second schedule's group was deleted between passes.
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"test-group-2"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(**time.Time)) = &deletedAt
			return nil
		}})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	result, err := manager.RunSchedules(ctx, instant)
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "test-group-1", result.Created[0].GroupID)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "test-schedule-2", result.Failures[0].ScheduleID)
	db.AssertExpectations(t)
}

package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/transferd/internal/model"
)

func scanGroupInto(g model.Group) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = g.ID
		*(dest[1].(*string)) = g.Name
		*(dest[2].(*string)) = g.LogInputURL
		*(dest[3].(*int)) = g.BackupLimit
		*(dest[4].(**time.Time)) = g.DeletedAt
		*(dest[5].(*time.Time)) = g.CreatedAt
		*(dest[6].(*time.Time)) = g.UpdatedAt
		return nil
	}
}

func TestGroupService_Create_New(t *testing.T) {
	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO groups")
	}), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	now := time.Now()
	err := svc.Create(ctx, &model.Group{
		ID:          "test-group-1",
		Name:        "acme",
		LogInputURL: "https://logs.example.com/input",
		BackupLimit: 13,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestGroupService_Create_Conflict(t *testing.T) {
	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanGroupInto(model.Group{
			ID:   "test-group-1",
			Name: "acme",
		})})

	err := svc.Create(ctx, &model.Group{ID: "test-group-2", Name: "acme"})
	assert.ErrorIs(t, err, ErrGroupExists)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupService_Create_RevivesDeletedGroup(t *testing.T) {
	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()
	deletedAt := time.Now().Add(-time.Hour)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanGroupInto(model.Group{
			ID:        "test-group-1",
			Name:      "acme",
			DeletedAt: &deletedAt,
			CreatedAt: deletedAt.Add(-time.Hour),
		})})
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "deleted_at = NULL")
	}), []any{"test-group-1", "https://logs.example.com/new", 7}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	group := &model.Group{
		ID:          "test-group-2",
		Name:        "acme",
		LogInputURL: "https://logs.example.com/new",
		BackupLimit: 7,
	}
	require.NoError(t, svc.Create(ctx, group))

	// The revived group keeps its original identity.
	assert.Equal(t, "test-group-1", group.ID)
	db.AssertExpectations(t)
}

func TestGroupService_Delete_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Delete(ctx, "not-a-real-group", time.Now())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	db.AssertExpectations(t)
}

func TestGroupService_LogForGroup_PostsLine(t *testing.T) {
	var gotBody string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = server.URL
			return nil
		}})

	require.NoError(t, svc.LogForGroup(ctx, "test-group-1", "hello", model.LogLevelWarning))
	assert.Equal(t, "warning: hello", gotBody)
	assert.Equal(t, "text/plain", gotContentType)
	db.AssertExpectations(t)
}

func TestGroupService_LogForGroup_NoURLDropsLine(t *testing.T) {
	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = ""
			return nil
		}})

	require.NoError(t, svc.LogForGroup(ctx, "test-group-1", "hello", model.LogLevelInfo))
	db.AssertExpectations(t)
}

func TestGroupService_LogForGroup_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	db := &mockDB{}
	svc := NewGroupService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = server.URL
			return nil
		}})

	err := svc.LogForGroup(ctx, "test-group-1", "hello", model.LogLevelInfo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

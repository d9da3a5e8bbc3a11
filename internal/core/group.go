package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/transferd/internal/model"
)

const groupCols = `id, name, log_input_url, backup_limit, deleted_at, created_at, updated_at`

// ErrGroupExists is returned by Create when a live group with the same
// name already exists.
var ErrGroupExists = errors.New("group already exists")

// GroupService manages groups and routes forwarded transfer log lines to
// each group's log input URL.
type GroupService struct {
	db     DB
	client *http.Client
}

func NewGroupService(db DB) *GroupService {
	return &GroupService{db: db, client: &http.Client{Timeout: 10 * time.Second}}
}

// Create inserts a new group. If a soft-deleted group with the same name
// exists it is revived instead, taking the new log URL and backup limit. A
// live group with the same name is a conflict.
func (s *GroupService) Create(ctx context.Context, group *model.Group) error {
	existing, err := s.GetByName(ctx, group.Name)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if existing != nil {
		if !existing.Deleted() {
			return ErrGroupExists
		}
		_, err := s.db.Exec(ctx,
			`UPDATE groups SET deleted_at = NULL, log_input_url = $2, backup_limit = $3, updated_at = now()
			 WHERE id = $1`,
			existing.ID, group.LogInputURL, group.BackupLimit)
		if err != nil {
			return fmt.Errorf("revive group %s: %w", group.Name, err)
		}
		group.ID = existing.ID
		group.CreatedAt = existing.CreatedAt
		return nil
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO groups (id, name, log_input_url, backup_limit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, group.Name, group.LogInputURL, group.BackupLimit,
		group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *GroupService) GetByID(ctx context.Context, id string) (*model.Group, error) {
	g, err := scanGroup(s.db.QueryRow(ctx,
		`SELECT `+groupCols+` FROM groups WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	return g, nil
}

// GetByName returns the group with the given name, deleted or not. The
// caller decides whether a tombstoned group counts.
func (s *GroupService) GetByName(ctx context.Context, name string) (*model.Group, error) {
	g, err := scanGroup(s.db.QueryRow(ctx,
		`SELECT `+groupCols+` FROM groups WHERE name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("get group %q: %w", name, err)
	}
	return g, nil
}

func (s *GroupService) List(ctx context.Context, limit int, cursor string) ([]model.Group, bool, error) {
	query := `SELECT ` + groupCols + ` FROM groups WHERE deleted_at IS NULL`
	args := []any{}
	argIdx := 1

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
		return nil, false, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate groups: %w", err)
	}

	hasMore := len(groups) > limit
	if hasMore {
		groups = groups[:limit]
	}
	return groups, hasMore, nil
}

// Delete tombstones a group by name.
func (s *GroupService) Delete(ctx context.Context, name string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE groups SET deleted_at = $2, updated_at = now()
		 WHERE name = $1 AND deleted_at IS NULL`, name, now)
	if err != nil {
		return fmt.Errorf("delete group %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete group %q: %w", name, pgx.ErrNoRows)
	}
	return nil
}

// LogForGroup posts a log line to the group's log input URL. Groups
// without a log URL drop the line.
func (s *GroupService) LogForGroup(ctx context.Context, groupID, message string, level model.LogLevel) error {
	var logURL string
	if err := s.db.QueryRow(ctx,
		`SELECT log_input_url FROM groups WHERE id = $1`, groupID).Scan(&logURL); err != nil {
		return fmt.Errorf("get log url for group %s: %w", groupID, err)
	}
	if logURL == "" {
		return nil
	}

	line := fmt.Sprintf("%s: %s", level, message)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, logURL, strings.NewReader(line))
	if err != nil {
		return fmt.Errorf("build log request for group %s: %w", groupID, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post log for group %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("post log for group %s: status %d", groupID, resp.StatusCode)
	}
	return nil
}

func scanGroup(row pgx.Row) (*model.Group, error) {
	var g model.Group
	err := row.Scan(&g.ID, &g.Name, &g.LogInputURL, &g.BackupLimit,
		&g.DeletedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/core"
)

const tagColumns = "id, user_id, name, archived, created_at"

type ListTagsParams struct {
	UserID   string
	Query    string
	Archived *bool
}

func scanTag(row rowScanner) (core.Tag, error) {
	var (
		t         core.Tag
		archived  int64
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &archived, &createdAt); err != nil {
		return core.Tag{}, err
	}
	t.Archived = archived != 0
	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return core.Tag{}, err
	}
	t.CreatedAt = ts
	return t, nil
}

func (q *Queries) CreateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	created, now := q.timestamp()
	row := q.db.QueryRowContext(ctx,
		"INSERT INTO tags (user_id, name, archived, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		t.UserID, t.Name, boolToInt(t.Archived), created)
	if err := row.Scan(&t.ID); err != nil {
		return core.Tag{}, fmt.Errorf("insert tag: %w", mapError(err))
	}
	t.CreatedAt = now
	return t, nil
}

func (q *Queries) GetTag(ctx context.Context, userID string, id int64) (core.Tag, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+tagColumns+" FROM tags WHERE user_id = ? AND id = ?", userID, id)
	t, err := scanTag(row)
	if err != nil {
		return core.Tag{}, fmt.Errorf("get tag %d: %w", id, mapError(err))
	}
	return t, nil
}

// GetTags loads the user's tags with the given ids. Ids that are unknown
// or owned by someone else are simply absent from the result.
func (q *Queries) GetTags(ctx context.Context, userID string, ids []int64) ([]core.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+tagColumns+" FROM tags WHERE user_id = ? AND id IN ("+placeholders(len(ids))+") ORDER BY name, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	defer rows.Close()

	var out []core.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) ListTags(ctx context.Context, arg ListTagsParams) ([]core.Tag, error) {
	conds := []string{"user_id = ?"}
	args := []any{arg.UserID}
	if s := strings.TrimSpace(arg.Query); s != "" {
		cond, arg := containsFolded("name", s)
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if arg.Archived != nil {
		conds = append(conds, "archived = ?")
		args = append(args, boolToInt(*arg.Archived))
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+tagColumns+" FROM tags WHERE "+strings.Join(conds, " AND ")+" ORDER BY name, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []core.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE tags SET name = ?, archived = ? WHERE user_id = ? AND id = ?",
		t.Name, boolToInt(t.Archived), t.UserID, t.ID)
	if err != nil {
		return core.Tag{}, fmt.Errorf("update tag %d: %w", t.ID, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Tag{}, fmt.Errorf("update tag %d: %w", t.ID, err)
	}
	return q.GetTag(ctx, t.UserID, t.ID)
}

// DeleteTag removes a tag and its links to transactions.
func (q *Queries) DeleteTag(ctx context.Context, userID string, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM tags WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	return nil
}

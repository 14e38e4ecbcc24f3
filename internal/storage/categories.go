package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/core"
)

const categoryColumns = "id, user_id, name, kind, color, archived, created_at"

// ListCategoriesParams narrows a category listing.
type ListCategoriesParams struct {
	UserID   string
	Query    string
	Archived *bool
	Kind     *core.Kind
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		kind      string
		archived  int64
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Color, &archived, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	c.Archived = archived != 0
	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = ts
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created, now := q.timestamp()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO categories (user_id, name, kind, color, archived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		c.UserID, c.Name, string(c.Kind), c.Color, boolToInt(c.Archived), created)
	if err := row.Scan(&c.ID); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", mapError(err))
	}
	c.CreatedAt = now
	return c, nil
}

func (q *Queries) GetCategory(ctx context.Context, userID string, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? AND id = ?", userID, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, mapError(err))
	}
	return c, nil
}

// FindCategory looks a category up by its natural key.
func (q *Queries) FindCategory(ctx context.Context, userID, name string, kind core.Kind) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? AND name = ? AND kind = ?",
		userID, name, string(kind))
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, mapError(err))
	}
	return c, nil
}

// GetOrCreateCategory returns the user's category with c's name and kind,
// creating it with c's color when missing. New categories are validated.
func (q *Queries) GetOrCreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	existing, err := q.FindCategory(ctx, c.UserID, c.Name, c.Kind)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return q.CreateCategory(ctx, c)
}

func (q *Queries) ListCategories(ctx context.Context, arg ListCategoriesParams) ([]core.Category, error) {
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
	if arg.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, string(*arg.Kind))
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE "+strings.Join(conds, " AND ")+" ORDER BY name, kind, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, kind = ?, color = ?, archived = ?
		 WHERE user_id = ? AND id = ?`,
		c.Name, string(c.Kind), c.Color, boolToInt(c.Archived), c.UserID, c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return q.GetCategory(ctx, c.UserID, c.ID)
}

// DeleteCategory removes a category. Its transactions become
// uncategorised and its budgets go with it.
func (q *Queries) DeleteCategory(ctx context.Context, userID string, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM categories WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

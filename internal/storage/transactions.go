package storage

import (
	"context"
	"database/sql"
	"fmt"

	"ledger/internal/core"
)

const transactionSelect = `SELECT t.id, t.user_id, t.type, t.amount_cents, t.currency, t.date, t.category_id, t.notes, t.created_at,
       c.user_id, c.name, c.kind, c.color, c.archived, c.created_at
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id `

const transactionOrder = " ORDER BY t.date DESC, t.created_at DESC, t.id DESC"

// ListTransactionsParams selects a page of a filtered listing. A Limit of
// zero or less returns every match.
type ListTransactionsParams struct {
	UserID string
	Filter core.Filter
	Limit  int
	Offset int
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		kind       string
		cents      int64
		date       string
		categoryID sql.NullInt64
		createdAt  string

		catUser, catName, catKind, catColor, catCreated sql.NullString
		catArchived                                     sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.UserID, &kind, &cents, &t.Currency, &date, &categoryID, &t.Notes, &createdAt,
		&catUser, &catName, &catKind, &catColor, &catArchived, &catCreated)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Type = core.Kind(kind)
	t.Amount = core.FromCents(cents)
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
		cat := &core.Category{
			ID:       id,
			UserID:   catUser.String,
			Name:     catName.String,
			Kind:     core.Kind(catKind.String),
			Color:    catColor.String,
			Archived: catArchived.Int64 != 0,
		}
		if cat.CreatedAt, err = parseTimestamp(catCreated.String); err != nil {
			return core.Transaction{}, err
		}
		t.Category = cat
	}
	return t, nil
}

// CreateTransaction inserts t with its tag links. The category and every
// tag must belong to t.UserID.
func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := q.checkCategoryOwner(ctx, t.UserID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	created, now := q.timestamp()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, type, amount_cents, currency, date, category_id, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.UserID, string(t.Type), core.ToCents(t.Amount), t.Currency, t.Date.String(),
		nullableID(t.CategoryID), t.Notes, created)
	if err := row.Scan(&t.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", mapError(err))
	}
	t.CreatedAt = now

	if err := q.linkTags(ctx, t.UserID, t.ID, t.TagIDs()); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, transactionSelect+"WHERE t.user_id = ? AND t.id = ?", userID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, mapError(err))
	}
	txns := []core.Transaction{t}
	if err := q.attachTags(ctx, userID, txns); err != nil {
		return core.Transaction{}, err
	}
	return txns[0], nil
}

// ListTransactions returns matches newest first: date, then creation time,
// then id, all descending.
func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]core.Transaction, error) {
	where, args := compileFilter(arg.UserID, arg.Filter)
	query := transactionSelect + where + transactionOrder
	if arg.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, arg.Limit, arg.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	rows.Close()

	if err := q.attachTags(ctx, arg.UserID, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queries) CountTransactions(ctx context.Context, userID string, f core.Filter) (int64, error) {
	where, args := compileFilter(userID, f)
	var n int64
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions t "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// UpdateTransaction rewrites every field of t and replaces its tag set.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := q.checkCategoryOwner(ctx, t.UserID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions
		 SET type = ?, amount_cents = ?, currency = ?, date = ?, category_id = ?, notes = ?
		 WHERE user_id = ? AND id = ?`,
		string(t.Type), core.ToCents(t.Amount), t.Currency, t.Date.String(),
		nullableID(t.CategoryID), t.Notes, t.UserID, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}

	if _, err := q.db.ExecContext(ctx, "DELETE FROM transaction_tags WHERE transaction_id = ?", t.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("clear transaction tags: %w", err)
	}
	if err := q.linkTags(ctx, t.UserID, t.ID, t.TagIDs()); err != nil {
		return core.Transaction{}, err
	}
	return q.GetTransaction(ctx, t.UserID, t.ID)
}

// DeleteTransaction removes a transaction and its tag links.
func (q *Queries) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (q *Queries) checkCategoryOwner(ctx context.Context, userID string, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM categories WHERE user_id = ? AND id = ?", userID, *categoryID).Scan(&one)
	if err != nil {
		return fmt.Errorf("category %d: %w", *categoryID, mapError(err))
	}
	return nil
}

// linkTags attaches tags to a transaction, only through tags owned by userID.
func (q *Queries) linkTags(ctx context.Context, userID string, txnID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		res, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id)
			 SELECT ?, id FROM tags WHERE user_id = ? AND id = ?`,
			txnID, userID, tagID)
		if err != nil {
			return fmt.Errorf("link tag %d: %w", tagID, mapError(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("link tag %d: %w", tagID, err)
		}
		if n == 0 && !q.tagLinked(ctx, txnID, tagID) {
			return fmt.Errorf("link tag %d: %w", tagID, core.ErrNotFound)
		}
	}
	return nil
}

func (q *Queries) tagLinked(ctx context.Context, txnID, tagID int64) bool {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?", txnID, tagID).Scan(&one)
	return err == nil
}

// attachTags fills Tags on each transaction with one query.
func (q *Queries) attachTags(ctx context.Context, userID string, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	index := make(map[int64]int, len(txns))
	args := make([]any, 0, len(txns)+1)
	args = append(args, userID)
	for i, t := range txns {
		index[t.ID] = i
		args = append(args, t.ID)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT tt.transaction_id, g.id, g.user_id, g.name, g.archived, g.created_at
		 FROM transaction_tags tt
		 JOIN tags g ON g.id = tt.tag_id
		 WHERE g.user_id = ? AND tt.transaction_id IN (`+placeholders(len(txns))+`)
		 ORDER BY g.name, g.id`,
		args...)
	if err != nil {
		return fmt.Errorf("load transaction tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnID int64
		var (
			tag       core.Tag
			archived  int64
			createdAt string
		)
		if err := rows.Scan(&txnID, &tag.ID, &tag.UserID, &tag.Name, &archived, &createdAt); err != nil {
			return fmt.Errorf("scan transaction tag: %w", err)
		}
		tag.Archived = archived != 0
		if tag.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return err
		}
		i := index[txnID]
		txns[i].Tags = append(txns[i].Tags, tag)
	}
	return rows.Err()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// RecentTransactions returns the user's n newest transactions.
func (q *Queries) RecentTransactions(ctx context.Context, userID string, n int) ([]core.Transaction, error) {
	return q.ListTransactions(ctx, ListTransactionsParams{UserID: userID, Limit: n})
}

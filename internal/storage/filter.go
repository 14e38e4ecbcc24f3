package storage

import (
	"strings"

	"ledger/internal/core"
)

// compileFilter turns f into a WHERE clause over transactions aliased as
// "t". The user predicate always comes first.
func compileFilter(userID string, f core.Filter) (string, []any) {
	conds := []string{"t.user_id = ?"}
	args := []any{userID}

	if f.DateFrom != nil {
		conds = append(conds, "t.date >= ?")
		args = append(args, f.DateFrom.String())
	}
	if f.DateTo != nil {
		conds = append(conds, "t.date <= ?")
		args = append(args, f.DateTo.String())
	}
	if f.CategoryID != nil {
		conds = append(conds, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.TagID != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM transaction_tags tt WHERE tt.transaction_id = t.id AND tt.tag_id = ?)")
		args = append(args, *f.TagID)
	}
	if f.Type != nil {
		conds = append(conds, "t.type = ?")
		args = append(args, string(*f.Type))
	}
	if f.AmountMin != nil {
		conds = append(conds, "t.amount_cents >= ?")
		args = append(args, core.ToCents(*f.AmountMin))
	}
	if f.AmountMax != nil {
		conds = append(conds, "t.amount_cents <= ?")
		args = append(args, core.ToCents(*f.AmountMax))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		cond, arg := containsFolded("t.notes", q)
		conds = append(conds, cond)
		args = append(args, arg)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

package csvimport

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// dateLayouts are tried in order. Day and month may be unpadded.
var dateLayouts = []string{"2006-1-2", "2/1/2006"}

// typeAliases maps bank vocabulary onto a transaction kind.
var typeAliases = map[string]core.Kind{
	"DEBIT":   core.KindExpense,
	"DR":      core.KindExpense,
	"CREDIT":  core.KindIncome,
	"CR":      core.KindIncome,
	"EXPENSE": core.KindExpense,
	"INCOME":  core.KindIncome,
}

// SkipReason says why a row produced no transaction.
type SkipReason string

const (
	SkipNoFields  SkipReason = "no mapped fields"
	SkipNoDate    SkipReason = "missing date"
	SkipBadDate   SkipReason = "unrecognised date"
	SkipBadAmount SkipReason = "unparseable amount"
)

// Draft is a normalized row that still needs its category resolved.
type Draft struct {
	Type         core.Kind
	Amount       decimal.Decimal
	Date         core.Date
	CategoryName string
	Notes        string
}

// Transaction assembles the pending record for userID. Currency is fixed.
func (d Draft) Transaction(userID string, category *core.Category) core.Transaction {
	txn := core.Transaction{
		UserID:   userID,
		Type:     d.Type,
		Amount:   d.Amount,
		Currency: core.DefaultCurrency,
		Date:     d.Date,
		Category: category,
		Notes:    d.Notes,
	}
	if category != nil {
		id := category.ID
		txn.CategoryID = &id
	}
	return txn
}

// Project pairs cells with headers and keeps the mapped, non-ignored ones.
// Rows shorter than the header read as empty cells.
func Project(headers, row []string, mapping Mapping) map[Field]string {
	data := make(map[Field]string)
	for idx, header := range headers {
		target, ok := mapping[header]
		if !ok || target == FieldIgnore {
			continue
		}
		cell := ""
		if idx < len(row) {
			cell = row[idx]
		}
		data[target] = cell
	}
	return data
}

// Normalize turns one raw row into a draft. When the row cannot be read it
// returns ok=false and the reason; it never returns an error.
func Normalize(headers, row []string, mapping Mapping) (Draft, SkipReason, bool) {
	data := Project(headers, row, mapping)
	if len(data) == 0 {
		return Draft{}, SkipNoFields, false
	}

	rawDate := data[FieldDate]
	if rawDate == "" {
		return Draft{}, SkipNoDate, false
	}
	date, ok := parseDate(rawDate)
	if !ok {
		return Draft{}, SkipBadDate, false
	}

	rawAmount := data[FieldAmount]
	if rawAmount == "" {
		rawAmount = "0"
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return Draft{}, SkipBadAmount, false
	}
	negative := amount.IsNegative()

	kind := ResolveType(data[FieldType], negative)
	return Draft{
		Type:         kind,
		Amount:       amount.Abs(),
		Date:         date,
		CategoryName: strings.TrimSpace(data[FieldCategory]),
		Notes:        data[FieldDescription],
	}, "", true
}

func parseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t}, true
		}
	}
	return core.Date{}, false
}

// ResolveType reconciles the type cell with the sign of the amount. An
// explicit INCOME or EXPENSE wins over aliases, an unknown cell falls back
// to the sign, and a negative amount is always an expense.
func ResolveType(raw string, negative bool) core.Kind {
	key := strings.ToUpper(strings.TrimSpace(raw))

	kind, ok := typeAliases[key]
	if literal, err := core.ParseKind(key); err == nil {
		kind, ok = literal, true
	}
	if !ok {
		kind = core.KindIncome
		if negative {
			kind = core.KindExpense
		}
	}
	if negative {
		return core.KindExpense
	}
	return kind
}

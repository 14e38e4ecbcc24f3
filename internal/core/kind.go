package core

import "strings"

// Kind classifies categories and transactions.
type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindIncome, KindExpense}

// ParseKind accepts INCOME or EXPENSE in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	default:
		return "", ErrInvalidKind
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense:
		return true
	default:
		return false
	}
}

// Sign is +1 for income and -1 for expense.
func (k Kind) Sign() int {
	switch k {
	case KindIncome:
		return 1
	case KindExpense:
		return -1
	default:
		panic("core: unknown kind " + string(k))
	}
}

// Label is the human form used in messages.
func (k Kind) Label() string {
	switch k {
	case KindIncome:
		return "Income"
	case KindExpense:
		return "Expense"
	default:
		return string(k)
	}
}

func (k Kind) String() string {
	return string(k)
}

// Period is the budgeting window.
type Period string

const PeriodMonth Period = "MONTH"

func (p Period) Valid() bool {
	return p == PeriodMonth
}

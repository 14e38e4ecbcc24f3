package core

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency    = "GBP"
	DefaultImportColor = "#999999"
	maxNameLength      = 120
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type (
	Category struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Kind      Kind      `json:"kind"`
		Color     string    `json:"color"`
		Archived  bool      `json:"archived"`
		CreatedAt time.Time `json:"created_at"`
	}

	Tag struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Archived  bool      `json:"archived"`
		CreatedAt time.Time `json:"created_at"`
	}

	Transaction struct {
		ID         int64           `json:"id"`
		UserID     string          `json:"-"`
		Type       Kind            `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		Currency   string          `json:"currency"`
		Date       Date            `json:"date"`
		CategoryID *int64          `json:"category"`
		Category   *Category       `json:"-"`
		Tags       []Tag           `json:"-"`
		Notes      string          `json:"notes"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	Budget struct {
		ID         int64           `json:"id"`
		UserID     string          `json:"-"`
		CategoryID int64           `json:"category"`
		Category   *Category       `json:"-"`
		Period     Period          `json:"period"`
		Amount     decimal.Decimal `json:"amount"`
		StartMonth Date            `json:"start_month"`
		Rollover   bool            `json:"rollover"`
		CreatedAt  time.Time       `json:"created_at"`
	}
)

func validateName(v *ValidationError, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		v.Add("name", ErrEmptyName)
	case utf8.RuneCountInString(name) > maxNameLength:
		v.Add("name", ErrNameTooLong)
	}
}

func (c Category) Validate() error {
	v := &ValidationError{}
	validateName(v, c.Name)
	if !c.Kind.Valid() {
		v.Add("kind", ErrInvalidKind)
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		v.Add("color", ErrInvalidColor)
	}
	return v.OrNil()
}

func (t Tag) Validate() error {
	v := &ValidationError{}
	validateName(v, t.Name)
	return v.OrNil()
}

// SignedAmount is +amount for income and -amount for expense.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(int64(t.Type.Sign())))
}

// TagIDs returns the ids of the attached tags.
func (t Transaction) TagIDs() []int64 {
	ids := make([]int64, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// CategoryName is empty for uncategorised transactions.
func (t Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return t.Category.Name
}

// Validate checks field rules plus category and tag ownership. Category
// and tag checks need the related records attached.
func (t Transaction) Validate() error {
	v := &ValidationError{}
	if !t.Type.Valid() {
		v.Add("type", ErrInvalidKind)
	}
	if err := ValidateAmount(t.Amount); err != nil {
		v.Add("amount", err)
	}
	if !validCurrency(t.Currency) {
		v.Add("currency", ErrInvalidCurrency)
	}
	if t.Date.IsZero() {
		v.Add("date", ErrMissingDate)
	}
	if c := t.Category; c != nil {
		switch {
		case c.UserID != t.UserID:
			v.Add("category", ErrCategoryNotOwned)
		case c.Kind != t.Type:
			v.Add("category", ErrCategoryKindMismatch)
		}
	}
	for _, tag := range t.Tags {
		if tag.UserID != t.UserID {
			v.Add("tags", ErrTagNotOwned)
			break
		}
	}
	return v.OrNil()
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeCurrency upper-cases a currency code and applies the default.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

func (b Budget) Validate() error {
	v := &ValidationError{}
	if !b.Period.Valid() {
		v.Add("period", ErrInvalidPeriod)
	}
	if err := ValidateAmount(b.Amount); err != nil {
		v.Add("amount", err)
	}
	if b.StartMonth.IsZero() {
		v.Add("start_month", ErrMissingDate)
	} else if b.StartMonth.Day() != 1 {
		v.Add("start_month", ErrStartMonthDay)
	}
	switch c := b.Category; {
	case c == nil:
		v.Add("category", ErrMissingCategory)
	case c.UserID != b.UserID:
		v.Add("category", ErrCategoryNotOwned)
	case c.Kind != KindExpense:
		v.Add("category", ErrBudgetCategoryKind)
	}
	return v.OrNil()
}

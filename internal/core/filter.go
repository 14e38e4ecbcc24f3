package core

import "github.com/shopspring/decimal"

// Filter narrows a user's transactions. Nil fields do not constrain.
type Filter struct {
	DateFrom   *Date
	DateTo     *Date
	CategoryID *int64
	TagID      *int64
	Type       *Kind
	AmountMin  *decimal.Decimal
	AmountMax  *decimal.Decimal
	Query      string
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.DateFrom == nil && f.DateTo == nil && f.CategoryID == nil &&
		f.TagID == nil && f.Type == nil && f.AmountMin == nil &&
		f.AmountMax == nil && f.Query == ""
}

// Page selects a slice of an ordered listing.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// Offset is the row offset of the page, numbering from 1.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}

// Limit clamps the page size.
func (p Page) Limit() int {
	switch {
	case p.Size <= 0:
		return DefaultPageSize
	case p.Size > MaxPageSize:
		return MaxPageSize
	default:
		return p.Size
	}
}

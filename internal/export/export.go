// Package export writes transactions as CSV in the layout the importer
// reads back.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"ledger/internal/core"
)

// Header is the fixed column order of an export.
var Header = []string{"date", "type", "amount", "currency", "category", "tags", "notes"}

// TagSeparator joins tag names inside the tags column.
const TagSeparator = ";"

// PreviewRows is how many transactions an export preview shows.
const PreviewRows = 25

// Filename names an export made at t, in UTC.
func Filename(t time.Time) string {
	return "transactions-" + t.UTC().Format("20060102-150405") + ".csv"
}

// Row renders one transaction in Header order.
func Row(t core.Transaction) []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return []string{
		t.Date.String(),
		string(t.Type),
		core.FormatAmount(t.Amount),
		t.Currency,
		t.CategoryName(),
		strings.Join(names, TagSeparator),
		t.Notes,
	}
}

// Writer streams an export. The header goes out with the first row, or on
// Flush when there are no rows.
type Writer struct {
	csv    *csv.Writer
	header bool
	rows   int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

func (w *Writer) writeHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	if err := w.csv.Write(Header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	return nil
}

// Write appends one transaction.
func (w *Writer) Write(t core.Transaction) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	if err := w.csv.Write(Row(t)); err != nil {
		return fmt.Errorf("write transaction %d: %w", t.ID, err)
	}
	w.rows++
	return nil
}

// Flush writes any buffered data and reports the first write error.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

// Rows is the number of transactions written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// WriteAll exports txns in the given order.
func WriteAll(out io.Writer, txns []core.Transaction) error {
	w := NewWriter(out)
	for _, t := range txns {
		if err := w.Write(t); err != nil {
			return err
		}
	}
	return w.Flush()
}

package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const sniffSampleSize = 2048

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Preview is a parsed upload: the header row plus every data row.
type Preview struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Delimiter rune       `json:"-"`
}

// DelimiterString is the delimiter as text, for display.
func (p Preview) DelimiterString() string {
	if p.Delimiter == '\t' {
		return `\t`
	}
	return string(p.Delimiter)
}

// Parse decodes an uploaded CSV. Cells are trimmed, blank rows dropped and
// the first remaining row becomes the header.
func Parse(data []byte) (Preview, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := string(data)

	sample, truncated := sampleOf(text)
	delim, ok := sniff(sample, truncated)
	if !ok {
		delim = ','
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Preview{}, fmt.Errorf("read csv: %w", err)
		}
		if row, keep := trimRow(record); keep {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return Preview{}, ErrEmptyFile
	}
	headers := rows[0]
	if !hasContent(headers) {
		return Preview{}, ErrMissingHeader
	}
	return Preview{Headers: headers, Rows: rows[1:], Delimiter: delim}, nil
}

// sampleOf returns the first sniffSampleSize characters of text and
// whether anything was cut off.
func sampleOf(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= sniffSampleSize {
		return text, false
	}
	n := 0
	for i := range text {
		if n == sniffSampleSize {
			return text[:i], true
		}
		n++
	}
	return text, false
}

func trimRow(record []string) ([]string, bool) {
	row := make([]string, len(record))
	for i, cell := range record {
		row[i] = strings.TrimSpace(cell)
	}
	return row, hasContent(row)
}

func hasContent(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return true
		}
	}
	return false
}

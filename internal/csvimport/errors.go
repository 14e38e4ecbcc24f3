package csvimport

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFile         = errors.New("uploaded file appears to be empty")
	ErrMissingHeader     = errors.New("unable to read column headers from the file")
	ErrInvalidMapping    = errors.New("invalid mapping payload")
	ErrIncompleteMapping = errors.New("mapping must include date and amount columns")
	ErrPreviewNotFound   = errors.New("no preview data found, please upload a file again")
)

// RowError reports the data row that aborted a commit. Row is the 1-based
// position among the data rows of the preview.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

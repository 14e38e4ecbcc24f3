package services

import (
	"errors"

	"ledger/internal/core"
)

// mergeFieldErrors copies the fields of a validation error into v and
// reports whether err was one.
func mergeFieldErrors(v *core.ValidationError, err error) bool {
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for _, f := range ve.Fields {
		v.Add(f.Field, f.Err)
	}
	return true
}

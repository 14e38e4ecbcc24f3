package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/middleware/auth"
)

const maxJSONBody = 1 << 20

var (
	errInvalidID      = errors.New("must be a positive integer")
	errInvalidBool    = errors.New("must be true or false")
	errInvalidDate    = errors.New("must be a YYYY-MM-DD date")
	errInvalidNumber  = errors.New("must be a number of at least 1")
	errInvalidAmount  = errors.New("must be a decimal amount")
	errMissingFile    = errors.New("a CSV file is required")
	errUnexpectedBody = errors.New("request body must contain a single JSON object")
)

// currentUser is set by the auth middleware on every /api route.
func currentUser(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// parseID reads the {id} route variable.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, core.NewFieldError("id", errInvalidID)
	}
	return id, nil
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("invalid JSON body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON body", errUnexpectedBody)
	}
	return nil
}

// parseOptionalBool reads name as a boolean; absent means nil.
func parseOptionalBool(q url.Values, name string, v *core.ValidationError) *bool {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.Add(name, errInvalidBool)
		return nil
	}
	return &b
}

func parseOptionalDate(q url.Values, name string, v *core.ValidationError) *core.Date {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		v.Add(name, errInvalidDate)
		return nil
	}
	return &d
}

func parseOptionalID(q url.Values, name string, v *core.ValidationError) *int64 {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		v.Add(name, errInvalidID)
		return nil
	}
	return &id
}

// parseFilter reads the transaction filter parameters. Every malformed
// value is reported as a field error.
func parseFilter(q url.Values) (core.Filter, error) {
	v := &core.ValidationError{}
	f := core.Filter{
		DateFrom:   parseOptionalDate(q, "date__gte", v),
		DateTo:     parseOptionalDate(q, "date__lte", v),
		CategoryID: parseOptionalID(q, "category", v),
		TagID:      parseOptionalID(q, "tag", v),
		Query:      strings.TrimSpace(q.Get("q")),
	}

	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		if k, err := core.ParseKind(raw); err != nil {
			v.Add("type", err)
		} else {
			f.Type = &k
		}
	}

	for name, dst := range map[string]**decimal.Decimal{"amount__gte": &f.AmountMin, "amount__lte": &f.AmountMax} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		d, err := core.ParseAmount(raw)
		if err != nil {
			v.Add(name, errInvalidAmount)
			continue
		}
		*dst = &d
	}

	if err := v.OrNil(); err != nil {
		return core.Filter{}, err
	}
	return f, nil
}

// parsePage reads page and page_size; page_size is clamped by core.Page.
func parsePage(q url.Values) (core.Page, error) {
	v := &core.ValidationError{}
	var p core.Page
	for name, dst := range map[string]*int{"page": &p.Number, "page_size": &p.Size} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add(name, errInvalidNumber)
			continue
		}
		*dst = n
	}
	if err := v.OrNil(); err != nil {
		return core.Page{}, err
	}
	if p.Number == 0 {
		p.Number = 1
	}
	return p, nil
}

// isTruthy accepts 1, true, yes.
func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/csvimport"
	"ledger/internal/log"
	"ledger/internal/reports"
	"ledger/internal/services"
)

// Money renders an amount as a string with exactly two decimals.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.Decimal(m).StringFixed(2))
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Row       int               `json:"row,omitempty"`
	UploadURL string            `json:"upload_url,omitempty"`
}

// requestError is a malformed request that never reached the service.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorResponse maps an error to its status and body. Unknown errors are
// 500 with a generic message.
func errorResponse(err error) (int, errorBody) {
	var (
		ve       *core.ValidationError
		rowErr   *csvimport.RowError
		reqErr   *requestError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &rowErr):
		// storage failures inside a row are not the uploader's fault
		if !errors.As(rowErr.Err, &ve) {
			return http.StatusInternalServerError, errorBody{Error: "import failed", Row: rowErr.Row}
		}
		return http.StatusBadRequest, errorBody{Error: rowErr.Error(), Fields: ve.Map(), Row: rowErr.Row}
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Map()}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large"}
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorBody{Error: reqErr.Error()}
	case errors.Is(err, csvimport.ErrPreviewNotFound):
		return http.StatusGone, errorBody{Error: err.Error(), UploadURL: importUploadPath}
	case errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrMissingHeader),
		errors.Is(err, csvimport.ErrInvalidMapping),
		errors.Is(err, csvimport.ErrIncompleteMapping):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, errorBody{Error: "already exists"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "request timed out"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	ctx := r.Context()
	if status >= http.StatusInternalServerError {
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.FieldError, err)
	} else {
		log.FromContext(ctx).DebugContext(ctx, "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	w.Header().Del("Content-Disposition")
	writeJSON(w, status, body)
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusUnauthorized, "authentication required")
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", log.FieldComponent, log.ComponentRateLimit, log.FieldClientIP, s.ipResolver.ClientIP(r))
	writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

type transactionView struct {
	ID           int64     `json:"id"`
	Type         core.Kind `json:"type"`
	Amount       Money     `json:"amount"`
	SignedAmount Money     `json:"signed_amount"`
	Currency     string    `json:"currency"`
	Date         core.Date `json:"date"`
	Category     *int64    `json:"category"`
	CategoryName string    `json:"category_name,omitempty"`
	Tags         []int64   `json:"tags"`
	TagNames     []string  `json:"tag_names"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return transactionView{
		ID:           t.ID,
		Type:         t.Type,
		Amount:       Money(t.Amount),
		SignedAmount: Money(t.SignedAmount()),
		Currency:     t.Currency,
		Date:         t.Date,
		Category:     t.CategoryID,
		CategoryName: t.CategoryName(),
		Tags:         t.TagIDs(),
		TagNames:     names,
		Notes:        t.Notes,
		CreatedAt:    t.CreatedAt,
	}
}

func newTransactionViews(txns []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		out = append(out, newTransactionView(t))
	}
	return out
}

type transactionPageView struct {
	Items    []transactionView `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Pages    int64             `json:"pages"`
}

func newTransactionPageView(p services.TransactionPage) transactionPageView {
	pages := int64(0)
	if p.PageSize > 0 {
		pages = (p.Total + int64(p.PageSize) - 1) / int64(p.PageSize)
	}
	return transactionPageView{
		Items:    newTransactionViews(p.Items),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    pages,
	}
}

type budgetView struct {
	ID           int64       `json:"id"`
	Category     int64       `json:"category"`
	CategoryName string      `json:"category_name,omitempty"`
	Period       core.Period `json:"period"`
	Amount       Money       `json:"amount"`
	StartMonth   core.Date   `json:"start_month"`
	Rollover     bool        `json:"rollover"`
	CreatedAt    time.Time   `json:"created_at"`
}

func newBudgetView(b core.Budget) budgetView {
	v := budgetView{
		ID:         b.ID,
		Category:   b.CategoryID,
		Period:     b.Period,
		Amount:     Money(b.Amount),
		StartMonth: b.StartMonth,
		Rollover:   b.Rollover,
		CreatedAt:  b.CreatedAt,
	}
	if b.Category != nil {
		v.CategoryName = b.Category.Name
	}
	return v
}

type progressView struct {
	Budget     budgetView `json:"budget"`
	Spent      Money      `json:"spent"`
	Remaining  Money      `json:"remaining"`
	Percentage Money      `json:"percentage"`
}

func newProgressViews(rows []reports.BudgetProgress) []progressView {
	out := make([]progressView, 0, len(rows))
	for _, p := range rows {
		out = append(out, progressView{
			Budget:     newBudgetView(p.Budget),
			Spent:      Money(p.Spent),
			Remaining:  Money(p.Remaining),
			Percentage: Money(p.Percentage),
		})
	}
	return out
}

type categoryTotalView struct {
	Name  string    `json:"name"`
	Kind  core.Kind `json:"kind"`
	Total Money     `json:"total"`
}

func newCategoryTotalViews(rows []core.CategoryTotal) []categoryTotalView {
	out := make([]categoryTotalView, 0, len(rows))
	for _, c := range rows {
		out = append(out, categoryTotalView{Name: c.Name, Kind: c.Kind, Total: Money(c.Total)})
	}
	return out
}

func moneySeries(values []decimal.Decimal) []Money {
	out := make([]Money, 0, len(values))
	for _, v := range values {
		out = append(out, Money(v))
	}
	return out
}

type monthlyRowView struct {
	Label   string    `json:"label"`
	Month   core.Date `json:"month"`
	Income  Money     `json:"income"`
	Expense Money     `json:"expense"`
	Net     Money     `json:"net"`
}

type monthlyView struct {
	Labels          []string         `json:"labels"`
	Income          []Money          `json:"income"`
	Expense         []Money          `json:"expense"`
	Net             []Money          `json:"net"`
	Rows            []monthlyRowView `json:"rows"`
	CurrencyWarning string           `json:"currency_warning,omitempty"`
}

func newMonthlyView(m reports.MonthlyReport) monthlyView {
	rows := make([]monthlyRowView, 0, len(m.Rows))
	for _, r := range m.Rows {
		rows = append(rows, monthlyRowView{
			Label:   r.Label,
			Month:   r.Month,
			Income:  Money(r.Income),
			Expense: Money(r.Expense),
			Net:     Money(r.Net),
		})
	}
	return monthlyView{
		Labels:          m.Labels,
		Income:          moneySeries(m.Income),
		Expense:         moneySeries(m.Expense),
		Net:             moneySeries(m.Net),
		Rows:            rows,
		CurrencyWarning: m.CurrencyWarning,
	}
}

type categoryReportView struct {
	Categories      []categoryTotalView `json:"categories"`
	IncomeTotal     Money               `json:"income_total"`
	ExpenseTotal    Money               `json:"expense_total"`
	NetTotal        Money               `json:"net_total"`
	CurrencyWarning string              `json:"currency_warning,omitempty"`
}

func newCategoryReportView(c reports.CategoryReport) categoryReportView {
	return categoryReportView{
		Categories:      newCategoryTotalViews(c.Categories),
		IncomeTotal:     Money(c.IncomeTotal),
		ExpenseTotal:    Money(c.ExpenseTotal),
		NetTotal:        Money(c.NetTotal),
		CurrencyWarning: c.CurrencyWarning,
	}
}

type dashboardView struct {
	Month           string              `json:"month"`
	IncomeTotal     Money               `json:"income_total"`
	ExpenseTotal    Money               `json:"expense_total"`
	NetTotal        Money               `json:"net_total"`
	TopCategories   []categoryTotalView `json:"top_categories"`
	Recent          []transactionView   `json:"recent_transactions"`
	CurrencyWarning string              `json:"currency_warning,omitempty"`
}

func newDashboardView(d reports.Dashboard) dashboardView {
	return dashboardView{
		Month:           reports.MonthLabel(d.Month),
		IncomeTotal:     Money(d.IncomeTotal),
		ExpenseTotal:    Money(d.ExpenseTotal),
		NetTotal:        Money(d.NetTotal),
		TopCategories:   newCategoryTotalViews(d.TopCategories),
		Recent:          newTransactionViews(d.Recent),
		CurrencyWarning: d.CurrencyWarning,
	}
}

type importResultView struct {
	Created int                    `json:"created"`
	Skipped int                    `json:"skipped"`
	Rows    []csvimport.SkippedRow `json:"skipped_rows,omitempty"`
}

func newImportResultView(res csvimport.Result, details bool) importResultView {
	v := importResultView{Created: res.Created, Skipped: len(res.Skipped)}
	if details {
		v.Rows = res.Skipped
	}
	return v
}

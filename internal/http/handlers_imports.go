package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"ledger/internal/core"
	"ledger/internal/log"
)

// handleUploadImport parks a multipart "file" upload and returns its preview.
func (s *Server) handleUploadImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, core.NewFieldError("file", errMissingFile))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	preview, err := s.ledger.PreviewImport(ctx, currentUser(r), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Import uploaded",
		"filename", header.Filename,
		"size", len(data),
		log.FieldRows, preview.TotalRows)
	writeJSON(w, http.StatusOK, preview)
}

type commitRequest struct {
	Mapping map[string]string `json:"mapping"`
}

func (s *Server) handleCommitImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledger.CommitImport(ctx, currentUser(r), mux.Vars(r)["token"], req.Mapping)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportResultView(res, isTruthy(r.URL.Query().Get("details"))))
}

func (s *Server) handleAbandonImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.ledger.AbandonImport(ctx, currentUser(r), mux.Vars(r)["token"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exportPreviewView struct {
	Items []transactionView `json:"items"`
	Total int64             `json:"total"`
}

// handleExport streams CSV with download=1, otherwise previews the first rows.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !isTruthy(q.Get("download")) {
		items, total, err := s.ledger.ExportPreview(ctx, currentUser(r), f)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exportPreviewView{Items: newTransactionViews(items), Total: total})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.ledger.ExportFilename()+`"`)
	cw := &countingWriter{w: w}
	if _, err := s.ledger.ExportCSV(ctx, currentUser(r), f, cw); err != nil {
		if cw.n == 0 {
			s.writeError(w, r, err)
			return
		}
		// the status and part of the file are already out
		log.FromContext(ctx).ErrorContext(ctx, "Export interrupted",
			log.FieldError, err,
			"bytes_written", cw.n)
	}
}

// countingWriter records how much of a streamed response was sent.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

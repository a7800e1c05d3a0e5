// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/dpmon/internal/history"
	"github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/validate"
)

// SettingsResponse is the body of GET /api/settings.
type SettingsResponse struct {
	Revision string            `json:"revision"`
	Epoch    uint64            `json:"epoch"`
	Source   string            `json:"source"`
	LoadedAt time.Time         `json:"loaded_at"`
	Document settings.Document `json:"settings"`
}

// FieldError is one validation failure in a 422 body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateResponse is the body of POST /api/settings/validate.
type ValidateResponse struct {
	Valid    bool         `json:"valid"`
	Revision string       `json:"revision,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// ReloadResponse is the body of a successful POST /api/settings/reload.
type ReloadResponse struct {
	Revision string `json:"revision"`
	Epoch    uint64 `json:"epoch"`
	Changed  bool   `json:"changed"`
}

func etag(rev string) string { return `"` + rev + `"` }

// notModified answers conditional GETs. It reports whether the response is done.
func notModified(w http.ResponseWriter, r *http.Request, snap *settings.Snapshot) bool {
	tag := etag(snap.Revision)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		c := strings.TrimSpace(candidate)
		if c == tag || c == "W/"+tag || c == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Holder.Current()
	if notModified(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		Revision: snap.Revision,
		Epoch:    snap.Epoch,
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
		Document: snap.Document,
	})
}

func (s *Server) handleConfigJS(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Holder.Current()
	if notModified(w, r, snap) {
		return
	}
	var buf bytes.Buffer
	if err := settings.RenderJS(&buf, snap.Document); err != nil {
		l := log.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str("event", "api.render_failed").
			Str(log.FieldRevision, snap.Revision).
			Msg("failed to render config.js")
		writeError(w, r, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func requestFormat(r *http.Request) settings.Format {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "yaml") {
		return settings.FormatYAML
	}
	return settings.FormatJSON
}

func fieldErrors(errs []validate.Error) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{Field: e.Field, Message: e.Message})
	}
	return out
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	doc, err := settings.Decode(body, requestFormat(r))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{
			Errors: []FieldError{{Field: "document", Message: err.Error()}},
		})
		return
	}

	if err := doc.Validate(); err != nil {
		var verr validate.ValidationError
		if !errors.As(err, &verr) {
			writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{Errors: fieldErrors(verr.Errors())})
		return
	}

	rev, err := settings.Hash(doc)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Revision: rev})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	before := s.deps.Holder.Current()

	if err := s.deps.Holder.Reload(r.Context()); err != nil {
		logger.Warn().Err(err).Str("event", "api.reload_failed").Msg("settings reload rejected")
		var verr validate.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{Errors: fieldErrors(verr.Errors())})
			return
		}
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	after := s.deps.Holder.Current()
	logger.Info().
		Str("event", "api.reload").
		Str(log.FieldRevision, after.Revision).
		Uint64(log.FieldEpoch, after.Epoch).
		Msg("settings reload requested")
	writeJSON(w, http.StatusOK, ReloadResponse{
		Revision: after.Revision,
		Epoch:    after.Epoch,
		Changed:  after.Epoch != before.Epoch,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, http.StatusNotFound, "revision history is disabled")
		return
	}

	limit := history.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	revs, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		l := log.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str("event", "api.history_failed").
			Msg("failed to list settings history")
		writeError(w, r, http.StatusInternalServerError, "history unavailable")
		return
	}
	if revs == nil {
		revs = []history.Revision{}
	}
	writeJSON(w, http.StatusOK, revs)
}

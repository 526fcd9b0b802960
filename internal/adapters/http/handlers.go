package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"categorywatch/internal/application/orchestrators"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/wikititle"
)

const (
	maxEditBodyBytes   = 1 << 20
	defaultPerfWindow  = 15 * time.Minute
	defaultPerfTopN    = 10
	healthCheckTimeout = 2 * time.Second
)

// editRequest is the JSON body of POST /api/edits.
type editRequest struct {
	PageID        int64     `json:"page_id"`
	PageNamespace int       `json:"page_namespace"`
	NamespaceName string    `json:"page_namespace_prefix"` // optional; needed for site-defined namespaces
	PageTitle     string    `json:"page_title"`
	EditorID      int64     `json:"editor_id"`
	EditorName    string    `json:"editor_name"`
	Before        []string  `json:"before"` // absent or null: read from the categorylinks table
	After         []string  `json:"after"`
	Summary       string    `json:"summary"`
	Minor         bool      `json:"minor"`
	Timestamp     time.Time `json:"timestamp"`
}

// validate checks the request and builds the page title.
func (req editRequest) validate() (wikititle.Title, error) {
	if req.PageTitle == "" {
		return wikititle.Title{}, errors.New("page_title is required")
	}
	if req.After == nil {
		return wikititle.Title{}, errors.New("after is required")
	}
	if req.EditorID == 0 && req.EditorName == "" {
		return wikititle.Title{}, errors.New("editor_name is required for anonymous edits")
	}
	if req.Before == nil && req.PageID <= 0 {
		return wikititle.Title{}, errors.New("page_id is required when before is omitted")
	}
	page, err := wikititle.NewWithPrefix(req.PageNamespace, req.NamespaceName, req.PageTitle)
	if err != nil {
		return wikititle.Title{}, fmt.Errorf("page_title: %w", err)
	}
	return page, nil
}

type reportResponse struct {
	DispatchID string             `json:"dispatch_id"`
	Change     string             `json:"change"`
	Sent       int                `json:"sent"`
	AutoWatch  string             `json:"auto_watch,omitempty"`
	Categories []categoryResponse `json:"categories"`
	Failures   []failureResponse  `json:"failures"`
}

type categoryResponse struct {
	Category   string `json:"category"`
	Recipients int    `json:"recipients"`
	Sent       int    `json:"sent"`
}

type failureResponse struct {
	Category    string `json:"category,omitempty"`
	RecipientID int64  `json:"recipient_id,omitempty"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
}

func newReportResponse(report notification.Report) reportResponse {
	resp := reportResponse{
		DispatchID: report.DispatchID,
		Change:     report.Change.String(),
		Sent:       report.Sent(),
		Categories: make([]categoryResponse, 0, len(report.Categories)),
		Failures:   make([]failureResponse, 0, len(report.Failures)),
	}
	for _, c := range report.Categories {
		resp.Categories = append(resp.Categories, categoryResponse(c))
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, failureResponse{
			Category:    f.Category,
			RecipientID: f.RecipientID,
			Stage:       string(f.Stage),
			Error:       f.Err.Error(),
		})
	}
	return resp
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err)
	}
}

// handleEdit handles POST /api/edits.
// The wiki calls it after every saved edit. Notification problems are reported in the body and
// never turn into an error status: the edit itself already succeeded.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBodyBytes)

	var req editRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	page, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Dispatch outlives a caller that hangs up.
	ctx := context.WithoutCancel(r.Context())

	var autoWatched string
	if s.deps.AutoWatch != nil {
		res, err := orchestrators.ExecuteEnsureAutoWatch(ctx, orchestrators.EnsureAutoWatchInput{EditorID: req.EditorID}, *s.deps.AutoWatch)
		if err != nil {
			slog.Warn("catwatch_event", "event", "auto_watch_failed", "editor_id", req.EditorID, "error", err)
		} else if res.Added {
			autoWatched = res.Category.PrefixedText()
		}
	}

	report := orchestrators.ExecuteNotifyCategoryChange(ctx, orchestrators.NotifyCategoryChangeInput{
		PageID:     req.PageID,
		Page:       page,
		EditorID:   req.EditorID,
		EditorName: req.EditorName,
		Before:     req.Before,
		After:      req.After,
		Summary:    req.Summary,
		Minor:      req.Minor,
		Timestamp:  req.Timestamp,
	}, s.deps.Notify)

	resp := newReportResponse(report)
	resp.AutoWatch = autoWatched
	writeJSON(w, http.StatusAccepted, resp)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]string{"status": "ok", "version": s.deps.Version}
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx); err != nil {
			slog.Error("health_check_failed", "error", err)
			status["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// handlePerf handles GET /api/perf?window=15m&top=10.
func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		http.Error(w, "perf collection disabled", http.StatusNotFound)
		return
	}
	window := defaultPerfWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}
	topN := defaultPerfTopN
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid top", http.StatusBadRequest)
			return
		}
		topN = n
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(time.Now().Add(-window), topN))
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/export"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/service"
)

// ─── Service ─────────────────────────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "AI Requirements Engineering API",
		"status":      "running",
		"version":     s.opts.Info.Version,
		"ai_provider": s.opts.Info.Provider,
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	API           string `json:"api"`
	LLMConfigured bool   `json:"llm_configured"`
	Database      string `json:"database"`
	Timestamp     string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "healthy",
		API:           "running",
		LLMConfigured: s.opts.Info.LLMConfigured,
		Database:      "connected",
		Timestamp:     timeNow().UTC().Format(time.RFC3339),
	}
	if s.history == nil {
		resp.Database = "disabled"
	} else if err := s.history.Ping(); err != nil {
		s.logger.Warn("health: database ping failed", "err", err)
		resp.Database = "disconnected"
	}
	if resp.Database != "connected" || !resp.LLMConfigured {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Analysis ────────────────────────────────────────────────────────────────

type analyzeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Mode  string `json:"mode"`
}

type analyzeResponse struct {
	AnalysisID            *int64                       `json:"analysis_id"`
	Conflicts             []analysis.ConflictFinding   `json:"conflicts"`
	Ambiguities           []analysis.AmbiguityFinding  `json:"ambiguities"`
	Suggestions           []analysis.SuggestionFinding `json:"suggestions"`
	ModelUsed             string                       `json:"model_used"`
	Mode                  string                       `json:"mode"`
	ProcessingTimeSeconds int                          `json:"processing_time_seconds"`
	RawResponse           *string                      `json:"raw_response,omitempty"`
}

func newAnalyzeResponse(out *service.Outcome) analyzeResponse {
	f := out.Findings.Normalize()
	resp := analyzeResponse{
		Conflicts:             f.Conflicts,
		Ambiguities:           f.Ambiguities,
		Suggestions:           f.Suggestions,
		ModelUsed:             out.Model,
		Mode:                  string(out.Mode),
		ProcessingTimeSeconds: int(out.Duration / time.Second),
	}
	if out.ID != 0 {
		id := out.ID
		resp.AnalysisID = &id
	}
	if f.RawResponse != "" {
		raw := f.RawResponse
		resp.RawResponse = &raw
	}
	return resp
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body exceeds the 10 MB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Request body must be JSON with a \"text\" field")
		return
	}
	out, err := s.analyzer.AnalyzeText(r.Context(), req.Text, service.Options{Model: req.Model, Mode: req.Mode})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(out))
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the 10 MB upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Request must be multipart/form-data with a \"file\" field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read the uploaded file")
		return
	}
	opts := service.Options{Model: r.FormValue("model"), Mode: r.FormValue("mode")}
	out, err := s.analyzer.AnalyzeDocument(r.Context(), header.Filename, data, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(out))
}

// ─── History ─────────────────────────────────────────────────────────────────

type historyListResponse struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []history.Record `json:"items"`
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), history.DefaultLimit, 1, history.MaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := intParam(q.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset "+err.Error())
		return
	}
	order := q.Get("order_by")
	switch order {
	case "":
		order = history.OrderDesc
	case history.OrderAsc, history.OrderDesc:
	default:
		writeError(w, http.StatusBadRequest, "order_by must be \"asc\" or \"desc\"")
		return
	}

	total, items, err := s.history.List(history.ListOptions{Limit: limit, Offset: offset, Order: order})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyListResponse{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  nonNilRecords(items),
	})
}

func (s *Server) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}
	limit, err := intParam(q.Get("limit"), history.DefaultLimit, 1, history.MaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	items, err := s.history.Search(query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilRecords(items))
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.history.Delete(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, notFound(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Analysis %d deleted successfully", id),
	})
}

// ─── Export ──────────────────────────────────────────────────────────────────

func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.record(w, r)
		if !ok {
			return
		}
		data, contentType, err := export.Render(format, rec.Findings(), timeNow())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		name := export.Filename(rec.ID, rec.CreatedAt, format)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// record loads the analysis named by the {id} path value, writing the
// error response itself when it cannot.
func (s *Server) record(w http.ResponseWriter, r *http.Request) (*history.Record, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	rec, err := s.history.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound(id))
		return nil, false
	}
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	}
	writeError(w, status, detail)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Analysis ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func notFound(id int64) string {
	return fmt.Sprintf("Analysis with ID %d not found", id)
}

// intParam parses an optional integer query value. hi < 0 means unbounded.
func intParam(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi < 0 {
			return 0, fmt.Errorf("must be at least %d", lo)
		}
		return 0, fmt.Errorf("must be between %d and %d", lo, hi)
	}
	return n, nil
}

func nonNilRecords(items []history.Record) []history.Record {
	if items == nil {
		return []history.Record{}
	}
	return items
}

// Package httpapi serves the analysis service and its history over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/logging"
	"github.com/HendryAvila/reqcheck/internal/service"
)

// maxUpload caps the size of an uploaded document.
const maxUpload = 10 << 20

// shutdownGrace bounds how long in-flight requests get after the
// context is cancelled.
const shutdownGrace = 5 * time.Second

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Analyzer runs analyses. *service.Service implements it.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string, opts service.Options) (*service.Outcome, error)
	AnalyzeDocument(ctx context.Context, filename string, data []byte, opts service.Options) (*service.Outcome, error)
}

// History is the read side of the analysis store. *history.Store implements it.
type History interface {
	Get(id int64) (*history.Record, error)
	List(opts history.ListOptions) (int, []history.Record, error)
	Search(query string, limit int) ([]history.Record, error)
	Delete(id int64) (bool, error)
	Ping() error
}

// Info describes the running service for the banner and health endpoints.
type Info struct {
	Provider      string
	Version       string
	LLMConfigured bool
}

// Options configures the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Info         Info
	Logger       *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	analyzer Analyzer
	history  History
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a new HTTP server. hist may be nil, in which case the
// history and export endpoints answer 503.
func NewServer(analyzer Analyzer, hist History, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		analyzer: analyzer,
		history:  hist,
		opts:     opts,
		logger:   logger,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze/file", s.handleAnalyzeFile)

	mux.HandleFunc("GET /api/history", s.needsHistory(s.handleHistoryList))
	mux.HandleFunc("GET /api/history/search", s.needsHistory(s.handleHistorySearch))
	mux.HandleFunc("GET /api/history/{id}", s.needsHistory(s.handleHistoryGet))
	mux.HandleFunc("DELETE /api/history/{id}", s.needsHistory(s.handleHistoryDelete))

	mux.HandleFunc("GET /api/export/json/{id}", s.needsHistory(s.handleExport("json")))
	mux.HandleFunc("GET /api/export/docx/{id}", s.needsHistory(s.handleExport("docx")))

	return requestID(accessLog(s.logger, cors(mux)))
}

// needsHistory answers 503 when the server runs without a history store.
func (s *Server) needsHistory(h http.HandlerFunc) http.HandlerFunc {
	if s.history != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "Analysis history is unavailable")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "err", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

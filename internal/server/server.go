// Package server wires all components and creates the MCP and HTTP
// server instances.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools, handlers and service that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/config"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/httpapi"
	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/logging"
	"github.com/HendryAvila/reqcheck/internal/mcptools"
	"github.com/HendryAvila/reqcheck/internal/prompts"
	"github.com/HendryAvila/reqcheck/internal/resources"
	"github.com/HendryAvila/reqcheck/internal/service"
	"github.com/HendryAvila/reqcheck/internal/templates"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the shared dependencies of every entry point.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *service.Service

	// Store is nil when the history database could not be opened.
	Store *history.Store
}

// NewApp resolves all dependencies for cfg.
//
// The returned cleanup function closes the history store's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if history init failed.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	if logger == nil {
		logger = logging.Discard()
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	// History is an independent subsystem: if it fails to initialize,
	// analysis keeps working and results are simply not saved.
	cleanup := noop
	store, err := history.New(history.Config{
		DataDir:          cfg.Storage.DataDir,
		FileName:         config.HistoryFile,
		MaxSearchResults: history.MaxLimit,
	})
	var saver service.Saver
	if err != nil {
		logger.Warn("history disabled", "err", err)
		store = nil
	} else {
		logger.Debug("history enabled", "path", cfg.HistoryPath())
		saver = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("history store close", "err", err)
			}
		}
	}

	svc := service.New(saver, NewFactory(cfg, renderer, logger), cfg, service.WithLogger(logger))

	return &App{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Store:   store,
	}, cleanup, nil
}

// NewFactory returns a service.Factory. A full pipeline runs its precise
// stages on the requested model and its fast stages on the configured fast
// model; a quick review makes its single call to the requested model.
// Phase changes are logged at debug level.
func NewFactory(cfg *config.Config, renderer *templates.Renderer, logger *slog.Logger) service.Factory {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(model string, mode service.Mode) (service.Analyzer, error) {
		runLogger := logger.With("model", model, "mode", string(mode))
		opts := []analysis.Option{
			analysis.WithRenderer(renderer),
			analysis.WithLogger(runLogger),
			analysis.WithObserver(func(p analysis.Phase) {
				runLogger.Debug("analysis phase", "phase", string(p))
			}),
		}

		precise, err := llm.New(providerConfig(cfg, model))
		if err != nil {
			return nil, err
		}
		if mode == service.ModeQuick {
			return analysis.NewReviewer(precise, opts...)
		}
		fast, err := llm.New(providerConfig(cfg, cfg.LLM.FastModel))
		if err != nil {
			return nil, err
		}
		return analysis.New(precise, fast, opts...)
	}
}

func providerConfig(cfg *config.Config, model string) llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       model,
		CallTimeout: cfg.LLM.CallTimeout,
		Retries:     cfg.LLM.Retries,
	}
}

// NewMCP creates the MCP server with all tools, prompts and resources
// registered.
func NewMCP(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"reqcheck",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Analysis ---

	analyzeTool := mcptools.NewAnalyzeTool(app.Service)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	// --- History ---
	//
	// Skipped when the store is unavailable; req_analyze still works
	// and reports that nothing was saved.

	if app.Store != nil {
		registerHistoryTools(s, app.Store)

		resourceHandler := resources.NewHandler(app.Store)
		s.AddResource(resourceHandler.RecentResource(), resourceHandler.HandleRecent)
	}

	// --- Prompts ---

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	return s
}

// registerHistoryTools registers the history MCP tools with the server.
func registerHistoryTools(s *server.MCPServer, store *history.Store) {
	historyTool := mcptools.NewHistoryTool(store)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	getTool := mcptools.NewGetTool(store)
	s.AddTool(getTool.Definition(), getTool.Handle)

	searchTool := mcptools.NewSearchTool(store)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	deleteTool := mcptools.NewDeleteTool(store)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	exportTool := mcptools.NewExportTool(store)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	statsTool := mcptools.NewStatsTool(store)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// NewHTTP creates the REST API server.
func NewHTTP(app *App) *httpapi.Server {
	var hist httpapi.History
	if app.Store != nil {
		hist = app.Store
	}
	return httpapi.NewServer(app.Service, hist, httpapi.Options{
		Addr:         app.Config.Server.Addr,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		Info: httpapi.Info{
			Provider:      app.Config.LLM.Provider,
			Version:       Version,
			LLMConfigured: app.Config.LLMConfigured(),
		},
		Logger: app.Logger,
	})
}

// noop is a no-op cleanup function used as the default when history
// is disabled or hasn't been initialized.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use reqcheck.
func serverInstructions() string {
	return `You have access to reqcheck, a requirements analysis MCP server.

## WHEN TO USE reqcheck

Suggest req_analyze when the user:
- Shares an SRS, a list of user stories, or acceptance criteria
- Asks whether requirements are complete, consistent, or testable
- Is about to plan or build from a written set of requirements

req_analyze finds three kinds of problems:
- Conflicts: two requirements that cannot both hold
- Ambiguities: vague wording, missing numbers, actors or conditions
- Suggestions: clearer rewrites of weak requirements

## WORKFLOW

1. Run req_analyze with the text, or with file_path for a .txt or .docx file
2. Walk the user through conflicts first, then ambiguities, then suggestions
3. Ask the user to decide each conflict; do not pick silently
4. Offer req_export (json inline, or docx into a directory) when done

Past analyses are kept: req_history lists them, req_search finds them by
words of their input, req_get shows one in full, req_delete removes one and
req_stats summarizes the whole history.

Analysis calls a language model several times and can take a minute.
If a call fails, the error names the stage that failed; retrying later is
usually enough.`
}

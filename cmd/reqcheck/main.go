// reqcheck: requirements analysis for SRS documents and user stories.
//
// Finds conflicting requirements, ambiguous requirements and rewrite
// suggestions with a multi-stage LLM pipeline, and keeps a searchable
// history of past analyses.
//
// Usage:
//
//	reqcheck serve               # Start the REST API
//	reqcheck mcp                 # Start the MCP server (stdio transport)
//	reqcheck analyze <file|->    # Analyze one document and print the report
//	reqcheck watch <dir>         # Analyze documents dropped into dir
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/HendryAvila/reqcheck/internal/config"
	"github.com/HendryAvila/reqcheck/internal/export"
	"github.com/HendryAvila/reqcheck/internal/logging"
	rcserver "github.com/HendryAvila/reqcheck/internal/server"
	"github.com/HendryAvila/reqcheck/internal/service"
	"github.com/HendryAvila/reqcheck/internal/watcher"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "mcp":
		err = runMCP(args[1:], stderr)
	case "analyze":
		err = runAnalyze(ctx, args[1:], stdin, stdout, stderr)
	case "watch":
		err = runWatch(ctx, args[1:], stdout, stderr)
	case "--help", "-h", "help":
		printUsage(stdout)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "reqcheck v%s\n", rcserver.Version)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 1
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// ─── Subcommands ─────────────────────────────────────────────────────────────

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	cfgPath := configFlag(fs)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, cleanup, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	if *addr != "" {
		app.Config.Server.Addr = *addr
	}
	if !app.Config.LLMConfigured() {
		app.Logger.Warn("no API key configured; analysis requests will fail until GEMINI_API_KEY is set")
	}
	return rcserver.NewHTTP(app).Run(ctx)
}

func runMCP(args []string, stderr io.Writer) error {
	fs := newFlagSet("mcp", stderr)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, cleanup, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	// The stdio server manages its own lifecycle and stops on SIGINT/SIGTERM.
	return server.ServeStdio(rcserver.NewMCP(app))
}

func runAnalyze(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("analyze", stderr)
	cfgPath := configFlag(fs)
	model := fs.String("model", "", "model to analyze with (default: llm.precise_model)")
	mode := modeFlag(fs)
	out := fs.String("out", "", "write the report to this file; a .docx name selects the Word format")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("analyze needs exactly one document path, or - for stdin")
	}
	src := fs.Arg(0)

	app, cleanup, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := service.Options{Model: *model, Mode: *mode}
	var outcome *service.Outcome
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		outcome, err = app.Service.AnalyzeText(ctx, string(data), opts)
		if err != nil {
			return err
		}
	} else {
		outcome, err = app.Service.AnalyzeFile(ctx, src, opts)
		if err != nil {
			return err
		}
	}
	if raw := outcome.Findings.RawResponse; raw != "" {
		fmt.Fprintf(stderr, "warning: the model reply held no JSON:\n%s\n", raw)
	}

	format := export.FormatJSON
	if strings.EqualFold(filepath.Ext(*out), ".docx") {
		format = export.FormatDOCX
	}
	report, _, err := export.Render(format, outcome.Findings, timeNow())
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = stdout.Write(report)
		return err
	}
	if err := os.WriteFile(*out, report, 0o644); err != nil {
		return err
	}
	s := export.Summarize(outcome.Findings)
	fmt.Fprintf(stderr, "Wrote %s: %d conflicts, %d ambiguities, %d suggestions", *out,
		s.TotalConflicts, s.TotalAmbiguities, s.TotalSuggestions)
	if outcome.ID != 0 {
		fmt.Fprintf(stderr, " (analysis #%d)", outcome.ID)
	}
	fmt.Fprintln(stderr)
	return nil
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("watch", stderr)
	cfgPath := configFlag(fs)
	model := fs.String("model", "", "model to analyze with (default: llm.precise_model)")
	mode := modeFlag(fs)
	outDir := fs.String("out", "", "directory for reports (overrides watch.output_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("watch needs exactly one directory")
	}

	app, cleanup, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	if *outDir == "" {
		*outDir = app.Config.Watch.OutputDir
	}
	w, err := watcher.New(app.Service, watcher.Options{
		Dir:       fs.Arg(0),
		OutputDir: *outDir,
		Model:     *model,
		Mode:      *mode,
		Logger:    app.Logger,
		OnResult: func(r watcher.Result) {
			if r.Err == nil {
				fmt.Fprintf(stdout, "%s -> %s\n", r.Path, r.Output)
			}
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("reqcheck "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func modeFlag(fs *flag.FlagSet) *string {
	return fs.String("mode", string(service.ModeFull), "full (staged review) or quick (one model call)")
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", config.DefaultPath(), "path to the YAML config file")
}

// setup loads configuration and builds the shared dependencies. Logs go
// to stderr so stdout stays clean for reports and the MCP transport.
func setup(cfgPath string, stderr io.Writer) (*rcserver.App, func(), error) {
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	slog.SetDefault(logger)

	app, cleanup, err := rcserver.NewApp(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating app: %w", err)
	}
	return app, cleanup, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `reqcheck v%s: requirements analysis

Usage:
  reqcheck serve   [--addr :8000]                 Start the REST API
  reqcheck mcp                                    Start the MCP server (stdio transport)
  reqcheck analyze [--model m] [--mode full|quick] [--out f] <file|->
                                                  Analyze one .txt/.docx document (- reads stdin)
  reqcheck watch   [--model m] [--mode full|quick] [--out dir] <dir>
                                                  Analyze documents dropped into dir
  reqcheck version                                Print the version

Every command accepts --config (default: ~/.reqcheck/config.yaml).

Environment:
  GEMINI_API_KEY      Gemini API key (GOOGLE_API_KEY is also read)
  REQCHECK_ADDR       HTTP listen address
  REQCHECK_DATA_DIR   Directory of the history database
  REQCHECK_LOG_LEVEL  debug, info, warn or error

MCP configuration:

  {
    "mcpServers": {
      "reqcheck": {
        "command": "reqcheck",
        "args": ["mcp"]
      }
    }
  }
`, rcserver.Version)
}

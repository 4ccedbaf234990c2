// Package watcher analyzes requirement documents dropped into a directory.
//
// Each supported file that is created or written is analyzed once its
// events settle, and the JSON report is written next to it (or into the
// configured output directory) as <name>.analysis.json.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/reqcheck/internal/docs"
	"github.com/HendryAvila/reqcheck/internal/export"
	"github.com/HendryAvila/reqcheck/internal/logging"
	"github.com/HendryAvila/reqcheck/internal/service"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is analyzed.
const DefaultDebounce = 500 * time.Millisecond

// OutputSuffix is appended to the source name (without extension).
const OutputSuffix = ".analysis.json"

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Analyzer analyzes documents. *service.Service implements it.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string, opts service.Options) (*service.Outcome, error)
}

// Result reports one processed file.
type Result struct {
	Path   string
	Output string
	ID     int64
	Err    error
}

// Options configures a Watcher.
type Options struct {
	// Dir is the watched directory.
	Dir string
	// OutputDir receives the reports. Empty means next to the source file.
	OutputDir string
	// Model and Mode are passed to every analysis. Empty selects the
	// defaults.
	Model    string
	Mode     string
	Debounce time.Duration
	Logger   *slog.Logger
	// OnResult, when set, is called after every processed file.
	OnResult func(Result)
}

// Watcher watches one directory.
type Watcher struct {
	analyzer Analyzer
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher.
func New(analyzer Analyzer, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watcher: directory is required")
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: %s is not a directory", opts.Dir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		analyzer: analyzer,
		opts:     opts,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled. Files are analyzed one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching for documents",
		"dir", w.opts.Dir,
		"extensions", strings.Join(docs.SupportedExtensions(), ","),
	)

	ctx, cancel := context.WithCancel(ctx)
	ready := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case path := <-ready:
				w.report(w.process(ctx, path))
			}
		}
	}()
	defer func() {
		cancel()
		w.stopTimers()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event, ready)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// ProcessFile analyzes path right away and writes its report.
func (w *Watcher) ProcessFile(ctx context.Context, path string) Result {
	res := w.process(ctx, path)
	w.report(res)
	return res
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event, ready chan<- string) {
	if !watched(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name, ready)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) Result {
	res := Result{Path: path}

	out, err := w.analyzer.AnalyzeFile(ctx, path, service.Options{Model: w.opts.Model, Mode: w.opts.Mode})
	if err != nil {
		res.Err = err
		return res
	}
	res.ID = out.ID

	report, err := export.JSON(out.Findings, timeNow())
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = w.outputPath(path)
	if err := writeFileAtomic(res.Output, report); err != nil {
		res.Err = fmt.Errorf("watcher: writing report: %w", err)
	}
	return res
}

func (w *Watcher) report(res Result) {
	if res.Err != nil {
		w.logger.Error("document analysis failed", "path", res.Path, "err", res.Err)
	} else {
		w.logger.Info("document analyzed", "path", res.Path, "output", res.Output, "id", res.ID)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

// outputPath maps srs.docx to <out>/srs.analysis.json.
func (w *Watcher) outputPath(path string) string {
	dir := w.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := filepath.Base(path)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+OutputSuffix)
}

// watched skips unsupported extensions, hidden files and Office lock files.
func watched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return docs.Supported(filepath.Ext(base))
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".reqcheck-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Package history persists completed analyses.
//
// It uses SQLite with an FTS5 index over the submitted text and file name,
// so past analyses can be listed, searched, exported and deleted. The
// pipeline never writes here; callers save a snapshot of the findings
// after a run succeeds.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/reqcheck/internal/analysis"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = errors.New("history: analysis not found")

// timeLayout is how created_at is stored; it sorts lexically.
const timeLayout = "2006-01-02 15:04:05"

// List bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Sort orders accepted by List.
const (
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Record is one saved analysis.
type Record struct {
	ID                    int64                        `json:"id"`
	TextInput             *string                      `json:"text_input"`
	FileName              *string                      `json:"file_name"`
	CreatedAt             time.Time                    `json:"created_at"`
	Conflicts             []analysis.ConflictFinding   `json:"conflicts"`
	Ambiguities           []analysis.AmbiguityFinding  `json:"ambiguities"`
	Suggestions           []analysis.SuggestionFinding `json:"suggestions"`
	ModelUsed             *string                      `json:"model_used"`
	ProcessingTimeSeconds *int                         `json:"processing_time_seconds"`
}

// Findings returns the record's three finding lists.
func (r *Record) Findings() *analysis.Findings {
	return (&analysis.Findings{
		Conflicts:   r.Conflicts,
		Ambiguities: r.Ambiguities,
		Suggestions: r.Suggestions,
	}).Normalize()
}

// SaveParams holds the input for saving an analysis.
type SaveParams struct {
	TextInput      string
	FileName       string
	Findings       *analysis.Findings
	ModelUsed      string
	ProcessingTime time.Duration
}

// ListOptions controls paging. Zero values select the defaults.
type ListOptions struct {
	Limit  int
	Offset int
	Order  string
}

// Normalize clamps the options into their valid ranges.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if strings.ToLower(o.Order) == OrderAsc {
		o.Order = OrderAsc
	} else {
		o.Order = OrderDesc
	}
	return o
}

// Stats is a summary of the store's contents.
type Stats struct {
	TotalAnalyses    int        `json:"total_analyses"`
	TotalConflicts   int        `json:"total_conflicts"`
	TotalAmbiguities int        `json:"total_ambiguities"`
	TotalSuggestions int        `json:"total_suggestions"`
	LastAnalysisAt   *time.Time `json:"last_analysis_at,omitempty"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds history store configuration.
type Config struct {
	DataDir          string
	FileName         string
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the history store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".reqcheck"),
		FileName:         "history.db",
		MaxSearchResults: MaxLimit,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the analysis history backed by SQLite + FTS5.
// It is safe for concurrent use.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec  func(db execer, query string, args ...any) (sql.Result, error)
	query func(db queryer, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

// New creates a Store. It creates the data directory if needed, opens
// SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.FileName == "" {
		cfg.FileName = "history.db"
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = MaxLimit
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.FileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	var one int
	return s.db.QueryRow("SELECT 1").Scan(&one)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS analyses (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			text_input              TEXT,
			file_name               TEXT,
			created_at              TEXT    NOT NULL DEFAULT (datetime('now')),
			conflicts               TEXT    NOT NULL DEFAULT '[]',
			ambiguities             TEXT    NOT NULL DEFAULT '[]',
			suggestions             TEXT    NOT NULL DEFAULT '[]',
			model_used              TEXT,
			processing_time_seconds INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS analyses_fts USING fts5(
			text_input,
			file_name,
			content='analyses',
			content_rowid='id'
		);
	`
	if _, err := s.execHook(s.db, schema); err != nil {
		return err
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='analyses_fts_insert'",
	).Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	triggers := `
		CREATE TRIGGER analyses_fts_insert AFTER INSERT ON analyses BEGIN
			INSERT INTO analyses_fts(rowid, text_input, file_name)
			VALUES (new.id, new.text_input, new.file_name);
		END;

		CREATE TRIGGER analyses_fts_delete AFTER DELETE ON analyses BEGIN
			INSERT INTO analyses_fts(analyses_fts, rowid, text_input, file_name)
			VALUES ('delete', old.id, old.text_input, old.file_name);
		END;

		CREATE TRIGGER analyses_fts_update AFTER UPDATE ON analyses BEGIN
			INSERT INTO analyses_fts(analyses_fts, rowid, text_input, file_name)
			VALUES ('delete', old.id, old.text_input, old.file_name);
			INSERT INTO analyses_fts(rowid, text_input, file_name)
			VALUES (new.id, new.text_input, new.file_name);
		END;
	`
	_, err = s.execHook(s.db, triggers)
	return err
}

// ─── Analyses ────────────────────────────────────────────────────────────────

const recordColumns = `id, text_input, file_name, created_at, conflicts, ambiguities, suggestions, model_used, processing_time_seconds`

// Save stores one analysis and returns its id.
func (s *Store) Save(p SaveParams) (int64, error) {
	f := p.Findings
	if f == nil {
		f = analysis.EmptyFindings()
	}
	f.Normalize()

	conflicts, err := json.Marshal(f.Conflicts)
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	ambiguities, err := json.Marshal(f.Ambiguities)
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	suggestions, err := json.Marshal(f.Suggestions)
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	seconds := int(p.ProcessingTime / time.Second)

	res, err := s.execHook(s.db,
		`INSERT INTO analyses (text_input, file_name, created_at, conflicts, ambiguities, suggestions, model_used, processing_time_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(p.TextInput), nullableString(p.FileName),
		timeNow().UTC().Format(timeLayout),
		string(conflicts), string(ambiguities), string(suggestions),
		nullableString(p.ModelUsed), seconds,
	)
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	return res.LastInsertId()
}

// Get retrieves one analysis by id.
func (s *Store) Get(id int64) (*Record, error) {
	records, err := s.queryRecords(`SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("history: get %d: %w", id, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// List returns one page of analyses ordered by creation time, plus the
// total number of analyses stored.
func (s *Store) List(opts ListOptions) (int, []Record, error) {
	opts = opts.Normalize()

	total, err := s.Count()
	if err != nil {
		return 0, nil, err
	}

	// Order is one of two constants, never user text.
	dir := "DESC"
	if opts.Order == OrderAsc {
		dir = "ASC"
	}
	records, err := s.queryRecords(
		`SELECT `+recordColumns+` FROM analyses
		 ORDER BY created_at `+dir+`, id `+dir+`
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("history: list: %w", err)
	}
	return total, records, nil
}

// Count returns the number of stored analyses.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Delete removes one analysis. It reports whether a row was deleted.
func (s *Store) Delete(id int64) (bool, error) {
	res, err := s.execHook(s.db, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("history: delete %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("history: delete %d: %w", id, err)
	}
	return n > 0, nil
}

// ─── Search (FTS5) ───────────────────────────────────────────────────────────

// Search finds analyses whose text or file name match every word of query,
// newest first. A blank query returns the most recent analyses. When the
// full-text index finds nothing, the query is matched as a plain substring
// so that parts of words still hit.
func (s *Store) Search(query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	query = strings.TrimSpace(query)
	if query == "" {
		_, records, err := s.List(ListOptions{Limit: limit})
		return records, err
	}

	if ftsQuery := sanitizeFTS(query); ftsQuery != "" {
		records, err := s.queryRecords(
			`SELECT a.id, a.text_input, a.file_name, a.created_at, a.conflicts, a.ambiguities, a.suggestions, a.model_used, a.processing_time_seconds
			 FROM analyses_fts fts
			 JOIN analyses a ON a.id = fts.rowid
			 WHERE analyses_fts MATCH ?
			 ORDER BY a.created_at DESC, a.id DESC
			 LIMIT ?`,
			ftsQuery, limit,
		)
		if err != nil {
			return nil, fmt.Errorf("history: search: %w", err)
		}
		if len(records) > 0 {
			return records, nil
		}
	}

	pattern := "%" + escapeLike(query) + "%"
	records, err := s.queryRecords(
		`SELECT `+recordColumns+`
		 FROM analyses
		 WHERE text_input LIKE ? ESCAPE '\' OR file_name LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: search: %w", err)
	}
	return records, nil
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats summarizes the stored analyses.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}
	var last sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(json_array_length(conflicts)), 0),
		       COALESCE(SUM(json_array_length(ambiguities)), 0),
		       COALESCE(SUM(json_array_length(suggestions)), 0),
		       MAX(created_at)
		FROM analyses`,
	).Scan(&st.TotalAnalyses, &st.TotalConflicts, &st.TotalAmbiguities, &st.TotalSuggestions, &last)
	if err != nil {
		return nil, fmt.Errorf("history: stats: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(timeLayout, last.String); err == nil {
			st.LastAnalysisAt = &t
		}
	}
	return st, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Store) queryRecords(query string, args ...any) ([]Record, error) {
	rows, err := s.queryHook(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		var (
			r                                   Record
			createdAt                           string
			conflicts, ambiguities, suggestions string
			seconds                             sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID, &r.TextInput, &r.FileName, &createdAt,
			&conflicts, &ambiguities, &suggestions,
			&r.ModelUsed, &seconds,
		); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		r.Conflicts = decodeList[analysis.ConflictFinding](conflicts)
		r.Ambiguities = decodeList[analysis.AmbiguityFinding](ambiguities)
		r.Suggestions = decodeList[analysis.SuggestionFinding](suggestions)
		if seconds.Valid {
			n := int(seconds.Int64)
			r.ProcessingTimeSeconds = &n
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// decodeList reads a stored findings column. A corrupt column reads as empty.
func decodeList[T any](data string) []T {
	out := []T{}
	if err := json.Unmarshal([]byte(data), &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// escapeLike escapes the LIKE wildcards in s with a backslash.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// sanitizeFTS quotes each word and makes it a prefix match. Words without
// a letter or digit are dropped, the tokenizer would discard them anyway.
// "auth log" → `"auth"* "log"*`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	out := words[:0]
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if !strings.ContainsFunc(w, isWordRune) {
			continue
		}
		out = append(out, `"`+w+`"*`)
	}
	return strings.Join(out, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

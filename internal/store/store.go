package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yangwenmai/scanforge/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ RunReader = (*Store)(nil)
	_ RunWriter = (*Store)(nil)
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// RunSummary is the list view of one formatting run.
type RunSummary struct {
	ID               string               `json:"id"`
	Filename         string               `json:"filename,omitempty"`
	Status           model.WorkflowStatus `json:"status"`
	Success          bool                 `json:"success"`
	Template         string               `json:"template,omitempty"`
	Score            int                  `json:"score"`
	OriginalLines    int                  `json:"original_lines"`
	TransformedLines int                  `json:"transformed_lines"`
	Error            string               `json:"error,omitempty"`
	CreatedAt        string               `json:"created_at"`
}

// Run is one persisted formatting run with its stage log and output.
type Run struct {
	RunSummary
	Code     string          `json:"code"`
	Workflow *model.Workflow `json:"workflow"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status   []model.WorkflowStatus
	Template string
	Limit    int
}

// Store provides data access to the run-history database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) q(query string) string { return rebind(s.dialect, query) }

// currentSchemaVersion is bumped whenever the schema changes.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: runs table
		s.migrateV2, // v1 → v2: template index
	}
	if len(migrations) != currentSchemaVersion {
		return fmt.Errorf("have %d migrations for schema v%d", len(migrations), currentSchemaVersion)
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(s.q(`UPDATE schema_version SET version = ?`), i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	return v, err
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		filename          TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		success           INTEGER NOT NULL,
		template          TEXT NOT NULL DEFAULT '',
		score             INTEGER NOT NULL DEFAULT 0,
		original_lines    INTEGER NOT NULL DEFAULT 0,
		transformed_lines INTEGER NOT NULL DEFAULT 0,
		error             TEXT NOT NULL DEFAULT '',
		code              TEXT NOT NULL,
		workflow          TEXT NOT NULL,
		created_at        TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, created_at)`)
	return err
}

func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_template ON runs(template, score)`)
	return err
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// SaveRun inserts a run, replacing an earlier save of the same ID.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	wf, err := json.Marshal(r.Workflow)
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	success := 0
	if r.Success {
		success = 1
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO runs (id, filename, status, success, template, score, original_lines, transformed_lines, error, code, workflow, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			success = excluded.success,
			template = excluded.template,
			score = excluded.score,
			transformed_lines = excluded.transformed_lines,
			error = excluded.error,
			code = excluded.code,
			workflow = excluded.workflow`),
		r.ID, r.Filename, string(r.Status), success, r.Template, r.Score,
		r.OriginalLines, r.TransformedLines, r.Error, r.Code, string(wf), r.CreatedAt,
	)
	return err
}

// GetRun returns a run with its workflow and output code.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+summaryColumns+`, code, workflow FROM runs WHERE id = ?`), id)

	var (
		r  Run
		wf string
	)
	dest := append(summaryDest(&r.RunSummary), &r.Code, &wf)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Workflow = &model.Workflow{}
	if err := json.Unmarshal([]byte(wf), r.Workflow); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns run summaries matching the filter, newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM runs`
	var conditions []string
	var args []interface{}

	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.Template != "" {
		conditions = append(conditions, "template = ?")
		args = append(args, f.Template)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(summaryDest(&r)...); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM runs WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of completed and failed runs.
func (s *Store) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM runs`), string(model.WorkflowCompleted), string(model.WorkflowFailed))
	if err := row.Scan(&counts.Completed, &counts.Failed); err != nil {
		return counts, err
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

const summaryColumns = `id, filename, status, success, template, score, original_lines, transformed_lines, error, created_at`

// summaryDest returns scan targets matching summaryColumns. success is an
// INTEGER column; database/sql converts 0/1 into the bool.
func summaryDest(r *RunSummary) []interface{} {
	return []interface{}{
		&r.ID, &r.Filename, &r.Status, &r.Success, &r.Template, &r.Score,
		&r.OriginalLines, &r.TransformedLines, &r.Error, &r.CreatedAt,
	}
}

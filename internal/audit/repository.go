// Package audit records the history of export and import runs in the
// override_runs table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded export or import run.
type Run struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Source    string         `json:"source"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which runs to return.
type Filter struct {
	Operation string // optional: export_overrides or import_overrides
	Source    string // optional: startup, api, bus, cli, options
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Page size limits for List.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListResult contains the paginated run history.
type ListResult struct {
	Runs   []Run `json:"runs"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Repository defines the interface for run history operations.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores runs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// runIDPrefix marks generated run IDs. The full UUID follows it.
const runIDPrefix = "run-"

// NewSQLiteRepository creates a new run history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a run. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = runIDPrefix + uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if run.Details != nil {
		b, err := json.Marshal(run.Details)
		if err != nil {
			return fmt.Errorf("marshalling run details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	success := 0
	if run.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO override_runs (id, operation, source, success, error, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.Source, success,
		nullableString(run.Error), detailsJSON,
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns runs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM override_runs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, operation, source, success, error, details, created_at FROM override_runs %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var success int
		var errText, detailsJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&run.ID, &run.Operation, &run.Source, &success,
			&errText, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		run.Success = success == 1
		if errText.Valid {
			run.Error = errText.String
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				run.Details = details
			}
		}

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing run timestamp %q: %w", createdAt, err)
		}
		run.CreatedAt = t

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return &ListResult{
		Runs:   runs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

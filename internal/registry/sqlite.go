package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteAdapter implements Adapter over the host's entities and areas tables.
type SQLiteAdapter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteAdapter creates a registry adapter on an open host database.
func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const entryColumns = `entity_id, original_name, name, icon, area_id, hidden_by, disabled_by, updated_at`

// List returns every entity, ordered by entity ID.
func (a *SQLiteAdapter) List(ctx context.Context) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM entities ORDER BY entity_id")
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entries, nil
}

// Get returns a single entity.
func (a *SQLiteAdapter) Get(ctx context.Context, entityID string) (*Entry, error) {
	row := a.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entities WHERE entity_id = ?", entityID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", entityID, err)
	}
	return e, nil
}

// Update applies the non-nil fields of u to the entity.
//
// Hidden and Disabled set the *_by column to ByUser (unless already set) or
// clear it. An empty
// string for Name, Icon or AreaID stores NULL.
func (a *SQLiteAdapter) Update(ctx context.Context, entityID string, u Update) (*Entry, error) {
	if u.IsZero() {
		return a.Get(ctx, entityID)
	}

	if u.AreaID != nil && *u.AreaID != "" {
		ok, err := a.areaExists(ctx, *u.AreaID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAreaNotFound, *u.AreaID)
		}
	}

	var sets []string
	var args []any
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, nullableString(*u.Name))
	}
	if u.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, nullableString(*u.Icon))
	}
	if u.AreaID != nil {
		sets = append(sets, "area_id = ?")
		args = append(args, nullableString(*u.AreaID))
	}
	// Hiding an already hidden entity keeps whoever hid it.
	if u.Hidden != nil {
		sets = append(sets, "hidden_by = CASE WHEN ? THEN COALESCE(hidden_by, ?) ELSE NULL END")
		args = append(args, *u.Hidden, ByUser)
	}
	if u.Disabled != nil {
		sets = append(sets, "disabled_by = CASE WHEN ? THEN COALESCE(disabled_by, ?) ELSE NULL END")
		args = append(args, *u.Disabled, ByUser)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, a.now().Format(time.RFC3339), entityID)

	query := "UPDATE entities SET " + strings.Join(sets, ", ") + " WHERE entity_id = ?"
	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating entity %s: %w", entityID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrEntityNotFound
	}

	return a.Get(ctx, entityID)
}

// Areas returns every area, ordered by ID.
func (a *SQLiteAdapter) Areas(ctx context.Context) ([]Area, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, name FROM areas ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	var areas []Area
	for rows.Next() {
		var ar Area
		if err := rows.Scan(&ar.ID, &ar.Name); err != nil {
			return nil, fmt.Errorf("scanning area: %w", err)
		}
		areas = append(areas, ar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating areas: %w", err)
	}
	return areas, nil
}

// Register inserts an entity, or replaces every stored attribute of an
// existing one. Integrations use it to announce entities; tests use it to
// seed the registry.
func (a *SQLiteAdapter) Register(ctx context.Context, e Entry) error {
	if err := ValidateEntityID(e.EntityID); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO entities (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			original_name = excluded.original_name,
			name = excluded.name,
			icon = excluded.icon,
			area_id = excluded.area_id,
			hidden_by = excluded.hidden_by,
			disabled_by = excluded.disabled_by,
			updated_at = excluded.updated_at`,
		e.EntityID,
		e.OriginalName,
		nullableString(e.Name),
		nullableString(e.Icon),
		nullableString(e.AreaID),
		nullableString(e.HiddenBy),
		nullableString(e.DisabledBy),
		a.now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("registering entity %s: %w", e.EntityID, err)
	}
	return nil
}

// PutArea creates or renames an area.
func (a *SQLiteAdapter) PutArea(ctx context.Context, ar Area) error {
	if ar.ID == "" {
		return fmt.Errorf("%w: empty id", ErrAreaNotFound)
	}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO areas (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		ar.ID, ar.Name,
	)
	if err != nil {
		return fmt.Errorf("putting area %s: %w", ar.ID, err)
	}
	return nil
}

func (a *SQLiteAdapter) areaExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM areas WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("checking area exists: %w", err)
	}
	return count > 0, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var e Entry
	var name, icon, areaID, hiddenBy, disabledBy sql.NullString
	var updatedAt string

	if err := scanner.Scan(
		&e.EntityID, &e.OriginalName, &name, &icon, &areaID, &hiddenBy, &disabledBy, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Name = name.String
	e.Icon = icon.String
	e.AreaID = areaID.String
	e.HiddenBy = hiddenBy.String
	e.DisabledBy = disabledBy.String
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Zero time on foreign formats
	return &e, nil
}

// nullableString stores an empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package folderdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/models"
)

// Insert stores a new folder under parentID (nil for root level) and returns
// the record with its freshly assigned id.
func (db *DB) Insert(ctx context.Context, name string, parentID *string) (models.Record, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, fmt.Errorf("folderdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if parentID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM folders WHERE id = ?`, *parentID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, fmt.Errorf("folderdb: parent %q: %w", *parentID, apperr.ErrNotFound)
		}
		if err != nil {
			return models.Record{}, fmt.Errorf("folderdb: lookup parent: %w", err)
		}
	}

	rec := models.Record{ID: uuid.NewString(), Name: name, ParentID: parentID}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO folders (id, name, parent_id) VALUES (?, ?, ?)`,
		rec.ID, rec.Name, nullable(parentID)); err != nil {
		return models.Record{}, fmt.Errorf("folderdb: insert folder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Record{}, fmt.Errorf("folderdb: commit: %w", err)
	}
	return rec, nil
}

// Get returns a single folder record.
func (db *DB) Get(ctx context.Context, id string) (models.Record, error) {
	var rec models.Record
	var parent sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM folders WHERE id = ?`, id).Scan(&rec.ID, &rec.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("folderdb: get folder: %w", err)
	}
	if parent.Valid {
		rec.ParentID = &parent.String
	}
	return rec, nil
}

// List returns every folder in insertion order.
func (db *DB) List(ctx context.Context) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, parent_id FROM folders ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("folderdb: list folders: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		var parent sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := parent.String
			rec.ParentID = &p
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a folder and, through the cascading foreign key, all of its
// descendants. It returns the ids that were removed, the target first.
func (db *DB) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("folderdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM folders WHERE id = ?
			UNION ALL
			SELECT f.id FROM folders f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT id FROM subtree
	`, id)
	if err != nil {
		return nil, fmt.Errorf("folderdb: collect subtree: %w", err)
	}
	var removed []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, apperr.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("folderdb: delete folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("folderdb: commit: %w", err)
	}
	return removed, nil
}

// Count returns the number of stored folders, the root included.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM folders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("folderdb: count: %w", err)
	}
	return n, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

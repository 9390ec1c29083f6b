package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harun/restx/pkg/errdefs"
)

// SQLiteStore persists resources in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS resources (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			component TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			params TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (kind, name)
		);
		CREATE INDEX IF NOT EXISTS idx_resources_component ON resources(component);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r *Resource) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resources (kind, name, component, description, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.Kind), r.Name, r.Component, r.Description, string(params), r.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errdefs.Conflict("%s %q already exists", r.Kind, r.Name)
		}
		return fmt.Errorf("failed to save %s: %w", r.Kind, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, kind Kind, name string) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT kind, name, component, description, params, created_at FROM resources WHERE kind = ? AND name = ?`,
		string(kind), name,
	)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.NotFound("%s %q not found", kind, name)
	}
	return r, err
}

func (s *SQLiteStore) Delete(ctx context.Context, kind Kind, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE kind = ? AND name = ?`, string(kind), name)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errdefs.NotFound("%s %q not found", kind, name)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, kind Kind) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, name, component, description, params, created_at FROM resources WHERE kind = ? ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(sc scanner) (*Resource, error) {
	var (
		r         Resource
		kind      string
		params    string
		createdAt int64
	)
	if err := sc.Scan(&kind, &r.Name, &r.Component, &r.Description, &params, &createdAt); err != nil {
		return nil, err
	}
	r.Kind = Kind(kind)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params of %q: %w", r.Name, err)
	}
	return &r, nil
}

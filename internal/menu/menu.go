// Package menu provides the flavour catalog the classifier's allow-set is
// built from.
package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrFlavorNotFound is returned when updating a flavour that is not on the
// menu.
var ErrFlavorNotFound = errors.New("flavor not found")

// Source lists the flavours currently on offer.
type Source interface {
	Flavors(ctx context.Context) ([]string, error)
}

// Static is a fixed Source.
type Static []string

var _ Source = Static(nil)

func (s Static) Flavors(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// SQLiteMenu is a Source backed by SQLite.
//
// It expects an *sql.DB opened with the "sqlite" driver from
// modernc.org/sqlite, which this package registers.
type SQLiteMenu struct {
	db *sql.DB
}

var _ Source = (*SQLiteMenu)(nil)

// NewSQLiteMenu initializes the schema in db and returns a menu over it.
func NewSQLiteMenu(db *sql.DB) (*SQLiteMenu, error) {
	m := &SQLiteMenu{db: db}
	if err := m.initSchema(); err != nil {
		return nil, fmt.Errorf("menu schema: %w", err)
	}
	return m, nil
}

// OpenSQLite opens the database at dsn and returns a menu over it. An
// in-memory database (":memory:") is pinned to a single connection so every
// query sees the same data.
func OpenSQLite(dsn string) (*SQLiteMenu, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	m, err := NewSQLiteMenu(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLiteMenu) initSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS flavors (
			name TEXT PRIMARY KEY,
			available INTEGER NOT NULL DEFAULT 1
		);`,
	)
	return err
}

// Add puts flavours on the menu as available. Names are stored trimmed and
// lower-cased; adding an existing flavour makes it available again.
func (m *SQLiteMenu) Add(ctx context.Context, names ...string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, n := range names {
		n = normalize(n)
		if n == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flavors (name, available) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET available = 1`,
			n,
		); err != nil {
			return fmt.Errorf("add flavor %q: %w", n, err)
		}
	}
	return tx.Commit()
}

// SetAvailable marks a flavour as on or off the menu.
func (m *SQLiteMenu) SetAvailable(ctx context.Context, name string, available bool) error {
	flag := 0
	if available {
		flag = 1
	}
	res, err := m.db.ExecContext(ctx, `UPDATE flavors SET available = ? WHERE name = ?`, flag, normalize(name))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFlavorNotFound
	}
	return nil
}

// Flavors returns the available flavours in name order.
func (m *SQLiteMenu) Flavors(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM flavors WHERE available = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (m *SQLiteMenu) Close() error {
	return m.db.Close()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

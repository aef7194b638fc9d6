// Package records keeps per-person display preferences in SQLite.
package records

import (
	"context"
	"database/sql"
	"sync"

	"github.com/abihf/smartmirror/names"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is returned for operations on an unknown person.
var ErrNotFound = errors.New("person not found")

// Store wraps the SQLite connection with serialized writes.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open records database")
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate records database")
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS person_categories (
		person_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		PRIMARY KEY (person_id, category),
		FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Taken reports whether a record with an equivalent name exists.
func (s *Store) Taken(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM people WHERE name_key = ?`, names.Key(name)).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query people")
	}
	return n > 0, nil
}

// Add creates a person with the given content categories.
func (s *Store) Add(ctx context.Context, name string, categories ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO people (name, name_key) VALUES (?, ?)`, name, names.Key(name))
	if err != nil {
		return errors.Wrapf(err, "insert %s", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert id")
	}
	if err := insertCategories(ctx, tx, id, categories); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// SetCategories replaces the categories of an existing person.
func (s *Store) SetCategories(ctx context.Context, name string, categories ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM people WHERE name_key = ?`, names.Key(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return errors.Wrap(ErrNotFound, name)
	}
	if err != nil {
		return errors.Wrap(err, "query person")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM person_categories WHERE person_id = ?`, id); err != nil {
		return errors.Wrap(err, "clear categories")
	}
	if err := insertCategories(ctx, tx, id, categories); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func insertCategories(ctx context.Context, tx *sql.Tx, id int64, categories []string) error {
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO person_categories (person_id, category) VALUES (?, ?)`, id, c); err != nil {
			return errors.Wrapf(err, "insert category %s", c)
		}
	}
	return nil
}

// Categories returns the categories of name in insertion order. Unknown
// people have none.
func (s *Store) Categories(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT c.category FROM person_categories c
		JOIN people p ON p.id = c.person_id
		WHERE p.name_key = ?
		ORDER BY c.rowid`, names.Key(name))
	if err != nil {
		return nil, errors.Wrap(err, "query categories")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.Wrap(err, "scan category")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// People lists every registered name.
func (s *Store) People(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT name FROM people ORDER BY name_key`)
	if err != nil {
		return nil, errors.Wrap(err, "query people")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.Wrap(err, "scan person")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

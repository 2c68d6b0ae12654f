package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finze/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every collection as JSON documents in one table,
// keyed by (collection, user_id, id).
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Store exposes the repository through the backend-neutral collections.
func (r *SQLiteRepository) Store() *Store {
	return &Store{
		Transactions: NewSQLiteCollection[core.Transaction](r, core.CollectionTransactions),
		Budgets:      NewSQLiteCollection[core.Budget](r, core.CollectionBudgets),
		Goals:        NewSQLiteCollection[core.SavingsGoal](r, core.CollectionGoals),
		Recurrences:  NewSQLiteCollection[core.Recurrence](r, core.CollectionRecurrences),
		Suggestions:  NewSQLiteCollection[core.Suggestion](r, core.CollectionSuggestions),
		Corrections:  NewSQLiteCollection[core.Correction](r, core.CollectionCorrections),
		Categories:   r,
	}
}

// ListCategories implements CategoryLister from the migrated categories table.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SQLiteCollection is one collection inside the documents table.
type SQLiteCollection[T core.Document] struct {
	repo *SQLiteRepository
	name core.Collection
}

func NewSQLiteCollection[T core.Document](repo *SQLiteRepository, name core.Collection) *SQLiteCollection[T] {
	return &SQLiteCollection[T]{repo: repo, name: name}
}

func (c *SQLiteCollection[T]) List(ctx context.Context, userID string) ([]T, error) {
	rows, err := c.repo.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND user_id = ? ORDER BY created_at, rowid`,
		string(c.name), userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	return scanDocuments[T](rows, c.name)
}

func (c *SQLiteCollection[T]) ListAll(ctx context.Context) ([]T, error) {
	rows, err := c.repo.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? ORDER BY user_id, created_at, rowid`,
		string(c.name))
	if err != nil {
		return nil, fmt.Errorf("list all %s: %w", c.name, err)
	}
	return scanDocuments[T](rows, c.name)
}

func (c *SQLiteCollection[T]) Get(ctx context.Context, userID, id string) (T, error) {
	var zero T
	var body string
	err := c.repo.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND user_id = ? AND id = ?`,
		string(c.name), userID, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s %s/%s: %w", c.name, userID, id, ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", c.name, err)
	}
	var doc T
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return doc, nil
}

func (c *SQLiteCollection[T]) Put(ctx context.Context, doc T) error {
	if doc.GetUserID() == "" || doc.GetID() == "" {
		return fmt.Errorf("put %s: missing user or id", c.name)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	_, err = c.repo.db.ExecContext(ctx, `
		INSERT INTO documents (collection, user_id, id, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, user_id, id)
		DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
		string(c.name), doc.GetUserID(), doc.GetID(), string(body))
	if err != nil {
		return fmt.Errorf("put %s: %w", c.name, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite",
		"collection", c.name,
		"user_id", doc.GetUserID(),
		"id", doc.GetID())
	return nil
}

func (c *SQLiteCollection[T]) Delete(ctx context.Context, userID, id string) error {
	res, err := c.repo.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND user_id = ? AND id = ?`,
		string(c.name), userID, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s/%s: %w", c.name, userID, id, ErrNotFound)
	}
	return nil
}

func scanDocuments[T core.Document](rows *sql.Rows, name core.Collection) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		var doc T
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return out, nil
}

// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides exchange ledger persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS exchanges (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			had_image INTEGER NOT NULL DEFAULT 0,
			requires_validation INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
		CREATE INDEX IF NOT EXISTS idx_exchanges_agent ON exchanges(agent);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveExchange records a completed chat round trip
func (s *SQLiteStore) SaveExchange(ctx context.Context, ex *Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, agent, message, response, error, had_image, requires_validation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ex.ID, ex.Agent, ex.Message, ex.Response, ex.Error, boolToInt(ex.HadImage), boolToInt(ex.RequiresValidation), ex.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving exchange: %w", err)
	}

	return nil
}

// GetExchange retrieves an exchange by ID
func (s *SQLiteStore) GetExchange(ctx context.Context, id string) (*Exchange, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent, message, response, error, had_image, requires_validation, created_at
		FROM exchanges WHERE id = ?
	`, id)

	ex, err := scanExchange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting exchange: %w", err)
	}

	return ex, nil
}

// RecentExchanges returns the most recent exchanges, newest first
func (s *SQLiteStore) RecentExchanges(ctx context.Context, limit int) ([]*Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, message, response, error, had_image, requires_validation, created_at
		FROM exchanges ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}

	return exchanges, rows.Err()
}

// CountExchanges returns the total number of recorded exchanges
func (s *SQLiteStore) CountExchanges(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting exchanges: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (*Exchange, error) {
	var ex Exchange
	var hadImage, requiresValidation int

	err := row.Scan(&ex.ID, &ex.Agent, &ex.Message, &ex.Response, &ex.Error, &hadImage, &requiresValidation, &ex.CreatedAt)
	if err != nil {
		return nil, err
	}

	ex.HadImage = hadImage != 0
	ex.RequiresValidation = requiresValidation != 0
	return &ex, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"
)

// SQLiteConnectionStore implements ConnectionStore using SQLite
type SQLiteConnectionStore struct {
	db       *sql.DB
	dbPath   string
	prepared map[string]*sql.Stmt
}

// NewSQLiteConnectionStore creates a new SQLite connection store
func NewSQLiteConnectionStore(dbPath string) *SQLiteConnectionStore {
	return &SQLiteConnectionStore{
		dbPath:   dbPath,
		prepared: make(map[string]*sql.Stmt),
	}
}

// Initialize sets up the database connection and creates the connections table
func (s *SQLiteConnectionStore) Initialize(ctx context.Context) error {
	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}

	s.db = db

	// A single writer avoids SQLITE_BUSY under concurrent event handling
	s.db.SetMaxOpenConns(1)
	s.db.SetConnMaxLifetime(time.Hour)

	if err := s.createTables(ctx); err != nil {
		return errors.Wrap(err, "failed to create tables")
	}

	if err := s.prepareStatements(ctx); err != nil {
		return errors.Wrap(err, "failed to prepare statements")
	}

	return nil
}

func (s *SQLiteConnectionStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS connections (
		origin_ts TEXT PRIMARY KEY,
		mirror_ts TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteConnectionStore) prepareStatements(ctx context.Context) error {
	statements := map[string]string{
		"lookup": `SELECT mirror_ts FROM connections WHERE origin_ts = ?`,
		"upsert": `
			INSERT INTO connections (origin_ts, mirror_ts, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(origin_ts) DO UPDATE SET
				mirror_ts = excluded.mirror_ts,
				created_at = excluded.created_at
		`,
		"delete": `DELETE FROM connections WHERE origin_ts = ?`,
	}

	for name, query := range statements {
		stmt, err := s.db.PrepareContext(ctx, query)
		if err != nil {
			return errors.Wrapf(err, "failed to prepare statement %s", name)
		}
		s.prepared[name] = stmt
	}

	return nil
}

// Close closes prepared statements and the database connection
func (s *SQLiteConnectionStore) Close() error {
	for _, stmt := range s.prepared {
		if stmt != nil {
			stmt.Close()
		}
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LookupMirror retrieves the mirror timestamp for an origin timestamp
func (s *SQLiteConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	stmt := s.prepared["lookup"]
	if stmt == nil {
		return "", false, errors.New("lookup statement not prepared")
	}

	var mirrorTS string
	err := stmt.QueryRowContext(ctx, originTS).Scan(&mirrorTS)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to lookup connection")
	}

	return mirrorTS, true, nil
}

// CreateConnection inserts or overwrites the connection for an origin timestamp
func (s *SQLiteConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	stmt := s.prepared["upsert"]
	if stmt == nil {
		return errors.New("upsert statement not prepared")
	}

	if _, err := stmt.ExecContext(ctx, originTS, mirrorTS, time.Now().Unix()); err != nil {
		return errors.Wrap(err, "failed to upsert connection")
	}
	return nil
}

// DeleteConnection removes the connection for an origin timestamp if present
func (s *SQLiteConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	stmt := s.prepared["delete"]
	if stmt == nil {
		return errors.New("delete statement not prepared")
	}

	if _, err := stmt.ExecContext(ctx, originTS); err != nil {
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

// HealthCheck verifies that the database connection is working
func (s *SQLiteConnectionStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection is nil")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database ping failed")
	}

	if _, err := s.db.ExecContext(ctx, "SELECT COUNT(*) FROM connections LIMIT 1"); err != nil {
		return errors.Wrap(err, "database health check query failed")
	}

	return nil
}

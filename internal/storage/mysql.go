package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/pkg/errors"
)

// MySQLConnectionStore implements ConnectionStore using MySQL
type MySQLConnectionStore struct {
	db       *sql.DB
	dsn      string
	prepared map[string]*sql.Stmt
}

// MySQLConfig holds MySQL connection configuration
type MySQLConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Timeout  string
}

// NewMySQLConnectionStore creates a new MySQL connection store
func NewMySQLConnectionStore(config MySQLConfig) *MySQLConnectionStore {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&timeout=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.Timeout,
	)

	return &MySQLConnectionStore{
		dsn:      dsn,
		prepared: make(map[string]*sql.Stmt),
	}
}

// connectWithRetry attempts to connect to MySQL with exponential backoff
func (s *MySQLConnectionStore) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	const maxRetries = 5
	const baseDelay = time.Second

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		db, err := sql.Open("mysql", s.dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}
		lastErr = errors.Wrapf(err, "attempt %d", attempt+1)

		if attempt < maxRetries-1 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * baseDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, errors.Wrapf(lastErr, "failed to connect after %d attempts", maxRetries)
}

// isRetryableError checks if an error is a network/connection issue
func (s *MySQLConnectionStore) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"no such host",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// executeWithRetry runs a single-statement operation, retrying connection failures
func (s *MySQLConnectionStore) executeWithRetry(ctx context.Context, operation func() error) error {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.isRetryableError(err) {
			return err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := time.Duration(math.Pow(2, float64(attempt))) * baseDelay
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return errors.Wrapf(lastErr, "operation failed after %d attempts", maxRetries)
}

// Initialize sets up the database connection and creates the connections table
func (s *MySQLConnectionStore) Initialize(ctx context.Context) error {
	db, err := s.connectWithRetry(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to establish database connection")
	}

	s.db = db

	s.db.SetMaxOpenConns(10)
	s.db.SetMaxIdleConns(5)
	s.db.SetConnMaxLifetime(time.Hour)

	schema := `CREATE TABLE IF NOT EXISTS connections (
		origin_ts VARCHAR(64) NOT NULL PRIMARY KEY,
		mirror_ts VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create tables")
	}

	if err := s.prepareStatements(ctx); err != nil {
		return errors.Wrap(err, "failed to prepare statements")
	}

	return nil
}

func (s *MySQLConnectionStore) prepareStatements(ctx context.Context) error {
	statements := map[string]string{
		"lookup": `SELECT mirror_ts FROM connections WHERE origin_ts = ?`,
		"upsert": `
			INSERT INTO connections (origin_ts, mirror_ts, created_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
			mirror_ts = VALUES(mirror_ts),
			created_at = VALUES(created_at)
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
func (s *MySQLConnectionStore) Close() error {
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
func (s *MySQLConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	stmt := s.prepared["lookup"]
	if stmt == nil {
		return "", false, errors.New("lookup statement not prepared")
	}

	var mirrorTS string
	found := false
	err := s.executeWithRetry(ctx, func() error {
		err := stmt.QueryRowContext(ctx, originTS).Scan(&mirrorTS)
		if err == sql.ErrNoRows {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	if err != nil {
		return "", false, errors.Wrap(err, "failed to lookup connection")
	}

	return mirrorTS, found, nil
}

// CreateConnection inserts or overwrites the connection for an origin timestamp
func (s *MySQLConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	stmt := s.prepared["upsert"]
	if stmt == nil {
		return errors.New("upsert statement not prepared")
	}

	err := s.executeWithRetry(ctx, func() error {
		_, err := stmt.ExecContext(ctx, originTS, mirrorTS, time.Now().Unix())
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to upsert connection")
	}
	return nil
}

// DeleteConnection removes the connection for an origin timestamp if present
func (s *MySQLConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	stmt := s.prepared["delete"]
	if stmt == nil {
		return errors.New("delete statement not prepared")
	}

	err := s.executeWithRetry(ctx, func() error {
		_, err := stmt.ExecContext(ctx, originTS)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

// HealthCheck verifies that the database connection is working
func (s *MySQLConnectionStore) HealthCheck(ctx context.Context) error {
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

package storage

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Supported connection store backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPebble   = "pebble"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config selects and configures a connection store backend
type Config struct {
	Backend       string
	SQLitePath    string
	MySQL         MySQLConfig
	PebblePath    string
	Redis         RedisConfig
	DynamoDBTable string
}

// NewConnectionStore builds the configured backend. The returned store still
// needs Initialize before use.
func NewConnectionStore(config Config, logger *slog.Logger) (ConnectionStore, error) {
	var store ConnectionStore

	switch config.Backend {
	case BackendMemory:
		store = NewMemoryConnectionStore()
	case BackendSQLite, "":
		store = NewSQLiteConnectionStore(config.SQLitePath)
	case BackendMySQL:
		store = NewMySQLConnectionStore(config.MySQL)
	case BackendPebble:
		store = NewPebbleConnectionStore(config.PebblePath)
	case BackendRedis:
		store = NewRedisConnectionStore(config.Redis)
	case BackendDynamoDB:
		store = NewDynamoDBConnectionStore(nil, config.DynamoDBTable)
	default:
		return nil, errors.Errorf("unknown connection store backend %q", config.Backend)
	}

	logger.Info("Connection store selected", "backend", config.Backend)
	return store, nil
}

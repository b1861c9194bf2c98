package storage

import (
	"context"
)

// Connection is the persisted association between an origin message and the
// mirror message the bot posted for it. Both fields are Slack message
// timestamps.
type Connection struct {
	OriginTS string `db:"origin_ts"` // Timestamp of the user-authored message (key)
	MirrorTS string `db:"mirror_ts"` // Timestamp of the bot-authored mirror reply
}

// ConnectionStore defines the persistence operations for origin -> mirror
// connections. Each call is atomic for its single key; there is no listing or
// secondary access path.
type ConnectionStore interface {
	// Initialize opens connections and creates tables where the backend needs them
	Initialize(ctx context.Context) error

	// Close releases backend resources
	Close() error

	// LookupMirror returns the mirror timestamp for origin. found is false on a miss.
	LookupMirror(ctx context.Context, originTS string) (mirrorTS string, found bool, err error)

	// CreateConnection inserts or overwrites the mapping for origin
	CreateConnection(ctx context.Context, originTS, mirrorTS string) error

	// DeleteConnection removes the mapping for origin; deleting a missing key is not an error
	DeleteConnection(ctx context.Context, originTS string) error

	// HealthCheck verifies that the backend is reachable
	HealthCheck(ctx context.Context) error
}

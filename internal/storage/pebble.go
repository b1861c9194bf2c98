package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

const pebbleKeyPrefix = "conn:"

// PebbleConnectionStore keeps connections in an embedded Pebble key-value
// database on local disk.
type PebbleConnectionStore struct {
	db   *pebble.DB
	path string
}

// NewPebbleConnectionStore creates a store rooted at path. The database is
// opened by Initialize.
func NewPebbleConnectionStore(path string) *PebbleConnectionStore {
	return &PebbleConnectionStore{path: path}
}

func (s *PebbleConnectionStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create pebble directory")
	}
	db, err := pebble.Open(s.path, &pebble.Options{})
	if err != nil {
		return errors.Wrap(err, "failed to open pebble database")
	}
	s.db = db
	return nil
}

func (s *PebbleConnectionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PebbleConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	if s.db == nil {
		return "", false, errors.New("pebble database is not open")
	}
	v, closer, err := s.db.Get(pebbleKey(originTS))
	if err == pebble.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to lookup connection")
	}
	defer closer.Close()

	// v is only valid until closer is closed
	return string(append([]byte(nil), v...)), true, nil
}

func (s *PebbleConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	if s.db == nil {
		return errors.New("pebble database is not open")
	}
	if err := s.db.Set(pebbleKey(originTS), []byte(mirrorTS), pebble.Sync); err != nil {
		return errors.Wrap(err, "failed to store connection")
	}
	return nil
}

func (s *PebbleConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	if s.db == nil {
		return errors.New("pebble database is not open")
	}
	if err := s.db.Delete(pebbleKey(originTS), pebble.Sync); err != nil {
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

func (s *PebbleConnectionStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return errors.New("pebble database is not open")
	}
	return nil
}

func pebbleKey(originTS string) []byte {
	return []byte(pebbleKeyPrefix + originTS)
}

package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrCollectionNotFound is returned when a collection search has no match
var ErrCollectionNotFound = errors.New("collection not found")

// PageService defines the operations used against the external
// page-creation API.
type PageService interface {
	// FindCollection returns the identifier of the best-matching collection
	// for name, or ErrCollectionNotFound
	FindCollection(ctx context.Context, name string) (string, error)

	// CreateRecord creates a record titled title starting at start inside
	// collectionID and returns the record URL
	CreateRecord(ctx context.Context, collectionID, title string, start time.Time) (string, error)
}

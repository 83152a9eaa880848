// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/diffbot/internal/domain"
)

// ErrStorage marks failures of the underlying database. Every error returned
// by a Repository method wraps it.
var ErrStorage = errors.New("storage failure")

// Repository defines the interface for persisting calculation records.
type Repository interface {
	// Insert appends a record and returns its generated ID.
	Insert(ctx context.Context, rec domain.Record) (int64, error)

	// ListByUser returns a user's records, oldest first. A user without
	// records gets an empty slice and no error.
	ListByUser(ctx context.Context, userID int64) ([]domain.Record, error)

	// DeleteByUser removes all of a user's records and reports how many were removed.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

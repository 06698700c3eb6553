// Package storage holds the saved-location and driver roster stores.
package storage

import (
	"context"
	"errors"

	"github.com/codeBaron-dev/Rider/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStreamClosed reports a location stream that ended while its
	// subscriber was still listening.
	ErrStreamClosed = errors.New("location stream closed")
)

// LocationStore persists rider locations. All and Search emit the current
// result immediately and again after every change, newest first, until ctx
// is cancelled; the channel is closed afterwards. A channel closed while ctx
// is still live means the stream failed.
type LocationStore interface {
	Insert(ctx context.Context, rec models.LocationRecord) (int64, error)
	Update(ctx context.Context, id int64, rec models.LocationRecord) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	All(ctx context.Context) (<-chan []models.LocationRecord, error)
	Search(ctx context.Context, keyword string) (<-chan []models.LocationRecord, error)
	ByID(ctx context.Context, id int64) (models.LocationRecord, error)
}

// DriverStore keeps the driver roster keyed by car plate number.
type DriverStore interface {
	UpsertAll(ctx context.Context, drivers []models.Driver) error
	All(ctx context.Context) ([]models.Driver, error)
	UpdateByPlate(ctx context.Context, plate string, d models.Driver) error
}

// Package location supplies the rider's current position.
package location

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/places"
)

// Provider reports whether location access is granted and, if so, the
// current fix. An absent fix is reported with ok=false, never as an error.
type Provider interface {
	HasPermission() bool
	CurrentLocation(ctx context.Context) (models.LocationRecord, bool)
}

// Geocoder turns a coordinate into a display address. places.AddressNotFound
// is a normal value, not an error.
type Geocoder interface {
	Address(ctx context.Context, c models.Coord) (string, error)
}

// StaticProvider serves a configured coordinate, standing in for a device
// GPS on the server side.
type StaticProvider struct {
	Coord      models.Coord
	Permission bool
	Geocoder   Geocoder
	Logger     *slog.Logger

	now func() time.Time
}

func NewStaticProvider(c models.Coord, permission bool, g Geocoder, logger *slog.Logger) *StaticProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticProvider{Coord: c, Permission: permission, Geocoder: g, Logger: logger, now: time.Now}
}

func (p *StaticProvider) HasPermission() bool { return p.Permission }

// CurrentLocation returns the configured fix with its geocoded address. A
// geocoder failure degrades the address to places.AddressNotFound; an
// invalid coordinate or missing permission yields no fix.
func (p *StaticProvider) CurrentLocation(ctx context.Context) (models.LocationRecord, bool) {
	if !p.Permission {
		return models.LocationRecord{}, false
	}
	if err := p.Coord.Validate(); err != nil {
		p.logger().Warn("no location fix", "error", err)
		return models.LocationRecord{}, false
	}
	if ctx.Err() != nil {
		return models.LocationRecord{}, false
	}

	address := places.AddressNotFound
	if p.Geocoder != nil {
		a, err := p.Geocoder.Address(ctx, p.Coord)
		if err != nil {
			p.logger().Warn("reverse geocode failed", "error", err)
		} else if a != "" {
			address = a
		}
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return models.LocationRecord{Loc: p.Coord, Address: address, CreatedAt: now()}, true
}

func (p *StaticProvider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

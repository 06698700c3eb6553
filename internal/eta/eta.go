package eta

import (
	"math"

	"github.com/codeBaron-dev/Rider/internal/geo"
	"github.com/codeBaron-dev/Rider/internal/models"
)

// DefaultSpeedKmh is the assumed average city driving speed.
const DefaultSpeedKmh = 50.0

// Minutes converts a straight-line distance into whole minutes at speedKmh,
// truncating toward zero. A non-positive speed falls back to DefaultSpeedKmh.
func Minutes(distanceMeters, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	if distanceMeters <= 0 {
		return 0
	}
	speedMps := speedKmh * 1000 / 3600
	return int(math.Floor(distanceMeters / speedMps / 60))
}

// Between is Minutes over the great-circle distance from one point to another.
func Between(from, to models.Coord, speedKmh float64) int {
	return Minutes(geo.Distance(from, to), speedKmh)
}

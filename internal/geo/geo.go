package geo

import (
	"math"

	"github.com/codeBaron-dev/Rider/internal/models"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// Distance returns the great-circle distance in meters (haversine).
func Distance(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Bearing returns the initial compass bearing from one point toward another,
// in degrees within [0,360). Coincident points yield 0.
func Bearing(from, to models.Coord) float64 {
	if from == to {
		return 0
	}
	lat1, lat2 := toRad(from.Lat), toRad(to.Lat)
	dLon := toRad(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Project moves origin by meters along bearing (degrees) on the sphere.
func Project(origin models.Coord, meters, bearing float64) models.Coord {
	delta := meters / EarthRadius
	theta := toRad(bearing)
	lat1 := toRad(origin.Lat)
	lon1 := toRad(origin.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return models.Coord{Lat: toDeg(lat2), Lon: normalizeLon(toDeg(lon2))}
}

func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+540, 360) - 180
	if lon == -180 {
		return 180
	}
	return lon
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

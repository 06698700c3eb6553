package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidCoord = errors.New("invalid coordinate")

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether c lies on the globe.
func (c Coord) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of [-90,90]", ErrInvalidCoord, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of [-180,180]", ErrInvalidCoord, c.Lon)
	}
	return nil
}

// LocationRecord is a rider location as persisted by a LocationStore.
// ID is zero until the record has been stored.
type LocationRecord struct {
	ID        int64     `json:"id"`
	Loc       Coord     `json:"loc"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Driver is keyed by CarPlateNumber; ID is whatever surrogate the store uses.
type Driver struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Image          string `json:"image"`
	CarPlateNumber string `json:"car_plate_number"`
	CarName        string `json:"car_name"`
	Loc            Coord  `json:"loc"`
}

// SampleDrivers seeds the roster on startup.
func SampleDrivers() []Driver {
	return []Driver{
		{
			Name:           "John Doe",
			Image:          "https://example.com/driver1.png",
			CarPlateNumber: "ABC123",
			CarName:        "Toyota Corolla",
			Loc:            Coord{Lat: 8.229220, Lon: 4.614050},
		},
		{
			Name:           "Jane Smith",
			Image:          "https://example.com/driver2.png",
			CarPlateNumber: "XYZ789",
			CarName:        "Honda Civic",
			Loc:            Coord{Lat: 6.603710, Lon: 3.288890},
		},
	}
}

// PositionUpdate is the event published for every simulated driver step.
type PositionUpdate struct {
	CarPlateNumber string    `json:"car_plate_number"`
	Loc            Coord     `json:"loc"`
	At             time.Time `json:"at"`
}

// Candidate is a driver ranked against a rider location.
type Candidate struct {
	Driver         Driver  `json:"driver"`
	DistanceMeters float64 `json:"distance_meters"`
	Bearing        float64 `json:"bearing"`
	ETAMinutes     int     `json:"eta_minutes"`
	Fare           float64 `json:"fare"`
}

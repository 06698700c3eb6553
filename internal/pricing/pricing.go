// Package pricing quotes trip fares with a time-of-day surge.
package pricing

import (
	"math"
	"time"
)

const (
	BaseFare  = 2.50
	PerKmRate = 1.00

	PeakMultiplier    = 1.5
	OffPeakMultiplier = 1.0
)

// Clock supplies the hour used for surge decisions. Callers that need
// deterministic prices inject a FixedClock.
type Clock interface {
	CurrentHour() int
}

// WallClock reads the real time in Location (UTC when nil).
type WallClock struct {
	Location *time.Location
	now      func() time.Time
}

func (c WallClock) CurrentHour() int {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now()
	if c.Location != nil {
		t = t.In(c.Location)
	}
	return t.Hour()
}

// FixedClock always reports the same hour.
type FixedClock int

func (c FixedClock) CurrentHour() int { return int(c) }

// SurgeMultiplier is 1.5 during the morning (07–09) and evening (17–19) peaks,
// bounds inclusive, and 1.0 otherwise.
func SurgeMultiplier(c Clock) float64 {
	h := c.CurrentHour()
	if (h >= 7 && h <= 9) || (h >= 17 && h <= 19) {
		return PeakMultiplier
	}
	return OffPeakMultiplier
}

// Fare prices distanceMeters at the default rates, rounded to cents.
func Fare(distanceMeters, surge float64) float64 {
	return fare(BaseFare, PerKmRate, distanceMeters, surge)
}

func fare(base, perKm, distanceMeters, surge float64) float64 {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	return roundCents(base + (distanceMeters/1000)*perKm*surge)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Quote is a fare together with the multiplier it was priced at.
type Quote struct {
	DistanceMeters float64 `json:"distance_meters"`
	Surge          float64 `json:"surge"`
	Fare           float64 `json:"fare"`
}

// Engine binds the fare formula to a Clock. Zero rates fall back to the
// package defaults.
type Engine struct {
	Clock     Clock
	BaseFare  float64
	PerKmRate float64
}

func NewEngine(c Clock) *Engine {
	return &Engine{Clock: c, BaseFare: BaseFare, PerKmRate: PerKmRate}
}

// Quote reads the surge once and prices distanceMeters with it.
func (e *Engine) Quote(distanceMeters float64) Quote {
	c := e.Clock
	if c == nil {
		c = WallClock{}
	}
	base, perKm := e.BaseFare, e.PerKmRate
	if base == 0 {
		base = BaseFare
	}
	if perKm == 0 {
		perKm = PerKmRate
	}
	surge := SurgeMultiplier(c)
	return Quote{
		DistanceMeters: distanceMeters,
		Surge:          surge,
		Fare:           fare(base, perKm, distanceMeters, surge),
	}
}

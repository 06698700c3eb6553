package pricing

import (
	"testing"
	"time"
)

func TestFare(t *testing.T) {
	tests := []struct {
		name   string
		meters float64
		surge  float64
		want   float64
	}{
		{"basic fare off-peak", 5000, 1.0, 7.50},
		{"peak hour surge", 8000, 1.5, 14.00},
		{"traffic surge", 6000, 1.3, 10.30},
		{"base fare only", 0, 1.5, 2.50},
		{"negative distance clamps", -100, 1.0, 2.50},
		{"sub-cent rounding", 1234, 1.0, 3.73},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fare(tt.meters, tt.surge); got != tt.want {
				t.Errorf("Fare(%f, %f) = %v, want %v", tt.meters, tt.surge, got, tt.want)
			}
		})
	}
}

func TestSurgeMultiplierByHour(t *testing.T) {
	peak := map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}
	for h := 0; h < 24; h++ {
		want := OffPeakMultiplier
		if peak[h] {
			want = PeakMultiplier
		}
		if got := SurgeMultiplier(FixedClock(h)); got != want {
			t.Errorf("hour %d: got %v, want %v", h, got, want)
		}
	}
}

func TestFareWithClock(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		meters float64
		want   float64
	}{
		{"2 PM", 14, 5000, 7.50},
		{"8 AM", 8, 8000, 14.00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fare(tt.meters, SurgeMultiplier(FixedClock(tt.hour)))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWallClockUsesLocation(t *testing.T) {
	fixed := time.Date(2026, 2, 10, 6, 30, 0, 0, time.UTC)
	lagos := time.FixedZone("WAT", 60*60)
	c := WallClock{Location: lagos, now: func() time.Time { return fixed }}
	if got := c.CurrentHour(); got != 7 {
		t.Fatalf("expected hour 7 in WAT, got %d", got)
	}
	if got := (WallClock{now: func() time.Time { return fixed }}).CurrentHour(); got != 6 {
		t.Fatalf("expected hour 6 in UTC, got %d", got)
	}
}

func TestEngineQuote(t *testing.T) {
	e := NewEngine(FixedClock(18))
	q := e.Quote(8000)
	if q.Surge != PeakMultiplier || q.Fare != 14.00 {
		t.Fatalf("unexpected quote %+v", q)
	}

	zero := &Engine{Clock: FixedClock(12)}
	if q := zero.Quote(5000); q.Fare != 7.50 {
		t.Fatalf("zero rates should fall back to defaults, got %+v", q)
	}
}

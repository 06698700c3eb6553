package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeBaron-dev/Rider/internal/logging"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/places"
)

type fakeGeocoder struct {
	address string
	err     error
	calls   int
}

func (f *fakeGeocoder) Address(context.Context, models.Coord) (string, error) {
	f.calls++
	return f.address, f.err
}

var lagos = models.Coord{Lat: 6.524379, Lon: 3.379206}

func TestStaticProviderWithoutPermission(t *testing.T) {
	g := &fakeGeocoder{address: "Lagos"}
	p := NewStaticProvider(lagos, false, g, logging.Discard())
	if p.HasPermission() {
		t.Fatal("permission should be denied")
	}
	if _, ok := p.CurrentLocation(context.Background()); ok {
		t.Fatal("expected no fix without permission")
	}
	if g.calls != 0 {
		t.Fatal("geocoder must not be called without permission")
	}
}

func TestStaticProviderFix(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	p := NewStaticProvider(lagos, true, &fakeGeocoder{address: "Lagos Island"}, logging.Discard())
	p.now = func() time.Time { return at }

	rec, ok := p.CurrentLocation(context.Background())
	if !ok {
		t.Fatal("expected a fix")
	}
	if rec.Loc != lagos || rec.Address != "Lagos Island" || !rec.CreatedAt.Equal(at) || rec.ID != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStaticProviderAddressFallback(t *testing.T) {
	cases := map[string]Geocoder{
		"nil geocoder":   nil,
		"geocode error":  &fakeGeocoder{err: errors.New("denied")},
		"empty response": &fakeGeocoder{},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewStaticProvider(lagos, true, g, logging.Discard())
			rec, ok := p.CurrentLocation(context.Background())
			if !ok {
				t.Fatal("expected a fix")
			}
			if rec.Address != places.AddressNotFound {
				t.Fatalf("expected %q, got %q", places.AddressNotFound, rec.Address)
			}
		})
	}
}

func TestStaticProviderInvalidCoord(t *testing.T) {
	p := NewStaticProvider(models.Coord{Lat: 120}, true, nil, logging.Discard())
	if _, ok := p.CurrentLocation(context.Background()); ok {
		t.Fatal("invalid coordinate must not produce a fix")
	}
}

package places

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"

	"github.com/codeBaron-dev/Rider/internal/models"
)

type fakeMaps struct {
	autocompleteCalls int
	lastInput         string
	predictions       []maps.AutocompletePrediction
	details           maps.PlaceDetailsResult
	geocode           []maps.GeocodingResult
	err               error
}

func (f *fakeMaps) PlaceAutocomplete(_ context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error) {
	f.autocompleteCalls++
	f.lastInput = r.Input
	return maps.AutocompleteResponse{Predictions: f.predictions}, f.err
}

func (f *fakeMaps) PlaceDetails(_ context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	return f.details, f.err
}

func (f *fakeMaps) ReverseGeocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	return f.geocode, f.err
}

func TestAutocompleteEmptyQuerySkipsNetwork(t *testing.T) {
	f := &fakeMaps{}
	g := &GoogleLookup{client: f}
	got, err := g.Autocomplete(context.Background(), "   ")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if f.autocompleteCalls != 0 {
		t.Fatalf("blank query must not call the API")
	}
}

func TestAutocompleteMapsPredictions(t *testing.T) {
	f := &fakeMaps{predictions: []maps.AutocompletePrediction{{
		PlaceID:     "p1",
		Description: "Ikeja City Mall, Lagos",
		StructuredFormatting: maps.AutocompleteStructuredFormatting{
			MainText:      "Ikeja City Mall",
			SecondaryText: "Lagos",
		},
	}}}
	g := &GoogleLookup{client: f}
	got, err := g.Autocomplete(context.Background(), " ikeja ")
	if err != nil {
		t.Fatal(err)
	}
	if f.lastInput != "ikeja" {
		t.Fatalf("query not trimmed: %q", f.lastInput)
	}
	if len(got) != 1 || got[0].PlaceID != "p1" || got[0].PrimaryText != "Ikeja City Mall" {
		t.Fatalf("unexpected predictions %+v", got)
	}
}

func TestAutocompleteWrapsErrors(t *testing.T) {
	boom := errors.New("quota")
	g := &GoogleLookup{client: &fakeMaps{err: boom}}
	if _, err := g.Autocomplete(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	f := &fakeMaps{details: maps.PlaceDetailsResult{
		PlaceID:          "p1",
		Name:             "Ikeja City Mall",
		FormattedAddress: "Obafemi Awolowo Way, Ikeja",
		Geometry:         maps.AddressGeometry{Location: maps.LatLng{Lat: 6.6142, Lng: 3.3578}},
	}}
	g := &GoogleLookup{client: f}
	got, err := g.Resolve(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Loc != (models.Coord{Lat: 6.6142, Lon: 3.3578}) || got.Address != "Obafemi Awolowo Way, Ikeja" {
		t.Fatalf("unexpected place %+v", got)
	}
	if _, err := g.Resolve(context.Background(), ""); !errors.Is(err, ErrEmptyPlaceID) {
		t.Fatalf("expected ErrEmptyPlaceID, got %v", err)
	}
}

func TestGeocoderAddress(t *testing.T) {
	g := &GoogleGeocoder{client: &fakeMaps{geocode: []maps.GeocodingResult{{FormattedAddress: ""}, {FormattedAddress: "Yaba, Lagos"}}}}
	got, err := g.Address(context.Background(), models.Coord{Lat: 6.5, Lon: 3.37})
	if err != nil || got != "Yaba, Lagos" {
		t.Fatalf("got %q %v", got, err)
	}

	g = &GoogleGeocoder{client: &fakeMaps{}}
	got, err = g.Address(context.Background(), models.Coord{})
	if err != nil || got != AddressNotFound {
		t.Fatalf("expected %q, got %q %v", AddressNotFound, got, err)
	}
}

func TestDisabled(t *testing.T) {
	var l Lookup = Disabled{}
	if got, err := l.Autocomplete(context.Background(), ""); err != nil || len(got) != 0 {
		t.Fatalf("blank query should succeed empty, got %v %v", got, err)
	}
	if _, err := l.Autocomplete(context.Background(), "ikeja"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

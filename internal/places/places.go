// Package places resolves free-text queries and coordinates through the
// Google Maps Places and Geocoding APIs.
package places

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/codeBaron-dev/Rider/internal/models"
)

var ErrEmptyPlaceID = errors.New("empty place id")

// AddressNotFound is the address reported when geocoding yields nothing.
const AddressNotFound = "Address not found"

type Prediction struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	PrimaryText   string `json:"primary_text"`
	SecondaryText string `json:"secondary_text"`
}

type Place struct {
	PlaceID string       `json:"place_id"`
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Loc     models.Coord `json:"loc"`
}

// Lookup is the places collaborator the ride state machine talks to.
type Lookup interface {
	Autocomplete(ctx context.Context, query string) ([]Prediction, error)
	Resolve(ctx context.Context, placeID string) (Place, error)
}

// mapsAPI is the subset of *maps.Client used here.
type mapsAPI interface {
	PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewMapsClient creates the shared Google Maps client.
func NewMapsClient(apiKey string) (*maps.Client, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

// GoogleLookup implements Lookup with Place Autocomplete and Place Details.
type GoogleLookup struct {
	client mapsAPI
}

func NewGoogleLookup(client *maps.Client) *GoogleLookup {
	return &GoogleLookup{client: client}
}

// Autocomplete returns predictions for query. A blank query returns an empty
// result without calling the API.
func (g *GoogleLookup) Autocomplete(ctx context.Context, query string) ([]Prediction, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Prediction{}, nil
	}
	resp, err := g.client.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{Input: query})
	if err != nil {
		return nil, fmt.Errorf("places autocomplete: %w", err)
	}
	out := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, Prediction{
			PlaceID:       p.PlaceID,
			Description:   p.Description,
			PrimaryText:   p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return out, nil
}

func (g *GoogleLookup) Resolve(ctx context.Context, placeID string) (Place, error) {
	if strings.TrimSpace(placeID) == "" {
		return Place{}, ErrEmptyPlaceID
	}
	r := &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskPlaceID,
			maps.PlaceDetailsFieldMaskName,
			maps.PlaceDetailsFieldMaskGeometryLocation,
			maps.PlaceDetailsFieldMaskFormattedAddress,
		},
	}
	res, err := g.client.PlaceDetails(ctx, r)
	if err != nil {
		return Place{}, fmt.Errorf("place details %s: %w", placeID, err)
	}
	return Place{
		PlaceID: res.PlaceID,
		Name:    res.Name,
		Address: res.FormattedAddress,
		Loc:     models.Coord{Lat: res.Geometry.Location.Lat, Lon: res.Geometry.Location.Lng},
	}, nil
}

// GoogleGeocoder resolves coordinates to a display address.
type GoogleGeocoder struct {
	client mapsAPI
}

func NewGoogleGeocoder(client *maps.Client) *GoogleGeocoder {
	return &GoogleGeocoder{client: client}
}

// Address returns the first formatted address for c, or AddressNotFound
// when the API has none.
func (g *GoogleGeocoder) Address(ctx context.Context, c models.Coord) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: c.Lat, Lng: c.Lon},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return AddressNotFound, nil
}

var ErrDisabled = errors.New("places lookup disabled: no API key configured")

// Disabled stands in for Lookup when no Maps API key is configured.
type Disabled struct{}

func (Disabled) Autocomplete(_ context.Context, query string) ([]Prediction, error) {
	if strings.TrimSpace(query) == "" {
		return []Prediction{}, nil
	}
	return nil, ErrDisabled
}

func (Disabled) Resolve(context.Context, string) (Place, error) { return Place{}, ErrDisabled }

package ride

import (
	"errors"

	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/places"
)

var (
	ErrUnknownIntent = errors.New("unknown intent")
	ErrStopped       = errors.New("ride machine stopped")
	ErrNotStarted    = errors.New("ride machine not started")
	ErrUnknownDriver = errors.New("unknown driver")
	ErrNoLocation    = errors.New("no current location")
)

type ErrorKind string

const (
	PermissionDenied    ErrorKind = "permission_denied"
	LocationUnavailable ErrorKind = "location_unavailable"
	PersistenceFailure  ErrorKind = "persistence_failure"
	SearchFailure       ErrorKind = "search_failure"
	DeleteFailure       ErrorKind = "delete_failure"
	Unknown             ErrorKind = "unknown"
)

// Messages shown for collaborator failures.
const (
	MsgPermissionDenied    = "Location permission denied"
	MsgLocationUnavailable = "Unable to get location"
	MsgPersistenceFailure  = "Failed to save location"
	MsgLoadFailure         = "Failed to load saved locations"
	MsgLocationNotFound    = "Location not found"
	MsgSearchFailure       = "Search failed"
	MsgDeleteFailure       = "Failed to delete location"
)

// Failure is the error surfaced to the rider.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (f Failure) Error() string { return f.Message }

// State is a snapshot of the ride request. Values handed out by the Machine
// share nothing with its canonical copy.
type State struct {
	IsLoading          bool                    `json:"is_loading"`
	CurrentLocation    *models.LocationRecord  `json:"current_location"`
	LastError          *Failure                `json:"last_error"`
	PermissionRequired bool                    `json:"permission_required"`
	SavedLocations     []models.LocationRecord `json:"saved_locations"`
	Drivers            []models.Driver         `json:"drivers"`
	ETA                int                     `json:"eta"`
	Fare               float64                 `json:"fare"`
	HasArrived         bool                    `json:"has_arrived"`
	ArrivedDriver      *models.Driver          `json:"arrived_driver"`
}

func (s State) clone() State {
	out := s
	if s.CurrentLocation != nil {
		c := *s.CurrentLocation
		out.CurrentLocation = &c
	}
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	if s.ArrivedDriver != nil {
		d := *s.ArrivedDriver
		out.ArrivedDriver = &d
	}
	out.SavedLocations = append([]models.LocationRecord(nil), s.SavedLocations...)
	out.Drivers = append([]models.Driver(nil), s.Drivers...)
	return out
}

// Driver returns the roster entry for plate.
func (s State) Driver(plate string) (models.Driver, bool) {
	for _, d := range s.Drivers {
		if d.CarPlateNumber == plate {
			return d, true
		}
	}
	return models.Driver{}, false
}

type Route string

const (
	SplashScreen          Route = "SplashScreen"
	LocationRequestScreen Route = "LocationRequestScreen"
	HomeScreen            Route = "HomeScreen"
)

type NavigationEvent struct {
	Route Route `json:"route"`
}

// PlacesState holds the latest autocomplete results and the place the rider
// picked from them.
type PlacesState struct {
	Query       string              `json:"query"`
	Predictions []places.Prediction `json:"predictions"`
	Selected    *places.Place       `json:"selected"`
	Error       string              `json:"error,omitempty"`
}

func (p PlacesState) clone() PlacesState {
	out := p
	out.Predictions = append([]places.Prediction(nil), p.Predictions...)
	if p.Selected != nil {
		s := *p.Selected
		out.Selected = &s
	}
	return out
}

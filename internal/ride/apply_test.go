package ride

import (
	"testing"
	"time"

	"github.com/codeBaron-dev/Rider/internal/logging"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/storage"
)

// newReducer returns a machine that is never started, so apply runs without
// any collaborator I/O.
func newReducer(t *testing.T) *Machine {
	t.Helper()
	m, err := New(Deps{
		Locations: storage.NewMemoryLocationStore(),
		Drivers:   storage.NewMemoryDriverStore(),
		Provider:  &fakeProvider{},
		Logger:    logging.Discard(),
	}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func rec(id int64, address string) models.LocationRecord {
	return models.LocationRecord{ID: id, Loc: models.Coord{Lat: 6.5, Lon: 3.3}, Address: address, CreatedAt: time.Unix(id, 0)}
}

func TestApplyPermissionActionClick(t *testing.T) {
	m := newReducer(t)
	m.apply(PermissionActionClick{})
	if !m.state.IsLoading || !m.state.PermissionRequired {
		t.Fatalf("unexpected state %+v", m.state)
	}
}

func TestApplyLocationReceivedClearsError(t *testing.T) {
	m := newReducer(t)
	m.apply(LocationError{Kind: PermissionDenied, Message: MsgPermissionDenied})
	if m.state.LastError == nil || !m.state.PermissionRequired {
		t.Fatalf("error not recorded: %+v", m.state)
	}

	loc := rec(0, "Yaba")
	m.apply(LocationReceived{Location: loc})
	s := m.state
	if s.IsLoading || s.LastError != nil || s.PermissionRequired {
		t.Fatalf("unexpected flags %+v", s)
	}
	if s.CurrentLocation == nil || s.CurrentLocation.Address != "Yaba" {
		t.Fatalf("current location not set: %+v", s.CurrentLocation)
	}
}

func TestApplyLocationErrorDefaultsToUnknown(t *testing.T) {
	m := newReducer(t)
	m.state.IsLoading = true
	m.apply(LocationError{Message: "boom"})
	if m.state.IsLoading || m.state.LastError.Kind != Unknown || m.state.LastError.Message != "boom" {
		t.Fatalf("unexpected state %+v", m.state)
	}
}

func TestApplySavedLocationsEmptyListKeepsCurrent(t *testing.T) {
	m := newReducer(t)
	cur := rec(9, "Ikeja")
	m.state.CurrentLocation = &cur

	m.apply(GetAllSavedLocation{})
	if !m.state.IsLoading {
		t.Fatal("expected loading while subscribing")
	}
	m.apply(savedLoaded{gen: m.savedGen, list: nil, setCurrent: true})

	if m.state.IsLoading {
		t.Fatal("loading not cleared")
	}
	if len(m.state.SavedLocations) != 0 {
		t.Fatalf("expected no saved locations, got %v", m.state.SavedLocations)
	}
	if m.state.CurrentLocation == nil || m.state.CurrentLocation.ID != 9 {
		t.Fatalf("current location changed: %+v", m.state.CurrentLocation)
	}
}

func TestApplySavedLocationsTakesNewest(t *testing.T) {
	m := newReducer(t)
	m.state.LastError = &Failure{Kind: Unknown, Message: "old"}
	m.apply(GetAllSavedLocation{})
	m.apply(savedLoaded{gen: m.savedGen, list: []models.LocationRecord{rec(3, "newest"), rec(1, "oldest")}, setCurrent: true})

	if m.state.LastError != nil {
		t.Fatal("error not cleared")
	}
	if m.state.CurrentLocation == nil || m.state.CurrentLocation.Address != "newest" {
		t.Fatalf("expected newest record as current, got %+v", m.state.CurrentLocation)
	}
}

func TestApplySupersededSubscriptionIgnored(t *testing.T) {
	m := newReducer(t)
	m.apply(GetAllSavedLocation{})
	stale := m.savedGen
	m.apply(searchSaved{keyword: "yaba"})

	if m.apply(savedLoaded{gen: stale, list: []models.LocationRecord{rec(1, "stale")}, setCurrent: true}) {
		t.Fatal("stale emission should not publish")
	}
	if m.state.SavedLocations != nil || m.state.CurrentLocation != nil {
		t.Fatalf("stale emission applied: %+v", m.state)
	}

	m.apply(savedLoaded{gen: m.savedGen, list: []models.LocationRecord{rec(2, "Yaba")}})
	if len(m.state.SavedLocations) != 1 || m.state.CurrentLocation != nil {
		t.Fatalf("search results should not move current location: %+v", m.state)
	}
}

func TestApplyTripIntents(t *testing.T) {
	m := newReducer(t)
	d := models.SampleDrivers()[0]
	m.apply(SendEta{Minutes: 6})
	m.apply(SendFare{Amount: 7.5})
	m.apply(SendArrival{Arrived: true, Driver: d})
	s := m.state
	if s.ETA != 6 || s.Fare != 7.5 || !s.HasArrived || s.ArrivedDriver == nil || s.ArrivedDriver.CarPlateNumber != d.CarPlateNumber {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestApplyDriversLoadedDedupesByPlate(t *testing.T) {
	m := newReducer(t)
	ds := models.SampleDrivers()
	moved := ds[1]
	moved.Loc = models.Coord{Lat: 6.6, Lon: 3.29}
	m.apply(driversLoaded{drivers: []models.Driver{ds[1], ds[0], moved}})

	if len(m.state.Drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(m.state.Drivers))
	}
	if m.state.Drivers[0].CarPlateNumber != "ABC123" || m.state.Drivers[1].CarPlateNumber != "XYZ789" {
		t.Fatalf("roster not sorted by plate: %+v", m.state.Drivers)
	}
	if m.state.Drivers[1].Loc != moved.Loc {
		t.Fatalf("later entry should win, got %+v", m.state.Drivers[1].Loc)
	}
}

func TestApplyStalePlacesReplyIgnored(t *testing.T) {
	m := newReducer(t)
	m.apply(searchPlaces{query: "ike"})
	m.apply(searchPlaces{query: "ikeja"})
	if m.apply(placesLoaded{query: "ike"}) {
		t.Fatal("reply for an older query should be ignored")
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	cur := rec(1, "Yaba")
	d := models.SampleDrivers()[0]
	s := State{CurrentLocation: &cur, ArrivedDriver: &d, SavedLocations: []models.LocationRecord{cur}, Drivers: []models.Driver{d}}
	c := s.clone()
	c.CurrentLocation.Address = "changed"
	c.SavedLocations[0].Address = "changed"
	c.Drivers[0].Name = "changed"
	c.ArrivedDriver.Name = "changed"
	if cur.Address != "Yaba" || s.SavedLocations[0].Address != "Yaba" || s.Drivers[0].Name == "changed" || d.Name == "changed" {
		t.Fatal("clone shares memory with its source")
	}
}

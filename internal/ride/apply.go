package ride

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/observability"
	"github.com/codeBaron-dev/Rider/internal/places"
	"github.com/codeBaron-dev/Rider/internal/storage"
)

// Internal commands. They travel through the intent queue so their effects
// are ordered with the intents, but callers outside the package cannot send
// them.
type (
	driversLoaded struct{ drivers []models.Driver }

	locationPersisted struct {
		rec models.LocationRecord
		id  int64
	}

	savedLoaded struct {
		gen        uint64
		list       []models.LocationRecord
		setCurrent bool
	}

	searchSaved struct{ keyword string }
	deleteSaved struct{ id int64 }
	deleteAll   struct{}
	updateSaved struct {
		id  int64
		rec models.LocationRecord
	}

	searchPlaces struct{ query string }
	placesLoaded struct {
		query       string
		predictions []places.Prediction
		err         error
	}
	selectPlace struct{ placeID string }
	placeLoaded struct {
		place places.Place
		err   error
	}

	startMovement struct {
		plate string
		reply chan error
	}
)

func (driversLoaded) name() string     { return "drivers_loaded" }
func (locationPersisted) name() string { return "location_persisted" }
func (savedLoaded) name() string       { return "saved_locations_loaded" }
func (searchSaved) name() string       { return "search_saved_locations" }
func (deleteSaved) name() string       { return "delete_saved_location" }
func (deleteAll) name() string         { return "delete_all_saved_locations" }
func (updateSaved) name() string       { return "update_saved_location" }
func (searchPlaces) name() string      { return "search_places" }
func (placesLoaded) name() string      { return "places_loaded" }
func (selectPlace) name() string       { return "select_place" }
func (placeLoaded) name() string       { return "place_loaded" }
func (startMovement) name() string     { return "start_movement" }

// apply mutates the canonical state for one message and reports whether a
// snapshot should be published.
func (m *Machine) apply(msg message) bool {
	switch v := msg.(type) {
	case PermissionActionClick:
		m.state.IsLoading = true
		m.state.PermissionRequired = true
		m.goAsync("current location", m.requestLocation)
		return true

	case LocationReceived:
		rec := v.Location
		m.state.IsLoading = false
		m.state.CurrentLocation = &rec
		m.state.LastError = nil
		m.state.PermissionRequired = false
		m.goAsync("persist location", func(ctx context.Context) { m.persistLocation(ctx, rec) })
		return true

	case LocationError:
		m.applyLocationError(v)
		return true

	case GetAllSavedLocation:
		m.state.IsLoading = true
		m.watchSaved(m.locations.All, PersistenceFailure, MsgLoadFailure, true)
		return true

	case SendEta:
		m.state.ETA = v.Minutes
		return true

	case SendFare:
		m.state.Fare = v.Amount
		return true

	case SendArrival:
		d := v.Driver
		m.state.HasArrived = v.Arrived
		m.state.ArrivedDriver = &d
		return true

	case driversLoaded:
		m.state.Drivers = uniqueByPlate(v.drivers)
		observability.DriversInRoster.Set(float64(len(m.state.Drivers)))
		return true

	case locationPersisted:
		if cur := m.state.CurrentLocation; cur != nil && cur.ID == 0 && cur.Loc == v.rec.Loc && cur.CreatedAt.Equal(v.rec.CreatedAt) {
			cur.ID = v.id
		}
		m.navigate(HomeScreen)
		return true

	case savedLoaded:
		if v.gen != m.savedGen {
			return false
		}
		m.state.IsLoading = false
		m.state.SavedLocations = v.list
		m.state.LastError = nil
		// the stream is newest first, so the head is the latest fix
		if v.setCurrent && len(v.list) > 0 {
			first := v.list[0]
			m.state.CurrentLocation = &first
		}
		return true

	case searchSaved:
		m.state.IsLoading = true
		keyword := v.keyword
		open := func(ctx context.Context) (<-chan []models.LocationRecord, error) {
			return m.locations.Search(ctx, keyword)
		}
		m.watchSaved(open, SearchFailure, MsgSearchFailure, false)
		return true

	case deleteSaved:
		id := v.id
		m.goAsync("delete location", func(ctx context.Context) {
			if err := m.locations.Delete(ctx, id); err != nil {
				m.fail(DeleteFailure, MsgDeleteFailure, err)
			}
		})
		return false

	case deleteAll:
		m.goAsync("delete all locations", func(ctx context.Context) {
			if err := m.locations.DeleteAll(ctx); err != nil {
				m.fail(DeleteFailure, MsgDeleteFailure, err)
			}
		})
		return false

	case updateSaved:
		id, rec := v.id, v.rec
		m.goAsync("update location", func(ctx context.Context) {
			err := m.locations.Update(ctx, id, rec)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				m.fail(PersistenceFailure, MsgLocationNotFound, err)
			case err != nil:
				m.fail(PersistenceFailure, MsgPersistenceFailure, err)
			}
		})
		return false

	case searchPlaces:
		m.places.Query = v.query
		m.places.Error = ""
		if strings.TrimSpace(v.query) == "" {
			m.places.Predictions = []places.Prediction{}
			return true
		}
		query := v.query
		m.goAsync("places autocomplete", func(ctx context.Context) {
			preds, err := m.lookup.Autocomplete(ctx, query)
			_ = m.post(placesLoaded{query: query, predictions: preds, err: err})
		})
		return true

	case placesLoaded:
		if v.query != m.places.Query {
			return false
		}
		if v.err != nil {
			observability.CollaboratorErrors.WithLabelValues(string(SearchFailure)).Inc()
			m.logger.Warn("places autocomplete failed", "error", v.err)
			m.places.Predictions = nil
			m.places.Error = MsgSearchFailure
			return true
		}
		m.places.Predictions = v.predictions
		return true

	case selectPlace:
		id := v.placeID
		m.goAsync("resolve place", func(ctx context.Context) {
			p, err := m.lookup.Resolve(ctx, id)
			_ = m.post(placeLoaded{place: p, err: err})
		})
		return false

	case placeLoaded:
		if v.err != nil {
			observability.CollaboratorErrors.WithLabelValues(string(SearchFailure)).Inc()
			m.logger.Warn("place resolve failed", "error", v.err)
			m.places.Selected = nil
			m.places.Error = MsgSearchFailure
			return true
		}
		p := v.place
		m.places.Selected = &p
		m.places.Predictions = nil
		m.places.Error = ""
		return true

	case startMovement:
		err := m.startMovement(v.plate)
		v.reply <- err
		return err == nil

	default:
		m.logger.Error("unhandled message", "intent", msg.name())
		return false
	}
}

func (m *Machine) applyLocationError(e LocationError) {
	kind := e.Kind
	if kind == "" {
		kind = Unknown
	}
	m.state.IsLoading = false
	m.state.LastError = &Failure{Kind: kind, Message: e.Message}
	m.state.PermissionRequired = true
}

// watchSaved replaces the active saved-location subscription. Emissions of a
// superseded subscription are discarded by generation.
func (m *Machine) watchSaved(open func(context.Context) (<-chan []models.LocationRecord, error), kind ErrorKind, failMsg string, setCurrent bool) {
	if m.savedCancel != nil {
		m.savedCancel()
	}
	m.savedGen++
	gen := m.savedGen
	if m.ctx == nil {
		return
	}
	sctx, cancel := context.WithCancel(m.ctx)
	m.savedCancel = cancel

	m.goAsync("watch saved locations", func(context.Context) {
		ch, err := open(sctx)
		if err != nil {
			if sctx.Err() == nil {
				m.fail(kind, failMsg, err)
			}
			return
		}
		for list := range ch {
			if err := m.post(savedLoaded{gen: gen, list: list, setCurrent: setCurrent}); err != nil {
				return
			}
		}
		// superseded or stopped subscriptions end with sctx cancelled
		if sctx.Err() == nil {
			m.fail(kind, failMsg, storage.ErrStreamClosed)
		}
	})
}

func uniqueByPlate(drivers []models.Driver) []models.Driver {
	byPlate := make(map[string]models.Driver, len(drivers))
	for _, d := range drivers {
		byPlate[d.CarPlateNumber] = d
	}
	out := make([]models.Driver, 0, len(byPlate))
	for _, d := range byPlate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarPlateNumber < out[j].CarPlateNumber })
	return out
}

package ride

import (
	"context"
	"fmt"
	"time"

	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/observability"
	"github.com/codeBaron-dev/Rider/internal/pricing"
)

func (m *Machine) requestLocation(ctx context.Context) {
	if !m.provider.HasPermission() {
		m.fail(PermissionDenied, MsgPermissionDenied, nil)
		return
	}
	rec, ok := m.provider.CurrentLocation(ctx)
	if !ok {
		m.fail(LocationUnavailable, MsgLocationUnavailable, nil)
		return
	}
	_ = m.post(LocationReceived{Location: rec})
}

func (m *Machine) persistLocation(ctx context.Context, rec models.LocationRecord) {
	id, err := m.locations.Insert(ctx, rec)
	if err != nil {
		m.fail(PersistenceFailure, MsgPersistenceFailure, err)
		return
	}
	_ = m.post(locationPersisted{rec: rec, id: id})
}

func (m *Machine) seedDrivers(ctx context.Context) {
	if err := m.drivers.UpsertAll(ctx, m.opts.Seed); err != nil {
		observability.CollaboratorErrors.WithLabelValues(string(PersistenceFailure)).Inc()
		m.logger.Error("seed drivers failed", "error", err)
		return
	}
	m.refreshDrivers(ctx)
}

func (m *Machine) refreshDrivers(ctx context.Context) {
	all, err := m.drivers.All(ctx)
	if err != nil {
		observability.CollaboratorErrors.WithLabelValues(string(PersistenceFailure)).Inc()
		m.logger.Error("load drivers failed", "error", err)
		return
	}
	_ = m.post(driversLoaded{drivers: all})
}

// SearchSavedLocations replaces the saved-location list with the records
// whose address contains keyword, kept live until the next search or
// GetAllSavedLocation.
func (m *Machine) SearchSavedLocations(keyword string) error {
	return m.post(searchSaved{keyword: keyword})
}

// DeleteLocation removes a saved location. Removing an unknown id is not an
// error.
func (m *Machine) DeleteLocation(id int64) error {
	return m.post(deleteSaved{id: id})
}

func (m *Machine) DeleteAllLocations() error {
	return m.post(deleteAll{})
}

func (m *Machine) UpdateLocation(id int64, rec models.LocationRecord) error {
	if err := rec.Loc.Validate(); err != nil {
		return err
	}
	return m.post(updateSaved{id: id, rec: rec})
}

// SearchPlaces runs an autocomplete query. Results land in Places; a reply
// for an older query is ignored.
func (m *Machine) SearchPlaces(query string) error {
	return m.post(searchPlaces{query: query})
}

func (m *Machine) SelectPlace(placeID string) error {
	return m.post(selectPlace{placeID: placeID})
}

// StartDriverMovement drives the roster entry for plate toward the current
// location. The fare and ETA for the leg arrive as SendFare and SendEta,
// and arrival as SendArrival.
func (m *Machine) StartDriverMovement(plate string) error {
	if !m.started() {
		return ErrNotStarted
	}
	reply := make(chan error, 1)
	if err := m.post(startMovement{plate: plate, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-m.stop:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// StopDriverMovement cancels the movement for plate and reports whether one
// was running.
func (m *Machine) StopDriverMovement(plate string) bool {
	return m.sim.Cancel(plate)
}

// startMovement runs on the consumer goroutine.
func (m *Machine) startMovement(plate string) error {
	d, ok := m.state.Driver(plate)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDriver, plate)
	}
	if m.state.CurrentLocation == nil {
		return ErrNoLocation
	}
	h, err := m.sim.Start(m.ctx, d, m.state.CurrentLocation.Loc, m.opts.Movement, movement{m: m})
	if err != nil {
		return err
	}
	m.state.HasArrived = false
	m.state.ArrivedDriver = nil

	m.mu.Lock()
	m.runs[plate] = h
	m.mu.Unlock()
	m.goAsync("track movement", func(context.Context) {
		<-h.Done()
		m.mu.Lock()
		if m.runs[plate] == h {
			delete(m.runs, plate)
		}
		m.mu.Unlock()
	})
	return nil
}

// movement feeds simulator events back into the machine. The driver store
// stays the source of truth: each position is written there first and the
// roster is re-read from it.
type movement struct {
	m *Machine
}

func (mv movement) OnPrice(_ models.Driver, q pricing.Quote, etaMinutes int) {
	m := mv.m
	m.goAsync("report fare", func(context.Context) {
		if err := m.post(SendFare{Amount: q.Fare}); err != nil {
			return
		}
		_ = m.post(SendEta{Minutes: etaMinutes})
	})
}

func (mv movement) OnPosition(ctx context.Context, d models.Driver) {
	m := mv.m
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("position update panic", "plate", d.CarPlateNumber, "panic", r)
		}
	}()

	if err := m.drivers.UpdateByPlate(ctx, d.CarPlateNumber, d); err != nil {
		observability.CollaboratorErrors.WithLabelValues(string(PersistenceFailure)).Inc()
		m.logger.Warn("driver position update failed", "plate", d.CarPlateNumber, "error", err)
		return
	}
	if m.positions != nil {
		u := models.PositionUpdate{CarPlateNumber: d.CarPlateNumber, Loc: d.Loc, At: time.Now().UTC()}
		if err := m.positions.PublishPosition(ctx, u); err != nil {
			m.logger.Warn("publish position failed", "plate", d.CarPlateNumber, "error", err)
		}
	}
	m.refreshDrivers(ctx)
}

func (mv movement) OnArrival(d models.Driver) {
	_ = mv.m.post(SendArrival{Arrived: true, Driver: d})
}

// Package ride holds the ride request state machine. A single consumer
// goroutine applies intents in arrival order and publishes a snapshot after
// every change; collaborator I/O runs in helper goroutines that report back
// through the same queue.
package ride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeBaron-dev/Rider/internal/location"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/observability"
	"github.com/codeBaron-dev/Rider/internal/places"
	"github.com/codeBaron-dev/Rider/internal/pricing"
	"github.com/codeBaron-dev/Rider/internal/simulator"
	"github.com/codeBaron-dev/Rider/internal/storage"
)

const (
	defaultQueueSize = 64
	navBuffer        = 8
)

// PositionSink receives every simulated driver position, e.g. a Kafka
// producer feeding the position consumer.
type PositionSink interface {
	PublishPosition(ctx context.Context, u models.PositionUpdate) error
}

type Deps struct {
	Locations storage.LocationStore
	Drivers   storage.DriverStore
	Provider  location.Provider
	Places    places.Lookup
	Simulator *simulator.Simulator
	Positions PositionSink
	Logger    *slog.Logger
}

type Options struct {
	Movement simulator.Options
	// Seed is upserted into the driver store on Start. Nil means
	// models.SampleDrivers.
	Seed      []models.Driver
	QueueSize int
}

func DefaultOptions() Options {
	return Options{Movement: simulator.DefaultOptions()}
}

type Machine struct {
	locations storage.LocationStore
	drivers   storage.DriverStore
	provider  location.Provider
	lookup    places.Lookup
	sim       *simulator.Simulator
	positions PositionSink
	logger    *slog.Logger
	opts      Options

	queue chan message
	stop  chan struct{}
	done  chan struct{}

	// owned by the consumer goroutine
	state       State
	places      PlacesState
	savedGen    uint64
	savedCancel context.CancelFunc

	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	closed       bool
	latest       State
	latestPlaces PlacesState
	stateSubs    map[chan State]struct{}
	navSubs      map[chan NavigationEvent]struct{}
	runs         map[string]*simulator.Handle
	wg           sync.WaitGroup
}

func New(deps Deps, opts Options) (*Machine, error) {
	var errs []error
	if deps.Locations == nil {
		errs = append(errs, errors.New("ride: location store is required"))
	}
	if deps.Drivers == nil {
		errs = append(errs, errors.New("ride: driver store is required"))
	}
	if deps.Provider == nil {
		errs = append(errs, errors.New("ride: location provider is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Places == nil {
		deps.Places = places.Disabled{}
	}
	if deps.Simulator == nil {
		deps.Simulator = simulator.New(pricing.NewEngine(pricing.WallClock{}), deps.Logger)
	}
	if opts.Movement == (simulator.Options{}) {
		opts.Movement = simulator.DefaultOptions()
	}
	if opts.Seed == nil {
		opts.Seed = models.SampleDrivers()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &Machine{
		locations: deps.Locations,
		drivers:   deps.Drivers,
		provider:  deps.Provider,
		lookup:    deps.Places,
		sim:       deps.Simulator,
		positions: deps.Positions,
		logger:    deps.Logger.With("component", "ride"),
		opts:      opts,
		queue:     make(chan message, opts.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		stateSubs: make(map[chan State]struct{}),
		navSubs:   make(map[chan NavigationEvent]struct{}),
		runs:      make(map[string]*simulator.Handle),
	}, nil
}

// Start launches the consumer and seeds the driver roster. Cancelling ctx
// stops the consumer, every store subscription and every movement the
// machine started.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return errors.New("ride: machine already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	go m.consume()
	m.goAsync("seed drivers", m.seedDrivers)
	m.logger.Info("ride machine started", "seed_drivers", len(m.opts.Seed))
	return nil
}

// Stop cancels the machine's context. Use Wait to block until it drained.
func (m *Machine) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the consumer, its helpers and its movements have
// finished. It returns immediately on a machine that was never started.
func (m *Machine) Wait() {
	if !m.started() {
		return
	}
	<-m.done
	m.wg.Wait()

	m.mu.RLock()
	handles := make([]*simulator.Handle, 0, len(m.runs))
	for _, h := range m.runs {
		handles = append(handles, h)
	}
	m.mu.RUnlock()
	for _, h := range handles {
		<-h.Done()
	}
}

func (m *Machine) started() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx != nil
}

// SendIntent queues i behind every intent sent before it. Intents sent
// before Start are buffered until the consumer runs; once that buffer is
// full SendIntent returns ErrNotStarted.
func (m *Machine) SendIntent(i Intent) error {
	if i == nil {
		return fmt.Errorf("%w: nil", ErrUnknownIntent)
	}
	return m.post(i)
}

func (m *Machine) post(msg message) error {
	select {
	case <-m.stop:
		return ErrStopped
	default:
	}
	if !m.started() {
		// nothing drains the queue before Start
		select {
		case m.queue <- msg:
			return nil
		default:
			return ErrNotStarted
		}
	}
	select {
	case m.queue <- msg:
		return nil
	case <-m.stop:
		return ErrStopped
	}
}

// Snapshot returns the most recently published state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.clone()
}

// Places returns the most recent places search state.
func (m *Machine) Places() PlacesState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestPlaces.clone()
}

// States subscribes to state snapshots. The latest snapshot is delivered
// immediately; a slow reader skips intermediate snapshots but never sees
// them out of order. The channel is closed when ctx ends or the machine
// stops.
func (m *Machine) States(ctx context.Context) <-chan State {
	ch := make(chan State, 1)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- m.latest.clone()
	m.stateSubs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.stop:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.stateSubs[ch]; ok {
			delete(m.stateSubs, ch)
			close(ch)
		}
	}()
	return ch
}

// Navigation subscribes to navigation events emitted from now on. Events
// are not replayed, and are dropped for a subscriber whose buffer is full.
func (m *Machine) Navigation(ctx context.Context) <-chan NavigationEvent {
	ch := make(chan NavigationEvent, navBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	m.navSubs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.stop:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.navSubs[ch]; ok {
			delete(m.navSubs, ch)
			close(ch)
		}
	}()
	return ch
}

// InitialRoute is where a freshly opened client should land.
func (m *Machine) InitialRoute() Route {
	if m.provider.HasPermission() {
		return HomeScreen
	}
	return LocationRequestScreen
}

func (m *Machine) consume() {
	defer close(m.done)
	defer m.shutdown()
	for {
		select {
		case <-m.ctx.Done():
			return
		case msg := <-m.queue:
			m.dispatch(msg)
		}
	}
}

func (m *Machine) dispatch(msg message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic applying message", "intent", msg.name(), "panic", r)
			m.applyLocationError(LocationError{Kind: Unknown, Message: fmt.Sprint(r)})
			m.publish()
		}
	}()

	if _, ok := msg.(Intent); ok {
		observability.IntentsProcessed.WithLabelValues(msg.name()).Inc()
	}
	m.logger.Debug("applying", "intent", msg.name())
	if m.apply(msg) {
		m.publish()
	}
}

func (m *Machine) shutdown() {
	if m.savedCancel != nil {
		m.savedCancel()
	}
	m.mu.Lock()
	m.closed = true
	close(m.stop)
	for ch := range m.stateSubs {
		close(ch)
	}
	for ch := range m.navSubs {
		close(ch)
	}
	m.stateSubs = map[chan State]struct{}{}
	m.navSubs = map[chan NavigationEvent]struct{}{}
	m.mu.Unlock()
	m.logger.Info("ride machine stopped")
}

// publish hands every subscriber its own copy of the current state,
// replacing any snapshot it has not read yet.
func (m *Machine) publish() {
	snap := m.state.clone()
	ps := m.places.clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = snap
	m.latestPlaces = ps
	for ch := range m.stateSubs {
		select {
		case <-ch:
		default:
		}
		ch <- snap.clone()
	}
	observability.StatesPublished.Inc()
}

func (m *Machine) navigate(r Route) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.navSubs {
		select {
		case ch <- NavigationEvent{Route: r}:
		default:
			m.logger.Warn("navigation subscriber full, event dropped", "route", r)
		}
	}
	observability.NavigationEvents.WithLabelValues(string(r)).Inc()
}

// goAsync runs fn on a helper goroutine tied to the machine's lifetime. A
// panic inside fn is reported as an Unknown LocationError.
func (m *Machine) goAsync(op string, fn func(ctx context.Context)) {
	m.mu.Lock()
	if m.closed || m.ctx == nil {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("collaborator panic", "op", op, "panic", r)
				_ = m.post(LocationError{Kind: Unknown, Message: fmt.Sprint(r)})
			}
		}()
		fn(ctx)
	}()
}

func (m *Machine) fail(kind ErrorKind, msg string, err error) {
	observability.CollaboratorErrors.WithLabelValues(string(kind)).Inc()
	if err != nil {
		m.logger.Warn("collaborator failed", "kind", kind, "error", err)
	}
	_ = m.post(LocationError{Kind: kind, Message: msg})
}

// Package simulator moves a driver toward a target in fixed geodesic steps.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeBaron-dev/Rider/internal/eta"
	"github.com/codeBaron-dev/Rider/internal/geo"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/observability"
	"github.com/codeBaron-dev/Rider/internal/pricing"
)

var (
	ErrInvalidStep     = errors.New("step must be > 0 meters")
	ErrInvalidInterval = errors.New("tick interval must be > 0")
)

type State int

const (
	Idle State = iota
	Running
	Arrived
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Arrived:
		return "arrived"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Options struct {
	StepMeters             float64
	TickInterval           time.Duration
	ArrivalThresholdMeters float64
	SpeedKmh               float64
}

func DefaultOptions() Options {
	return Options{
		StepMeters:             50,
		TickInterval:           time.Second,
		ArrivalThresholdMeters: 10,
		SpeedKmh:               eta.DefaultSpeedKmh,
	}
}

func (o Options) validate() error {
	if o.StepMeters <= 0 {
		return ErrInvalidStep
	}
	if o.TickInterval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Listener receives the events of one run. OnPosition is called synchronously
// from the run, so the next tick waits for it to return.
type Listener interface {
	OnPrice(d models.Driver, q pricing.Quote, etaMinutes int)
	OnPosition(ctx context.Context, d models.Driver)
	OnArrival(d models.Driver)
}

// Simulator owns the set of running handles, at most one per car plate.
type Simulator struct {
	pricer *pricing.Engine
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*Handle
}

func New(pricer *pricing.Engine, logger *slog.Logger) *Simulator {
	if pricer == nil {
		pricer = pricing.NewEngine(pricing.WallClock{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{pricer: pricer, logger: logger, runs: make(map[string]*Handle)}
}

// Start validates the inputs, reports the fare for the leg and begins ticking
// in a new goroutine. The first step is taken immediately.
func (s *Simulator) Start(ctx context.Context, d models.Driver, target models.Coord, opts Options, l Listener) (*Handle, error) {
	h, err := s.Prepare(d, target, opts, l)
	if err != nil {
		return nil, err
	}
	go h.run(ctx)
	return h, nil
}

// Prepare is Start without the goroutine: the caller drives the run with Step.
func (s *Simulator) Prepare(d models.Driver, target models.Coord, opts Options, l Listener) (*Handle, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := d.Loc.Validate(); err != nil {
		return nil, fmt.Errorf("driver %s: %w", d.CarPlateNumber, err)
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if opts.ArrivalThresholdMeters < 0 {
		opts.ArrivalThresholdMeters = 0
	}

	h := &Handle{
		plate:    d.CarPlateNumber,
		driver:   d,
		target:   target,
		opts:     opts,
		listener: l,
		state:    Idle,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger.With("plate", d.CarPlateNumber),
	}
	h.release = func() { s.release(h) }

	s.mu.Lock()
	prev := s.runs[d.CarPlateNumber]
	s.runs[d.CarPlateNumber] = h
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	distance := geo.Distance(d.Loc, target)
	q := s.pricer.Quote(distance)
	observability.FaresQuoted.Observe(q.Fare)
	if l != nil {
		l.OnPrice(d, q, eta.Minutes(distance, opts.SpeedKmh))
	}

	h.mu.Lock()
	h.state = Running
	h.mu.Unlock()
	h.logger.Info("movement started", "distance_m", distance, "fare", q.Fare, "surge", q.Surge)
	return h, nil
}

// Cancel stops the run for plate, if any.
func (s *Simulator) Cancel(plate string) bool {
	s.mu.Lock()
	h := s.runs[plate]
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h.Cancel()
	return true
}

// CancelAll stops every running handle.
func (s *Simulator) CancelAll() {
	s.mu.Lock()
	hs := make([]*Handle, 0, len(s.runs))
	for _, h := range s.runs {
		hs = append(hs, h)
	}
	s.mu.Unlock()
	for _, h := range hs {
		h.Cancel()
	}
}

// Running lists the plates with an active run.
func (s *Simulator) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.runs))
	for plate := range s.runs {
		out = append(out, plate)
	}
	return out
}

func (s *Simulator) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[h.plate] == h {
		delete(s.runs, h.plate)
	}
}

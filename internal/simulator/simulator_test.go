package simulator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/codeBaron-dev/Rider/internal/geo"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/pricing"
)

// recorder is a Listener that keeps every event in order.
type recorder struct {
	mu        sync.Mutex
	events    []string
	positions []models.Driver
	quotes    []pricing.Quote
	etas      []int
	arrivals  []models.Driver
}

func (r *recorder) OnPrice(d models.Driver, q pricing.Quote, etaMinutes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "price")
	r.quotes = append(r.quotes, q)
	r.etas = append(r.etas, etaMinutes)
}

func (r *recorder) OnPosition(_ context.Context, d models.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "position")
	r.positions = append(r.positions, d)
}

func (r *recorder) OnArrival(d models.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "arrival")
	r.arrivals = append(r.arrivals, d)
}

func (r *recorder) arrivalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arrivals)
}

func testDriver(lat, lon float64) models.Driver {
	return models.Driver{Name: "John Doe", CarPlateNumber: "ABC123", CarName: "Toyota Corolla", Loc: models.Coord{Lat: lat, Lon: lon}}
}

func newTestSimulator() *Simulator {
	return New(pricing.NewEngine(pricing.FixedClock(14)), nil)
}

func TestPrepareRejectsInvalidOptions(t *testing.T) {
	s := newTestSimulator()
	d := testDriver(6.5, 3.3)
	target := models.Coord{Lat: 6.51, Lon: 3.3}

	opts := DefaultOptions()
	opts.StepMeters = 0
	if _, err := s.Prepare(d, target, opts, nil); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}

	opts = DefaultOptions()
	opts.TickInterval = -time.Second
	if _, err := s.Start(context.Background(), d, target, opts, nil); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}

	if _, err := s.Prepare(d, models.Coord{Lat: 91}, DefaultOptions(), nil); !errors.Is(err, models.ErrInvalidCoord) {
		t.Fatalf("expected ErrInvalidCoord, got %v", err)
	}
	if len(s.Running()) != 0 {
		t.Fatalf("rejected runs must not be registered")
	}
}

func TestStepReachesTargetWithinBound(t *testing.T) {
	for _, step := range []float64{50, 37, 120} {
		s := newTestSimulator()
		d := testDriver(6.5244, 3.3792)
		target := geo.Project(d.Loc, 1234, 61)
		D := geo.Distance(d.Loc, target)

		opts := DefaultOptions()
		opts.StepMeters = step
		rec := &recorder{}
		h, err := s.Prepare(d, target, opts, rec)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}

		ctx := context.Background()
		limit := int(D/step) + 1
		for i := 0; i < limit+5 && h.State() == Running; i++ {
			h.Step(ctx)
		}

		if h.State() != Arrived {
			t.Fatalf("step=%v: expected arrival, state=%v after %d ticks", step, h.State(), h.Ticks())
		}
		if h.Ticks() > int(math.Ceil(D/step)) {
			t.Fatalf("step=%v: took %d ticks, bound %d", step, h.Ticks(), int(math.Ceil(D/step)))
		}
		if rec.arrivalCount() != 1 {
			t.Fatalf("step=%v: expected one arrival, got %d", step, rec.arrivalCount())
		}
		if len(rec.positions) != h.Ticks() {
			t.Fatalf("expected one position per tick, got %d for %d ticks", len(rec.positions), h.Ticks())
		}
		// further steps after arrival are no-ops
		if st := h.Step(ctx); st != Arrived || rec.arrivalCount() != 1 {
			t.Fatalf("step after arrival changed state: %v arrivals=%d", st, rec.arrivalCount())
		}
		select {
		case <-h.Done():
		default:
			t.Fatalf("done channel should be closed after arrival")
		}
	}
}

func TestPriceReportedOnceBeforeMotion(t *testing.T) {
	s := newTestSimulator()
	d := testDriver(0, 0)
	target := models.Coord{Lat: 0, Lon: 0.045} // ~5km east
	rec := &recorder{}
	h, err := s.Prepare(d, target, DefaultOptions(), rec)
	if err != nil {
		t.Fatal(err)
	}
	h.Step(context.Background())
	h.Step(context.Background())

	if len(rec.quotes) != 1 {
		t.Fatalf("expected one price callback, got %d", len(rec.quotes))
	}
	if rec.events[0] != "price" {
		t.Fatalf("price must come first, events=%v", rec.events)
	}
	want := pricing.Fare(geo.Distance(d.Loc, target), 1.0)
	if rec.quotes[0].Fare != want {
		t.Fatalf("fare = %v, want %v", rec.quotes[0].Fare, want)
	}
	if rec.etas[0] != 6 {
		t.Fatalf("expected eta 6 minutes for ~5km, got %d", rec.etas[0])
	}
}

func TestPositionsMoveTowardTarget(t *testing.T) {
	s := newTestSimulator()
	d := testDriver(8.229220, 4.614050)
	target := models.Coord{Lat: 8.2300, Lon: 4.6200}
	rec := &recorder{}
	h, _ := s.Prepare(d, target, DefaultOptions(), rec)

	prev := geo.Distance(d.Loc, target)
	for i := 0; i < 5; i++ {
		h.Step(context.Background())
		got := geo.Distance(rec.positions[i].Loc, target)
		if math.Abs((prev-got)-50) > 0.01 {
			t.Fatalf("tick %d: expected to close 50m, closed %f", i, prev-got)
		}
		prev = got
	}
	if rec.positions[0].CarPlateNumber != "ABC123" {
		t.Fatalf("position update lost driver identity")
	}
}

func TestCancelIsIdempotentAndStopsTicks(t *testing.T) {
	s := newTestSimulator()
	d := testDriver(0, 0)
	rec := &recorder{}
	h, _ := s.Prepare(d, models.Coord{Lat: 0.1, Lon: 0}, DefaultOptions(), rec)

	h.Step(context.Background())
	h.Cancel()
	h.Cancel()
	if st := h.Step(context.Background()); st != Cancelled {
		t.Fatalf("expected cancelled, got %v", st)
	}
	if len(rec.positions) != 1 {
		t.Fatalf("no ticks expected after cancel, got %d positions", len(rec.positions))
	}
	if s.Cancel("ABC123") {
		t.Fatalf("cancelled run should be released from the registry")
	}
}

func TestStartRunsToArrival(t *testing.T) {
	s := newTestSimulator()
	d := testDriver(0, 0)
	target := geo.Project(d.Loc, 180, 45)
	opts := DefaultOptions()
	opts.TickInterval = time.Millisecond

	rec := &recorder{}
	h, err := s.Start(context.Background(), d, target, opts, rec)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	if h.State() != Arrived || rec.arrivalCount() != 1 {
		t.Fatalf("state=%v arrivals=%d", h.State(), rec.arrivalCount())
	}
	if h.Ticks() != 4 {
		t.Fatalf("expected 4 ticks for 180m at 50m steps, got %d", h.Ticks())
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	s := newTestSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	opts := DefaultOptions()
	opts.TickInterval = time.Hour

	h, err := s.Start(ctx, testDriver(0, 0), models.Coord{Lat: 1, Lon: 1}, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run ignored context cancellation")
	}
	if h.State() != Cancelled {
		t.Fatalf("expected cancelled, got %v", h.State())
	}
}

func TestNewRunReplacesRunningPlate(t *testing.T) {
	s := newTestSimulator()
	first, _ := s.Prepare(testDriver(0, 0), models.Coord{Lat: 0.1, Lon: 0}, DefaultOptions(), nil)
	second, _ := s.Prepare(testDriver(0, 0), models.Coord{Lat: 0.2, Lon: 0}, DefaultOptions(), nil)

	if first.State() != Cancelled {
		t.Fatalf("expected first run cancelled, got %v", first.State())
	}
	if second.State() != Running {
		t.Fatalf("expected second run running, got %v", second.State())
	}
	if got := s.Running(); len(got) != 1 || got[0] != "ABC123" {
		t.Fatalf("unexpected running set %v", got)
	}
	s.CancelAll()
	if len(s.Running()) != 0 {
		t.Fatalf("CancelAll left runs behind")
	}
}

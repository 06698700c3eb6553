package simulator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeBaron-dev/Rider/internal/geo"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/observability"
)

// Handle is one driver's run toward a target.
type Handle struct {
	plate    string
	target   models.Coord
	opts     Options
	listener Listener
	logger   *slog.Logger
	release  func()

	mu     sync.Mutex
	driver models.Driver
	state  State
	ticks  int

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ticks is the number of steps taken so far.
func (h *Handle) Ticks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ticks
}

// Driver returns the driver at its latest simulated position.
func (h *Handle) Driver() models.Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.driver
}

// Done is closed once the run has arrived or been cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops future ticks. It is a no-op on a finished run.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.state == Arrived || h.state == Cancelled {
		h.mu.Unlock()
		return
	}
	h.state = Cancelled
	h.mu.Unlock()

	h.cancelOnce.Do(func() { close(h.cancel) })
	h.finish()
	h.logger.Info("movement cancelled")
}

// Step advances the run by one tick and returns the resulting state.
// When the remaining distance is within one step the driver lands on the
// target instead of overshooting it.
func (h *Handle) Step(ctx context.Context) State {
	if err := ctx.Err(); err != nil {
		h.Cancel()
		return h.State()
	}

	h.mu.Lock()
	if h.state != Running {
		st := h.state
		h.mu.Unlock()
		return st
	}
	cur := h.driver.Loc
	next := h.target
	if geo.Distance(cur, h.target) > h.opts.StepMeters {
		next = geo.Project(cur, h.opts.StepMeters, geo.Bearing(cur, h.target))
	}
	h.driver.Loc = next
	h.ticks++
	moved := h.driver
	h.mu.Unlock()

	observability.SimulatorTicks.Inc()
	if h.listener != nil {
		h.listener.OnPosition(ctx, moved)
	}

	remaining := geo.Distance(next, h.target)

	h.mu.Lock()
	if h.state != Running {
		st := h.state
		h.mu.Unlock()
		return st
	}
	if remaining >= h.opts.ArrivalThresholdMeters && remaining > 0 {
		h.mu.Unlock()
		return Running
	}
	h.state = Arrived
	ticks := h.ticks
	h.mu.Unlock()

	observability.Arrivals.Inc()
	h.logger.Info("driver arrived", "ticks", ticks)
	if h.listener != nil {
		h.listener.OnArrival(moved)
	}
	h.finish()
	return Arrived
}

func (h *Handle) run(ctx context.Context) {
	timer := time.NewTimer(h.opts.TickInterval)
	defer timer.Stop()
	for {
		if h.Step(ctx) != Running {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(h.opts.TickInterval)
		select {
		case <-ctx.Done():
			h.Cancel()
			return
		case <-h.cancel:
			return
		case <-timer.C:
		}
	}
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() {
		close(h.done)
		if h.release != nil {
			h.release()
		}
	})
}

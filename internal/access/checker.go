package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Checker states.
const (
	StateUnchecked    = "unchecked"
	StateUnavailable  = "unavailable"
	StateNoPermission = "no_permission"
	StateBasic        = "basic"
	StateBackground   = "background"
	StateHistorical   = "historical"
)

// Checker events.
const (
	EventStoreLost       = "store_lost"
	EventGrantNone       = "grant_none"
	EventGrantBasic      = "grant_basic"
	EventGrantBackground = "grant_background"
	EventGrantHistorical = "grant_historical"
)

var allStates = []string{
	StateUnchecked, StateUnavailable, StateNoPermission,
	StateBasic, StateBackground, StateHistorical,
}

// Checker drives the availability/permission state machine against the
// store. Refresh calls are serialized; Last reads the most recent snapshot
// lock-free. State is never cached across process restarts — a fresh
// Checker always starts unchecked.
type Checker struct {
	store   Prober
	logger  *zap.SugaredLogger
	mu      sync.Mutex // serializes Refresh and machine events
	machine *fsm.FSM
	last    atomic.Pointer[Snapshot]
}

// NewChecker creates a checker in the unchecked state.
func NewChecker(store Prober, logger *zap.SugaredLogger) *Checker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Checker{store: store, logger: logger}
	c.machine = fsm.NewFSM(
		StateUnchecked,
		fsm.Events{
			{Name: EventStoreLost, Src: allStates, Dst: StateUnavailable},
			{Name: EventGrantNone, Src: allStates, Dst: StateNoPermission},
			{Name: EventGrantBasic, Src: allStates, Dst: StateBasic},
			{Name: EventGrantBackground, Src: allStates, Dst: StateBackground},
			{Name: EventGrantHistorical, Src: allStates, Dst: StateHistorical},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debugw("access state transition", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return c
}

// Refresh queries the store for availability and permission tiers, drives
// the state machine, and returns an immutable snapshot. Concurrent calls
// are serialized so they can never race to inconsistent states. A probe
// failure counts as the store being unavailable; the error is returned
// alongside the unavailable snapshot so callers can distinguish "store
// said no" from "could not ask".
func (c *Checker) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	available, err := c.store.CheckAvailability(ctx)
	if err != nil {
		snap := c.commit(ctx, EventStoreLost, TierSet{}, false)
		return snap, fmt.Errorf("availability check: %w", err)
	}
	if !available {
		return c.commit(ctx, EventStoreLost, TierSet{}, false), nil
	}

	tiers, err := c.store.CheckPermissions(ctx)
	if err != nil {
		snap := c.commit(ctx, EventStoreLost, TierSet{}, false)
		return snap, fmt.Errorf("permission check: %w", err)
	}

	event := EventGrantNone
	switch tiers.Highest() {
	case TierBasic:
		event = EventGrantBasic
	case TierBackground:
		event = EventGrantBackground
	case TierHistorical:
		event = EventGrantHistorical
	}
	return c.commit(ctx, event, tiers, true), nil
}

// commit fires the event, records the snapshot, and returns it.
// Self-transitions are not an error: an unchanged answer from the store
// simply re-confirms the current state.
func (c *Checker) commit(ctx context.Context, event string, tiers TierSet, available bool) Snapshot {
	if err := c.machine.Event(ctx, event); err != nil {
		var same fsm.NoTransitionError
		if !errors.As(err, &same) {
			c.logger.Warnw("access state event rejected", "event", event, "error", err)
		}
	}
	snap := Snapshot{
		StoreAvailable: available,
		Tiers:          tiers,
		CheckedAt:      time.Now(),
	}
	c.last.Store(&snap)
	return snap
}

// Last returns the most recent snapshot without touching the store, or a
// zero snapshot when no check has run yet. The read is lock-free.
func (c *Checker) Last() Snapshot {
	if snap := c.last.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// State exposes the current machine state, mainly for status reporting.
func (c *Checker) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// Package window implements the Clearing Window Manager: the lifecycle
// of time-bounded clearing windows per region, cutoff/grace enforcement
// for obligation submission, and CAS-protected close/rollback.
package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
	"github.com/paynet/nexus-clearing/internal/telemetry/metrics"
)

// Store is the subset of the state store adapter the manager needs:
// CAS-protected window persistence and a per-region "current window"
// pointer.
type Store interface {
	SaveWindow(ctx context.Context, w domain.ClearingWindow) error
	LoadWindow(ctx context.Context, id string) (domain.ClearingWindow, error)
	// CASWindowStatus updates status only if the stored version matches
	// expectedVersion, returning the new version on success.
	CASWindowStatus(ctx context.Context, id string, expectedVersion int64, newStatus domain.WindowStatus) (int64, error)
	// CurrentWindow returns the current non-terminal window id for a
	// region, if any.
	CurrentWindow(ctx context.Context, region string) (string, bool, error)
	SetCurrentWindow(ctx context.Context, region, windowID string) error
}

// Broadcaster publishes window lifecycle events. The admin websocket
// hub implements it; nothing in this module forwards these events to
// the clearing.window.closed topic.
type Broadcaster interface {
	WindowClosing(w domain.ClearingWindow)
	WindowClosed(w domain.ClearingWindow)
}

// Manager owns the per-region window lifecycle.
type Manager struct {
	store       Store
	broadcaster Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-window exclusive lock, keyed by window id
}

// New constructs a Manager.
func New(store Store, broadcaster Broadcaster) *Manager {
	return &Manager{
		store:       store,
		broadcaster: broadcaster,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// OpenWindow creates a new Open window for region with the given
// duration and cutoff margin, failing with WindowAlreadyOpen if a
// non-terminal window already exists for that region.
func (m *Manager) OpenWindow(ctx context.Context, region string, duration, cutoffMargin, grace time.Duration) (domain.ClearingWindow, error) {
	if _, ok, err := m.store.CurrentWindow(ctx, region); err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "lookup current window", err)
	} else if ok {
		return domain.ClearingWindow{}, corerr.New(corerr.KindBusinessReject, "WindowAlreadyOpen")
	}

	now := time.Now()
	w := domain.ClearingWindow{
		ID:       domain.NewID(),
		Region:   region,
		Status:   domain.WindowOpen,
		OpenedAt: now,
		Cutoff:   now.Add(duration - cutoffMargin),
		Grace:    grace,
		Version:  1,
	}

	if err := m.store.SaveWindow(ctx, w); err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "save window", err)
	}
	if err := m.store.SetCurrentWindow(ctx, region, w.ID); err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "set current window", err)
	}

	metrics.WindowsOpened.WithLabelValues(region).Inc()
	log.For("clearing.window").Sugar().Infow("window opened", "window_id", w.ID, "region", region, "cutoff", w.Cutoff)
	return w, nil
}

// SubmitObligation validates that window accepts an obligation
// submitted now, given the obligation's pre_cutoff flag.
func (m *Manager) SubmitObligation(w domain.ClearingWindow, at time.Time, preCutoff bool) error {
	if w.Status != domain.WindowOpen {
		return corerr.New(corerr.KindBusinessReject, "WindowClosed")
	}
	if !w.AcceptsAt(at, preCutoff) {
		return corerr.New(corerr.KindBusinessReject, "WindowClosed")
	}
	return nil
}

// CloseWindow transitions Open -> Closing, broadcasts the closing
// event, waits out the grace period, then atomically moves
// Closing -> Closed. Gated by a per-window exclusive lock so concurrent
// close attempts cannot race.
func (m *Manager) CloseWindow(ctx context.Context, id string) (domain.ClearingWindow, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	w, err := m.store.LoadWindow(ctx, id)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "load window", err)
	}
	if !domain.CanTransitionWindow(w.Status, domain.WindowClosing) {
		return domain.ClearingWindow{}, corerr.New(corerr.KindInvariantViolation, fmt.Sprintf("illegal transition %s->Closing", w.Status))
	}

	newVersion, err := m.store.CASWindowStatus(ctx, id, w.Version, domain.WindowClosing)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "cas closing", err)
	}
	w.Status = domain.WindowClosing
	w.Version = newVersion
	m.broadcaster.WindowClosing(w)

	select {
	case <-time.After(w.Grace):
	case <-ctx.Done():
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTimeout, "grace wait cancelled", ctx.Err())
	}

	newVersion, err = m.store.CASWindowStatus(ctx, id, w.Version, domain.WindowClosed)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "cas closed", err)
	}
	w.Status = domain.WindowClosed
	w.Version = newVersion
	w.ClosedAt = time.Now()

	if err := m.store.SaveWindow(ctx, w); err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "save closed window", err)
	}
	m.broadcaster.WindowClosed(w)
	return w, nil
}

// advance validates and persists a simple forward transition, used by
// MarkProcessing/MarkSettling/MarkCompleted/MarkFailed.
func (m *Manager) advance(ctx context.Context, id string, to domain.WindowStatus) (domain.ClearingWindow, error) {
	w, err := m.store.LoadWindow(ctx, id)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "load window", err)
	}
	if !domain.CanTransitionWindow(w.Status, to) {
		return domain.ClearingWindow{}, corerr.New(corerr.KindInvariantViolation, fmt.Sprintf("illegal transition %s->%s", w.Status, to))
	}
	newVersion, err := m.store.CASWindowStatus(ctx, id, w.Version, to)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "cas "+string(to), err)
	}
	w.Status = to
	w.Version = newVersion

	if to == domain.WindowCompleted || to == domain.WindowFailed {
		outcome := "completed"
		if to == domain.WindowFailed {
			outcome = "failed"
		}
		metrics.WindowsCompleted.WithLabelValues(w.Region, outcome).Inc()
	}
	return w, nil
}

func (m *Manager) MarkProcessing(ctx context.Context, id string) (domain.ClearingWindow, error) {
	return m.advance(ctx, id, domain.WindowProcessing)
}

func (m *Manager) MarkSettling(ctx context.Context, id string) (domain.ClearingWindow, error) {
	return m.advance(ctx, id, domain.WindowSettling)
}

func (m *Manager) MarkCompleted(ctx context.Context, id string) (domain.ClearingWindow, error) {
	return m.advance(ctx, id, domain.WindowCompleted)
}

func (m *Manager) MarkFailed(ctx context.Context, id string) (domain.ClearingWindow, error) {
	return m.advance(ctx, id, domain.WindowFailed)
}

// CurrentWindow returns the non-terminal window currently open for
// region, used by the admin surface's window.current operation.
func (m *Manager) CurrentWindow(ctx context.Context, region string) (domain.ClearingWindow, error) {
	id, ok, err := m.store.CurrentWindow(ctx, region)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "lookup current window", err)
	}
	if !ok {
		return domain.ClearingWindow{}, corerr.New(corerr.KindBusinessReject, "NoCurrentWindow")
	}
	return m.store.LoadWindow(ctx, id)
}

// Rollback restores a Failed window's obligations to the next window
// of the same region (or an ad-hoc emergency window opened on demand),
// marking the failed window RolledBack. requeue performs the actual
// obligation move and is supplied by the caller (the orchestrator),
// since it needs access to the obligation store.
func (m *Manager) Rollback(ctx context.Context, id string, requeue func(nextWindowID string) error) (domain.ClearingWindow, error) {
	w, err := m.store.LoadWindow(ctx, id)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "load window", err)
	}
	if w.Status != domain.WindowFailed {
		return domain.ClearingWindow{}, corerr.New(corerr.KindInvariantViolation, "rollback only allowed from Failed")
	}

	nextID, ok, err := m.store.CurrentWindow(ctx, w.Region)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "lookup current window", err)
	}
	if !ok {
		emergency, err := m.OpenWindow(ctx, w.Region, time.Hour, 0, 0)
		if err != nil {
			return domain.ClearingWindow{}, err
		}
		nextID = emergency.ID
	}

	if err := requeue(nextID); err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "requeue obligations", err)
	}

	newVersion, err := m.store.CASWindowStatus(ctx, id, w.Version, domain.WindowRolledBack)
	if err != nil {
		return domain.ClearingWindow{}, corerr.Wrap(corerr.KindTransientInfra, "cas rolledback", err)
	}
	w.Status = domain.WindowRolledBack
	w.Version = newVersion
	log.For("clearing.window").Sugar().Warnw("window rolled back", "window_id", id, "next_window_id", nextID)
	return w, nil
}

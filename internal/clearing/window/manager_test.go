package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	windows map[string]domain.ClearingWindow
	current map[string]string
}

func newMemStore() *memStore {
	return &memStore{windows: map[string]domain.ClearingWindow{}, current: map[string]string{}}
}

func (s *memStore) SaveWindow(_ context.Context, w domain.ClearingWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.ID] = w
	return nil
}

func (s *memStore) LoadWindow(_ context.Context, id string) (domain.ClearingWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows[id], nil
}

func (s *memStore) CASWindowStatus(_ context.Context, id string, expectedVersion int64, newStatus domain.WindowStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[id]
	if w.Version != expectedVersion {
		return 0, assertErr{"version mismatch"}
	}
	w.Status = newStatus
	w.Version++
	s.windows[id] = w
	return w.Version, nil
}

func (s *memStore) CurrentWindow(_ context.Context, region string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.current[region]
	if !ok {
		return "", false, nil
	}
	w := s.windows[id]
	terminal := w.Status == domain.WindowCompleted || w.Status == domain.WindowFailed || w.Status == domain.WindowRolledBack
	if terminal {
		return "", false, nil
	}
	return id, true, nil
}

func (s *memStore) SetCurrentWindow(_ context.Context, region, windowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[region] = windowID
	return nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

type noopBroadcaster struct{}

func (noopBroadcaster) WindowClosing(domain.ClearingWindow) {}
func (noopBroadcaster) WindowClosed(domain.ClearingWindow)  {}

func TestOpenWindowRejectsDuplicate(t *testing.T) {
	store := newMemStore()
	mgr := New(store, noopBroadcaster{})
	ctx := context.Background()

	_, err := mgr.OpenWindow(ctx, "ASEAN", time.Hour, time.Minute, time.Second)
	require.NoError(t, err)

	_, err = mgr.OpenWindow(ctx, "ASEAN", time.Hour, time.Minute, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WindowAlreadyOpen")
}

func TestCutoffGraceBoundary(t *testing.T) {
	store := newMemStore()
	mgr := New(store, noopBroadcaster{})
	ctx := context.Background()

	w, err := mgr.OpenWindow(ctx, "ASEAN", time.Hour, 0, 30*time.Second)
	require.NoError(t, err)

	// at cutoff - 1s: accepted regardless of pre_cutoff.
	require.NoError(t, mgr.SubmitObligation(w, w.Cutoff.Add(-time.Second), false))
	// at cutoff + 29s: accepted only if pre_cutoff.
	require.NoError(t, mgr.SubmitObligation(w, w.Cutoff.Add(29*time.Second), true))
	assert.Error(t, mgr.SubmitObligation(w, w.Cutoff.Add(29*time.Second), false))
	// at cutoff + 31s: rejected with WindowClosed regardless of flag.
	err = mgr.SubmitObligation(w, w.Cutoff.Add(31*time.Second), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WindowClosed")
	// at exactly cutoff + grace: rejected even when pre_cutoff-flagged.
	err = mgr.SubmitObligation(w, w.Cutoff.Add(30*time.Second), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WindowClosed")
}

func TestCloseWindowLifecycle(t *testing.T) {
	store := newMemStore()
	mgr := New(store, noopBroadcaster{})
	ctx := context.Background()

	w, err := mgr.OpenWindow(ctx, "ASEAN", time.Hour, time.Hour, 10*time.Millisecond)
	require.NoError(t, err)

	closed, err := mgr.CloseWindow(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowClosed, closed.Status)

	proc, err := mgr.MarkProcessing(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowProcessing, proc.Status)

	settling, err := mgr.MarkSettling(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowSettling, settling.Status)

	completed, err := mgr.MarkCompleted(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowCompleted, completed.Status)
}

func TestRollbackOnlyFromFailed(t *testing.T) {
	store := newMemStore()
	mgr := New(store, noopBroadcaster{})
	ctx := context.Background()

	w, err := mgr.OpenWindow(ctx, "ASEAN", time.Hour, time.Hour, time.Millisecond)
	require.NoError(t, err)

	_, err = mgr.Rollback(ctx, w.ID, func(string) error { return nil })
	assert.Error(t, err, "rollback from a non-Failed window must be rejected")
}

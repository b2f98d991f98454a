package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caffeine/internal/tray"
)

const waitFor = 2 * time.Second

func startSession(t *testing.T, ctx context.Context, s *Session, surface *fakeSurface) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-surface.opened:
	case <-time.After(waitFor):
		t.Fatal("surface was never opened")
	}
	require.Eventually(t, func() bool { return s.State() == StateRunning }, waitFor, time.Millisecond)
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, 59000*time.Millisecond, Period)
}

func TestSessionScenario(t *testing.T) {
	log := &eventLog{}
	clock := newFakeClock()
	surface := newFakeSurface(log)
	action := &fakeAction{log: log}
	s := NewSession(surface, action, SessionOptions{Clock: clock})

	done := startSession(t, context.Background(), s, surface)

	// Immediately: one refresh, one icon.
	assert.Equal(t, 1, action.Runs())
	assert.Equal(t, 1, surface.Icons())
	assert.Equal(t, []time.Duration{Period}, clock.periods)
	assert.Equal(t, tray.DefaultMenu(), surface.opts.Menu)

	// One period later: a second refresh.
	clock.tick()
	require.Eventually(t, func() bool { return action.Runs() == 2 }, waitFor, time.Millisecond)

	// Exit from the menu.
	surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: tray.ExitItemID}
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, 0, surface.Icons())
	assert.Equal(t, 1, surface.closes)
	assert.Equal(t, StateTerminated, s.State())
	assert.True(t, clock.ticker.Stopped())
	assert.Equal(t, []string{"open", "run", "run", "release", "close"}, log.all())
}

func TestSessionRunsOncePerTick(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		clock := newFakeClock()
		surface := newFakeSurface(nil)
		action := &fakeAction{}
		s := NewSession(surface, action, SessionOptions{Clock: clock})

		done := startSession(t, context.Background(), s, surface)
		for i := 0; i < n; i++ {
			clock.tick()
		}
		surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: tray.ExitItemID}
		require.NoError(t, waitDone(t, done))

		assert.Equal(t, n+1, action.Runs(), "ticks=%d", n)
	}
}

func TestSessionOpenFailure(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	surface.openErr = errors.New("no notification area")
	action := &fakeAction{}
	s := NewSession(surface, action, SessionOptions{Clock: clock})

	err := s.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, surface.openErr)
	assert.Zero(t, action.Runs())
	assert.Zero(t, surface.Icons())
	assert.Empty(t, clock.periods)
	assert.Equal(t, StateTerminated, s.State())
}

func TestSessionDestroyed(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	action := &fakeAction{}
	s := NewSession(surface, action, SessionOptions{Clock: clock})

	done := startSession(t, context.Background(), s, surface)
	surface.events <- tray.Event{Kind: tray.EventDestroyed}

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, surface.closes)
	assert.Equal(t, 1, action.releases)
}

func TestSessionContextCancelled(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	s := NewSession(surface, &fakeAction{}, SessionOptions{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := startSession(t, ctx, s, surface)
	cancel()

	require.NoError(t, waitDone(t, done))
	assert.Zero(t, surface.Icons())
	assert.Equal(t, StateTerminated, s.State())
}

func TestSessionIgnoresUnknownItems(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	action := &fakeAction{}
	s := NewSession(surface, action, SessionOptions{Clock: clock})

	done := startSession(t, context.Background(), s, surface)
	surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: 99}
	clock.tick()
	assert.Equal(t, StateRunning, s.State())

	surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: tray.ExitItemID}
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 2, action.Runs())
}

func TestSessionTooltip(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	s := NewSession(surface, &fakeAction{}, SessionOptions{Clock: clock})

	done := startSession(t, context.Background(), s, surface)
	assert.Equal(t, "Caffeine - started now", surface.opts.Tooltip)

	clock.tick()
	require.Eventually(t, func() bool { return len(surface.Tooltips()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, "Caffeine - started 59 seconds ago", surface.Tooltips()[0])

	surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: tray.ExitItemID}
	require.NoError(t, waitDone(t, done))
}

func TestSessionTooltipWithDeadline(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface(nil)
	s := NewSession(surface, &fakeAction{}, SessionOptions{
		Tooltip:  "Awake",
		Deadline: clock.Now().Add(time.Hour),
		Clock:    clock,
	})

	done := startSession(t, context.Background(), s, surface)
	assert.Equal(t, "Awake - stops 1 hour from now", surface.opts.Tooltip)

	clock.tick()
	require.Eventually(t, func() bool { return len(surface.Tooltips()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, "Awake - stops 59 minutes from now", surface.Tooltips()[0])

	surface.events <- tray.Event{Kind: tray.EventMenuSelected, ItemID: tray.ExitItemID}
	require.NoError(t, waitDone(t, done))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "shutting-down", StateShuttingDown.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}

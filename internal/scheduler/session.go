package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"caffeine/internal/tray"
)

// State is where a Session is in its lifecycle.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Tooltip is the icon's base tooltip. Defaults to tray.DefaultTooltip.
	Tooltip string

	// Deadline, if set, is shown in the tooltip. The caller enforces it by
	// cancelling the context passed to Run.
	Deadline time.Time

	// Clock defaults to SystemClock.
	Clock Clock
}

// Session is the tray edition's event loop. Ticks, menu selections,
// destroy notifications and context cancellation are all handled on the
// goroutine that calls Run, one at a time.
type Session struct {
	surface tray.Surface
	action  Action
	opts    SessionOptions
	clock   Clock

	state   atomic.Int32
	started time.Time
}

// NewSession wires action to surface. The session owns the surface from
// Run until Run returns.
func NewSession(surface tray.Surface, action Action, opts SessionOptions) *Session {
	if opts.Tooltip == "" {
		opts.Tooltip = tray.DefaultTooltip
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Session{
		surface: surface,
		action:  action,
		opts:    opts,
		clock:   clock,
	}
}

// State reports the current lifecycle state. Safe for concurrent use.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	logrus.Debugf("Session: state %s", st)
}

// Run shows the icon, runs the action right away and then every Period,
// until the user picks Exit, the surface is destroyed or ctx ends. The icon
// is gone by the time Run returns. The only error is failing to create the
// surface, in which case nothing was shown.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateInitializing)
	s.started = s.clock.Now()

	err := s.surface.Open(tray.Options{
		Tooltip: s.tooltip(s.started),
		Menu:    tray.DefaultMenu(),
	})
	if err != nil {
		s.setState(StateTerminated)
		return fmt.Errorf("failed to create tray surface: %w", err)
	}

	ticker := s.clock.NewTicker(Period)
	s.action.Run()
	s.setState(StateRunning)
	logrus.Infof("Session: running, refreshing every %s", Period)

	reason := s.loop(ctx, ticker)
	logrus.Infof("Session: shutting down (%s)", reason)
	s.shutdown(ticker)
	return nil
}

func (s *Session) loop(ctx context.Context, ticker Ticker) string {
	events := s.surface.Events()
	for {
		select {
		case <-ticker.C():
			s.action.Run()
			s.refreshTooltip()

		case ev, ok := <-events:
			if !ok {
				return "surface events closed"
			}
			switch ev.Kind {
			case tray.EventMenuSelected:
				if ev.ItemID == tray.ExitItemID {
					return "exit selected"
				}
				logrus.Debugf("Session: ignoring menu item %d", ev.ItemID)
			case tray.EventDestroyed:
				return "surface destroyed"
			}

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "hold time reached"
			}
			return "interrupted"
		}
	}
}

func (s *Session) shutdown(ticker Ticker) {
	s.setState(StateShuttingDown)
	ticker.Stop()

	if r, ok := s.action.(Releaser); ok {
		r.Release()
	}
	if err := s.surface.Close(); err != nil {
		logrus.Warnf("Session: tray teardown failed: %v", err)
	}
	s.setState(StateTerminated)
}

func (s *Session) refreshTooltip() {
	if err := s.surface.SetTooltip(s.tooltip(s.clock.Now())); err != nil {
		logrus.Debugf("Session: failed to update tooltip: %v", err)
	}
}

// tooltip describes the session as of now.
func (s *Session) tooltip(now time.Time) string {
	if !s.opts.Deadline.IsZero() {
		return fmt.Sprintf("%s - stops %s", s.opts.Tooltip,
			humanize.RelTime(s.opts.Deadline, now, "ago", "from now"))
	}
	return fmt.Sprintf("%s - started %s", s.opts.Tooltip,
		humanize.RelTime(s.started, now, "ago", "from now"))
}

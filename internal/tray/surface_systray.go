//go:build !windows

package tray

import (
	"errors"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
)

const quitTimeout = 2 * time.Second

// loopExited is closed by systray's onExit. systray is process-global, so
// this is too.
var (
	loopExited     = make(chan struct{})
	loopExitedOnce sync.Once
)

func markLoopExited() {
	loopExitedOnce.Do(func() { close(loopExited) })
}

// runMain runs systray's native loop on the calling goroutine, which must be
// the main one on macOS, and runs body on the goroutine systray hands to
// onReady.
func runMain(body func() error) error {
	result := make(chan error, 1)
	systray.Run(func() {
		result <- body()
		systray.Quit()
	}, markLoopExited)

	select {
	case err := <-result:
		return err
	default:
		return nil
	}
}

// systraySurface drives the getlantern/systray icon. Menu placement and
// focus handling on right-click are done by the library.
type systraySurface struct {
	mu      sync.Mutex
	opened  bool
	closing bool

	events    chan Event
	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSurface() Surface {
	return &systraySurface{
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
	}
}

func (s *systraySurface) Events() <-chan Event {
	return s.events
}

func (s *systraySurface) Open(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}
	s.opened = true
	opts = opts.withDefaults()

	systray.SetIcon(IconPNG())
	systray.SetTooltip(opts.Tooltip)

	for _, item := range opts.Menu {
		mi := systray.AddMenuItem(item.Title, "")
		go s.forward(mi, item.ID)
	}
	go s.watchLoop()

	logrus.Infof("Tray: icon added")
	return nil
}

// forward turns clicks on one menu item into events until Close.
func (s *systraySurface) forward(mi *systray.MenuItem, id int) {
	for {
		select {
		case <-mi.ClickedCh:
			if !deliver(s.events, Event{Kind: EventMenuSelected, ItemID: id}) {
				logrus.Warnf("Tray: dropped menu selection %d", id)
			}
		case <-s.stop:
			return
		}
	}
}

// watchLoop reports a loop that ended without our Close as a destroy.
func (s *systraySurface) watchLoop() {
	select {
	case <-loopExited:
		s.mu.Lock()
		external := !s.closing
		s.mu.Unlock()
		if external {
			logrus.Infof("Tray: UI loop ended by the system")
			deliver(s.events, Event{Kind: EventDestroyed})
		}
	case <-s.stop:
	}
}

func (s *systraySurface) SetTooltip(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing || !s.opened {
		return ErrClosed
	}
	systray.SetTooltip(text)
	return nil
}

func (s *systraySurface) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *systraySurface) close() error {
	s.mu.Lock()
	s.closing = true
	opened := s.opened
	s.mu.Unlock()

	close(s.stop)
	if !opened {
		return nil
	}

	systray.Quit()
	select {
	case <-loopExited:
		logrus.Infof("Tray: icon removed")
		return nil
	case <-time.After(quitTimeout):
		return errors.New("tray loop did not stop")
	}
}

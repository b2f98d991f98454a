package scheduler

import (
	"sync"
	"time"

	"caffeine/internal/tray"
)

// fakeAction counts runs and releases.
type fakeAction struct {
	mu       sync.Mutex
	runs     int
	releases int
	onRun    func(n int)
	log      *eventLog
}

func (a *fakeAction) Run() {
	a.mu.Lock()
	a.runs++
	n := a.runs
	a.mu.Unlock()
	if a.log != nil {
		a.log.add("run")
	}
	if a.onRun != nil {
		a.onRun(n)
	}
}

func (a *fakeAction) Release() {
	a.mu.Lock()
	a.releases++
	a.mu.Unlock()
	if a.log != nil {
		a.log.add("release")
	}
}

func (a *fakeAction) Runs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runs
}

// eventLog records the order of side effects across fakes.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(s string) {
	l.mu.Lock()
	l.entries = append(l.entries, s)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// manualTicker fires only when the test sends on ch.
type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeClock hands out a manual ticker and, for After, fires immediately
// for the first fireAfter calls and never afterwards.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	ticker    *manualTicker
	periods   []time.Duration
	waits     []time.Duration
	fireAfter int
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		ticker: &manualTicker{ch: make(chan time.Time)},
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if len(c.waits) <= c.fireAfter {
		ch <- c.now.Add(d)
	}
	return ch
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.periods = append(c.periods, d)
	return c.ticker
}

// tick delivers one ticker fire and waits for the session to take it.
func (c *fakeClock) tick() {
	c.Advance(Period)
	c.ticker.ch <- c.Now()
}

// fakeSurface stands in for the tray icon.
type fakeSurface struct {
	mu       sync.Mutex
	icons    int
	opens    int
	closes   int
	opts     tray.Options
	tooltips []string
	openErr  error
	events   chan tray.Event
	opened   chan struct{}
	log      *eventLog
}

func newFakeSurface(log *eventLog) *fakeSurface {
	return &fakeSurface{
		events: make(chan tray.Event),
		opened: make(chan struct{}),
		log:    log,
	}
}

func (f *fakeSurface) Open(opts tray.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return f.openErr
	}
	f.icons++
	f.opts = opts
	if f.log != nil {
		f.log.add("open")
	}
	close(f.opened)
	return nil
}

func (f *fakeSurface) SetTooltip(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.icons == 0 {
		return tray.ErrClosed
	}
	f.tooltips = append(f.tooltips, text)
	return nil
}

func (f *fakeSurface) Events() <-chan tray.Event {
	return f.events
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.icons > 0 {
		f.icons--
	}
	if f.log != nil {
		f.log.add("close")
	}
	return nil
}

func (f *fakeSurface) Icons() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.icons
}

func (f *fakeSurface) Tooltips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tooltips...)
}

// Package scheduler decides when the stay-awake action runs: once at
// start, then every Period. The console edition blocks between runs; the
// tray edition runs a Session, an event loop that also serves the icon.
package scheduler

import "time"

// Period is the fixed gap between two stay-awake refreshes.
const Period = 59 * time.Second

// Action is the work done on every tick.
type Action interface {
	Run()
}

// Releaser is implemented by actions that hold something until shutdown.
type Releaser interface {
	Release()
}

// Clock is the time source. Tests swap in a manual one.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker fires every period until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (systemClock) NewTicker(d time.Duration) Ticker       { return realTicker{time.NewTicker(d)} }

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Package awake tells the operating system that the machine is in use.
//
// An Action resets the system and display idle timers in continuous mode and,
// as a fallback for programs that only watch raw input, taps F15, a key that
// nothing is bound to. Platform code lives in awake_<goos>.go.
package awake

import (
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrUnsupported is returned by backends on platforms without a
// stay-awake mechanism.
var ErrUnsupported = errors.New("stay-awake not supported on this platform")

// Request selects which idle timers are held.
type Request struct {
	System  bool
	Display bool
}

// Empty reports whether the request holds nothing.
func (r Request) Empty() bool {
	return !r.System && !r.Display
}

// Options configures an Action.
type Options struct {
	Request     Request
	KeyFallback bool
}

// DefaultOptions holds both system and display awake and taps F15.
func DefaultOptions() Options {
	return Options{
		Request:     Request{System: true, Display: true},
		KeyFallback: true,
	}
}

// backend is the platform half of an Action.
type backend interface {
	// assert resets the idle timers selected by req. The effect persists
	// until release or process exit.
	assert(req Request) error
	// tap injects a key-down/key-up pair of F15.
	tap() error
	// release clears whatever assert holds.
	release() error
}

// Action performs one stay-awake refresh per Run. It never reports failure:
// a missed refresh is retried by the next Run.
type Action struct {
	req         Request
	keyFallback atomic.Bool
	b           backend

	unsupported atomic.Bool
}

// New creates an Action backed by the current platform.
func New(opts Options) *Action {
	return newAction(opts, newBackend())
}

func newAction(opts Options, b backend) *Action {
	a := &Action{
		req: opts.Request,
		b:   b,
	}
	a.keyFallback.Store(opts.KeyFallback)
	return a
}

// Run resets the idle timers and, if enabled, taps F15.
func (a *Action) Run() {
	if err := a.b.assert(a.req); err != nil {
		a.logFailure("idle reset", err)
	}
	if !a.keyFallback.Load() {
		return
	}
	if err := a.b.tap(); err != nil {
		a.logFailure("key fallback", err)
	}
}

// Release drops the continuous assertion. Safe to call more than once.
func (a *Action) Release() {
	if err := a.b.release(); err != nil {
		logrus.Debugf("Awake: release failed: %v", err)
	}
}

// SetKeyFallback turns the F15 tap on or off. Safe for concurrent use.
func (a *Action) SetKeyFallback(on bool) {
	if a.keyFallback.Swap(on) != on {
		logrus.Infof("Awake: key fallback set to %v", on)
	}
}

// KeyFallback reports whether the F15 tap is enabled.
func (a *Action) KeyFallback() bool {
	return a.keyFallback.Load()
}

func (a *Action) logFailure(what string, err error) {
	if errors.Is(err, ErrUnsupported) {
		// Said once; it will not change on the next tick.
		if a.unsupported.CompareAndSwap(false, true) {
			logrus.Warnf("Awake: %s: %v", what, err)
		}
		return
	}
	logrus.Debugf("Awake: %s failed, retrying next tick: %v", what, err)
}

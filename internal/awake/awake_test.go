package awake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeBackend models the OS side: an assertion is either held or not.
type fakeBackend struct {
	asserts  int
	taps     int
	releases int
	held     Request
	failWith error
}

func (f *fakeBackend) assert(req Request) error {
	f.asserts++
	if f.failWith != nil {
		return f.failWith
	}
	f.held = req
	return nil
}

func (f *fakeBackend) tap() error {
	f.taps++
	return f.failWith
}

func (f *fakeBackend) release() error {
	f.releases++
	f.held = Request{}
	return nil
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Request.System)
	assert.True(t, opts.Request.Display)
	assert.True(t, opts.KeyFallback)
	assert.False(t, opts.Request.Empty())
	assert.True(t, Request{}.Empty())
}

func TestRunAssertsAndTaps(t *testing.T) {
	fb := &fakeBackend{}
	a := newAction(DefaultOptions(), fb)

	a.Run()

	assert.Equal(t, 1, fb.asserts)
	assert.Equal(t, 1, fb.taps)
	assert.Equal(t, Request{System: true, Display: true}, fb.held)
}

func TestRunWithoutKeyFallback(t *testing.T) {
	fb := &fakeBackend{}
	a := newAction(Options{Request: Request{Display: true}}, fb)

	a.Run()

	assert.Equal(t, 1, fb.asserts)
	assert.Zero(t, fb.taps)
	assert.Equal(t, Request{Display: true}, fb.held)
}

func TestRunIsIdempotent(t *testing.T) {
	once := &fakeBackend{}
	newAction(DefaultOptions(), once).Run()

	twice := &fakeBackend{}
	a := newAction(DefaultOptions(), twice)
	a.Run()
	a.Run()

	assert.Equal(t, once.held, twice.held)
}

func TestRunSwallowsFailures(t *testing.T) {
	fb := &fakeBackend{failWith: errors.New("access denied")}
	a := newAction(DefaultOptions(), fb)

	assert.NotPanics(t, func() {
		a.Run()
		a.Run()
	})
	// A failed tick does not stop the next one.
	assert.Equal(t, 2, fb.asserts)
	assert.Equal(t, 2, fb.taps)
}

func TestRunUnsupported(t *testing.T) {
	fb := &fakeBackend{failWith: ErrUnsupported}
	a := newAction(DefaultOptions(), fb)

	a.Run()
	a.Run()

	assert.True(t, a.unsupported.Load())
	assert.Equal(t, 2, fb.asserts)
}

func TestSetKeyFallback(t *testing.T) {
	fb := &fakeBackend{}
	a := newAction(DefaultOptions(), fb)

	a.SetKeyFallback(false)
	assert.False(t, a.KeyFallback())
	a.Run()
	assert.Zero(t, fb.taps)

	a.SetKeyFallback(true)
	a.Run()
	assert.Equal(t, 1, fb.taps)
}

func TestRelease(t *testing.T) {
	fb := &fakeBackend{}
	a := newAction(DefaultOptions(), fb)

	a.Run()
	a.Release()
	a.Release()

	assert.Equal(t, 2, fb.releases)
	assert.True(t, fb.held.Empty())
}

func TestWithUIPIHint(t *testing.T) {
	base := errors.New("SendInput inserted 0 of 2 events")

	assert.NoError(t, withUIPIHint(nil, false))
	assert.Same(t, base, withUIPIHint(base, true))

	hinted := withUIPIHint(base, false)
	assert.ErrorIs(t, hinted, base)
	assert.Contains(t, hinted.Error(), "elevated")
	assert.Contains(t, hinted.Error(), "--no-key")
}

//go:build !windows && !linux && !darwin

package awake

type stubBackend struct{}

func newBackend() backend {
	return stubBackend{}
}

func (stubBackend) assert(Request) error { return ErrUnsupported }
func (stubBackend) tap() error           { return ErrUnsupported }
func (stubBackend) release() error       { return nil }

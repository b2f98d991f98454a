//go:build !windows

package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystraySurfaceCloseBeforeOpen(t *testing.T) {
	s := newSurface()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Open(Options{}), ErrClosed)
	assert.ErrorIs(t, s.SetTooltip("Caffeine"), ErrClosed)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestSystraySurfaceTooltipBeforeOpen(t *testing.T) {
	s := newSurface()
	assert.ErrorIs(t, s.SetTooltip("Caffeine"), ErrClosed)
	require.NoError(t, s.Close())
}

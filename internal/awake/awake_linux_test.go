//go:build linux

package awake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPresser struct {
	presses int
}

func (c *countingPresser) Launching() error {
	c.presses++
	return nil
}

func TestLinuxTapRetriesKeyboardOpen(t *testing.T) {
	presser := &countingPresser{}
	opens := 0
	l := &linuxBackend{sleepFD: -1}
	l.openKeyboard = func() (keyPresser, error) {
		opens++
		if opens == 1 {
			return nil, errors.New("uinput unavailable: no such device")
		}
		return presser, nil
	}

	require.Error(t, l.tap())
	assert.Nil(t, l.kb)

	require.NoError(t, l.tap())
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, presser.presses)
}

func TestLinuxTapKeepsOpenedKeyboard(t *testing.T) {
	presser := &countingPresser{}
	opens := 0
	l := &linuxBackend{sleepFD: -1}
	l.openKeyboard = func() (keyPresser, error) {
		opens++
		return presser, nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, l.tap())
	}
	assert.Equal(t, 1, opens)
	assert.Equal(t, 3, presser.presses)
}

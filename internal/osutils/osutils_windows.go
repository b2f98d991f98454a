//go:build windows

package osutils

import (
	"golang.org/x/sys/windows"
)

// IsElevated reports whether the process token is elevated. Windows keeps
// unelevated processes from sending input to elevated windows (UIPI).
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// CanInjectKeys reports whether synthetic key events can be sent.
// SendInput is available to every desktop session.
func CanInjectKeys() bool {
	return true
}

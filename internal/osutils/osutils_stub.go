//go:build !windows

package osutils

import (
	"os"
	"runtime"
)

const uinputPath = "/dev/uinput"

// CanInjectKeys reports whether synthetic key events can be sent.
// On Linux this needs write access to the uinput device.
func CanInjectKeys() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	f, err := os.OpenFile(uinputPath, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

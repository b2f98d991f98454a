//go:build windows

package awake

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"caffeine/internal/osutils"
)

var (
	kernel32                    = windows.NewLazySystemDLL("kernel32.dll")
	user32                      = windows.NewLazySystemDLL("user32.dll")
	procSetThreadExecutionState = kernel32.NewProc("SetThreadExecutionState")
	procSendInput               = user32.NewProc("SendInput")
)

const (
	ES_CONTINUOUS       = 0x80000000
	ES_SYSTEM_REQUIRED  = 0x00000001
	ES_DISPLAY_REQUIRED = 0x00000002

	INPUT_KEYBOARD  = 1
	KEYEVENTF_KEYUP = 0x0002
	VK_F15          = 0x7E
)

type KEYBDINPUT struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type INPUT struct {
	Type uint32
	Ki   KEYBDINPUT
	_    [8]byte // Padding up to the size of the MOUSEINPUT union member
}

// windowsBackend pins every SetThreadExecutionState call to one OS thread.
// The continuous state belongs to the calling thread, so asserting on one
// thread and clearing on another would leak the assertion.
type windowsBackend struct {
	once  sync.Once
	calls chan func()
}

func newBackend() backend {
	return &windowsBackend{}
}

func (w *windowsBackend) onThread(fn func() error) error {
	w.once.Do(func() {
		w.calls = make(chan func())
		go func() {
			runtime.LockOSThread()
			for call := range w.calls {
				call()
			}
		}()
	})

	done := make(chan error, 1)
	w.calls <- func() { done <- fn() }
	return <-done
}

func (w *windowsBackend) assert(req Request) error {
	flags := uintptr(ES_CONTINUOUS)
	if req.System {
		flags |= ES_SYSTEM_REQUIRED
	}
	if req.Display {
		flags |= ES_DISPLAY_REQUIRED
	}
	return w.onThread(func() error {
		return setThreadExecutionState(flags)
	})
}

func (w *windowsBackend) release() error {
	return w.onThread(func() error {
		return setThreadExecutionState(ES_CONTINUOUS)
	})
}

func (w *windowsBackend) tap() error {
	var in [2]INPUT
	in[0].Type = INPUT_KEYBOARD
	in[0].Ki.WVk = VK_F15
	in[1] = in[0]
	in[1].Ki.DwFlags = KEYEVENTF_KEYUP

	n, _, err := procSendInput.Call(
		uintptr(len(in)),
		uintptr(unsafe.Pointer(&in[0])),
		unsafe.Sizeof(in[0]),
	)
	if int(n) != len(in) {
		return withUIPIHint(fmt.Errorf("SendInput inserted %d of %d events: %w", n, len(in), err), osutils.IsElevated())
	}
	return nil
}

func setThreadExecutionState(flags uintptr) error {
	prev, _, err := procSetThreadExecutionState.Call(flags)
	if prev == 0 {
		return fmt.Errorf("SetThreadExecutionState(0x%X): %w", flags, err)
	}
	return nil
}

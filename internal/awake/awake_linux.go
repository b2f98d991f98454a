//go:build linux

package awake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/micmonay/keybd_event"
	"golang.org/x/sys/unix"
)

const (
	screenSaverName  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	login1Name       = "org.freedesktop.login1"
	login1Path       = dbus.ObjectPath("/org/freedesktop/login1")
	inhibitWho       = "caffeine"
	inhibitWhy       = "Keeping the computer awake"
	uinputSettleTime = 2 * time.Second

	// KEY_F15 from linux/input-event-codes.h.
	keyF15 = 185
)

// linuxBackend talks to the desktop over D-Bus. The screensaver inhibit
// cookie and the logind inhibitor fd are what make the assertion
// continuous; SimulateUserActivity resets the idle timer itself.
type linuxBackend struct {
	mu sync.Mutex

	cookie    uint32
	inhibited bool
	sleepFD   int

	// kb is only set once a virtual keyboard was opened; a failed open is
	// tried again on the next tap.
	kbMu         sync.Mutex
	kb           keyPresser
	openKeyboard func() (keyPresser, error)
}

// keyPresser sends the configured key down and up.
type keyPresser interface {
	Launching() error
}

func newBackend() backend {
	return &linuxBackend{sleepFD: -1, openKeyboard: openUinputKeyboard}
}

func (l *linuxBackend) assert(req Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	screensaver := conn.Object(screenSaverName, screenSaverPath)

	var errs []error
	if req.Display && !l.inhibited {
		if err := screensaver.Call(screenSaverName+".Inhibit", 0, inhibitWho, inhibitWhy).Store(&l.cookie); err != nil {
			errs = append(errs, fmt.Errorf("screensaver inhibit: %w", err))
		} else {
			l.inhibited = true
		}
	}
	if req.System && l.sleepFD < 0 {
		if fd, err := inhibitSleep(); err != nil {
			errs = append(errs, err)
		} else {
			l.sleepFD = fd
		}
	}
	if call := screensaver.Call(screenSaverName+".SimulateUserActivity", 0); call.Err != nil {
		errs = append(errs, fmt.Errorf("simulate user activity: %w", call.Err))
	}
	return errors.Join(errs...)
}

// inhibitSleep takes a logind "idle:sleep" block lock. The lock lives as
// long as the returned fd stays open.
func inhibitSleep() (int, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return -1, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	var fd dbus.UnixFD
	err = conn.Object(login1Name, login1Path).
		Call(login1Name+".Manager.Inhibit", 0, "idle:sleep", inhibitWho, inhibitWhy, "block").
		Store(&fd)
	if err != nil {
		return -1, fmt.Errorf("logind inhibit: %w", err)
	}
	return int(fd), nil
}

func (l *linuxBackend) release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.inhibited {
		l.inhibited = false
		conn, err := dbus.SessionBus()
		if err != nil {
			errs = append(errs, err)
		} else if call := conn.Object(screenSaverName, screenSaverPath).Call(screenSaverName+".UnInhibit", 0, l.cookie); call.Err != nil {
			errs = append(errs, fmt.Errorf("screensaver uninhibit: %w", call.Err))
		}
	}
	if l.sleepFD >= 0 {
		if err := unix.Close(l.sleepFD); err != nil {
			errs = append(errs, fmt.Errorf("close logind inhibitor: %w", err))
		}
		l.sleepFD = -1
	}
	return errors.Join(errs...)
}

func (l *linuxBackend) tap() error {
	l.kbMu.Lock()
	defer l.kbMu.Unlock()

	if l.kb == nil {
		kb, err := l.openKeyboard()
		if err != nil {
			return err
		}
		l.kb = kb
	}
	return l.kb.Launching()
}

func openUinputKeyboard() (keyPresser, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("uinput unavailable: %w", err)
	}
	// The virtual device is not usable until udev has picked it up.
	time.Sleep(uinputSettleTime)
	kb.SetKeys(keyF15)
	return &kb, nil
}

//go:build darwin

package awake

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>

// kVK_F15 from HIToolbox/Events.h.
#define KEY_F15 0x71

static int tapF15(void) {
    CGEventRef down = CGEventCreateKeyboardEvent(NULL, KEY_F15, true);
    CGEventRef up = CGEventCreateKeyboardEvent(NULL, KEY_F15, false);
    if (down == NULL || up == NULL) {
        if (down) CFRelease(down);
        if (up) CFRelease(up);
        return -1;
    }
    CGEventPost(kCGHIDEventTap, down);
    CGEventPost(kCGHIDEventTap, up);
    CFRelease(down);
    CFRelease(up);
    return 0;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// darwinBackend holds the assertion with a caffeinate child that exits
// with us (-w pid), and declares user activity once per tick.
type darwinBackend struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

func newBackend() backend {
	return &darwinBackend{}
}

func (d *darwinBackend) assert(req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := exec.LookPath("caffeinate")
	if err != nil {
		return fmt.Errorf("caffeinate not found: %w", err)
	}

	if d.cmd == nil {
		args := []string{"-w", strconv.Itoa(os.Getpid())}
		if req.Display {
			args = append(args, "-d")
		}
		if req.System {
			args = append(args, "-i")
		}
		cmd := exec.Command(path, args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start caffeinate: %w", err)
		}
		d.cmd = cmd
		go cmd.Wait()
	}

	// -u declares the user active, which resets the idle timers.
	user := exec.Command(path, "-u", "-t", "1")
	if err := user.Start(); err != nil {
		return fmt.Errorf("failed to declare user activity: %w", err)
	}
	go user.Wait()
	return nil
}

func (d *darwinBackend) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	err := d.cmd.Process.Kill()
	d.cmd = nil
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop caffeinate: %w", err)
	}
	return nil
}

func (d *darwinBackend) tap() error {
	if C.tapF15() != 0 {
		return errors.New("CGEventCreateKeyboardEvent failed")
	}
	return nil
}

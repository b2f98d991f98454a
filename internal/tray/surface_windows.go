//go:build windows

package tray

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	shell32                      = windows.NewLazySystemDLL("shell32.dll")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procRegisterClassEx          = user32.NewProc("RegisterClassExW")
	procUnregisterClass          = user32.NewProc("UnregisterClassW")
	procCreateWindowEx           = user32.NewProc("CreateWindowExW")
	procDefWindowProc            = user32.NewProc("DefWindowProcW")
	procDestroyWindow            = user32.NewProc("DestroyWindow")
	procGetMessage               = user32.NewProc("GetMessageW")
	procTranslateMessage         = user32.NewProc("TranslateMessage")
	procDispatchMessage          = user32.NewProc("DispatchMessageW")
	procPostMessage              = user32.NewProc("PostMessageW")
	procPostQuitMessage          = user32.NewProc("PostQuitMessage")
	procRegisterWindowMessage    = user32.NewProc("RegisterWindowMessageW")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procGetCursorPos             = user32.NewProc("GetCursorPos")
	procCreatePopupMenu          = user32.NewProc("CreatePopupMenu")
	procAppendMenu               = user32.NewProc("AppendMenuW")
	procTrackPopupMenu           = user32.NewProc("TrackPopupMenu")
	procDestroyMenu              = user32.NewProc("DestroyMenu")
	procCreateIconFromResourceEx = user32.NewProc("CreateIconFromResourceEx")
	procDestroyIcon              = user32.NewProc("DestroyIcon")
	procShellNotifyIcon          = shell32.NewProc("Shell_NotifyIconW")
	procGetModuleHandle          = kernel32.NewProc("GetModuleHandleW")
)

const (
	WM_NULL        = 0x0000
	WM_DESTROY     = 0x0002
	WM_CLOSE       = 0x0010
	WM_CONTEXTMENU = 0x007B
	WM_RBUTTONUP   = 0x0205
	WM_APP         = 0x8000

	NIM_ADD    = 0x00000000
	NIM_MODIFY = 0x00000001
	NIM_DELETE = 0x00000002

	NIF_MESSAGE = 0x00000001
	NIF_ICON    = 0x00000002
	NIF_TIP     = 0x00000004

	MF_STRING = 0x00000000

	TPM_RIGHTBUTTON = 0x0002
	TPM_BOTTOMALIGN = 0x0020
	TPM_RETURNCMD   = 0x0100

	LR_DEFAULTCOLOR = 0x00000000

	wmTrayCallback = WM_APP + 1
	trayIconID     = 1
	windowClass    = "CaffeineTrayWindow"
	closeTimeout   = 2 * time.Second
)

type WNDCLASSEX struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

type MSG struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      POINT
}

type POINT struct {
	X, Y int32
}

type NOTIFYICONDATA struct {
	CbSize           uint32
	HWnd             windows.Handle
	UID              uint32
	UFlags           uint32
	UCallbackMessage uint32
	HIcon            windows.Handle
	SzTip            [128]uint16
	DwState          uint32
	DwStateMask      uint32
	SzInfo           [256]uint16
	UVersion         uint32
	SzInfoTitle      [64]uint16
	DwInfoFlags      uint32
	GuidItem         windows.GUID
	HBalloonIcon     windows.Handle
}

// nativeSurface is a hidden top-level window that owns one notification
// icon. The window, its message loop and the menu all live on a single
// locked OS thread; the session only talks to it through Close, SetTooltip
// and the events channel.
type nativeSurface struct {
	mu      sync.Mutex
	opts    Options
	hwnd    windows.Handle
	hicon   windows.Handle
	nid     NOTIFYICONDATA
	shown   bool
	opened  bool
	closing bool

	taskbarCreated uint32

	// shellNotify is Shell_NotifyIconW; replaced in tests.
	shellNotify func(op uintptr, nid *NOTIFYICONDATA) error

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSurface() Surface {
	return &nativeSurface{
		shellNotify: shellNotifyIcon,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
	}
}

func runMain(body func() error) error {
	return body()
}

func (s *nativeSurface) Events() <-chan Event {
	return s.events
}

func (s *nativeSurface) Open(opts Options) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.opened {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.opened = true
	s.opts = opts.withDefaults()
	s.mu.Unlock()

	ready := make(chan error, 1)
	go s.loop(ready)
	return <-ready
}

// loop creates the window and icon, reports the outcome on ready, then
// pumps messages until WM_QUIT.
func (s *nativeSurface) loop(ready chan<- error) {
	// Never unlocked: the thread exits with the goroutine, and any WM_QUIT
	// left in its queue goes with it.
	runtime.LockOSThread()
	defer close(s.done)
	defer s.unregisterClass()

	if err := s.create(); err != nil {
		ready <- err
		return
	}
	ready <- nil

	var msg MSG
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}
	logrus.Debugf("Tray: message loop ended")
}

func (s *nativeSurface) create() error {
	hInstance, _, _ := procGetModuleHandle.Call(0)
	className, _ := windows.UTF16PtrFromString(windowClass)

	wc := WNDCLASSEX{
		LpfnWndProc:   windows.NewCallback(s.wndProc),
		HInstance:     windows.Handle(hInstance),
		LpszClassName: className,
	}
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	if atom, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		return fmt.Errorf("failed to register window class: %w", err)
	}

	taskbarCreated, _ := windows.UTF16PtrFromString("TaskbarCreated")
	msg, _, _ := procRegisterWindowMessage.Call(uintptr(unsafe.Pointer(taskbarCreated)))
	s.taskbarCreated = uint32(msg)

	hwnd, _, err := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		0, // never shown
		0, 0, 0, 0,
		0, 0, hInstance, 0,
	)
	if hwnd == 0 {
		return fmt.Errorf("failed to create tray window: %w", err)
	}

	dib := iconDIB()
	hicon, _, err := procCreateIconFromResourceEx.Call(
		uintptr(unsafe.Pointer(&dib[0])),
		uintptr(len(dib)),
		1,          // fIcon
		0x00030000, // dwVer
		iconSize, iconSize,
		LR_DEFAULTCOLOR,
	)
	if hicon == 0 {
		s.abandon(hwnd, 0)
		return fmt.Errorf("failed to create tray icon image: %w", err)
	}

	s.mu.Lock()
	s.hwnd = windows.Handle(hwnd)
	s.hicon = windows.Handle(hicon)
	s.nid = NOTIFYICONDATA{
		HWnd:             s.hwnd,
		UID:              trayIconID,
		UFlags:           NIF_MESSAGE | NIF_ICON | NIF_TIP,
		UCallbackMessage: wmTrayCallback,
		HIcon:            s.hicon,
	}
	s.nid.CbSize = uint32(unsafe.Sizeof(s.nid))
	setTip(&s.nid, s.opts.Tooltip)
	nid := s.nid
	s.mu.Unlock()

	// Nothing else touches the icon until shown is set.
	if err := s.shellNotify(NIM_ADD, &nid); err != nil {
		s.abandon(hwnd, hicon)
		return fmt.Errorf("failed to add tray icon: %w", err)
	}

	s.mu.Lock()
	s.shown = true
	s.mu.Unlock()
	logrus.Infof("Tray: icon added")
	return nil
}

// abandon tears down a half-created surface. It must be called without
// s.mu held: DestroyWindow re-enters wndProc on this thread.
func (s *nativeSurface) abandon(hwnd, hicon uintptr) {
	s.mu.Lock()
	s.closing = true
	s.hwnd = 0
	s.hicon = 0
	s.mu.Unlock()

	if hicon != 0 {
		procDestroyIcon.Call(hicon)
	}
	procDestroyWindow.Call(hwnd)
}

func (s *nativeSurface) unregisterClass() {
	hInstance, _, _ := procGetModuleHandle.Call(0)
	className, _ := windows.UTF16PtrFromString(windowClass)
	procUnregisterClass.Call(uintptr(unsafe.Pointer(className)), hInstance)
}

func shellNotifyIcon(op uintptr, nid *NOTIFYICONDATA) error {
	ok, _, err := procShellNotifyIcon.Call(op, uintptr(unsafe.Pointer(nid)))
	if ok == 0 {
		return fmt.Errorf("Shell_NotifyIcon(%d): %w", op, err)
	}
	return nil
}

// notify must be called with s.mu held.
func (s *nativeSurface) notify(op uintptr) error {
	return s.shellNotify(op, &s.nid)
}

func setTip(nid *NOTIFYICONDATA, text string) {
	tip, err := windows.UTF16FromString(text)
	if err != nil {
		tip = []uint16{0}
	}
	if len(tip) > len(nid.SzTip) {
		tip = tip[:len(nid.SzTip)]
		tip[len(tip)-1] = 0
	}
	nid.SzTip = [128]uint16{}
	copy(nid.SzTip[:], tip)
}

func (s *nativeSurface) SetTooltip(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing || !s.shown {
		return ErrClosed
	}
	setTip(&s.nid, text)
	return s.notify(NIM_MODIFY)
}

func (s *nativeSurface) wndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	switch uint32(msg) {
	case wmTrayCallback:
		switch uint32(lParam) & 0xFFFF {
		case WM_RBUTTONUP, WM_CONTEXTMENU:
			s.onRightClick()
		}
		return 0
	case WM_DESTROY:
		s.mu.Lock()
		external := !s.closing
		s.mu.Unlock()
		if external {
			logrus.Infof("Tray: window destroyed by the system")
			deliver(s.events, Event{Kind: EventDestroyed})
		}
		procPostQuitMessage.Call(0)
		return 0
	}

	if s.taskbarCreated != 0 && uint32(msg) == s.taskbarCreated {
		// Explorer restarted and forgot our icon.
		s.mu.Lock()
		if s.shown && !s.closing {
			if err := s.notify(NIM_ADD); err != nil {
				logrus.Warnf("Tray: failed to restore icon: %v", err)
			}
		}
		s.mu.Unlock()
		return 0
	}

	ret, _, _ := procDefWindowProc.Call(hwnd, msg, wParam, lParam)
	return ret
}

func (s *nativeSurface) onRightClick() {
	var pt POINT
	if ok, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); ok == 0 {
		logrus.Debugf("Tray: GetCursorPos failed: %v", err)
		return
	}

	s.mu.Lock()
	menu := s.opts.Menu
	s.mu.Unlock()

	ev, ok, err := showContextMenu(s, menu, Point{X: int(pt.X), Y: int(pt.Y)})
	if err != nil {
		logrus.Warnf("Tray: %v", err)
		return
	}
	if ok && !deliver(s.events, ev) {
		logrus.Warnf("Tray: dropped menu selection %d", ev.ItemID)
	}
}

// Foreground implements menuHost.
func (s *nativeSurface) Foreground() error {
	if ok, _, err := procSetForegroundWindow.Call(uintptr(s.hwnd)); ok == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}
	return nil
}

// Track implements menuHost. It runs on the window thread.
func (s *nativeSurface) Track(p Popup) (int, bool, error) {
	hmenu, _, err := procCreatePopupMenu.Call()
	if hmenu == 0 {
		return 0, false, fmt.Errorf("CreatePopupMenu: %w", err)
	}
	defer procDestroyMenu.Call(hmenu)

	for _, item := range p.Items {
		title, _ := windows.UTF16PtrFromString(item.Title)
		if ok, _, err := procAppendMenu.Call(hmenu, MF_STRING, uintptr(item.ID), uintptr(unsafe.Pointer(title))); ok == 0 {
			return 0, false, fmt.Errorf("AppendMenu(%q): %w", item.Title, err)
		}
	}

	cmd, _, _ := procTrackPopupMenu.Call(
		hmenu,
		TPM_RETURNCMD|TPM_RIGHTBUTTON|TPM_BOTTOMALIGN,
		uintptr(int32(p.At.X)), uintptr(int32(p.At.Y)),
		0,
		uintptr(s.hwnd),
		0,
	)
	// Lets the menu dismiss properly next time.
	procPostMessage.Call(uintptr(s.hwnd), WM_NULL, 0, 0)

	if cmd == 0 {
		return 0, false, nil
	}
	return int(cmd), true, nil
}

func (s *nativeSurface) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *nativeSurface) close() error {
	s.mu.Lock()
	s.closing = true
	opened := s.opened
	var errs []error
	if s.shown {
		if err := s.notify(NIM_DELETE); err != nil {
			errs = append(errs, err)
		}
		s.shown = false
	}
	if s.hicon != 0 {
		procDestroyIcon.Call(uintptr(s.hicon))
		s.hicon = 0
	}
	hwnd := s.hwnd
	s.mu.Unlock()

	if !opened {
		return nil
	}
	if hwnd != 0 {
		procPostMessage.Call(uintptr(hwnd), WM_CLOSE, 0, 0)
	}

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		errs = append(errs, errors.New("tray message loop did not stop"))
	}
	logrus.Infof("Tray: icon removed")
	return errors.Join(errs...)
}

// Package tray shows the notification-area icon, its tooltip and the
// one-item context menu, and reports what the user picked.
//
// Windows uses a native Shell_NotifyIcon surface (surface_windows.go); other
// platforms go through getlantern/systray (surface_systray.go). Either way
// the caller sees a Surface and a channel of Events.
package tray

import "errors"

// ExitItemID identifies the only menu entry.
const ExitItemID = 1

// DefaultTooltip is shown when no tooltip is configured.
const DefaultTooltip = "Caffeine"

var (
	// ErrClosed is returned when a Surface is used after Close.
	ErrClosed = errors.New("tray surface closed")

	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("tray surface already open")
)

// MenuItem is one context-menu command.
type MenuItem struct {
	ID    int
	Title string
}

// Menu is the ordered list of context-menu commands.
type Menu []MenuItem

// DefaultMenu returns the menu with the single "Exit" command.
func DefaultMenu() Menu {
	return Menu{{ID: ExitItemID, Title: "Exit"}}
}

// At anchors the menu at p.
func (m Menu) At(p Point) Popup {
	items := make([]MenuItem, len(m))
	copy(items, m)
	return Popup{At: p, Items: items}
}

// Point is a screen position in pixels.
type Point struct {
	X, Y int
}

// Popup is a menu about to be shown at a screen position.
type Popup struct {
	At    Point
	Items []MenuItem
}

// EventKind tells what happened on the surface.
type EventKind int

const (
	// EventMenuSelected carries the chosen MenuItem ID.
	EventMenuSelected EventKind = iota + 1

	// EventDestroyed means the platform tore the surface down underneath us.
	EventDestroyed
)

func (k EventKind) String() string {
	switch k {
	case EventMenuSelected:
		return "menu-selected"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Event is delivered on Surface.Events.
type Event struct {
	Kind   EventKind
	ItemID int
}

// Options describes what Open puts on screen.
type Options struct {
	Tooltip string
	Menu    Menu
}

func (o Options) withDefaults() Options {
	if o.Tooltip == "" {
		o.Tooltip = DefaultTooltip
	}
	if len(o.Menu) == 0 {
		o.Menu = DefaultMenu()
	}
	return o
}

// Surface owns the tray icon. Open creates it, Close removes it; after
// Close the icon handle is never touched again.
type Surface interface {
	// Open shows the icon with its tooltip and menu.
	Open(opts Options) error

	// SetTooltip replaces the tooltip text.
	SetTooltip(text string) error

	// Events delivers menu selections and destroy notifications.
	Events() <-chan Event

	// Close removes the icon and frees it. Safe to call more than once.
	Close() error
}

// New returns the platform Surface. It must be opened from inside Main.
func New() Surface {
	return newSurface()
}

// Main runs the platform UI loop, if the platform needs one on the main
// goroutine, and calls body once the tray can be used. It returns body's
// error after the loop has ended.
func Main(body func() error) error {
	return runMain(body)
}

// deliver queues ev without blocking the UI thread. The buffer is larger
// than anything a user can click before the session drains it.
func deliver(ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

const eventBuffer = 8

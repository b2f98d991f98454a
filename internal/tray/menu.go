package tray

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// menuHost is the platform side of a right-click.
type menuHost interface {
	// Foreground brings the window that owns the menu to the front, so the
	// menu closes when the user clicks elsewhere.
	Foreground() error

	// Track shows p and blocks until the user picks an item (ok) or
	// dismisses the menu.
	Track(p Popup) (id int, ok bool, err error)
}

// showContextMenu runs one right-click at point at: foreground first, then
// the menu anchored at the pointer.
func showContextMenu(host menuHost, menu Menu, at Point) (Event, bool, error) {
	if err := host.Foreground(); err != nil {
		logrus.Debugf("Tray: failed to bring window to foreground: %v", err)
	}

	id, ok, err := host.Track(menu.At(at))
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to show context menu: %w", err)
	}
	if !ok {
		return Event{}, false, nil
	}
	return Event{Kind: EventMenuSelected, ItemID: id}, true, nil
}

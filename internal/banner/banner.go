// Package banner renders the console edition's startup art and the coffee
// meter that ticks along with each refresh.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cup is the startup logo, one line per entry.
var Cup = []string{
	`           ((`,
	`            ))     ((`,
	`         _______)___`,
	`        /            \`,
	`       |   _     _    |`,
	`       |  |_|   |_|   |`,
	`        \            /`,
	`         -------------`,
	`          \         /`,
	`           \_______/`,
}

const (
	Title = "Caffeine console edition - keeping your PC awake."
	Hint  = "Press Ctrl+C to exit."
)

var meterFrames = [...]string{
	"[█         ] Brewing...   ",
	"[███       ] Percolating  ",
	"[█████     ] Smells good  ",
	"[███████   ] Almost there ",
	"[█████████ ] Caffeine!    ",
}

var (
	cupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("130"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Faint(true)
	meterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("136"))
)

// Print writes the logo followed by the title and exit hint.
func Print(w io.Writer) error {
	var b strings.Builder
	b.WriteString(cupStyle.Render(strings.Join(Cup, "\n")))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render(Title))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(Hint))
	b.WriteString("\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Meter returns the meter frame for tick, prefixed with a carriage return
// so consecutive frames overwrite each other on a terminal.
func Meter(tick int) string {
	n := len(meterFrames)
	return "\r" + meterStyle.Render(meterFrames[(tick%n+n)%n])
}

// WriteMeter redraws the meter line for tick.
func WriteMeter(w io.Writer, tick int) error {
	_, err := fmt.Fprint(w, Meter(tick))
	return err
}

// Package autostart provides auto-start functionality.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"howett.net/plist"
)

const (
	launchAgentLabel = "com.caffeine.agent"
	desktopFileName  = "caffeine.desktop"
)

// launchAgent is the macOS LaunchAgent property list
type launchAgent struct {
	Label            string   `plist:"Label"`
	ProgramArguments []string `plist:"ProgramArguments"`
	RunAtLoad        bool     `plist:"RunAtLoad"`
	KeepAlive        bool     `plist:"KeepAlive"`
}

// Enable starts the current executable with args on login
func Enable(args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		path, err := launchAgentPath()
		if err != nil {
			return err
		}
		return writeLaunchAgent(path, execPath, args)
	case "windows":
		return enableWindows(execPath, args)
	case "linux", "freebsd", "openbsd", "netbsd":
		path, err := desktopEntryPath()
		if err != nil {
			return err
		}
		return writeDesktopEntry(path, execPath, args)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		path, err := launchAgentPath()
		if err != nil {
			return err
		}
		return removeIfExists(path)
	case "windows":
		return disableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		path, err := desktopEntryPath()
		if err != nil {
			return err
		}
		return removeIfExists(path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	var path string
	var err error

	switch runtime.GOOS {
	case "darwin":
		path, err = launchAgentPath()
	case "windows":
		return isEnabledWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		path, err = desktopEntryPath()
	default:
		return false
	}
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// macOS implementation
func launchAgentPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", launchAgentLabel+".plist"), nil
}

func writeLaunchAgent(path, execPath string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := plist.NewEncoderForFormat(f, plist.XMLFormat)
	enc.Indent("\t")
	return enc.Encode(launchAgent{
		Label:            launchAgentLabel,
		ProgramArguments: append([]string{execPath}, args...),
		RunAtLoad:        true,
		KeepAlive:        false,
	})
}

// XDG implementation
func desktopEntryPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "autostart", desktopFileName), nil
}

func writeDesktopEntry(path, execPath string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(desktopEntry(execPath, args)), 0644)
}

func desktopEntry(execPath string, args []string) string {
	fields := make([]string, 0, len(args)+1)
	for _, a := range append([]string{execPath}, args...) {
		fields = append(fields, desktopQuote(a))
	}

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=Caffeine\n")
	b.WriteString("Comment=Keep the computer awake\n")
	b.WriteString("Exec=" + strings.Join(fields, " ") + "\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return b.String()
}

// desktopQuote quotes an Exec argument the way Desktop Entry files expect.
func desktopQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\><~|&;$*?#()`") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

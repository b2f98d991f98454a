package awake

import "fmt"

// withUIPIHint explains a rejected key injection. Windows drops input sent
// by an unelevated process while an elevated window has focus, and
// SendInput gives no other sign of it.
func withUIPIHint(err error, elevated bool) error {
	if err == nil || elevated {
		return err
	}
	return fmt.Errorf("%w (the focused window may be elevated; run caffeine elevated or pass --no-key)", err)
}

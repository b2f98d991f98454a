package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"caffeine/internal/banner"
)

// ConsoleOptions configures RunConsole.
type ConsoleOptions struct {
	// Out receives the banner and the meter. Defaults to os.Stdout.
	Out io.Writer

	// Clock defaults to SystemClock.
	Clock Clock
}

// RunConsole prints the banner, then runs action and waits one Period,
// forever. It only returns when ctx ends, which is how a hold deadline is
// expressed; with context.Background it never returns and the process is
// stopped from outside.
func RunConsole(ctx context.Context, action Action, opts ConsoleOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}

	if err := banner.Print(out); err != nil {
		logrus.Debugf("Console: failed to write banner: %v", err)
	}

	for tick := 0; ; tick++ {
		action.Run()
		if err := banner.WriteMeter(out, tick); err != nil {
			logrus.Debugf("Console: failed to write meter: %v", err)
		}

		select {
		case <-clock.After(Period):
		case <-ctx.Done():
			fmt.Fprintln(out)
			if r, ok := action.(Releaser); ok {
				r.Release()
			}
			logrus.Infof("Console: stopped after %d refreshes", tick+1)
			return nil
		}
	}
}

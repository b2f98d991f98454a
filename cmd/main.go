// Caffeine - keeps the computer awake
// A console and tray utility that refreshes the OS idle timers every 59 seconds
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"caffeine/internal/autostart"
	"caffeine/internal/awake"
	"caffeine/internal/config"
	"caffeine/internal/osutils"
	"caffeine/internal/scheduler"
	"caffeine/internal/tray"
)

var version = "1.0.0"

// runFlags are shared by the tray (root) command and the console command
type runFlags struct {
	noKey   bool
	display bool
	system  bool
	hold    time.Duration
}

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:           "caffeine",
		Short:         "Keep the computer awake from the notification area",
		Long:          "Caffeine keeps the computer and display awake while it runs.\nWithout a subcommand it shows a tray icon whose menu has a single Exit item.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTray(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is the per-user config directory)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	addRunFlags(root, flags)

	root.AddCommand(newConsoleCmd(), newConfigCmd(), newAutostartCmd(), newVersionCmd())
	return root
}

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().BoolVar(&flags.noKey, "no-key", false, "do not tap F15 on every refresh")
	cmd.Flags().BoolVar(&flags.display, "display", false, "keep the display on (with --system, both)")
	cmd.Flags().BoolVar(&flags.system, "system", false, "keep the system from sleeping (with --display, both)")
	cmd.Flags().DurationVar(&flags.hold, "for", 0, "stop after this long, e.g. 90m (default: until stopped)")
}

func newConsoleCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Keep the computer awake from a console window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, flags)
		},
	}
	addRunFlags(cmd, flags)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgMgr, err := config.NewManager(configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfgMgr.Path()); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgMgr.Path())
			}
			if err := cfgMgr.Set(*config.DefaultConfig()); err != nil {
				return err
			}
			if err := cfgMgr.Save(); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgMgr.Path())
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print where the configuration file is read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgMgr, err := config.NewManager(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfgMgr.Path())
			return nil
		},
	}

	cmd.AddCommand(initCmd, pathCmd)
	return cmd
}

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the tray edition on login",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable [flags to start with]",
			Short: "Start caffeine on login",
			Args:  cobra.ArbitraryArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := autostart.Enable(args); err != nil {
					return fmt.Errorf("failed to enable autostart: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting caffeine on login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := autostart.Disable(); err != nil {
					return fmt.Errorf("failed to disable autostart: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether caffeine starts on login",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				if autostart.IsEnabled() {
					fmt.Fprintln(cmd.OutOrStdout(), "enabled")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "disabled")
				}
			},
		},
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "caffeine version %s\n", version)
		},
	}
}

// loadConfig reads the config file. A broken file is logged and the
// defaults are used, so the program still keeps the computer awake.
func loadConfig() (*config.Manager, error) {
	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfgMgr.Load(); err != nil {
		logrus.Warnf("Config: failed to load %s, using defaults: %v", cfgMgr.Path(), err)
	}
	return cfgMgr, nil
}

// awakeOptions merges the config with the command line. --display and
// --system replace the configured selection when either is given.
func awakeOptions(cmd *cobra.Command, cfg config.Config, flags *runFlags) (awake.Options, error) {
	opts := awake.Options{
		Request: awake.Request{
			System:  cfg.Awake.System,
			Display: cfg.Awake.Display,
		},
		KeyFallback: cfg.Awake.KeyFallback && !flags.noKey,
	}

	if cmd.Flags().Changed("display") || cmd.Flags().Changed("system") {
		opts.Request = awake.Request{System: flags.system, Display: flags.display}
	}
	if opts.Request.Empty() {
		return opts, errors.New("nothing to keep awake: enable --system, --display or both")
	}
	if flags.hold < 0 {
		return opts, fmt.Errorf("invalid --for duration %s", flags.hold)
	}
	return opts, nil
}

func setLogLevel(level string) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func holdContext(parent context.Context, hold time.Duration) (context.Context, context.CancelFunc, time.Time) {
	if hold <= 0 {
		ctx, cancel := context.WithCancel(parent)
		return ctx, cancel, time.Time{}
	}
	deadline := time.Now().Add(hold)
	ctx, cancel := context.WithDeadline(parent, deadline)
	return ctx, cancel, deadline
}

func warnIfKeysBlocked(opts awake.Options) {
	if opts.KeyFallback && !osutils.CanInjectKeys() {
		logrus.Warn("Input: cannot write to /dev/uinput, the F15 fallback will fail (add yourself to the input group or pass --no-key)")
	}
}

func runConsole(cmd *cobra.Command, flags *runFlags) error {
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfgMgr, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := awakeOptions(cmd, cfgMgr.Get(), flags)
	if err != nil {
		return err
	}
	warnIfKeysBlocked(opts)

	// Ctrl+C ends the process the default way; only --for ends the loop
	ctx, cancel, _ := holdContext(context.Background(), flags.hold)
	defer cancel()

	action := awake.New(opts)
	return scheduler.RunConsole(ctx, action, scheduler.ConsoleOptions{Out: cmd.OutOrStdout()})
}

func runTray(cmd *cobra.Command, flags *runFlags) error {
	cfgMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := cfgMgr.Get()

	logPath := cfgMgr.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			defer f.Close()
			logrus.SetOutput(f)
		}
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	setLogLevel(cfg.Log.Level)

	opts, err := awakeOptions(cmd, cfg, flags)
	if err != nil {
		logrus.Errorf("Caffeine: %v", err)
		return err
	}
	warnIfKeysBlocked(opts)

	logrus.Infof("Caffeine: version %s starting (system=%v display=%v key=%v)",
		version, opts.Request.System, opts.Request.Display, opts.KeyFallback)

	action := awake.New(opts)
	keyFlagSet := flags.noKey
	cfgMgr.RegisterChangeCallback(func(c config.Config) {
		setLogLevel(c.Log.Level)
		if !keyFlagSet {
			action.SetKeyFallback(c.Awake.KeyFallback)
		}
		logrus.Infof("Config: reloaded (key=%v level=%s)", action.KeyFallback(), c.Log.Level)
	})
	if err := cfgMgr.Watch(); err != nil {
		logrus.Warnf("Config: hot reload disabled: %v", err)
	}
	defer cfgMgr.StopWatching()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel, deadline := holdContext(sigCtx, flags.hold)
	defer cancel()

	session := scheduler.NewSession(tray.New(), action, scheduler.SessionOptions{
		Tooltip:  cfg.Tray.Tooltip,
		Deadline: deadline,
	})

	if err := tray.Main(func() error { return session.Run(ctx) }); err != nil {
		logrus.Errorf("Caffeine: %v", err)
		return err
	}
	logrus.Info("Caffeine: exited")
	return nil
}

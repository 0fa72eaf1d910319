package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
)

func newDaemonCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the reconciliation loop in the foreground",
		Long: `Runs the enforcement loop: rewrites the hosts block and drives the
displays every reconcile interval and whenever the rule config changes.
Stops on SIGINT or SIGTERM. Use "focus start" to run it in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, flags)
		},
	}
}

func runDaemon(cmd *cobra.Command, flags *rootFlags) error {
	a, err := loadApp(cmd, flags)
	if err != nil {
		return err
	}

	logger := infra.NewLogger(a.settings.LogPath, a.settings.Debug)
	defer func() { _ = logger.Sync() }()
	a.logger = logger

	d := domain.Daemon{
		PID:        os.Getpid(),
		Role:       domain.RoleWatcher,
		StartedAt:  time.Now(),
		AppVersion: Version,
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	var changes <-chan struct{}
	configWatcher, err := infra.NewConfigWatcher(a.settings.ConfigPath, logger)
	if err != nil {
		logger.Warn("config watch disabled, relying on the timer", zap.Error(err))
	} else {
		go configWatcher.Run(ctx)
		changes = configWatcher.Changes()
	}

	watcher := daemon.NewWatcher(
		daemon.WatcherConfig{
			ReconcileInterval: a.settings.ReconcileInterval,
			HeartbeatInterval: a.settings.HeartbeatInterval,
			HostsPath:         a.settings.HostsPath,
		},
		a.reconciler(),
		a.registry(),
		infra.NewHostsBackup(a.settings.DataDir, logger),
		changes,
		d,
		logger,
	)

	logger.Info("starting focus daemon",
		zap.String("version", Version),
		zap.String("mode", string(a.mode.Mode)),
		zap.String("config", a.settings.ConfigPath),
		zap.String("hosts", a.settings.HostsPath))

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newStartCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			registry := a.registry()
			if entry, ok := liveDaemon(registry); ok {
				fmt.Fprintf(out, "focus daemon is already running (PID %d)\n", entry.PID)
				return nil
			}

			daemonArgs := []string{"--config", a.settings.ConfigPath, "--hosts", a.settings.HostsPath}
			if flags.settingsFile != "" {
				daemonArgs = append(daemonArgs, "--settings", flags.settingsFile)
			}
			if a.settings.Debug {
				daemonArgs = append(daemonArgs, "--debug")
			}

			pid, err := daemon.StartDaemon(daemonArgs...)
			if err != nil {
				return err
			}

			// Wait a moment for the daemon to register
			time.Sleep(500 * time.Millisecond)

			fmt.Fprintln(out, "\n=== focus Started ===")
			fmt.Fprintf(out, "Mode: %s\n", a.mode.Mode)
			fmt.Fprintf(out, "PID: %d\n", pid)
			fmt.Fprintf(out, "Config: %s\n", a.settings.ConfigPath)
			fmt.Fprintf(out, "Log: %s\n", a.settings.LogPath)
			if !a.mode.IsRoot {
				fmt.Fprintln(out, "\nNot running as root: hosts file updates will fail.")
				fmt.Fprintln(out, "Run 'sudo focus start' to block sites.")
			}
			fmt.Fprintln(out, "=====================")
			return nil
		},
	}
}

// liveDaemon returns the registry entry of a running daemon. A registry that
// is unreadable or vanishes between the checks counts as no daemon.
func liveDaemon(registry domain.DaemonRegistry) (*domain.RegistryEntry, bool) {
	alive, err := registry.IsAlive()
	if err != nil || !alive {
		return nil, false
	}
	entry, err := registry.GetAll()
	if err != nil || entry == nil {
		return nil, false
	}
	return entry, true
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon runs and what it enforces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			registry := a.registry()

			fmt.Fprintln(out, "\n=== focus Status ===")

			entry, err := registry.GetAll()
			if err != nil || entry == nil {
				fmt.Fprintln(out, "Status: NOT RUNNING")
				fmt.Fprintln(out, "\nRun 'focus start' to enable blocking.")
				return nil
			}

			alive, _ := registry.IsAlive()
			if alive {
				fmt.Fprintf(out, "Status: RUNNING (PID %d)\n", entry.PID)
			} else {
				fmt.Fprintln(out, "Status: NOT RUNNING (stale registration)")
			}
			fmt.Fprintf(out, "Execution mode: %s\n", entry.Mode)
			if entry.AppVersion != "" {
				fmt.Fprintf(out, "Version: %s\n", entry.AppVersion)
			}

			if entry.LastHeartbeat > 0 {
				lastBeat := time.Unix(entry.LastHeartbeat, 0)
				fmt.Fprintf(out, "Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
			}

			fmt.Fprintf(out, "Grayscale: %s\n", entry.DisplayState)
			fmt.Fprintln(out, "\nBlocked now:")
			if len(entry.BlockedDomains) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, d := range entry.BlockedDomains {
				fmt.Fprintf(out, "  - %s\n", d)
			}

			if info, err := infra.NewHostsBackup(a.settings.DataDir, a.logger).Info(); err == nil {
				fmt.Fprintf(out, "\nOriginal hosts file: %s\n", info.BackupPath)
			}
			fmt.Fprintln(out, "====================")
			return nil
		},
	}
}

func newSyncCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle now",
		Long: `Applies the current rules once without waiting for the daemon:
rewrites the hosts block and sets the displays.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}

			result, err := a.reconciler().Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Blocked domains: %d\n", len(result.BlockedDomains))
			for _, d := range result.BlockedDomains {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			switch {
			case result.HostsErr != nil:
				fmt.Fprintf(out, "Hosts file: FAILED (%v)\n", result.HostsErr)
			case result.HostsChanged:
				fmt.Fprintln(out, "Hosts file: updated")
			default:
				fmt.Fprintln(out, "Hosts file: unchanged")
			}
			if result.DisplayErr != nil {
				fmt.Fprintf(out, "Display: FAILED (%v)\n", result.DisplayErr)
			} else {
				fmt.Fprintf(out, "Display: %s\n", domain.DisplayStateOf(result.DisplayTarget))
			}
			return nil
		},
	}
}

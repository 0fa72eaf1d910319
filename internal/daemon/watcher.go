// Package daemon implements the long-running reconciliation daemon.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
)

// HostsBackup keeps a copy of the hosts file from before the first managed write.
type HostsBackup interface {
	EnsureBackup(hostsPath string) (taken bool, err error)
}

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	ReconcileInterval time.Duration // How often to run a cycle (default 10s)
	HeartbeatInterval time.Duration // How often to update heartbeat
	HostsPath         string        // Backed up once on startup
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconcileInterval: infra.DefaultReconcileInterval,
		HeartbeatInterval: infra.DefaultHeartbeatInterval,
		HostsPath:         infra.DefaultHostsPath,
	}
}

// Watcher is the enforcement daemon.
// It reconciles the hosts file and displays on a schedule and whenever
// the rule config changes, and reports the outcome to the registry.
type Watcher struct {
	config     WatcherConfig
	reconciler domain.Reconciler
	registry   domain.DaemonRegistry
	backup     HostsBackup
	changes    <-chan struct{}
	daemon     domain.Daemon
	logger     *zap.Logger

	summary domain.CycleSummary
}

// NewWatcher creates a new watcher daemon. backup and changes may be nil.
func NewWatcher(
	config WatcherConfig,
	reconciler domain.Reconciler,
	registry domain.DaemonRegistry,
	backup HostsBackup,
	changes <-chan struct{},
	daemon domain.Daemon,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:     config,
		reconciler: reconciler,
		registry:   registry,
		backup:     backup,
		changes:    changes,
		daemon:     daemon,
		logger:     logger,
		summary:    domain.CycleSummary{BlockedDomains: []string{}, DisplayState: domain.DisplayUnknown},
	}
}

// Run starts the watcher daemon loop.
// This blocks until context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.registry.Register(w.daemon); err != nil {
		w.logger.Error("failed to register watcher", zap.Error(err))
		return err
	}

	w.logger.Info("watcher daemon started",
		zap.Int("pid", w.daemon.PID),
		zap.Duration("interval", w.config.ReconcileInterval))

	w.ensureHostsBackup()

	// Run a cycle immediately on startup
	w.runCycle(ctx, "startup")
	w.heartbeat()

	reconcileTicker := time.NewTicker(w.config.ReconcileInterval)
	heartbeatTicker := time.NewTicker(w.config.HeartbeatInterval)
	defer func() {
		reconcileTicker.Stop()
		heartbeatTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			return ctx.Err()

		case <-reconcileTicker.C:
			w.runCycle(ctx, "tick")

		case <-w.changes:
			w.runCycle(ctx, "config changed")

		case <-heartbeatTicker.C:
			w.heartbeat()
		}
	}
}

// runCycle executes one reconciliation and remembers its outcome.
func (w *Watcher) runCycle(ctx context.Context, trigger string) {
	result, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		w.logger.Error("reconcile failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}

	state := domain.DisplayStateOf(result.DisplayTarget)
	if result.DisplayErr != nil {
		state = domain.DisplayUnknown
	}
	w.summary = domain.CycleSummary{BlockedDomains: result.BlockedDomains, DisplayState: state}

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.Strings("blocked", result.BlockedDomains),
		zap.Bool("hosts_changed", result.HostsChanged),
		zap.Bool("grayscale", result.DisplayTarget),
		zap.Bool("display_applied", result.DisplayApplied),
		zap.Int64("duration_ms", result.DurationMs),
	}
	if result.HostsChanged || result.DisplayApplied {
		w.logger.Info("reconcile completed", fields...)
	} else {
		w.logger.Debug("reconcile completed", fields...)
	}
}

func (w *Watcher) heartbeat() {
	if err := w.registry.UpdateHeartbeat(w.summary); err != nil {
		w.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

// ensureHostsBackup saves the pristine hosts file once.
func (w *Watcher) ensureHostsBackup() {
	if w.backup == nil || w.config.HostsPath == "" {
		return
	}

	taken, err := w.backup.EnsureBackup(w.config.HostsPath)
	if err != nil {
		w.logger.Warn("hosts backup failed", zap.Error(err))
		return
	}
	if taken {
		w.logger.Info("original hosts file saved", zap.String("path", w.config.HostsPath))
	}
}

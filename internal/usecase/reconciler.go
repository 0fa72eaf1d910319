// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
)

// ReconcilerImpl implements domain.Reconciler.
type ReconcilerImpl struct {
	configStore domain.ConfigStore
	hosts       *HostsReconciler
	display     *DisplayReconciler
	now         func() time.Time
	logger      *zap.Logger
}

// NewReconciler creates a reconciler for the hosts file and displays.
func NewReconciler(
	cs domain.ConfigStore,
	hosts domain.HostsFile,
	display domain.DisplayController,
	logger *zap.Logger,
) *ReconcilerImpl {
	return NewReconcilerWithClock(cs, hosts, display, time.Now, logger)
}

// NewReconcilerWithClock creates a reconciler with a custom clock (for testing).
func NewReconcilerWithClock(
	cs domain.ConfigStore,
	hosts domain.HostsFile,
	display domain.DisplayController,
	now func() time.Time,
	logger *zap.Logger,
) *ReconcilerImpl {
	return &ReconcilerImpl{
		configStore: cs,
		hosts:       NewHostsReconciler(hosts, logger),
		display:     NewDisplayReconciler(display, logger),
		now:         now,
		logger:      logger,
	}
}

// Reconcile runs one cycle: load config, rewrite the hosts block, drive the
// displays. A config failure skips the cycle. Hosts and display failures are
// isolated from each other and reported in the result.
func (r *ReconcilerImpl) Reconcile(ctx context.Context) (*domain.ReconcileResult, error) {
	start := r.now()

	cfg, err := r.configStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	result := &domain.ReconcileResult{
		BlockedDomains: policy.ComputeBlockedDomains(cfg.Rules, start),
		DisplayTarget:  policy.ComputeDisplayTarget(cfg, start),
		ExecutedAt:     start,
	}

	result.HostsChanged, result.HostsErr = r.hosts.Reconcile(ctx, result.BlockedDomains)
	if result.HostsErr != nil {
		r.logger.Warn("hosts reconcile failed", zap.Error(result.HostsErr))
	}

	result.DisplayApplied, result.DisplayErr = r.display.Reconcile(ctx, result.DisplayTarget)
	if result.DisplayErr != nil {
		r.logger.Warn("display reconcile failed, will retry next cycle", zap.Error(result.DisplayErr))
	}

	result.DurationMs = r.now().Sub(start).Milliseconds()
	return result, nil
}

// DisplayState returns the last applied display state.
func (r *ReconcilerImpl) DisplayState() domain.DisplayState {
	return r.display.Last()
}

// ReconcileHosts rewrites only the hosts block from the current config.
// One-shot commands use it right after changing rules.
func (r *ReconcilerImpl) ReconcileHosts(ctx context.Context) (bool, error) {
	cfg, err := r.configStore.Load()
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}
	return r.hosts.Reconcile(ctx, policy.ComputeBlockedDomains(cfg.Rules, r.now()))
}

// Ensure ReconcilerImpl implements domain.Reconciler.
var _ domain.Reconciler = (*ReconcilerImpl)(nil)

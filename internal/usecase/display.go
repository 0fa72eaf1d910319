package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
)

// ListDisplaysTimeout bounds display discovery so a hung X server cannot
// stall a reconcile cycle.
var ListDisplaysTimeout = 5 * time.Second

// DisplayReconciler drives the display color matrix and remembers the last
// state it applied, so the external command only runs on transitions.
// Not safe for concurrent use; the daemon loop is its only caller.
type DisplayReconciler struct {
	controller domain.DisplayController
	last       domain.DisplayState
	logger     *zap.Logger
}

// NewDisplayReconciler creates a display reconciler in the unknown state.
func NewDisplayReconciler(controller domain.DisplayController, logger *zap.Logger) *DisplayReconciler {
	return &DisplayReconciler{
		controller: controller,
		last:       domain.DisplayUnknown,
		logger:     logger,
	}
}

// Last returns the last successfully applied state.
func (d *DisplayReconciler) Last() domain.DisplayState {
	return d.last
}

// Reset forgets the applied state; the next Reconcile applies unconditionally.
func (d *DisplayReconciler) Reset() {
	d.last = domain.DisplayUnknown
}

// Reconcile applies target if it differs from the last applied state.
// It reports whether the command was issued. Any failure resets the state
// to unknown so the next cycle retries.
func (d *DisplayReconciler) Reconcile(ctx context.Context, target bool) (bool, error) {
	action := policy.ReconcileDisplay(target, d.last)
	if !action.Apply {
		return false, nil
	}

	if err := ApplyGrayscale(ctx, d.controller, action.Grayscale); err != nil {
		d.Reset()
		return true, err
	}

	d.last = domain.DisplayStateOf(action.Grayscale)
	d.logger.Info("display state applied", zap.String("state", d.last.String()))
	return true, nil
}

// ApplyGrayscale sets every connected display. A failing display does not
// stop the others; all failures are returned together.
func ApplyGrayscale(ctx context.Context, controller domain.DisplayController, enabled bool) error {
	listCtx, cancel := context.WithTimeout(ctx, ListDisplaysTimeout)
	displays, err := controller.ListDisplays(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: list displays: %v", domain.ErrExternalCommand, err)
	}
	var errs error
	for _, id := range displays {
		if err := controller.SetGrayscale(ctx, id, enabled); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("display %s: %w", id, err))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCommand, errs)
	}
	return nil
}

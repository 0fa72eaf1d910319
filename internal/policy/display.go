package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ComputeDisplayTarget reports whether the displays should be grayscale at now.
// The manual override wins; otherwise any display rule in its window turns
// grayscale on. The enabled flag is stored but not consulted.
func ComputeDisplayTarget(cfg domain.Config, now time.Time) bool {
	if cfg.ManualDisplayOverride {
		return true
	}
	for _, rule := range cfg.DisplayRules {
		if InWindow(now, rule.StartTime, rule.EndTime) {
			return true
		}
	}
	return false
}

// ReconcileDisplay decides whether the target must be applied given the
// last state that was successfully applied.
func ReconcileDisplay(target bool, last domain.DisplayState) domain.DisplayAction {
	if last == domain.DisplayUnknown || last != domain.DisplayStateOf(target) {
		return domain.DisplayAction{Apply: true, Grayscale: target}
	}
	return domain.DisplayAction{}
}

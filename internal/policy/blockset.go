package policy

import (
	"sort"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ComputeBlockedDomains returns the sorted, deduplicated domains that must be
// blocked at now: inside a rule's window and not under an active exception.
// The hosts merge relies on the stable order for change detection.
func ComputeBlockedDomains(rules []domain.DomainRule, now time.Time) []string {
	seen := make(map[string]struct{}, len(rules))
	blocked := make([]string, 0, len(rules))

	for _, rule := range rules {
		if !InWindow(now, rule.StartTime, rule.EndTime) {
			continue
		}
		if IsSuspended(rule.ExceptionUntil, now) {
			continue
		}
		if _, dup := seen[rule.Domain]; dup {
			continue
		}
		seen[rule.Domain] = struct{}{}
		blocked = append(blocked, rule.Domain)
	}

	sort.Strings(blocked)
	return blocked
}

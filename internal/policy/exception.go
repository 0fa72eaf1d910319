package policy

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// IsSuspended reports whether an exception is still running at now.
// Expired exceptions need no cleanup; the block simply applies again.
func IsSuspended(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}

// ConsumeException grants one exception for domainName lasting d.
//
// The daily counter resets lazily when the date of now differs from the last
// grant. All rules for the domain are suspended together and the grant costs a
// single quota unit. It returns the updated config and the grants left today.
// On error the input config is returned unchanged.
func ConsumeException(cfg domain.Config, domainName string, d time.Duration, now time.Time) (domain.Config, uint, error) {
	if d <= 0 {
		return cfg, 0, fmt.Errorf("%w: exception duration must be positive, got %s", domain.ErrValidation, d)
	}

	out := cfg.Clone()

	today := now.Format(domain.DateLayout)
	if out.LastExceptionDate != today {
		out.ExceptionsUsedToday = 0
		out.LastExceptionDate = today
	}

	if out.ExceptionsUsedToday >= out.ExceptionDailyLimit {
		return cfg, 0, fmt.Errorf("%w (%d per day)", domain.ErrQuotaExceeded, out.ExceptionDailyLimit)
	}

	expiry := now.Add(d)
	matched := 0
	for i := range out.Rules {
		if out.Rules[i].Domain == domainName {
			until := expiry
			out.Rules[i].ExceptionUntil = &until
			matched++
		}
	}
	if matched == 0 {
		return cfg, 0, fmt.Errorf("%w: %s", domain.ErrNoSuchRule, domainName)
	}

	out.ExceptionsUsedToday++
	return out, out.ExceptionDailyLimit - out.ExceptionsUsedToday, nil
}

// RemainingExceptions returns how many grants are left on now's date,
// applying the same lazy reset as ConsumeException without mutating cfg.
func RemainingExceptions(cfg domain.Config, now time.Time) uint {
	used := cfg.ExceptionsUsedToday
	if cfg.LastExceptionDate != now.Format(domain.DateLayout) {
		used = 0
	}
	if used >= cfg.ExceptionDailyLimit {
		return 0
	}
	return cfg.ExceptionDailyLimit - used
}

package usecase

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
)

// MaxExceptionMinutes is the longest exception a time.Duration can express.
const MaxExceptionMinutes = math.MaxInt64 / int64(time.Minute)

// ExceptionOutcome reports a successful exception grant.
type ExceptionOutcome struct {
	Domain    string
	ExpiresAt time.Time
	Remaining uint
}

// RuleService implements the rule-editing commands. Every command validates
// its input first and changes the stored config in a single locked update,
// so a failed command never persists anything.
type RuleService struct {
	store  domain.ConfigStore
	ledger domain.ExceptionLedger
	now    func() time.Time
	logger *zap.Logger
}

// NewRuleService creates a rule service. ledger may be nil.
func NewRuleService(store domain.ConfigStore, ledger domain.ExceptionLedger, logger *zap.Logger) *RuleService {
	return NewRuleServiceWithClock(store, ledger, time.Now, logger)
}

// NewRuleServiceWithClock creates a rule service with a custom clock (for testing).
func NewRuleServiceWithClock(store domain.ConfigStore, ledger domain.ExceptionLedger, now func() time.Time, logger *zap.Logger) *RuleService {
	return &RuleService{store: store, ledger: ledger, now: now, logger: logger}
}

// Config returns the stored config.
func (s *RuleService) Config() (domain.Config, error) {
	return s.store.Load()
}

// AddRule adds a block window for a domain. Existing rules for the same
// domain are kept; each window is independent.
func (s *RuleService) AddRule(rawDomain, start, end string) (domain.DomainRule, error) {
	name, err := policy.NormalizeDomain(rawDomain)
	if err != nil {
		return domain.DomainRule{}, err
	}
	startTime, err := domain.ParseClockTime(start)
	if err != nil {
		return domain.DomainRule{}, err
	}
	endTime, err := domain.ParseClockTime(end)
	if err != nil {
		return domain.DomainRule{}, err
	}

	rule := domain.DomainRule{Domain: name, StartTime: startTime, EndTime: endTime}
	err = s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		cfg.Rules = append(cfg.Rules, rule)
		return cfg, nil
	})
	if err != nil {
		return domain.DomainRule{}, err
	}

	s.logger.Info("rule added",
		zap.String("domain", name),
		zap.Stringer("start", startTime),
		zap.Stringer("end", endTime))
	return rule, nil
}

// RemoveRule deletes every rule for a domain and returns how many were removed.
func (s *RuleService) RemoveRule(rawDomain string) (string, int, error) {
	name, err := policy.NormalizeDomain(rawDomain)
	if err != nil {
		return "", 0, err
	}

	removed := 0
	err = s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		kept := make([]domain.DomainRule, 0, len(cfg.Rules))
		for _, r := range cfg.Rules {
			if r.Domain == name {
				continue
			}
			kept = append(kept, r)
		}
		removed = len(cfg.Rules) - len(kept)
		if removed == 0 {
			return cfg, fmt.Errorf("%w: %s", domain.ErrNoSuchRule, name)
		}
		cfg.Rules = kept
		return cfg, nil
	})
	if err != nil {
		return name, 0, err
	}

	s.logger.Info("rules removed", zap.String("domain", name), zap.Int("count", removed))
	return name, removed, nil
}

// GrantException suspends every rule of a domain for the given minutes,
// consuming one unit of the daily quota.
func (s *RuleService) GrantException(rawDomain string, minutes int) (ExceptionOutcome, error) {
	name, err := policy.NormalizeDomain(rawDomain)
	if err != nil {
		return ExceptionOutcome{}, err
	}
	if minutes <= 0 {
		return ExceptionOutcome{}, fmt.Errorf("%w: minutes must be positive, got %d", domain.ErrValidation, minutes)
	}
	if int64(minutes) > MaxExceptionMinutes {
		return ExceptionOutcome{}, fmt.Errorf("%w: minutes must be at most %d, got %d", domain.ErrValidation, MaxExceptionMinutes, minutes)
	}

	now := s.now()
	duration := time.Duration(minutes) * time.Minute

	var outcome ExceptionOutcome
	var grant domain.ExceptionGrant
	err = s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		updated, remaining, err := policy.ConsumeException(cfg, name, duration, now)
		if err != nil {
			return cfg, err
		}
		outcome = ExceptionOutcome{Domain: name, ExpiresAt: now.Add(duration), Remaining: remaining}
		grant = domain.ExceptionGrant{
			Domain:     name,
			GrantedAt:  now,
			ExpiresAt:  outcome.ExpiresAt,
			RulesHit:   countRules(updated.Rules, name),
			UsedToday:  updated.ExceptionsUsedToday,
			DailyLimit: updated.ExceptionDailyLimit,
		}
		return updated, nil
	})
	if err != nil {
		return ExceptionOutcome{}, err
	}

	s.logger.Info("exception granted",
		zap.String("domain", name),
		zap.Time("expires_at", outcome.ExpiresAt),
		zap.Uint("remaining", outcome.Remaining))

	if s.ledger != nil {
		if err := s.ledger.Record(grant); err != nil {
			s.logger.Warn("failed to record exception in ledger", zap.Error(err))
		}
	}
	return outcome, nil
}

// SetExceptionLimit sets the number of exceptions allowed per day.
func (s *RuleService) SetExceptionLimit(limit uint) error {
	return s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		cfg.ExceptionDailyLimit = limit
		return cfg, nil
	})
}

// SetManualDisplay turns the manual grayscale override on or off.
func (s *RuleService) SetManualDisplay(on bool) error {
	return s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		cfg.ManualDisplayOverride = on
		return cfg, nil
	})
}

// AddDisplayRule adds a scheduled grayscale window.
func (s *RuleService) AddDisplayRule(start, end string) (domain.DisplayRule, error) {
	startTime, err := domain.ParseClockTime(start)
	if err != nil {
		return domain.DisplayRule{}, err
	}
	endTime, err := domain.ParseClockTime(end)
	if err != nil {
		return domain.DisplayRule{}, err
	}

	rule := domain.DisplayRule{StartTime: startTime, EndTime: endTime, Enabled: true}
	err = s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		cfg.DisplayRules = append(cfg.DisplayRules, rule)
		return cfg, nil
	})
	if err != nil {
		return domain.DisplayRule{}, err
	}
	return rule, nil
}

// ClearDisplay removes all display rules and the manual override.
func (s *RuleService) ClearDisplay() error {
	return s.store.Update(func(cfg domain.Config) (domain.Config, error) {
		cfg.DisplayRules = []domain.DisplayRule{}
		cfg.ManualDisplayOverride = false
		return cfg, nil
	})
}

// RemainingExceptions returns today's unused exception grants.
func (s *RuleService) RemainingExceptions(cfg domain.Config) uint {
	return policy.RemainingExceptions(cfg, s.now())
}

// Now returns the service clock's current time.
func (s *RuleService) Now() time.Time {
	return s.now()
}

func countRules(rules []domain.DomainRule, name string) int {
	n := 0
	for _, r := range rules {
		if r.Domain == name {
			n++
		}
	}
	return n
}

package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func newTestRuleService(cfg domain.Config, ledger domain.ExceptionLedger, clock *fakeClock) (*RuleService, *memConfigStore) {
	store := newMemConfigStore(cfg)
	return NewRuleServiceWithClock(store, ledger, clock.Now, zap.NewNop()), store
}

func TestRuleService_AddRule(t *testing.T) {
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, &fakeClock{t: at(9, 0)})

	rule, err := svc.AddRule("YouTube", "9:00", "17:00")
	require.NoError(t, err)
	assert.Equal(t, "youtube.com", rule.Domain)
	assert.Equal(t, "09:00", rule.StartTime.String())

	_, err = svc.AddRule("youtube.com", "18:00", "22:00")
	require.NoError(t, err)

	require.Len(t, store.cfg.Rules, 2, "same domain may have several windows")
	assert.Equal(t, "youtube.com", store.cfg.Rules[1].Domain)
}

func TestRuleService_AddRule_ValidationNeverPersists(t *testing.T) {
	tests := []struct {
		name, domain, start, end string
	}{
		{"bad start", "a.com", "25:00", "10:00"},
		{"bad end", "a.com", "09:00", "nine"},
		{"bad domain", "not a domain", "09:00", "10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestRuleService(domain.DefaultConfig(), nil, &fakeClock{t: at(9, 0)})
			_, err := svc.AddRule(tt.domain, tt.start, tt.end)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, 0, store.saves)
		})
	}
}

func TestRuleService_RemoveRule(t *testing.T) {
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, &fakeClock{t: at(9, 0)})
	_, _ = svc.AddRule("youtube", "09:00", "12:00")
	_, _ = svc.AddRule("youtube", "18:00", "20:00")
	_, _ = svc.AddRule("reddit", "09:00", "12:00")

	name, removed, err := svc.RemoveRule("https://www.youtube.com/")
	require.NoError(t, err)
	assert.Equal(t, "youtube.com", name)
	assert.Equal(t, 2, removed)
	require.Len(t, store.cfg.Rules, 1)
	assert.Equal(t, "reddit.com", store.cfg.Rules[0].Domain)

	saves := store.saves
	_, _, err = svc.RemoveRule("youtube")
	assert.True(t, errors.Is(err, domain.ErrNoSuchRule))
	assert.Equal(t, saves, store.saves, "nothing saved when nothing removed")
}

func TestRuleService_GrantException(t *testing.T) {
	ledger := &mockLedger{}
	clock := &fakeClock{t: at(12, 0)}
	svc, store := newTestRuleService(domain.DefaultConfig(), ledger, clock)
	_, _ = svc.AddRule("youtube", "09:00", "12:00")
	_, _ = svc.AddRule("youtube", "11:00", "17:00")

	outcome, err := svc.GrantException("youtube", 30)
	require.NoError(t, err)
	assert.Equal(t, "youtube.com", outcome.Domain)
	assert.Equal(t, uint(1), outcome.Remaining)
	assert.True(t, outcome.ExpiresAt.Equal(at(12, 30)))

	for _, r := range store.cfg.Rules {
		require.NotNil(t, r.ExceptionUntil)
		assert.True(t, r.ExceptionUntil.Equal(at(12, 30)))
	}
	assert.Equal(t, uint(1), store.cfg.ExceptionsUsedToday)

	require.Len(t, ledger.grants, 1)
	assert.Equal(t, 2, ledger.grants[0].RulesHit)
	assert.Equal(t, uint(1), ledger.grants[0].UsedToday)
}

func TestRuleService_GrantException_QuotaAndReset(t *testing.T) {
	clock := &fakeClock{t: at(12, 0)}
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, clock)
	_, _ = svc.AddRule("a.com", "00:00", "23:59")

	_, err := svc.GrantException("a.com", 5)
	require.NoError(t, err)
	outcome, err := svc.GrantException("a.com", 5)
	require.NoError(t, err)
	assert.Equal(t, uint(0), outcome.Remaining)

	saves := store.saves
	_, err = svc.GrantException("a.com", 5)
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))
	assert.Equal(t, saves, store.saves)
	assert.Equal(t, uint(2), store.cfg.ExceptionsUsedToday)

	clock.t = clock.t.Add(24 * time.Hour)
	outcome, err = svc.GrantException("a.com", 5)
	require.NoError(t, err)
	assert.Equal(t, uint(1), outcome.Remaining)
	assert.Equal(t, uint(1), store.cfg.ExceptionsUsedToday)
}

func TestRuleService_GrantException_Errors(t *testing.T) {
	ledger := &mockLedger{}
	svc, store := newTestRuleService(domain.DefaultConfig(), ledger, &fakeClock{t: at(12, 0)})
	_, _ = svc.AddRule("a.com", "00:00", "23:59")
	saves := store.saves

	_, err := svc.GrantException("b.com", 10)
	assert.True(t, errors.Is(err, domain.ErrNoSuchRule))

	_, err = svc.GrantException("a.com", 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.GrantException("a.com", int(MaxExceptionMinutes)+1)
	assert.True(t, errors.Is(err, domain.ErrValidation), "duration would overflow")

	assert.Equal(t, saves, store.saves)
	assert.Equal(t, uint(0), store.cfg.ExceptionsUsedToday)
	assert.Empty(t, ledger.grants)
}

func TestRuleService_GrantException_LongestDuration(t *testing.T) {
	clock := &fakeClock{t: at(12, 0)}
	svc, _ := newTestRuleService(domain.DefaultConfig(), nil, clock)
	_, _ = svc.AddRule("a.com", "00:00", "23:59")

	outcome, err := svc.GrantException("a.com", int(MaxExceptionMinutes))
	require.NoError(t, err)
	assert.True(t, outcome.ExpiresAt.After(clock.t))
}

func TestRuleService_GrantException_LedgerFailureIsNotFatal(t *testing.T) {
	svc, store := newTestRuleService(domain.DefaultConfig(), &mockLedger{recordErr: errBoom}, &fakeClock{t: at(12, 0)})
	_, _ = svc.AddRule("a.com", "00:00", "23:59")

	_, err := svc.GrantException("a.com", 10)
	require.NoError(t, err)
	assert.Equal(t, uint(1), store.cfg.ExceptionsUsedToday)
}

func TestRuleService_Display(t *testing.T) {
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, &fakeClock{t: at(12, 0)})

	require.NoError(t, svc.SetManualDisplay(true))
	assert.True(t, store.cfg.ManualDisplayOverride)

	rule, err := svc.AddDisplayRule("22:00", "06:00")
	require.NoError(t, err)
	assert.True(t, rule.Enabled)
	require.Len(t, store.cfg.DisplayRules, 1)

	_, err = svc.AddDisplayRule("22:00", "6")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Len(t, store.cfg.DisplayRules, 1)

	require.NoError(t, svc.ClearDisplay())
	assert.Empty(t, store.cfg.DisplayRules)
	assert.False(t, store.cfg.ManualDisplayOverride)
}

func TestRuleService_SetExceptionLimit(t *testing.T) {
	clock := &fakeClock{t: at(12, 0)}
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, clock)

	require.NoError(t, svc.SetExceptionLimit(5))
	assert.Equal(t, uint(5), store.cfg.ExceptionDailyLimit)

	cfg, err := svc.Config()
	require.NoError(t, err)
	assert.Equal(t, uint(5), svc.RemainingExceptions(cfg))
}

func TestRuleService_PersistenceFailure(t *testing.T) {
	svc, store := newTestRuleService(domain.DefaultConfig(), nil, &fakeClock{t: at(12, 0)})
	store.saveErr = domain.ErrPersistence

	_, err := svc.AddRule("a.com", "09:00", "10:00")
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.Empty(t, store.cfg.Rules)
}

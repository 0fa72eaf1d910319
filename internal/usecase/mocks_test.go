package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// memConfigStore implements domain.ConfigStore in memory
type memConfigStore struct {
	cfg     domain.Config
	loadErr error
	saveErr error
	saves   int
}

func newMemConfigStore(cfg domain.Config) *memConfigStore {
	return &memConfigStore{cfg: cfg}
}

func (m *memConfigStore) Load() (domain.Config, error) {
	if m.loadErr != nil {
		return domain.Config{}, m.loadErr
	}
	return m.cfg.Clone(), nil
}

func (m *memConfigStore) Save(cfg domain.Config) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cfg.Clone()
	m.saves++
	return nil
}

func (m *memConfigStore) Update(fn func(cfg domain.Config) (domain.Config, error)) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	updated, err := fn(cfg)
	if err != nil {
		return err
	}
	return m.Save(updated)
}

func (m *memConfigStore) Path() string { return "/mem/config.json" }

// mockHostsFile implements domain.HostsFile for testing
type mockHostsFile struct {
	content  string
	readErr  error
	writeErr error
	writes   int
}

func (m *mockHostsFile) Read() (string, error) {
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.content, nil
}

func (m *mockHostsFile) Write(content string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.content = content
	m.writes++
	return nil
}

func (m *mockHostsFile) Path() string { return "/mock/hosts" }

// mockDisplayController implements domain.DisplayController for testing
type mockDisplayController struct {
	displays []string
	listErr  error
	hang     bool // ListDisplays blocks until ctx is done
	failOn   map[string]error
	calls    []displayCall
}

type displayCall struct {
	display string
	enabled bool
}

func (m *mockDisplayController) ListDisplays(ctx context.Context) ([]string, error) {
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.displays, nil
}

func (m *mockDisplayController) SetGrayscale(ctx context.Context, display string, enabled bool) error {
	m.calls = append(m.calls, displayCall{display: display, enabled: enabled})
	if err := m.failOn[display]; err != nil {
		return err
	}
	return nil
}

// mockLedger implements domain.ExceptionLedger for testing
type mockLedger struct {
	grants    []domain.ExceptionGrant
	recordErr error
}

func (m *mockLedger) Record(grant domain.ExceptionGrant) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.grants = append(m.grants, grant)
	return nil
}

func (m *mockLedger) Since(t time.Time) ([]domain.ExceptionGrant, error) {
	var out []domain.ExceptionGrant
	for _, g := range m.grants {
		if !g.GrantedAt.Before(t) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockLedger) Close() error { return nil }

var errBoom = errors.New("boom")

// fakeClock is a settable clock for deterministic tests
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func at(hh, mm int) time.Time {
	return time.Date(2024, 3, 15, hh, mm, 0, 0, time.UTC)
}

var (
	_ domain.ConfigStore       = (*memConfigStore)(nil)
	_ domain.HostsFile         = (*mockHostsFile)(nil)
	_ domain.DisplayController = (*mockDisplayController)(nil)
	_ domain.ExceptionLedger   = (*mockLedger)(nil)
)

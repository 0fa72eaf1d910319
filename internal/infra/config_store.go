package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// JSONConfigStore implements domain.ConfigStore on a JSON file.
// Writers take an exclusive flock on "<path>.lock" so a CLI command and the
// daemon never interleave a load-modify-save.
type JSONConfigStore struct {
	path string
}

// NewJSONConfigStore creates a store backed by the file at path.
func NewJSONConfigStore(path string) *JSONConfigStore {
	return &JSONConfigStore{path: path}
}

// Path returns the config file path.
func (s *JSONConfigStore) Path() string {
	return s.path
}

// configFile is the on-disk shape. Older files used the bw_* names for the
// display settings and exceptions_used_count for the counter.
type configFile struct {
	domain.Config
	LegacyDisplayRules []domain.DisplayRule `json:"bw_rules,omitempty"`
	LegacyManual       *bool                `json:"manual_bw_active,omitempty"`
	LegacyUsed         *uint                `json:"exceptions_used_count,omitempty"`
}

// Load reads the config. A missing file yields the default config; missing
// fields take their defaults.
func (s *JSONConfigStore) Load() (domain.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.Config{}, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, s.path, err)
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return domain.Config{}, fmt.Errorf("%w: parse %s: %v", domain.ErrPersistence, s.path, err)
	}
	return cfg, nil
}

// Save writes the config atomically under the lock.
func (s *JSONConfigStore) Save(cfg domain.Config) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.atomicWrite(cfg)
}

// Update runs fn on the current config and saves the result, all under the
// lock. Nothing is written when fn returns an error.
func (s *JSONConfigStore) Update(fn func(cfg domain.Config) (domain.Config, error)) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	cfg, err := s.Load()
	if err != nil {
		return err
	}
	updated, err := fn(cfg)
	if err != nil {
		return err
	}
	return s.atomicWrite(updated)
}

func decodeConfig(data []byte) (domain.Config, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return domain.Config{}, err
	}

	file := configFile{Config: domain.DefaultConfig()}
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Config{}, err
	}

	cfg := file.Config
	if _, ok := present["display_rules"]; !ok && file.LegacyDisplayRules != nil {
		cfg.DisplayRules = file.LegacyDisplayRules
	}
	if _, ok := present["manual_display_override"]; !ok && file.LegacyManual != nil {
		cfg.ManualDisplayOverride = *file.LegacyManual
	}
	if _, ok := present["exceptions_used_today"]; !ok && file.LegacyUsed != nil {
		cfg.ExceptionsUsedToday = *file.LegacyUsed
	}

	if cfg.Rules == nil {
		cfg.Rules = []domain.DomainRule{}
	}
	if cfg.DisplayRules == nil {
		cfg.DisplayRules = []domain.DisplayRule{}
	}
	if cfg.LastExceptionDate == "" {
		cfg.LastExceptionDate = domain.NeverUsedDate
	}
	return cfg, nil
}

// lock acquires the exclusive config lock and returns its release func.
func (s *JSONConfigStore) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create config directory: %v", domain.ErrPersistence, err)
	}
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %v", domain.ErrPersistence, err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("%w: acquire lock: %v", domain.ErrPersistence, err)
	}
	return func() {
		_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}, nil
}

// atomicWrite writes the config to a temp file and renames it into place.
func (s *JSONConfigStore) atomicWrite(cfg domain.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode config: %v", domain.ErrPersistence, err)
	}
	data = append(data, '\n')

	// Unique per process so concurrent writers never share a temp file
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %v", domain.ErrPersistence, s.path, err)
	}
	return nil
}

// Ensure JSONConfigStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*JSONConfigStore)(nil)

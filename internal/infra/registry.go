package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

const registryFileName = "daemon.json"

// FileRegistry implements domain.DaemonRegistry using a JSON file in the data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
	now            func() time.Time
}

// NewFileRegistry creates a new file-based daemon registry in dataDir.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, registryFileName), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
		now:            time.Now,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register records the daemon's PID, replacing any previous entry.
func (r *FileRegistry) Register(daemon domain.Daemon) error {
	return r.withLock(func() error {
		entry := &domain.RegistryEntry{
			Version:        1,
			PID:            daemon.PID,
			StartedAt:      daemon.StartedAt.Unix(),
			LastHeartbeat:  r.now().Unix(),
			AppVersion:     daemon.AppVersion,
			BlockedDomains: []string{},
			DisplayState:   domain.DisplayUnknown.String(),
		}
		if os.Geteuid() == 0 {
			entry.Mode = string(ExecModeSystem)
		} else {
			entry.Mode = string(ExecModeUser)
		}
		return r.atomicWrite(entry)
	})
}

// UpdateHeartbeat stamps the heartbeat and stores the last cycle's outcome.
func (r *FileRegistry) UpdateHeartbeat(summary domain.CycleSummary) error {
	return r.withLock(func() error {
		entry, err := r.GetAll()
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("daemon not registered")
		}

		entry.LastHeartbeat = r.now().Unix()
		entry.BlockedDomains = append([]string{}, summary.BlockedDomains...)
		entry.DisplayState = summary.DisplayState.String()
		return r.atomicWrite(entry)
	})
}

// IsAlive checks if the registered daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	entry, err := r.GetAll()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(entry.PID), nil
}

// GetAll returns full registry state, nil when no daemon ever registered.
func (r *FileRegistry) GetAll() (*domain.RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// Clear removes registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// withLock runs fn holding the registry's exclusive file lock.
func (r *FileRegistry) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(entry *domain.RegistryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)

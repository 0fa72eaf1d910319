package domain

import (
	"context"
	"time"
)

// ConfigStore persists the rule configuration.
// Implementation: JSON file guarded by an advisory file lock.
type ConfigStore interface {
	// Load returns the stored config, or DefaultConfig if none exists.
	Load() (Config, error)

	// Save replaces the stored config.
	Save(cfg Config) error

	// Update runs fn on the current config under an exclusive lock and
	// saves the result only if fn returns nil.
	Update(fn func(cfg Config) (Config, error)) error

	// Path returns the config file path (watched by the daemon).
	Path() string
}

// HostsFile gives access to the system hosts file.
type HostsFile interface {
	// Read returns the full file content. A missing file reads as empty.
	Read() (string, error)

	// Write replaces the full file content.
	Write(content string) error

	// Path returns the hosts file path.
	Path() string
}

// DisplayController changes the color matrix of connected displays.
// Implementation: xrandr CTM property on X11.
type DisplayController interface {
	// ListDisplays returns identifiers of connected displays.
	ListDisplays(ctx context.Context) ([]string, error)

	// SetGrayscale launches the command switching one display.
	// Only a failure to launch is reported.
	SetGrayscale(ctx context.Context, display string, enabled bool) error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry records the running daemon for status and start commands.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID and start time.
	Register(daemon Daemon) error

	// UpdateHeartbeat stamps liveness and the last cycle's outcome.
	UpdateHeartbeat(summary CycleSummary) error

	// IsAlive reports whether the registered daemon process still runs.
	IsAlive() (bool, error)

	// GetAll returns the registry state, nil if nothing is registered.
	GetAll() (*RegistryEntry, error)

	// Clear removes the registry file.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// Reconciler runs one full reconciliation cycle.
type Reconciler interface {
	Reconcile(ctx context.Context) (*ReconcileResult, error)
}

// ExceptionLedger keeps an append-only history of exception grants.
// Implementation: SQLCipher encrypted SQLite database.
type ExceptionLedger interface {
	// Record appends a grant.
	Record(grant ExceptionGrant) error

	// Since returns grants made at or after t, oldest first.
	Since(t time.Time) ([]ExceptionGrant, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

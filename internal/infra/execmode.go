package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as a regular user; files live under ~/.config/focus
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root; writes /etc/hosts and /etc/focus
	ExecModeSystem ExecMode = "system"
)

const (
	// SystemConfigPath is the rule file used when running as root.
	SystemConfigPath = "/etc/focus/config.json"
	systemDataDir    = "/var/lib/focus"
	systemLogPath    = "/var/log/focus.log"
)

// ExecModeConfig holds default paths based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	ConfigPath string // Rule configuration (JSON)
	HostsPath  string // Hosts file managed by the daemon
	DataDir    string // Encrypted ledger, key and registry
	LogPath    string // Daemon log file
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			ConfigPath: SystemConfigPath,
			HostsPath:  DefaultHostsPath,
			DataDir:    systemDataDir,
			LogPath:    systemLogPath,
			IsRoot:     true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode config regardless of current euid.
// Under sudo, paths resolve to the invoking user's home directory.
// The hosts file stays /etc/hosts; writing it without root fails and is
// reported each cycle.
func GetUserModeConfig() *ExecModeConfig {
	base := filepath.Join(GetRealUserHome(), ".config", "focus")
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		ConfigPath: filepath.Join(base, "config.json"),
		HostsPath:  DefaultHostsPath,
		DataDir:    base,
		LogPath:    filepath.Join(base, "focus.log"),
		IsRoot:     os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

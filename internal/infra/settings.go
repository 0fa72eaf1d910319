package infra

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Settings keys, shared by the settings file, FOCUS_* env vars and CLI flags.
const (
	KeyConfigPath        = "config_path"
	KeyHostsPath         = "hosts_path"
	KeyLogPath           = "log_path"
	KeyDataDir           = "data_dir"
	KeyReconcileInterval = "reconcile_interval"
	KeyHeartbeatInterval = "heartbeat_interval"
	KeyDisplayCommand    = "display.command"
	KeyXDisplay          = "display.env_display"
	KeyDebug             = "debug"

	settingsFileName = "focusd"
)

const (
	DefaultReconcileInterval = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Settings are the daemon's runtime parameters. The rule set itself lives
// in the JSON config at ConfigPath.
type Settings struct {
	ConfigPath        string
	HostsPath         string
	LogPath           string
	DataDir           string
	ReconcileInterval time.Duration
	HeartbeatInterval time.Duration
	DisplayCommand    string
	XDisplay          string
	Debug             bool
}

// NewSettingsViper returns a viper instance with defaults for the given
// exec mode and FOCUS_* environment binding. Callers bind flags to it
// before calling LoadSettings.
func NewSettingsViper(mode *ExecModeConfig) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyConfigPath, mode.ConfigPath)
	v.SetDefault(KeyHostsPath, mode.HostsPath)
	v.SetDefault(KeyLogPath, mode.LogPath)
	v.SetDefault(KeyDataDir, mode.DataDir)
	v.SetDefault(KeyReconcileInterval, DefaultReconcileInterval)
	v.SetDefault(KeyHeartbeatInterval, DefaultHeartbeatInterval)
	v.SetDefault(KeyDisplayCommand, DefaultDisplayCommand)
	v.SetDefault(KeyXDisplay, DefaultXDisplay)
	v.SetDefault(KeyDebug, false)

	v.SetEnvPrefix("FOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the optional settings file and resolves all keys.
// An explicit file must exist; otherwise focusd.yaml next to the default
// config is used when present.
func LoadSettings(v *viper.Viper, file string, mode *ExecModeConfig) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(settingsFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(mode.ConfigPath))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read settings: %v", domain.ErrValidation, err)
		}
	}

	s := &Settings{
		ConfigPath:        v.GetString(KeyConfigPath),
		HostsPath:         v.GetString(KeyHostsPath),
		LogPath:           v.GetString(KeyLogPath),
		DataDir:           v.GetString(KeyDataDir),
		ReconcileInterval: v.GetDuration(KeyReconcileInterval),
		HeartbeatInterval: v.GetDuration(KeyHeartbeatInterval),
		DisplayCommand:    v.GetString(KeyDisplayCommand),
		XDisplay:          v.GetString(KeyXDisplay),
		Debug:             v.GetBool(KeyDebug),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks paths and intervals.
func (s *Settings) Validate() error {
	if s.ConfigPath == "" {
		return fmt.Errorf("%w: %s is empty", domain.ErrValidation, KeyConfigPath)
	}
	if s.HostsPath == "" {
		return fmt.Errorf("%w: %s is empty", domain.ErrValidation, KeyHostsPath)
	}
	if s.DataDir == "" {
		return fmt.Errorf("%w: %s is empty", domain.ErrValidation, KeyDataDir)
	}
	if s.ReconcileInterval <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrValidation, KeyReconcileInterval)
	}
	if s.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrValidation, KeyHeartbeatInterval)
	}
	return nil
}

// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hosts file markers delimiting the block owned by focus.
const (
	MarkerStart = "# BEGIN FOCUS BLOCK"
	MarkerEnd   = "# END FOCUS BLOCK"
)

const (
	// DefaultExceptionDailyLimit applies when the config does not set a limit.
	DefaultExceptionDailyLimit uint = 2

	// NeverUsedDate is the sentinel exception date for a fresh config.
	NeverUsedDate = "1970-01-01"

	// DateLayout is the layout of Config.LastExceptionDate.
	DateLayout = "2006-01-02"
)

// ClockTime is a validated wall-clock time of day with minute precision.
type ClockTime struct {
	minutes int // minutes since midnight, 0..1439
}

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: time %02d:%02d out of range", ErrValidation, hour, minute)
	}
	return ClockTime{minutes: hour*60 + minute}, nil
}

// ParseClockTime parses a 24-hour "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return ClockTime{}, fmt.Errorf("%w: invalid time %q (want HH:MM)", ErrValidation, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || strings.ContainsAny(h, "+-") {
		return ClockTime{}, fmt.Errorf("%w: invalid hour in %q", ErrValidation, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || strings.ContainsAny(m, "+-") {
		return ClockTime{}, fmt.Errorf("%w: invalid minute in %q", ErrValidation, s)
	}
	return NewClockTime(hour, minute)
}

// MustClockTime is ParseClockTime for literals; it panics on bad input.
func MustClockTime(s string) ClockTime {
	ct, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return c.minutes / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return c.minutes % 60 }

// SinceMidnight returns the offset of c from 00:00.
func (c ClockTime) SinceMidnight() time.Duration {
	return time.Duration(c.minutes) * time.Minute
}

// String formats as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DomainRule blocks Domain between StartTime and EndTime every day.
// Several rules may share a domain (e.g. a morning and an evening window).
type DomainRule struct {
	Domain         string     `json:"domain"`
	StartTime      ClockTime  `json:"start_time"`
	EndTime        ClockTime  `json:"end_time"`
	ExceptionUntil *time.Time `json:"exception_until"`
}

// DisplayRule forces grayscale between StartTime and EndTime.
type DisplayRule struct {
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
	Enabled   bool      `json:"enabled"`
}

// Config is the persisted rule set. Core operations take it by value and
// return the mutated copy; persistence belongs to the caller.
type Config struct {
	Rules                 []DomainRule  `json:"rules"`
	DisplayRules          []DisplayRule `json:"display_rules"`
	ManualDisplayOverride bool          `json:"manual_display_override"`
	ExceptionDailyLimit   uint          `json:"exception_daily_limit"`
	ExceptionsUsedToday   uint          `json:"exceptions_used_today"`
	LastExceptionDate     string        `json:"last_exception_date"`
}

// DefaultConfig returns the config used when no file exists yet.
func DefaultConfig() Config {
	return Config{
		Rules:               []DomainRule{},
		DisplayRules:        []DisplayRule{},
		ExceptionDailyLimit: DefaultExceptionDailyLimit,
		LastExceptionDate:   NeverUsedDate,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c Config) Clone() Config {
	out := c
	out.Rules = make([]DomainRule, len(c.Rules))
	for i, r := range c.Rules {
		out.Rules[i] = r
		if r.ExceptionUntil != nil {
			t := *r.ExceptionUntil
			out.Rules[i].ExceptionUntil = &t
		}
	}
	out.DisplayRules = append([]DisplayRule{}, c.DisplayRules...)
	return out
}

// DisplayState is the last grayscale state applied to the displays.
type DisplayState int

const (
	// DisplayUnknown forces the next reconcile to apply unconditionally.
	DisplayUnknown DisplayState = iota
	DisplayNormal
	DisplayGrayscale
)

// DisplayStateOf maps a grayscale flag to a known state.
func DisplayStateOf(grayscale bool) DisplayState {
	if grayscale {
		return DisplayGrayscale
	}
	return DisplayNormal
}

func (s DisplayState) String() string {
	switch s {
	case DisplayNormal:
		return "normal"
	case DisplayGrayscale:
		return "grayscale"
	default:
		return "unknown"
	}
}

// DisplayAction is the outcome of display reconciliation.
type DisplayAction struct {
	Apply     bool // false means no-op
	Grayscale bool // target state when Apply is set
}

// ReconcileResult captures what happened during a single reconciliation cycle.
type ReconcileResult struct {
	BlockedDomains []string
	HostsChanged   bool
	HostsErr       error
	DisplayTarget  bool
	DisplayApplied bool
	DisplayErr     error
	ExecutedAt     time.Time
	DurationMs     int64
}

// DaemonRole identifies the type of daemon process.
type DaemonRole string

const (
	RoleWatcher DaemonRole = "watcher"
)

// Daemon represents a running daemon process.
type Daemon struct {
	PID        int
	Role       DaemonRole
	StartedAt  time.Time
	AppVersion string
}

// RegistryEntry is the daemon state shared with one-shot commands (status, start).
type RegistryEntry struct {
	Version        int      `json:"version"`
	PID            int      `json:"pid"`
	StartedAt      int64    `json:"started_at"`
	LastHeartbeat  int64    `json:"last_heartbeat"`
	AppVersion     string   `json:"app_version,omitempty"`
	Mode           string   `json:"mode,omitempty"` // "user" or "system"
	BlockedDomains []string `json:"blocked_domains"`
	DisplayState   string   `json:"display_state,omitempty"`
}

// CycleSummary is what the watcher reports to the registry after each cycle.
type CycleSummary struct {
	BlockedDomains []string
	DisplayState   DisplayState
}

// ExceptionGrant is one successful exception, as recorded in the ledger.
type ExceptionGrant struct {
	Domain     string
	GrantedAt  time.Time
	ExpiresAt  time.Time
	RulesHit   int
	UsedToday  uint
	DailyLimit uint
}

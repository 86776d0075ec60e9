// Package config loads, validates, and hot-reloads the engine configuration
// from a YAML or JSON file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	SMTP      SMTPConfig      `json:"smtp"`
	Notify    NotifyConfig    `json:"notify"`
	Backup    BackupConfig    `json:"backup"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Debug     DebugConfig     `json:"debug,omitempty"`
	Jobs      []JobConfig     `json:"jobs,omitempty"`
}

// DebugConfig controls the optional pprof endpoint.
type DebugConfig struct {
	Pprof     bool   `json:"pprof,omitempty"`
	PprofAddr string `json:"pprof_addr,omitempty"`
	// PprofToken is required when pprof_addr is not loopback.
	PprofToken string `json:"pprof_token,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Driver string `json:"driver" validate:"omitempty,oneof=memory sqlite"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"gt=0,lte=65535"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from" validate:"required,email"`
	FromName string `json:"from_name,omitempty"`
	UseTLS   bool   `json:"use_tls,omitempty"`
}

// NotifyConfig controls grouping and escalation of outbound email.
//
// Defaults (when fields are omitted/zero):
//   - failure_threshold: 0.5
//   - rate_per_sec: 10
//   - parallel: 4
type NotifyConfig struct {
	AdminEmail       string  `json:"admin_email" validate:"required,email"`
	AdminName        string  `json:"admin_name,omitempty"`
	FailureThreshold float64 `json:"failure_threshold,omitempty" validate:"gte=0,lte=1"`
	RatePerSec       float64 `json:"rate_per_sec,omitempty" validate:"gte=0"`
	Parallel         int     `json:"parallel,omitempty" validate:"gte=0"`
}

type BackupConfig struct {
	Dir  string `json:"dir" validate:"required"`
	Keep int    `json:"keep,omitempty" validate:"gte=0"`
}

// SchedulerConfig controls trigger firing and run-lock behavior.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
	// LockTTL is a Go duration string. Locks older than this are reclaimed.
	LockTTL string `json:"lock_ttl,omitempty"`
}

// JobConfig overrides the built-in cadence of one job, or disables it.
type JobConfig struct {
	Name     string `json:"name" validate:"required"`
	Cadence  string `json:"cadence,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

var validate = validator.New()

// Validate checks field constraints plus cross-field rules the tag language
// can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(c.Storage.Driver), "sqlite") && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("config: storage.path is required for the sqlite driver")
	}
	seen := map[string]bool{}
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if seen[name] {
			return fmt.Errorf("config: jobs[%d]: duplicate job %q", i, name)
		}
		seen[name] = true
	}
	if _, err := c.LockTTL(); err != nil {
		return err
	}
	return nil
}

// LockTTL parses scheduler.lock_ttl, zero when unset.
func (c *Config) LockTTL() (time.Duration, error) {
	return ParseDurationField("scheduler.lock_ttl", c.Scheduler.LockTTL)
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

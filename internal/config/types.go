package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment fallbacks for secret fields, so tokens can stay out of the
// config file (and in .env for local runs).
const (
	EnvBackendToken  = "LEADPULSE_BACKEND_TOKEN"
	EnvTelegramToken = "LEADPULSE_TELEGRAM_TOKEN"
)

// Config is the on-disk configuration. JSON and YAML are both accepted;
// YAML is coerced to JSON before the strict decode so unknown keys are
// rejected in either format.
//
// All durations are Go duration strings (e.g. "30s", "2m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Backend   BackendConfig   `json:"backend"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Engine    EngineConfig    `json:"engine"`
	Principal PrincipalConfig `json:"principal"`

	// Settings overrides the persisted notification toggles when present.
	// Omitted fields keep whatever the store has.
	Settings *SettingsConfig `json:"settings,omitempty"`
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

// StorageConfig selects the dedup/log persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./leadpulse_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type BackendConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"` // bearer token (do not log)
	Timeout string `json:"timeout,omitempty"`
}

// TelegramConfig configures the external alert channel. Disabled or absent
// means notifications stay in-app only.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type EngineConfig struct {
	// UTCOffset is the business timezone as a fixed offset, e.g. "+07:00".
	UTCOffset      string `json:"utc_offset"`
	PollInterval   string `json:"poll_interval,omitempty"`
	RolloverBuffer string `json:"rollover_buffer,omitempty"`
	FetchTimeout   string `json:"fetch_timeout,omitempty"`
}

type PrincipalConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role"` // "agent" or "admin"
}

// SettingsConfig mirrors the notification category toggles. Pointers
// distinguish "omitted" from an explicit false.
type SettingsConfig struct {
	Reminders   *bool `json:"reminders,omitempty"`
	Assignments *bool `json:"assignments,omitempty"`
	FollowUps   *bool `json:"followups,omitempty"`
}

// applyEnv fills secret fields from the environment when the file leaves
// them empty. Runs before Validate, so "telegram enabled, token in env"
// is a valid config.
func (c *Config) applyEnv() {
	if strings.TrimSpace(c.Backend.Token) == "" {
		c.Backend.Token = os.Getenv(EnvBackendToken)
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		c.Telegram.Token = os.Getenv(EnvTelegramToken)
	}
}

// Validate rejects configs that cannot produce a working process. Duration
// fields are validated where they are parsed.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.base_url is required")
	}
	if strings.TrimSpace(c.Principal.ID) == "" {
		return errors.New("principal.id is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Principal.Role)) {
	case "agent", "admin":
	default:
		return fmt.Errorf("principal.role must be \"agent\" or \"admin\", got %q", c.Principal.Role)
	}
	if strings.TrimSpace(c.Engine.UTCOffset) == "" {
		return errors.New("engine.utc_offset is required")
	}
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.token is required when telegram.enabled")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.chat_id is required when telegram.enabled")
		}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/lerit/internal/cloud"
	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/ollama"
	"github.com/jeranaias/lerit/internal/transport"
)

// Transport kinds.
const (
	KindRaw    = "raw"
	KindOllama = "ollama"
	KindOpenAI = "openai"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lerit configuration.
type Config struct {
	Transport TransportConfig `toml:"transport"`
	Engine    EngineConfig    `toml:"engine"`
	UI        UIConfig        `toml:"ui"`
	Log       LogConfig       `toml:"log"`
	Stub      StubConfig      `toml:"stub"`
}

// TransportConfig selects and configures the completion service.
type TransportConfig struct {
	// Kind is one of "raw", "ollama", "openai"
	Kind string `toml:"kind" env:"LERIT_TRANSPORT"`
	// URL is the chat endpoint for raw, or the API base URL otherwise
	URL            string        `toml:"url" env:"LERIT_URL"`
	Model          string        `toml:"model" env:"LERIT_MODEL"`
	ConnectTimeout time.Duration `toml:"connect_timeout" env:"LERIT_CONNECT_TIMEOUT"`
}

// EngineConfig configures the conversation engine.
type EngineConfig struct {
	// BusyPolicy is "supersede" (default) or "reject"
	BusyPolicy string `toml:"busy_policy" env:"LERIT_BUSY_POLICY"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	MaxFPS   int    `toml:"max_fps" env:"LERIT_MAX_FPS"`
	Markdown bool   `toml:"markdown" env:"LERIT_MARKDOWN"`
	Theme    string `toml:"theme" env:"LERIT_THEME"` // "auto", "dark", "light"
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `toml:"level" env:"LERIT_LOG_LEVEL"`
	Format string `toml:"format" env:"LERIT_LOG_FORMAT"` // "console" or "json"
	// File receives logs while the TUI owns the terminal
	File string `toml:"file" env:"LERIT_LOG_FILE"`
}

// StubConfig configures `lerit stub`.
type StubConfig struct {
	Addr       string        `toml:"addr" env:"LERIT_STUB_ADDR"`
	TokenDelay time.Duration `toml:"token_delay" env:"LERIT_STUB_TOKEN_DELAY"`
	// Reply is streamed for every request; empty echoes the last user turn
	Reply string `toml:"reply" env:"LERIT_STUB_REPLY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			// URL is left empty and derived from Kind by fillDefaults.
			Kind:           KindRaw,
			ConnectTimeout: transport.DefaultConnectTimeout,
		},
		Engine: EngineConfig{
			BusyPolicy: engine.BusySupersede.String(),
		},
		UI: UIConfig{
			MaxFPS:   30,
			Markdown: true,
			Theme:    "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Stub: StubConfig{
			Addr:       "127.0.0.1:3000",
			TokenDelay: 40 * time.Millisecond,
		},
	}
}

// DefaultURL returns the default endpoint for a transport kind.
func DefaultURL(kind string) string {
	switch strings.ToLower(kind) {
	case KindOllama:
		return ollama.DefaultBaseURL
	case KindOpenAI:
		return cloud.DefaultBaseURL
	default:
		return transport.DefaultURL
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the lerit configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".lerit"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogFile returns ~/.lerit/lerit.log.
func DefaultLogFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return "lerit.log"
	}
	return filepath.Join(dir, "lerit.log")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path, or the default location when path is
// empty. A missing default file is not an error; a missing explicit file is.
// Environment overrides, defaults and validation are applied in that order.
func Load(path string) (*Config, error) {
	return load(path, path != "")
}

// LoadOptional is Load without requiring an explicit path to exist. It
// serves commands that create the file.
func LoadOptional(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, required bool) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if required || !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "config file %s", path)
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys that are not part of Config
// are rejected.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrapf(err, "failed to decode TOML file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads a .env file if present. Variables already set in the
// environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// ApplyEnvOverrides applies LERIT_* environment variables. Unset variables
// leave the current values in place.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, "parse environment")
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = defaults.Transport.Kind
	}
	cfg.Transport.Kind = strings.ToLower(cfg.Transport.Kind)
	if cfg.Transport.URL == "" {
		cfg.Transport.URL = DefaultURL(cfg.Transport.Kind)
	}
	if cfg.Transport.ConnectTimeout == 0 {
		cfg.Transport.ConnectTimeout = defaults.Transport.ConnectTimeout
	}
	if cfg.Engine.BusyPolicy == "" {
		cfg.Engine.BusyPolicy = defaults.Engine.BusyPolicy
	}
	if cfg.UI.MaxFPS == 0 {
		cfg.UI.MaxFPS = defaults.UI.MaxFPS
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile()
	}
	if cfg.Stub.Addr == "" {
		cfg.Stub.Addr = defaults.Stub.Addr
	}
}

// Finalize fills defaults and validates. The cli package calls it after
// applying flag overrides.
func (c *Config) Finalize() error {
	fillDefaults(c)
	return c.Validate()
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path, creating parent directories.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return buf.Bytes(), nil
}

// String returns the TOML rendering of the config.
func (c *Config) String() string {
	data, err := c.Encode()
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Transport.Kind) {
	case KindRaw, KindOllama, KindOpenAI:
	default:
		add("transport.kind", "invalid kind '%s', must be one of: raw, ollama, openai", c.Transport.Kind)
	}
	if u, err := url.Parse(c.Transport.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("transport.url", "invalid URL '%s', must be an absolute http(s) URL", c.Transport.URL)
	}
	if c.Transport.ConnectTimeout < 0 {
		add("transport.connect_timeout", "must not be negative")
	}

	if _, err := engine.ParseBusyPolicy(c.Engine.BusyPolicy); err != nil {
		add("engine.busy_policy", "invalid policy '%s', must be one of: supersede, reject", c.Engine.BusyPolicy)
	}

	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 240 {
		add("ui.max_fps", "must be between 1 and 240, got %d", c.UI.MaxFPS)
	}
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	if c.Stub.Addr == "" {
		add("stub.addr", "must not be empty")
	}
	if c.Stub.TokenDelay < 0 {
		add("stub.token_delay", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

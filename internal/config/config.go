// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for kiwitrails.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.kiwitrails/config.toml
//   - ~/.kiwitrails/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/kiwitrails/internal/chat"
	"github.com/jeranaias/kiwitrails/internal/chatapi"
	"github.com/jeranaias/kiwitrails/internal/replystream"
	"github.com/jeranaias/kiwitrails/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete kiwitrails configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend connection
	API APIConfig `toml:"api" json:"api"`

	// Chat behavior
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Terminal output
	UI UIConfig `toml:"ui" json:"ui"`

	// Transcript history
	Storage StorageConfig `toml:"storage" json:"storage"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "http://127.0.0.1:8080"
	BaseURL string `toml:"base_url" json:"base_url"`
	// StreamPath is the chat endpoint path
	StreamPath string `toml:"stream_path" json:"stream_path"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// ChatConfig contains chat session settings.
type ChatConfig struct {
	Greeting    string   `toml:"greeting" json:"greeting"`
	Apology     string   `toml:"apology" json:"apology"`
	Suggestions []string `toml:"suggestions" json:"suggestions"`

	// SendRatePerSec and SendBurst throttle outgoing questions
	SendRatePerSec float64 `toml:"send_rate_per_sec" json:"send_rate_per_sec"`
	SendBurst      int     `toml:"send_burst" json:"send_burst"`

	// ScanMode is "naive" or "string-aware"
	ScanMode string `toml:"scan_mode" json:"scan_mode"`
	// Sentinel is the chunk that ends a reply stream
	Sentinel string `toml:"sentinel" json:"sentinel"`
}

// UIConfig contains terminal rendering settings.
type UIConfig struct {
	// WordWrap is the markdown wrap width (0 = terminal width)
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// Style is "auto", "dark", "light" or "notty"
	Style string `toml:"style" json:"style"`
	// RenderMarkdown re-renders finished replies as markdown on a TTY
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
}

// StorageConfig contains transcript history settings.
type StorageConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// DatabasePath defaults to ~/.kiwitrails/history.db
	DatabasePath string `toml:"database_path" json:"database_path"`
	// MaxConversations prunes the oldest transcripts (0 = unlimited)
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
}

// Timeout returns the non-streaming request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// ParsedScanMode returns the configured scan mode. Invalid values fall back
// to naive scanning; Validate reports them.
func (c ChatConfig) ParsedScanMode() replystream.ScanMode {
	mode, err := replystream.ParseScanMode(c.ScanMode)
	if err != nil {
		return replystream.ScanNaive
	}
	return mode
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		API: APIConfig{
			BaseURL:     chatapi.DefaultBaseURL,
			StreamPath:  chatapi.DefaultChatPath,
			TimeoutSecs: int(chatapi.DefaultTimeout / time.Second),
		},
		Chat: ChatConfig{
			Greeting:       chat.DefaultGreeting,
			Apology:        chat.DefaultApology,
			Suggestions:    append([]string(nil), chat.DefaultSuggestions...),
			SendRatePerSec: chat.DefaultSendRate,
			SendBurst:      chat.DefaultSendBurst,
			ScanMode:       replystream.ScanNaive.String(),
			Sentinel:       replystream.DefaultSentinel,
		},
		UI: UIConfig{
			WordWrap:       0,
			Style:          "auto",
			RenderMarkdown: true,
		},
		Storage: StorageConfig{
			Enabled:          true,
			MaxConversations: 200,
		},
	}
}

// SetDefaults fills empty fields that must have a value.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.StreamPath == "" {
		c.API.StreamPath = d.API.StreamPath
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.Chat.Greeting == "" {
		c.Chat.Greeting = d.Chat.Greeting
	}
	if c.Chat.Apology == "" {
		c.Chat.Apology = d.Chat.Apology
	}
	if len(c.Chat.Suggestions) == 0 {
		c.Chat.Suggestions = d.Chat.Suggestions
	}
	if c.Chat.SendRatePerSec == 0 {
		c.Chat.SendRatePerSec = d.Chat.SendRatePerSec
	}
	if c.Chat.SendBurst == 0 {
		c.Chat.SendBurst = d.Chat.SendBurst
	}
	if c.Chat.ScanMode == "" {
		c.Chat.ScanMode = d.Chat.ScanMode
	}
	if c.Chat.Sentinel == "" {
		c.Chat.Sentinel = d.Chat.Sentinel
	}
	if c.UI.Style == "" {
		c.UI.Style = d.UI.Style
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the kiwitrails configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".kiwitrails"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read: the TOML file if it
// exists, else the JSON file if it exists, else the TOML path.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// A file that fails to decode is reported alongside the defaults.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		if loadErr == nil {
			loadErr = err
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Fields the file leaves out keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file onto cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file onto cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# kiwitrails configuration file\n")
	buf.WriteString("# Environment overrides: KIWI_API_BASE_URL, KIWI_SCAN_MODE, KIWI_NO_STORAGE\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("timeout %d out of range (1-600)", c.API.TimeoutSecs),
		})
	}

	// Chat
	if _, err := replystream.ParseScanMode(c.Chat.ScanMode); err != nil {
		errs = append(errs, ValidationError{Field: "chat.scan_mode", Message: err.Error()})
	}
	if c.Chat.SendRatePerSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.send_rate_per_sec",
			Message: "must be positive",
		})
	}
	if c.Chat.SendBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.send_burst",
			Message: "must be at least 1",
		})
	}
	if strings.TrimSpace(c.Chat.Sentinel) == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.sentinel",
			Message: "must not be blank",
		})
	}

	// UI
	validStyles := map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}
	if !validStyles[strings.ToLower(c.UI.Style)] {
		errs = append(errs, ValidationError{
			Field:   "ui.style",
			Message: fmt.Sprintf("invalid style '%s', must be one of: auto, dark, light, notty", c.UI.Style),
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{Field: "ui.word_wrap", Message: "must not be negative"})
	}

	// Storage
	if c.Storage.MaxConversations < 0 {
		errs = append(errs, ValidationError{Field: "storage.max_conversations", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - KIWI_API_BASE_URL: overrides api.base_url
//   - VITE_API_BASE_URL: overrides api.base_url when KIWI_API_BASE_URL is unset
//   - KIWI_SCAN_MODE: overrides chat.scan_mode
//   - KIWI_NO_STORAGE: set to "1" or "true" to disable history
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv("KIWI_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	} else if base := os.Getenv("VITE_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}

	if mode := os.Getenv("KIWI_SCAN_MODE"); mode != "" {
		c.Chat.ScanMode = mode
	}

	if noStorage := os.Getenv("KIWI_NO_STORAGE"); noStorage != "" {
		if noStorage == "1" || strings.ToLower(noStorage) == "true" {
			c.Storage.Enabled = false
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Chat.Suggestions = append([]string(nil), c.Chat.Suggestions...)
	return &clone
}

// String returns the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}

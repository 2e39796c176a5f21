// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/kiwitrails/internal/chat"
	"github.com/jeranaias/kiwitrails/internal/replystream"
)

// isolate points the home directory at an empty temp dir and clears the
// override variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{"KIWI_API_BASE_URL", "VITE_API_BASE_URL", "KIWI_SCAN_MODE", "KIWI_NO_STORAGE"} {
		t.Setenv(key, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.StreamPath != "/chatMessage" {
		t.Errorf("API.StreamPath = %q", cfg.API.StreamPath)
	}
	if cfg.Chat.Greeting != chat.DefaultGreeting {
		t.Errorf("Chat.Greeting = %q", cfg.Chat.Greeting)
	}
	if len(cfg.Chat.Suggestions) != len(chat.DefaultSuggestions) {
		t.Errorf("len(Chat.Suggestions) = %d", len(cfg.Chat.Suggestions))
	}
	if cfg.Chat.ParsedScanMode() != replystream.ScanNaive {
		t.Errorf("scan mode = %v, want naive", cfg.Chat.ParsedScanMode())
	}
	if !cfg.Storage.Enabled || !cfg.UI.RenderMarkdown {
		t.Error("storage and markdown should default to enabled")
	}
}

func TestLoad_TOMLKeepsUnsetDefaults(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".kiwitrails", "config.toml"), `
[api]
base_url = "https://kiwi.example.com"

[chat]
scan_mode = "string-aware"
suggestions = ["Abel Tasman kayaking?"]

[storage]
enabled = false
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://kiwi.example.com" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSecs != 30 {
		t.Errorf("API.TimeoutSecs = %d, want default 30", cfg.API.TimeoutSecs)
	}
	if cfg.Chat.ParsedScanMode() != replystream.ScanStringAware {
		t.Error("scan mode should be string-aware")
	}
	if len(cfg.Chat.Suggestions) != 1 {
		t.Errorf("Suggestions = %v", cfg.Chat.Suggestions)
	}
	if cfg.Storage.Enabled {
		t.Error("storage should be disabled")
	}
	if !cfg.UI.RenderMarkdown {
		t.Error("unset render_markdown should keep its default")
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".kiwitrails", "config.json"),
		`{"api": {"base_url": "http://10.0.0.5:9000"}, "ui": {"style": "light"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://10.0.0.5:9000" || cfg.UI.Style != "light" {
		t.Errorf("got base %q style %q", cfg.API.BaseURL, cfg.UI.Style)
	}

	path, err := ActivePath()
	if err != nil || filepath.Base(path) != "config.json" {
		t.Errorf("ActivePath() = %q, %v", path, err)
	}
}

func TestLoad_BrokenFileFallsBackToDefaults(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".kiwitrails", "config.toml"), "[api\nbase_url = ")

	cfg, err := Load()
	if err == nil {
		t.Error("Load should report the broken file")
	}
	if cfg == nil || cfg.API.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("Load should still return defaults, got %+v", cfg)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, `
[chat]
scan_mode = "regex"
send_burst = -1
`)

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("LoadFromPath should reject invalid values")
	}
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %T should wrap ValidateErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(verrs), verrs)
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDE TESTS
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantBase    string
		wantMode    string
		wantStorage bool
	}{
		{
			name:        "none",
			wantBase:    "http://127.0.0.1:8080",
			wantMode:    "naive",
			wantStorage: true,
		},
		{
			name:        "kiwi base url",
			env:         map[string]string{"KIWI_API_BASE_URL": "http://a:1"},
			wantBase:    "http://a:1",
			wantMode:    "naive",
			wantStorage: true,
		},
		{
			name:        "vite base url",
			env:         map[string]string{"VITE_API_BASE_URL": "http://b:2"},
			wantBase:    "http://b:2",
			wantMode:    "naive",
			wantStorage: true,
		},
		{
			name:        "kiwi wins over vite",
			env:         map[string]string{"KIWI_API_BASE_URL": "http://a:1", "VITE_API_BASE_URL": "http://b:2"},
			wantBase:    "http://a:1",
			wantMode:    "naive",
			wantStorage: true,
		},
		{
			name:        "scan mode and no storage",
			env:         map[string]string{"KIWI_SCAN_MODE": "string-aware", "KIWI_NO_STORAGE": "TRUE"},
			wantBase:    "http://127.0.0.1:8080",
			wantMode:    "string-aware",
			wantStorage: false,
		},
		{
			name:        "no storage zero",
			env:         map[string]string{"KIWI_NO_STORAGE": "0"},
			wantBase:    "http://127.0.0.1:8080",
			wantMode:    "naive",
			wantStorage: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg := Default()
			cfg.ApplyEnvOverrides()

			if cfg.API.BaseURL != tc.wantBase {
				t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, tc.wantBase)
			}
			if cfg.Chat.ScanMode != tc.wantMode {
				t.Errorf("ScanMode = %q, want %q", cfg.Chat.ScanMode, tc.wantMode)
			}
			if cfg.Storage.Enabled != tc.wantStorage {
				t.Errorf("Storage.Enabled = %v, want %v", cfg.Storage.Enabled, tc.wantStorage)
			}
		})
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no scheme", func(c *Config) { c.API.BaseURL = "localhost:8080" }, "api.base_url"},
		{"ftp", func(c *Config) { c.API.BaseURL = "ftp://host" }, "api.base_url"},
		{"timeout", func(c *Config) { c.API.TimeoutSecs = 0 }, "api.timeout_secs"},
		{"scan mode", func(c *Config) { c.Chat.ScanMode = "json" }, "chat.scan_mode"},
		{"rate", func(c *Config) { c.Chat.SendRatePerSec = -1 }, "chat.send_rate_per_sec"},
		{"burst", func(c *Config) { c.Chat.SendBurst = 0 }, "chat.send_burst"},
		{"sentinel", func(c *Config) { c.Chat.Sentinel = " " }, "chat.sentinel"},
		{"style", func(c *Config) { c.UI.Style = "neon" }, "ui.style"},
		{"wrap", func(c *Config) { c.UI.WordWrap = -5 }, "ui.word_wrap"},
		{"max conversations", func(c *Config) { c.Storage.MaxConversations = -1 }, "storage.max_conversations"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()

			if tc.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			verrs, ok := err.(ValidateErrors)
			if !ok || len(verrs) != 1 {
				t.Fatalf("Validate() = %v, want one error", err)
			}
			if verrs[0].Field != tc.field {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tc.field)
			}
		})
	}
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://guide.example.nz"
	cfg.Storage.Enabled = false
	cfg.Chat.Suggestions = []string{"Franz Josef glacier walks?"}

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL || loaded.Storage.Enabled {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if len(loaded.Chat.Suggestions) != 1 || loaded.Chat.Suggestions[0] != "Franz Josef glacier walks?" {
		t.Errorf("Suggestions = %v", loaded.Chat.Suggestions)
	}
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.UI.WordWrap = 72
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.UI.WordWrap != 72 {
		t.Errorf("UI.WordWrap = %d, want 72", loaded.UI.WordWrap)
	}
}

func TestString_IsTOML(t *testing.T) {
	out := Default().String()
	for _, want := range []string{"[api]", "base_url = ", "[chat]", "[storage]"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q", want)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Chat.Suggestions[0] = "changed"
	clone.API.BaseURL = "http://other"

	if cfg.Chat.Suggestions[0] == "changed" || cfg.API.BaseURL == "http://other" {
		t.Error("Clone should not share state")
	}
}

// =============================================================================
// GLOBAL TESTS
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestSetGlobal_BeforeFirstLoad(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	custom := Default()
	custom.API.BaseURL = "http://custom:1"
	SetGlobal(custom)

	if got := Global().API.BaseURL; got != "http://custom:1" {
		t.Errorf("Global().API.BaseURL = %q, want the value set", got)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[api]\nbase_url = \"http://one:1\"\n")

	changes := make(chan *Config, 4)
	w, err := Watch(path, 50*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	writeFile(t, path, "[api]\nbase_url = \"http://two:2\"\n")

	select {
	case cfg := <-changes:
		if cfg.API.BaseURL != "http://two:2" {
			t.Errorf("reloaded BaseURL = %q", cfg.API.BaseURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	called := make(chan struct{}, 1)
	w, err := Watch(path, 20*time.Millisecond, func(*Config, error) {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")

	select {
	case <-called:
		t.Error("change to another file triggered a reload")
	case <-time.After(300 * time.Millisecond):
	}
}

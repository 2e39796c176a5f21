// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for kiwitrails.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Backend base URL, chat path and timeout
//   - ChatConfig: Greeting, suggestions, throttling and stream framing
//   - UIConfig: Markdown rendering and style
//   - StorageConfig: Transcript history database
//   - Watcher: Debounced reload on file change
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (KIWI_*, VITE_API_BASE_URL)
//   - ~/.kiwitrails/config.toml
//   - ~/.kiwitrails/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	base := cfg.API.BaseURL
//	mode := cfg.Chat.ParsedScanMode()
package config

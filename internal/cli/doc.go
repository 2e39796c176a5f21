// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the kiwitrails command line.
//
// Commands are built with cobra. Running kiwitrails with no command starts
// an interactive chat.
//
// # Commands Overview
//
//   - chat: Interactive chat with streamed replies and suggestions
//   - ask: Single question; --json prints the result object
//   - status: Backend reachability check
//   - debug: GET an endpoint and print the decoded response (json or yaml)
//   - history: list, search, show and delete saved conversations
//   - config: show, path and init
//   - version: Build information
//
// # Global Flags
//
//	--config PATH        Config file (default ~/.kiwitrails/config.toml)
//	--base-url URL       Backend base URL
//	--scan-mode MODE     naive or string-aware reply framing
//	--no-history         Do not read or write saved conversations
//	-v, --verbose        Log requests to stderr
//
// # Exit Codes
//
// Errors map to exit codes through GetExitCode: 2 for usage errors, 3 for
// invalid configuration, 5 for an unreachable backend, 7 for an unknown
// conversation, 8 for timeouts and 130 when the user stops a reply.
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across kiwitrails.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: display-width aware truncation for log lines and listings
//   - PadRight: pad to a display width (CJK and emoji safe)
//   - SingleLine: collapse whitespace so previews fit on one line
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.TruncateWidth(util.SingleLine(reply), 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util

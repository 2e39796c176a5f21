// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replystream

import (
	"fmt"
	"strings"
)

// =============================================================================
// SCAN MODE
// =============================================================================

// ScanMode selects how the decoder finds object boundaries in the buffer.
type ScanMode int

const (
	// ScanNaive counts every '{' and '}' regardless of context.
	ScanNaive ScanMode = iota

	// ScanStringAware ignores braces inside JSON string literals and resets
	// the depth counter when a stray '}' would take it below zero.
	ScanStringAware
)

// String returns the config spelling of the mode.
func (m ScanMode) String() string {
	switch m {
	case ScanNaive:
		return "naive"
	case ScanStringAware:
		return "string-aware"
	default:
		return fmt.Sprintf("ScanMode(%d)", int(m))
	}
}

// ParseScanMode parses the config spelling of a scan mode.
// An empty string selects ScanNaive.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "naive":
		return ScanNaive, nil
	case "string-aware", "string_aware", "strict":
		return ScanStringAware, nil
	default:
		return ScanNaive, fmt.Errorf("unknown scan mode %q (want naive or string-aware)", s)
	}
}

// =============================================================================
// SPAN SCANNING
// =============================================================================

// span is a half-open byte range [start, end) of a candidate object.
type span struct {
	start int
	end   int
}

// scanResult is the outcome of one pass over the pending buffer.
type scanResult struct {
	spans []span

	// cut is the index just past the last closing brace seen in the pass,
	// or -1 when the pass saw none. Everything before cut is discarded.
	cut int
}

// scan runs one pass over buf using the given mode.
func scan(buf string, mode ScanMode) scanResult {
	if mode == ScanStringAware {
		return scanStringAware(buf)
	}
	return scanNaive(buf)
}

// scanNaive is a plain brace counter. A '{' seen at depth 0 opens a
// candidate; the '}' that brings depth back to 0 closes it. Depth is not
// clamped, so a stray '}' leaves it negative for the rest of the pass.
// The cut point is the last '}' in the buffer, whether or not it closed a
// candidate.
func scanNaive(buf string) scanResult {
	res := scanResult{cut: -1}
	depth := 0
	start := 0

	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 {
				res.spans = append(res.spans, span{start: start, end: i + 1})
			}
		}
	}

	if last := strings.LastIndexByte(buf, '}'); last >= 0 {
		res.cut = last + 1
	}
	return res
}

// scanStringAware frames objects like scanNaive but skips string literals
// inside objects and never lets depth go negative. Only structural closing
// braces move the cut point, so a '}' inside the string of an unterminated
// object is kept for the next pass.
func scanStringAware(buf string) scanResult {
	res := scanResult{cut: -1}
	depth := 0
	start := 0
	inString := false
	escaped := false

	for i := 0; i < len(buf); i++ {
		c := buf[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			// Quotes outside any object are noise, not string openers
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			res.cut = i + 1
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				res.spans = append(res.spans, span{start: start, end: i + 1})
			}
		}
	}
	return res
}

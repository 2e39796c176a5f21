// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replystream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func spanText(buf string, res scanResult) []string {
	out := make([]string, 0, len(res.spans))
	for _, sp := range res.spans {
		out = append(out, buf[sp.start:sp.end])
	}
	return out
}

func TestScanNaive(t *testing.T) {
	tests := []struct {
		name  string
		buf   string
		spans []string
		cut   int
	}{
		{"empty", "", []string{}, -1},
		{"no braces", "OK", []string{}, -1},
		{"one object", `{"a":1}`, []string{`{"a":1}`}, 7},
		{"nested", `{"a":{"b":2}}x`, []string{`{"a":{"b":2}}`}, 13},
		{"partial tail", `{"a":1}{"b"`, []string{`{"a":1}`}, 7},
		{"unterminated", `{"a":{"b":2}`, []string{}, 12},
		{"stray close first", `}{"a":1}`, []string{}, 8},
		{"brace in string", `{"a":"}"}`, []string{`{"a":"}`}, 9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := scanNaive(tc.buf)
			assert.Equal(t, tc.spans, spanText(tc.buf, res))
			assert.Equal(t, tc.cut, res.cut)
		})
	}
}

func TestScanStringAware(t *testing.T) {
	tests := []struct {
		name  string
		buf   string
		spans []string
		cut   int
	}{
		{"one object", `{"a":1}`, []string{`{"a":1}`}, 7},
		{"brace in string", `{"a":"}"}`, []string{`{"a":"}"}`}, 9},
		{"escaped quote", `{"a":"\"}"}`, []string{`{"a":"\"}"}`}, 11},
		{"stray close first", `}{"a":1}`, []string{`{"a":1}`}, 8},
		{"quote outside object", `"{"a":1}`, []string{`{"a":1}`}, 8},
		{"open string", `{"a":"x}`, []string{}, -1},
		{"unterminated nested", `{"a":{"b":2}`, []string{}, 12},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := scanStringAware(tc.buf)
			assert.Equal(t, tc.spans, spanText(tc.buf, res))
			assert.Equal(t, tc.cut, res.cut)
		})
	}
}

func TestScanModeString(t *testing.T) {
	assert.Equal(t, "naive", ScanNaive.String())
	assert.Equal(t, "string-aware", ScanStringAware.String())
	assert.Equal(t, "ScanMode(7)", ScanMode(7).String())
}

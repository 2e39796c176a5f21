// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render formats replies and debug output for the terminal.
//
// Markdown goes through glamour with line breaks preserved, since guides
// write itineraries as one stop per line. Structured debug output is
// colored with chroma. Both fall back to the input text when color is off
// or rendering fails, so piped output stays clean.
package render

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// DefaultWordWrap is used when no width is configured or detected.
const DefaultWordWrap = 80

// Options configures a Renderer.
type Options struct {
	// Style is "auto", "dark", "light" or "notty"
	Style string
	// WordWrap is the wrap width (<= 0 uses DefaultWordWrap)
	WordWrap int
	// Plain disables markdown rendering entirely
	Plain bool
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Renderer renders markdown replies. It is safe for concurrent use.
type Renderer struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

// New builds a Renderer. If glamour cannot be initialized the renderer
// passes text through unchanged.
func New(opts Options) *Renderer {
	if opts.Plain {
		return &Renderer{}
	}

	wrap := opts.WordWrap
	if wrap <= 0 {
		wrap = DefaultWordWrap
	}

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(StyleName(opts.Style)),
		glamour.WithWordWrap(wrap),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{tr: tr}
}

// Enabled reports whether markdown is actually rendered.
func (r *Renderer) Enabled() bool {
	return r != nil && r.tr != nil
}

// Markdown renders content, returning it unchanged when disabled or on error.
func (r *Renderer) Markdown(content string) string {
	if !r.Enabled() || strings.TrimSpace(content) == "" {
		return content
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rendered, err := r.tr.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// StyleName resolves a configured style to a glamour standard style.
// "auto" picks dark or light from the terminal background.
func StyleName(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "dark":
		return "dark"
	case "light":
		return "light"
	case "notty":
		return "notty"
	default:
		if termenv.HasDarkBackground() {
			return "dark"
		}
		return "light"
	}
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight colors code for a 256-color terminal. With color off, or for an
// unknown language, it returns code unchanged.
func Highlight(code, language string, color bool) string {
	if !color || code == "" {
		return code
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err != nil {
		return code
	}
	return buf.String()
}

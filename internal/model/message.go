// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/kiwitrails/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Guide"
	default:
		return string(r)
	}
}

// Valid reports whether r is a role the chat backend accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// CONTENT TYPE
// =============================================================================

// Content is the body of a turn. Plain turns carry only Text and encode as a
// JSON string. Image turns also carry ImageURL and encode as
// [{"text": ...}, {"image_url": {"url": ...}}].
type Content struct {
	Text     string
	ImageURL string
}

// Text returns plain text content.
func Text(s string) Content {
	return Content{Text: s}
}

// Image returns an image-bearing turn with a caption.
func Image(text, url string) Content {
	return Content{Text: text, ImageURL: url}
}

// IsImage reports whether the content carries an image.
func (c Content) IsImage() bool {
	return c.ImageURL != ""
}

// IsEmpty reports whether the content has neither text nor an image.
func (c Content) IsEmpty() bool {
	return c.Text == "" && c.ImageURL == ""
}

// String returns the text for display, with a marker for any image.
func (c Content) String() string {
	if c.ImageURL == "" {
		return c.Text
	}
	if c.Text == "" {
		return "[image: " + c.ImageURL + "]"
	}
	return c.Text + " [image: " + c.ImageURL + "]"
}

type textPart struct {
	Text string `json:"text"`
}

type imageURL struct {
	URL string `json:"url"`
}

type imagePart struct {
	ImageURL imageURL `json:"image_url"`
}

// contentPart accepts either shape of array element when decoding.
type contentPart struct {
	Text     *string   `json:"text"`
	ImageURL *imageURL `json:"image_url"`
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.IsImage() {
		return json.Marshal(c.Text)
	}
	return json.Marshal([]any{
		textPart{Text: c.Text},
		imagePart{ImageURL: imageURL{URL: c.ImageURL}},
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a string, null, or
// an array of text and image_url parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Content{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}

	var parts []contentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or a list of parts: %w", err)
	}

	var text strings.Builder
	for _, p := range parts {
		if p.Text != nil {
			text.WriteString(*p.Text)
		}
		if p.ImageURL != nil && c.ImageURL == "" {
			c.ImageURL = p.ImageURL.URL
		}
	}
	c.Text = text.String()
	return nil
}

// =============================================================================
// WIRE MESSAGE
// =============================================================================

// WireMessage is one {role, content} pair of the history sent to the backend.
type WireMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content Content `json:"content"`

	// Error marks an assistant turn whose request failed; Content holds the
	// apology shown in its place.
	Error bool `json:"error,omitempty"`

	// Local marks client-side turns such as the greeting. They are shown but
	// never sent to the backend.
	Local bool `json:"local,omitempty"`

	// Streaming state (not persisted)
	// Thinking is true until the first fragment arrives.
	Thinking    bool `json:"-"`
	IsStreaming bool `json:"-"`
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	streamContent strings.Builder

	// Performance metrics (for assistant messages)
	TTFT          time.Duration `json:"ttft_ns,omitempty"`
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"`
	Fragments     int           `json:"fragments,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content Content) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new plain-text user message.
func NewUserMessage(text string) *Message {
	return NewMessage(RoleUser, Text(text))
}

// NewGreeting creates the local assistant greeting.
func NewGreeting(text string) *Message {
	msg := NewMessage(RoleAssistant, Text(text))
	msg.Local = true
	return msg
}

// NewReplyPlaceholder creates an empty assistant message awaiting fragments.
func NewReplyPlaceholder() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		Thinking:    true,
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendFragment appends reply text to a streaming message.
func (m *Message) AppendFragment(fragment string) {
	if !m.IsStreaming || fragment == "" {
		return
	}
	if m.Thinking {
		m.Thinking = false
		m.TTFT = time.Since(m.Timestamp)
	}
	m.streamContent.WriteString(fragment)
	m.Fragments++
}

// FinalizeStream moves the streamed text into Content.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = Text(m.streamContent.String())
	m.streamContent.Reset()
	m.IsStreaming = false
	m.Thinking = false
	m.TotalDuration = time.Since(m.Timestamp)
}

// DisplayText returns the text to display (streaming or final).
func (m *Message) DisplayText() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content.String()
}

// Preview returns a truncated single-line preview of the message.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SingleLine(m.DisplayText()), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content.IsEmpty() && m.streamContent.Len() == 0
}

// Wire returns the message as a history entry for the backend.
func (m *Message) Wire() WireMessage {
	return WireMessage{Role: m.Role, Content: m.Content}
}

// FormatStats returns a short timing summary for a completed reply.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.TotalDuration == 0 {
		return ""
	}
	return fmt.Sprintf("%s | %d fragments | first text %s",
		m.TotalDuration.Round(time.Millisecond),
		m.Fragments,
		m.TTFT.Round(time.Millisecond))
}

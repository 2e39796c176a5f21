// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages is the maximum number of messages to keep in conversation history.
// When exceeded, the oldest turns after the greeting are pruned.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat transcript: an optional local greeting followed
// by alternating user and assistant turns.
//
// A Conversation is not safe for concurrent use; the chat session guards it.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages
	Messages []*Message `json:"messages"`

	greeting string
}

// NewConversation creates a conversation that opens with the given greeting.
// An empty greeting starts the transcript empty.
func NewConversation(greeting string) *Conversation {
	c := &Conversation{greeting: greeting}
	c.reset()
	return c
}

// reset starts a fresh transcript with a new identity.
func (c *Conversation) reset() {
	now := time.Now()
	c.ID = uuid.NewString()
	c.Title = ""
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Messages = make([]*Message, 0, 8)
	if c.greeting != "" {
		c.Messages = append(c.Messages, NewGreeting(c.greeting))
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage adds a message to the conversation.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.pruneOldMessages()
}

// AddUser appends a plain-text user turn.
func (c *Conversation) AddUser(text string) *Message {
	msg := NewUserMessage(text)
	c.AddMessage(msg)
	return msg
}

// AddUserContent appends a user turn with arbitrary content.
func (c *Conversation) AddUserContent(content Content) *Message {
	msg := NewMessage(RoleUser, content)
	c.AddMessage(msg)
	return msg
}

// BeginReply appends a thinking placeholder for the assistant's reply.
func (c *Conversation) BeginReply() *Message {
	msg := NewReplyPlaceholder()
	c.AddMessage(msg)
	return msg
}

// PendingReply returns the in-progress assistant reply, or nil.
func (c *Conversation) PendingReply() *Message {
	last := c.LastMessage()
	if last != nil && last.IsStreaming {
		return last
	}
	return nil
}

// AppendToReply appends a fragment to the in-progress reply.
func (c *Conversation) AppendToReply(fragment string) {
	if reply := c.PendingReply(); reply != nil {
		reply.AppendFragment(fragment)
	}
}

// CompleteReply finalizes the in-progress reply. When no fragment was
// streamed the fallback text becomes the reply.
func (c *Conversation) CompleteReply(fallback string) *Message {
	reply := c.PendingReply()
	if reply == nil {
		return nil
	}
	reply.FinalizeStream()
	if reply.Content.IsEmpty() {
		reply.Content = Text(fallback)
	}
	c.UpdatedAt = time.Now()
	return reply
}

// FailReply replaces the in-progress reply with the apology and marks it as
// an error turn. Any partial text is discarded.
func (c *Conversation) FailReply(apology string) *Message {
	reply := c.PendingReply()
	if reply == nil {
		return nil
	}
	reply.FinalizeStream()
	reply.Content = Text(apology)
	reply.Error = true
	c.UpdatedAt = time.Now()
	return reply
}

// CancelReply ends the in-progress reply without an error. A placeholder
// that received no text is removed; partial text is kept.
func (c *Conversation) CancelReply() {
	reply := c.PendingReply()
	if reply == nil {
		return
	}
	reply.FinalizeStream()
	if reply.IsEmpty() {
		c.Messages = c.Messages[:len(c.Messages)-1]
	}
	c.UpdatedAt = time.Now()
}

// Clear discards the transcript and starts again from the greeting.
func (c *Conversation) Clear() {
	c.reset()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastUserMessage returns the most recent user message.
func (c *Conversation) LastUserMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i]
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// HasExchanges reports whether the user has said anything yet.
func (c *Conversation) HasExchanges() bool {
	return c.LastUserMessage() != nil
}

// Greeting returns the greeting text the conversation opens with.
func (c *Conversation) Greeting() string {
	return c.greeting
}

// =============================================================================
// WIRE CONVERSION
// =============================================================================

// Wire converts the transcript to the history sent with each request. Local
// turns, error apologies, in-progress replies and empty turns are skipped.
func (c *Conversation) Wire() []WireMessage {
	history := make([]WireMessage, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Local || msg.Error || msg.IsStreaming || !msg.Role.Valid() {
			continue
		}
		if msg.Content.IsEmpty() {
			continue
		}
		history = append(history, msg.Wire())
	}
	return history
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user message if not set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

// Preview returns a short preview of the conversation.
func (c *Conversation) Preview() string {
	if last := c.LastUserMessage(); last != nil {
		return last.Preview(100)
	}
	if len(c.Messages) == 0 {
		return "Empty conversation"
	}
	return c.Messages[0].Preview(100)
}

// GetMeta returns metadata about the conversation.
func (c *Conversation) GetMeta() ConversationMeta {
	return ConversationMeta{
		ID:           c.ID,
		Title:        c.GetTitle(),
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Preview:      c.Preview(),
	}
}

// ConversationMeta holds lightweight metadata for listing.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// pruneOldMessages drops the oldest turns once the transcript exceeds
// MaxMessages. A leading greeting is kept.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}

	var head []*Message
	rest := c.Messages
	if rest[0].Local {
		head, rest = rest[:1], rest[1:]
	}
	keep := MaxMessages - len(head)
	rest = rest[len(rest)-keep:]

	c.Messages = make([]*Message, 0, MaxMessages)
	c.Messages = append(c.Messages, head...)
	c.Messages = append(c.Messages, rest...)
}

// Restore builds a conversation from stored fields, used by storage.
func Restore(id, title, greeting string, createdAt, updatedAt time.Time, messages []*Message) *Conversation {
	if messages == nil {
		messages = make([]*Message, 0)
	}
	return &Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Messages:  messages,
		greeting:  greeting,
	}
}

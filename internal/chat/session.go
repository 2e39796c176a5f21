// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jeranaias/kiwitrails/internal/chatapi"
	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/replystream"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// DefaultGreeting opens every conversation. It is never sent.
	DefaultGreeting = "Kia ora! I’m your New Zealand travel guide. Tell me your dates, budget, transport, and interests, and I’ll plan a route."

	// DefaultApology replaces a reply whose request failed.
	DefaultApology = "Sorry, something went wrong. Please try again later."

	// DefaultSendRate and DefaultSendBurst throttle sends.
	DefaultSendRate  = 1.0
	DefaultSendBurst = 3
)

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy is returned when a reply is already streaming.
	ErrBusy = errors.New("a reply is already in progress")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Sender delivers a conversation history and streams back the reply.
// *chatapi.Client implements it.
type Sender interface {
	SendChatMessage(ctx context.Context, conversation []model.WireMessage, onFragment replystream.Sink) *chatapi.Result
}

// Recorder persists a conversation after each exchange.
// *storage.Store implements it.
type Recorder interface {
	Save(ctx context.Context, conv *model.Conversation) error
}

// Options configures a Session. The zero value is usable.
type Options struct {
	Greeting string
	Apology  string

	// Suggestions replaces DefaultSuggestions when non-empty.
	Suggestions []string

	// Limiter throttles sends; nil builds one from SendRate and SendBurst.
	Limiter   *rate.Limiter
	SendRate  float64
	SendBurst int

	// Recorder is optional.
	Recorder Recorder

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one chat window: a conversation, the reply in flight, and the
// starter suggestions. It is safe for concurrent use; at most one send is in
// flight at a time.
type Session struct {
	mu       sync.Mutex
	sender   Sender
	conv     *model.Conversation
	apology  string
	limiter  *rate.Limiter
	recorder Recorder
	logger   *log.Logger

	// In-flight request
	sending bool
	cancel  context.CancelFunc

	Suggestions *Suggestions
}

// NewSession creates a session that opens with the greeting.
func NewSession(sender Sender, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}

	greeting := opts.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	apology := opts.Apology
	if apology == "" {
		apology = DefaultApology
	}

	limiter := opts.Limiter
	if limiter == nil {
		r, burst := opts.SendRate, opts.SendBurst
		if r <= 0 {
			r = DefaultSendRate
		}
		if burst <= 0 {
			burst = DefaultSendBurst
		}
		limiter = rate.NewLimiter(rate.Limit(r), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Session{
		sender:      sender,
		conv:        model.NewConversation(greeting),
		apology:     apology,
		limiter:     limiter,
		recorder:    opts.Recorder,
		logger:      logger,
		Suggestions: NewSuggestions(opts.Suggestions, DefaultPageSize),
	}
}

// Send appends a user turn, streams the assistant's reply into the
// conversation and returns the client's Result.
//
// Blank text returns ErrEmptyMessage and a send while another is in flight
// returns ErrBusy; neither changes the conversation. onFragment, if set, is
// called for each fragment after it is appended.
func (s *Session) Send(ctx context.Context, text string, onFragment replystream.Sink) (*chatapi.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.sending = true
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	conv := s.conv
	conv.AddUser(text)
	history := conv.Wire()
	conv.BeginReply()
	sendCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	res := s.sender.SendChatMessage(sendCtx, history, func(fragment string) {
		s.mu.Lock()
		conv.AppendToReply(fragment)
		s.mu.Unlock()
		if onFragment != nil {
			onFragment(fragment)
		}
	})
	if res == nil {
		res = &chatapi.Result{Error: chatapi.MsgNetworkFailed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	s.cancel = nil

	switch {
	case res.Success:
		conv.CompleteReply(res.Data.Reply)
		if last := conv.LastMessage(); last != nil {
			s.logger.Printf("CHAT_REPLY_DONE | conversation=%s stats=%q", conv.ID, last.FormatStats())
		}
	case res.Aborted:
		conv.CancelReply()
	default:
		s.logger.Printf("CHAT_REPLY_FAILED | conversation=%s error=%s", conv.ID, res.Error)
		conv.FailReply(s.apology)
	}

	// A Clear during the send leaves the old conversation unsaved
	if s.recorder != nil && conv == s.conv {
		if err := s.recorder.Save(context.WithoutCancel(ctx), conv); err != nil {
			s.logger.Printf("CONVERSATION_SAVE_FAILED | conversation=%s error=%v", conv.ID, err)
		}
	}
	return res, nil
}

// Cancel aborts the reply in flight, if any. It reports whether there was
// one to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Busy reports whether a reply is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Clear cancels any reply in flight and starts a new conversation from the
// greeting.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.conv = model.NewConversation(s.conv.Greeting())
}

// Resume replaces the conversation with a stored one. It fails with ErrBusy
// while a reply is in flight.
func (s *Session) Resume(conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending {
		return ErrBusy
	}
	s.conv = conv
	return nil
}

// Conversation returns the current conversation. Callers must not modify it
// while a send is in flight.
func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Transcript returns a snapshot of the displayed messages in order.
func (s *Session) Transcript() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]Line, 0, len(s.conv.Messages))
	for _, msg := range s.conv.Messages {
		lines = append(lines, Line{
			Role:     msg.Role,
			Text:     msg.DisplayText(),
			Error:    msg.Error,
			Thinking: msg.Thinking,
		})
	}
	return lines
}

// Line is one displayed message.
type Line struct {
	Role     model.Role
	Text     string
	Error    bool
	Thinking bool
}

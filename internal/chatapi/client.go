// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/replystream"
	"github.com/jeranaias/kiwitrails/internal/util"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://127.0.0.1:8080"

	// DefaultChatPath is the chat endpoint, relative to the base URL.
	DefaultChatPath = "/chatMessage"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration options for the chat API client.
type ClientConfig struct {
	// BaseURL is the backend root (default: http://127.0.0.1:8080)
	BaseURL string

	// ChatPath is the chat endpoint (default: /chatMessage)
	ChatPath string

	// Timeout for non-streaming requests (default: 30s). Streams are
	// bounded only by the caller's context.
	Timeout time.Duration

	// ScanMode selects the reply stream framing (default: naive)
	ScanMode replystream.ScanMode

	// Sentinel overrides the end-of-stream chunk (default: "OK")
	Sentinel string

	// Logger receives request failures (default: log.Default())
	Logger *log.Logger

	// HTTPClient replaces both internal clients when set.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:  DefaultBaseURL,
		ChatPath: DefaultChatPath,
		Timeout:  DefaultTimeout,
		ScanMode: replystream.ScanNaive,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the travel guide chat backend.
//
// The Client is safe for concurrent use; every streamed reply gets its own
// decoder.
//
// Example:
//
//	client := chatapi.NewClient(&chatapi.ClientConfig{BaseURL: "http://localhost:8080"})
//	res := client.SendChatMessage(ctx, conv.Wire(), func(fragment string) {
//	    fmt.Print(fragment)
//	})
//	if !res.Success && !res.Aborted {
//	    log.Println(res.Error)
//	}
type Client struct {
	config       *ClientConfig
	logger       *log.Logger
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client. A nil config uses DefaultConfig.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Copy so defaults never leak into the caller's struct
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatPath == "" {
		cfg.ChatPath = DefaultChatPath
	}
	if !strings.HasPrefix(cfg.ChatPath, "/") {
		cfg.ChatPath = "/" + cfg.ChatPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		config:       &cfg,
		logger:       logger,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
		c.streamClient = cfg.HTTPClient
	}
	return c
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// ChatURL returns the full chat endpoint URL.
func (c *Client) ChatURL() string {
	return c.url(c.config.ChatPath)
}

// url joins the base URL and a path.
func (c *Client) url(path string) string {
	return c.config.BaseURL + path
}

// =============================================================================
// CHAT
// =============================================================================

// SendChatMessage posts the conversation history and streams the reply.
// onFragment is called synchronously for each fragment, in order, and never
// after ctx is cancelled.
//
// The returned Result always describes the outcome: cancellation yields
// Aborted with MsgCancelled, any other failure yields the error text.
func (c *Client) SendChatMessage(ctx context.Context, conversation []model.WireMessage, onFragment replystream.Sink) *Result {
	if conversation == nil {
		return c.failure(ErrInvalidHistory)
	}

	env, err := c.Fetch(ctx, Request{
		Method:       http.MethodPost,
		Path:         c.config.ChatPath,
		Body:         chatRequest{ChatMessage: conversation},
		RequestType:  RequestJSON,
		ResponseType: ResponseStream,
		OnFragment:   onFragment,
	})
	if err != nil {
		return c.failure(err)
	}

	return &Result{
		Success: true,
		Data: &ReplyData{
			Reply:        replyText(env),
			OriginalData: env,
		},
	}
}

// failure converts an error into an unsuccessful Result.
func (c *Client) failure(err error) *Result {
	if IsAborted(err) {
		c.logger.Printf("CHAT_ABORTED | url=%s", c.ChatURL())
		return &Result{Error: MsgCancelled, Aborted: true, Err: err}
	}

	msg := err.Error()
	if msg == "" {
		msg = MsgNetworkFailed
	}
	c.logger.Printf("CHAT_FAILED | url=%s error=%s", c.ChatURL(), util.TruncateWidth(msg, 200))
	return &Result{Error: msg, Err: err}
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// transportError classifies a failure to complete the round trip.
func transportError(ctx context.Context, err error) *ClientError {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &ClientError{Type: ErrTypeAborted, Message: MsgCancelled, Cause: ctx.Err()}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTransport, Message: "request timed out", Cause: err}
	default:
		return &ClientError{Type: ErrTypeTransport, Message: "request failed", Cause: err}
	}
}

// streamFailure classifies an error returned by the reply decoder.
func streamFailure(err error) *ClientError {
	var streamErr *replystream.StreamError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTransport, Message: "request timed out", Cause: err}
	case errors.Is(err, replystream.ErrAborted):
		return &ClientError{Type: ErrTypeAborted, Message: MsgCancelled, Cause: err}
	case errors.As(err, &streamErr):
		return &ClientError{Type: ErrTypeTransport, Message: "stream interrupted", Cause: streamErr.Err}
	default:
		return &ClientError{Type: ErrTypeUnknown, Message: "stream failed", Cause: err}
	}
}

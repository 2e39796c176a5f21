// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"encoding/json"

	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/replystream"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RequestType selects how Request.Body is encoded.
type RequestType int

const (
	// RequestJSON marshals Body as JSON and sets Content-Type.
	RequestJSON RequestType = iota
	// RequestRaw sends Body (string, []byte or io.Reader) unchanged.
	RequestRaw
)

// ResponseType selects how a successful response body is read.
type ResponseType int

const (
	// ResponseJSON and ResponseText both decide by the response
	// Content-Type: JSON bodies are decoded, anything else is wrapped as text.
	ResponseJSON ResponseType = iota
	ResponseText
	// ResponseStream decodes the body as a reply stream.
	ResponseStream
)

// Request describes one call made through Fetch.
type Request struct {
	// Method defaults to POST.
	Method string

	// Path is appended to the client's base URL.
	Path string

	Body         any
	RequestType  RequestType
	ResponseType ResponseType

	// OnFragment receives reply fragments when ResponseType is ResponseStream.
	OnFragment replystream.Sink
}

// chatRequest is the body of a chat message request.
type chatRequest struct {
	ChatMessage []model.WireMessage `json:"chatMessage"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// Envelope is the backend's standard response wrapper. Text and stream
// responses are wrapped in one locally.
type Envelope struct {
	Data        any    `json:"data"`
	Msg         string `json:"msg"`
	Error       any    `json:"error"`
	ServiceCode int    `json:"serviceCode"`
	Code        int    `json:"code"`

	// Alternate reply fields some JSON responses use.
	Content any `json:"content,omitempty"`
	Message any `json:"message,omitempty"`

	// Raw is the undecoded body of a JSON response.
	Raw json.RawMessage `json:"-"`

	// Stream holds decoder statistics for stream responses.
	Stream *replystream.Result `json:"-"`
}

// Messages placed in locally built envelopes.
const (
	msgTextResponse   = "Text response"
	msgStreamComplete = "Streaming response completed"
)

// textEnvelope wraps a successful non-JSON body.
func textEnvelope(text string) *Envelope {
	return &Envelope{Data: text, Msg: msgTextResponse, Code: 200}
}

// streamEnvelope wraps the reply assembled from a stream.
func streamEnvelope(res *replystream.Result) *Envelope {
	return &Envelope{Data: res.Reply, Msg: msgStreamComplete, Code: 200, Stream: res}
}

// decodeEnvelope decodes a JSON body. Objects populate the known fields;
// any other JSON value becomes Data.
func decodeEnvelope(body []byte) (*Envelope, error) {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, err
	}

	env := &Envelope{Raw: json.RawMessage(body)}
	obj, ok := value.(map[string]any)
	if !ok {
		env.Data = value
		return env, nil
	}

	env.Data = obj["data"]
	env.Error = obj["error"]
	env.Content = obj["content"]
	env.Message = obj["message"]
	if msg, ok := obj["msg"].(string); ok {
		env.Msg = msg
	}
	if n, ok := obj["serviceCode"].(float64); ok {
		env.ServiceCode = int(n)
	}
	if n, ok := obj["code"].(float64); ok {
		env.Code = int(n)
	}
	return env, nil
}

// replyText picks the reply from an envelope: the first non-empty string of
// data, content and message, else the fallback.
func replyText(env *Envelope) string {
	if env == nil {
		return MsgUnclearQuestion
	}
	for _, v := range []any{env.Data, env.Content, env.Message} {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return MsgUnclearQuestion
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result is the outcome of SendChatMessage. It never carries a Go error
// across the boundary; failures are described by Success, Error and Aborted.
type Result struct {
	Success bool       `json:"success"`
	Data    *ReplyData `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
	Aborted bool       `json:"aborted,omitempty"`

	// Err is the underlying error for callers that need its type.
	Err error `json:"-"`
}

// ReplyData is the payload of a successful Result.
type ReplyData struct {
	Reply        string    `json:"reply"`
	OriginalData *Envelope `json:"originalData"`
}

// DebugResult is the outcome of DebugEndpoint.
type DebugResult struct {
	Success bool         `json:"success" yaml:"success"`
	Details DebugDetails `json:"details" yaml:"details"`
}

// DebugDetails describes the response of a probed endpoint.
type DebugDetails struct {
	Status      int    `json:"status,omitempty" yaml:"status,omitempty"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Data        any    `json:"data,omitempty" yaml:"data,omitempty"`
	URL         string `json:"url" yaml:"url"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

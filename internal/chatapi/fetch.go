// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jeranaias/kiwitrails/internal/replystream"
)

// maxBodySize bounds buffered (non-stream) response bodies.
const maxBodySize = 10 << 20

// =============================================================================
// FETCH
// =============================================================================

// Fetch performs one request against the backend and reads the response
// according to req.ResponseType.
//
// Non-2xx responses become ErrTypeHTTPStatus errors whose message depends on
// the status and the msg field of the error body. Successful JSON responses
// are returned whole; other bodies are wrapped in a text Envelope. Streams
// are decoded with a fresh replystream.Decoder and returned as an Envelope
// whose Data is the full reply.
func (c *Client) Fetch(ctx context.Context, req Request) (*Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	body, err := encodeBody(method, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	if req.RequestType == RequestJSON {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := c.httpClient
	if req.ResponseType == ResponseStream {
		client = c.streamClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp)
	}

	if req.ResponseType == ResponseStream {
		return c.readStream(ctx, resp.Body, req.OnFragment)
	}
	return readBuffered(ctx, resp)
}

// encodeBody builds the request body. GET requests and nil bodies send none.
func encodeBody(method string, req Request) (io.Reader, error) {
	if req.Body == nil || method == http.MethodGet {
		return nil, nil
	}

	if req.RequestType == RequestJSON {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
		}
		return bytes.NewReader(data), nil
	}

	switch b := req.Body.(type) {
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		return nil, &ClientError{
			Type:    ErrTypeInvalidRequest,
			Message: fmt.Sprintf("raw request body must be string, []byte or io.Reader, got %T", req.Body),
		}
	}
}

// =============================================================================
// RESPONSE READING
// =============================================================================

// isJSON reports whether a Content-Type header names JSON.
func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// errorFromResponse reads a non-2xx body and maps it to a ClientError.
func errorFromResponse(resp *http.Response) *ClientError {
	return statusError(resp.StatusCode, errorBodyMessage(resp))
}

// errorBodyMessage extracts the msg of an error body. JSON bodies yield their
// msg field, other bodies their full text. Unreadable or malformed bodies
// yield MsgResponseFormat.
func errorBodyMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return MsgResponseFormat
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return string(data)
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return MsgResponseFormat
	}
	msg, _ := body["msg"].(string)
	return msg
}

// readBuffered reads a complete successful body.
func readBuffered(ctx context.Context, resp *http.Response) (*Envelope, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return textEnvelope(string(data)), nil
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeResponseFormat, Message: MsgUnparseableJSON, Cause: err}
	}
	return env, nil
}

// readStream decodes a reply stream.
func (c *Client) readStream(ctx context.Context, body io.Reader, onFragment replystream.Sink) (*Envelope, error) {
	dec := replystream.NewDecoder(&replystream.Options{
		Mode:     c.config.ScanMode,
		Sentinel: c.config.Sentinel,
		Logger:   c.logger,
	})

	res, err := dec.Run(ctx, body, onFragment)
	if err != nil {
		return nil, streamFailure(err)
	}
	return streamEnvelope(res), nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// =============================================================================
// HEALTH CHECK
// =============================================================================

// TestConnection reports whether a GET of the chat endpoint returns 2xx.
func (c *Client) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ChatURL(), nil)
	if err != nil {
		c.logger.Printf("CONNECTION_TEST_FAILED | url=%s error=%v", c.ChatURL(), err)
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("CONNECTION_TEST_FAILED | url=%s error=%v", c.ChatURL(), err)
		return false
	}
	defer drainAndClose(resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// =============================================================================
// DEBUG
// =============================================================================

// DebugEndpoint GETs base URL + endpoint and describes the response. JSON
// bodies are decoded; anything else is returned as text. Success mirrors a
// 2xx status.
func (c *Client) DebugEndpoint(ctx context.Context, endpoint string) *DebugResult {
	url := c.url(endpoint)
	fail := func(err error) *DebugResult {
		c.logger.Printf("DEBUG_ENDPOINT_FAILED | url=%s error=%v", url, err)
		return &DebugResult{Details: DebugDetails{URL: url, Error: err.Error()}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fail(err)
	}

	contentType := resp.Header.Get("Content-Type")
	var payload any = string(data)
	if isJSON(contentType) {
		if err := json.Unmarshal(data, &payload); err != nil {
			return fail(err)
		}
	}

	return &DebugResult{
		Success: resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Details: DebugDetails{
			Status:      resp.StatusCode,
			ContentType: contentType,
			Data:        payload,
			URL:         url,
		},
	}
}

// drainAndClose empties a response body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxBodySize))
	r.Close()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STATUS MAPPING TESTS
// =============================================================================

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        string
	}{
		{"not found", 404, "application/json", `{"msg":"ignored"}`, "Interface not found (404)"},
		{"internal", 500, "text/plain", "boom", "Internal server error"},
		{"not implemented", 501, "", "", "Internal server error"},
		{"bad gateway", 502, "text/html", "<h1>502</h1>", "Internal server error"},
		{"bad request", 400, "application/json", `{"msg":"ignored"}`, "Request parameter error"},
		{"validation with msg", 422, "application/json", `{"msg":"chatMessage is required"}`, "chatMessage is required"},
		{"validation without msg", 422, "application/json", `{"code":422}`, "Parameter validation failed"},
		{"other with json msg", 409, "application/json; charset=utf-8", `{"msg":"conflict"}`, "conflict"},
		{"other with text", 418, "text/plain", "I'm a teapot", "I'm a teapot"},
		{"other empty", 503, "text/plain", "", "HTTP error 503"},
		{"malformed json body", 429, "application/json", `{"msg":`, "Response format error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.contentType != "" {
					w.Header().Set("Content-Type", tc.contentType)
				}
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			env, err := newTestClient(server.URL).Fetch(context.Background(), Request{Path: "/chatMessage"})

			assert.Nil(t, env)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.True(t, IsHTTPStatus(err))
			assert.Equal(t, tc.status, StatusCode(err))
		})
	}
}

// =============================================================================
// BUFFERED RESPONSE TESTS
// =============================================================================

func TestFetch_JSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"regions":["Otago"]},"msg":"success","error":null,"serviceCode":7,"code":200}`)
	}))
	defer server.Close()

	env, err := newTestClient(server.URL).Fetch(context.Background(), Request{Method: http.MethodGet, Path: "/regions"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"regions": []any{"Otago"}}, env.Data)
	assert.Equal(t, "success", env.Msg)
	assert.Equal(t, 7, env.ServiceCode)
	assert.Equal(t, 200, env.Code)
	assert.JSONEq(t, `{"data":{"regions":["Otago"]},"msg":"success","error":null,"serviceCode":7,"code":200}`, string(env.Raw))
}

func TestFetch_JSONArrayResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[1,2]`)
	}))
	defer server.Close()

	env, err := newTestClient(server.URL).Fetch(context.Background(), Request{Method: http.MethodGet})

	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, env.Data)
}

func TestFetch_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "pong")
	}))
	defer server.Close()

	env, err := newTestClient(server.URL).Fetch(context.Background(), Request{
		Method:       http.MethodGet,
		ResponseType: ResponseText,
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", env.Data)
	assert.Equal(t, "Text response", env.Msg)
	assert.Nil(t, env.Error)
	assert.Equal(t, 0, env.ServiceCode)
	assert.Equal(t, 200, env.Code)
}

func TestFetch_MalformedJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), Request{})

	require.Error(t, err)
	assert.True(t, IsResponseFormat(err))
	assert.Contains(t, err.Error(), "Response format error, unable to parse JSON")
}

// =============================================================================
// REQUEST ENCODING TESTS
// =============================================================================

func TestFetch_RawBody(t *testing.T) {
	var gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody, gotType = string(data), r.Header.Get("Content-Type")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), Request{
		Path:        "/upload",
		Body:        []byte("raw payload"),
		RequestType: RequestRaw,
	})

	require.NoError(t, err)
	assert.Equal(t, "raw payload", gotBody)
	assert.Empty(t, gotType)
}

func TestFetch_RawBodyUnsupportedType(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Fetch(context.Background(), Request{
		Body:        42,
		RequestType: RequestRaw,
	})

	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestFetch_GETSendsNoBody(t *testing.T) {
	var length int64 = -2
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		length = r.ContentLength
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), Request{
		Method: http.MethodGet,
		Body:   map[string]string{"ignored": "yes"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
}

// =============================================================================
// PROBE TESTS
// =============================================================================

func TestTestConnection(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chatMessage", r.URL.Path)
	}))
	defer ok.Close()

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	ctx := context.Background()
	assert.True(t, newTestClient(ok.URL).TestConnection(ctx))
	assert.False(t, newTestClient(missing.URL).TestConnection(ctx))
	assert.False(t, newTestClient(downURL).TestConnection(ctx))
}

func TestDebugEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":"up"}`)
		default:
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, "no such route")
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	t.Run("json", func(t *testing.T) {
		res := client.DebugEndpoint(context.Background(), "/health")
		assert.True(t, res.Success)
		assert.Equal(t, http.StatusOK, res.Details.Status)
		assert.Equal(t, "application/json", res.Details.ContentType)
		assert.Equal(t, map[string]any{"status": "up"}, res.Details.Data)
		assert.Equal(t, server.URL+"/health", res.Details.URL)
	})

	t.Run("text", func(t *testing.T) {
		res := client.DebugEndpoint(context.Background(), "/missing")
		assert.False(t, res.Success)
		assert.Equal(t, http.StatusNotFound, res.Details.Status)
		assert.Equal(t, "no such route", res.Details.Data)
		assert.Empty(t, res.Details.Error)
	})

	t.Run("unreachable", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		url := down.URL
		down.Close()

		res := newTestClient(url).DebugEndpoint(context.Background(), "/health")
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Details.Error)
		assert.Equal(t, url+"/health", res.Details.URL)
		assert.Zero(t, res.Details.Status)
	})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatapi provides the HTTP client for the travel guide chat backend.
//
// The backend accepts the whole conversation history on every request and
// answers with a stream of concatenated JSON objects, which this package
// hands to replystream for decoding.
//
// # Key Types
//
//   - Client: HTTP client for the chat backend
//   - Result: Outcome of SendChatMessage (success, reply, error, aborted)
//   - Envelope: The backend's {data, msg, error, serviceCode, code} wrapper
//   - ClientError: Typed error with ErrorType for handling
//
// # Usage
//
//	client := chatapi.NewClient(nil)
//	res := client.SendChatMessage(ctx, history, func(fragment string) {
//	    fmt.Print(fragment)
//	})
//	switch {
//	case res.Aborted:
//	    // the user pressed stop
//	case !res.Success:
//	    fmt.Println(res.Error)
//	default:
//	    fmt.Println(res.Data.Reply)
//	}
//
// # Status Mapping
//
// Non-2xx responses are reported with fixed messages: 404 "Interface not
// found (404)", 500/501/502 "Internal server error", 400 "Request parameter
// error", 422 the body msg or "Parameter validation failed", and any other
// status the body msg or "HTTP error <status>".
package chatapi

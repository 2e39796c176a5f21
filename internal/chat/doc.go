// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one chat window.
//
// A Session owns the conversation, serializes sends, throttles them with a
// token bucket and turns each chatapi.Result into the matching transcript
// change: a completed reply, an apology marked as an error, or a quietly
// dropped placeholder when the user stops the stream.
//
// # Key Types
//
//   - Session: Conversation plus the reply in flight
//   - Suggestions: Starter questions shown five at a time
//   - Sender: Anything that can stream a reply (chatapi.Client)
//   - Recorder: Optional transcript persistence (storage.Store)
//
// # Usage
//
//	session := chat.NewSession(client, &chat.Options{Recorder: store})
//	res, err := session.Send(ctx, "Two days in Napier?", func(fragment string) {
//	    fmt.Print(fragment)
//	})
package chat

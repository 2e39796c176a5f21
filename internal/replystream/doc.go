// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package replystream decodes the chat backend's streamed reply.
//
// The backend writes a sequence of JSON objects back to back, with no
// delimiter, line framing or length prefix:
//
//	{"data":"Kia "}{"data":"ora"}{"content":"!"}OK
//
// Transport reads split that text at arbitrary points, including inside an
// object and inside a multi-byte character. A Decoder buffers the
// unterminated tail between reads, cuts complete objects out with a brace
// counter, and hands the text of each object to a Sink in arrival order
// while accumulating the full reply.
//
// # Key Types
//
//   - Decoder: per-request decode state (pending buffer, reply accumulator)
//   - Sink: callback invoked synchronously with every non-empty fragment
//   - Result: the accumulated reply plus counters, returned by Run
//   - ScanMode: ScanNaive (default) or ScanStringAware
//
// # Usage
//
//	dec := replystream.NewDecoder(nil)
//	res, err := dec.Run(ctx, resp.Body, func(fragment string) {
//	    fmt.Print(fragment)
//	})
//	if errors.Is(err, replystream.ErrAborted) {
//	    // user pressed stop
//	}
//
// # Scan Modes
//
// ScanNaive counts every brace, including braces inside string values. An
// object whose strings contain literal { or } can desynchronize the counter
// for the rest of that pass. This is how the backend's reference web client
// behaves and it is the default.
//
// ScanStringAware tracks string and escape state so braces inside strings
// are ignored. It changes behavior only for payloads with braces inside
// strings; every other payload decodes identically in both modes.
package replystream

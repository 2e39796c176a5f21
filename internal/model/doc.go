// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: Transcript opening with a local greeting
//   - Message: Single turn with role, content, error and streaming state
//   - Content: Plain text or a captioned image, with its wire encoding
//   - WireMessage: The {role, content} pair sent to the chat backend
//
// # Usage
//
// Track a streamed reply:
//
//	conv := model.NewConversation("Kia ora!")
//	conv.AddUser("Plan three days in Rotorua")
//	conv.BeginReply()
//	conv.AppendToReply("Day 1: ")
//	conv.CompleteReply("Sorry, I cannot understand your question.")
//	history := conv.Wire()
package model

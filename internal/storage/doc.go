// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for kiwitrails.
//
// Conversations are kept in a SQLite database (pure Go driver) with one row
// per conversation and one row per message. Message content is stored in its
// wire encoding alongside a plain-text copy used for previews and search.
//
// # Key Types
//
//   - Store: SQLite-backed conversation store
//   - Config: Database path and retention limit
//   - ConversationError: Not-found and ambiguous-id errors
//
// # Usage
//
//	store, err := storage.Open(&storage.Config{DatabasePath: path})
//	err = store.Save(ctx, conv)
//	metas, err := store.List(ctx)
//	conv, err := store.Load(ctx, metas[0].ID)
//	results, err := store.Search(ctx, "Milford")
//
// # Storage Location
//
// The default database is ~/.kiwitrails/history.db.
package storage

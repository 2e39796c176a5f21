// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/kiwitrails/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func openTestStore(t *testing.T, maxConversations int) *Store {
	t.Helper()
	store, err := Open(&Config{
		DatabasePath:     filepath.Join(t.TempDir(), "nested", "history.db"),
		MaxConversations: maxConversations,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// exchange builds a conversation with one completed user/assistant exchange.
func exchange(question, answer string) *model.Conversation {
	conv := model.NewConversation("Kia ora!")
	conv.AddUser(question)
	conv.BeginReply()
	conv.AppendToReply(answer)
	conv.CompleteReply("fallback")
	return conv
}

// =============================================================================
// SAVE AND LOAD TESTS
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	conv := exchange("Best time to see glowworms?", "Waitomo, all year round.")
	conv.AddUserContent(model.Image("Is this Cathedral Cove?", "https://example.com/cove.jpg"))
	conv.BeginReply()
	conv.FailReply("Sorry, something went wrong. Please try again later.")

	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ID != conv.ID || loaded.Title != conv.Title {
		t.Errorf("identity = (%q, %q), want (%q, %q)", loaded.ID, loaded.Title, conv.ID, conv.Title)
	}
	if loaded.Greeting() != "Kia ora!" {
		t.Errorf("Greeting() = %q", loaded.Greeting())
	}
	if len(loaded.Messages) != len(conv.Messages) {
		t.Fatalf("len(Messages) = %d, want %d", len(loaded.Messages), len(conv.Messages))
	}

	for i, want := range conv.Messages {
		got := loaded.Messages[i]
		if got.ID != want.ID || got.Role != want.Role || got.Content != want.Content {
			t.Errorf("message %d = %+v, want %+v", i, got, want)
		}
		if got.Error != want.Error || got.Local != want.Local {
			t.Errorf("message %d flags = (%v, %v), want (%v, %v)", i, got.Error, got.Local, want.Error, want.Local)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("message %d timestamp = %v, want %v", i, got.Timestamp, want.Timestamp)
		}
	}

	if !loaded.Messages[3].Content.IsImage() {
		t.Error("image content should survive a round trip")
	}
	if len(loaded.Wire()) != len(conv.Wire()) {
		t.Errorf("Wire() length = %d, want %d", len(loaded.Wire()), len(conv.Wire()))
	}
}

func TestStore_SaveReplacesMessages(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	conv := exchange("First question", "First answer")
	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	conv.AddUser("Second question")
	conv.BeginReply() // still streaming, must not be stored
	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 4 {
		t.Errorf("len(Messages) = %d, want 4", len(loaded.Messages))
	}
	if loaded.PendingReply() != nil {
		t.Error("a streaming reply should not be stored")
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	store := openTestStore(t, 0)

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Load error = %v, want ErrConversationNotFound", err)
	}
}

func TestStore_SaveWithoutID(t *testing.T) {
	store := openTestStore(t, 0)
	if err := store.Save(context.Background(), &model.Conversation{}); err == nil {
		t.Error("Save should reject a conversation without an id")
	}
}

// =============================================================================
// LIST AND SEARCH TESTS
// =============================================================================

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	older := exchange("Queenstown in winter?", "Ski season runs June to October.")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := exchange("Ferry to Waiheke?", "Leaves from the downtown terminal.")

	for _, conv := range []*model.Conversation{older, newer} {
		if err := store.Save(ctx, conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(metas))
	}
	if metas[0].ID != newer.ID {
		t.Errorf("first = %q, want newest %q", metas[0].ID, newer.ID)
	}
	if metas[0].MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", metas[0].MessageCount)
	}
	if metas[0].Preview != "Ferry to Waiheke?" {
		t.Errorf("Preview = %q", metas[0].Preview)
	}
}

func TestStore_ListEmpty(t *testing.T) {
	metas, err := openTestStore(t, 0).List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if metas == nil || len(metas) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", metas)
	}
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	hike := exchange("Tongariro crossing tips?", "Start early and pack layers.")
	food := exchange("Where to eat in Kaikoura?", "Try the crayfish caravan, 100% fresh.")
	for _, conv := range []*model.Conversation{hike, food} {
		if err := store.Save(ctx, conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"tongariro", []string{hike.ID}},
		{"LAYERS", []string{hike.ID}},
		{"crayfish", []string{food.ID}},
		{"100%", []string{food.ID}},
		{"%", []string{food.ID}},
		{"_", nil},
		{"bungy", nil},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			metas, err := store.Search(ctx, tc.query)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			var got []string
			for _, m := range metas {
				got = append(got, m.ID)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("Search(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}

	all, err := store.Search(ctx, "  ")
	if err != nil || len(all) != 2 {
		t.Errorf("blank Search() = %d results, err %v; want all 2", len(all), err)
	}
}

// =============================================================================
// DELETE AND LIMIT TESTS
// =============================================================================

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	conv := exchange("Hi", "Kia ora")
	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Load after Delete error = %v", err)
	}
	if err := store.Delete(ctx, conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("second Delete error = %v, want ErrConversationNotFound", err)
	}

	var orphans int
	store.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&orphans)
	if orphans != 0 {
		t.Errorf("%d messages left after Delete", orphans)
	}
}

func TestStore_MaxConversations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 2)

	base := time.Now()
	var ids []string
	for i := 0; i < 3; i++ {
		conv := exchange("question", "answer")
		conv.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Save(ctx, conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, conv.ID)
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(metas))
	}
	if _, err := store.Load(ctx, ids[0]); !errors.Is(err, ErrConversationNotFound) {
		t.Error("oldest conversation should have been pruned")
	}
}

func TestStore_Resolve(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	a := exchange("a", "a")
	a.ID = "abc-111"
	b := exchange("b", "b")
	b.ID = "abd-222"
	for _, conv := range []*model.Conversation{a, b} {
		if err := store.Save(ctx, conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if id, err := store.Resolve(ctx, "abc"); err != nil || id != "abc-111" {
		t.Errorf("Resolve(abc) = %q, %v", id, err)
	}
	if _, err := store.Resolve(ctx, "ab"); !errors.Is(err, ErrAmbiguousID) {
		t.Errorf("Resolve(ab) error = %v, want ErrAmbiguousID", err)
	}
	if _, err := store.Resolve(ctx, "zzz"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Resolve(zzz) error = %v, want ErrConversationNotFound", err)
	}
	if _, err := store.Resolve(ctx, "a_"); !errors.Is(err, ErrConversationNotFound) {
		t.Error("Resolve should treat _ literally")
	}
}

// =============================================================================
// FORMATTING TESTS
// =============================================================================

func TestFormatList(t *testing.T) {
	if got := FormatList(nil); got != "No saved conversations." {
		t.Errorf("FormatList(nil) = %q", got)
	}

	out := FormatList([]model.ConversationMeta{{
		ID:           "0123456789abcdef",
		Title:        "Milford Sound day trip",
		MessageCount: 5,
		UpdatedAt:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}})
	for _, want := range []string{"01234567", "2025-03-01 09:30", "Milford Sound day trip"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatList output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789") {
		t.Error("IDs should be shortened in listings")
	}
}

func TestExportMarkdown(t *testing.T) {
	conv := exchange("Hot pools near Rotorua?", "Try Kerosene Creek.")
	md := ExportMarkdown(conv)

	for _, want := range []string{"# Hot pools near Rotorua?", "**You**", "**Guide**", "Try Kerosene Creek."} {
		if !strings.Contains(md, want) {
			t.Errorf("ExportMarkdown missing %q:\n%s", want, md)
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// DefaultPageSize is how many suggestions are shown at once.
const DefaultPageSize = 5

// DefaultSuggestions are the starter questions offered before the first send.
var DefaultSuggestions = []string{
	"Can I visit Milford Sound on a one-day trip from Queenstown?",
	"What are the best night markets in Auckland's city center?",
	"Is it possible to take a boat on Lake Tekapo?",
	"Plan a 3-day family-friendly trip in Queenstown, please.",
	"What should I do if a tour guide behaves unprofessionally in NZ?",
	"How do I get to Aoraki / Mount Cook without a car?",
	"Which must-see spots are inside the Hobbiton™ Movie Set?",
	"Which Māori cultural experiences are worth it in Rotorua?",
	"Where can I try an authentic hangi or seafood in NZ?",
	"Which small towns near Christchurch are good for a day trip?",
	"Which famous NZ tea brands or local specialties should I buy?",
	"How can I experience local customs and festivals in NZ?",
	"What are the can’t-miss activities in Fiordland National Park?",
	"Beginner-friendly hiking trails around Wellington?",
	"Where are the best spots for wedding/engagement photos in NZ?",
}

// Suggestions pages through a fixed list of starter questions.
type Suggestions struct {
	items    []string
	pageSize int
	offset   int
}

// NewSuggestions creates a pager. An empty list falls back to
// DefaultSuggestions; a non-positive pageSize to DefaultPageSize.
func NewSuggestions(items []string, pageSize int) *Suggestions {
	if len(items) == 0 {
		items = DefaultSuggestions
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Suggestions{
		items:    append([]string(nil), items...),
		pageSize: pageSize,
	}
}

// Page returns the suggestions currently shown.
func (s *Suggestions) Page() []string {
	end := s.offset + s.pageSize
	if end > len(s.items) {
		end = len(s.items)
	}
	return s.items[s.offset:end]
}

// Shuffle advances to the next page, wrapping to the first after the last,
// and returns it.
func (s *Suggestions) Shuffle() []string {
	next := s.offset + s.pageSize
	if next >= len(s.items) {
		next = 0
	}
	s.offset = next
	return s.Page()
}

// Pick returns the n-th (1-based) suggestion of the current page.
func (s *Suggestions) Pick(n int) (string, bool) {
	page := s.Page()
	if n < 1 || n > len(page) {
		return "", false
	}
	return page[n-1], true
}

// Len returns the total number of suggestions.
func (s *Suggestions) Len() int {
	return len(s.items)
}

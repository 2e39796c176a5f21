// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
)

// slashCommands are the chat commands offered when a /command is mistyped.
var slashCommands = []string{
	"/help",
	"/more",
	"/shuffle",
	"/stop",
	"/clear",
	"/history",
	"/quit",
	"/exit",
}

// suggestSlashCommand returns the chat command closest to input, or "" when
// nothing is close enough to be a likely typo.
func suggestSlashCommand(input string) string {
	input = strings.ToLower(input)
	if len(strings.TrimPrefix(input, "/")) < 2 {
		return ""
	}

	// One edit for short names, two from four letters on
	maxDistance := 1
	if len(input) >= 5 {
		maxDistance = 2
	}

	best := ""
	bestDistance := maxDistance + 1
	for _, cmd := range slashCommands {
		d := levenshteinDistance(input, cmd)
		if d == 0 {
			return ""
		}
		if d < bestDistance {
			best, bestDistance = cmd, d
		}
	}
	return best
}

// levenshteinDistance is the number of single-rune insertions, deletions
// or substitutions turning a into b.
func levenshteinDistance(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

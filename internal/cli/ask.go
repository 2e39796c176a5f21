// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command for kiwitrails.
//
// Command: ask <question>
// Short:   Ask the guide one question and print the reply
//
// Examples:
//   kiwitrails ask "Three days in Rotorua on a budget?"
//   kiwitrails ask --json "Best time to walk the Milford Track?"
//
// Flags:
//   --json              Print the result object instead of streaming text

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) newAskCmd() *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the guide one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, strings.Join(args, " "), jsonMode)
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, question string, jsonMode bool) error {
	if strings.TrimSpace(question) == "" {
		return &UsageError{Message: "question must not be blank"}
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	out := cmd.OutOrStdout()
	session := a.newSession(a.newClient(), store)
	renderer := a.newRenderer(out)

	var streamed strings.Builder
	onFragment := func(fragment string) {
		streamed.WriteString(fragment)
		if !jsonMode {
			fmt.Fprint(out, fragment)
		}
	}

	res, err := session.Send(cmd.Context(), question, onFragment)
	if err != nil {
		return err
	}

	if jsonMode {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		if !res.Success {
			return &ReplyError{Result: res}
		}
		return nil
	}

	if !res.Success {
		if streamed.Len() > 0 {
			fmt.Fprintln(out)
		}
		return &ReplyError{Result: res}
	}

	switch {
	case renderer.Enabled():
		if streamed.Len() > 0 {
			eraseStreamed(out, streamed.String(), GetTerminalWidth())
		}
		fmt.Fprint(out, renderer.Markdown(res.Data.Reply))
	case streamed.Len() == 0:
		fmt.Fprintln(out, res.Data.Reply)
	default:
		fmt.Fprintln(out)
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved conversation commands for kiwitrails.
//
// Command: history list|show|search|delete
// Short:   Browse saved conversations
//
// Examples:
//   kiwitrails history list
//   kiwitrails history show 3f2a
//   kiwitrails history search "Milford"
//   kiwitrails history delete 3f2a

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/storage"
)

func (a *app) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse saved conversations",
	}

	var listJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.Store) error {
				metas, err := store.List(commandContext(cmd))
				if err != nil {
					return err
				}
				return a.printMetas(cmd, "history list", metas, listJSON)
			})
		},
	}
	list.Flags().BoolVar(&listJSON, "json", false, "print as JSON")

	var searchJSON bool
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find conversations mentioning a phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.Store) error {
				metas, err := store.Search(commandContext(cmd), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.printMetas(cmd, "history search", metas, searchJSON)
			})
		},
	}
	search.Flags().BoolVar(&searchJSON, "json", false, "print as JSON")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved conversation as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.Store) error {
				ctx := commandContext(cmd)
				id, err := store.Resolve(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				conv, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, a.newRenderer(out).Markdown(storage.ExportMarkdown(conv)))
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.Store) error {
				ctx := commandContext(cmd)
				id, err := store.Resolve(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if err := store.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", SuccessStyle.Render("[OK]"), id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, search, show, del)
	return cmd
}

// withStore opens the history database for the duration of fn.
func (a *app) withStore(fn func(*storage.Store) error) error {
	store, err := a.requireStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) printMetas(cmd *cobra.Command, command string, metas []model.ConversationMeta, jsonMode bool) error {
	out := cmd.OutOrStdout()
	if jsonMode {
		return NewJSONResponse(command, metas).Print(out)
	}
	fmt.Fprint(out, storage.FormatList(metas))
	if len(metas) > 0 {
		fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%d conversation(s)", len(metas))))
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Backend connectivity commands for kiwitrails.
//
// Command: status
// Short:   Check that the guide backend is reachable
//
// Command: debug [endpoint]
// Short:   Fetch an endpoint and describe the response
//
// Examples:
//   kiwitrails status
//   kiwitrails status --json
//   kiwitrails debug /health --output yaml

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/kiwitrails/internal/render"
)

// statusTimeout bounds the connectivity check.
const statusTimeout = 10 * time.Second

// StatusReport is the data printed by the status command.
type StatusReport struct {
	BaseURL   string `json:"base_url"`
	ChatURL   string `json:"chat_url"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latency_ms"`
	ScanMode  string `json:"scan_mode"`
	History   bool   `json:"history"`
}

func (a *app) newStatusCmd() *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check that the guide backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd, jsonMode)
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) runStatus(cmd *cobra.Command, jsonMode bool) error {
	client := a.newClient()

	ctx, cancel := context.WithTimeout(commandContext(cmd), statusTimeout)
	defer cancel()

	start := time.Now()
	ok := client.TestConnection(ctx)
	report := StatusReport{
		BaseURL:   client.BaseURL(),
		ChatURL:   client.ChatURL(),
		Reachable: ok,
		LatencyMs: time.Since(start).Milliseconds(),
		ScanMode:  a.cfg.Chat.ParsedScanMode().String(),
		History:   a.cfg.Storage.Enabled,
	}

	out := cmd.OutOrStdout()
	if jsonMode {
		resp := NewJSONResponse("status", report)
		if !ok {
			resp = NewJSONErrorResponseStr("status", "backend unreachable", report)
		}
		if err := resp.Print(out); err != nil {
			return err
		}
		if !ok {
			return &ReportedError{Message: "backend unreachable"}
		}
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render("kiwitrails status"))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Backend"), report.BaseURL)
	fmt.Fprintf(out, "%s %s %s\n", RenderLabel("Chat endpoint"), report.ChatURL, RenderStatus(ok))
	fmt.Fprintf(out, "%s %dms\n", RenderLabel("Latency"), report.LatencyMs)
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Scan mode"), report.ScanMode)
	fmt.Fprintf(out, "%s %v\n", RenderLabel("History"), report.History)

	if !ok {
		return fmt.Errorf("backend unreachable at %s", report.ChatURL)
	}
	return nil
}

// =============================================================================
// DEBUG
// =============================================================================

func (a *app) newDebugCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "debug [endpoint]",
		Short: "Fetch an endpoint and describe the response",
		Long: `Fetch an endpoint on the backend with GET and print what came back:
status, content type and the decoded body. The endpoint defaults to the
chat path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := a.cfg.API.StreamPath
			if len(args) == 1 {
				endpoint = args[0]
			}
			return a.runDebug(cmd, endpoint, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func (a *app) runDebug(cmd *cobra.Command, endpoint, output string) error {
	output = strings.ToLower(output)
	if output != "json" && output != "yaml" {
		return &UsageError{Message: fmt.Sprintf("unsupported output format %q (want json or yaml)", output)}
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), a.cfg.API.Timeout())
	defer cancel()

	result := a.newClient().DebugEndpoint(ctx, endpoint)

	var data []byte
	var err error
	if output == "yaml" {
		data, err = yaml.Marshal(result)
	} else {
		data, err = json.MarshalIndent(result, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	out := cmd.OutOrStdout()
	color := isTerminalWriter(out) && ColorsEnabled()
	fmt.Fprint(out, render.Highlight(string(data), output, color))

	if !result.Success {
		return &ReportedError{Message: "debug request failed"}
	}
	return nil
}

// commandContext returns the command's context, or Background if unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jeranaias/kiwitrails/internal/chat"
	"github.com/jeranaias/kiwitrails/internal/chatapi"
	"github.com/jeranaias/kiwitrails/internal/config"
	"github.com/jeranaias/kiwitrails/internal/render"
	"github.com/jeranaias/kiwitrails/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	baseURL    string
	scanMode   string
	noHistory  bool
	verbose    bool
}

// app carries the state a command needs once flags are parsed.
type app struct {
	flags globalFlags
	cfg   *config.Config
	log   *log.Logger
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the kiwitrails command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "kiwitrails",
		Short: "Chat with a New Zealand travel guide",
		Long: `kiwitrails - a terminal client for the New Zealand travel guide.

Ask about routes, dates, budgets and things to do. Replies stream in as
the guide writes them, and conversations are saved for later.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, "")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.kiwitrails/config.toml)")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "backend base URL")
	pf.StringVar(&a.flags.scanMode, "scan-mode", "", "reply framing: naive or string-aware")
	pf.BoolVar(&a.flags.noHistory, "no-history", false, "do not read or write saved conversations")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		a.newChatCmd(),
		a.newAskCmd(),
		a.newStatusCmd(),
		a.newDebugCmd(),
		a.newHistoryCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(NewRootCmd())
}

// run executes root and displays any error once.
func run(root *cobra.Command) int {
	cmd, err := root.ExecuteC()
	if err != nil {
		jsonMode := false
		if f := cmd.Flags().Lookup("json"); f != nil {
			jsonMode = f.Value.String() == "true"
		}
		var replyErr *ReplyError
		var reported *ReportedError
		switch {
		case errors.As(err, &reported), jsonMode && errors.As(err, &replyErr):
			// Already part of the command output
		case jsonMode:
			DisplayError(cmd.OutOrStdout(), err, true)
		default:
			DisplayError(cmd.ErrOrStderr(), err, false)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

// setup loads configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.verbose {
		a.log = log.New(cmd.ErrOrStderr(), "kiwitrails: ", log.LstdFlags)
	} else {
		a.log = log.New(io.Discard, "", 0)
	}

	var cfg *config.Config
	var err error
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v (using defaults)\n", WarningStyle.Render("Warning:"), err)
		}
	}

	if a.flags.baseURL != "" {
		cfg.API.BaseURL = a.flags.baseURL
	}
	if a.flags.scanMode != "" {
		cfg.Chat.ScanMode = a.flags.scanMode
	}
	if a.flags.noHistory {
		cfg.Storage.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	config.SetGlobal(cfg)
	return nil
}

// =============================================================================
// COMPONENT WIRING
// =============================================================================

func (a *app) newClient() *chatapi.Client {
	return chatapi.NewClient(&chatapi.ClientConfig{
		BaseURL:  a.cfg.API.BaseURL,
		ChatPath: a.cfg.API.StreamPath,
		Timeout:  a.cfg.API.Timeout(),
		ScanMode: a.cfg.Chat.ParsedScanMode(),
		Sentinel: a.cfg.Chat.Sentinel,
		Logger:   a.log,
	})
}

// openStore opens the history database, or returns nil when history is off.
func (a *app) openStore() (*storage.Store, error) {
	if !a.cfg.Storage.Enabled {
		return nil, nil
	}
	return storage.Open(&storage.Config{
		DatabasePath:     a.cfg.Storage.DatabasePath,
		MaxConversations: a.cfg.Storage.MaxConversations,
	})
}

// requireStore opens the history database, failing when history is off.
func (a *app) requireStore() (*storage.Store, error) {
	if !a.cfg.Storage.Enabled {
		return nil, &UsageError{Message: "conversation history is disabled"}
	}
	return a.openStore()
}

func (a *app) newSession(sender chat.Sender, store *storage.Store) *chat.Session {
	opts := &chat.Options{
		Greeting:    a.cfg.Chat.Greeting,
		Apology:     a.cfg.Chat.Apology,
		Suggestions: a.cfg.Chat.Suggestions,
		SendRate:    a.cfg.Chat.SendRatePerSec,
		SendBurst:   a.cfg.Chat.SendBurst,
		Logger:      a.log,
	}
	if store != nil {
		opts.Recorder = store
	}
	return chat.NewSession(sender, opts)
}

// newRenderer returns a markdown renderer for w, plain unless w is a
// terminal and markdown is enabled.
func (a *app) newRenderer(w io.Writer) *render.Renderer {
	if !a.cfg.UI.RenderMarkdown || !isTerminalWriter(w) {
		return render.New(render.Options{Plain: true})
	}
	wrap := a.cfg.UI.WordWrap
	if wrap <= 0 {
		wrap = GetTerminalWidth() - 4
	}
	return render.New(render.Options{Style: a.cfg.UI.Style, WordWrap: wrap})
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kiwitrails version %s\n", Version)
			fmt.Fprintf(out, "  git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  build date: %s\n", BuildDate)
			fmt.Fprintf(out, "  go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

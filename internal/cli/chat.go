// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command for kiwitrails.
//
// Command: chat
// Short:   Start an interactive chat with the guide
//
// Examples:
//   kiwitrails chat                      Start a new conversation
//   kiwitrails chat --resume 3f2a        Continue a saved conversation
//   kiwitrails chat --scan-mode string-aware
//
// Interactive Commands (during chat):
//   /1 .. /5            Ask a suggested question
//   /more               Show the next page of suggestions
//   /stop               Stop the reply in progress
//   /clear              Start a new conversation
//   /history            Show this conversation
//   /help, /h           Show available commands
//   /quit, /q           Exit chat
//   Ctrl+C              Stop the reply in progress
//   Ctrl+D              Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/kiwitrails/internal/chat"
	"github.com/jeranaias/kiwitrails/internal/config"
	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/render"
	"github.com/jeranaias/kiwitrails/internal/storage"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and closes the liner.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// scanReader reads lines from a non-terminal input such as a pipe.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) ReadInput(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() {}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func (a *app) newChatCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat with the guide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, resume)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "continue a saved conversation (id or prefix)")
	return cmd
}

// chatREPL is one interactive chat.
type chatREPL struct {
	app     *app
	session *chat.Session
	out     io.Writer

	mu       sync.Mutex
	renderer *render.Renderer
}

func (a *app) runChat(cmd *cobra.Command, resume string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	r := &chatREPL{
		app:      a,
		session:  a.newSession(a.newClient(), store),
		out:      cmd.OutOrStdout(),
		renderer: a.newRenderer(cmd.OutOrStdout()),
	}

	if resume != "" {
		if store == nil {
			return &UsageError{Message: "--resume needs conversation history enabled"}
		}
		if err := r.resume(cmd.Context(), store, resume); err != nil {
			return err
		}
	}

	input := a.newLineReader(cmd)
	defer input.Close()

	stopSignals := r.handleSignals()
	defer stopSignals()

	if w := r.watchConfig(); w != nil {
		defer w.Close()
	}

	r.printWelcome()
	return r.loop(cmd.Context(), input)
}

func (a *app) newLineReader(cmd *cobra.Command) lineReader {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		historyFile := filepath.Join(os.TempDir(), "kiwitrails_history")
		if dir, err := config.ConfigDir(); err == nil {
			historyFile = filepath.Join(dir, "chat_history")
		}
		return NewChatCLI(historyFile)
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: cmd.OutOrStdout()}
}

func (r *chatREPL) resume(ctx context.Context, store *storage.Store, prefix string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := store.Resolve(ctx, prefix)
	if err != nil {
		return fmt.Errorf("resume %s: %w", prefix, err)
	}
	conv, err := store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("resume %s: %w", prefix, err)
	}
	return r.session.Resume(conv)
}

// handleSignals makes Ctrl+C stop the reply in progress instead of exiting.
func (r *chatREPL) handleSignals() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		for range sigChan {
			if r.session.Cancel() {
				fmt.Fprintln(r.out, "\n"+WarningStyle.Render("[Stopped]"))
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(sigChan)
	}
}

// watchConfig swaps the renderer when the config file changes.
func (r *chatREPL) watchConfig() *config.Watcher {
	path := r.app.flags.configPath
	if path == "" {
		p, err := config.ActivePath()
		if err != nil {
			return nil
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := config.Watch(path, 0, func(cfg *config.Config, err error) {
		if err != nil {
			r.app.log.Printf("CONFIG_RELOAD_FAILED | path=%s error=%v", path, err)
			return
		}
		config.SetGlobal(cfg)

		r.mu.Lock()
		r.app.cfg.UI = cfg.UI
		r.renderer = r.app.newRenderer(r.out)
		r.mu.Unlock()
		r.app.log.Printf("CONFIG_RELOADED | path=%s", path)
	})
	if err != nil {
		r.app.log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	return w
}

func (r *chatREPL) currentRenderer() *render.Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderer
}

// =============================================================================
// REPL LOOP
// =============================================================================

func (r *chatREPL) loop(ctx context.Context, input lineReader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	prompt := PromptStyle.Render("you> ")

	for {
		line, err := input.ReadInput(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := r.handleSlashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if err := r.send(ctx, line); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// send asks the guide a question and streams the reply.
func (r *chatREPL) send(ctx context.Context, text string) error {
	fmt.Fprintln(r.out, GuideStyle.Render(model.RoleAssistant.DisplayName()))

	var streamed strings.Builder
	res, err := r.session.Send(ctx, text, func(fragment string) {
		fmt.Fprint(r.out, fragment)
		streamed.WriteString(fragment)
	})
	if err != nil {
		if streamed.Len() > 0 {
			fmt.Fprintln(r.out)
		}
		return err
	}

	lines := r.session.Transcript()
	last := lines[len(lines)-1]
	renderer := r.currentRenderer()

	switch {
	case res.Aborted:
		if streamed.Len() > 0 {
			fmt.Fprintln(r.out)
		}
	case !res.Success:
		if streamed.Len() > 0 {
			r.replaceStreamed(streamed.String())
		}
		fmt.Fprintln(r.out, ErrorStyle.Render(last.Text))
	case streamed.Len() == 0:
		fmt.Fprintln(r.out, renderer.Markdown(last.Text))
	case renderer.Enabled():
		r.replaceStreamed(streamed.String())
		fmt.Fprint(r.out, renderer.Markdown(last.Text))
	default:
		fmt.Fprintln(r.out)
	}
	fmt.Fprintln(r.out)
	return nil
}

// replaceStreamed clears raw streamed text on a terminal, or ends the line
// when output is not a terminal.
func (r *chatREPL) replaceStreamed(text string) {
	if isTerminalWriter(r.out) {
		eraseStreamed(r.out, text, GetTerminalWidth())
		return
	}
	fmt.Fprintln(r.out)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a /command. It returns false when chat should end.
func (r *chatREPL) handleSlashCommand(ctx context.Context, input string) (bool, error) {
	name := strings.ToLower(strings.Fields(input)[0])

	if n, ok := suggestionIndex(name); ok {
		question, ok := r.session.Suggestions.Pick(n)
		if !ok {
			return true, fmt.Errorf("no suggestion %d on this page", n)
		}
		fmt.Fprintln(r.out, DimStyle.Render("you> "+question))
		return true, r.send(ctx, question)
	}

	switch name {
	case "/quit", "/q", "/exit":
		return false, nil

	case "/help", "/h", "/?":
		r.printHelp()

	case "/more", "/shuffle":
		r.printSuggestions(r.session.Suggestions.Shuffle())

	case "/stop":
		if !r.session.Cancel() {
			fmt.Fprintln(r.out, DimStyle.Render("Nothing to stop."))
		}

	case "/clear", "/c":
		r.session.Clear()
		fmt.Fprintln(r.out, DimStyle.Render("Started a new conversation."))
		r.printWelcome()

	case "/history":
		r.printTranscript()

	default:
		if s := suggestSlashCommand(name); s != "" {
			return true, fmt.Errorf("unknown command %s (did you mean %s?)", name, s)
		}
		return true, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return true, nil
}

// suggestionIndex parses "/N" into N.
func suggestionIndex(name string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "/"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("kiwitrails"))
	r.printTranscript()
	r.printSuggestions(r.session.Suggestions.Page())
}

func (r *chatREPL) printSuggestions(page []string) {
	if len(page) == 0 {
		return
	}
	fmt.Fprintln(r.out, DimStyle.Render("Try asking:"))
	for i, q := range page {
		fmt.Fprintf(r.out, "  %s %s\n", PromptStyle.Render(fmt.Sprintf("/%d", i+1)), q)
	}
	fmt.Fprintln(r.out, DimStyle.Render("  /more for other ideas, /help for commands"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printTranscript() {
	renderer := r.currentRenderer()
	for _, line := range r.session.Transcript() {
		label := PromptStyle.Render(line.Role.DisplayName())
		text := line.Text
		switch {
		case line.Error:
			text = ErrorStyle.Render(text)
		case line.Role == model.RoleAssistant:
			label = GuideStyle.Render(line.Role.DisplayName())
			text = strings.TrimRight(renderer.Markdown(text), "\n")
		}
		fmt.Fprintf(r.out, "%s\n%s\n\n", label, text)
	}
}

func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, c := range [][2]string{
		{"/1 .. /5", "Ask a suggested question"},
		{"/more", "Show other suggestions"},
		{"/stop", "Stop the reply in progress (or Ctrl+C)"},
		{"/clear", "Start a new conversation"},
		{"/history", "Show this conversation"},
		{"/quit", "Exit (or Ctrl+D)"},
	} {
		fmt.Fprintf(r.out, "  %s %s\n", RenderLabel(c[0]), c[1])
	}
	fmt.Fprintln(r.out)
}

// ABOUTME: Terminal client for the mediline medical chat gateway.
// ABOUTME: Provides readline-style input, agent selection, image attachment, and voice capture.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/carebridge/mediline/internal/agents"
	"github.com/carebridge/mediline/internal/attach"
	"github.com/carebridge/mediline/internal/chat"
	"github.com/carebridge/mediline/internal/config"
	"github.com/carebridge/mediline/internal/markdown"
	"github.com/carebridge/mediline/internal/session"
	"github.com/carebridge/mediline/internal/voice"
)

// getToken returns the bearer token from MEDILINE_TOKEN or the config file.
func getToken(cfg *config.Config) string {
	if token := os.Getenv("MEDILINE_TOKEN"); token != "" {
		return token
	}
	if cfg != nil {
		return cfg.Client.Token
	}
	return ""
}

// tui bundles the pieces of the interactive loop.
type tui struct {
	sess     *session.Session
	client   *chat.Client
	catalog  *agents.Catalog
	renderer *markdown.Renderer
	voice    voice.Adapter
	limits   attach.Limits
}

func main() {
	server := flag.String("server", "", "Gateway server URL (overrides config)")
	agentFlag := flag.String("agent", "auto", "Agent selector: auto, medical-chat, prescription, multi-agent")
	flag.Parse()

	// Config is optional for the client; flags and env fill the gaps.
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		cfg = nil
	}

	baseURL := *server
	if baseURL == "" && cfg != nil {
		baseURL = cfg.Client.BaseURL
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	timeout := chat.DefaultTimeout
	if cfg != nil && cfg.Client.Timeout > 0 {
		timeout = cfg.Client.Timeout
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("MEDILINE_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	client := chat.New(chat.Config{
		BaseURL: baseURL,
		Token:   getToken(cfg),
		Timeout: timeout,
		Logger:  logger,
	})

	t := &tui{
		sess:     session.New(client, logger),
		client:   client,
		catalog:  agents.Builtin(),
		renderer: markdown.New(),
		limits:   attach.DefaultLimits(),
	}

	if cfg != nil && cfg.Attachments.MaxBytes > 0 {
		t.limits = attach.Limits{
			MaxBytes:     cfg.Attachments.MaxBytes,
			AllowedTypes: cfg.Attachments.AllowedTypes,
		}
	}

	initialAgent, err := agents.Parse(*agentFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := t.sess.Draft().SelectAgent(initialAgent); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Voice capture feeds transcripts into the draft.
	voiceCmd, voiceArgs := "say-listen", []string(nil)
	if cfg != nil && cfg.Voice.Command != "" {
		voiceCmd, voiceArgs = cfg.Voice.Command, cfg.Voice.Args
	}
	t.voice = voice.Detect(voiceCmd, voiceArgs, func(text string) {
		t.sess.Draft().SetText(text)
		fmt.Printf("\n%s %s\n> ", color.CyanString("[voice]"), text)
	}, logger)

	// Render assistant turns as they land in the log.
	t.sess.Log().OnAppend(func(m session.Message) {
		if m.Role != session.RoleAssistant {
			return
		}
		fmt.Println()
		if m.Agent != "" {
			color.New(color.FgHiBlack).Printf("[%s]\n", m.Agent)
		}
		fmt.Print(t.renderer.Render(m.Content))
		if m.RequiresValidation {
			color.New(color.FgYellow).Println("⚠ This analysis requires validation by a medical professional.")
		}
	})

	fmt.Printf("mediline connected to %s\n", baseURL)
	if getToken(cfg) != "" {
		fmt.Println("Auth: bearer token configured")
	} else {
		fmt.Println("Auth: none (set MEDILINE_TOKEN if the gateway requires it)")
	}
	if t.voice.Available() {
		fmt.Println("Voice: available (/voice to capture)")
	}
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := t.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func (t *tui) run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		t.printPrompt()

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			t.handleCommand(ctx, input)
			fmt.Println()
			continue
		}

		// Regular message: load it into the draft and submit
		t.sess.Draft().SetText(input)
		if _, err := t.sess.Submit(ctx); err != nil {
			fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		}
		fmt.Println()
	}
}

// printPrompt shows the selected agent and any pending attachment.
func (t *tui) printPrompt() {
	draft := t.sess.Draft()

	if a := draft.Attachment(); a != nil {
		color.New(color.FgHiBlack).Printf("(%s) ", a.Preview())
	}
	if agent := draft.Agent(); agent != agents.TypeAuto {
		fmt.Printf("[%s]> ", agent)
	} else {
		fmt.Print("> ")
	}
}

func (t *tui) handleCommand(ctx context.Context, input string) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/agents":
		t.listAgents()
	case "/agent":
		t.selectAgent(args)
	case "/attach":
		t.attachImage(args)
	case "/detach":
		t.sess.Draft().Detach()
		fmt.Println("Attachment removed")
	case "/voice":
		t.toggleVoice(ctx)
	case "/history":
		t.printHistory()
	case "/save":
		t.saveTranscript(args)
	case "/health":
		t.checkHealth(ctx)
	case "/help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n", cmd)
	}
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /agents          List available agents")
	fmt.Println("  /agent <type>    Select agent (auto, medical-chat, prescription, multi-agent)")
	fmt.Println("  /attach <path>   Attach an image to the next message")
	fmt.Println("  /detach          Remove the pending attachment")
	fmt.Println("  /voice           Start or stop voice capture")
	fmt.Println("  /history         Show the conversation so far")
	fmt.Println("  /save <path>     Save the transcript to a file")
	fmt.Println("  /health          Check gateway health")
	fmt.Println("  /help            Show this help")
	fmt.Println("  /quit            Exit")
}

func (t *tui) listAgents() {
	selected := t.sess.Draft().Agent()
	fmt.Println("Agents:")
	for _, typ := range agents.All() {
		def, ok := t.catalog.Get(typ)
		if !ok {
			continue
		}
		marker := " "
		if typ == selected {
			marker = "*"
		}
		fmt.Printf(" %s %-14s %s\n", marker, typ, def.Description)
	}
}

func (t *tui) selectAgent(arg string) {
	if arg == "" {
		fmt.Printf("Current agent: %s\n", t.sess.Draft().Agent())
		return
	}

	typ, err := agents.Parse(arg)
	if err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}
	if err := t.sess.Draft().SelectAgent(typ); err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}
	fmt.Printf("Now using %s\n", typ)
}

func (t *tui) attachImage(path string) {
	if path == "" {
		fmt.Println("Usage: /attach <path>")
		return
	}

	a, err := attach.FromFile(path, t.limits)
	if err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}

	t.sess.Draft().Attach(a)
	fmt.Printf("Attached %s\n", a.Preview())
}

func (t *tui) toggleVoice(ctx context.Context) {
	if !t.voice.Available() {
		fmt.Println("Voice capture is not available on this system")
		return
	}

	if t.voice.Capturing() {
		t.voice.Stop()
		fmt.Println("Voice capture stopped")
		return
	}

	if err := t.voice.Start(ctx); err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}
	fmt.Println("Listening... speak now (/voice again to cancel)")
}

func (t *tui) printHistory() {
	messages := t.sess.Log().Messages()
	if len(messages) == 0 {
		fmt.Println("No conversation history")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	for _, m := range messages {
		ts := m.Timestamp.Format("15:04")
		switch m.Role {
		case session.RoleUser:
			color.New(color.FgBlue).Printf("%s you: ", ts)
			fmt.Println(m.Content)
		case session.RoleAssistant:
			label := "assistant"
			if m.Agent != "" {
				label = m.Agent
			}
			color.New(color.FgGreen).Printf("%s %s: ", ts, label)
			fmt.Println(truncate(m.Content, 200))
		}
	}
	fmt.Println(strings.Repeat("-", 60))
}

func (t *tui) saveTranscript(path string) {
	if path == "" {
		path = fmt.Sprintf("mediline-%s.txt", time.Now().Format("20060102-150405"))
	}

	var b strings.Builder
	for _, m := range t.sess.Log().Messages() {
		label := string(m.Role)
		if m.Agent != "" {
			label = m.Agent
		}
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", m.Timestamp.Format(time.RFC3339), label, m.Content)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}
	fmt.Printf("Transcript saved to %s\n", path)
}

func (t *tui) checkHealth(ctx context.Context) {
	status, err := t.client.Health(ctx)
	if err != nil {
		fmt.Printf("%s %v\n", color.RedString("[error]"), err)
		return
	}

	fmt.Printf("Gateway: %s\n", status.Status)
	for name, state := range status.Agents {
		fmt.Printf("  %s: %s\n", name, state)
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

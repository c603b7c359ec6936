// Command wxchat is a terminal chat client for watsonx.ai.
//
// Usage:
//
//	WATSONX_API_KEY=... wxchat [flags]
//
// Flags:
//
//	-config string   Path to YAML config file (default: watsonx.yaml)
//	-model string    Model ID (overrides config)
//	-session string  Path to session file to resume
//	-system string   System prompt text
//	-plain           Print raw text instead of rendered markdown
//	-verbose         Log requests to stderr
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/chat"
	"github.com/gowatsonx/watsonx/config"
	"github.com/gowatsonx/watsonx/iam"
	jsonstore "github.com/gowatsonx/watsonx/json"
	"github.com/gowatsonx/watsonx/transport"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	usageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wxchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", config.DefaultPath, "Path to YAML config file")
		model        = flag.String("model", "", "Model ID (overrides config)")
		sessionPath  = flag.String("session", "", "Path to session file to resume")
		systemPrompt = flag.String("system", "", "System prompt text")
		plain        = flag.Bool("plain", false, "Print raw text instead of rendered markdown")
		verbose      = flag.Bool("verbose", false, "Log requests to stderr")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Model = *model
	}
	if cfg.Model == "" {
		return errors.New("no model configured; pass -model or set model in config")
	}

	var transportOpts []transport.Option
	if cfg.Version != "" {
		transportOpts = append(transportOpts, transport.WithVersion(cfg.Version))
	}
	if *verbose {
		transportOpts = append(transportOpts, transport.WithLogger(log.New(os.Stderr)))
	}

	var iamOpts []iam.Option
	if cfg.TokenURL != "" {
		iamOpts = append(iamOpts, iam.WithTokenURL(cfg.TokenURL))
	}

	tokens := iam.New(cfg.APIKey, iamOpts...)
	client := chat.New(
		transport.New(cfg.URL, tokens, transportOpts...),
		chat.WithProject(cfg.ProjectID),
		chat.WithSpace(cfg.SpaceID),
		chat.WithModel(cfg.Model),
	)

	session, err := loadOrCreateSession(*sessionPath, *systemPrompt)
	if err != nil {
		return err
	}

	var render renderFunc
	if !*plain {
		render, err = newMarkdownRenderer()
		if err != nil {
			return err
		}
	}

	fmt.Printf("%s (ctrl-d to exit)\n", cfg.Model)
	if err := repl(ctx, client, &session, render); err != nil {
		return err
	}

	return saveSession(*sessionPath, session)
}

func repl(ctx context.Context, client *chat.Client, session *watsonx.Session, render renderFunc) error {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		session.Messages = append(session.Messages, watsonx.UserMessage{
			Content:   []watsonx.ContentBlock{watsonx.TextBlock{Text: line}},
			Timestamp: time.Now(),
		})

		msg, err := turn(ctx, client, session, render)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Println(errorStyle.Render("error: " + err.Error()))
			continue
		}

		session.Messages = append(session.Messages, msg)
		session.UpdatedAt = time.Now()
	}
}

// turn streams one assistant response. With a markdown renderer the output
// is held back and rendered whole on completion; otherwise deltas are echoed
// as they arrive.
func turn(ctx context.Context, client *chat.Client, session *watsonx.Session, render renderFunc) (watsonx.AssistantMessage, error) {
	stream, err := client.Stream(ctx, watsonx.Request{
		SystemPrompt: session.SystemPrompt,
		Messages:     session.Messages,
	})
	if err != nil {
		return watsonx.AssistantMessage{}, err
	}
	defer stream.Close()

	handler := watsonx.StreamHandler{
		OnThinking: func(delta string) {
			fmt.Print(thinkingStyle.Render(delta))
		},
		OnComplete: func(msg watsonx.AssistantMessage) {
			if render != nil {
				fmt.Println(render(msg.Text()))
			} else {
				fmt.Println()
			}
			if msg.Usage.TotalTokens > 0 {
				fmt.Println(usageStyle.Render(fmt.Sprintf("[%d in / %d out]",
					msg.Usage.InputTokens, msg.Usage.OutputTokens)))
			}
		},
	}
	if render == nil {
		handler.OnContent = func(delta string) { fmt.Print(delta) }
	}

	return watsonx.Consume(stream, handler)
}

type renderFunc func(string) string

func newMarkdownRenderer() (renderFunc, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return func(text string) string {
		out, err := r.Render(text)
		if err != nil {
			return text
		}
		return strings.TrimSpace(out)
	}, nil
}

func loadOrCreateSession(path, systemPrompt string) (watsonx.Session, error) {
	if path != "" {
		s, err := jsonstore.Load(path)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return watsonx.Session{}, fmt.Errorf("load session: %w", err)
		}
		// Missing file: start fresh and save there on exit.
	}
	now := time.Now()
	return watsonx.Session{
		ID:           fmt.Sprintf("%d", now.UnixNano()),
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func saveSession(path string, session watsonx.Session) error {
	if len(session.Messages) == 0 {
		return nil
	}
	if path == "" {
		path = defaultSessionPath(session.ID)
		defer fmt.Fprintf(os.Stderr, "session saved to %s\n", path)
	}
	if err := jsonstore.Save(path, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func defaultSessionPath(id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wxchat", "sessions", id+".json")
}

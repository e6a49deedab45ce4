package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kalambet/faultchat/internal/config"
	"github.com/kalambet/faultchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the interactive chat.

Type a symptom and press Enter. When the service asks a question, pick an
option with Up/Down and press Enter on an empty line, or type your own answer.

Commands: /reset, /engine <rule|neural|hybrid|default>, /help, /quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _ := cmd.Flags().GetString("engine")
		return runChat(cmd, engine)
	},
}

func init() {
	chatCmd.Flags().String("engine", "", "diagnosis engine: rule, neural or hybrid")
}

func runChat(cmd *cobra.Command, engine string) error {
	if engine == "" {
		engine, _ = cmd.Flags().GetString("engine")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The screen belongs to the TUI, so logs go to a file.
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	logPath := filepath.Join(cfg.Storage.DataDir, "faultchat.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	a, err := newApp(cfg, engine, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var opts []tui.Option
	opts = append(opts, tui.WithEngine(a.engine))
	if noColor || cfg.UI.NoColor {
		opts = append(opts, tui.WithNoColor())
	}

	logger.Info("chat started", "version", version, "gateway", a.gw.BaseURL(), "engine", a.engine.String())
	p := tea.NewProgram(
		tui.New(ctx, a.conv, opts...),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}

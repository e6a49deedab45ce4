package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/faultchat/internal/config"
	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/format"
	"github.com/kalambet/faultchat/internal/gateway"
	"github.com/kalambet/faultchat/internal/storage"
)

// app is the wiring shared by the chat, ask and serve commands.
type app struct {
	cfg    config.Config
	engine diagnosis.Engine
	gw     *gateway.Client
	store  *storage.Store // nil when archiving is off
	conv   *conversation.Conversation
	logger *slog.Logger
}

// newApp builds a conversation from cfg. engineFlag, when set, overrides
// gateway.engine.
func newApp(cfg config.Config, engineFlag string, logger *slog.Logger) (*app, error) {
	name := cfg.Gateway.Engine
	if strings.TrimSpace(engineFlag) != "" {
		name = engineFlag
	}
	engine, err := diagnosis.ParseEngine(name)
	if err != nil {
		return nil, err
	}

	taxonomy := format.DefaultTaxonomy()
	if cfg.UI.OptionsFile != "" {
		if taxonomy, err = format.LoadTaxonomy(cfg.UI.OptionsFile); err != nil {
			return nil, fmt.Errorf("loading clarification options: %w", err)
		}
	}

	a := &app{
		cfg:    cfg,
		engine: engine,
		gw:     newGateway(cfg, logger),
		logger: logger,
	}

	opts := []conversation.Option{
		conversation.WithEngine(engine),
		conversation.WithTaxonomy(taxonomy),
		conversation.WithLogger(logger),
	}
	if cfg.Storage.Archive {
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.store = store
		opts = append(opts, conversation.WithArchive(storeArchive{store: store}))
	}
	a.conv = conversation.New(a.gw, opts...)
	return a, nil
}

func newGateway(cfg config.Config, logger *slog.Logger) *gateway.Client {
	return gateway.New(cfg.Gateway.BaseURL,
		gateway.WithPaths(cfg.Gateway.DiagnosePath, cfg.Gateway.ResetPath, cfg.Gateway.HealthPath),
		gateway.WithToken(cfg.Gateway.Token),
		gateway.WithLogger(logger),
	)
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing storage", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/faultchat/internal/api"
	"github.com/kalambet/faultchat/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over HTTP (and MCP with --mcp)",
	Long: `Serve one conversation over HTTP on 127.0.0.1:<server.port>.

Routes:
  GET  /health
  POST /v1/messages            {"text": "...", "engine": "hybrid"} or {"option": 2}
  GET  /v1/transcript
  GET  /v1/transcript/stream   websocket
  POST /v1/reset
  GET  /v1/history             when the archive is enabled

With --mcp the same conversation is also exposed as MCP tools on stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _ := cmd.Flags().GetString("engine")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(engine, withMCP)
	},
}

func init() {
	serveCmd.Flags().String("engine", "", "diagnosis engine: rule, neural or hybrid")
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func runServer(engine string, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "faultchat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// stdout carries MCP frames when --mcp is set, so logs stay on stderr.
	logger := newLogger(cfg, os.Stderr)

	a, err := newApp(cfg, engine, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(api.Deps{
		Conv:           a.conv,
		Store:          a.store,
		Token:          cfg.Server.Token,
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
		Logger:         logger,
	})
	// The service may come up later; serving starts regardless.
	if err := a.gw.Health(ctx); err != nil {
		logger.Warn("diagnosis service not ready", "gateway", a.gw.BaseURL(), "error", err)
	} else {
		logger.Info("diagnosis service ready", "gateway", a.gw.BaseURL())
	}
	if cfg.Server.Token == "" {
		logger.Warn("server.token is unset; /v1 routes accept unauthenticated requests")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Conv: a.conv, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("faultchat listening", "addr", addr, "gateway", a.gw.BaseURL(), "engine", a.engine.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

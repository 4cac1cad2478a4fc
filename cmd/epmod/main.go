package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/buildenergy/epmod/internal/config"
	"github.com/buildenergy/epmod/internal/engine"
	"github.com/buildenergy/epmod/internal/history"
	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/mcp"
	"github.com/buildenergy/epmod/internal/ops"
	"github.com/buildenergy/epmod/internal/registry"
	"github.com/buildenergy/epmod/internal/server"
	"github.com/buildenergy/epmod/internal/session"
	"github.com/buildenergy/epmod/internal/surface"
	"github.com/buildenergy/epmod/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("EPMOD_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	// Logs go to stderr: stdout carries the stdio MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("epmod starting", "version", version, "workspace", cfg.WorkspaceRoot)

	// Initialize OpenTelemetry before anything that creates instruments.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Operation registry with every built-in operation.
	reg := registry.New()
	ops.RegisterAll(reg)

	// Document gateway, session arena, batch executor.
	gateway := idf.NewGateway(logger)
	arena := session.NewArena(gateway, logger)
	executor := engine.New(reg, gateway, logger, cfg.PersistTimeout)

	// Batch audit store. Losing it degrades server_manager history, never
	// batch execution, so open failures log and continue.
	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			logger.Warn("history store unavailable", "path", cfg.HistoryPath, "error", err)
			hist = nil
		} else {
			defer func() { _ = hist.Close() }()
		}
	}

	// Resolve the tool surface once, document over env flags.
	resolved := surface.Load(cfg.SurfaceConfigPath, surface.FlagsFromEnv(), logger)

	mcpSrv := mcp.New(arena, executor, reg, hist, resolved, cfg, logger, version)

	g, gctx := errgroup.WithContext(ctx)

	// Optional HTTP transport alongside stdio.
	var httpSrv *server.Server
	if cfg.HTTPAddr != "" {
		httpSrv = server.New(server.Config{
			MCPServer:    mcpSrv.MCPServer(),
			Logger:       logger,
			Addr:         cfg.HTTPAddr,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Version:      version,
		})
		g.Go(func() error {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
	}

	// Stdio transport: the default MCP surface.
	stdio := mcpserver.NewStdioServer(mcpSrv.MCPServer())
	g.Go(func() error {
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	<-gctx.Done()

	// Graceful shutdown: stop accepting HTTP, then wait out the
	// transports. In-memory sessions need no draining; applied batches
	// persist synchronously before their report returns.
	slog.Info("epmod shutting down")

	if httpSrv != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpSrv.Shutdown(httpCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		httpCancel()
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("epmod stopped")
	return nil
}

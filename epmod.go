// Package epmod is the public API for embedding the epmod building-model
// modification server.
//
// Library consumers construct an App and either run the full MCP server
// or execute batches programmatically:
//
//	app, err := epmod.New(
//	    epmod.WithVersion(version),
//	    epmod.WithWorkspaceRoot("/models"),
//	)
//	if err != nil { ... }
//	report, err := app.Execute(ctx, "office.idf", epmod.Batch{
//	    Operations: []epmod.Operation{{
//	        Op:     "people.update",
//	        Target: "all",
//	        Params: map[string]any{"field_updates": map[string]any{"Number_of_People": 10}},
//	    }},
//	})
//
// The import graph enforces a strict no-cycle rule: epmod (root) imports
// internal/*, but internal/* never imports epmod (root). Public types
// (Operation, Report, etc.) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file
// that sees both sides of the boundary.
package epmod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
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

// App is the epmod server lifecycle. Construct with New(), run with Run()
// or drive batches directly with Execute().
type App struct {
	cfg          config.Config
	registry     *registry.Registry
	arena        *session.Arena
	executor     *engine.Executor
	history      *history.Store // nil when disabled
	mcpSrv       *mcp.Server
	httpSrv      *server.Server // nil when no HTTP address
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the server: configuration, telemetry, the operation
// registry, and the MCP tool surface. It does NOT start any goroutines or
// accept connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.workspaceRoot != "" {
		cfg.WorkspaceRoot = o.workspaceRoot
	}
	if o.historyPath != nil {
		cfg.HistoryPath = *o.historyPath
	}
	if o.surfacePath != nil {
		cfg.SurfaceConfigPath = *o.surfacePath
	}
	if o.httpAddr != nil {
		cfg.HTTPAddr = *o.httpAddr
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	reg := registry.New()
	ops.RegisterAll(reg)

	gateway := idf.NewGateway(logger)
	arena := session.NewArena(gateway, logger)
	executor := engine.New(reg, gateway, logger, cfg.PersistTimeout)

	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(context.Background(), cfg.HistoryPath)
		if err != nil {
			logger.Warn("history store unavailable", "path", cfg.HistoryPath, "error", err)
			hist = nil
		}
	}

	resolved := surface.Load(cfg.SurfaceConfigPath, surface.FlagsFromEnv(), logger)
	mcpSrv := mcp.New(arena, executor, reg, hist, resolved, cfg, logger, version)

	app := &App{
		cfg:          cfg,
		registry:     reg,
		arena:        arena,
		executor:     executor,
		history:      hist,
		mcpSrv:       mcpSrv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}

	if cfg.HTTPAddr != "" {
		app.httpSrv = server.New(server.Config{
			MCPServer:    mcpSrv.MCPServer(),
			Logger:       logger,
			Addr:         cfg.HTTPAddr,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Version:      version,
		})
	}

	return app, nil
}

// Run serves the MCP stdio transport, plus HTTP when configured, until
// ctx is cancelled or a transport fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		g.Go(func() error {
			if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
	}

	stdio := mcpserver.NewStdioServer(a.mcpSrv.MCPServer())
	g.Go(func() error {
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	<-gctx.Done()

	if a.httpSrv != nil {
		httpCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.httpSrv.Shutdown(httpCtx); err != nil {
			a.logger.Error("http shutdown error", "error", err)
		}
		cancel()
	}

	return g.Wait()
}

// Close releases the App's resources. Call after Run returns, or instead
// of Run for programmatic-only use.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(ctx))
	}
	return errors.Join(errs...)
}

// Execute runs one batch against the document at path (absolute or
// relative to the workspace root) without going through a transport.
func (a *App) Execute(ctx context.Context, path string, batch Batch) (*Report, error) {
	if path == "" {
		return nil, fmt.Errorf("epmod: document path is required")
	}
	sess, err := a.arena.Acquire(a.resolvePath(path))
	if err != nil {
		return nil, err
	}
	report := a.executor.Execute(ctx, sess, toInternalBatch(batch, a.resolvePath(batch.OutputPath)))
	return toPublicReport(report), nil
}

// Operations returns the registered operation ids, sorted.
func (a *App) Operations() []string {
	return a.registry.IDs()
}

func (a *App) resolvePath(path string) string {
	if path == "" || path[0] == '/' {
		return path
	}
	return a.cfg.WorkspaceRoot + "/" + path
}

func toInternalBatch(b Batch, outputPath string) engine.Batch {
	mode := engine.ModeDryRun
	if b.Apply {
		mode = engine.ModeApply
	}
	out := engine.Batch{
		Mode:        mode,
		OutputPath:  outputPath,
		StrictAbort: b.StrictAbort,
	}
	for _, op := range b.Operations {
		out.Operations = append(out.Operations, engine.OperationRequest{
			Op:     op.Op,
			Params: op.Params,
			Target: op.Target,
		})
	}
	return out
}

func toPublicReport(r *engine.Report) *Report {
	out := &Report{
		BatchID:       r.BatchID,
		Status:        string(r.Status),
		Mode:          string(r.Mode),
		Results:       make([]Result, 0, len(r.Results)),
		PersistedPath: r.PersistedPath,
		PersistError:  toPublicError(r.PersistError),
	}
	for _, res := range r.Results {
		pub := Result{
			Op:          res.Op,
			TargetCount: res.TargetCount,
			Outcome:     string(res.Outcome),
			Error:       toPublicError(res.Error),
		}
		for _, c := range res.Changes {
			pub.Changes = append(pub.Changes, Change{
				Object: c.Object,
				Field:  c.Field,
				Old:    c.Old,
				New:    c.New,
			})
		}
		out.Results = append(out.Results, pub)
	}
	return out
}

func toPublicError(e *engine.ErrorDetail) *Error {
	if e == nil {
		return nil
	}
	return &Error{Kind: string(e.Kind), Message: e.Message}
}

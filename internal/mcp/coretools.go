package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/buildenergy/epmod/internal/engine"
	"github.com/buildenergy/epmod/internal/idf"
)

// registerCoreTools adds the always-on tools. These register regardless
// of the resolved surface mode so a client can always load, validate, and
// interrogate the server.
func (s *Server) registerCoreTools() {
	s.mcpServer.AddTool(mcplib.NewTool("model_preflight",
		mcplib.WithDescription("Load, validate, and interrogate an IDF document before modifying it"),
		mcplib.WithString("action",
			mcplib.Description("load parses the document into a session; validate reports integrity issues; "+
				"info summarizes contents; resolve_paths shows where a path resolves; readiness combines all checks; "+
				"capabilities returns the operation manifest"),
			mcplib.Enum("load", "validate", "info", "resolve_paths", "readiness", "capabilities"),
			mcplib.Required(),
		),
		mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
	), s.handleModelPreflight)

	s.mcpServer.AddTool(mcplib.NewTool("simulation_manager",
		mcplib.WithDescription("Manage simulation control and run period settings of an IDF document"),
		mcplib.WithString("action",
			mcplib.Enum("update_settings", "update_run_period", "run", "status", "capabilities"),
			mcplib.Required(),
		),
		mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
		mcplib.WithObject("settings",
			mcplib.Description("SimulationControl field updates, keyed by annotated field name"),
		),
		mcplib.WithObject("run_period",
			mcplib.Description("RunPeriod field updates, keyed by annotated field name"),
		),
		mcplib.WithString("mode",
			mcplib.Enum("dry_run", "apply"),
			mcplib.DefaultString("dry_run"),
		),
		mcplib.WithString("output_path", mcplib.Description("Apply-mode persist destination")),
	), s.handleSimulationManager)

	s.mcpServer.AddTool(mcplib.NewTool("file_utils",
		mcplib.WithDescription("List and copy model documents within the workspace"),
		mcplib.WithString("action",
			mcplib.Enum("list", "copy"),
			mcplib.Required(),
		),
		mcplib.WithArray("extensions",
			mcplib.Description("File extensions to list; defaults to .idf"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of listed files"),
			mcplib.DefaultNumber(50),
		),
		mcplib.WithString("source_path", mcplib.Description("Copy source, absolute or workspace-relative")),
		mcplib.WithString("target_path", mcplib.Description("Copy destination")),
		mcplib.WithBoolean("overwrite", mcplib.DefaultBool(false)),
	), s.handleFileUtils)

	s.mcpServer.AddTool(mcplib.NewTool("server_manager",
		mcplib.WithDescription("Report server status and the executed-batch history"),
		mcplib.WithString("action",
			mcplib.Enum("status", "history", "capabilities"),
			mcplib.Required(),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum history records to return"),
			mcplib.DefaultNumber(20),
		),
	), s.handleServerManager)
}

func (s *Server) handleModelPreflight(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")

	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return s.manifestResult(idfPath), nil

	case "resolve_paths":
		if idfPath == "" {
			return errorResult("resolve_paths requires idf_path"), nil
		}
		resolved := s.resolvePath(idfPath)
		abs, err := filepath.Abs(resolved)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		_, statErr := os.Stat(abs)
		return jsonResult(map[string]any{
			"input":          idfPath,
			"resolved":       abs,
			"workspace_root": s.cfg.WorkspaceRoot,
			"exists":         statErr == nil,
		}), nil

	case "load":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		model := sess.Snapshot()
		return jsonResult(map[string]any{
			"session_id": sess.ID.String(),
			"path":       sess.Path,
			"classes":    model.Classes(),
			"summary":    summarize(model),
		}), nil

	case "validate":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		issues := idf.Validate(sess.Snapshot())
		return jsonResult(map[string]any{
			"path":   sess.Path,
			"valid":  len(issues) == 0,
			"issues": issues,
		}), nil

	case "info":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		model := sess.Snapshot()
		return jsonResult(map[string]any{
			"path":    sess.Path,
			"summary": summarize(model),
			"zones":   model.Names(idf.ClassZone),
		}), nil

	case "readiness":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return jsonResult(map[string]any{
				"ready":  false,
				"reason": err.Error(),
			}), nil
		}
		issues := idf.Validate(sess.Snapshot())
		errors := 0
		for _, iss := range issues {
			if iss.Severity == "error" {
				errors++
			}
		}
		return jsonResult(map[string]any{
			"path":     sess.Path,
			"ready":    errors == 0,
			"errors":   errors,
			"warnings": len(issues) - errors,
			"issues":   issues,
		}), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleSimulationManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")

	runUpdate := func(op, key string) (*mcplib.CallToolResult, error) {
		updates, ok := request.GetArguments()[key].(map[string]any)
		if !ok || len(updates) == 0 {
			return errorResult(fmt.Sprintf("%s requires a non-empty %s object", request.GetString("action", ""), key)), nil
		}
		report, err := s.runBatch(ctx, idfPath, engine.Batch{
			Operations: []engine.OperationRequest{{
				Op:     op,
				Params: map[string]any{"field_updates": updates},
			}},
			Mode:       engine.Mode(request.GetString("mode", string(engine.ModeDryRun))),
			OutputPath: request.GetString("output_path", ""),
		})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(report), nil
	}

	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return s.domainManifest(idfPath, []string{"simulation_control", "run_period"}), nil

	case "update_settings":
		return runUpdate("simulation_control.update", "settings")

	case "update_run_period":
		return runUpdate("run_period.update", "run_period")

	case "run":
		// Model orchestration only. Executing EnergyPlus itself needs an
		// engine installation this server does not manage.
		return jsonResult(map[string]any{
			"started": false,
			"reason":  "simulation engine not configured: this server edits and inspects models but does not execute EnergyPlus",
		}), nil

	case "status":
		return jsonResult(map[string]any{
			"execution": "synchronous",
			"queueing":  false,
			"engine":    "not configured",
		}), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleFileUtils(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	switch action := request.GetString("action", ""); action {
	case "list":
		exts := request.GetStringSlice("extensions", []string{".idf"})
		limit := request.GetInt("limit", 50)
		roots := []string{s.cfg.WorkspaceRoot}
		if s.cfg.SampleFilesPath != "" {
			roots = append(roots, s.cfg.SampleFilesPath)
		}
		files, err := listFiles(roots, exts, limit)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"roots": roots,
			"files": files,
			"count": len(files),
		}), nil

	case "copy":
		src := request.GetString("source_path", "")
		dst := request.GetString("target_path", "")
		if src == "" || dst == "" {
			return errorResult("copy requires source_path and target_path"), nil
		}
		src, dst = s.resolvePath(src), s.resolvePath(dst)
		if !request.GetBool("overwrite", false) {
			if _, err := os.Stat(dst); err == nil {
				return errorResult(fmt.Sprintf("target %s exists; pass overwrite=true to replace it", dst)), nil
			}
		}
		if err := copyFile(src, dst); err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"copied": true,
			"source": src,
			"target": dst,
		}), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleServerManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return jsonResult(map[string]any{
			"server":  s.cfg.ServerName,
			"version": s.version,
			"surface": map[string]any{
				"mode":            string(s.surface.Mode),
				"masters":         s.surface.Masters,
				"domain_managers": s.surface.DomainManagers,
				"domains":         s.surface.Domains,
				"source":          s.surface.Source,
				"fallback_reason": s.surface.FallbackReason,
			},
			"operations": s.registry.IDs(),
		}), nil

	case "status":
		status := map[string]any{
			"server":         s.cfg.ServerName,
			"version":        s.version,
			"started_at":     s.startedAt.Format(time.RFC3339),
			"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
			"sessions":       s.arena.Len(),
			"surface_mode":   string(s.surface.Mode),
		}
		if s.history != nil {
			if n, err := s.history.Count(ctx); err == nil {
				status["batches_recorded"] = n
			}
		}
		return jsonResult(status), nil

	case "history":
		if s.history == nil {
			return errorResult("batch history is disabled (no history store configured)"), nil
		}
		records, err := s.history.Recent(ctx, request.GetInt("limit", 20))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"count":   len(records),
			"batches": records,
		}), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

// listFiles walks the given roots collecting files with matching
// extensions, newest path order not guaranteed; results are sorted for
// determinism.
func listFiles(roots, exts []string, limit int) ([]string, error) {
	want := map[string]bool{}
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		want[strings.ToLower(e)] = true
	}

	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subtrees are skipped, not fatal
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if want[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", root, err)
		}
	}
	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}

// Package mcp implements the Model Context Protocol tool surface for
// epmod.
//
// Tools come in three groups: master tools (batch modification and
// unified inspection), domain-manager tools (one tool per model domain),
// and always-on core tools (preflight, simulation settings, files,
// server management). Which of the first two groups register is decided
// by the resolved tool surface; core tools register unconditionally.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/buildenergy/epmod/internal/config"
	"github.com/buildenergy/epmod/internal/engine"
	"github.com/buildenergy/epmod/internal/history"
	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
	"github.com/buildenergy/epmod/internal/session"
	"github.com/buildenergy/epmod/internal/surface"
)

// Server wires the orchestration core to the MCP tool surface.
type Server struct {
	mcpServer *mcpserver.MCPServer
	arena     *session.Arena
	executor  *engine.Executor
	registry  *registry.Registry
	history   *history.Store // nil when the audit store is disabled
	surface   surface.Resolved
	cfg       config.Config
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// New creates and configures the MCP server with the resolved tool
// surface.
func New(arena *session.Arena, executor *engine.Executor, reg *registry.Registry,
	hist *history.Store, resolved surface.Resolved, cfg config.Config,
	logger *slog.Logger, version string) *Server {

	s := &Server{
		arena:     arena,
		executor:  executor,
		registry:  reg,
		history:   hist,
		surface:   resolved,
		cfg:       cfg,
		logger:    logger,
		version:   version,
		startedAt: time.Now().UTC(),
	}

	s.mcpServer = mcpserver.NewMCPServer(
		cfg.ServerName,
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerMasterTools()
	if resolved.DomainManagers {
		s.registerDomainManagers()
	}
	s.registerCoreTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err))
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

// acquire resolves idf_path against the workspace and loads (or reuses)
// its session.
func (s *Server) acquire(idfPath string) (*session.Session, error) {
	if idfPath == "" {
		return nil, fmt.Errorf("missing required parameter: idf_path")
	}
	return s.arena.Acquire(s.resolvePath(idfPath))
}

func (s *Server) resolvePath(path string) string {
	if path == "" || path[0] == '/' {
		return path
	}
	return s.cfg.WorkspaceRoot + "/" + path
}

// summarize builds the per-class object counts used by inspect_model and
// model_preflight.
func summarize(m *idf.Model) map[string]any {
	return map[string]any{
		"zones":              m.Count(idf.ClassZone),
		"surfaces":           m.Count(idf.ClassSurface),
		"fenestration":       m.Count(idf.ClassFenestration),
		"materials":          m.Count(idf.ClassMaterial),
		"schedules":          m.Count(idf.ClassScheduleCompact),
		"people":             m.Count(idf.ClassPeople),
		"lights":             m.Count(idf.ClassLights),
		"electric_equipment": m.Count(idf.ClassElectricEquipment),
		"infiltration":       m.Count(idf.ClassInfiltration),
		"run_periods":        m.Count(idf.ClassRunPeriod),
		"output_variables":   m.Count(idf.ClassOutputVariable),
		"output_meters":      m.Count(idf.ClassOutputMeter),
		"total_classes":      len(m.Classes()),
	}
}

// objectDetails lists a collection with its field values.
func objectDetails(m *idf.Model, class string, includeFields bool) []map[string]any {
	out := []map[string]any{}
	for _, o := range m.Objects(class) {
		entry := map[string]any{"name": o.Name()}
		if includeFields {
			fields := map[string]string{}
			for _, f := range o.Fields {
				if f.Name != "" {
					fields[f.Name] = f.Value
				}
			}
			entry["fields"] = fields
		}
		out = append(out, entry)
	}
	return out
}

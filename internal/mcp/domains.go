package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/buildenergy/epmod/internal/engine"
	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

// Operation domains grouped under each manager tool.
var (
	envelopeDomains      = []string{"envelope", "infiltration"}
	internalLoadDomains  = []string{"people", "lights", "electric_equipment"}
	outputsDomains       = []string{"outputs"}
	internalLoadOps      = []string{"people.update", "lights.update", "electric_equipment.update"}
	envelopeOps          = []string{"infiltration.scale", "envelope.add_window_film", "envelope.add_coating"}
)

// registerDomainManagers adds the per-domain manager tools, each gated by
// its resolved domain toggle.
func (s *Server) registerDomainManagers() {
	if s.surface.Domains["envelope"] {
		s.mcpServer.AddTool(mcplib.NewTool("envelope_manager",
			mcplib.WithDescription("Inspect and modify the building envelope: surfaces, constructions, infiltration, window film, exterior coatings"),
			mcplib.WithString("action",
				mcplib.Description("inspect lists envelope objects; modify runs one envelope operation; capabilities lists the operations"),
				mcplib.Enum("inspect", "modify", "capabilities"),
				mcplib.Required(),
			),
			mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
			mcplib.WithString("op",
				mcplib.Description("Operation for modify"),
				mcplib.Enum(envelopeOps...),
			),
			mcplib.WithObject("params", mcplib.Description("Operation parameters")),
			mcplib.WithString("target", mcplib.Description("Target selector name; empty means the operation default")),
			mcplib.WithString("mode",
				mcplib.Enum("dry_run", "apply"),
				mcplib.DefaultString("dry_run"),
			),
			mcplib.WithString("output_path", mcplib.Description("Apply-mode persist destination")),
		), s.handleEnvelopeManager)
	}

	if s.surface.Domains["internal_loads"] {
		s.mcpServer.AddTool(mcplib.NewTool("internal_load_manager",
			mcplib.WithDescription("Inspect and modify internal loads: people, lights, electric equipment"),
			mcplib.WithString("action",
				mcplib.Enum("inspect", "modify", "capabilities"),
				mcplib.Required(),
			),
			mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
			mcplib.WithString("op",
				mcplib.Description("Operation for modify"),
				mcplib.Enum(internalLoadOps...),
			),
			mcplib.WithArray("modifications",
				mcplib.Description("Entries of {target, field_updates}; each becomes one batch operation"),
			),
			mcplib.WithString("mode",
				mcplib.Enum("dry_run", "apply"),
				mcplib.DefaultString("dry_run"),
			),
			mcplib.WithString("output_path", mcplib.Description("Apply-mode persist destination")),
		), s.handleInternalLoadManager)
	}

	if s.surface.Domains["hvac"] {
		s.mcpServer.AddTool(mcplib.NewTool("hvac_manager",
			mcplib.WithDescription("Read-only HVAC loop discovery and branch topology"),
			mcplib.WithString("action",
				mcplib.Enum("discover", "topology", "capabilities"),
				mcplib.Required(),
			),
			mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
			mcplib.WithString("loop_type",
				mcplib.Enum("plant", "condenser", "air", "all"),
				mcplib.DefaultString("all"),
			),
			mcplib.WithString("loop_name", mcplib.Description("Loop to expand; required for topology")),
		), s.handleHvacManager)
	}

	if s.surface.Domains["outputs"] {
		s.mcpServer.AddTool(mcplib.NewTool("outputs_manager",
			mcplib.WithDescription("List and extend the model's output variable and meter requests"),
			mcplib.WithString("action",
				mcplib.Enum("list", "add_variables", "add_meters", "capabilities"),
				mcplib.Required(),
			),
			mcplib.WithString("idf_path", mcplib.Description("Path to the IDF document")),
			mcplib.WithArray("variables",
				mcplib.Description("Variable requests: strings or {key_value, variable_name, reporting_frequency} objects"),
			),
			mcplib.WithArray("meters",
				mcplib.Description("Meter requests: strings or {key_name, reporting_frequency} objects"),
			),
			mcplib.WithBoolean("allow_duplicates", mcplib.DefaultBool(false)),
			mcplib.WithString("mode",
				mcplib.Enum("dry_run", "apply"),
				mcplib.DefaultString("dry_run"),
			),
			mcplib.WithString("output_path", mcplib.Description("Apply-mode persist destination")),
		), s.handleOutputsManager)
	}
}

// domainManifest is the capability manifest restricted to the manager's
// operation domains.
func (s *Server) domainManifest(idfPath string, domains []string) *mcplib.CallToolResult {
	var model *idf.Model
	if idfPath != "" {
		if sess, err := s.acquire(idfPath); err == nil {
			model = sess.Snapshot()
		}
	}
	full := s.registry.Manifest(model)
	allowed := map[string]bool{}
	for _, d := range domains {
		allowed[d] = true
	}
	filtered := registry.Manifest{Operations: []registry.OperationManifest{}}
	for _, op := range full.Operations {
		if allowed[op.Domain] {
			filtered.Operations = append(filtered.Operations, op)
		}
	}
	return jsonResult(filtered)
}

func (s *Server) handleEnvelopeManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")

	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return s.domainManifest(idfPath, envelopeDomains), nil

	case "inspect":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		model := sess.Snapshot()
		return jsonResult(map[string]any{
			"path":          sess.Path,
			"surfaces":      objectDetails(model, idf.ClassSurface, false),
			"fenestration":  objectDetails(model, idf.ClassFenestration, false),
			"constructions": objectDetails(model, idf.ClassConstruction, false),
			"materials":     objectDetails(model, idf.ClassMaterial, false),
			"infiltration":  objectDetails(model, idf.ClassInfiltration, false),
		}), nil

	case "modify":
		op := request.GetString("op", "")
		if op == "" {
			return errorResult("modify requires op"), nil
		}
		var target any
		if t := request.GetString("target", ""); t != "" {
			target = t
		}
		params, _ := request.GetArguments()["params"].(map[string]any)
		report, err := s.runBatch(ctx, idfPath, engine.Batch{
			Operations: []engine.OperationRequest{{Op: op, Params: params, Target: target}},
			Mode:       engine.Mode(request.GetString("mode", string(engine.ModeDryRun))),
			OutputPath: request.GetString("output_path", ""),
		})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(report), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleInternalLoadManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")

	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return s.domainManifest(idfPath, internalLoadDomains), nil

	case "inspect":
		sess, err := s.acquire(idfPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		model := sess.Snapshot()
		return jsonResult(map[string]any{
			"path":               sess.Path,
			"people":             objectDetails(model, idf.ClassPeople, true),
			"lights":             objectDetails(model, idf.ClassLights, true),
			"electric_equipment": objectDetails(model, idf.ClassElectricEquipment, true),
		}), nil

	case "modify":
		op := request.GetString("op", "")
		if op == "" {
			return errorResult("modify requires op"), nil
		}
		mods, ok := request.GetArguments()["modifications"].([]any)
		if !ok || len(mods) == 0 {
			return errorResult("modify requires a non-empty modifications array"), nil
		}
		var ops []engine.OperationRequest
		for i, raw := range mods {
			entry, ok := raw.(map[string]any)
			if !ok {
				return errorResult(fmt.Sprintf("modifications[%d] must be an object", i)), nil
			}
			updates, ok := entry["field_updates"].(map[string]any)
			if !ok {
				return errorResult(fmt.Sprintf("modifications[%d] missing field_updates object", i)), nil
			}
			ops = append(ops, engine.OperationRequest{
				Op:     op,
				Params: map[string]any{"field_updates": updates},
				Target: entry["target"],
			})
		}
		report, err := s.runBatch(ctx, idfPath, engine.Batch{
			Operations: ops,
			Mode:       engine.Mode(request.GetString("mode", string(engine.ModeDryRun))),
			OutputPath: request.GetString("output_path", ""),
		})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(report), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleHvacManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	switch action := request.GetString("action", ""); action {
	case "capabilities":
		// No registered mutation operations; the manager is read-only.
		return jsonResult(map[string]any{
			"actions": []string{"discover", "topology"},
			"note":    "hvac inspection is read-only; no modification operations are registered",
		}), nil
	case "discover", "topology":
		return s.handleHvacLoopInspect(ctx, request)
	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (s *Server) handleOutputsManager(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")

	switch action := request.GetString("action", ""); action {
	case "capabilities":
		return s.domainManifest(idfPath, outputsDomains), nil

	case "list":
		return s.handleGetOutputs(ctx, request)

	case "add_variables", "add_meters":
		key := "variables"
		op := "outputs.add_variables"
		if action == "add_meters" {
			key, op = "meters", "outputs.add_meters"
		}
		entries, ok := request.GetArguments()[key].([]any)
		if !ok || len(entries) == 0 {
			return errorResult(fmt.Sprintf("%s requires a non-empty %s array", action, key)), nil
		}
		report, err := s.runBatch(ctx, idfPath, engine.Batch{
			Operations: []engine.OperationRequest{{
				Op: op,
				Params: map[string]any{
					key:                entries,
					"allow_duplicates": request.GetBool("allow_duplicates", false),
				},
			}},
			Mode:       engine.Mode(request.GetString("mode", string(engine.ModeDryRun))),
			OutputPath: request.GetString("output_path", ""),
		})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(report), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
}

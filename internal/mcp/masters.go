package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/buildenergy/epmod/internal/engine"
	"github.com/buildenergy/epmod/internal/history"
	"github.com/buildenergy/epmod/internal/idf"
)

// registerMasterTools adds the consolidated tools. Each registers when
// masters mode is on or its legacy wrapper flag re-exposes it.
func (s *Server) registerMasterTools() {
	if s.surface.MasterEnabled("modify") {
		s.mcpServer.AddTool(mcplib.NewTool("modify_basic_parameters",
			mcplib.WithDescription("Execute an ordered batch of model modification operations against an EnergyPlus IDF document. "+
				"Call with capabilities=true (or dry_run with no operations) to get the operation manifest first."),
			mcplib.WithString("idf_path",
				mcplib.Description("Path to the IDF document, absolute or relative to the workspace root"),
			),
			mcplib.WithArray("operations",
				mcplib.Description("Ordered operation entries: {op, params, target}. Target is \"all\", a name, a list of names, or {field, equals}"),
			),
			mcplib.WithString("mode",
				mcplib.Description("dry_run previews ChangeSets without touching the document; apply mutates and persists"),
				mcplib.Enum("dry_run", "apply"),
				mcplib.DefaultString("dry_run"),
			),
			mcplib.WithString("output_path",
				mcplib.Description("Apply-mode persist destination; empty writes back in place"),
			),
			mcplib.WithBoolean("strict_abort",
				mcplib.Description("Skip the rest of the batch after the first failure instead of continuing"),
				mcplib.DefaultBool(false),
			),
			mcplib.WithBoolean("capabilities",
				mcplib.Description("Return the operation manifest instead of executing"),
				mcplib.DefaultBool(false),
			),
		), s.handleModifyBasicParameters)
	}

	if s.surface.MasterEnabled("inspect") {
		s.mcpServer.AddTool(mcplib.NewTool("inspect_model",
			mcplib.WithDescription("Unified read-only inspection of a loaded IDF model: summary counts plus per-domain listings"),
			mcplib.WithString("idf_path",
				mcplib.Description("Path to the IDF document"),
				mcplib.Required(),
			),
			mcplib.WithArray("focus",
				mcplib.Description("Sections to include: zones, surfaces, materials, schedules, people, lights, electric_equipment, infiltration. Empty means summary only"),
			),
			mcplib.WithBoolean("include_values",
				mcplib.Description("Include the field values of each listed object"),
				mcplib.DefaultBool(false),
			),
		), s.handleInspectModel)
	}

	if s.surface.MasterEnabled("output") {
		s.mcpServer.AddTool(mcplib.NewTool("get_outputs",
			mcplib.WithDescription("List the output variable and meter requests already present in the model"),
			mcplib.WithString("idf_path",
				mcplib.Description("Path to the IDF document"),
				mcplib.Required(),
			),
			mcplib.WithString("type",
				mcplib.Description("Which request kinds to list"),
				mcplib.Enum("variables", "meters", "both"),
				mcplib.DefaultString("both"),
			),
		), s.handleGetOutputs)
	}

	if s.surface.MasterEnabled("hvac") {
		s.mcpServer.AddTool(mcplib.NewTool("hvac_loop_inspect",
			mcplib.WithDescription("Discover HVAC loops and walk their branch topology"),
			mcplib.WithString("idf_path",
				mcplib.Description("Path to the IDF document"),
				mcplib.Required(),
			),
			mcplib.WithString("action",
				mcplib.Description("discover lists loops by type; topology expands one loop's branches and components"),
				mcplib.Enum("discover", "topology"),
				mcplib.DefaultString("discover"),
			),
			mcplib.WithString("loop_type",
				mcplib.Description("Loop family filter for discover"),
				mcplib.Enum("plant", "condenser", "air", "all"),
				mcplib.DefaultString("all"),
			),
			mcplib.WithString("loop_name",
				mcplib.Description("Loop to expand; required for topology"),
			),
		), s.handleHvacLoopInspect)
	}
}

// runBatch executes the batch and records it in the audit store. Audit
// failures are logged, never surfaced to the client.
func (s *Server) runBatch(ctx context.Context, path string, batch engine.Batch) (*engine.Report, error) {
	sess, err := s.acquire(path)
	if err != nil {
		return nil, err
	}
	if batch.OutputPath != "" {
		batch.OutputPath = s.resolvePath(batch.OutputPath)
	}
	report := s.executor.Execute(ctx, sess, batch)

	if s.history != nil {
		data, merr := json.Marshal(report)
		if merr != nil {
			data = json.RawMessage("{}")
		}
		rec := history.Record{
			BatchID:    report.BatchID,
			Path:       sess.Path,
			Mode:       string(report.Mode),
			Status:     string(report.Status),
			Operations: len(batch.Operations),
			Report:     data,
			ExecutedAt: time.Now().UTC(),
		}
		if err := s.history.Record(ctx, rec); err != nil {
			s.logger.Warn("history record failed", "batch_id", report.BatchID, "error", err)
		}
	}
	return report, nil
}

// decodeOperations converts the raw tool argument into typed requests via
// a JSON round trip, preserving the untyped target selector.
func decodeOperations(raw any) ([]engine.OperationRequest, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode operations: %w", err)
	}
	var ops []engine.OperationRequest
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("operations must be an array of {op, params, target} entries: %w", err)
	}
	return ops, nil
}

// manifestResult builds the capability manifest, with live model hints
// when a document path is supplied and loadable.
func (s *Server) manifestResult(idfPath string) *mcplib.CallToolResult {
	var model *idf.Model
	if idfPath != "" {
		if sess, err := s.acquire(idfPath); err == nil {
			model = sess.Snapshot()
		}
	}
	return jsonResult(s.registry.Manifest(model))
}

func (s *Server) handleModifyBasicParameters(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idfPath := request.GetString("idf_path", "")
	mode := engine.Mode(request.GetString("mode", string(engine.ModeDryRun)))

	ops, err := decodeOperations(request.GetArguments()["operations"])
	if err != nil {
		return errorResult(err.Error()), nil
	}

	// A capabilities call, or a dry-run with nothing to run, answers with
	// the manifest so clients can discover the operation set in one call.
	if request.GetBool("capabilities", false) || (mode == engine.ModeDryRun && len(ops) == 0) {
		return s.manifestResult(idfPath), nil
	}

	if mode != engine.ModeDryRun && mode != engine.ModeApply {
		return errorResult(fmt.Sprintf("invalid mode %q: expected dry_run or apply", mode)), nil
	}

	report, err := s.runBatch(ctx, idfPath, engine.Batch{
		Operations:  ops,
		Mode:        mode,
		OutputPath:  request.GetString("output_path", ""),
		StrictAbort: request.GetBool("strict_abort", false),
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) handleInspectModel(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sess, err := s.acquire(request.GetString("idf_path", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	model := sess.Snapshot()
	includeValues := request.GetBool("include_values", false)

	out := map[string]any{
		"path":    sess.Path,
		"summary": summarize(model),
	}

	focusClasses := map[string]string{
		"zones":              idf.ClassZone,
		"surfaces":           idf.ClassSurface,
		"materials":          idf.ClassMaterial,
		"schedules":          idf.ClassScheduleCompact,
		"people":             idf.ClassPeople,
		"lights":             idf.ClassLights,
		"electric_equipment": idf.ClassElectricEquipment,
		"infiltration":       idf.ClassInfiltration,
	}
	for _, f := range request.GetStringSlice("focus", nil) {
		key := strings.ToLower(strings.TrimSpace(f))
		class, ok := focusClasses[key]
		if !ok {
			return errorResult(fmt.Sprintf("unknown focus section %q", f)), nil
		}
		out[key] = objectDetails(model, class, includeValues)
	}
	return jsonResult(out), nil
}

func (s *Server) handleGetOutputs(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sess, err := s.acquire(request.GetString("idf_path", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	model := sess.Snapshot()

	out := map[string]any{"path": sess.Path}
	kind := request.GetString("type", "both")
	if kind == "variables" || kind == "both" {
		out["variables"] = outputRequests(model, idf.ClassOutputVariable)
	}
	if kind == "meters" || kind == "both" {
		out["meters"] = outputRequests(model, idf.ClassOutputMeter)
	}
	return jsonResult(out), nil
}

// outputRequests flattens output objects into their annotated fields.
// Output:Variable and Output:Meter objects are unnamed, so the name-based
// listing helpers do not apply.
func outputRequests(m *idf.Model, class string) []map[string]string {
	out := []map[string]string{}
	for _, o := range m.Objects(class) {
		entry := map[string]string{}
		for _, f := range o.Fields {
			if f.Name != "" {
				entry[f.Name] = f.Value
			}
		}
		out = append(out, entry)
	}
	return out
}

var loopClasses = map[string]string{
	"plant":     idf.ClassPlantLoop,
	"condenser": idf.ClassCondenserLoop,
	"air":       idf.ClassAirLoop,
}

func (s *Server) handleHvacLoopInspect(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sess, err := s.acquire(request.GetString("idf_path", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	model := sess.Snapshot()

	switch action := request.GetString("action", "discover"); action {
	case "discover":
		loopType := request.GetString("loop_type", "all")
		loops := map[string][]string{}
		for kind, class := range loopClasses {
			if loopType != "all" && loopType != kind {
				continue
			}
			loops[kind] = model.Names(class)
		}
		return jsonResult(map[string]any{"path": sess.Path, "loops": loops}), nil

	case "topology":
		loopName := request.GetString("loop_name", "")
		if loopName == "" {
			return errorResult("topology requires loop_name"), nil
		}
		topo, err := loopTopology(model, loopName)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(topo), nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q: expected discover or topology", action)), nil
	}
}

// loopTopology expands one loop into its branch lists, branches, and
// branch components by following the name references in the document.
func loopTopology(m *idf.Model, loopName string) (map[string]any, error) {
	var loop *idf.Object
	var loopKind string
	for kind, class := range loopClasses {
		for _, o := range m.Objects(class) {
			if strings.EqualFold(o.Name(), loopName) {
				loop, loopKind = o, kind
			}
		}
	}
	if loop == nil {
		return nil, fmt.Errorf("loop %q not found in any loop class", loopName)
	}

	// Branch lists are referenced from loop fields whose annotated name
	// ends in "Branch_List_Name" (supply and demand sides).
	branchLists := []map[string]any{}
	for _, f := range loop.Fields {
		if !strings.HasSuffix(f.Name, "Branch_List_Name") || f.Value == "" {
			continue
		}
		bl := map[string]any{"name": f.Value, "side": f.Name}
		var branches []map[string]any
		if list := findNamed(m, idf.ClassBranchList, f.Value); list != nil {
			for _, bf := range list.Fields[1:] {
				if bf.Value == "" {
					continue
				}
				branches = append(branches, branchDetail(m, bf.Value))
			}
		}
		bl["branches"] = branches
		branchLists = append(branchLists, bl)
	}

	return map[string]any{
		"loop":         loop.Name(),
		"loop_type":    loopKind,
		"branch_lists": branchLists,
	}, nil
}

// branchDetail lists a branch's components as {type, name} pairs. Branch
// fields repeat in groups of four per component; the object type and name
// fields are what the topology view needs.
func branchDetail(m *idf.Model, branchName string) map[string]any {
	detail := map[string]any{"name": branchName}
	branch := findNamed(m, idf.ClassBranch, branchName)
	if branch == nil {
		detail["missing"] = true
		return detail
	}
	var components []map[string]string
	var current map[string]string
	for _, f := range branch.Fields {
		switch {
		case strings.HasSuffix(f.Name, "Object_Type"):
			current = map[string]string{"type": f.Value}
		case current != nil && strings.HasSuffix(f.Name, "_Name") &&
			!strings.Contains(f.Name, "Node"):
			current["name"] = f.Value
			components = append(components, current)
			current = nil
		}
	}
	detail["components"] = components
	return detail
}

func findNamed(m *idf.Model, class, name string) *idf.Object {
	for _, o := range m.Objects(class) {
		if strings.EqualFold(o.Name(), name) {
			return o
		}
	}
	return nil
}

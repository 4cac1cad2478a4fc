package ops

import (
	"fmt"
	"strings"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

func registerOutputs(r *registry.Registry) {
	r.MustRegister(registry.Descriptor{
		ID:          "outputs.add_variables",
		Domain:      "outputs",
		Additive:    true,
		Description: "Append Output:Variable requests. Appends again on re-apply when allow_duplicates is set; otherwise duplicates are skipped.",
		Schema: registry.Schema{Params: []registry.Param{
			{Name: "variables", Kind: registry.KindArray, Required: true,
				Description: "Variable names, or objects with key_value/variable_name/reporting_frequency."},
			{Name: "allow_duplicates", Kind: registry.KindBoolean, Default: false},
		}},
		Mutate: func(m *idf.Model, params map[string]any, _ []*idf.Object) ([]registry.Change, error) {
			items, _ := params["variables"].([]any)
			return addOutputRequests(m, "outputs.add_variables", idf.ClassOutputVariable, items, boolParam(params, "allow_duplicates", false))
		},
	})

	r.MustRegister(registry.Descriptor{
		ID:          "outputs.add_meters",
		Domain:      "outputs",
		Additive:    true,
		Description: "Append Output:Meter requests. Appends again on re-apply when allow_duplicates is set; otherwise duplicates are skipped.",
		Schema: registry.Schema{Params: []registry.Param{
			{Name: "meters", Kind: registry.KindArray, Required: true,
				Description: "Meter names, or objects with key_name/reporting_frequency."},
			{Name: "allow_duplicates", Kind: registry.KindBoolean, Default: false},
		}},
		Mutate: func(m *idf.Model, params map[string]any, _ []*idf.Object) ([]registry.Change, error) {
			items, _ := params["meters"].([]any)
			return addOutputRequests(m, "outputs.add_meters", idf.ClassOutputMeter, items, boolParam(params, "allow_duplicates", false))
		},
	})
}

func addOutputRequests(m *idf.Model, op, class string, items []any, allowDuplicates bool) ([]registry.Change, error) {
	if len(items) == 0 {
		return nil, &MutationError{Op: op, Reason: "no entries supplied"}
	}

	existing := make(map[string]bool)
	for _, o := range m.Objects(class) {
		existing[outputKey(o)] = true
	}

	var changes []registry.Change
	for i, item := range items {
		obj, err := outputObject(class, item)
		if err != nil {
			return nil, &MutationError{Op: op, Reason: fmt.Sprintf("entry %d: %v", i, err)}
		}
		key := outputKey(obj)
		if existing[key] && !allowDuplicates {
			continue
		}
		m.Add(obj)
		existing[key] = true
		name := obj.Name()
		if v, ok := obj.Get("Variable_Name"); ok {
			name = v
		}
		changes = append(changes, registry.Change{
			Object: name,
			Field:  "object",
			New:    class,
		})
	}
	return changes, nil
}

// outputObject builds an Output:Variable or Output:Meter from either a
// bare name string or a structured entry.
func outputObject(class string, item any) (*idf.Object, error) {
	switch v := item.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("empty name")
		}
		if class == idf.ClassOutputMeter {
			return idf.NewObject(class,
				"Key Name", v,
				"Reporting Frequency", "Hourly",
			), nil
		}
		return idf.NewObject(class,
			"Key Value", "*",
			"Variable Name", v,
			"Reporting Frequency", "Hourly",
		), nil
	case map[string]any:
		frequency := stringParam(v, "reporting_frequency", "Hourly")
		if class == idf.ClassOutputMeter {
			name := stringParam(v, "key_name", "")
			if name == "" {
				return nil, fmt.Errorf("key_name is required")
			}
			return idf.NewObject(class,
				"Key Name", name,
				"Reporting Frequency", frequency,
			), nil
		}
		name := stringParam(v, "variable_name", "")
		if name == "" {
			return nil, fmt.Errorf("variable_name is required")
		}
		return idf.NewObject(class,
			"Key Value", stringParam(v, "key_value", "*"),
			"Variable Name", name,
			"Reporting Frequency", frequency,
		), nil
	default:
		return nil, fmt.Errorf("must be a string or an object")
	}
}

func outputKey(o *idf.Object) string {
	var parts []string
	for _, f := range o.Fields {
		parts = append(parts, strings.ToUpper(strings.TrimSpace(f.Value)))
	}
	return strings.Join(parts, "|")
}

package registry

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind is the JSON type expected for a parameter value.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Param describes one operation parameter.
type Param struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Default     any      `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Schema is an operation's parameter schema: a flat list of typed,
// optionally-enumerated parameters.
type Schema struct {
	Params []Param

	// Open permits parameters beyond the declared ones. Field-update
	// operations set it so a bare field-to-value mapping validates without
	// the field_updates wrapper; declared params are still checked.
	Open bool
}

// ValidationError collects every schema violation found in one params map,
// so a client sees all problems in a single failed outcome.
type ValidationError struct {
	Op     string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Op, strings.Join(e.Issues, "; "))
}

// Validate checks params against the schema. It does not mutate params
// and does not apply defaults; defaulting is the mutation handler's job.
func (s Schema) Validate(op string, params map[string]any) error {
	var issues []string

	known := make(map[string]Param, len(s.Params))
	for _, p := range s.Params {
		known[p.Name] = p
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				issues = append(issues, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		issues = append(issues, checkValue(p, v)...)
	}
	if !s.Open {
		for name := range params {
			if _, ok := known[name]; !ok {
				issues = append(issues, fmt.Sprintf("unknown parameter %q", name))
			}
		}
	}

	if len(issues) > 0 {
		// Stable order keeps failed outcomes deterministic across runs.
		sort.Strings(issues)
		return &ValidationError{Op: op, Issues: issues}
	}
	return nil
}

func checkValue(p Param, v any) []string {
	var issues []string
	switch p.Kind {
	case KindString:
		str, ok := v.(string)
		if !ok {
			return []string{fmt.Sprintf("%q must be a string", p.Name)}
		}
		if len(p.Enum) > 0 && !contains(p.Enum, str) {
			issues = append(issues, fmt.Sprintf("%q must be one of %v", p.Name, p.Enum))
		}
	case KindNumber, KindInteger:
		n, ok := asFloat(v)
		if !ok {
			return []string{fmt.Sprintf("%q must be a number", p.Name)}
		}
		if p.Kind == KindInteger && n != math.Trunc(n) {
			issues = append(issues, fmt.Sprintf("%q must be an integer", p.Name))
		}
		if p.Min != nil && n < *p.Min {
			issues = append(issues, fmt.Sprintf("%q must be >= %v", p.Name, *p.Min))
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			issues = append(issues, fmt.Sprintf("%q must be a boolean", p.Name))
		}
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			issues = append(issues, fmt.Sprintf("%q must be an object", p.Name))
		}
	case KindArray:
		if _, ok := v.([]any); !ok {
			issues = append(issues, fmt.Sprintf("%q must be an array", p.Name))
		}
	}
	return issues
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

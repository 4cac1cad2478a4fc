// Package ops defines the operation kinds the server can apply to a
// model and registers them into the operation registry at startup.
//
// Mutation functions are pure with respect to everything but the model
// they are handed: the executor decides whether that model is the live
// session model or a dry-run shadow clone.
package ops

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/buildenergy/epmod/internal/registry"
)

// MutationError is a handler-internal precondition failure, e.g. a field
// update naming a field the target object does not have. It degrades the
// operation's outcome to failed without aborting the batch.
type MutationError struct {
	Op     string
	Reason string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("ops: %s: %s", e.Op, e.Reason)
}

// RegisterAll registers every operation kind. Called once at startup;
// panics on descriptor conflicts since those are build defects.
func RegisterAll(r *registry.Registry) {
	registerInternalLoads(r)
	registerSimulation(r)
	registerEnvelope(r)
	registerOutputs(r)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// reportValue renders a stored IDF field value for a ChangeSet: numeric
// strings come back as numbers so reports round-trip like the inputs.
func reportValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// valueString renders a caller-supplied parameter value into IDF text.
func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func floatParam(params map[string]any, name string, def float64) float64 {
	v, ok := params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func stringParam(params map[string]any, name, def string) string {
	if s, ok := params[name].(string); ok && s != "" {
		return s
	}
	return def
}

func boolParam(params map[string]any, name string, def bool) bool {
	if b, ok := params[name].(bool); ok {
		return b
	}
	return def
}

// sortedKeys gives field updates a deterministic application order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func float64Ptr(v float64) *float64 { return &v }

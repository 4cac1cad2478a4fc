package engine

import (
	"fmt"
	"strings"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

// selector is a parsed target selector.
type selector struct {
	all       bool
	names     []string
	predicate *fieldPredicate
}

type fieldPredicate struct {
	field  string
	equals string
}

// parseSelector normalizes the wire forms: "all", a single name, a list
// of names, or {"field": ..., "equals": ...}.
func parseSelector(v any) (selector, error) {
	switch t := v.(type) {
	case nil:
		return selector{all: true}, nil
	case string:
		if strings.EqualFold(t, "all") {
			return selector{all: true}, nil
		}
		return selector{names: []string{t}}, nil
	case []any:
		// An explicit empty list stays empty: exact-matching zero names
		// selects zero objects, never the whole collection.
		names := make([]string, 0, len(t))
		for _, item := range t {
			name, ok := item.(string)
			if !ok {
				return selector{}, fmt.Errorf("target list entries must be strings, got %T", item)
			}
			names = append(names, name)
		}
		return selector{names: names}, nil
	case []string:
		return selector{names: t}, nil
	case map[string]any:
		field, _ := t["field"].(string)
		if field == "" {
			return selector{}, fmt.Errorf("predicate target needs a \"field\" string")
		}
		equals, ok := t["equals"]
		if !ok {
			return selector{}, fmt.Errorf("predicate target needs an \"equals\" value")
		}
		return selector{predicate: &fieldPredicate{field: field, equals: fmt.Sprintf("%v", equals)}}, nil
	default:
		return selector{}, fmt.Errorf("unsupported target selector type %T", v)
	}
}

// resolveTargets resolves a selector against the model's current
// collection for the descriptor's class. Resolution is pure read access:
// it sees the effects of earlier operations in the same batch because it
// runs against the current model, never a pre-batch snapshot.
func resolveTargets(m *idf.Model, d *registry.Descriptor, sel selector) ([]*idf.Object, error) {
	if d.Additive {
		return nil, nil
	}
	collection := m.Objects(d.Class)

	switch {
	case sel.all:
		return collection, nil

	case sel.predicate != nil:
		var matched []*idf.Object
		for _, o := range collection {
			if v, ok := o.Get(sel.predicate.field); ok && strings.EqualFold(v, sel.predicate.equals) {
				matched = append(matched, o)
			}
		}
		// Zero matches is a valid empty result, not an error.
		return matched, nil

	default:
		byName := make(map[string]*idf.Object, len(collection))
		for _, o := range collection {
			byName[strings.ToUpper(o.Name())] = o
		}
		var targets []*idf.Object
		var missing []string
		for _, name := range sel.names {
			if o, ok := byName[strings.ToUpper(name)]; ok {
				targets = append(targets, o)
			} else {
				missing = append(missing, fmt.Sprintf("%q", name))
			}
		}
		if len(missing) > 0 {
			return nil, &TargetNotFoundError{Class: d.Class, Names: missing}
		}
		return targets, nil
	}
}

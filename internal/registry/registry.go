// Package registry is the closed-world operation registry: every
// modification operation the server can perform is registered here once at
// startup, and the executor dispatches by operation id.
package registry

import (
	"fmt"
	"sort"

	"github.com/buildenergy/epmod/internal/idf"
)

// Change is one field-level mutation produced by an operation. Old and New
// keep the caller-supplied representation (numbers stay numbers) so
// reports round-trip cleanly through JSON.
type Change struct {
	Object string `json:"object_name"`
	Field  string `json:"field"`
	Old    any    `json:"old_value"`
	New    any    `json:"new_value"`
}

// MutateFunc applies one operation to the given model. In dry-run mode the
// executor hands it a shadow clone; the function itself is identical in
// both modes. targets is nil for additive (model-level) operations.
type MutateFunc func(m *idf.Model, params map[string]any, targets []*idf.Object) ([]Change, error)

// Descriptor describes one registered operation.
type Descriptor struct {
	ID          string
	Domain      string
	Description string

	// Class is the IDF collection the operation targets. Empty for
	// additive operations that act on the model as a whole.
	Class string

	// Additive operations append objects instead of updating fields and
	// are therefore not idempotent: applying twice appends twice (unless
	// the handler itself deduplicates).
	Additive bool

	// ZoneScoped marks operations whose targets reference zones; the
	// capability manifest attaches the live zone list to these.
	ZoneScoped bool

	Schema Schema
	Mutate MutateFunc
}

// UnknownOperationError reports a lookup for an id that was never
// registered, carrying the valid ids for an actionable client error.
type UnknownOperationError struct {
	ID    string
	Valid []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("registry: unknown operation %q (valid: %v)", e.ID, e.Valid)
}

// Registry maps operation ids to descriptors. Registration closes after
// startup; Lookup is the only runtime entry point.
type Registry struct {
	byID map[string]*Descriptor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Duplicate ids and missing mutate functions
// are programming errors and fail loudly.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" || d.Domain == "" {
		return fmt.Errorf("registry: descriptor needs id and domain")
	}
	if d.Mutate == nil {
		return fmt.Errorf("registry: %s: nil mutate function", d.ID)
	}
	if _, ok := r.byID[d.ID]; ok {
		return fmt.Errorf("registry: duplicate operation %s", d.ID)
	}
	cp := d
	r.byID[d.ID] = &cp
	return nil
}

// MustRegister panics on registration failure. Used by the startup wiring
// where a bad descriptor means a bad build.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for id or an *UnknownOperationError.
func (r *Registry) Lookup(id string) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, &UnknownOperationError{ID: id, Valid: r.IDs()}
	}
	return d, nil
}

// IDs returns every registered operation id, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

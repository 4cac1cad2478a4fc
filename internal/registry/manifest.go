package registry

import "github.com/buildenergy/epmod/internal/idf"

// ModelHints carries live model state attached to a manifest entry: the
// current object names in the operation's collection, the annotated field
// names of those objects, and the zone list for zone-scoped operations.
type ModelHints struct {
	Objects []string `json:"objects,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Zones   []string `json:"zones,omitempty"`
}

// OperationManifest is one entry of the capability manifest.
type OperationManifest struct {
	ID          string      `json:"id"`
	Domain      string      `json:"domain"`
	Description string      `json:"description,omitempty"`
	Additive    bool        `json:"additive,omitempty"`
	Params      []Param     `json:"params_schema"`
	ModelHints  *ModelHints `json:"model_hints,omitempty"`
}

// Manifest is the full capability manifest: every registered operation
// cross-joined with hints from the supplied model.
type Manifest struct {
	Operations []OperationManifest `json:"operations"`
}

// Manifest enumerates the registry. When m is nil the result is
// schema-only; with a model it includes live hints. The manifest is
// computed fresh on every call so it always reflects current model state.
func (r *Registry) Manifest(m *idf.Model) Manifest {
	var out Manifest
	for _, id := range r.IDs() {
		d := r.byID[id]
		entry := OperationManifest{
			ID:          d.ID,
			Domain:      d.Domain,
			Description: d.Description,
			Additive:    d.Additive,
			Params:      d.Schema.Params,
		}
		if entry.Params == nil {
			entry.Params = []Param{}
		}
		if m != nil {
			entry.ModelHints = hintsFor(d, m)
		}
		out.Operations = append(out.Operations, entry)
	}
	return out
}

func hintsFor(d *Descriptor, m *idf.Model) *ModelHints {
	h := &ModelHints{}
	if d.Class != "" {
		h.Objects = m.Names(d.Class)
		if objs := m.Objects(d.Class); len(objs) > 0 {
			h.Fields = objs[0].FieldNames()
		}
	}
	if d.ZoneScoped {
		h.Zones = m.Names(idf.ClassZone)
	}
	if len(h.Objects) == 0 && len(h.Fields) == 0 && len(h.Zones) == 0 {
		return nil
	}
	return h
}

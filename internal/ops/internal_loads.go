package ops

import (
	"fmt"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

func registerInternalLoads(r *registry.Registry) {
	r.MustRegister(fieldUpdateOp("people.update", "people", idf.ClassPeople, true,
		"Update fields on People objects, e.g. Number_of_People."))
	r.MustRegister(fieldUpdateOp("lights.update", "lights", idf.ClassLights, true,
		"Update fields on Lights objects, e.g. Watts_per_Zone_Floor_Area."))
	r.MustRegister(fieldUpdateOp("electric_equipment.update", "electric_equipment", idf.ClassElectricEquipment, true,
		"Update fields on ElectricEquipment objects, e.g. Design_Level."))
}

// fieldUpdateOp builds a non-additive descriptor that applies a
// field-to-value mapping to each resolved target object. Re-applying the
// same updates reaches a fixed point: unchanged fields produce no
// ChangeSet entries.
func fieldUpdateOp(id, domain, class string, zoneScoped bool, desc string) registry.Descriptor {
	return registry.Descriptor{
		ID:          id,
		Domain:      domain,
		Class:       class,
		ZoneScoped:  zoneScoped,
		Description: desc,
		Schema:      fieldUpdateSchema,
		Mutate: func(m *idf.Model, params map[string]any, targets []*idf.Object) ([]registry.Change, error) {
			return applyFieldUpdates(id, fieldUpdates(params), targets)
		},
	}
}

// fieldUpdateSchema accepts both wire shapes for update operations: a
// field_updates object, or the fields given flat as top-level params.
var fieldUpdateSchema = registry.Schema{
	Open: true,
	Params: []registry.Param{
		{Name: "field_updates", Kind: registry.KindObject,
			Description: "Mapping of field name to new value. Fields may also be passed flat, one parameter each."},
	},
}

// fieldUpdates extracts the mapping: the field_updates object when
// present, otherwise every remaining parameter names a field.
func fieldUpdates(params map[string]any) map[string]any {
	if updates, ok := params["field_updates"].(map[string]any); ok {
		return updates
	}
	updates := make(map[string]any, len(params))
	for name, v := range params {
		if name == "field_updates" {
			continue
		}
		updates[name] = v
	}
	return updates
}

func applyFieldUpdates(op string, updates map[string]any, targets []*idf.Object) ([]registry.Change, error) {
	if len(updates) == 0 {
		return nil, &MutationError{Op: op, Reason: "no field updates given"}
	}

	var changes []registry.Change
	for _, target := range targets {
		for _, field := range sortedKeys(updates) {
			newVal := valueString(updates[field])
			old, ok := target.Get(field)
			if !ok {
				return nil, &MutationError{
					Op:     op,
					Reason: fmt.Sprintf("object %q has no field %q", target.Name(), field),
				}
			}
			if old == newVal {
				continue
			}
			target.Set(field, newVal)
			changes = append(changes, registry.Change{
				Object: target.Name(),
				Field:  field,
				Old:    reportValue(old),
				New:    updates[field],
			})
		}
	}
	return changes, nil
}

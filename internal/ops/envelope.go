package ops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

// WindowFilmName is the material added by envelope.add_window_film. The
// handler dedupes on it so re-applying a film reaches a fixed point.
const WindowFilmName = "EPMOD WINDOW FILM"

// infiltrationFields are the design-flow fields scaled by
// infiltration.scale when present and numeric.
var infiltrationFields = []string{
	"Design_Flow_Rate",
	"Flow_per_Zone_Floor_Area",
	"Flow_per_Exterior_Surface_Area",
	"Air_Changes_per_Hour",
}

func registerEnvelope(r *registry.Registry) {
	r.MustRegister(registry.Descriptor{
		ID:          "infiltration.scale",
		Domain:      "infiltration",
		Class:       idf.ClassInfiltration,
		ZoneScoped:  true,
		Description: "Multiply the design flow fields of ZoneInfiltration:DesignFlowRate objects. Non-idempotent for mult != 1.",
		Schema: registry.Schema{Params: []registry.Param{
			{Name: "mult", Kind: registry.KindNumber, Required: true,
				Description: "Scale factor, must be > 0."},
		}},
		Mutate: mutateInfiltrationScale,
	})

	r.MustRegister(registry.Descriptor{
		ID:          "envelope.add_window_film",
		Domain:      "envelope",
		Additive:    true,
		Description: "Add an exterior window film material and layer it onto every fenestration construction.",
		Schema: registry.Schema{Params: []registry.Param{
			{Name: "u_value", Kind: registry.KindNumber, Default: 4.94, Description: "Film U-factor, W/m2-K."},
			{Name: "shgc", Kind: registry.KindNumber, Default: 0.45, Description: "Solar heat gain coefficient."},
			{Name: "visible_transmittance", Kind: registry.KindNumber, Default: 0.66},
		}},
		Mutate: mutateAddWindowFilm,
	})

	r.MustRegister(registry.Descriptor{
		ID:          "envelope.add_coating",
		Domain:      "envelope",
		Additive:    true,
		Description: "Apply an exterior coating: set absorptance fields on the outermost material of exterior wall or roof constructions.",
		Schema: registry.Schema{Params: []registry.Param{
			{Name: "location", Kind: registry.KindString, Enum: []string{"wall", "roof"}, Default: "wall"},
			{Name: "solar_abs", Kind: registry.KindNumber, Default: 0.4, Min: float64Ptr(0)},
			{Name: "thermal_abs", Kind: registry.KindNumber, Default: 0.9, Min: float64Ptr(0)},
		}},
		Mutate: mutateAddCoating,
	})
}

func mutateInfiltrationScale(m *idf.Model, params map[string]any, targets []*idf.Object) ([]registry.Change, error) {
	mult := floatParam(params, "mult", 1.0)
	if mult <= 0 {
		return nil, &MutationError{Op: "infiltration.scale", Reason: "mult must be > 0"}
	}

	var changes []registry.Change
	for _, target := range targets {
		for _, field := range infiltrationFields {
			raw, ok := target.Get(field)
			if !ok || raw == "" {
				continue
			}
			old, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue // autosize or blank, leave alone
			}
			scaled := old * mult
			if scaled == old {
				continue
			}
			target.Set(field, formatNumber(scaled))
			changes = append(changes, registry.Change{
				Object: target.Name(),
				Field:  field,
				Old:    old,
				New:    scaled,
			})
		}
	}
	return changes, nil
}

func mutateAddWindowFilm(m *idf.Model, params map[string]any, _ []*idf.Object) ([]registry.Change, error) {
	uValue := floatParam(params, "u_value", 4.94)
	shgc := floatParam(params, "shgc", 0.45)
	vt := floatParam(params, "visible_transmittance", 0.66)

	var changes []registry.Change

	filmExists := false
	for _, o := range m.Objects(idf.ClassWindowMaterial) {
		if strings.EqualFold(o.Name(), WindowFilmName) {
			filmExists = true
			break
		}
	}
	if !filmExists {
		m.Add(idf.NewObject(idf.ClassWindowMaterial,
			"Name", WindowFilmName,
			"U-Factor", formatNumber(uValue),
			"Solar Heat Gain Coefficient", formatNumber(shgc),
			"Visible Transmittance", formatNumber(vt),
		))
		changes = append(changes, registry.Change{
			Object: WindowFilmName,
			Field:  "object",
			New:    idf.ClassWindowMaterial,
		})
	}

	// Layer the film onto each construction used by a fenestration
	// surface: the film becomes the new outside layer and the previous
	// layers shift inward.
	for _, constructionName := range fenestrationConstructions(m) {
		construction := findByName(m, idf.ClassConstruction, constructionName)
		if construction == nil {
			return nil, &MutationError{
				Op:     "envelope.add_window_film",
				Reason: fmt.Sprintf("fenestration references unknown construction %q", constructionName),
			}
		}
		outside, ok := construction.Get("Outside_Layer")
		if !ok || strings.EqualFold(outside, WindowFilmName) {
			continue
		}
		prependLayer(construction, WindowFilmName)
		changes = append(changes, registry.Change{
			Object: construction.Name(),
			Field:  "Outside_Layer",
			Old:    outside,
			New:    WindowFilmName,
		})
	}

	return changes, nil
}

func mutateAddCoating(m *idf.Model, params map[string]any, _ []*idf.Object) ([]registry.Change, error) {
	location := strings.ToLower(stringParam(params, "location", "wall"))
	solarAbs := floatParam(params, "solar_abs", 0.4)
	thermalAbs := floatParam(params, "thermal_abs", 0.9)

	wantType := "wall"
	if location == "roof" {
		wantType = "roof"
	}

	// Outermost materials of exterior constructions matching the location.
	coated := make(map[string]bool)
	var changes []registry.Change
	for _, surface := range m.Objects(idf.ClassSurface) {
		surfaceType, _ := surface.Get("Surface_Type")
		boundary, _ := surface.Get("Outside_Boundary_Condition")
		if !strings.EqualFold(surfaceType, wantType) || !strings.EqualFold(boundary, "Outdoors") {
			continue
		}
		constructionName, ok := surface.Get("Construction_Name")
		if !ok {
			continue
		}
		construction := findByName(m, idf.ClassConstruction, constructionName)
		if construction == nil {
			continue
		}
		outsideMaterial, ok := construction.Get("Outside_Layer")
		if !ok || coated[strings.ToUpper(outsideMaterial)] {
			continue
		}
		material := findByName(m, idf.ClassMaterial, outsideMaterial)
		if material == nil {
			continue
		}
		coated[strings.ToUpper(outsideMaterial)] = true

		for _, update := range []struct {
			field string
			value float64
		}{
			{"Solar_Absorptance", solarAbs},
			{"Thermal_Absorptance", thermalAbs},
		} {
			field, value := update.field, update.value
			old, ok := material.Get(field)
			newVal := formatNumber(value)
			if !ok || old == newVal {
				continue
			}
			material.Set(field, newVal)
			changes = append(changes, registry.Change{
				Object: material.Name(),
				Field:  field,
				Old:    reportValue(old),
				New:    value,
			})
		}
	}
	return changes, nil
}

// fenestrationConstructions returns the distinct construction names used
// by fenestration surfaces, in first-use order.
func fenestrationConstructions(m *idf.Model) []string {
	seen := make(map[string]bool)
	var names []string
	for _, surface := range m.Objects(idf.ClassFenestration) {
		name, ok := surface.Get("Construction_Name")
		if !ok || name == "" || seen[strings.ToUpper(name)] {
			continue
		}
		seen[strings.ToUpper(name)] = true
		names = append(names, name)
	}
	return names
}

func findByName(m *idf.Model, class, name string) *idf.Object {
	for _, o := range m.Objects(class) {
		if strings.EqualFold(o.Name(), name) {
			return o
		}
	}
	return nil
}

// prependLayer makes layerName the construction's outside layer, shifting
// existing layers inward by one position.
func prependLayer(construction *idf.Object, layerName string) {
	var fields []idf.Field
	var layers []string
	for _, f := range construction.Fields {
		name := strings.ToLower(strings.ReplaceAll(f.Name, " ", "_"))
		if name == "outside_layer" || strings.HasPrefix(name, "layer_") {
			layers = append(layers, f.Value)
			continue
		}
		fields = append(fields, f)
	}
	fields = append(fields, idf.Field{Name: "Outside Layer", Value: layerName})
	for i, layer := range layers {
		fields = append(fields, idf.Field{Name: fmt.Sprintf("Layer %d", i+2), Value: layer})
	}
	construction.Fields = fields
}

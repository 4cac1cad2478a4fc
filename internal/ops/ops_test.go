package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
	"github.com/buildenergy/epmod/internal/testutil"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	RegisterAll(r)
	return r
}

func mutate(t *testing.T, r *registry.Registry, m *idf.Model, op string, params map[string]any, targets []*idf.Object) ([]registry.Change, error) {
	t.Helper()
	d, err := r.Lookup(op)
	require.NoError(t, err)
	return d.Mutate(m, params, targets)
}

func TestRegisterAllOperations(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, []string{
		"electric_equipment.update",
		"envelope.add_coating",
		"envelope.add_window_film",
		"infiltration.scale",
		"lights.update",
		"outputs.add_meters",
		"outputs.add_variables",
		"people.update",
		"run_period.update",
		"simulation_control.update",
	}, r.IDs())
}

func TestPeopleUpdate(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()
	targets := m.Objects(idf.ClassPeople)

	changes, err := mutate(t, r, m, "people.update",
		map[string]any{"field_updates": map[string]any{"Number_of_People": float64(10)}},
		targets)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	for _, c := range changes {
		assert.Equal(t, "Number_of_People", c.Field)
		assert.Equal(t, float64(10), c.New)
	}
	assert.Equal(t, float64(5), changes[0].Old)

	v, _ := targets[0].Get("Number of People")
	assert.Equal(t, "10", v)

	// Fixed point: the same updates change nothing the second time.
	again, err := mutate(t, r, m, "people.update",
		map[string]any{"field_updates": map[string]any{"Number_of_People": float64(10)}},
		targets)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestFieldUpdateFlatParams(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()
	targets := m.Objects(idf.ClassPeople)

	d, err := r.Lookup("people.update")
	require.NoError(t, err)

	// The flat form validates and mutates exactly like the wrapped form.
	params := map[string]any{"Number_of_People": float64(10)}
	require.NoError(t, d.Schema.Validate(d.ID, params))

	changes, err := d.Mutate(m, params, targets)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "Number_of_People", changes[0].Field)

	v, _ := targets[0].Get("Number_of_People")
	assert.Equal(t, "10", v)
}

func TestFieldUpdateUnknownField(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	_, err := mutate(t, r, m, "lights.update",
		map[string]any{"field_updates": map[string]any{"Wattage_of_Doom": float64(1)}},
		m.Objects(idf.ClassLights))

	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "lights.update", merr.Op)
}

func TestFieldUpdateEmptyUpdates(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	_, err := mutate(t, r, m, "people.update",
		map[string]any{"field_updates": map[string]any{}},
		m.Objects(idf.ClassPeople))
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
}

func TestSimulationControlUpdate(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()
	targets := m.Objects(idf.ClassSimulationControl)

	changes, err := mutate(t, r, m, "simulation_control.update",
		map[string]any{"field_updates": map[string]any{"Do_Plant_Sizing_Calculation": "Yes"}},
		targets)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "No", changes[0].Old)

	v, _ := targets[0].Get("Do_Plant_Sizing_Calculation")
	assert.Equal(t, "Yes", v)
}

func TestInfiltrationScale(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()
	targets := m.Objects(idf.ClassInfiltration)

	changes, err := mutate(t, r, m, "infiltration.scale",
		map[string]any{"mult": 2.0}, targets)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Design_Flow_Rate", changes[0].Field)
	assert.Equal(t, 0.05, changes[0].Old)
	assert.Equal(t, 0.1, changes[0].New)

	v, _ := targets[0].Get("Design Flow Rate")
	assert.Equal(t, "0.1", v)

	// Scaling compounds; re-applying is not a no-op.
	again, err := mutate(t, r, m, "infiltration.scale",
		map[string]any{"mult": 2.0}, targets)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 0.2, again[0].New)
}

func TestInfiltrationScaleRejectsNonPositive(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	_, err := mutate(t, r, m, "infiltration.scale",
		map[string]any{"mult": -0.5}, m.Objects(idf.ClassInfiltration))
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
}

func TestInfiltrationScaleSkipsAutosize(t *testing.T) {
	r := newRegistry(t)
	m := idf.NewModel()
	m.Add(idf.NewObject(idf.ClassInfiltration,
		"Name", "Autosized",
		"Design Flow Rate", "autosize",
	))

	changes, err := mutate(t, r, m, "infiltration.scale",
		map[string]any{"mult": 3.0}, m.Objects(idf.ClassInfiltration))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestAddWindowFilm(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	changes, err := mutate(t, r, m, "envelope.add_window_film", map[string]any{}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2) // film material + one construction relayered

	film := m.Objects(idf.ClassWindowMaterial)
	require.Len(t, film, 2)
	assert.Equal(t, WindowFilmName, film[1].Name())
	u, _ := film[1].Get("U-Factor")
	assert.Equal(t, "4.94", u)

	construction := m.Objects(idf.ClassConstruction)[1]
	outside, _ := construction.Get("Outside_Layer")
	assert.Equal(t, WindowFilmName, outside)
	layer2, _ := construction.Get("Layer_2")
	assert.Equal(t, "Clear Glazing", layer2)

	// The wall construction is untouched: no fenestration uses it.
	wall := m.Objects(idf.ClassConstruction)[0]
	outside, _ = wall.Get("Outside_Layer")
	assert.Equal(t, "Brick", outside)

	// Fixed point on re-apply: film exists and is already the outside layer.
	again, err := mutate(t, r, m, "envelope.add_window_film", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 2, m.Count(idf.ClassWindowMaterial))
}

func TestAddWindowFilmUnknownConstruction(t *testing.T) {
	r := newRegistry(t)
	m := idf.NewModel()
	m.Add(idf.NewObject(idf.ClassFenestration,
		"Name", "Orphan Window",
		"Construction Name", "Ghost Construction",
	))

	_, err := mutate(t, r, m, "envelope.add_window_film", map[string]any{}, nil)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Reason, "Ghost Construction")
}

func TestAddCoating(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	changes, err := mutate(t, r, m, "envelope.add_coating",
		map[string]any{"location": "wall", "solar_abs": 0.3}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 1) // thermal_abs default 0.9 matches Brick already

	assert.Equal(t, "Brick", changes[0].Object)
	assert.Equal(t, "Solar_Absorptance", changes[0].Field)
	assert.Equal(t, 0.7, changes[0].Old)
	assert.Equal(t, 0.3, changes[0].New)

	// No exterior roof surfaces in the sample: a valid empty outcome.
	roof, err := mutate(t, r, m, "envelope.add_coating",
		map[string]any{"location": "roof"}, nil)
	require.NoError(t, err)
	assert.Empty(t, roof)
}

func TestAddOutputVariables(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	changes, err := mutate(t, r, m, "outputs.add_variables", map[string]any{
		"variables": []any{
			"Zone Air Relative Humidity",
			map[string]any{
				"key_value":           "Zone1",
				"variable_name":       "Zone Lights Electricity Rate",
				"reporting_frequency": "Daily",
			},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 3, m.Count(idf.ClassOutputVariable))

	// The sample model already requests Zone Mean Air Temperature hourly;
	// duplicates are skipped unless explicitly allowed.
	skipped, err := mutate(t, r, m, "outputs.add_variables", map[string]any{
		"variables": []any{"Zone Mean Air Temperature"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, 3, m.Count(idf.ClassOutputVariable))

	forced, err := mutate(t, r, m, "outputs.add_variables", map[string]any{
		"variables":        []any{"Zone Mean Air Temperature"},
		"allow_duplicates": true,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, forced, 1)
	assert.Equal(t, 4, m.Count(idf.ClassOutputVariable))
}

func TestAddOutputMeters(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	changes, err := mutate(t, r, m, "outputs.add_meters", map[string]any{
		"meters": []any{
			"Electricity:Facility",
			map[string]any{"key_name": "NaturalGas:Facility", "reporting_frequency": "Monthly"},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 2, m.Count(idf.ClassOutputMeter))

	meters := m.Objects(idf.ClassOutputMeter)
	freq, _ := meters[0].Get("Reporting_Frequency")
	assert.Equal(t, "Hourly", freq)
	freq, _ = meters[1].Get("Reporting_Frequency")
	assert.Equal(t, "Monthly", freq)
}

func TestAddOutputsRejectsBadEntries(t *testing.T) {
	r := newRegistry(t)
	m := testutil.SampleModel()

	var merr *MutationError

	_, err := mutate(t, r, m, "outputs.add_variables",
		map[string]any{"variables": []any{}}, nil)
	require.ErrorAs(t, err, &merr)

	_, err = mutate(t, r, m, "outputs.add_variables",
		map[string]any{"variables": []any{map[string]any{"key_value": "*"}}}, nil)
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Reason, "variable_name")

	_, err = mutate(t, r, m, "outputs.add_meters",
		map[string]any{"meters": []any{42.0}}, nil)
	require.ErrorAs(t, err, &merr)
}

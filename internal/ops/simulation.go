package ops

import (
	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
)

func registerSimulation(r *registry.Registry) {
	r.MustRegister(registry.Descriptor{
		ID:          "simulation_control.update",
		Domain:      "simulation_control",
		Class:       idf.ClassSimulationControl,
		Description: "Update fields on the SimulationControl object, e.g. Run_Simulation_for_Weather_File_Run_Periods.",
		Schema:      fieldUpdateSchema,
		Mutate: func(m *idf.Model, params map[string]any, targets []*idf.Object) ([]registry.Change, error) {
			return applyFieldUpdates("simulation_control.update", fieldUpdates(params), targets)
		},
	})

	r.MustRegister(registry.Descriptor{
		ID:          "run_period.update",
		Domain:      "run_period",
		Class:       idf.ClassRunPeriod,
		Description: "Update fields on RunPeriod objects, e.g. Begin_Month/End_Month. Target a run period by name, or omit the target to update all.",
		Schema:      fieldUpdateSchema,
		Mutate: func(m *idf.Model, params map[string]any, targets []*idf.Object) ([]registry.Change, error) {
			return applyFieldUpdates("run_period.update", fieldUpdates(params), targets)
		},
	})
}

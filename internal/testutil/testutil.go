// Package testutil provides shared test fixtures: a quiet logger and a
// small but complete sample building model covering every collection the
// operation handlers touch.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildenergy/epmod/internal/idf"
)

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// SampleModel builds a two-zone office model with internal loads,
// infiltration, simulation settings, an exterior wall, and a window.
func SampleModel() *idf.Model {
	m := idf.NewModel()

	m.Add(idf.NewObject(idf.ClassZone, "Name", "Zone1"))
	m.Add(idf.NewObject(idf.ClassZone, "Name", "Zone2"))

	m.Add(idf.NewObject(idf.ClassPeople,
		"Name", "Zone1 People",
		"Zone or ZoneList Name", "Zone1",
		"Number of People Schedule Name", "Occupancy",
		"Number of People Calculation Method", "People",
		"Number of People", "5",
	))
	m.Add(idf.NewObject(idf.ClassPeople,
		"Name", "Zone2 People",
		"Zone or ZoneList Name", "Zone2",
		"Number of People Schedule Name", "Occupancy",
		"Number of People Calculation Method", "People",
		"Number of People", "8",
	))
	m.Add(idf.NewObject(idf.ClassPeople,
		"Name", "Lobby People",
		"Zone or ZoneList Name", "Zone1",
		"Number of People Schedule Name", "Occupancy",
		"Number of People Calculation Method", "People",
		"Number of People", "2",
	))

	m.Add(idf.NewObject(idf.ClassLights,
		"Name", "Zone1 Lights",
		"Zone or ZoneList Name", "Zone1",
		"Schedule Name", "Office Lighting",
		"Design Level Calculation Method", "LightingLevel",
		"Lighting Level", "1200",
	))

	m.Add(idf.NewObject(idf.ClassElectricEquipment,
		"Name", "Zone1 Equipment",
		"Zone or ZoneList Name", "Zone1",
		"Schedule Name", "Office Equipment",
		"Design Level Calculation Method", "EquipmentLevel",
		"Design Level", "800",
	))

	m.Add(idf.NewObject(idf.ClassInfiltration,
		"Name", "Zone1 Infiltration",
		"Zone or ZoneList Name", "Zone1",
		"Schedule Name", "Always On",
		"Design Flow Rate Calculation Method", "Flow/Zone",
		"Design Flow Rate", "0.05",
	))

	m.Add(idf.NewObject(idf.ClassSimulationControl,
		"Do Zone Sizing Calculation", "Yes",
		"Do System Sizing Calculation", "Yes",
		"Do Plant Sizing Calculation", "No",
		"Run Simulation for Sizing Periods", "Yes",
		"Run Simulation for Weather File Run Periods", "Yes",
	))

	m.Add(idf.NewObject(idf.ClassRunPeriod,
		"Name", "Annual",
		"Begin Month", "1",
		"Begin Day of Month", "1",
		"End Month", "12",
		"End Day of Month", "31",
	))

	m.Add(idf.NewObject(idf.ClassMaterial,
		"Name", "Brick",
		"Roughness", "MediumRough",
		"Thickness", "0.1",
		"Conductivity", "0.89",
		"Density", "1920",
		"Specific Heat", "790",
		"Thermal Absorptance", "0.9",
		"Solar Absorptance", "0.7",
		"Visible Absorptance", "0.7",
	))
	m.Add(idf.NewObject(idf.ClassWindowMaterial,
		"Name", "Clear Glazing",
		"U-Factor", "2.7",
		"Solar Heat Gain Coefficient", "0.7",
		"Visible Transmittance", "0.8",
	))

	m.Add(idf.NewObject(idf.ClassConstruction,
		"Name", "Exterior Wall",
		"Outside Layer", "Brick",
	))
	m.Add(idf.NewObject(idf.ClassConstruction,
		"Name", "Window Construction",
		"Outside Layer", "Clear Glazing",
	))

	m.Add(idf.NewObject(idf.ClassSurface,
		"Name", "Zone1 South Wall",
		"Surface Type", "Wall",
		"Construction Name", "Exterior Wall",
		"Zone Name", "Zone1",
		"Outside Boundary Condition", "Outdoors",
	))

	m.Add(idf.NewObject(idf.ClassFenestration,
		"Name", "Zone1 South Window",
		"Surface Type", "Window",
		"Construction Name", "Window Construction",
		"Building Surface Name", "Zone1 South Wall",
	))

	m.Add(idf.NewObject(idf.ClassOutputVariable,
		"Key Value", "*",
		"Variable Name", "Zone Mean Air Temperature",
		"Reporting Frequency", "Hourly",
	))

	return m
}

// WriteSampleDoc serializes the sample model into dir and returns the
// document path.
func WriteSampleDoc(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.idf")
	if err := os.WriteFile(path, SampleModel().Serialize(), 0o644); err != nil {
		t.Fatalf("write sample doc: %v", err)
	}
	return path
}

package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/ops"
	"github.com/buildenergy/epmod/internal/registry"
	"github.com/buildenergy/epmod/internal/session"
	"github.com/buildenergy/epmod/internal/testutil"
)

type fixture struct {
	executor *Executor
	arena    *session.Arena
	path     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testutil.TestLogger()

	reg := registry.New()
	ops.RegisterAll(reg)
	gateway := idf.NewGateway(logger)

	return &fixture{
		executor: New(reg, gateway, logger, 5*time.Second),
		arena:    session.NewArena(gateway, logger),
		path:     testutil.WriteSampleDoc(t, t.TempDir()),
	}
}

func (f *fixture) session(t *testing.T) *session.Session {
	t.Helper()
	sess, err := f.arena.Acquire(f.path)
	require.NoError(t, err)
	return sess
}

func readDoc(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func peopleUpdate(target any, count float64) OperationRequest {
	return OperationRequest{
		Op:     "people.update",
		Params: map[string]any{"field_updates": map[string]any{"Number_of_People": count}},
		Target: target,
	}
}

func TestDryRunLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	before := readDoc(t, f.path)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
		Mode:       ModeDryRun,
	})

	assert.Equal(t, StatusAllOK, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeApplied, report.Results[0].Outcome)
	assert.Equal(t, 3, report.Results[0].TargetCount)
	assert.Len(t, report.Results[0].Changes, 3)
	assert.Empty(t, report.PersistedPath)

	// Neither the live model nor the document changed.
	v, _ := sess.Model().Objects(idf.ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "5", v)
	assert.Equal(t, before, readDoc(t, f.path))
}

func TestApplyPersistsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	batch := Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
		Mode:       ModeApply,
	}

	report := f.executor.Execute(t.Context(), sess, batch)
	assert.Equal(t, StatusAllOK, report.Status)
	assert.Equal(t, f.path, report.PersistedPath)
	assert.Nil(t, report.PersistError)
	require.Len(t, report.Results[0].Changes, 3)

	v, _ := sess.Model().Objects(idf.ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "10", v)
	assert.Contains(t, string(readDoc(t, f.path)), "10")

	// Same batch again: fixed point, empty ChangeSets, still all_ok.
	again := f.executor.Execute(t.Context(), sess, batch)
	assert.Equal(t, StatusAllOK, again.Status)
	assert.Equal(t, OutcomeApplied, again.Results[0].Outcome)
	assert.Empty(t, again.Results[0].Changes)
	assert.NotEqual(t, report.BatchID, again.BatchID)
}

func TestFlatFieldParamsApply(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	// Field updates given flat, without the field_updates wrapper.
	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{{
			Op:     "people.update",
			Target: "all",
			Params: map[string]any{"Number_of_People": 10.0},
		}},
		Mode: ModeApply,
	})

	assert.Equal(t, StatusAllOK, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeApplied, report.Results[0].Outcome)
	assert.Equal(t, 3, report.Results[0].TargetCount)
	assert.Len(t, report.Results[0].Changes, 3)
	assert.Equal(t, f.path, report.PersistedPath)

	v, _ := sess.Model().Objects(idf.ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "10", v)
}

func TestUnknownModeFailsBatch(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	before := readDoc(t, f.path)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
		Mode:       Mode("plan"),
	})

	assert.Equal(t, StatusAllFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	require.NotNil(t, report.Results[0].Error)
	assert.Equal(t, KindSchemaValidation, report.Results[0].Error.Kind)

	// Nothing executed: model and document untouched.
	v, _ := sess.Model().Objects(idf.ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "5", v)
	assert.Equal(t, before, readDoc(t, f.path))

	// An omitted mode is still the dry-run default, not an error.
	defaulted := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
	})
	assert.Equal(t, ModeDryRun, defaulted.Mode)
	assert.Equal(t, StatusAllOK, defaulted.Status)
}

func TestApplyToOutputPath(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	before := readDoc(t, f.path)
	out := filepath.Join(t.TempDir(), "modified.idf")

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
		Mode:       ModeApply,
		OutputPath: out,
	})

	assert.Equal(t, out, report.PersistedPath)
	assert.Equal(t, before, readDoc(t, f.path))
	assert.Contains(t, string(readDoc(t, out)), "10")
}

func TestContinueOnError(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{
			{Op: "nonsense.op"},
			peopleUpdate("Zone1 People", 7),
		},
		Mode: ModeDryRun,
	})

	// A batch with an unknown entry can never be all_ok, but the valid
	// entry still executes.
	assert.Equal(t, StatusPartial, report.Status)
	require.Len(t, report.Results, 2)

	failed := report.Results[0]
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	require.NotNil(t, failed.Error)
	assert.Equal(t, KindUnknownOperation, failed.Error.Kind)

	ok := report.Results[1]
	assert.Equal(t, OutcomeApplied, ok.Outcome)
	assert.Equal(t, 1, ok.TargetCount)
}

func TestStrictAbortSkipsRemainder(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{
			{Op: "infiltration.scale", Params: map[string]any{}}, // missing mult
			peopleUpdate("all", 7),
			peopleUpdate("all", 8),
		},
		Mode:        ModeDryRun,
		StrictAbort: true,
	})

	assert.Equal(t, StatusPartial, report.Status)
	require.Len(t, report.Results, 3)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, KindSchemaValidation, report.Results[0].Error.Kind)
	assert.Equal(t, OutcomeSkipped, report.Results[1].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Results[2].Outcome)
}

func TestErrorKinds(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{
			{Op: "missing.op"},
			{Op: "infiltration.scale", Params: map[string]any{"mult": "two"}},
			peopleUpdate("Nobody Here", 5),
			{
				Op:     "people.update",
				Params: map[string]any{"field_updates": map[string]any{"Imaginary_Field": 1.0}},
				Target: "all",
			},
		},
		Mode: ModeDryRun,
	})

	assert.Equal(t, StatusAllFailed, report.Status)
	require.Len(t, report.Results, 4)
	assert.Equal(t, KindUnknownOperation, report.Results[0].Error.Kind)
	assert.Equal(t, KindSchemaValidation, report.Results[1].Error.Kind)
	assert.Equal(t, KindTargetNotFound, report.Results[2].Error.Kind)
	assert.Equal(t, KindMutation, report.Results[3].Error.Kind)
}

func TestTargetSelectors(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	tests := []struct {
		name    string
		target  any
		targets int
	}{
		{"nil is all", nil, 3},
		{"all keyword", "all", 3},
		{"single name", "Zone2 People", 1},
		{"name list", []any{"Zone1 People", "Lobby People"}, 2},
		{"empty list selects nothing", []any{}, 0},
		{"predicate", map[string]any{"field": "Zone_or_ZoneList_Name", "equals": "Zone1"}, 2},
		{"predicate zero matches", map[string]any{"field": "Zone_or_ZoneList_Name", "equals": "Penthouse"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := f.executor.Execute(t.Context(), sess, Batch{
				Operations: []OperationRequest{peopleUpdate(tt.target, 10)},
				Mode:       ModeDryRun,
			})
			require.Len(t, report.Results, 1)
			assert.Equal(t, OutcomeApplied, report.Results[0].Outcome)
			assert.Equal(t, tt.targets, report.Results[0].TargetCount)
		})
	}
}

func TestEmptyCollectionAllIsValidNoop(t *testing.T) {
	f := newFixture(t)
	logger := testutil.TestLogger()

	// A document with no ElectricEquipment at all: "all" over the empty
	// collection applies with zero targets instead of failing.
	path := filepath.Join(t.TempDir(), "bare.idf")
	bare := idf.NewModel()
	bare.Add(idf.NewObject(idf.ClassZone, "Name", "Zone1"))
	require.NoError(t, idf.NewGateway(logger).Save(t.Context(), bare, path))

	sess, err := f.arena.Acquire(path)
	require.NoError(t, err)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{{
			Op:     "electric_equipment.update",
			Params: map[string]any{"field_updates": map[string]any{"Design_Level": 500.0}},
			Target: "all",
		}},
		Mode: ModeDryRun,
	})

	assert.Equal(t, StatusAllOK, report.Status)
	assert.Equal(t, OutcomeApplied, report.Results[0].Outcome)
	assert.Equal(t, 0, report.Results[0].TargetCount)
	assert.Empty(t, report.Results[0].Changes)
}

func TestEmptyBatch(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{Mode: ModeDryRun})
	assert.Equal(t, StatusAllOK, report.Status)
	assert.Empty(t, report.Results)
}

func TestPersistFailureIsBatchLevel(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{peopleUpdate("all", 10)},
		Mode:       ModeApply,
		OutputPath: filepath.Join(f.path, "not-a-directory", "out.idf"),
	})

	// Operations succeeded; only the persist failed.
	assert.Equal(t, StatusAllOK, report.Status)
	assert.Empty(t, report.PersistedPath)
	require.NotNil(t, report.PersistError)
	assert.Equal(t, KindPersist, report.PersistError.Kind)
}

func TestLaterOperationsSeeEarlierMutations(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)

	report := f.executor.Execute(t.Context(), sess, Batch{
		Operations: []OperationRequest{
			peopleUpdate("all", 10),
			peopleUpdate(map[string]any{"field": "Number_of_People", "equals": "10"}, 12),
		},
		Mode: ModeDryRun,
	})

	require.Len(t, report.Results, 2)
	// The second operation's predicate matches the first's updates.
	assert.Equal(t, 3, report.Results[1].TargetCount)
	assert.Len(t, report.Results[1].Changes, 3)
}

package epmod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildenergy/epmod/internal/testutil"
)

func newApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteSampleDoc(t, dir)

	app, err := New(
		WithLogger(testutil.TestLogger()),
		WithVersion("test"),
		WithWorkspaceRoot(dir),
		WithHistoryPath(""),
		WithSurfaceConfigPath(""),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(t.Context()) })
	return app, dir
}

func TestExecuteDryRun(t *testing.T) {
	app, _ := newApp(t)

	report, err := app.Execute(t.Context(), "sample.idf", Batch{
		Operations: []Operation{{
			Op:     "people.update",
			Target: "all",
			Params: map[string]any{"field_updates": map[string]any{"Number_of_People": 10.0}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "all_ok", report.Status)
	assert.Equal(t, "dry_run", report.Mode)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "applied", report.Results[0].Outcome)
	assert.Len(t, report.Results[0].Changes, 3)
	assert.Empty(t, report.PersistedPath)
}

func TestExecuteApply(t *testing.T) {
	app, _ := newApp(t)

	report, err := app.Execute(t.Context(), "sample.idf", Batch{
		Apply: true,
		Operations: []Operation{{
			Op:     "people.update",
			Target: "all",
			Params: map[string]any{"field_updates": map[string]any{"Number_of_People": 10.0}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "all_ok", report.Status)
	assert.NotEmpty(t, report.PersistedPath)

	// Fixed point on re-apply.
	again, err := app.Execute(t.Context(), "sample.idf", Batch{
		Apply: true,
		Operations: []Operation{{
			Op:     "people.update",
			Target: "all",
			Params: map[string]any{"field_updates": map[string]any{"Number_of_People": 10.0}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "all_ok", again.Status)
	assert.Empty(t, again.Results[0].Changes)
}

func TestExecuteFailureClassification(t *testing.T) {
	app, _ := newApp(t)

	report, err := app.Execute(t.Context(), "sample.idf", Batch{
		Operations: []Operation{{Op: "bogus.op"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "all_failed", report.Status)
	require.NotNil(t, report.Results[0].Error)
	assert.Equal(t, "unknown_operation", report.Results[0].Error.Kind)
}

func TestOperations(t *testing.T) {
	app, _ := newApp(t)
	ids := app.Operations()
	assert.Contains(t, ids, "people.update")
	assert.Contains(t, ids, "envelope.add_window_film")
	assert.Len(t, ids, 10)
}

func TestExecuteRequiresPath(t *testing.T) {
	app, _ := newApp(t)
	_, err := app.Execute(t.Context(), "", Batch{})
	assert.Error(t, err)
}

package idf

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleDoc = `! Simple two-object document.
Zone,
    Core Zone;               !- Name

People,
    Core People,             !- Name
    Core Zone,               !- Zone or ZoneList Name
    Occupancy,               !- Number of People Schedule Name
    People,                  !- Number of People Calculation Method
    5;                       !- Number of People

Output:Variable,
    *,                       !- Key Value
    Zone Mean Air Temperature, !- Variable Name
    Hourly;                  !- Reporting Frequency
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, []string{"Zone", "People", "Output:Variable"}, m.Classes())
	assert.Equal(t, []string{"Core Zone"}, m.Names(ClassZone))

	people := m.Objects(ClassPeople)
	require.Len(t, people, 1)
	assert.Equal(t, "Core People", people[0].Name())

	n, ok := people[0].Get("Number_of_People")
	require.True(t, ok)
	assert.Equal(t, "5", n)
}

func TestParseCompactSyntax(t *testing.T) {
	// Multiple fields on one line, annotation applies to the last.
	m, err := Parse(strings.NewReader("Zone, Attic;  !- Name\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Attic"}, m.Names(ClassZone))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("Zone,\n    Unterminated\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("Zone,\n    Dangling,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestRoundTrip(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	first := m.Serialize()
	reparsed, err := Parse(bytes.NewReader(first))
	require.NoError(t, err)
	second := reparsed.Serialize()

	// Serialization is a fixed point after one pass.
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, m.Classes(), reparsed.Classes())
}

func TestGetSetCanonicalMatching(t *testing.T) {
	o := NewObject(ClassPeople,
		"Name", "P1",
		"Number of People", "5",
	)

	for _, key := range []string{"Number of People", "Number_of_People", "number_of_people"} {
		v, ok := o.Get(key)
		require.True(t, ok, "key %q", key)
		assert.Equal(t, "5", v)
	}

	old, ok := o.Set("Number_of_People", "10")
	require.True(t, ok)
	assert.Equal(t, "5", old)

	v, _ := o.Get("Number of People")
	assert.Equal(t, "10", v)

	_, ok = o.Set("No Such Field", "x")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	clone := m.Clone()
	clone.Objects(ClassPeople)[0].Set("Number_of_People", "99")
	clone.Add(NewObject(ClassZone, "Name", "New Zone"))

	v, _ := m.Objects(ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "5", v)
	assert.Equal(t, 1, m.Count(ClassZone))
	assert.Equal(t, 2, clone.Count(ClassZone))
}

func TestValidate(t *testing.T) {
	m := NewModel()
	m.Add(NewObject(ClassZone, "Name", "Zone1"))
	m.Add(NewObject(ClassPeople,
		"Name", "P1",
		"Zone or ZoneList Name", "Zone1",
	))
	assert.Empty(t, Validate(m))

	m.Add(NewObject(ClassPeople,
		"Name", "P2",
		"Zone or ZoneList Name", "Missing Zone",
	))
	m.Add(NewObject(ClassZone, "Name", "Zone1")) // duplicate

	issues := Validate(m)
	require.Len(t, issues, 2)
	for _, iss := range issues {
		assert.Equal(t, "error", iss.Severity)
	}
}

func TestGatewaySaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/model.idf"

	m, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	g := NewGateway(testLogger())
	require.NoError(t, g.Save(t.Context(), m, path))

	loaded, err := g.Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Serialize(), loaded.Serialize())

	_, err = g.Load(dir + "/absent.idf")
	assert.ErrorIs(t, err, ErrNotFound)
}

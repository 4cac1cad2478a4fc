package surface

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildenergy/epmod/internal/testutil"
)

func defaultFlags() Flags {
	return Flags{
		Masters:  true,
		Wrappers: map[string]bool{},
	}
}

func TestResolveFromFlagsOnly(t *testing.T) {
	r := Resolve(nil, defaultFlags())

	assert.Equal(t, ModeMasters, r.Mode)
	assert.True(t, r.Masters)
	assert.False(t, r.DomainManagers)
	assert.Equal(t, "env", r.Source)

	// Default domain toggles: outputs stays off.
	assert.True(t, r.Domains["envelope"])
	assert.True(t, r.Domains["internal_loads"])
	assert.True(t, r.Domains["hvac"])
	assert.False(t, r.Domains["outputs"])
}

func TestDocumentModeOverridesEnvFlags(t *testing.T) {
	var doc Doc
	doc.ToolSurface.Mode = "domains"

	// Env says masters; the document wins.
	r := Resolve(&doc, defaultFlags())
	assert.Equal(t, ModeDomains, r.Mode)
	assert.False(t, r.Masters)
	assert.True(t, r.DomainManagers)
	assert.Equal(t, "document", r.Source)
}

func TestHybridMode(t *testing.T) {
	var doc Doc
	doc.ToolSurface.Mode = "HYBRID" // mode matching is case-insensitive

	r := Resolve(&doc, Flags{Wrappers: map[string]bool{}})
	assert.Equal(t, ModeHybrid, r.Mode)
	assert.True(t, r.Masters)
	assert.True(t, r.DomainManagers)
}

func TestEnableWrappersOverridesWholesale(t *testing.T) {
	flags := defaultFlags()
	flags.Masters = false
	flags.Wrappers = map[string]bool{"inspect": true, "modify": false}

	on := true
	var doc Doc
	doc.ToolSurface.EnableWrappers = &on

	r := Resolve(&doc, flags)
	for _, g := range WrapperGroups {
		assert.True(t, r.Wrappers[g], "wrapper %s", g)
	}
	assert.True(t, r.MasterEnabled("modify"))

	off := false
	doc.ToolSurface.EnableWrappers = &off
	r = Resolve(&doc, flags)
	for _, g := range WrapperGroups {
		assert.False(t, r.Wrappers[g], "wrapper %s", g)
	}
	// Per-group env flags do not survive a wholesale document override.
	assert.False(t, r.MasterEnabled("inspect"))
}

func TestDomainToggles(t *testing.T) {
	off := false
	on := true
	var doc Doc
	doc.ToolSurface.Mode = "domains"
	doc.ToolSurface.Domains.Envelope = &off
	doc.ToolSurface.Domains.Outputs = &on

	r := Resolve(&doc, defaultFlags())
	assert.False(t, r.Domains["envelope"])
	assert.True(t, r.Domains["internal_loads"]) // default untouched
	assert.True(t, r.Domains["outputs"])
}

func TestMasterEnabledWrapperReexposure(t *testing.T) {
	flags := defaultFlags()
	flags.Masters = false
	flags.Wrappers = map[string]bool{"inspect": true}

	r := Resolve(nil, flags)
	assert.True(t, r.MasterEnabled("inspect"))
	assert.False(t, r.MasterEnabled("modify"))
}

func TestLoadMissingDocumentUsesFlags(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "absent.yaml"), defaultFlags(), testutil.TestLogger())
	assert.Equal(t, "env", r.Source)
	assert.Empty(t, r.FallbackReason)
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tool_surface:
  mode: hybrid
  domains:
    outputs: true
`), 0o644))

	r := Load(path, defaultFlags(), testutil.TestLogger())
	assert.Equal(t, ModeHybrid, r.Mode)
	assert.Equal(t, "document", r.Source)
	assert.True(t, r.Domains["outputs"])
}

func TestLoadMalformedDocumentFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tool_surface: [not: a: mapping"), 0o644))

	r := Load(path, defaultFlags(), testutil.TestLogger())

	// The fallback is observable, not silent.
	assert.Equal(t, ModeMasters, r.Mode)
	assert.Equal(t, "env", r.Source)
	assert.NotEmpty(t, r.FallbackReason)
	assert.Contains(t, r.FallbackReason, path)
}

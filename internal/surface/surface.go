// Package surface resolves which tool groups the process exposes.
//
// Resolution happens exactly once, at startup: environment flags provide
// the fallback, and an optional YAML configuration document overrides
// them wholesale for the fields it sets. The result is frozen for the
// process lifetime; there is no hot reload.
package surface

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects the exposed operation-group families.
type Mode string

const (
	ModeMasters Mode = "masters"
	ModeDomains Mode = "domains"
	ModeHybrid  Mode = "hybrid"
)

// WrapperGroups are the legacy per-tool exposure flags. Each has an
// environment flag EPMOD_EXPOSE_<GROUP> defaulting to off; the flags for
// master tools re-expose that tool even when masters mode is off.
var WrapperGroups = []string{
	"inspect", "output", "summary", "modify", "server",
	"hvac", "file", "sim", "model", "post",
}

// DomainNames are the domain-manager toggles consumed from the document.
var DomainNames = []string{"envelope", "internal_loads", "hvac", "outputs"}

// Flags are the environment-variable inputs. Every flag defaults to off
// except Masters, matching the original deployment default.
type Flags struct {
	Masters        bool
	DomainManagers bool
	Wrappers       map[string]bool
}

// FlagsFromEnv reads the EPMOD_EXPOSE_* environment flags.
func FlagsFromEnv() Flags {
	f := Flags{
		Masters:        envBool("EPMOD_EXPOSE_MASTERS", true),
		DomainManagers: envBool("EPMOD_EXPOSE_DOMAIN_MANAGERS", false),
		Wrappers:       make(map[string]bool, len(WrapperGroups)),
	}
	for _, g := range WrapperGroups {
		f.Wrappers[g] = envBool("EPMOD_EXPOSE_"+strings.ToUpper(g), false)
	}
	return f
}

// Doc is the structured tool-surface configuration document.
type Doc struct {
	ToolSurface struct {
		Mode           string `yaml:"mode"`
		EnableWrappers *bool  `yaml:"enable_wrappers"`
		Domains        struct {
			Envelope      *bool `yaml:"envelope"`
			InternalLoads *bool `yaml:"internal_loads"`
			Hvac          *bool `yaml:"hvac"`
			Outputs       *bool `yaml:"outputs"`
		} `yaml:"domains"`
	} `yaml:"tool_surface"`
}

// ConfigParseError reports a present but malformed document. Recoverable:
// resolution falls back to the environment flags.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("surface: parse %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// Resolved is the frozen tool surface.
type Resolved struct {
	Mode           Mode
	Masters        bool
	DomainManagers bool
	// Domains gates individual domain-manager tools when DomainManagers
	// is on. Defaults: envelope/internal_loads/hvac on, outputs off.
	Domains map[string]bool
	// Wrappers are the resolved legacy per-tool flags.
	Wrappers map[string]bool

	// Source records whether the document or the environment decided the
	// mode; FallbackReason is set when a present document was unusable.
	Source         string
	FallbackReason string
}

// MasterEnabled reports whether a master tool should register: either
// masters mode is on, or the tool's legacy wrapper flag re-exposes it.
func (r Resolved) MasterEnabled(wrapperGroup string) bool {
	return r.Masters || r.Wrappers[wrapperGroup]
}

// Resolve merges the document over the environment flags. Pure: no
// environment or filesystem access, so precedence is unit-testable.
// A nil doc resolves from flags alone.
func Resolve(doc *Doc, flags Flags) Resolved {
	r := Resolved{
		Masters:        flags.Masters,
		DomainManagers: flags.DomainManagers,
		Domains: map[string]bool{
			"envelope":       true,
			"internal_loads": true,
			"hvac":           true,
			"outputs":        false,
		},
		Wrappers: make(map[string]bool, len(WrapperGroups)),
		Source:   "env",
	}
	for _, g := range WrapperGroups {
		r.Wrappers[g] = flags.Wrappers[g]
	}
	r.Mode = modeFor(r.Masters, r.DomainManagers)

	if doc == nil {
		return r
	}

	ts := doc.ToolSurface
	switch Mode(strings.ToLower(ts.Mode)) {
	case ModeMasters:
		r.Mode, r.Masters, r.DomainManagers, r.Source = ModeMasters, true, false, "document"
	case ModeDomains:
		r.Mode, r.Masters, r.DomainManagers, r.Source = ModeDomains, false, true, "document"
	case ModeHybrid:
		r.Mode, r.Masters, r.DomainManagers, r.Source = ModeHybrid, true, true, "document"
	}

	if ts.EnableWrappers != nil {
		// The document value wins wholesale over every per-group flag.
		for _, g := range WrapperGroups {
			r.Wrappers[g] = *ts.EnableWrappers
		}
		r.Source = "document"
	}

	for name, v := range map[string]*bool{
		"envelope":       ts.Domains.Envelope,
		"internal_loads": ts.Domains.InternalLoads,
		"hvac":           ts.Domains.Hvac,
		"outputs":        ts.Domains.Outputs,
	} {
		if v != nil {
			r.Domains[name] = *v
		}
	}

	return r
}

func modeFor(masters, domainManagers bool) Mode {
	switch {
	case masters && domainManagers:
		return ModeHybrid
	case domainManagers:
		return ModeDomains
	default:
		return ModeMasters
	}
}

// Load reads the document at path (if any) and resolves the surface.
// A missing document is the normal case; a malformed one logs the
// fallback and records it in the result so the event is observable.
func Load(path string, flags Flags, logger *slog.Logger) Resolved {
	doc, err := readDoc(path)
	if err != nil {
		var parseErr *ConfigParseError
		r := Resolve(nil, flags)
		if errors.As(err, &parseErr) {
			r.FallbackReason = parseErr.Error()
			logger.Warn("tool-surface document unusable, falling back to env flags",
				"path", path, "error", parseErr.Err)
		} else {
			logger.Warn("tool-surface document unreadable, falling back to env flags",
				"path", path, "error", err)
			r.FallbackReason = err.Error()
		}
		return r
	}
	if doc == nil {
		r := Resolve(nil, flags)
		logger.Info("no tool-surface document, using env flags", "path", path, "mode", r.Mode)
		return r
	}
	r := Resolve(doc, flags)
	logger.Info("tool surface resolved from document",
		"path", path, "mode", r.Mode, "masters", r.Masters, "domain_managers", r.DomainManagers)
	return r
}

// readDoc returns (nil, nil) when no document exists at path.
func readDoc(path string) (*Doc, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("surface: read %s: %w", path, err)
	}
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	return &doc, nil
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

// Package registry loads marker manifests: YAML files that attach markers to
// types and methods already registered in a unit, so fixtures can be tagged,
// ignored or categorised without recompiling the test binary.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// MarkerSpec is one marker in a manifest, written as a single-key mapping
// from marker name to its parameters, e.g. `- ignore: {reason: flaky}`
type MarkerSpec map[string]map[string]any

// MethodSpec attaches markers to a method or property of a type
type MethodSpec struct {
	Name     string       `yaml:"name"`
	Property bool         `yaml:"property,omitempty"`
	Markers  []MarkerSpec `yaml:"markers"`
}

// TypeSpec attaches markers to a registered type and its methods
type TypeSpec struct {
	Name    string       `yaml:"name"`
	Markers []MarkerSpec `yaml:"markers"`
	Methods []MethodSpec `yaml:"methods"`
}

// Manifest is the parsed content of a marker manifest file
type Manifest struct {
	Unit  []MarkerSpec `yaml:"unit"`
	Types []TypeSpec   `yaml:"types"`
}

// Registry manages a loaded manifest
type Registry struct {
	config   Config
	manifest *Manifest
	mu       sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log          log.Logger
	ManifestFile string
	Catalog      *markers.Catalog
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ManifestFile == "" {
		return nil, fmt.Errorf("manifest file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = markers.Default()
	}

	manifest, err := loadManifest(cfg.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	cfg.Log.Debug("Manifest loaded", "path", cfg.ManifestFile, "len(types)", len(manifest.Types))

	return &Registry{config: cfg, manifest: manifest}, nil
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// GetManifest returns the loaded manifest
func (r *Registry) GetManifest() *Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// Apply attaches the manifest's markers to unit. Every problem found is
// reported; entries that are valid are applied regardless.
func (r *Registry) Apply(unit *reflector.Unit) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	unitMarkers, err := r.convert(r.manifest.Unit, markers.KindUnit)
	if err != nil {
		errs = append(errs, fmt.Errorf("unit %s: %w", unit.Name(), err))
	}
	unit.AddMarkers(unitMarkers...)

	for _, ts := range r.manifest.Types {
		ref, ok := unit.Lookup(ts.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("type %s is not registered in unit %s", ts.Name, unit.Name()))
			continue
		}
		typeMarkers, err := r.convert(ts.Markers, markers.KindType)
		if err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", ts.Name, err))
		}
		ref.AddMarkers(typeMarkers...)

		for _, ms := range ts.Methods {
			kind := markers.KindMethod
			if ms.Property {
				kind = markers.KindProperty
			}
			methodMarkers, err := r.convert(ms.Markers, kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("method %s.%s: %w", ts.Name, ms.Name, err))
			}
			if ms.Property {
				ref.Property(ms.Name, methodMarkers...)
			} else {
				ref.Method(ms.Name, methodMarkers...)
			}
		}
		r.config.Log.Debug("Applied manifest markers", "type", ts.Name, "methods", len(ts.Methods))
	}
	return errors.Join(errs...)
}

func (r *Registry) convert(specs []MarkerSpec, kind markers.ConstructKind) ([]markers.Instance, error) {
	var out []markers.Instance
	var errs []error
	for _, spec := range specs {
		if len(spec) != 1 {
			errs = append(errs, fmt.Errorf("marker entry must have exactly one name, got %d", len(spec)))
			continue
		}
		for name, params := range spec {
			inst, err := toInstance(name, params)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := r.config.Catalog.Validate(inst, kind); err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, inst)
		}
	}
	return out, errors.Join(errs...)
}

// paramOrder keeps parameter order stable; YAML mappings decode unordered
var paramOrder = []string{
	markers.ParamName, markers.ParamValue, markers.ParamDescription, markers.ParamReason,
	markers.ParamInclude, markers.ParamExclude, markers.ParamType, markers.ParamMessage, markers.ParamMatch,
}

func toInstance(name string, params map[string]any) (markers.Instance, error) {
	var opts []markers.Option
	known := make(map[string]bool, len(paramOrder))
	for _, p := range paramOrder {
		known[p] = true
		v, ok := params[p]
		if !ok {
			continue
		}
		switch p {
		case markers.ParamType:
			return markers.Instance{}, fmt.Errorf("marker %q: parameter %q cannot be set from a manifest, use %q", name, p, markers.ParamName)
		case markers.ParamMatch:
			s, _ := v.(string)
			policy, err := markers.ParseMatchPolicy(s)
			if err != nil {
				return markers.Instance{}, fmt.Errorf("marker %q: %w", name, err)
			}
			v = policy
		}
		opts = append(opts, markers.WithParam(p, v))
	}
	for p := range params {
		if !known[p] {
			return markers.Instance{}, fmt.Errorf("marker %q has no parameter %q", name, p)
		}
	}
	return markers.New(name, opts...), nil
}

// loadManifest loads a marker manifest from a file
func loadManifest(path string) (*Manifest, error) {
	log.Debug("Reading marker manifest", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest file: %w", err)
	}
	for i, ts := range m.Types {
		if ts.Name == "" {
			return nil, fmt.Errorf("type entry %d has no name", i)
		}
	}
	return &m, nil
}

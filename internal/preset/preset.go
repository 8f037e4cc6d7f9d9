// Package preset resolves named queries.
//
// A Resolver merges the tables of an explicit list of providers; when two
// providers define the same name the later one wins. Queries written as
// "preset:<name>" are replaced by the resolved query before parsing.
package preset

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/psearch/configs"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

// Prefix marks a query that names a preset.
const Prefix = "preset:"

// TestPresetsEnv enables the test provider when set to any value.
const TestPresetsEnv = "testPresets"

// Provider supplies name -> query mappings.
type Provider interface {
	Name() string
	Presets() (map[string]string, error)
}

type staticProvider struct {
	name    string
	presets map[string]string
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Presets() (map[string]string, error) {
	return p.presets, nil
}

// Static returns a provider over a fixed table.
func Static(name string, presets map[string]string) Provider {
	return &staticProvider{name: name, presets: presets}
}

type yamlProvider struct {
	name string
	data []byte
}

func (p *yamlProvider) Name() string { return p.name }

func (p *yamlProvider) Presets() (map[string]string, error) {
	return Parse(p.data)
}

// Parse decodes a YAML mapping of preset names to queries.
func Parse(data []byte) (map[string]string, error) {
	var presets map[string]string
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, pserrors.ConfigError("invalid preset table", err)
	}
	return presets, nil
}

// Defaults returns the built-in presets shipped with the binary.
func Defaults() Provider {
	return &yamlProvider{name: "default", data: configs.DefaultPresets}
}

type testProvider struct {
	lookup func(string) (string, bool)
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) Presets() (map[string]string, error) {
	if _, ok := p.lookup(TestPresetsEnv); !ok {
		return nil, nil
	}
	return map[string]string{"test": `(@brown AND end\:text) OR dolor`}, nil
}

// TestPresets returns a provider that defines "test" only while the
// TestPresetsEnv environment variable is set. A nil lookup uses os.LookupEnv.
func TestPresets(lookup func(string) (string, bool)) Provider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &testProvider{lookup: lookup}
}

// DefaultProviders returns the providers registered at startup, in
// precedence order: built-in, test, then the configured table.
func DefaultProviders(configured map[string]string) []Provider {
	return []Provider{
		Defaults(),
		TestPresets(nil),
		Static("config", configured),
	}
}

// Resolver is the merged preset table.
type Resolver struct {
	queries map[string]string
	sources map[string]string
}

// NewResolver merges providers in order.
func NewResolver(providers ...Provider) (*Resolver, error) {
	r := &Resolver{
		queries: make(map[string]string),
		sources: make(map[string]string),
	}
	for _, p := range providers {
		presets, err := p.Presets()
		if err != nil {
			return nil, err
		}
		for name, q := range presets {
			r.queries[name] = q
			r.sources[name] = p.Name()
		}
	}
	return r, nil
}

// Resolve returns the query registered under name.
func (r *Resolver) Resolve(name string) (string, error) {
	q, ok := r.queries[name]
	if !ok {
		return "", pserrors.UnknownPresetError(name)
	}
	return q, nil
}

// Expand replaces a "preset:<name>" input with its query. Other inputs are
// returned unchanged.
func (r *Resolver) Expand(input string) (string, error) {
	name, ok := strings.CutPrefix(input, Prefix)
	if !ok {
		return input, nil
	}
	return r.Resolve(name)
}

// Names returns the preset names in sorted order.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source returns the name of the provider that defined name.
func (r *Resolver) Source(name string) string {
	return r.sources[name]
}

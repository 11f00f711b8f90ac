// Package manifest handles corevm.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/corevm/vm"
)

// FileName is the configuration file looked up in a project directory.
const FileName = "corevm.toml"

// Manifest represents a corevm.toml configuration.
type Manifest struct {
	Dispatch Dispatch `toml:"dispatch"`
	Trace    Trace    `toml:"trace"`
	Log      Log      `toml:"log"`

	// Dir is the directory containing the corevm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Dispatch tunes dispatch sites.
type Dispatch struct {
	MaxRewrites *int `toml:"max-rewrites"`
	WarnAfter   *int `toml:"warn-after"`
}

// Trace configures tracing instrumentation.
type Trace struct {
	Enabled bool `toml:"enabled"`
}

// Log configures logging.
type Log struct {
	Verbosity *int `toml:"verbosity"`
}

// Default returns the configuration used when no file exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a corevm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes configuration from TOML text and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a corevm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	if v := m.Dispatch.MaxRewrites; v != nil && *v < 0 {
		return fmt.Errorf("dispatch.max-rewrites must not be negative, got %d", *v)
	}
	if v := m.Dispatch.WarnAfter; v != nil && *v < 0 {
		return fmt.Errorf("dispatch.warn-after must not be negative, got %d", *v)
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	def := vm.DefaultSitePolicy()
	if m.Dispatch.MaxRewrites == nil {
		m.Dispatch.MaxRewrites = &def.MaxRewrites
	}
	if m.Dispatch.WarnAfter == nil {
		m.Dispatch.WarnAfter = &def.WarnAfter
	}
	if m.Log.Verbosity == nil {
		v := 1
		m.Log.Verbosity = &v
	}
}

// SitePolicy returns the dispatch policy described by the manifest.
func (m *Manifest) SitePolicy() vm.SitePolicy {
	return vm.SitePolicy{
		MaxRewrites: *m.Dispatch.MaxRewrites,
		WarnAfter:   *m.Dispatch.WarnAfter,
	}
}

// SiteConfig returns the config new sites should be created with. With
// tracing enabled every site starts Generic.
func (m *Manifest) SiteConfig() vm.SiteConfig {
	return vm.SiteConfig{
		Policy:  m.SitePolicy(),
		Generic: m.Trace.Enabled,
	}
}

// Verbosity returns the configured log verbosity.
func (m *Manifest) Verbosity() int {
	return *m.Log.Verbosity
}

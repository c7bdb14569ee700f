// Package manifest handles emt.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// Manifest represents an emt.toml project configuration.
type Manifest struct {
	Template      Template      `toml:"template"`
	Output        Output        `toml:"output"`
	Significators Significators `toml:"significators"`

	// Dir is the directory containing the emt.toml file (set at load time).
	Dir string `toml:"-"`
}

// Template configures how documents are interpreted.
type Template struct {
	Prefix    string            `toml:"prefix"`
	Pseudonym string            `toml:"pseudonym"`
	Flatten   bool              `toml:"flatten"`
	Define    map[string]string `toml:"define"`
}

// Output configures where expanded documents go.
type Output struct {
	File     string `toml:"file"`
	Append   bool   `toml:"append"`
	Buffered bool   `toml:"buffered"`
}

// Significators configures the significator cache.
type Significators struct {
	Database string `toml:"database"`
}

// Load parses an emt.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, "emt.toml"))
}

// LoadFile parses a manifest at an explicit path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if m.Template.Prefix == "" {
		m.Template.Prefix = "@"
	}
	if m.Template.Pseudonym == "" {
		m.Template.Pseudonym = "emt"
	}

	if _, err := m.PrefixRune(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an emt.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "emt.toml")
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

// PrefixRune returns the configured markup prefix as a rune.
func (m *Manifest) PrefixRune() (rune, error) {
	if utf8.RuneCountInString(m.Template.Prefix) != 1 {
		return 0, fmt.Errorf("prefix must be a single character, got %q", m.Template.Prefix)
	}
	r, _ := utf8.DecodeRuneInString(m.Template.Prefix)
	return r, nil
}

// OutputPath returns the configured output file resolved against the
// manifest directory, or the empty string when none is configured.
func (m *Manifest) OutputPath() string {
	if m.Output.File == "" {
		return ""
	}
	if filepath.IsAbs(m.Output.File) {
		return m.Output.File
	}
	return filepath.Join(m.Dir, m.Output.File)
}

// DatabasePath returns the significator database path resolved against
// the manifest directory, or the empty string when none is configured.
func (m *Manifest) DatabasePath() string {
	if m.Significators.Database == "" {
		return ""
	}
	if filepath.IsAbs(m.Significators.Database) {
		return m.Significators.Database
	}
	return filepath.Join(m.Dir, m.Significators.Database)
}

package bridgegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration of a generation run, usually loaded from a
// bridgegen.yaml file next to the API package.
type Config struct {
	// Source is the directory scanned for API definitions.
	Source string `yaml:"source"`

	// ServerOutput is the file the server dispatch code is written to.
	// It must be in the package declaring the API definitions.
	ServerOutput string `yaml:"server_output"`

	// ClientOutput is the file the client proxy code is written to.
	ClientOutput string `yaml:"client_output"`

	// ClientPackage is the package name of the client output.
	// Default: the name of the directory containing ClientOutput.
	ClientPackage string `yaml:"client_package"`

	// Warnings are embedded at the top of the server output.
	Warnings []string `yaml:"warnings"`

	// Quiet suppresses progress messages.
	Quiet bool `yaml:"quiet"`

	// Symlink surfaces the client output outside its package.
	Symlink *SymlinkConfig `yaml:"symlink"`
}

// SymlinkConfig describes a symlink created after generation.
type SymlinkConfig struct {
	Source            string `yaml:"source"`
	Destination       string `yaml:"destination"`
	SuccessMessage    string `yaml:"success_message"`
	PermissionMessage string `yaml:"permission_message"`
}

// LoadConfig reads a YAML configuration file. Unknown keys are an error.
// Relative paths in the file are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := new(Config)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	resolve(&c.Source)
	resolve(&c.ServerOutput)
	resolve(&c.ClientOutput)
	if c.Symlink != nil {
		resolve(&c.Symlink.Source)
		resolve(&c.Symlink.Destination)
	}
}

// WithDefaults returns a copy of c with defaults applied.
func (c *Config) WithDefaults() *Config {
	result := *c
	if result.ClientPackage == "" && result.ClientOutput != "" {
		result.ClientPackage = packageNameForDir(filepath.Dir(result.ClientOutput))
	}
	if result.ClientPackage == "" {
		result.ClientPackage = DefaultClientPackage
	}
	return &result
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Source == "":
		return errors.New("source directory is required")
	case c.ServerOutput == "":
		return errors.New("server output path is required")
	case c.ClientOutput == "":
		return errors.New("client output path is required")
	case filepath.Clean(c.ServerOutput) == filepath.Clean(c.ClientOutput):
		return errors.New("server and client output must be different files")
	case c.ClientPackage != "" && !token.IsIdentifier(c.ClientPackage):
		return fmt.Errorf("client package %q is not a valid package name", c.ClientPackage)
	}
	if s := c.Symlink; s != nil && (s.Source == "") != (s.Destination == "") {
		return errors.New("symlink source and destination must be set together")
	}
	return nil
}

// packageNameForDir derives a package name from a directory name.
func packageNameForDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err == nil {
		dir = abs
	}
	name := strings.ToLower(filepath.Base(dir))
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == ' ' {
			return -1
		}
		return r
	}, name)
	if !token.IsIdentifier(name) {
		return ""
	}
	return name
}

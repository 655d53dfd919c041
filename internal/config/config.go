// Package config loads and saves the persisted decoder and dump settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"leaker/internal/disasm"
	"leaker/internal/dump"
	"leaker/internal/memory"
)

const (
	configDir  = "leaker"
	configFile = "config.yml"
)

// Config defines every option that can be set through the config file.
type Config struct {
	// Bits is the decode mode and address width: 16, 32 or 64.
	Bits int `yaml:"bits" json:"bits" jsonschema:"enum=16,enum=32,enum=64,description=Instruction decode width and address padding"`
	// Syntax is the listing dialect: default, intel or att.
	Syntax string `yaml:"syntax" json:"syntax" jsonschema:"enum=default,enum=intel,enum=att,description=Assembly syntax of listings"`
	// RowWidth is the number of bytes per dump row.
	RowWidth int `yaml:"row-width" json:"row-width" jsonschema:"minimum=8,multipleOf=8,description=Bytes per dump row"`
	// Color enables syntax highlighting of listings on terminals.
	Color bool `yaml:"color" json:"color" jsonschema:"description=Highlight listings on terminals"`
	// Symbolize annotates branch targets with symbol names.
	Symbolize bool `yaml:"symbolize" json:"symbolize" jsonschema:"description=Show symbol names for branch targets"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bits:      memory.PointerSize * 8,
		Syntax:    string(disasm.Default),
		RowWidth:  dump.DefaultWidth,
		Color:     true,
		Symbolize: true,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if !disasm.ValidBits(c.Bits) {
		return fmt.Errorf("bits: %d is not one of 16, 32, 64", c.Bits)
	}
	if _, ok := disasm.ParseSyntax(c.Syntax); !ok {
		return fmt.Errorf("syntax: %q is not one of default, intel, att", c.Syntax)
	}
	if c.RowWidth <= 0 || c.RowWidth%8 != 0 {
		return fmt.Errorf("row-width: %d is not a positive multiple of 8", c.RowWidth)
	}
	return nil
}

// sanitize replaces invalid fields with their defaults.
func (c *Config) sanitize() {
	def := Default()
	if !disasm.ValidBits(c.Bits) {
		slog.Warn("config: invalid bits, using default", "bits", c.Bits, "default", def.Bits)
		c.Bits = def.Bits
	}
	if _, ok := disasm.ParseSyntax(c.Syntax); !ok {
		slog.Warn("config: invalid syntax, using default", "syntax", c.Syntax, "default", def.Syntax)
		c.Syntax = def.Syntax
	}
	if c.RowWidth <= 0 || c.RowWidth%8 != 0 {
		slog.Warn("config: invalid row-width, using default", "row-width", c.RowWidth, "default", def.RowWidth)
		c.RowWidth = def.RowWidth
	}
}

// Decoder returns the decode configuration part.
func (c *Config) Decoder() disasm.Config {
	return disasm.Config{Bits: c.Bits, Syntax: disasm.Syntax(c.Syntax)}
}

// Path returns the config file location under dir, or under the user
// config directory when dir is empty.
func Path(dir string) (string, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, configDir)
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file at path, creating it with defaults if it does
// not exist. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return Default(), fmt.Errorf("create default config: %w", err)
		}
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return Default(), fmt.Errorf("decode config %s: %w", path, err)
	}
	c.sanitize()
	return c, nil
}

// Save validates c and writes it to path.
func Save(path string, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	def := Default()
	return os.WriteFile(path, []byte(fmt.Sprintf(`# Configuration file for leaker.

# Instruction decode width (16, 32 or 64). Also sets address padding.
bits: %d

# Listing syntax: default, intel or att.
syntax: %s

# Bytes per dump row; a positive multiple of 8.
row-width: %d

# Highlight listings when writing to a terminal.
color: %t

# Annotate branch targets with symbol names from the running executable.
symbolize: %t
`, def.Bits, def.Syntax, def.RowWidth, def.Color, def.Symbolize)), 0o600)
}

// Keys lists the settable option names.
var Keys = []string{"bits", "syntax", "row-width", "color", "symbolize"}

// Get renders one option.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "bits":
		return strconv.Itoa(c.Bits), nil
	case "syntax":
		return c.Syntax, nil
	case "row-width":
		return strconv.Itoa(c.RowWidth), nil
	case "color":
		return strconv.FormatBool(c.Color), nil
	case "symbolize":
		return strconv.FormatBool(c.Symbolize), nil
	}
	return "", fmt.Errorf("unknown key %q", key)
}

// Set parses and applies one option. c is unchanged on error.
func (c *Config) Set(key, value string) error {
	next := *c
	var err error
	switch key {
	case "bits":
		next.Bits, err = strconv.Atoi(value)
	case "syntax":
		next.Syntax = value
	case "row-width":
		next.RowWidth, err = strconv.Atoi(value)
	case "color":
		next.Color, err = strconv.ParseBool(value)
	case "symbolize":
		next.Symbolize, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

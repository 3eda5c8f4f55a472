// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// config implements the configuration.
type config struct {
	Store      map[string]interface{}
	Helpers    map[string]interface{}
	Templates  map[string]interface{}
	Server     map[string]interface{}
	parser     configParser
	osReadFile func(name string) ([]byte, error)
}

// configData implements the configuration file sections.
type configData struct {
	Store     map[string]interface{} `yaml:"store" toml:"store" json:"store"`
	Helpers   map[string]interface{} `yaml:"helpers" toml:"helpers" json:"helpers"`
	Templates map[string]interface{} `yaml:"templates" toml:"templates" json:"templates"`
	Server    map[string]interface{} `yaml:"server" toml:"server" json:"server"`
}

const (
	configDefaultFile string = "trellis.yaml"
)

// configOsReadFile redirects to os.ReadFile.
func configOsReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// newConfig creates a new config.
func newConfig(parser configParser) *config {
	return &config{
		parser:     parser,
		osReadFile: configOsReadFile,
	}
}

// configParser
type configParser interface {
	parse([]byte, *config) error
}

// configParserYAML implements the YAML configuration parser.
type configParserYAML struct {
	yamlUnmarshal func(in []byte, out interface{}) error
}

// newConfigParserYAML creates a new YAML config parser.
func newConfigParserYAML() *configParserYAML {
	return &configParserYAML{
		yamlUnmarshal: yaml.Unmarshal,
	}
}

// parse parses the YAML data.
func (p *configParserYAML) parse(data []byte, c *config) error {
	var d configData
	if err := p.yamlUnmarshal(data, &d); err != nil {
		return err
	}
	c.set(&d)

	return nil
}

var _ configParser = (*configParserYAML)(nil)

// configParserTOML implements the TOML configuration parser.
type configParserTOML struct {
	tomlUnmarshal func(in []byte, out interface{}) error
}

// newConfigParserTOML creates a new TOML config parser.
func newConfigParserTOML() *configParserTOML {
	return &configParserTOML{
		tomlUnmarshal: toml.Unmarshal,
	}
}

// parse parses the TOML data.
func (p *configParserTOML) parse(data []byte, c *config) error {
	var d configData
	if err := p.tomlUnmarshal(data, &d); err != nil {
		return err
	}
	c.set(&d)

	return nil
}

var _ configParser = (*configParserTOML)(nil)

// configParserJSON implements the JSON configuration parser.
type configParserJSON struct {
	jsonUnmarshal func(in []byte, out interface{}) error
}

// newConfigParserJSON creates a new JSON config parser.
func newConfigParserJSON() *configParserJSON {
	return &configParserJSON{
		jsonUnmarshal: json.Unmarshal,
	}
}

// parse parses the JSON data.
func (p *configParserJSON) parse(data []byte, c *config) error {
	var d configData
	if err := p.jsonUnmarshal(data, &d); err != nil {
		return err
	}
	c.set(&d)

	return nil
}

var _ configParser = (*configParserJSON)(nil)

// set sets the configuration sections.
func (c *config) set(d *configData) {
	c.Store = d.Store
	c.Helpers = d.Helpers
	c.Templates = d.Templates
	c.Server = d.Server
}

// configFile returns the name of the configuration file.
func configFile() string {
	if CONFIG_FILE != "" {
		return CONFIG_FILE
	}
	return configDefaultFile
}

// newConfigForFile returns an empty config with the parser matching the file extension.
func newConfigForFile(name string) (*config, error) {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return newConfig(newConfigParserYAML()), nil
	case ".toml":
		return newConfig(newConfigParserTOML()), nil
	case ".json":
		return newConfig(newConfigParserJSON()), nil
	default:
		return nil, errors.New("invalid file extension")
	}
}

// LoadConfig loads the configuration.
func LoadConfig() (*config, error) {
	name := configFile()

	c, err := newConfigForFile(name)
	if err != nil {
		return nil, err
	}
	data, err := c.osReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := c.parser.parse(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return c, nil
}

//go:embed all:templates/init
var configTemplatesInit embed.FS

const (
	configTemplatesInitConfig  string = "templates/init/config"
	configTemplatesInitProject string = "templates/init/project"
)

// GenerateConfig creates a configuration file of the given syntax and the
// missing files of a starter project.
func GenerateConfig(syntax string) error {
	name := configFile()
	if CONFIG_FILE == "" {
		name = "trellis." + syntax
	}
	if filepath.Ext(name) != "."+syntax {
		return fmt.Errorf("configuration file '%s' does not match syntax '%s'", name, syntax)
	}

	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("configuration file '%s' already exists", name)
	}

	data, err := fs.ReadFile(configTemplatesInit, path.Join(configTemplatesInitConfig, "trellis."+syntax))
	if err != nil {
		return fmt.Errorf("invalid syntax '%s'", syntax)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	err = fs.WalkDir(configTemplatesInit, configTemplatesInitProject, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		dst, err := filepath.Rel(configTemplatesInitProject, p)
		if err != nil {
			return err
		}
		dst = filepath.Join(filepath.Dir(name), dst)
		if _, err := os.Stat(dst); err == nil {
			return nil
		}

		data, err := fs.ReadFile(configTemplatesInit, p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("write project: %w", err)
	}

	return nil
}

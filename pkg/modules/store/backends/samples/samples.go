// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package samples

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/module"
)

// samplesBackend implements the samples backend.
//
// Items are JSON files of a local directory, used during development.
type samplesBackend struct {
	config        *samplesBackendConfig
	logger        *slog.Logger
	defaults      map[string]string
	osStat        func(name string) (fs.FileInfo, error)
	osOpenFile    func(name string, flag int, perm fs.FileMode) (*os.File, error)
	osClose       func(f *os.File) error
	osReadFile    func(name string) ([]byte, error)
	jsonUnmarshal func(data []byte, v any) error
}

// samplesBackendConfig implements the samples backend configuration.
type samplesBackendConfig struct {
	Path *string `mapstructure:"path"`
}

// samplesFixtureConfig implements the configuration file of the samples directory.
type samplesFixtureConfig struct {
	Default map[string]string `json:"default"`
}

const (
	samplesModuleID module.ModuleID = "store.backend.samples"

	samplesConfigDefaultPath string = "app/context/samples"
	samplesConfigFile        string = "config.json"
	samplesFileExtension     string = ".json"
)

// ErrNoDefault is returned when no sample matches an item and its category
// has no default sample.
var ErrNoDefault = errors.New("no default sample")

// samplesOsStat redirects to os.Stat.
func samplesOsStat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// samplesOsOpenFile redirects to os.OpenFile.
func samplesOsOpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// samplesOsClose redirects to os.File.Close.
func samplesOsClose(f *os.File) error {
	return f.Close()
}

// samplesOsReadFile redirects to os.ReadFile.
func samplesOsReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// samplesJSONUnmarshal redirects to json.Unmarshal.
func samplesJSONUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// init initializes the module.
func init() {
	module.Register(samplesBackend{})
}

// ModuleInfo returns the module information.
func (b samplesBackend) ModuleInfo() module.ModuleInfo {
	return module.ModuleInfo{
		ID: samplesModuleID,
		NewInstance: func() module.Module {
			return &samplesBackend{
				osStat:        samplesOsStat,
				osOpenFile:    samplesOsOpenFile,
				osClose:       samplesOsClose,
				osReadFile:    samplesOsReadFile,
				jsonUnmarshal: samplesJSONUnmarshal,
			}
		},
	}
}

// Init initializes the backend.
//
// The backend is unavailable if the samples directory or its configuration
// file is missing or invalid.
func (b *samplesBackend) Init(config map[string]interface{}, logger *slog.Logger) error {
	b.logger = logger

	if err := mapstructure.Decode(config, &b.config); err != nil {
		b.logger.Error("Failed to parse configuration", "err", err)
		return fmt.Errorf("parse config: %w", err)
	}
	if b.config == nil {
		b.config = &samplesBackendConfig{}
	}
	if b.config.Path == nil {
		defaultValue := samplesConfigDefaultPath
		b.config.Path = &defaultValue
	}

	fi, err := b.osStat(*b.config.Path)
	if err != nil {
		return fmt.Errorf("stat samples directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("samples path %s is not a directory", *b.config.Path)
	}

	data, err := b.osReadFile(filepath.Join(*b.config.Path, samplesConfigFile))
	if err != nil {
		return fmt.Errorf("read samples config: %w", err)
	}
	var c samplesFixtureConfig
	if err := b.jsonUnmarshal(data, &c); err != nil {
		return fmt.Errorf("parse samples config: %w", err)
	}
	b.defaults = c.Default

	b.logger.Debug("Loaded samples", "path", *b.config.Path, "defaults", len(b.defaults))

	return nil
}

// Get returns the sample of an item.
//
// The sample file is the first readable file among <id>.json,
// <category><id>.json, <category>-<id>.json and the default sample of the
// category.
func (b *samplesBackend) Get(ctx context.Context, category string, id string) (any, error) {
	name, err := b.find(ctx, category, id)
	if err != nil {
		return nil, fmt.Errorf("find sample %s %s: %w", category, id, err)
	}

	data, err := b.osReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", name, err)
	}
	var v any
	if err := b.jsonUnmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse sample %s: %w", name, err)
	}

	return v, nil
}

// find returns the path of the first readable sample of an item.
func (b *samplesBackend) find(ctx context.Context, category string, id string) (string, error) {
	candidates := []string{
		id + samplesFileExtension,
		category + id + samplesFileExtension,
		category + "-" + id + samplesFileExtension,
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := filepath.Join(*b.config.Path, candidate)
		if err := b.access(name); err == nil {
			return name, nil
		}
	}

	candidate, ok := b.defaults[category]
	if !ok || candidate == "" {
		return "", ErrNoDefault
	}
	name := filepath.Join(*b.config.Path, candidate)
	if err := b.access(name); err != nil {
		return "", err
	}

	return name, nil
}

// access checks that a file is readable.
func (b *samplesBackend) access(name string) error {
	f, err := b.osOpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return b.osClose(f)
}

var _ core.StoreBackendModule = (*samplesBackend)(nil)

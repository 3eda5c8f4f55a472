// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/bhuisgen/trellis/pkg/helpers"
	"github.com/bhuisgen/trellis/pkg/log"
	"github.com/bhuisgen/trellis/pkg/render"
)

// Application implements the application.
type Application struct {
	config     *config
	logger     *slog.Logger
	helpers    *helpersConfig
	templates  *templatesConfig
	store      *store
	mu         sync.RWMutex
	engine     *render.Engine
	osReadFile func(name string) ([]byte, error)
}

// helpersConfig implements the helpers configuration.
type helpersConfig struct {
	Categories []string `mapstructure:"categories"`
}

// templatesConfig implements the templates configuration.
type templatesConfig struct {
	Dir       *string `mapstructure:"dir"`
	Extension *string `mapstructure:"extension"`
}

const (
	appLogger    string = "app"
	renderLogger string = "app.render"

	templatesConfigDefaultDir       string = "templates"
	templatesConfigDefaultExtension string = ".tpl"
)

// appOsReadFile redirects to os.ReadFile.
func appOsReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// New creates a new application.
//
// It selects the store backend, registers the helpers and compiles the
// templates.
func New(config *config) (*Application, error) {
	a := &Application{
		config:     config,
		logger:     log.New(appLogger),
		osReadFile: appOsReadFile,
	}

	a.logger.Debug("Initializing application")

	if err := mapstructure.Decode(config.Helpers, &a.helpers); err != nil {
		a.logger.Error("Failed to parse helpers configuration", "err", err)
		return nil, fmt.Errorf("parse helpers config: %w", err)
	}
	if a.helpers == nil {
		a.helpers = &helpersConfig{}
	}
	if err := mapstructure.Decode(config.Templates, &a.templates); err != nil {
		a.logger.Error("Failed to parse templates configuration", "err", err)
		return nil, fmt.Errorf("parse templates config: %w", err)
	}
	if a.templates == nil {
		a.templates = &templatesConfig{}
	}
	if a.templates.Dir == nil {
		defaultValue := templatesConfigDefaultDir
		a.templates.Dir = &defaultValue
	}
	if a.templates.Extension == nil {
		defaultValue := templatesConfigDefaultExtension
		a.templates.Extension = &defaultValue
	}

	s, err := newStore(config.Store)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	a.store = s

	engine, err := a.newEngine()
	if err != nil {
		s.Close()
		return nil, err
	}
	a.engine = engine

	return a, nil
}

// newEngine creates an engine with the helpers and the compiled templates.
func (a *Application) newEngine() (*render.Engine, error) {
	engine := render.New(render.WithLogger(log.New(renderLogger)))
	helpers.Register(engine, a.store, a.helpers.Categories...)

	if err := a.compileTemplates(engine); err != nil {
		return nil, err
	}

	return engine, nil
}

// compileTemplates compiles the template files into the engine.
//
// A template is named by its path relative to the templates directory,
// without extension and with forward slashes.
func (a *Application) compileTemplates(engine *render.Engine) error {
	dir := *a.templates.Dir
	ext := *a.templates.Extension

	var errs []error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, ext))

		data, err := a.osReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read template %s: %w", name, err))
			return nil
		}
		if err := engine.Compile(name, string(data)); err != nil {
			a.logger.Error("Failed to compile template", "template", name, "err", err)
			errs = append(errs, err)
			return nil
		}

		a.logger.Debug("Template compiled", "template", name)

		return nil
	})
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	return errors.Join(errs...)
}

// Render renders the template name with data as the root context and writes
// the output to w.
//
// On render failure the output of the successful parts is still written.
func (a *Application) Render(ctx context.Context, name string, data any, w io.Writer) error {
	output, err := a.currentEngine().Render(ctx, name, data)
	if output != "" {
		if _, werr := io.WriteString(w, output); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("render template %s: %w", name, err)
	}

	return nil
}

// HasTemplate reports whether the template name is compiled.
func (a *Application) HasTemplate(name string) bool {
	return a.currentEngine().HasTemplate(name)
}

// Templates returns the names of the compiled templates.
func (a *Application) Templates() []string {
	return a.currentEngine().Templates()
}

// Backend returns the name of the selected store backend.
func (a *Application) Backend() string {
	return a.store.Backend()
}

// Reload recompiles the templates. The current templates are kept on failure.
func (a *Application) Reload() error {
	engine, err := a.newEngine()
	if err != nil {
		a.logger.Error("Failed to reload templates", "err", err)
		return err
	}

	a.mu.Lock()
	a.engine = engine
	a.mu.Unlock()

	a.logger.Info("Templates reloaded", "templates", len(engine.Templates()))

	return nil
}

// Check checks the application.
//
// It reports the selected store backend and recompiles the templates.
func (a *Application) Check() error {
	a.logger.Info("Store backend selected", "backend", a.store.Backend(), "registered", registeredBackends())

	engine := render.New(render.WithLogger(a.logger))
	if err := a.compileTemplates(engine); err != nil {
		return fmt.Errorf("check templates: %w", err)
	}
	if len(engine.Templates()) == 0 {
		a.logger.Warn("No template found", "dir", *a.templates.Dir, "extension", *a.templates.Extension)
	}

	return nil
}

// Close releases the application resources.
func (a *Application) Close() error {
	return a.store.Close()
}

// currentEngine returns the engine in use.
func (a *Application) currentEngine() *render.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.engine
}

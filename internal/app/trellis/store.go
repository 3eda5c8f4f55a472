// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/log"
	"github.com/bhuisgen/trellis/pkg/module"
)

// store implements the store.
//
// The store delegates the lookups to the first available backend of its
// priority list. The selection is done once.
type store struct {
	config  *storeConfig
	logger  *slog.Logger
	name    string
	backend core.StoreBackendModule
}

// storeConfig implements the store configuration.
type storeConfig struct {
	Backends []string                          `mapstructure:"backends"`
	Config   map[string]map[string]interface{} `mapstructure:"config"`
}

const (
	storeLogger string = "app.store"

	storeBackendEmpty string = "empty"
)

// storeConfigDefaultBackends returns the default priority list of the backends.
func storeConfigDefaultBackends() []string {
	return []string{"remote", "sqlite", "samples", storeBackendEmpty}
}

// newStore creates a new store and selects its backend.
func newStore(config map[string]interface{}) (*store, error) {
	s := &store{
		logger: log.New(storeLogger),
	}

	if err := mapstructure.Decode(config, &s.config); err != nil {
		s.logger.Error("Failed to parse configuration", "err", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if s.config == nil {
		s.config = &storeConfig{}
	}
	if len(s.config.Backends) == 0 {
		s.config.Backends = storeConfigDefaultBackends()
	}
	if !slices.Contains(s.config.Backends, storeBackendEmpty) {
		s.config.Backends = append(s.config.Backends, storeBackendEmpty)
	}

	for _, name := range s.config.Backends {
		backend, err := s.initBackend(name)
		if err != nil {
			s.logger.Debug("Store backend unavailable", "backend", name, "err", err)
			continue
		}

		s.name = name
		s.backend = backend
		break
	}
	if s.backend == nil {
		return nil, errors.New("no store backend available")
	}

	s.logger.Info("Using store backend", "backend", s.name)

	return s, nil
}

// initBackend creates and initializes a backend.
func (s *store) initBackend(name string) (core.StoreBackendModule, error) {
	id := module.ModuleID(core.StoreBackendNamespace + "." + name)

	moduleInfo, err := module.Lookup(id)
	if err != nil {
		s.logger.Warn("Unregistered store backend", "backend", name, "available", registeredBackends())
		return nil, fmt.Errorf("lookup module %s: %w", id, err)
	}
	backend, ok := moduleInfo.NewInstance().(core.StoreBackendModule)
	if !ok {
		return nil, fmt.Errorf("invalid module %s", id)
	}

	backendConfig := s.config.Config[name]
	if backendConfig == nil {
		backendConfig = map[string]interface{}{}
	}
	if err := backend.Init(backendConfig, log.New(string(id))); err != nil {
		if closer, ok := backend.(io.Closer); ok {
			closer.Close()
		}
		return nil, fmt.Errorf("init module %s: %w", id, err)
	}

	return backend, nil
}

// registeredBackends returns the names of the registered backends.
func registeredBackends() []string {
	var names []string
	for _, id := range module.List(core.StoreBackendNamespace) {
		names = append(names, id.Name())
	}
	return names
}

// Get returns an item from the selected backend.
func (s *store) Get(ctx context.Context, category string, id string) (any, error) {
	s.logger.Debug("Getting item", "backend", s.name, "category", category, "id", id)

	return s.backend.Get(ctx, category, id)
}

// Backend returns the name of the selected backend.
func (s *store) Backend() string {
	return s.name
}

// Close releases the selected backend.
func (s *store) Close() error {
	if closer, ok := s.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

var _ core.Store = (*store)(nil)

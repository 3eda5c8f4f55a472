// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package empty

import (
	"context"
	"log/slog"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/module"
)

// emptyBackend implements the empty backend.
//
// Every item is an empty document. The backend is always available.
type emptyBackend struct {
	logger *slog.Logger
}

const (
	emptyModuleID module.ModuleID = "store.backend.empty"
)

// init initializes the module.
func init() {
	module.Register(emptyBackend{})
}

// ModuleInfo returns the module information.
func (b emptyBackend) ModuleInfo() module.ModuleInfo {
	return module.ModuleInfo{
		ID: emptyModuleID,
		NewInstance: func() module.Module {
			return &emptyBackend{}
		},
	}
}

// Init initializes the backend.
func (b *emptyBackend) Init(config map[string]interface{}, logger *slog.Logger) error {
	b.logger = logger

	b.logger.Warn("No store configured")

	return nil
}

// Get returns an empty document.
func (b *emptyBackend) Get(ctx context.Context, category string, id string) (any, error) {
	return map[string]any{}, nil
}

var _ core.StoreBackendModule = (*emptyBackend)(nil)

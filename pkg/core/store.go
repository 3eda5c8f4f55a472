// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package core

import "context"

// Store is the interface of the resource store.
//
// The store is a read-only lookup of JSON values by category and id. Exactly
// one store backend serves the process once selected.
type Store interface {
	// Get returns the value of the item id of the given category.
	Get(ctx context.Context, category string, id string) (any, error)
}

// StoreBackendModule is the interface of a store backend module.
//
// A backend whose Init returns an error is considered unavailable.
type StoreBackendModule interface {
	// Module is the interface of a module.
	Module
	// Store is the interface of the store.
	Store
}

// StoreBackendNamespace is the module namespace of the store backends.
const StoreBackendNamespace = "store.backend"

// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package module

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Module is the interface of module.
type Module interface {
	// ModuleInfo returns the module information.
	ModuleInfo() ModuleInfo
}

// ModuleID is the module id.
//
// IDs are dotted paths, the last element being the module name
// (e.g. "store.backend.samples").
type ModuleID string

// Name returns the last element of the module id.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo implements the module information.
type ModuleInfo struct {
	// ID is the module ID.
	ID ModuleID
	// NewInstance returns a new module instance.
	NewInstance func() Module
}

var (
	registry   = make(map[ModuleID]ModuleInfo)
	registryMu sync.RWMutex
)

// Register registers a module.
//
// Registering the same id twice is a programming error and aborts the program.
func Register(m Module) {
	info := m.ModuleInfo()

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[info.ID]; ok {
		log.Fatalf("Module '%s' already registered", info.ID)
	}
	registry[info.ID] = info
}

// Unregister unregisters a module.
func Unregister(m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()

	delete(registry, m.ModuleInfo().ID)
}

// Lookup returns the module information if found.
func Lookup(id ModuleID) (ModuleInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	info, ok := registry[id]
	if !ok {
		return ModuleInfo{}, fmt.Errorf("module '%s' not registered", id)
	}

	return info, nil
}

// List returns the sorted ids of the registered modules under the given namespace.
func List(namespace string) []ModuleID {
	registryMu.RLock()
	defer registryMu.RUnlock()

	prefix := namespace
	if prefix != "" && !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}

	var ids []ModuleID
	for id := range registry {
		if strings.HasPrefix(string(id), prefix) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package helpers implements the template helpers enriching the render
// context with store items and image galleries.
package helpers

import (
	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/render"
)

// DefaultCategories are the categories bound to a helper of the same name.
var DefaultCategories = []string{"pet", "article"}

// Register registers the helpers into the engine.
//
// Each category of DefaultCategories and categories gets an Inject helper
// named after it, along with the gallery and img helpers.
func Register(engine *render.Engine, store core.Store, categories ...string) {
	for _, category := range DefaultCategories {
		engine.RegisterHelper(category, Inject(store, category))
	}
	for _, category := range categories {
		if category == "" {
			continue
		}
		engine.RegisterHelper(category, Inject(store, category))
	}
	engine.RegisterHelper("gallery", GalleryHelper)
	engine.RegisterHelper("img", ImageHelper)
}

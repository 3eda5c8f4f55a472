// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package helpers

import (
	"fmt"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/render"
)

// Inject returns a helper fetching the item of the given category from the
// store and rendering its block with the item pushed on the context.
//
// The item id is the "id" parameter. The item is exposed under the "prop"
// parameter, or under the category name by default. A missing or non-string
// id makes the helper a no-op.
func Inject(store core.Store, category string) render.Helper {
	return func(chunk *render.Chunk, ctx *render.Context, bodies render.Bodies, params render.Params) *render.Chunk {
		id, ok := ctx.Resolve(params["id"]).(string)
		if !ok || id == "" {
			return chunk
		}
		prop := category
		if p, ok := params["prop"]; ok {
			if s := render.Stringify(ctx.Resolve(p)); s != "" {
				prop = s
			}
		}

		return chunk.Map(func(branch *render.Chunk) {
			go func() {
				data, err := store.Get(branch.Context(), category, id)
				if err != nil {
					branch.Logger().Debug("Failed to get item", "category", category, "id", id, "err", err)
					branch.SetError(fmt.Errorf("get %s %s: %w", category, id, err)).End()
					return
				}
				branch.Render(bodies.Block, ctx.Push(map[string]any{prop: data})).End()
			}()
		})
	}
}

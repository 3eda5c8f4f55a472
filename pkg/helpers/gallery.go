// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package helpers

import (
	"sync"

	"github.com/bhuisgen/trellis/pkg/render"
)

// Gallery is an ordered collection of images built while rendering.
//
// The gallery helper creates it and pushes it on the context; the img
// helpers of its block append to it in invocation order.
type Gallery struct {
	mu     sync.Mutex
	items  []any
	fields map[string]any
}

const (
	galleryDefaultProp string = "gallery"
	galleryItemsKey    string = "items"
	galleryPrefixKey   string = "prefix"
	gallerySizeKey     string = "size"

	imageKey      string = "image"
	imageThumbKey string = "image__thumb"
)

// NewGallery creates an empty gallery with the given fields.
func NewGallery(fields map[string]any) *Gallery {
	g := &Gallery{
		items:  []any{},
		fields: make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		g.fields[k] = v
	}
	return g
}

// Lookup returns the items or a field of the gallery.
func (g *Gallery) Lookup(key string) (any, bool) {
	if key == galleryItemsKey {
		return g.Items(), true
	}
	v, ok := g.fields[key]
	return v, ok
}

// Field returns a field of the gallery.
func (g *Gallery) Field(key string) any {
	return g.fields[key]
}

// Items returns a copy of the gallery items.
func (g *Gallery) Items() []any {
	g.mu.Lock()
	defer g.mu.Unlock()

	items := make([]any, len(g.items))
	copy(items, g.items)
	return items
}

// Append appends an image record.
func (g *Gallery) Append(image map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.items = append(g.items, image)
}

var _ render.Lookuper = (*Gallery)(nil)

// GalleryHelper creates a gallery whose fields are the resolved helper
// parameters and renders the block with the gallery pushed under the "prop"
// parameter, "gallery" by default. Without block the gallery is discarded.
func GalleryHelper(chunk *render.Chunk, ctx *render.Context, bodies render.Bodies, params render.Params) *render.Chunk {
	fields := make(map[string]any, len(params))
	for k, v := range params {
		fields[k] = ctx.Resolve(v)
	}
	gallery := NewGallery(fields)

	prop := galleryDefaultProp
	if p, ok := params["prop"]; ok {
		if s := render.Stringify(ctx.Resolve(p)); s != "" {
			prop = s
		}
	}

	if bodies.Block == nil {
		return chunk
	}

	return chunk.Render(bodies.Block, ctx.Push(map[string]any{prop: gallery}))
}

// ImageHelper appends an image to the gallery exposed under "gallery" by the
// head layer of the context.
//
// The "src" and "thumb" parameters become the "image" and "image__thumb"
// fields, prefixed with the gallery prefix. Other parameters are copied. The
// image inherits the gallery size unless it sets its own. Without gallery in
// the head layer, the helper is a no-op.
func ImageHelper(chunk *render.Chunk, ctx *render.Context, bodies render.Bodies, params render.Params) *render.Chunk {
	head, ok := ctx.Head().(map[string]any)
	if !ok {
		return chunk
	}
	gallery, ok := head[galleryDefaultProp].(*Gallery)
	if !ok || gallery == nil {
		return chunk
	}

	prefix := render.Stringify(gallery.Field(galleryPrefixKey))
	image := make(map[string]any, len(params)+1)
	for k, v := range params {
		switch k {
		case "src":
			image[imageKey] = prefix + render.Stringify(ctx.Resolve(v))
		case "thumb":
			image[imageThumbKey] = prefix + render.Stringify(ctx.Resolve(v))
		default:
			image[k] = ctx.Resolve(v)
		}
	}
	if !render.Truthy(image[gallerySizeKey]) {
		if size := gallery.Field(gallerySizeKey); render.Truthy(size) {
			image[gallerySizeKey] = size
		}
	}

	gallery.Append(image)

	return chunk
}

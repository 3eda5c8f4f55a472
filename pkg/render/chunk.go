// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// ErrHelperNotFound is returned when a template calls an unregistered helper.
var ErrHelperNotFound = errors.New("helper not found")

// ErrTemplateNotFound is returned when a template or a partial is not compiled.
var ErrTemplateNotFound = errors.New("template not found")

// Helper is a template helper.
//
// A helper writes into chunk and returns the chunk the rendering continues
// with.
type Helper func(chunk *Chunk, ctx *Context, bodies Bodies, params Params) *Chunk

// renderState is shared by all the chunks of a render.
type renderState struct {
	ctx    context.Context
	engine *Engine
	logger *slog.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
}

// fail records a render error.
func (s *renderState) fail(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// err returns the render errors.
func (s *renderState) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

// Chunk is an ordered piece of render output.
//
// A chunk is written by a single goroutine. Branches reserved with Map are
// spliced at their position once the render completes, whatever the order
// in which they end.
type Chunk struct {
	state  *renderState
	parts  []any
	branch bool
	once   sync.Once
	err    error
}

// newChunk creates the root chunk of a render.
func newChunk(state *renderState) *Chunk {
	return &Chunk{state: state}
}

// Context returns the context of the render.
func (c *Chunk) Context() context.Context {
	return c.state.ctx
}

// Logger returns the logger of the render.
func (c *Chunk) Logger() *slog.Logger {
	return c.state.logger
}

// Write writes s into the chunk.
func (c *Chunk) Write(s string) *Chunk {
	if s == "" {
		return c
	}
	if n := len(c.parts); n > 0 {
		if buf, ok := c.parts[n-1].(*bytes.Buffer); ok {
			buf.WriteString(s)
			return c
		}
	}
	buf := c.state.engine.buffers.Get()
	buf.WriteString(s)
	c.parts = append(c.parts, buf)
	return c
}

// Map reserves a branch at the current position and calls fn with it.
//
// fn must end the branch, usually from another goroutine once its data is
// available. Map returns c so the rendering continues after the branch.
func (c *Chunk) Map(fn func(branch *Chunk)) *Chunk {
	branch := &Chunk{state: c.state, branch: true}
	c.parts = append(c.parts, branch)
	c.state.wg.Add(1)
	fn(branch)
	return c
}

// End finalizes a branch. Calling End more than once has no effect.
func (c *Chunk) End() {
	if !c.branch {
		return
	}
	c.once.Do(c.state.wg.Done)
}

// SetError records err as the terminal error of the chunk. The chunk output
// is dropped and err is returned by the render.
func (c *Chunk) SetError(err error) *Chunk {
	c.err = err
	c.state.fail(err)
	return c
}

// Render renders body against ctx into the chunk.
func (c *Chunk) Render(body *Body, ctx *Context) *Chunk {
	if body == nil {
		return c
	}
	for _, n := range body.nodes {
		switch t := n.(type) {
		case textNode:
			c = c.Write(string(t))
		case refNode:
			v, _ := ctx.Get(t.path)
			c = c.Write(format(v, t.filters))
		case sectionNode:
			c = c.section(t, ctx)
		case helperNode:
			c = c.helper(t, ctx)
		case partialNode:
			c = c.partial(t, ctx)
		}
	}
	return c
}

// section renders a section node.
func (c *Chunk) section(n sectionNode, ctx *Context) *Chunk {
	v, _ := ctx.Get(n.path)

	switch n.kind {
	case '?':
		if Truthy(v) {
			return c.Render(n.bodies.Block, ctx)
		}
		return c.Render(n.bodies.Else, ctx)
	case '^':
		if !Truthy(v) {
			return c.Render(n.bodies.Block, ctx)
		}
		return c.Render(n.bodies.Else, ctx)
	}

	if !Truthy(v) {
		return c.Render(n.bodies.Else, ctx)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			c = c.Render(n.bodies.Block, ctx.pushItem(rv.Index(i).Interface(), i, rv.Len()))
		}
		return c
	}
	return c.Render(n.bodies.Block, ctx.Push(v))
}

// helper calls a helper node.
func (c *Chunk) helper(n helperNode, ctx *Context) *Chunk {
	h, ok := c.state.engine.helper(n.name)
	if !ok {
		c.state.logger.Warn("Helper not found", "helper", n.name)
		c.state.fail(fmt.Errorf("%w: %s", ErrHelperNotFound, n.name))
		return c
	}
	if next := h(c, ctx, n.bodies, n.params); next != nil {
		return next
	}
	return c
}

// partial renders a partial node.
func (c *Chunk) partial(n partialNode, ctx *Context) *Chunk {
	body, ok := c.state.engine.template(n.name)
	if !ok {
		c.state.fail(fmt.Errorf("%w: %s", ErrTemplateNotFound, n.name))
		return c
	}
	if len(n.params) > 0 {
		layer := make(map[string]any, len(n.params))
		for k, v := range n.params {
			layer[k] = ctx.Resolve(v)
		}
		ctx = ctx.Push(layer)
	}
	return c.Render(body, ctx)
}

// flush writes the chunk output into w and releases its buffers.
func (c *Chunk) flush(w *bytes.Buffer, emit bool) {
	emit = emit && c.err == nil
	for _, p := range c.parts {
		switch t := p.(type) {
		case *bytes.Buffer:
			if emit {
				w.Write(t.Bytes())
			}
			c.state.engine.buffers.Put(t)
		case *Chunk:
			t.flush(w, emit)
		}
	}
	c.parts = nil
}

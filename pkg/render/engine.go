// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Engine implements the template engine.
type Engine struct {
	logger    *slog.Logger
	buffers   *bufferPool
	mu        sync.RWMutex
	helpers   map[string]Helper
	templates map[string]*Body
}

// Option configures an engine.
type Option func(e *Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a new engine.
func New(options ...Option) *Engine {
	e := &Engine{
		logger:    slog.Default(),
		buffers:   newBufferPool(),
		helpers:   make(map[string]Helper),
		templates: make(map[string]*Body),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// RegisterHelper registers a helper, replacing any helper of the same name.
func (e *Engine) RegisterHelper(name string, h Helper) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.helpers[name] = h
}

// Compile compiles a template and registers it under name.
func (e *Engine) Compile(name string, source string) error {
	body, err := Parse(source)
	if err != nil {
		return fmt.Errorf("compile template %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templates[name] = body

	return nil
}

// Templates returns the sorted names of the compiled templates.
func (e *Engine) Templates() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// HasTemplate reports whether the template name is compiled.
func (e *Engine) HasTemplate(name string) bool {
	_, ok := e.template(name)
	return ok
}

// Render renders the template name with data as the root context layer.
//
// Render waits for all the branches of the template. It returns the output
// and the errors signaled by the branches, or ctx.Err() if ctx is done before
// every branch has ended.
func (e *Engine) Render(ctx context.Context, name string, data any) (string, error) {
	body, ok := e.template(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return e.render(ctx, name, body, data)
}

// RenderString compiles and renders a template source without registering it.
func (e *Engine) RenderString(ctx context.Context, source string, data any) (string, error) {
	body, err := Parse(source)
	if err != nil {
		return "", fmt.Errorf("compile template: %w", err)
	}
	return e.render(ctx, "", body, data)
}

// render renders a compiled body.
func (e *Engine) render(ctx context.Context, name string, body *Body, data any) (string, error) {
	state := &renderState{
		ctx:    ctx,
		engine: e,
		logger: e.logger.With("render", uuid.NewString()),
	}
	state.logger.Debug("Rendering template", "template", name)

	root := newChunk(state)
	root.Render(body, NewContext(data))

	done := make(chan struct{})
	go func() {
		state.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		state.logger.Warn("Render aborted", "template", name, "err", ctx.Err())
		return "", ctx.Err()
	}

	buf := e.buffers.Get()
	defer e.buffers.Put(buf)
	root.flush(buf, true)

	if err := state.err(); err != nil {
		state.logger.Debug("Render failed", "template", name, "err", err)
		return buf.String(), err
	}

	return buf.String(), nil
}

// helper returns the helper name.
func (e *Engine) helper(name string) (Helper, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.helpers[name]
	return h, ok
}

// template returns the compiled template name.
func (e *Engine) template(name string) (*Body, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	body, ok := e.templates[name]
	return body, ok
}

// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"reflect"
	"strconv"
	"strings"
)

// Lookuper is implemented by values exposing named fields to templates
// without being a map.
type Lookuper interface {
	// Lookup returns the value of the given key.
	Lookup(key string) (any, bool)
}

// Context is an immutable stack of layers.
//
// Pushing a layer returns a new context and never modifies the receiver.
type Context struct {
	parent *Context
	head   any
	index  int
	length int
}

// Ref is a parameter referencing a context path.
type Ref struct {
	Path string
}

// Params holds the parameters of a helper. Values are string or number
// literals, references (Ref) or interpolated strings (*Body).
type Params map[string]any

// NewContext creates a context whose single layer is data.
func NewContext(data any) *Context {
	return &Context{head: data, index: -1}
}

// Push returns a new context with layer on top of c.
func (c *Context) Push(layer any) *Context {
	return &Context{parent: c, head: layer, index: -1}
}

// pushItem returns a new context with an iteration item on top of c.
func (c *Context) pushItem(item any, index int, length int) *Context {
	return &Context{parent: c, head: item, index: index, length: length}
}

// Head returns the top layer.
func (c *Context) Head() any {
	if c == nil {
		return nil
	}
	return c.head
}

// Get returns the value at path.
//
// The first path element is searched from the head layer down to the root;
// the following elements descend into the value found. A path starting with
// a dot only searches the head layer, and "." is the head layer itself.
func (c *Context) Get(path string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch path {
	case "", ".":
		return c.head, c.head != nil
	case "$idx":
		if c.index < 0 {
			return nil, false
		}
		return c.index, true
	case "$len":
		if c.index < 0 {
			return nil, false
		}
		return c.length, true
	}

	local := strings.HasPrefix(path, ".")
	keys := strings.Split(strings.TrimPrefix(path, "."), ".")

	var value any
	var found bool
	for layer := c; layer != nil; layer = layer.parent {
		if value, found = lookupKey(layer.head, keys[0]); found || local {
			break
		}
	}
	if !found {
		return nil, false
	}
	for _, key := range keys[1:] {
		if value, found = lookupKey(value, key); !found {
			return nil, false
		}
	}

	return value, true
}

// Resolve returns the concrete value of a parameter.
func (c *Context) Resolve(param any) any {
	switch p := param.(type) {
	case Ref:
		v, _ := c.Get(p.Path)
		return v
	case *Body:
		return p.interpolate(c)
	default:
		return param
	}
}

// lookupKey returns the field key of v.
func lookupKey(v any, key string) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		value, ok := t[key]
		return value, ok
	case Lookuper:
		return t.Lookup(key)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}

	return nil, false
}

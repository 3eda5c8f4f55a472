// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import "strings"

// Body is a compiled template body.
type Body struct {
	nodes []node
}

// Bodies holds the bodies of a block tag.
type Bodies struct {
	// Block is the main body, nil for self-closing tags.
	Block *Body
	// Else is the {:else} body.
	Else *Body
}

// node is a template node.
type node interface {
	isNode()
}

// textNode is raw text.
type textNode string

// refNode is a reference tag, {path|filter}.
type refNode struct {
	path    string
	filters []string
}

// sectionNode is a section tag, {#path}, {?path} or {^path}.
type sectionNode struct {
	kind   byte
	path   string
	bodies Bodies
}

// helperNode is a helper tag, {@name key=value}.
type helperNode struct {
	name   string
	params Params
	bodies Bodies
}

// partialNode is a partial tag, {>name key=value/}.
type partialNode struct {
	name   string
	params Params
}

func (textNode) isNode()    {}
func (refNode) isNode()     {}
func (sectionNode) isNode() {}
func (helperNode) isNode()  {}
func (partialNode) isNode() {}

// interpolate renders the text and references of the body into a string.
func (b *Body) interpolate(ctx *Context) string {
	var sb strings.Builder
	for _, n := range b.nodes {
		switch t := n.(type) {
		case textNode:
			sb.WriteString(string(t))
		case refNode:
			v, _ := ctx.Get(t.path)
			sb.WriteString(format(v, t.filters))
		}
	}
	return sb.String()
}

// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"fmt"
	"strconv"
	"strings"
)

// parser implements the template parser.
type parser struct {
	src string
	pos int
}

// stopKind is the reason a body stops being parsed.
type stopKind int

const (
	stopEOF stopKind = iota
	stopElse
	stopClose
)

// specials are the {~name} escapes.
var specials = map[string]string{
	"n":  "\n",
	"r":  "\r",
	"s":  " ",
	"lb": "{",
	"rb": "}",
}

// Parse compiles a template source.
func Parse(src string) (*Body, error) {
	p := &parser{src: src}
	nodes, stop, name, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	switch stop {
	case stopElse:
		return nil, p.errorf(p.pos, "unexpected {:else}")
	case stopClose:
		return nil, p.errorf(p.pos, "unexpected closing tag {/%s}", name)
	}

	return &Body{nodes: nodes}, nil
}

// parseNodes parses nodes until the end of the source, an else tag or a
// closing tag.
func (p *parser) parseNodes() ([]node, stopKind, string, error) {
	var nodes []node
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, textNode(text.String()))
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		if p.src[p.pos] != '{' || !p.isTagStart() {
			text.WriteByte(p.src[p.pos])
			p.pos++
			continue
		}

		start := p.pos
		if strings.HasPrefix(p.src[p.pos:], "{!") {
			end := strings.Index(p.src[p.pos+2:], "!}")
			if end < 0 {
				return nil, stopEOF, "", p.errorf(start, "unterminated comment")
			}
			p.pos += end + 4
			continue
		}

		content, ok := p.readTag()
		if !ok {
			if isPathChar(p.src[p.pos+1]) {
				text.WriteByte('{')
				p.pos++
				continue
			}
			return nil, stopEOF, "", p.errorf(start, "unterminated tag")
		}

		switch content[0] {
		case '~':
			if s, ok := specials[content[1:]]; ok {
				text.WriteString(s)
			} else {
				text.WriteString(p.src[start:p.pos])
			}

		case ':':
			if strings.TrimSpace(content[1:]) != "else" {
				return nil, stopEOF, "", p.errorf(start, "unknown body {%s}", content)
			}
			flush()
			return nodes, stopElse, "", nil

		case '/':
			flush()
			return nodes, stopClose, strings.TrimSpace(content[1:]), nil

		case '#', '?', '^':
			flush()
			path := strings.TrimSpace(content[1:])
			if !isPath(path) {
				return nil, stopEOF, "", p.errorf(start, "invalid section path %q", path)
			}
			bodies, err := p.parseBlock(path, start)
			if err != nil {
				return nil, stopEOF, "", err
			}
			nodes = append(nodes, sectionNode{kind: content[0], path: path, bodies: bodies})

		case '@':
			flush()
			n, err := p.parseHelper(content[1:], start)
			if err != nil {
				return nil, stopEOF, "", err
			}
			nodes = append(nodes, n)

		case '>':
			flush()
			n, err := p.parsePartial(content[1:], start)
			if err != nil {
				return nil, stopEOF, "", err
			}
			nodes = append(nodes, n)

		default:
			n, ok := parseRef(content)
			if !ok {
				text.WriteString(p.src[start:p.pos])
				continue
			}
			flush()
			nodes = append(nodes, n)
		}
	}
	flush()

	return nodes, stopEOF, "", nil
}

// parseBlock parses the bodies of a block tag up to its closing tag.
func (p *parser) parseBlock(name string, start int) (Bodies, error) {
	nodes, stop, closeName, err := p.parseNodes()
	if err != nil {
		return Bodies{}, err
	}
	bodies := Bodies{Block: &Body{nodes: nodes}}
	if stop == stopElse {
		nodes, stop, closeName, err = p.parseNodes()
		if err != nil {
			return Bodies{}, err
		}
		bodies.Else = &Body{nodes: nodes}
	}

	switch {
	case stop == stopEOF:
		return Bodies{}, p.errorf(start, "unclosed tag {%s}", name)
	case stop == stopElse:
		return Bodies{}, p.errorf(start, "duplicate {:else} in {%s}", name)
	case closeName != name:
		return Bodies{}, p.errorf(start, "mismatched closing tag {/%s} for {%s}", closeName, name)
	}

	return bodies, nil
}

// parseHelper parses a helper tag.
func (p *parser) parseHelper(content string, start int) (helperNode, error) {
	content, selfClosing := trimSelfClosing(content)
	name, rest := splitName(content)
	if name == "" {
		return helperNode{}, p.errorf(start, "missing helper name")
	}
	params, err := parseParams(rest)
	if err != nil {
		return helperNode{}, p.errorf(start, "helper %s: %v", name, err)
	}

	n := helperNode{name: name, params: params}
	if !selfClosing {
		if n.bodies, err = p.parseBlock(name, start); err != nil {
			return helperNode{}, err
		}
	}

	return n, nil
}

// parsePartial parses a partial tag.
func (p *parser) parsePartial(content string, start int) (partialNode, error) {
	content, selfClosing := trimSelfClosing(content)
	if !selfClosing {
		return partialNode{}, p.errorf(start, "partial tag must be self-closing")
	}
	name, rest := splitName(content)
	if name == "" {
		return partialNode{}, p.errorf(start, "missing partial name")
	}
	params, err := parseParams(rest)
	if err != nil {
		return partialNode{}, p.errorf(start, "partial %s: %v", name, err)
	}

	return partialNode{name: name, params: params}, nil
}

// isTagStart reports whether the brace at the current position opens a tag.
func (p *parser) isTagStart() bool {
	if p.pos+1 >= len(p.src) {
		return false
	}
	c := p.src[p.pos+1]
	return strings.IndexByte("#?^@/:>!~", c) >= 0 || isPathChar(c)
}

// readTag reads the tag at the current position and returns its content.
// Braces inside quoted parameter values do not close the tag.
func (p *parser) readTag() (string, bool) {
	var quoted bool
	for i := p.pos + 1; i < len(p.src); i++ {
		switch c := p.src[i]; {
		case quoted && c == '\\':
			i++
		case c == '"':
			quoted = !quoted
		case !quoted && c == '}':
			content := p.src[p.pos+1 : i]
			if content == "" {
				return "", false
			}
			p.pos = i + 1
			return content, true
		}
	}
	return "", false
}

// errorf returns a parse error located at offset.
func (p *parser) errorf(offset int, format string, args ...any) error {
	line := strings.Count(p.src[:offset], "\n") + 1
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

// parseRef parses a reference tag content.
func parseRef(content string) (refNode, bool) {
	parts := strings.Split(content, "|")
	if !isPath(parts[0]) {
		return refNode{}, false
	}
	n := refNode{path: parts[0]}
	for _, f := range parts[1:] {
		if !isIdent(f) {
			return refNode{}, false
		}
		n.filters = append(n.filters, f)
	}
	return n, true
}

// parseParams parses the key=value parameters of a tag.
func parseParams(s string) (Params, error) {
	params := Params{}

	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		key := s[start:i]
		if key == "" || i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("invalid parameter at %q", s[start:])
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("missing value for parameter %s", key)
		}

		if s[i] == '"' {
			end, raw, err := readQuoted(s, i)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			i = end
			if !strings.Contains(raw, "{") {
				params[key] = raw
				continue
			}
			body, err := Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			for _, n := range body.nodes {
				switch n.(type) {
				case textNode, refNode:
				default:
					return nil, fmt.Errorf("parameter %s: only references are allowed", key)
				}
			}
			params[key] = body
			continue
		}

		start = i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		params[key] = parseLiteral(s[start:i])
	}

	return params, nil
}

// parseLiteral parses an unquoted parameter value.
func parseLiteral(tok string) any {
	if n, err := strconv.Atoi(tok); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	return Ref{Path: tok}
}

// readQuoted reads the quoted string starting at s[i] and returns the offset
// following the closing quote and the unescaped value.
func readQuoted(s string, i int) (int, string, error) {
	var sb strings.Builder
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 < len(s) {
				j++
				sb.WriteByte(s[j])
			}
		case '"':
			return j + 1, sb.String(), nil
		default:
			sb.WriteByte(s[j])
		}
	}
	return 0, "", fmt.Errorf("unterminated string")
}

// trimSelfClosing trims the self-closing slash of a tag content.
func trimSelfClosing(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if strings.HasSuffix(content, "/") {
		return strings.TrimSpace(strings.TrimSuffix(content, "/")), true
	}
	return content, false
}

// splitName splits the name of a tag from its parameters.
func splitName(content string) (string, string) {
	i := 0
	for i < len(content) && (isPathChar(content[i]) || content[i] == '/') {
		i++
	}
	return content[:i], content[i:]
}

func isPath(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isPathChar(s[i]) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func isPathChar(c byte) bool {
	return isIdentChar(c) || c == '.'
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

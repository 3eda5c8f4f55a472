// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Handler implements a logfmt-like log handler.
//
// Records are written on one line as `time=... level=... id=... msg=... key=value`.
type Handler struct {
	id     string
	opts   HandlerOptions
	w      io.Writer
	mu     *sync.Mutex
	prefix string
	attrs  []byte
}

// HandlerOptions implements the log handler options.
type HandlerOptions struct {
	Level        slog.Leveler
	AppendSource bool
}

const (
	// IDKey is the key used by the handler for its ID. The associated value is a
	// string.
	IDKey = "id"
)

// NewHandler creates a new handler.
func NewHandler(w io.Writer, id string, opts *HandlerOptions) *Handler {
	h := &Handler{
		id: id,
		w:  w,
		mu: &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = ProgramLevel
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// WithGroup returns a new Handler prefixing the keys of the next attributes
// with the group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// WithAttrs returns a new Handler whose attributes consist of both the
// receiver's attributes and the arguments.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append([]byte(nil), h.attrs...)
	for _, a := range attrs {
		h2.attrs = appendAttr(h2.attrs, h.prefix, a)
	}
	return &h2
}

// Handle handles the Record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 512)
	if !r.Time.IsZero() {
		buf = append(buf, "time="...)
		buf = r.Time.AppendFormat(buf, time.RFC3339Nano)
	}
	buf = appendAttr(buf, "", slog.String(slog.LevelKey, r.Level.String()))
	if h.id != "" {
		buf = appendAttr(buf, "", slog.String(IDKey, h.id))
	}
	if h.opts.AppendSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		buf = appendAttr(buf, "", slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", f.File, f.Line)))
	}
	buf = appendAttr(buf, "", slog.String(slog.MessageKey, r.Message))
	buf = append(buf, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(buf); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}

// appendAttr appends a single attribute.
func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	key := prefix + a.Key

	switch a.Value.Kind() {
	case slog.KindGroup:
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, groupPrefix, ga)
		}
		return buf
	case slog.KindTime:
		return appendPair(buf, key, a.Value.Time().Format(time.RFC3339Nano))
	default:
		return appendPair(buf, key, a.Value.String())
	}
}

// appendPair appends a key=value pair, quoting each side when needed.
func appendPair(buf []byte, key string, value string) []byte {
	if len(buf) > 0 {
		buf = append(buf, ' ')
	}
	buf = appendQuoted(buf, key)
	buf = append(buf, '=')
	return appendQuoted(buf, value)
}

// appendQuoted appends s, quoted if needed.
func appendQuoted(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

// needsQuoting checks if a string needs to be quoted.
func needsQuoting(s string) bool {
	if len(s) == 0 {
		return true
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError || r == '=' || r == '"' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return true
		}
		i += size
	}
	return false
}

var _ slog.Handler = (*Handler)(nil)

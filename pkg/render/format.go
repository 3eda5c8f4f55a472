// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// format returns the string form of v with the filters applied.
//
// Output is HTML-escaped unless the "s" filter is present.
func format(v any, filters []string) string {
	s := Stringify(v)

	escape := true
	for _, f := range filters {
		switch f {
		case "s":
			escape = false
		case "h":
			s = html.EscapeString(s)
			escape = false
		case "j":
			b, _ := json.Marshal(s)
			s = string(b[1 : len(b)-1])
		case "js":
			b, err := json.Marshal(v)
			if err == nil {
				s = string(b)
			}
		case "u":
			s = (&url.URL{Path: s}).EscapedPath()
		case "uc":
			s = strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
		}
	}
	if escape {
		s = html.EscapeString(s)
	}

	return s
}

// Stringify returns the text form of a context value.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// Truthy reports whether a context value renders a section block.
//
// nil, false, empty strings and empty slices are falsy. Numbers, including
// zero, and maps, including empty ones, are truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Map:
		return !rv.IsNil()
	}

	return true
}

package render

import (
	"reflect"
	"testing"
)

type testLookuper map[string]any

func (l testLookuper) Lookup(key string) (any, bool) {
	v, ok := l[key]
	return v, ok
}

func TestContextGet(t *testing.T) {
	root := NewContext(map[string]any{
		"site":  map[string]any{"title": "Pets", "tags": []any{"a", "b"}},
		"name":  "root",
		"count": 0,
	})
	ctx := root.Push(map[string]any{"name": "head", "pet": testLookuper{"kind": "cat"}})

	tests := []struct {
		name      string
		ctx       *Context
		path      string
		want      any
		wantFound bool
	}{
		{name: "head layer", ctx: ctx, path: "name", want: "head", wantFound: true},
		{name: "root layer", ctx: ctx, path: "site.title", want: "Pets", wantFound: true},
		{name: "slice index", ctx: ctx, path: "site.tags.1", want: "b", wantFound: true},
		{name: "lookuper", ctx: ctx, path: "pet.kind", want: "cat", wantFound: true},
		{name: "local path skips root", ctx: ctx, path: ".site", wantFound: false},
		{name: "local path", ctx: ctx, path: ".name", want: "head", wantFound: true},
		{name: "missing", ctx: ctx, path: "unknown", wantFound: false},
		{name: "missing descendant", ctx: ctx, path: "site.unknown", wantFound: false},
		{name: "zero value", ctx: ctx, path: "count", want: 0, wantFound: true},
		{name: "nil context", ctx: nil, path: "name", wantFound: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := tt.ctx.Get(tt.path)
			if found != tt.wantFound {
				t.Errorf("Context.Get() found = %v, want %v", found, tt.wantFound)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Context.Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextPushIsImmutable(t *testing.T) {
	root := NewContext(map[string]any{"name": "root"})
	child := root.Push(map[string]any{"name": "child"})

	if v, _ := root.Get("name"); v != "root" {
		t.Errorf("root Get() = %v, want root", v)
	}
	if v, _ := child.Get("name"); v != "child" {
		t.Errorf("child Get() = %v, want child", v)
	}
	if !reflect.DeepEqual(child.Head(), map[string]any{"name": "child"}) {
		t.Errorf("Head() = %v", child.Head())
	}
}

func TestContextResolve(t *testing.T) {
	ctx := NewContext(map[string]any{"id": "42", "n": 7})
	body, err := Parse("pet-{id}")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name  string
		param any
		want  any
	}{
		{name: "literal", param: "lit", want: "lit"},
		{name: "number", param: 3, want: 3},
		{name: "reference", param: Ref{Path: "n"}, want: 7},
		{name: "missing reference", param: Ref{Path: "none"}, want: nil},
		{name: "interpolated", param: body, want: "pet-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ctx.Resolve(tt.param); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Context.Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

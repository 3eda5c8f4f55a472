// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bhuisgen/trellis/pkg/render"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestApplication(t *testing.T, templates map[string]string) (*Application, string) {
	t.Helper()

	dir := t.TempDir()
	writeFiles(t, dir, templates)
	writeFiles(t, dir, map[string]string{
		"samples/config.json":      `{"default": {"pet": "pet-default.json"}}`,
		"samples/pet-default.json": `{"name": "Default"}`,
		"samples/pet-1.json":       `{"name": "Rex", "photo": "rex.jpg", "thumb": "rex-t.jpg"}`,
		"samples/owner-1.json":     `{"name": "Ann"}`,
	})

	a, err := New(&config{
		Store: map[string]interface{}{
			"backends": []interface{}{"samples"},
			"config": map[string]interface{}{
				"samples": map[string]interface{}{"path": filepath.Join(dir, "samples")},
			},
		},
		Helpers: map[string]interface{}{
			"categories": []interface{}{"owner"},
		},
		Templates: map[string]interface{}{
			"dir": filepath.Join(dir, "templates"),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return a, dir
}

func TestNew(t *testing.T) {
	a, _ := newTestApplication(t, map[string]string{
		"templates/index.tpl":         `index`,
		"templates/pages/about.tpl":   `about`,
		"templates/pages/ignored.txt": `ignored`,
	})

	if got := a.Backend(); got != "samples" {
		t.Errorf("Application.Backend() = %v, want %v", got, "samples")
	}
	if got, want := a.Templates(), []string{"index", "pages/about"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Application.Templates() = %v, want %v", got, want)
	}
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"templates/broken.tpl": `{#a}`,
	})

	tests := []struct {
		name   string
		config *config
	}{
		{
			name: "invalid helpers config",
			config: &config{
				Helpers: map[string]interface{}{"categories": 1},
			},
		},
		{
			name: "invalid templates config",
			config: &config{
				Templates: map[string]interface{}{"dir": 1},
			},
		},
		{
			name: "invalid store config",
			config: &config{
				Store: map[string]interface{}{"backends": 1},
			},
		},
		{
			name: "missing templates directory",
			config: &config{
				Templates: map[string]interface{}{"dir": filepath.Join(dir, "missing")},
			},
		},
		{
			name: "invalid template",
			config: &config{
				Templates: map[string]interface{}{"dir": filepath.Join(dir, "templates")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Errorf("New() error = nil, want error")
			}
		})
	}
}

func TestApplicationRender(t *testing.T) {
	a, _ := newTestApplication(t, map[string]string{
		"templates/pet.tpl": `{@pet id=id}{pet.name}{/pet}`,
		"templates/owner.tpl": `{@owner id="1"}{owner.name}{/owner}`,
		"templates/gallery.tpl": `{@pet id="1"}{@gallery prefix="/img/" size="l"}` +
			`{@img src=pet.photo thumb=pet.thumb/}` +
			`{#gallery.items}{image}|{image__thumb}|{size}{/gallery.items}{/gallery}{/pet}`,
		"templates/layout.tpl":  `<{>pet/}>`,
		"templates/missing.tpl": `a{@unknown/}b`,
	})

	tests := []struct {
		name     string
		template string
		data     any
		want     string
		wantErr  error
	}{
		{
			name:     "sample by id",
			template: "pet",
			data:     map[string]any{"id": "1"},
			want:     "Rex",
		},
		{
			name:     "default sample",
			template: "pet",
			data:     map[string]any{"id": "99"},
			want:     "Default",
		},
		{
			name:     "configured category",
			template: "owner",
			want:     "Ann",
		},
		{
			name:     "gallery",
			template: "gallery",
			want:     "/img/rex.jpg|/img/rex-t.jpg|l",
		},
		{
			name:     "partial",
			template: "layout",
			data:     map[string]any{"id": "1"},
			want:     "<Rex>",
		},
		{
			name:     "missing helper",
			template: "missing",
			want:     "ab",
			wantErr:  render.ErrHelperNotFound,
		},
		{
			name:     "missing template",
			template: "unknown",
			wantErr:  render.ErrTemplateNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := a.Render(context.Background(), tt.template, tt.data, &buf)
			if (err != nil) != (tt.wantErr != nil) || (tt.wantErr != nil && !errors.Is(err, tt.wantErr)) {
				t.Errorf("Application.Render() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Application.Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplicationReload(t *testing.T) {
	a, dir := newTestApplication(t, map[string]string{
		"templates/index.tpl": `v1`,
	})

	writeFiles(t, dir, map[string]string{
		"templates/index.tpl": `v2`,
		"templates/new.tpl":   `new`,
	})
	if err := a.Reload(); err != nil {
		t.Fatalf("Application.Reload() error = %v", err)
	}

	var buf bytes.Buffer
	if err := a.Render(context.Background(), "index", nil, &buf); err != nil {
		t.Fatalf("Application.Render() error = %v", err)
	}
	if got := buf.String(); got != "v2" {
		t.Errorf("Application.Render() = %q, want %q", got, "v2")
	}
	if !a.HasTemplate("new") {
		t.Errorf("Application.HasTemplate() = false, want true")
	}

	writeFiles(t, dir, map[string]string{
		"templates/index.tpl": `{#broken}`,
	})
	if err := a.Reload(); err == nil {
		t.Errorf("Application.Reload() error = nil, want error")
	}
	buf.Reset()
	if err := a.Render(context.Background(), "index", nil, &buf); err != nil || buf.String() != "v2" {
		t.Errorf("Application.Render() = %q, %v, want previous templates", buf.String(), err)
	}
}

func TestApplicationCheck(t *testing.T) {
	a, dir := newTestApplication(t, map[string]string{
		"templates/index.tpl": `index`,
	})

	if err := a.Check(); err != nil {
		t.Errorf("Application.Check() error = %v", err)
	}

	writeFiles(t, dir, map[string]string{
		"templates/broken.tpl": `{@pet}`,
	})
	err := a.Check()
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Application.Check() error = %v, want template error", err)
	}
}

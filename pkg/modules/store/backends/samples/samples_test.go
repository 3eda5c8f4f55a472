// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package samples

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bhuisgen/trellis/pkg/log"
	"github.com/bhuisgen/trellis/pkg/module"
)

func writeSamples(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func newTestBackend(t *testing.T, dir string) *samplesBackend {
	t.Helper()

	b := samplesBackend{}.ModuleInfo().NewInstance().(*samplesBackend)
	if err := b.Init(map[string]interface{}{"path": dir}, log.New(string(samplesModuleID))); err != nil {
		t.Fatalf("samplesBackend.Init() error = %v", err)
	}

	return b
}

func TestSamplesBackendModuleInfo(t *testing.T) {
	info, err := module.Lookup(samplesModuleID)
	if err != nil {
		t.Fatalf("module.Lookup() error = %v", err)
	}
	if info.ID != samplesModuleID {
		t.Errorf("ModuleInfo().ID = %v, want %v", info.ID, samplesModuleID)
	}
}

func TestSamplesBackendInit(t *testing.T) {
	valid := writeSamples(t, map[string]string{
		"config.json": `{"default": {"pet": "pet.json"}}`,
	})
	noConfig := writeSamples(t, nil)
	badConfig := writeSamples(t, map[string]string{
		"config.json": `{"default":`,
	})
	notDir := filepath.Join(valid, "config.json")

	type args struct {
		config map[string]interface{}
	}
	tests := []struct {
		name         string
		args         args
		wantDefaults map[string]string
		wantErr      bool
	}{
		{
			name: "valid",
			args: args{
				config: map[string]interface{}{"path": valid},
			},
			wantDefaults: map[string]string{"pet": "pet.json"},
		},
		{
			name: "missing directory",
			args: args{
				config: map[string]interface{}{"path": filepath.Join(valid, "missing")},
			},
			wantErr: true,
		},
		{
			name: "path is a file",
			args: args{
				config: map[string]interface{}{"path": notDir},
			},
			wantErr: true,
		},
		{
			name: "missing config file",
			args: args{
				config: map[string]interface{}{"path": noConfig},
			},
			wantErr: true,
		},
		{
			name: "invalid config file",
			args: args{
				config: map[string]interface{}{"path": badConfig},
			},
			wantErr: true,
		},
		{
			name: "invalid option",
			args: args{
				config: map[string]interface{}{"path": 1},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := samplesBackend{}.ModuleInfo().NewInstance().(*samplesBackend)
			err := b.Init(tt.args.config, slog.Default())
			if (err != nil) != tt.wantErr {
				t.Errorf("samplesBackend.Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && !reflect.DeepEqual(b.defaults, tt.wantDefaults) {
				t.Errorf("samplesBackend.Init() defaults = %v, want %v", b.defaults, tt.wantDefaults)
			}
		})
	}
}

func TestSamplesBackendInitDefaultPath(t *testing.T) {
	var statName string
	b := &samplesBackend{
		osStat: func(name string) (fs.FileInfo, error) {
			statName = name
			return nil, fs.ErrNotExist
		},
	}
	if err := b.Init(map[string]interface{}{}, slog.Default()); err == nil {
		t.Errorf("samplesBackend.Init() error = nil, want error")
	}
	if statName != samplesConfigDefaultPath {
		t.Errorf("samplesBackend.Init() path = %q, want %q", statName, samplesConfigDefaultPath)
	}
}

func TestSamplesBackendGet(t *testing.T) {
	dir := writeSamples(t, map[string]string{
		"config.json":      `{"default": {"pet": "pet-default.json", "owner": "missing.json"}}`,
		"pet-default.json": `{"name": "default"}`,
		"7.json":           `{"name": "by id"}`,
		"pet8.json":        `{"name": "by category and id"}`,
		"pet-9.json":       `{"name": "by category, dash and id"}`,
		"article8.json":    `{"title": "article"}`,
		"pet10.json":       `{"name": "concatenated"}`,
		"pet-10.json":      `{"name": "dashed"}`,
		"pet11.json":       `{"name":`,
	})
	b := newTestBackend(t, dir)

	type args struct {
		category string
		id       string
	}
	tests := []struct {
		name    string
		args    args
		want    any
		wantErr bool
		wantIs  error
	}{
		{
			name: "id only wins regardless of category",
			args: args{category: "article", id: "7"},
			want: map[string]any{"name": "by id"},
		},
		{
			name: "category and id",
			args: args{category: "pet", id: "8"},
			want: map[string]any{"name": "by category and id"},
		},
		{
			name: "category, dash and id",
			args: args{category: "pet", id: "9"},
			want: map[string]any{"name": "by category, dash and id"},
		},
		{
			name: "concatenated name before dashed name",
			args: args{category: "pet", id: "10"},
			want: map[string]any{"name": "concatenated"},
		},
		{
			name: "default sample",
			args: args{category: "pet", id: "42"},
			want: map[string]any{"name": "default"},
		},
		{
			name:    "no default sample",
			args:    args{category: "article", id: "42"},
			wantErr: true,
			wantIs:  ErrNoDefault,
		},
		{
			name:    "unreadable default sample",
			args:    args{category: "owner", id: "42"},
			wantErr: true,
			wantIs:  fs.ErrNotExist,
		},
		{
			name:    "invalid sample",
			args:    args{category: "pet", id: "11"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Get(context.Background(), tt.args.category, tt.args.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("samplesBackend.Get() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("samplesBackend.Get() error = %v, want %v", err, tt.wantIs)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("samplesBackend.Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSamplesBackendGetCanceled(t *testing.T) {
	dir := writeSamples(t, map[string]string{
		"config.json": `{"default": {}}`,
		"1.json":      `{}`,
	})
	b := newTestBackend(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Get(ctx, "pet", "1"); !errors.Is(err, context.Canceled) {
		t.Errorf("samplesBackend.Get() error = %v, want %v", err, context.Canceled)
	}
}

func TestSamplesBackendGetReadsOnce(t *testing.T) {
	dir := writeSamples(t, map[string]string{
		"config.json": `{"default": {}}`,
		"pet-3.json":  `[1, 2]`,
	})
	b := newTestBackend(t, dir)

	var opened []string
	b.osOpenFile = func(name string, flag int, perm fs.FileMode) (*os.File, error) {
		opened = append(opened, filepath.Base(name))
		return os.OpenFile(name, flag, perm)
	}

	got, err := b.Get(context.Background(), "pet", "3")
	if err != nil {
		t.Fatalf("samplesBackend.Get() error = %v", err)
	}
	if want := []any{float64(1), float64(2)}; !reflect.DeepEqual(got, want) {
		t.Errorf("samplesBackend.Get() = %v, want %v", got, want)
	}
	if want := []string{"3.json", "pet3.json", "pet-3.json"}; !reflect.DeepEqual(opened, want) {
		t.Errorf("samplesBackend.Get() opened = %v, want %v", opened, want)
	}
}

// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"context"
	"reflect"
	"testing"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name         string
		config       map[string]interface{}
		wantBackend  string
		wantBackends []string
		wantErr      bool
	}{
		{
			name:         "default falls back to empty",
			config:       nil,
			wantBackend:  "empty",
			wantBackends: []string{"remote", "sqlite", "samples", "empty"},
		},
		{
			name: "first available backend wins",
			config: map[string]interface{}{
				"backends": []interface{}{"failing", "test", "empty"},
			},
			wantBackend:  "test",
			wantBackends: []string{"failing", "test", "empty"},
		},
		{
			name: "unregistered backend is unavailable",
			config: map[string]interface{}{
				"backends": []interface{}{"unknown", "invalid", "test"},
			},
			wantBackend:  "test",
			wantBackends: []string{"unknown", "invalid", "test", "empty"},
		},
		{
			name: "empty appended",
			config: map[string]interface{}{
				"backends": []interface{}{"failing"},
			},
			wantBackend:  "empty",
			wantBackends: []string{"failing", "empty"},
		},
		{
			name: "remote without url is unavailable",
			config: map[string]interface{}{
				"backends": []interface{}{"remote", "test"},
				"config": map[string]interface{}{
					"remote": map[string]interface{}{"timeout": 5},
				},
			},
			wantBackend:  "test",
			wantBackends: []string{"remote", "test", "empty"},
		},
		{
			name: "invalid config",
			config: map[string]interface{}{
				"backends": 1,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newStore(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("newStore() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if got := s.Backend(); got != tt.wantBackend {
				t.Errorf("store.Backend() = %v, want %v", got, tt.wantBackend)
			}
			if !reflect.DeepEqual(s.config.Backends, tt.wantBackends) {
				t.Errorf("store backends = %v, want %v", s.config.Backends, tt.wantBackends)
			}
		})
	}
}

func TestStoreGet(t *testing.T) {
	s, err := newStore(map[string]interface{}{
		"backends": []interface{}{"test"},
		"config": map[string]interface{}{
			"test": map[string]interface{}{"name": "Rex"},
		},
	})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), "pet", "1")
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	want := map[string]any{"category": "pet", "id": "1", "name": "Rex"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("store.Get() = %v, want %v", got, want)
	}
}

func TestStoreGetEmpty(t *testing.T) {
	s, err := newStore(map[string]interface{}{
		"backends": []interface{}{"empty"},
	})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	got, err := s.Get(context.Background(), "article", "1")
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if want := map[string]any{}; !reflect.DeepEqual(got, want) {
		t.Errorf("store.Get() = %v, want %v", got, want)
	}
}

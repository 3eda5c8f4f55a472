package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bhuisgen/trellis/internal/app/trellis"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{
			name: "usage",
			args: []string{},
		},
		{
			name: "version flag",
			args: []string{"-v"},
		},
		{
			name: "version command",
			args: []string{"version"},
		},
		{
			name:    "unknown command",
			args:    []string{"unknown"},
			wantErr: true,
		},
		{
			name:    "render without template",
			args:    []string{"render"},
			wantErr: true,
		},
		{
			name:    "invalid flag",
			args:    []string{"-unknown"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args); (err != nil) != tt.wantErr {
				t.Errorf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"trellis.yaml": "store:\n  backends: [samples]\n  config:\n    samples:\n      path: " +
			filepath.Join(dir, "samples") + "\ntemplates:\n  dir: " + filepath.Join(dir, "templates") + "\n",
		"templates/index.tpl": `{@pet id=id}{pet.name}{/pet}`,
		"samples/config.json": `{"default": {}}`,
		"samples/pet-1.json":  `{"name": "Rex"}`,
		"data.json":           `{"id": "1"}`,
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatal(err)
		}
	}
	trellis.CONFIG_FILE = filepath.Join(dir, "trellis.yaml")
	defer func() { trellis.CONFIG_FILE = "" }()

	var buf bytes.Buffer
	c := NewRenderCommand()
	c.stdout = &buf
	if err := c.Parse([]string{"-data", filepath.Join(dir, "data.json"), "index"}); err != nil {
		t.Fatalf("renderCommand.Parse() error = %v", err)
	}
	if err := c.Execute(); err != nil {
		t.Fatalf("renderCommand.Execute() error = %v", err)
	}
	if got := buf.String(); got != "Rex" {
		t.Errorf("renderCommand.Execute() output = %q, want %q", got, "Rex")
	}
}

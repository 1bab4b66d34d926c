package graph

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

const pointShadowConfig = `
output: final_color
passes:
  - name: shadow
    creates:
      - {tag: shadow_map, format: depth32float, sizing: fixed, width: 6144, height: 1024}
  - name: cubemap_view
    needs: [shadow_map]
    creates:
      - {tag: cubemap_view, format: rgba8unorm, sizing: window}
  - name: final
    needs: [shadow_map]
    clear_color: [0.1, 0.1, 0.1, 1]
    clear_depth: 1
    creates:
      - {tag: final_color, format: rgba8unorm, sizing: window}
      - {tag: final_depth, format: depth32float, sizing: window}
`

func TestParseConfigBuildsGraph(t *testing.T) {
	cfg, err := ParseConfig([]byte(pointShadowConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	passes, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(passes) != 3 {
		t.Fatalf("passes = %d, want 3", len(passes))
	}

	shadow := passes[0].Creates[0]
	if shadow.Format != gputypes.TextureFormatDepth32Float || shadow.Sizing != SizeFixed ||
		shadow.Width != 6144 || shadow.Height != 1024 {
		t.Errorf("shadow_map spec = %+v", shadow)
	}
	final := passes[2]
	if final.Clear.Color == nil || final.Clear.Color.R != 0.1 || final.Clear.Color.A != 1 {
		t.Errorf("final clear color = %+v", final.Clear.Color)
	}
	if final.Clear.Depth == nil || *final.Clear.Depth != 1 {
		t.Errorf("final clear depth = %v", final.Clear.Depth)
	}

	e := newEnv(t)
	g := e.newGraph(t, passes, nil, cfg.Output)
	if got := g.Passes(); !slices.Equal(got, []string{"shadow", "cubemap_view", "final"}) {
		t.Errorf("Passes = %v", got)
	}
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestParseConfigRejectsUnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("output: x\npasses: []\nshaders: nope\n"))
	if err == nil || !strings.Contains(err.Error(), "shaders") {
		t.Fatalf("ParseConfig error = %v, want unknown field shaders", err)
	}
}

func TestConfigBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		tag  string
	}{
		{"format", "passes: [{name: a, creates: [{tag: x, format: rgb565, sizing: window}]}]", "x"},
		{"sizing", "passes: [{name: a, creates: [{tag: x, format: rgba8unorm, sizing: screen}]}]", "x"},
		{"clear color", "passes: [{name: a, clear_color: [1, 0], creates: [{tag: x, format: rgba8unorm, sizing: window}]}]", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			_, err = cfg.Build()
			var cerr *ConfigError
			if !errors.As(err, &cerr) || !errors.Is(err, ErrInvalidImage) {
				t.Fatalf("Build error = %v, want invalid image", err)
			}
			if cerr.Pass != "a" || cerr.Tag != tt.tag {
				t.Errorf("error names pass %q tag %q", cerr.Pass, cerr.Tag)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	if err := os.WriteFile(path, []byte(pointShadowConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Output != "final_color" || len(cfg.Passes) != 3 {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig(missing) = %v, want ErrNotExist", err)
	}
}

func TestFormatNamesSorted(t *testing.T) {
	names := FormatNames()
	if !slices.IsSorted(names) || !slices.Contains(names, "depth32float") {
		t.Errorf("FormatNames = %v", names)
	}
}

const pointShadowTOML = `
output = "final_color"

[[passes]]
name = "shadow"
creates = [{tag = "shadow_map", format = "depth32float", sizing = "fixed", width = 6144, height = 1024}]

[[passes]]
name = "final"
needs = ["shadow_map"]
clear_color = [0.1, 0.1, 0.1, 1.0]
creates = [
  {tag = "final_color", format = "rgba8unorm", sizing = "window"},
  {tag = "final_depth", format = "depth32float", sizing = "window"},
]
`

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.toml")
	if err := os.WriteFile(path, []byte(pointShadowTOML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	passes, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(passes) != 2 || passes[1].Needs[0] != "shadow_map" || len(passes[1].Creates) != 2 {
		t.Errorf("passes = %+v", passes)
	}
	if c := passes[1].Clear.Color; c == nil || c.A != 1 {
		t.Errorf("clear color = %+v", c)
	}

	if _, err := ParseConfigTOML([]byte("output = \"x\"\nshaders = \"nope\"\n")); err == nil {
		t.Error("ParseConfigTOML accepted an unknown field")
	}
}

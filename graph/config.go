package graph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the declarative form of a pass list. It is read from YAML or,
// for files ending in .toml, from TOML:
//
//	output: final_color
//	passes:
//	  - name: shadow
//	    creates:
//	      - {tag: shadow_map, format: depth32float, sizing: fixed, width: 6144, height: 1024}
//	  - name: final
//	    needs: [shadow_map]
//	    clear_color: [0.1, 0.1, 0.1, 1]
//	    creates:
//	      - {tag: final_color, format: rgba8unorm, sizing: window}
//	      - {tag: final_depth, format: depth32float, sizing: window}
type Config struct {
	Output string       `yaml:"output" toml:"output"`
	Passes []PassConfig `yaml:"passes" toml:"passes"`
}

// PassConfig is one pass of a Config.
type PassConfig struct {
	Name       string        `yaml:"name" toml:"name"`
	Creates    []ImageConfig `yaml:"creates" toml:"creates"`
	Needs      []string      `yaml:"needs,omitempty" toml:"needs,omitempty"`
	ClearColor []float64     `yaml:"clear_color,omitempty" toml:"clear_color,omitempty"`
	ClearDepth *float32      `yaml:"clear_depth,omitempty" toml:"clear_depth,omitempty"`
}

// ImageConfig is one created image of a PassConfig.
type ImageConfig struct {
	Tag    string `yaml:"tag" toml:"tag"`
	Format string `yaml:"format" toml:"format"`
	Sizing string `yaml:"sizing" toml:"sizing"`
	Width  uint32 `yaml:"width,omitempty" toml:"width,omitempty"`
	Height uint32 `yaml:"height,omitempty" toml:"height,omitempty"`
}

var formatNames = map[string]gputypes.TextureFormat{
	"bgra8unorm":   gputypes.TextureFormatBGRA8Unorm,
	"rgba8unorm":   gputypes.TextureFormatRGBA8Unorm,
	"rgba16float":  gputypes.TextureFormatRGBA16Float,
	"rgba32float":  gputypes.TextureFormatRGBA32Float,
	"r8unorm":      gputypes.TextureFormatR8Unorm,
	"depth16unorm": gputypes.TextureFormatDepth16Unorm,
	"depth24plus":  gputypes.TextureFormatDepth24Plus,
	"depth32float": gputypes.TextureFormatDepth32Float,
}

// FormatNames returns the texture format names a Config accepts.
func FormatNames() []string {
	names := make([]string, 0, len(formatNames))
	for n := range formatNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadConfig reads a Config from a YAML or TOML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph config %s: %w", path, err)
	}
	parse := ParseConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = ParseConfigTOML
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a Config. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse graph config: %w", err)
	}
	return &cfg, nil
}

// ParseConfigTOML decodes a Config from TOML. Unknown fields are rejected.
func ParseConfigTOML(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse graph config: %w", err)
	}
	return &cfg, nil
}

// Build converts the config into passes. Graph structure is checked by
// New; Build only rejects names it cannot map.
func (c *Config) Build() ([]Pass, error) {
	passes := make([]Pass, 0, len(c.Passes))
	for _, pc := range c.Passes {
		p := Pass{Name: pc.Name, Needs: pc.Needs}
		for _, ic := range pc.Creates {
			spec, err := ic.spec()
			if err != nil {
				return nil, &ConfigError{Kind: ErrInvalidImage, Pass: pc.Name, Tag: ic.Tag, Detail: err.Error()}
			}
			p.Creates = append(p.Creates, spec)
		}
		switch len(pc.ClearColor) {
		case 0:
		case 4:
			p.Clear.Color = &gputypes.Color{R: pc.ClearColor[0], G: pc.ClearColor[1], B: pc.ClearColor[2], A: pc.ClearColor[3]}
		default:
			return nil, &ConfigError{Kind: ErrInvalidImage, Pass: pc.Name,
				Detail: fmt.Sprintf("clear_color has %d components, want 4", len(pc.ClearColor))}
		}
		p.Clear.Depth = pc.ClearDepth
		passes = append(passes, p)
	}
	return passes, nil
}

func (ic ImageConfig) spec() (ImageSpec, error) {
	format, ok := formatNames[strings.ToLower(ic.Format)]
	if !ok {
		return ImageSpec{}, fmt.Errorf("unknown format %q", ic.Format)
	}
	var sizing Sizing
	switch strings.ToLower(ic.Sizing) {
	case "fixed":
		sizing = SizeFixed
	case "window":
		sizing = SizeWindowRelative
	default:
		return ImageSpec{}, fmt.Errorf("unknown sizing %q, want fixed or window", ic.Sizing)
	}
	return ImageSpec{Tag: ic.Tag, Format: format, Sizing: sizing, Width: ic.Width, Height: ic.Height}, nil
}

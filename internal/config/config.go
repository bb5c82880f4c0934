// Package config handles ffdlab configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/Faultbox/ffdlab/internal/editor"
	"github.com/Faultbox/ffdlab/internal/preview"
	"github.com/Faultbox/ffdlab/pkg/ffd"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// Config holds all settings.
type Config struct {
	Lattice LatticeConfig `yaml:"lattice"`
	Assets  AssetsConfig  `yaml:"assets"`
	Preview PreviewConfig `yaml:"preview"`
	Logging LoggingConfig `yaml:"logging"`
}

// LatticeConfig holds the control lattice policy.
type LatticeConfig struct {
	Grid         [3]int     `yaml:"grid"`
	MaxGrid      int        `yaml:"max_grid"`
	PaddingRatio float64    `yaml:"padding_ratio"`
	MinPadding   float64    `yaml:"min_padding"`
	DefaultMin   [3]float64 `yaml:"default_min"` // domain before any asset loads
	DefaultMax   [3]float64 `yaml:"default_max"`
	PickRadius   float64    `yaml:"pick_radius"`
}

// AssetsConfig holds asset lookup settings.
type AssetsConfig struct {
	SearchPaths  []string           `yaml:"search_paths"`
	DefaultModel string             `yaml:"default_model"`
	Watch        bool               `yaml:"watch"`
	Scales       map[string]float32 `yaml:"scales"` // per-asset root scale
}

// PreviewConfig holds snapshot rendering settings.
type PreviewConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Supersample int    `yaml:"supersample"`
	Format      string `yaml:"format"` // webp or png
	View        string `yaml:"view"`   // iso, front, side or top
	Background  string `yaml:"background"`
	Output      string `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Lattice: LatticeConfig{
			Grid:         [3]int{3, 3, 3},
			MaxGrid:      11,
			PaddingRatio: 0.05,
			MinPadding:   0.1,
			DefaultMin:   [3]float64{-20, -20, -20},
			DefaultMax:   [3]float64{20, 20, 20},
			PickRadius:   editor.DefaultPickRadius,
		},
		Assets: AssetsConfig{
			SearchPaths:  []string{"."},
			DefaultModel: "cube",
			Watch:        false,
		},
		Preview: PreviewConfig{
			Width:       512,
			Height:      512,
			Supersample: 2,
			Format:      "webp",
			View:        "iso",
			Background:  "#181a1e",
			Output:      "preview.webp",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Lattice.MaxGrid < ffd.MinAxisPoints {
		return fmt.Errorf("lattice.max_grid must be at least %d, got %d", ffd.MinAxisPoints, c.Lattice.MaxGrid)
	}
	if c.Lattice.PaddingRatio < 0 || c.Lattice.MinPadding < 0 {
		return fmt.Errorf("lattice padding must not be negative")
	}
	for a := 0; a < 3; a++ {
		if c.Lattice.DefaultMin[a] > c.Lattice.DefaultMax[a] {
			return fmt.Errorf("lattice.default_min exceeds default_max on axis %d", a)
		}
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("preview size must be positive, got %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if _, err := preview.ParseFormat(c.Preview.Format); err != nil {
		return err
	}
	if _, err := preview.ParseView(c.Preview.View); err != nil {
		return err
	}
	if _, err := ParseColor(c.Preview.Background); err != nil {
		return err
	}
	return nil
}

// Editor converts the lattice section into an editor policy.
func (c *Config) Editor() editor.Config {
	l := c.Lattice
	return editor.Config{
		Grid:          ffd.GridSize(l.Grid),
		MaxGrid:       l.MaxGrid,
		PaddingRatio:  l.PaddingRatio,
		MinPadding:    l.MinPadding,
		DefaultDomain: fmath.NewBox3(vec3.T(l.DefaultMin), vec3.T(l.DefaultMax)),
		PickRadius:    l.PickRadius,
	}
}

// PreviewOptions converts the preview section into render options. Invalid
// values fall back to the renderer defaults; Validate reports them.
func (c *Config) PreviewOptions() preview.Options {
	opts := preview.DefaultOptions()
	opts.Width = c.Preview.Width
	opts.Height = c.Preview.Height
	opts.Supersample = c.Preview.Supersample
	if v, err := preview.ParseView(c.Preview.View); err == nil {
		opts.View = v
	}
	if bg, err := ParseColor(c.Preview.Background); err == nil {
		opts.Background = bg
	}
	return opts
}

// ParseGrid parses "4", "3x4x5" or "3,4,5".
func ParseGrid(s string) (ffd.GridSize, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == 'x' || r == ','
	})
	var g ffd.GridSize
	switch len(fields) {
	case 1:
		var n int
		if _, err := fmt.Sscan(fields[0], &n); err != nil {
			return g, fmt.Errorf("invalid grid %q: %w", s, err)
		}
		g = ffd.GridSize{n, n, n}
	case 3:
		for i, f := range fields {
			if _, err := fmt.Sscan(strings.TrimSpace(f), &g[i]); err != nil {
				return g, fmt.Errorf("invalid grid %q: %w", s, err)
			}
		}
	default:
		return g, fmt.Errorf("invalid grid %q: want N or NxNxN", s)
	}
	return g, g.Validate()
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%2x%2x%2x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%2x%2x%2x%2x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("want #rrggbb")
	}
	if err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

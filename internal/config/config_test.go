package config

import (
	"flag"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Faultbox/ffdlab/internal/preview"
	"github.com/Faultbox/ffdlab/pkg/ffd"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Lattice.Grid != [3]int{3, 3, 3} {
		t.Errorf("expected grid 3x3x3, got %v", cfg.Lattice.Grid)
	}
	if cfg.Lattice.MaxGrid != 11 {
		t.Errorf("expected max grid 11, got %d", cfg.Lattice.MaxGrid)
	}
	if cfg.Lattice.PaddingRatio != 0.05 {
		t.Errorf("expected padding ratio 0.05, got %f", cfg.Lattice.PaddingRatio)
	}
	if cfg.Lattice.MinPadding != 0.1 {
		t.Errorf("expected min padding 0.1, got %f", cfg.Lattice.MinPadding)
	}

	if cfg.Assets.DefaultModel != "cube" {
		t.Errorf("expected default model 'cube', got %s", cfg.Assets.DefaultModel)
	}
	if cfg.Assets.Watch {
		t.Error("expected watch to be false by default")
	}

	if cfg.Preview.Format != "webp" {
		t.Errorf("expected format webp, got %s", cfg.Preview.Format)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
lattice:
  grid: [4, 5, 6]
  max_grid: 8
  padding_ratio: 0.1

assets:
  search_paths: ["models", "shared"]
  default_model: "car.obj"
  watch: true
  scales:
    car.obj: 0.3

preview:
  width: 256
  height: 128
  format: "png"
  view: "top"

logging:
  level: "debug"
  log_file: "ffdlab.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Lattice.Grid != [3]int{4, 5, 6} {
		t.Errorf("expected grid 4x5x6, got %v", cfg.Lattice.Grid)
	}
	if cfg.Lattice.MaxGrid != 8 {
		t.Errorf("expected max grid 8, got %d", cfg.Lattice.MaxGrid)
	}
	if cfg.Lattice.MinPadding != 0.1 {
		t.Errorf("expected min padding to keep its default, got %f", cfg.Lattice.MinPadding)
	}
	if len(cfg.Assets.SearchPaths) != 2 || cfg.Assets.SearchPaths[1] != "shared" {
		t.Errorf("unexpected search paths %v", cfg.Assets.SearchPaths)
	}
	if !cfg.Assets.Watch {
		t.Error("expected watch to be true")
	}
	if cfg.Assets.Scales["car.obj"] != 0.3 {
		t.Errorf("expected car.obj scale 0.3, got %v", cfg.Assets.Scales["car.obj"])
	}
	if cfg.Preview.Width != 256 || cfg.Preview.Height != 128 {
		t.Errorf("expected preview 256x128, got %dx%d", cfg.Preview.Width, cfg.Preview.Height)
	}
	if cfg.Logging.LogFile != "ffdlab.log" {
		t.Errorf("expected log file 'ffdlab.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	cases := map[string]string{
		"syntax":      "lattice:\n  grid: not a list\n  invalid syntax here\n",
		"unknown key": "lattice:\n  gird: [3, 3, 3]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, name+".yaml")
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Lattice.MaxGrid != 11 {
		t.Errorf("expected defaults to survive, got max grid %d", cfg.Lattice.MaxGrid)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "ffdlab.yaml")
	if err := os.WriteFile(configPath, []byte("lattice:\n  max_grid: 9\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find ffdlab.yaml in current directory")
	}
}

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	return f
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "model flag",
			args: []string{"-model", "torus"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Assets.DefaultModel != "torus" {
					t.Errorf("expected model torus, got %s", cfg.Assets.DefaultModel)
				}
			},
		},
		{
			name: "grid flag",
			args: []string{"-grid", "2x4x6"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Lattice.Grid != [3]int{2, 4, 6} {
					t.Errorf("expected grid 2x4x6, got %v", cfg.Lattice.Grid)
				}
			},
		},
		{
			name: "out flag",
			args: []string{"-out", "shots/a.png"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Preview.Output != "shots/a.png" {
					t.Errorf("expected output shots/a.png, got %s", cfg.Preview.Output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := applyFlags(cfg, parseFlags(t, tt.args...)); err != nil {
				t.Fatalf("applying flags: %v", err)
			}
			tt.verify(t, cfg)
		})
	}

	if err := applyFlags(Default(), parseFlags(t, "-grid", "3x4")); err == nil {
		t.Error("expected bad grid flag to fail")
	}
	if err := applyFlags(Default(), nil); err != nil {
		t.Errorf("nil flags should be a no-op: %v", err)
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
lattice:
  grid: [5, 5, 5]
  max_grid: 7
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(parseFlags(t, "-config", configPath, "-grid", "4"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Grid from the flag, max grid from the file
	if cfg.Lattice.Grid != [3]int{4, 4, 4} {
		t.Errorf("expected grid 4x4x4 from flag, got %v", cfg.Lattice.Grid)
	}
	if cfg.Lattice.MaxGrid != 7 {
		t.Errorf("expected max grid 7 from file, got %d", cfg.Lattice.MaxGrid)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("preview:\n  format: gif\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := Load(parseFlags(t, "-config", configPath)); err == nil {
		t.Error("expected unknown preview format to be rejected")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Lattice.Grid = [3]int{2, 3, 4}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Lattice.Grid != cfg.Lattice.Grid {
		t.Errorf("expected grid %v after reload, got %v", cfg.Lattice.Grid, loaded.Lattice.Grid)
	}
}

func TestSaveToConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("config dir comes from APPDATA")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cfg := Default()
	cfg.Preview.View = "top"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(ConfigDir(), "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != string(want) {
		t.Errorf("saved file differs from Marshal output")
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Preview.View != "top" {
		t.Errorf("expected view top after reload, got %s", loaded.Preview.View)
	}
}

func TestParseGrid(t *testing.T) {
	tests := []struct {
		in      string
		want    ffd.GridSize
		wantErr bool
	}{
		{"4", ffd.GridSize{4, 4, 4}, false},
		{"3x4x5", ffd.GridSize{3, 4, 5}, false},
		{"3,4,5", ffd.GridSize{3, 4, 5}, false},
		{"3X4X5", ffd.GridSize{3, 4, 5}, false},
		{"3x4", ffd.GridSize{}, true},
		{"axbxc", ffd.GridSize{}, true},
		{"0", ffd.GridSize{}, true},
	}
	for _, tt := range tests {
		got, err := ParseGrid(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseGrid(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGrid(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGrid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if c != (color.NRGBA{R: 255, G: 128, B: 0, A: 255}) {
		t.Errorf("unexpected color %v", c)
	}
	if c, _ := ParseColor("#01020304"); c.A != 4 {
		t.Errorf("expected alpha 4, got %d", c.A)
	}
	if _, err := ParseColor("red"); err == nil {
		t.Error("expected error for named color")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Preview.View = "front"
	cfg.Preview.Background = "#000000"

	ec := cfg.Editor()
	if ec.Grid != (ffd.GridSize{3, 3, 3}) || ec.MaxGrid != 11 {
		t.Errorf("unexpected editor config %+v", ec)
	}
	if ec.DefaultDomain.Max[0] != 20 {
		t.Errorf("expected default domain max 20, got %v", ec.DefaultDomain.Max)
	}

	opts := cfg.PreviewOptions()
	if opts.View != preview.ViewFront {
		t.Errorf("expected front view, got %v", opts.View)
	}
	if opts.Background != (color.NRGBA{A: 255}) {
		t.Errorf("unexpected background %v", opts.Background)
	}
	if opts.Width != 512 || opts.Supersample != 2 {
		t.Errorf("unexpected size %dx%d@%d", opts.Width, opts.Height, opts.Supersample)
	}
}

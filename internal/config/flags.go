package config

import "flag"

// Flags holds the command-line overrides shared by every subcommand.
type Flags struct {
	Config string
	Debug  bool
	Model  string
	Grid   string
	Out    string
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Model, "model", "", "Asset to load (primitive name, .obj or .yaml)")
	fs.StringVar(&f.Grid, "grid", "", "Lattice size, N or NxNxN")
	fs.StringVar(&f.Out, "out", "", "Output path")
	return f
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.Config
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) error {
	if f == nil {
		return nil
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Model != "" {
		cfg.Assets.DefaultModel = f.Model
	}
	if f.Grid != "" {
		g, err := ParseGrid(f.Grid)
		if err != nil {
			return err
		}
		cfg.Lattice.Grid = [3]int(g)
	}
	if f.Out != "" {
		cfg.Preview.Output = f.Out
	}
	return nil
}

// ffdtool is a CLI utility for free-form deformation of meshes: it loads an
// asset, fits a control lattice around it, moves control points and writes
// the deformed result as OBJ or as a preview image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/Faultbox/ffdlab/internal/assets"
	"github.com/Faultbox/ffdlab/internal/config"
	"github.com/Faultbox/ffdlab/internal/editor"
	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/pipeline"
	"github.com/Faultbox/ffdlab/internal/preview"
	"github.com/Faultbox/ffdlab/pkg/ffd"
)

// loadTimeout bounds a single asset load.
const loadTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "lattice":
		cmdLattice(args)
	case "deform":
		cmdDeform(args)
	case "animate":
		cmdAnimate(args)
	case "watch":
		cmdWatch(args)
	case "primitives", "prims":
		cmdPrimitives()
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ffdtool - free-form deformation utility

Usage:
  ffdtool <command> [options] [model]

Commands:
  info [model]        Show parts, vertex counts, bounds and lattice domain
  lattice [model]     Print the control points of the fitted lattice
  deform [model]      Move control points, write OBJ and/or a preview image
  animate [model]     Tween one control point and write numbered frames
  watch [model]       Re-render the preview whenever the asset file changes
  primitives          List built-in primitive shapes
  config              Print the effective config; -save or -to <file> writes it

Common options:
  -config <file>      Config file (default ./ffdlab.yaml or user config dir)
  -debug              Enable debug logging
  -model <name>       Asset name, same as the positional model argument
  -grid <N|NxNxN>     Lattice size
  -out <file>         Output image path (.webp or .png)

Examples:
  ffdtool info torus
  ffdtool lattice -grid 2x2x2 cube
  ffdtool deform -move 26:14,14,14 -obj out.obj -out out.webp cube
  ffdtool animate -point 13 -to 0,25,0 -fps 12 -dir frames sphere
  ffdtool watch models/car.obj
  ffdtool config -grid 4x4x4 -save`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// session is a loaded pipeline with its editor, shared by every command.
type session struct {
	cfg    *config.Config
	model  string
	assets *assets.Manager
	pipe   *pipeline.Pipeline
	ed     *editor.Editor
}

// newFlagSet creates a subcommand flag set carrying the common options.
func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, config.RegisterFlags(fs)
}

// openSession parses args, loads config, initializes logging and loads the
// requested model into a fresh pipeline.
func openSession(fs *flag.FlagSet, flags *config.Flags, args []string) (*session, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 && flags.Model == "" {
		flags.Model = fs.Arg(0)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	m := assets.NewManager(cfg.Assets.SearchPaths...)
	p := pipeline.New(m, pipeline.Options{
		Grid:   ffd.GridSize(cfg.Lattice.Grid),
		Scales: cfg.Assets.Scales,
	})
	ed, err := editor.New(p, cfg.Editor())
	if err != nil {
		p.Close()
		return nil, err
	}

	s := &session{cfg: cfg, model: cfg.Assets.DefaultModel, assets: m, pipe: p, ed: ed}
	if err := s.load(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	s.ed.Load(ctx, s.model)
	return s.pipe.Await(ctx)
}

func (s *session) close() {
	s.pipe.Close()
	s.assets.Close()
	logger.Sync()
}

// overlay returns the lattice as currently deformed.
func (s *session) overlay() *preview.Overlay {
	points := s.pipe.ControlPoints()
	selected, ok := s.ed.Selected()
	if !ok {
		selected = -1
	}
	return &preview.Overlay{
		Lines:    preview.DeformedLines(s.pipe.Grid(), points),
		Points:   points,
		Selected: selected,
	}
}

// render writes a preview to path, adding the configured extension when the
// path has none.
func (s *session) render(path string) (string, error) {
	if filepath.Ext(path) == "" {
		path += "." + s.cfg.Preview.Format
	}
	w, err := s.pipe.WorkingMesh()
	if err != nil {
		return "", err
	}
	img, err := preview.Render(w, s.overlay(), s.cfg.PreviewOptions())
	if err != nil {
		return "", err
	}
	return path, preview.WriteFile(path, img)
}

// modelStem turns an asset name into something usable in file names.
func modelStem(model string) string {
	return strings.TrimSuffix(filepath.Base(model), filepath.Ext(model))
}

// parseVec parses "x,y,z".
func parseVec(s string) (vec3.T, error) {
	var v vec3.T
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("invalid vector %q: want x,y,z", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

// move is one control point edit given on the command line as index:x,y,z.
type move struct {
	index int
	pos   vec3.T
}

// moveList collects repeated -move or -nudge flags.
type moveList []move

func (l *moveList) String() string {
	parts := make([]string, len(*l))
	for i, m := range *l {
		parts[i] = fmt.Sprintf("%d:%g,%g,%g", m.index, m.pos[0], m.pos[1], m.pos[2])
	}
	return strings.Join(parts, " ")
}

func (l *moveList) Set(s string) error {
	idx, vec, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("invalid move %q: want index:x,y,z", s)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return fmt.Errorf("invalid move %q: %w", s, err)
	}
	pos, err := parseVec(vec)
	if err != nil {
		return err
	}
	*l = append(*l, move{index: index, pos: pos})
	return nil
}

package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/internal/assets"
	"github.com/Faultbox/ffdlab/internal/config"
	"github.com/Faultbox/ffdlab/internal/editor"
	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/preview"
	"github.com/Faultbox/ffdlab/internal/primitive"
)

func cmdInfo(args []string) {
	fs, flags := newFlagSet("info")
	s, err := openSession(fs, flags, args)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	baked := s.pipe.Baked()
	working := s.pipe.Deformed()

	fmt.Print(assetSummary(s.assets, s.model))
	fmt.Printf("Parts:    %d\n", baked.Len())
	fmt.Printf("Vertices: %d\n", baked.VertexCount())
	fmt.Printf("Bounds:   %s\n", baked.Bounds())
	fmt.Printf("Domain:   %s\n", s.pipe.Domain())
	fmt.Printf("Grid:     %s (%d control points)\n", s.pipe.Grid(), len(s.pipe.ControlPoints()))
	fmt.Println()
	fmt.Println("Parts:")
	for i := 0; i < baked.Len(); i++ {
		part := baked.Part(i)
		fmt.Printf("  %3d %-32s %8d verts %8d tris\n",
			i, part.Name(), part.VertexCount(), working.Part(i).Geometry.TriangleCount())
	}
}

// assetSummary describes where model resolves from. The source is left out
// when the name no longer resolves, e.g. a file removed after loading.
func assetSummary(m *assets.Manager, model string) string {
	res, err := m.Resolve(model)
	if err != nil {
		return fmt.Sprintf("Asset:    %s\n", model)
	}
	out := fmt.Sprintf("Asset:    %s (%s)\n", model, res.Source)
	if res.Path != "" {
		out += fmt.Sprintf("Path:     %s\n", res.Path)
	}
	return out
}

func cmdLattice(args []string) {
	fs, flags := newFlagSet("lattice")
	s, err := openSession(fs, flags, args)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	grid := s.pipe.Grid()
	cage := s.pipe.Cage()
	fmt.Printf("Grid:     %s\n", grid)
	fmt.Printf("Domain:   %s\n", s.pipe.Domain())
	fmt.Printf("Segments: %d\n", len(cage.Lines))
	fmt.Println()

	points := s.pipe.ControlPoints()
	for i := 0; i < grid[0]; i++ {
		for j := 0; j < grid[1]; j++ {
			for k := 0; k < grid[2]; k++ {
				idx := grid.Index(i, j, k)
				p := points[idx]
				fmt.Printf("  %4d (%d,%d,%d)  %10.4f %10.4f %10.4f\n", idx, i, j, k, p[0], p[1], p[2])
			}
		}
	}
}

func cmdDeform(args []string) {
	fs, flags := newFlagSet("deform")
	var moves, nudges moveList
	fs.Var(&moves, "move", "Move control point to a position, index:x,y,z (repeatable)")
	fs.Var(&nudges, "nudge", "Offset control point, index:dx,dy,dz (repeatable)")
	objPath := fs.String("obj", "", "Write the deformed mesh as OBJ")
	noImage := fs.Bool("no-image", false, "Skip the preview image")

	s, err := openSession(fs, flags, args)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	for _, m := range moves {
		if err := s.ed.Select(m.index); err != nil {
			fatal(err)
		}
		if err := s.ed.DragSelected(m.pos); err != nil {
			fatal(err)
		}
	}
	for _, m := range nudges {
		if err := s.ed.Select(m.index); err != nil {
			fatal(err)
		}
		if err := s.ed.NudgeSelected(m.pos); err != nil {
			fatal(err)
		}
	}

	stats := s.pipe.Stats()
	fmt.Printf("Deformed %s: %d vertices, %d frames, last %s\n",
		s.model, stats.Vertices, stats.Frames, stats.Last)
	fmt.Printf("Bounds:   %s\n", s.pipe.Deformed().Bounds())

	if *objPath != "" {
		w, err := s.pipe.WorkingMesh()
		if err != nil {
			fatal(err)
		}
		f, err := os.Create(*objPath)
		if err != nil {
			fatal(err)
		}
		if err := assets.WriteOBJ(f, w); err != nil {
			f.Close()
			fatal(err)
		}
		if err := f.Close(); err != nil {
			fatal(err)
		}
		fmt.Printf("Wrote %s\n", *objPath)
	}

	if !*noImage {
		path, err := s.render(s.cfg.Preview.Output)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func cmdAnimate(args []string) {
	fs, flags := newFlagSet("animate")
	point := fs.Int("point", 0, "Control point index")
	to := fs.String("to", "", "Target position x,y,z")
	by := fs.String("by", "", "Target offset dx,dy,dz (instead of -to)")
	duration := fs.Float64("duration", 1, "Duration in seconds")
	fps := fs.Int("fps", 24, "Frames per second")
	easing := fs.String("ease", "inOutCubic", fmt.Sprintf("Easing %v", editor.EasingNames()))
	dir := fs.String("dir", "frames", "Frame output directory")

	s, err := openSession(fs, flags, args)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	points := s.pipe.ControlPoints()
	if *point < 0 || *point >= len(points) {
		fatal(fmt.Errorf("control point %d out of range [0,%d)", *point, len(points)))
	}
	var target = points[*point]
	switch {
	case *to != "":
		if target, err = parseVec(*to); err != nil {
			fatal(err)
		}
	case *by != "":
		delta, err := parseVec(*by)
		if err != nil {
			fatal(err)
		}
		target.Add(&delta)
	default:
		fatal(fmt.Errorf("animate needs -to or -by"))
	}
	if *fps <= 0 {
		fatal(fmt.Errorf("fps must be positive"))
	}
	fn, err := editor.Easing(*easing)
	if err != nil {
		fatal(err)
	}
	format, err := preview.ParseFormat(s.cfg.Preview.Format)
	if err != nil {
		fatal(err)
	}

	if err := s.ed.Select(*point); err != nil {
		fatal(err)
	}
	if _, err := s.ed.Animate(*point, target, float32(*duration), fn); err != nil {
		fatal(err)
	}

	fw := preview.NewFrameWriter(*dir, modelStem(s.model), format)
	opts := s.cfg.PreviewOptions()
	dt := 1 / float32(*fps)
	maxFrames := int(math.Ceil(*duration*float64(*fps))) + 1

	for fw.Frames() < maxFrames {
		img, err := preview.Render(s.pipe.Deformed(), s.overlay(), opts)
		if err != nil {
			fatal(err)
		}
		if _, err := fw.Write(img); err != nil {
			fatal(err)
		}
		if !s.ed.Animating() {
			break
		}
		if err := s.ed.Update(dt); err != nil {
			fatal(err)
		}
	}
	fmt.Printf("Wrote %d frames to %s\n", fw.Frames(), *dir)
}

func cmdWatch(args []string) {
	fs, flags := newFlagSet("watch")
	s, err := openSession(fs, flags, args)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	w, err := assets.NewWatcher(s.assets)
	if err != nil {
		fatal(err)
	}
	defer w.Close()
	if err := w.Watch(s.model); err != nil {
		fatal(err)
	}

	path, err := s.render(s.cfg.Preview.Output)
	if err != nil {
		fatal(err)
	}
	logger.Info("watching asset", zap.String("asset", s.model), zap.String("preview", path))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case name := <-w.Changes():
			if name != s.model {
				logger.Debug("ignoring change", zap.String("asset", name))
				continue
			}
			if err := s.load(); err != nil {
				logger.Error("reload failed", zap.String("asset", name), zap.Error(err))
				continue
			}
			if _, err := s.render(path); err != nil {
				logger.Warn("preview failed", zap.String("asset", name), zap.Error(err))
				continue
			}
			logger.Info("asset reloaded",
				zap.String("asset", name),
				zap.Uint64("generation", s.pipe.Generation()),
				zap.Int("vertices", s.pipe.Baked().VertexCount()))
		}
	}
}

func cmdPrimitives() {
	for _, name := range primitive.Names() {
		geo, err := primitive.New(name)
		if err != nil {
			fmt.Printf("  %-14s error: %v\n", name, err)
			continue
		}
		fmt.Printf("  %-14s %8d verts %8d tris\n", name, geo.VertexCount(), geo.TriangleCount())
	}
}

func cmdConfig(args []string) {
	fs, flags := newFlagSet("config")
	save := fs.Bool("save", false, "Write the config to the user config directory")
	to := fs.String("to", "", "Write the config to this file")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatal(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal(err)
	}
	defer logger.Sync()

	switch {
	case *to != "":
		if err := cfg.SaveTo(*to); err != nil {
			fatal(err)
		}
		logger.Sugar.Infof("saved config to %s", *to)
	case *save:
		if err := cfg.Save(); err != nil {
			fatal(err)
		}
		logger.Sugar.Infof("saved config to %s", filepath.Join(config.ConfigDir(), "config.yaml"))
	default:
		data, err := cfg.Marshal()
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(data)
	}
}

package preview

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

// Format is an output image encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatPNG  Format = "png"
)

// ParseFormat accepts "webp" or "png", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatWebP, FormatPNG:
		return f, nil
	}
	return "", fmt.Errorf("preview: unknown format %q", s)
}

// FormatForPath picks the format from a file extension, falling back to def.
func FormatForPath(path string, def Format) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return def
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatWebP:
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("encoding WebP: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encoding PNG: %w", err)
		}
	default:
		return fmt.Errorf("preview: unknown format %q", format)
	}
	return nil
}

// WriteFile encodes img to path, creating parent directories. The format
// follows the extension, defaulting to WebP.
func WriteFile(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := Encode(f, img, FormatForPath(path, FormatWebP)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FrameWriter saves numbered frames of an animation into one directory.
type FrameWriter struct {
	outputDir string
	prefix    string
	format    Format
	frame     int
}

// NewFrameWriter creates a frame writer. Frames are named
// <prefix>_0000.<format>, counting up.
func NewFrameWriter(outputDir, prefix string, format Format) *FrameWriter {
	return &FrameWriter{outputDir: outputDir, prefix: prefix, format: format}
}

// Next returns the file name the next frame will be written to.
func (fw *FrameWriter) Next() string {
	return filepath.Join(fw.outputDir, fmt.Sprintf("%s_%04d.%s", fw.prefix, fw.frame, fw.format))
}

// Write saves img as the next frame and returns its path.
func (fw *FrameWriter) Write(img image.Image) (string, error) {
	name := fw.Next()
	if err := WriteFile(name, img); err != nil {
		return "", err
	}
	fw.frame++
	return name, nil
}

// Frames returns the number of frames written.
func (fw *FrameWriter) Frames() int { return fw.frame }

// Package assets resolves asset names to scenes: built-in primitives, OBJ
// files and YAML scene manifests found on a list of search paths.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/primitive"
	"github.com/Faultbox/ffdlab/internal/scene"
)

// ErrNotFound is returned when no primitive or file matches a name.
var ErrNotFound = errors.New("asset not found")

// Source is where an asset comes from.
type Source int

const (
	SourcePrimitive Source = iota
	SourceOBJ
	SourceManifest
)

func (s Source) String() string {
	switch s {
	case SourcePrimitive:
		return "primitive"
	case SourceOBJ:
		return "obj"
	case SourceManifest:
		return "manifest"
	default:
		return "unknown"
	}
}

// Resolved is a located asset.
type Resolved struct {
	Name   string
	Source Source
	Path   string // empty for primitives
}

var fileSources = []struct {
	ext    string
	source Source
}{
	{".obj", SourceOBJ},
	{".yaml", SourceManifest},
	{".yml", SourceManifest},
}

// Manager loads assets by name and caches the parsed scenes.
type Manager struct {
	searchPaths []string
	cache       *Cache
	mu          sync.RWMutex
	log         *zap.Logger
}

// NewManager creates a manager searching the given directories.
func NewManager(searchPaths ...string) *Manager {
	return &Manager{
		searchPaths: append([]string(nil), searchPaths...),
		cache:       NewCache(),
		log:         logger.Named("assets"),
	}
}

// AddSearchPath adds a directory to search.
// Paths are searched in reverse order (last added = highest priority).
func (m *Manager) AddSearchPath(dir string) {
	m.mu.Lock()
	m.searchPaths = append(m.searchPaths, dir)
	m.mu.Unlock()
}

// Resolve locates name. A name with a known extension is a file path, tried
// as given and then under each search path. Otherwise files named
// <name>.obj / .yaml / .yml win over a primitive of the same name.
func (m *Manager) Resolve(name string) (Resolved, error) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, fs := range fileSources {
		if ext == fs.ext {
			if path, ok := m.find(name); ok {
				return Resolved{Name: name, Source: fs.source, Path: path}, nil
			}
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}

	for _, fs := range fileSources {
		if path, ok := m.find(name + fs.ext); ok {
			return Resolved{Name: name, Source: fs.source, Path: path}, nil
		}
	}
	if primitive.Has(name) {
		return Resolved{Name: name, Source: SourcePrimitive}, nil
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (m *Manager) find(file string) (string, bool) {
	if filepath.IsAbs(file) {
		return file, fileExists(file)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.searchPaths) - 1; i >= 0; i-- {
		path := filepath.Join(m.searchPaths[i], file)
		if fileExists(path) {
			return path, true
		}
	}
	if fileExists(file) {
		return file, true
	}
	return "", false
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load resolves and parses name. Every call returns a fresh copy, so callers
// may modify the scene without affecting the cache.
func (m *Manager) Load(ctx context.Context, name string) (*scene.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc, ok := m.cache.Get(name); ok {
		return sc.Clone(), nil
	}

	res, err := m.Resolve(name)
	if err != nil {
		return nil, err
	}

	var sc *scene.Scene
	switch res.Source {
	case SourcePrimitive:
		sc, err = primitive.Scene(name)
	case SourceOBJ:
		sc, err = loadOBJ(res.Path, name)
	case SourceManifest:
		sc, err = m.loadManifest(res.Path, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.log.Debug("asset loaded",
		zap.String("name", name),
		zap.Stringer("source", res.Source),
		zap.String("path", res.Path),
		zap.Int("nodes", sc.Len()))

	m.cache.Set(name, sc, res.Path)
	return sc.Clone(), nil
}

func loadOBJ(path, name string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeOBJ(f, name)
}

func (m *Manager) loadManifest(path, name string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mf, err := ParseManifest(f)
	if err != nil {
		return nil, err
	}
	return mf.build(name, filepath.Dir(path), m.geometry)
}

// geometry resolves a manifest geometry reference to a single geometry.
func (m *Manager) geometry(ref, dir string) (*scene.Geometry, error) {
	if strings.EqualFold(filepath.Ext(ref), ".obj") {
		sc, err := loadOBJ(resolveRelative(ref, dir), ref)
		if err != nil {
			return nil, err
		}
		return flatten(sc), nil
	}
	return primitive.New(ref)
}

// Invalidate drops every cached asset read from path. It returns the names
// that were dropped.
func (m *Manager) Invalidate(path string) []string {
	return m.cache.DropPath(path)
}

// Close clears the cache.
func (m *Manager) Close() {
	m.cache.Clear()
}

// CacheStats returns cache hit and miss counts.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

type cacheEntry struct {
	scene *scene.Scene
	path  string
}

// Cache is a simple in-memory cache for parsed scenes.
type Cache struct {
	data map[string]cacheEntry
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*scene.Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e.scene, ok
}

// Set stores an item in cache. path is the file it was read from, if any.
func (c *Cache) Set(key string, sc *scene.Scene, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{scene: sc, path: path}
}

// DropPath removes the entries read from path and returns their keys.
func (c *Cache) DropPath(path string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := absPath(path)
	var keys []string
	for key, e := range c.data {
		if e.path != "" && absPath(e.path) == target {
			keys = append(keys, key)
			delete(c.data, key)
		}
	}
	return keys
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/worker"
)

const manifestFile = "manifest.json"

type blockKey struct {
	hour int
	id   string
}

// Source loads block manifests from a content directory laid out as
// <dir>/hour_<h>/<block>/manifest.json and caches the resolved blocks.
type Source struct {
	dir     string
	outline *Outline

	mu    sync.RWMutex
	cache map[blockKey]*Block
}

func NewSource(dir string, outline *Outline) *Source {
	if outline == nil {
		outline = DefaultOutline()
	}
	return &Source{
		dir:     dir,
		outline: outline,
		cache:   make(map[blockKey]*Block),
	}
}

func (s *Source) Dir() string        { return s.dir }
func (s *Source) Outline() *Outline { return s.outline }

func (s *Source) manifestPath(hour int, blockID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("hour_%d", hour), blockID, manifestFile)
}

// Load returns the block, reading its manifest on a cache miss. Blocks outside the
// outline and missing manifests are reported as not found.
func (s *Source) Load(ctx context.Context, hour int, blockID string) (*Block, error) {
	if !slices.Contains(s.outline.Blocks(hour), blockID) {
		return nil, fmt.Errorf("block %s in hour %d: %w", blockID, hour, apperrors.ErrNotFound)
	}
	key := blockKey{hour, blockID}

	s.mu.RLock()
	b, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}

	log := logger.FromContext(ctx).WithPrefix("content")
	path := s.manifestPath(hour, blockID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("block not found: %s: %w", BasePath(hour, blockID)+manifestFile, apperrors.ErrNotFound)
		}
		log.Error("failed to read manifest %s: %v", path, err)
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn("manifest %s is not valid JSON: %v", path, err)
		return nil, fmt.Errorf("parse manifest %s: %w", BasePath(hour, blockID)+manifestFile, err)
	}
	b = m.Resolve(hour, blockID)

	s.mu.Lock()
	s.cache[key] = b
	s.mu.Unlock()
	log.Debug("loaded manifest hour=%d block=%s", hour, blockID)
	return b, nil
}

// Cached reports whether the block is held in the cache.
func (s *Source) Cached(hour int, blockID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[blockKey{hour, blockID}]
	return ok
}

func (s *Source) Invalidate(hour int, blockID string) {
	s.mu.Lock()
	delete(s.cache, blockKey{hour, blockID})
	s.mu.Unlock()
}

func (s *Source) InvalidateAll() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

// locate maps a path under the content directory to the block that owns it. above
// reports a path at or above the hour level.
func (s *Source) locate(path string) (hour int, blockID string, above, ok bool) {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0, "", false, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == "." {
		return 0, "", true, true
	}
	hour, err = strconv.Atoi(strings.TrimPrefix(parts[0], "hour_"))
	if err != nil || !strings.HasPrefix(parts[0], "hour_") {
		return 0, "", false, false
	}
	return hour, parts[1], false, true
}

// BlockOf returns the outline block that owns path.
func (s *Source) BlockOf(path string) (hour int, blockID string, ok bool) {
	hour, blockID, above, ok := s.locate(path)
	if !ok || above || !slices.Contains(s.outline.Blocks(hour), blockID) {
		return 0, "", false
	}
	return hour, blockID, true
}

// AboveBlocks reports whether path is the content root or sits directly under it, where a
// change drops the whole cache.
func (s *Source) AboveBlocks(path string) bool {
	_, _, above, ok := s.locate(path)
	return ok && above
}

// InvalidatePath drops whatever cached block owns path. Paths above block level drop
// the whole cache. It reports whether anything was addressed.
func (s *Source) InvalidatePath(path string) bool {
	hour, blockID, above, ok := s.locate(path)
	switch {
	case !ok:
		return false
	case above:
		s.InvalidateAll()
	default:
		s.Invalidate(hour, blockID)
	}
	return true
}

// WarmJob loads one block into the cache.
type WarmJob struct {
	Source *Source
	Hour   int
	Block  string
}

func (j *WarmJob) Name() string { return fmt.Sprintf("warm_manifest:%d/%s", j.Hour, j.Block) }

func (j *WarmJob) Run(ctx context.Context) error {
	_, err := j.Source.Load(ctx, j.Hour, j.Block)
	return err
}

// Warm queues a WarmJob for every block in the outline.
func (s *Source) Warm(ctx context.Context, pool *worker.Pool) error {
	for _, p := range s.outline.All() {
		if err := pool.Submit(ctx, &WarmJob{Source: s, Hour: p.Hour, Block: p.BlockID}); err != nil {
			return fmt.Errorf("queue warm job: %w", err)
		}
	}
	return nil
}

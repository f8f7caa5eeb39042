package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

var ErrNotLoaded = errors.New("dataset not loaded")

// Loader produces a complete dataset or an error, never a partial one.
type Loader interface {
	Load(ctx context.Context) (*loader.Dataset, error)
}

// snapshot is one loaded generation. The retention matrix is built on first
// use and shared by every request on the same generation.
type snapshot struct {
	ds  *loader.Dataset
	gen uint64

	once sync.Once
	mx   *cohort.Matrix
	err  error
}

func (s *snapshot) Dataset() *loader.Dataset { return s.ds }

func (s *snapshot) Matrix() (*cohort.Matrix, error) {
	s.once.Do(func() {
		start := time.Now()
		s.mx, s.err = cohort.Build(s.ds.CohortRecords())
		if s.err != nil {
			logger.LogError("Retention matrix rejected", s.err, slog.Uint64("generation", s.gen))
			return
		}
		logger.LogData("Retention matrix built",
			slog.Uint64("generation", s.gen),
			slog.Int("cohorts", len(s.mx.Cohorts)),
			slog.Int("max_offset", s.mx.MaxOffset),
			slog.Int("skipped", s.mx.Skipped),
			slog.Duration("took", time.Since(start)))
	})
	return s.mx, s.err
}

// Store owns the loaded dataset and memoizes rendered pages per generation.
// Reload swaps in a new generation atomically; readers holding the old one
// keep a consistent view.
type Store struct {
	loader   Loader
	renderer *views.Renderer

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex
	cache    *lru.Cache
	group    singleflight.Group
}

func New(l Loader, r *views.Renderer, cacheSize int) (*Store, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}
	return &Store{loader: l, renderer: r, cache: cache}, nil
}

// Load performs the initial load. It is Reload under another name so the
// startup path reads clearly.
func (s *Store) Load(ctx context.Context) error {
	return s.Reload(ctx)
}

// Reload replaces the dataset. On failure the previous generation keeps
// serving and the error is returned.
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ds, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}

	var gen uint64 = 1
	if prev := s.current.Load(); prev != nil {
		gen = prev.gen + 1
	}
	s.current.Store(&snapshot{ds: ds, gen: gen})
	s.cache.Purge()

	logger.LogData("Dataset generation active", slog.Uint64("generation", gen))
	return nil
}

func (s *Store) snapshot() (*snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Dataset returns the current dataset and its generation.
func (s *Store) Dataset() (*loader.Dataset, uint64, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, 0, err
	}
	return snap.ds, snap.gen, nil
}

func (s *Store) Matrix() (*cohort.Matrix, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Matrix()
}

func (s *Store) Generation() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.gen
	}
	return 0
}

func (s *Store) Renderer() *views.Renderer {
	return s.renderer
}

// Page renders v or returns the memoized page for the same generation and
// normalized params. Concurrent misses on one key render once.
func (s *Store) Page(ctx context.Context, v views.View, p views.Params) (*views.Page, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	p = s.renderer.Normalize(v, p)
	key := fmt.Sprintf("%d:%s", snap.gen, p.Key(v))

	if cached, ok := s.cache.Get(key); ok {
		if page, ok := cached.(*views.Page); ok {
			return page, nil
		}
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		page, err := s.renderer.Render(v, snap, p)
		if err != nil {
			return nil, err
		}
		// a reload may have landed while rendering; keep stale pages out
		if s.Generation() == snap.gen {
			s.cache.Add(key, page)
		}
		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*views.Page), nil
	}
}

// CachedPages reports the number of memoized pages.
func (s *Store) CachedPages() int {
	return s.cache.Len()
}

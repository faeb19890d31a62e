package geo

import (
	"context"
	"fmt"
	"sync"

	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

// Bootstrap is the network fallback used when the cache misses
type Bootstrap interface {
	Bootstrap(ctx context.Context) (*Directory, error)
}

// Service hands out the directory, loading it from the cache or the network on first use
type Service struct {
	cache     *Cache
	bootstrap Bootstrap

	mu        sync.Mutex
	directory *Directory
}

// NewService creates a service backed by cache and bootstrap
func NewService(cache *Cache, bootstrap Bootstrap) *Service {
	return &Service{cache: cache, bootstrap: bootstrap}
}

// ResolveOrBootstrap returns the in-memory directory, else the cached one,
// else a freshly bootstrapped one which is then persisted best-effort.
// On bootstrap failure the directory stays absent.
func (s *Service) ResolveOrBootstrap(ctx context.Context) (*Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.directory != nil {
		return s.directory, nil
	}

	dir, err := s.cache.Load()
	if err == nil {
		s.directory = dir
		return dir, nil
	}
	logger.Debug("Geo cache unavailable, bootstrapping from network: %v", err)

	dir, err = s.bootstrap.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap geo directory: %w", err)
	}

	if err := s.cache.Save(dir); err != nil {
		errorutil.LogWarning(logger.Get().Logger, "persist geo directory", err, errorutil.FileContext(s.cache.Dir())...)
	}

	s.directory = dir
	return dir, nil
}

// Directory returns the loaded directory, or nil if none has been loaded
func (s *Service) Directory() *Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory
}

package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

const (
	provinceFile = "provinceData.json"
	stationFile  = "stationData.json"
)

// ErrCacheMiss is wrapped by every Load failure; the cache is either complete or absent
var ErrCacheMiss = errors.New("geo cache miss")

// Cache persists a Directory as two JSON files in one directory
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Load reads both tables. A missing, unreadable or unparsable file, or a
// station table that does not cover every province, is reported as a miss.
func (c *Cache) Load() (*Directory, error) {
	var provinces []Province
	if err := c.readJSON(provinceFile, &provinces); err != nil {
		return nil, err
	}

	var stations map[string][]Station
	if err := c.readJSON(stationFile, &stations); err != nil {
		return nil, err
	}

	dir := NewDirectory(provinces, stations)
	if !dir.complete() {
		return nil, fmt.Errorf("%w: station table does not cover every province", ErrCacheMiss)
	}

	logger.Debug("Loaded geo cache from %s: %d provinces", c.dir, len(provinces))
	return dir, nil
}

func (c *Cache) readJSON(name string, v any) error {
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheMiss, errorutil.NewFileError("read", path, err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheMiss, errorutil.NewDecodeError(name, err))
	}
	return nil
}

// Save writes both tables. A failure on either file is returned without
// rolling back the other.
func (c *Cache) Save(d *Directory) error {
	provinces, err := json.Marshal(d.provinces)
	if err != nil {
		return fmt.Errorf("failed to encode provinces: %w", err)
	}
	stations, err := json.Marshal(d.stations)
	if err != nil {
		return fmt.Errorf("failed to encode stations: %w", err)
	}

	log := logger.Get().Logger
	if err := errorutil.SafeFileWrite(log, filepath.Join(c.dir, provinceFile), provinces, 0644); err != nil {
		return err
	}
	if err := errorutil.SafeFileWrite(log, filepath.Join(c.dir, stationFile), stations, 0644); err != nil {
		return err
	}

	logger.Debug("Saved geo cache to %s", c.dir)
	return nil
}

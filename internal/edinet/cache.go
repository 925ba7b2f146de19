package edinet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ListCache is a day-keyed file cache for raw listing responses. A cache hit
// skips the network entirely; absence of an entry is not an error.
type ListCache struct {
	dir string
}

// NewListCache creates a cache rooted at dir, creating it if needed.
func NewListCache(dir string) (*ListCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &ListCache{dir: dir}, nil
}

func (c *ListCache) path(date time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("list_%s.json", date.Format("2006-01-02")))
}

// Get returns the cached raw listing for date, or ok=false when absent.
func (c *ListCache) Get(date time.Time) ([]byte, bool) {
	data, err := os.ReadFile(c.path(date))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores the raw listing response for date.
func (c *ListCache) Set(date time.Time, raw []byte) error {
	return os.WriteFile(c.path(date), raw, 0o644)
}

// Dir returns the cache directory path.
func (c *ListCache) Dir() string {
	return c.dir
}

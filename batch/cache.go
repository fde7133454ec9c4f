package batch

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cratedig/cratedig/analysis"
)

// Cache persists analysis results as JSON files keyed by the identity of
// the audio file. A track that changes on disk (new mtime or size) gets a
// new key, so stale entries are simply never found again.
type Cache struct {
	dir string
}

// NewCache opens (creating if needed) a cache directory
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives the stable cache key for a file: the md5 hex digest of its
// absolute path, modification time and size. Deterministic for an
// unchanged file across any number of calls.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}

	keyStr := fmt.Sprintf("%s|%d|%d", abs, stat.ModTime().UnixNano(), stat.Size())
	sum := md5.Sum([]byte(keyStr))
	return hex.EncodeToString(sum[:]), nil
}

func (c *Cache) entryPath(path string) (string, error) {
	key, err := Key(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, key+".json"), nil
}

// IsCached reports whether a current result exists without reading it
func (c *Cache) IsCached(path string) bool {
	entry, err := c.entryPath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(entry)
	return err == nil
}

// Load returns the cached result for path, or nil when absent. A corrupt
// entry is evicted and treated as a miss.
func (c *Cache) Load(path string) *analysis.Result {
	entry, err := c.entryPath(path)
	if err != nil {
		return nil
	}

	data, err := os.ReadFile(entry)
	if err != nil {
		return nil
	}

	var result analysis.Result
	if err := json.Unmarshal(data, &result); err != nil {
		_ = os.Remove(entry)
		return nil
	}

	return &result
}

// Save writes an analysis result to the cache
func (c *Cache) Save(path string, result *analysis.Result) error {
	entry, err := c.entryPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := os.WriteFile(entry, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	return nil
}

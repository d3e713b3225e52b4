package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheMeta is the JSON sidecar stored next to each cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"lastModified,omitempty"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// diskCache stores one body plus meta sidecar per URL, keyed by the URL's
// SHA-256. Writes to the same key are serialized; distinct keys may be read
// concurrently.
type diskCache struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDiskCache(dir string) (*diskCache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "jpinfect-cache")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &diskCache{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *diskCache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

func (c *diskCache) paths(url string) (body, meta string) {
	key := cacheKey(url)
	return filepath.Join(c.dir, key+".bin"), filepath.Join(c.dir, key+".json")
}

// load returns the cached body and meta for url, or (nil, nil, err) on a
// cache miss. A body without readable meta is treated as a miss.
func (c *diskCache) load(url string) ([]byte, *cacheMeta, error) {
	bodyPath, metaPath := c.paths(url)
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, err
	}
	return body, &meta, nil
}

// store writes body and meta atomically enough for a single process: the
// per-key lock keeps concurrent writers off the same pair of files.
func (c *diskCache) store(url string, body []byte, meta *cacheMeta) error {
	lock := c.keyLock(cacheKey(url))
	lock.Lock()
	defer lock.Unlock()

	bodyPath, metaPath := c.paths(url)
	if err := os.WriteFile(bodyPath, body, 0o644); err != nil {
		return fmt.Errorf("write cache body: %w", err)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode cache meta: %w", err)
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}
	return nil
}

package driver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"xeblock/internal/blocking"
	"xeblock/internal/ir"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores blocked units on disk, keyed by the digest of their input
// snapshot and the pass options. Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is one cached unit.
type DiskPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Name string
	// Snapshot is the blocked unit as written by ir.Encode.
	Snapshot []byte

	// A summary of the run that produced it; the full report is not kept.
	Rewrites   int
	Assembled  int
	Decomposed int
	Reattached int
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a cache rooted at dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "units", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// after a successful rename the temp name is gone
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload from the disk cache.
func (c *DiskCache) Get(key Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, err
	}
	return out.Schema == diskCacheSchemaVersion, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

type cachedUnit struct {
	unit   *ir.Unit
	report blocking.Report
}

func lookupCached(c *DiskCache, key Digest, name string) (cachedUnit, bool) {
	var payload DiskPayload
	ok, err := c.Get(key, &payload)
	if err != nil || !ok || payload.Name != name {
		return cachedUnit{}, false
	}
	u, err := ir.Decode(bytes.NewReader(payload.Snapshot))
	if err != nil {
		return cachedUnit{}, false
	}
	rep := blocking.Report{Unit: name, Reattached: payload.Reattached}
	rep.Glue.Assembled = payload.Assembled
	rep.Glue.Decomposed = payload.Decomposed
	return cachedUnit{unit: u, report: rep}, true
}

func storeCached(c *DiskCache, key Digest, u *ir.Unit, rep blocking.Report) error {
	var buf bytes.Buffer
	if err := ir.Encode(&buf, u); err != nil {
		return fmt.Errorf("cache %s: %w", u.Name, err)
	}
	return c.Put(key, &DiskPayload{
		Schema:     diskCacheSchemaVersion,
		Name:       u.Name,
		Snapshot:   buf.Bytes(),
		Rewrites:   rep.Rewrite.Total(),
		Assembled:  rep.Glue.Assembled,
		Decomposed: rep.Glue.Decomposed,
		Reattached: rep.Reattached,
	})
}

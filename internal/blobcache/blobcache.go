// Package blobcache memoizes expensive byte-producing work (Yaz0
// decompression) behind a content-hash key.
//
// Lookups go through a small in-memory tier and, when a directory is
// configured, a persistent tier that survives across batch runs. A miss
// in both tiers runs the fill function once and stores the result in
// whichever tiers are available.
package blobcache

import (
	"encoding/binary"
	"hash/maphash"
	"log/slog"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

type Cache struct {
	mu  sync.Mutex
	ram *tinylfu.T[uint64, []byte]
	db  *pebble.DB
}

// Open creates a cache with roughly ramEntries resident blobs. An empty
// dir disables the persistent tier.
func Open(dir string, ramEntries int) (*Cache, error) {
	ramEntries = max(ramEntries, 16)
	c := &Cache{ram: tinylfu.New[uint64, []byte](ramEntries, ramEntries*10, khash)}
	if dir != "" {
		db, err := pebble.Open(dir, &pebble.Options{})
		if err != nil {
			return nil, err
		}
		c.db = db
	}
	return c, nil
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key hashes the raw (compressed) input; identical inputs share a cache
// slot regardless of where they came from.
func Key(b []byte) uint64 { return xxhash.Sum64(b) }

// GetOrFill returns the cached blob for key, running fill on a miss.
// Cache failures are reported and degrade to calling fill; they never
// fail the decode.
func (c *Cache) GetOrFill(key uint64, fill func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	if v, ok := c.ram.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], key)

	if c.db != nil {
		v, closer, err := c.db.Get(kb[:])
		switch err {
		case nil:
			out := slices.Clone(v)
			closer.Close()
			c.mu.Lock()
			c.ram.Add(key, out)
			c.mu.Unlock()
			return out, nil
		case pebble.ErrNotFound: // fall through to fill
		default:
			slog.Warn("blobcacheReadError", "key", key, "err", err)
		}
	}

	v, err := fill()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.ram.Add(key, v)
	c.mu.Unlock()
	if c.db != nil {
		if err := c.db.Set(kb[:], v, pebble.NoSync); err != nil {
			slog.Warn("blobcacheWriteError", "key", key, "err", err)
		}
	}
	return v, nil
}

var seed = maphash.MakeSeed()

func khash(k uint64) uint64 {
	return maphash.Comparable(seed, k)
}

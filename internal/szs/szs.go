// Package szs opens Yaz0-compressed SARC archives: decompress, then
// parse. It has no state of its own.
package szs

import (
	"github.com/ecurtin/romtext/internal/blobcache"
	"github.com/ecurtin/romtext/internal/sarc"
	"github.com/ecurtin/romtext/internal/yaz0"
)

// Decode decompresses buf and parses the result as an archive. A nil
// cache decompresses directly.
func Decode(buf []byte, cache *blobcache.Cache) (*sarc.Archive, error) {
	raw, err := Decompress(buf, cache)
	if err != nil {
		return nil, err
	}
	return sarc.New(raw)
}

// Decompress expands buf through the cache when one is given.
func Decompress(buf []byte, cache *blobcache.Cache) ([]byte, error) {
	if cache == nil {
		return yaz0.Decompress(buf)
	}
	return cache.GetOrFill(blobcache.Key(buf), func() ([]byte, error) {
		return yaz0.Decompress(buf)
	})
}

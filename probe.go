package main

import (
	"bytes"
	"io"
	"os"

	"github.com/therootcompany/xz"

	"github.com/ecurtin/romtext/internal/blobcache"
	"github.com/ecurtin/romtext/internal/szs"
	"github.com/ecurtin/romtext/internal/yaz0"
)

// readAsset reads a file and peels off whatever outer compression its
// magic bytes announce: Yaz0 (through the cache when one is given) or
// xz, which dumps in the wild are often wrapped in. Anything else is
// returned as-is.
func readAsset(path string, cache *blobcache.Cache) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return unwrap(data, cache)
}

func unwrap(data []byte, cache *blobcache.Cache) ([]byte, error) {
	switch {
	case yaz0.IsCompressed(data):
		return szs.Decompress(data, cache)
	case matchAt(data, "\xfd7zXZ\x00", 0):
		r, err := xz.NewReader(bytes.NewReader(data), xz.DefaultDictMax)
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)
	}
	return data, nil
}

func matchAt(b []byte, s string, offset int) bool {
	return len(b) >= offset+len(s) && string(b[offset:offset+len(s)]) == s
}

// Package yaz0 decompresses the Yaz0 bit-packed LZ stream.
// Reference: http://www.amnoid.de/gc/yaz0.txt
package yaz0

import (
	"encoding/binary"
	"fmt"

	"github.com/ecurtin/romtext/internal/bin"
)

const (
	magic      = "Yaz0"
	headerSize = 0x10
)

// IsCompressed reports whether b starts with the Yaz0 magic.
func IsCompressed(b []byte) bool {
	return len(b) >= len(magic) && string(b[:len(magic)]) == magic
}

// Size returns the declared decompressed size without decompressing.
func Size(src []byte) (uint32, error) {
	if !IsCompressed(src) {
		return 0, fmt.Errorf("yaz0: %w", bin.ErrSignature)
	}
	if len(src) < 8 {
		return 0, fmt.Errorf("yaz0: %w", bin.ErrTruncated)
	}
	return binary.BigEndian.Uint32(src[4:]), nil
}

// Decompress expands a whole Yaz0 stream.
//
// The bitstream is consumed one control byte at a time, bits
// most-significant-first: a set bit copies one literal byte, a clear bit
// is a back-reference. Back-references may overlap the bytes just
// written, so the copy must go byte by byte.
func Decompress(src []byte) ([]byte, error) {
	if !IsCompressed(src) {
		got := src
		if len(got) > 4 {
			got = got[:4]
		}
		return nil, fmt.Errorf("yaz0: %w: have %q, want %q", bin.ErrSignature, got, magic)
	}
	if len(src) < headerSize {
		return nil, fmt.Errorf("yaz0: header: %w", bin.ErrTruncated)
	}
	size := int(binary.BigEndian.Uint32(src[4:]))
	data := src[headerSize:]

	dst := make([]byte, size)
	var (
		si, di   int
		code     byte
		codeBits int
	)
	for di < size {
		if codeBits == 0 {
			if si >= len(data) {
				return nil, fmt.Errorf("yaz0: control byte at 0x%x: %w", headerSize+si, bin.ErrTruncated)
			}
			code = data[si]
			si++
			codeBits = 8
		}

		if code&0x80 != 0 {
			if si >= len(data) {
				return nil, fmt.Errorf("yaz0: literal at 0x%x: %w", headerSize+si, bin.ErrTruncated)
			}
			dst[di] = data[si]
			di++
			si++
		} else {
			if si+1 >= len(data) {
				return nil, fmt.Errorf("yaz0: back-reference at 0x%x: %w", headerSize+si, bin.ErrTruncated)
			}
			b1, b2 := data[si], data[si+1]
			si += 2

			dist := int(b1&0xf)<<8 | int(b2)
			cp := di - (dist + 1)

			n := int(b1 >> 4)
			if n == 0 {
				if si >= len(data) {
					return nil, fmt.Errorf("yaz0: long run length at 0x%x: %w", headerSize+si, bin.ErrTruncated)
				}
				n = int(data[si]) + 0x12
				si++
			} else {
				n += 2
			}

			if cp < 0 || di+n > size {
				return nil, fmt.Errorf("yaz0: back-reference (%d,%d) at output 0x%x: %w", dist, n, di, bin.ErrTruncated)
			}
			for ; n > 0; n-- {
				dst[di] = dst[cp]
				di++
				cp++
			}
		}

		code <<= 1
		codeBits--
	}
	return dst, nil
}

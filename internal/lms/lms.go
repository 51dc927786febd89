// Package lms implements the block-oriented container framing shared by
// the project-definition and message formats: a fixed 0x20-byte header,
// then a sequence of tagged blocks padded to 16-byte boundaries.
package lms

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ecurtin/romtext/internal/bin"
)

var (
	ErrUnknownBlock = errors.New("unknown block tag")
	ErrEncoding     = errors.New("unsupported text encoding")
)

// Encoding is the container-wide character encoding code from the header.
type Encoding byte

const (
	UTF8 Encoding = iota
	UTF16
	UTF32
)

func (e Encoding) bin() bin.Encoding {
	switch e {
	case UTF16:
		return bin.UTF16
	case UTF32:
		return bin.UTF32
	}
	return bin.UTF8
}

// Width returns the size of one code unit in bytes.
func (e Encoding) Width() int { return e.bin().Width() }

// ReadString reads text in this encoding; a negative size means
// null-terminated.
func (e Encoding) ReadString(c *bin.Cursor, size int) (string, error) {
	return c.String(e.bin(), size)
}

// ParamType is a control-tag parameter type code.
type ParamType byte

const (
	ParamU8     ParamType = 0
	ParamU16    ParamType = 1
	ParamI16    ParamType = 2
	ParamU32    ParamType = 5
	ParamF32    ParamType = 6
	ParamString ParamType = 8
	ParamNull   ParamType = 9
)

const (
	headerLen      = 0x20
	blockHeaderLen = 0x10
)

type Header struct {
	Encoding   Encoding
	Version    uint8
	BlockCount uint16
	FileSize   uint32
}

// ReadHeader parses the shared container header, validating the 8-byte
// signature and switching the cursor to the marked byte order.
func ReadHeader(c *bin.Cursor, signature string) (Header, error) {
	var h Header
	if err := c.Signature(signature); err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	if err := c.ByteOrderMark(); err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	c.Skip(2) // always zero
	enc, err := c.U8()
	if err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	if enc > uint8(UTF32) {
		return h, fmt.Errorf("lms: %w: %d", ErrEncoding, enc)
	}
	h.Encoding = Encoding(enc)
	if h.Version, err = c.U8(); err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	if h.BlockCount, err = c.U16(); err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	c.Skip(2) // always zero
	if h.FileSize, err = c.U32(); err != nil {
		return h, fmt.Errorf("lms: %w", err)
	}
	c.Seek(headerLen)
	return h, nil
}

// Blocks iterates the block table. handle is called with the cursor at
// the payload start; afterwards the cursor is re-seeked past the
// declared size and aligned forward to the next 16-byte boundary, so
// handle may leave it anywhere.
func Blocks(c *bin.Cursor, h Header, handle func(tag string, c *bin.Cursor) error) error {
	for i := 0; i < int(h.BlockCount); i++ {
		start := c.Pos()
		tag, err := c.Bytes(4)
		if err != nil {
			return fmt.Errorf("lms: block %d: %w", i, err)
		}
		size, err := c.U32()
		if err != nil {
			return fmt.Errorf("lms: block %q: %w", tag, err)
		}
		c.Skip(8) // reserved
		if err := handle(string(tag), c); err != nil {
			return err
		}
		c.Seek(start + blockHeaderLen + int(size))
		c.Align(0x10)
	}
	return nil
}

// A Label associates a resource slot index with a human-readable name.
type Label struct {
	Name  string
	Index uint32
}

// ReadLabels decodes a label block: hash-bucketed groups of
// {length-prefixed name, u32 index} pairs. The result is sorted
// ascending by index regardless of file order.
func ReadLabels(c *bin.Cursor) ([]Label, error) {
	start := c.Pos()
	groupCount, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("lms: label block: %w", err)
	}
	type group struct{ count, offset uint32 }
	groups := make([]group, groupCount)
	for i := range groups {
		if groups[i].count, err = c.U32(); err != nil {
			return nil, fmt.Errorf("lms: label block: %w", err)
		}
		if groups[i].offset, err = c.U32(); err != nil {
			return nil, fmt.Errorf("lms: label block: %w", err)
		}
	}

	var labels []Label
	for _, g := range groups {
		c.Seek(start + int(g.offset))
		for range g.count {
			n, err := c.U8()
			if err != nil {
				return nil, fmt.Errorf("lms: label: %w", err)
			}
			name, err := c.String(bin.UTF8, int(n))
			if err != nil {
				return nil, fmt.Errorf("lms: label: %w", err)
			}
			idx, err := c.U32()
			if err != nil {
				return nil, fmt.Errorf("lms: label %q: %w", name, err)
			}
			labels = append(labels, Label{Name: name, Index: idx})
		}
	}

	slices.SortStableFunc(labels, func(a, b Label) int {
		return int(int64(a.Index) - int64(b.Index))
	})
	return labels, nil
}

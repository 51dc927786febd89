// Package bin reads fixed-layout binary structures from an in-memory
// buffer, tracking a current offset and an active byte order.
//
// Every multi-byte read obeys the cursor's byte order, which is usually
// switched mid-stream after a byte-order mark. Reads never mutate the
// underlying buffer, and a read past the end returns ErrTruncated rather
// than panicking, because a wrong offset in these formats must surface as
// a decode error, not a crash.
package bin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
)

var (
	ErrTruncated  = errors.New("unexpected end of input")
	ErrSignature  = errors.New("signature mismatch")
	ErrByteOrder  = errors.New("invalid byte order mark")
	ErrIndexRange = errors.New("index out of range")
)

// Encoding selects the character width and codec for string reads.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF16
	UTF32
)

// Width returns the size of one code unit in bytes.
func (e Encoding) Width() int {
	switch e {
	case UTF16:
		return 2
	case UTF32:
		return 4
	default:
		return 1
	}
}

type Cursor struct {
	buf []byte
	pos int
	ord binary.ByteOrder
}

// New returns a little-endian cursor at offset 0.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf, ord: binary.LittleEndian}
}

// NewOrder returns a cursor with an explicit initial byte order.
func NewOrder(buf []byte, ord binary.ByteOrder) *Cursor {
	return &Cursor{buf: buf, ord: ord}
}

func (c *Cursor) Pos() int                    { return c.pos }
func (c *Cursor) Len() int                    { return len(c.buf) }
func (c *Cursor) Order() binary.ByteOrder     { return c.ord }
func (c *Cursor) SetOrder(o binary.ByteOrder) { c.ord = o }

// Seek repositions the cursor. Out-of-range positions are not an error
// until the next read.
func (c *Cursor) Seek(off int) { c.pos = off }

// Skip advances (or rewinds, if negative) the cursor.
func (c *Cursor) Skip(n int) { c.pos += n }

// Align advances the cursor to the next multiple of n.
func (c *Cursor) Align(n int) {
	if rem := c.pos % n; rem != 0 {
		c.pos += n - rem
	}
}

// Bytes returns the next n bytes of the buffer without copying.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos < 0 || c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("%w: %d bytes at 0x%x of 0x%x", ErrTruncated, n, c.pos, len(c.buf))
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

func (c *Cursor) U16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return c.ord.Uint16(b), nil
}

func (c *Cursor) I16() (int16, error) {
	v, err := c.U16()
	return int16(v), err
}

// U24 reads a 3-byte unsigned integer, a width the structured value
// format uses for entry counts and key indices.
func (c *Cursor) U24() (uint32, error) {
	b, err := c.Bytes(3)
	if err != nil {
		return 0, err
	}
	var q [4]byte
	if c.ord == binary.ByteOrder(binary.LittleEndian) {
		copy(q[:3], b)
	} else {
		copy(q[1:], b)
	}
	return c.ord.Uint32(q[:]), nil
}

func (c *Cursor) I24() (int32, error) {
	v, err := c.U24()
	if err != nil {
		return 0, err
	}
	return int32(v<<8) >> 8, nil
}

func (c *Cursor) U32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return c.ord.Uint32(b), nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *Cursor) U64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return c.ord.Uint64(b), nil
}

func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	return math.Float32frombits(v), err
}

func (c *Cursor) F64() (float64, error) {
	v, err := c.U64()
	return math.Float64frombits(v), err
}

func (c *Cursor) U32s(n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := c.U32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *Cursor) U16s(n int) ([]uint16, error) {
	out := make([]uint16, n)
	for i := range out {
		v, err := c.U16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// String reads text in the given encoding. A negative size means
// null-terminated: code units are consumed up to and including the first
// zero unit. A non-negative size reads a fixed field of that many bytes
// (short only at the very end of the buffer) and truncates the result at
// the first zero code unit.
func (c *Cursor) String(enc Encoding, size int) (string, error) {
	w := enc.Width()
	if size < 0 {
		var units []byte
		for {
			u, err := c.Bytes(w)
			if err != nil {
				return "", err
			}
			if allZero(u) {
				break
			}
			units = append(units, u...)
		}
		return decodeUnits(units, enc, c.ord), nil
	}

	start := min(max(c.pos, 0), len(c.buf))
	end := min(start+size, len(c.buf))
	b := c.buf[start:end]
	c.pos = start + len(b)
	for i := 0; i+w <= len(b); i += w {
		if allZero(b[i : i+w]) {
			b = b[:i]
			break
		}
	}
	return decodeUnits(b, enc, c.ord), nil
}

// Signature consumes len(want) bytes and checks them against a literal
// magic value.
func (c *Cursor) Signature(want string) error {
	got, err := c.Bytes(len(want))
	if err != nil {
		return err
	}
	if string(got) != want {
		return fmt.Errorf("%w: have %q, want %q", ErrSignature, got, want)
	}
	return nil
}

// ByteOrderMark consumes the 2-byte mark and switches the cursor's
// active byte order accordingly.
func (c *Cursor) ByteOrderMark() error {
	b, err := c.Bytes(2)
	if err != nil {
		return err
	}
	switch {
	case b[0] == 0xFE && b[1] == 0xFF:
		c.ord = binary.BigEndian
	case b[0] == 0xFF && b[1] == 0xFE:
		c.ord = binary.LittleEndian
	default:
		return fmt.Errorf("%w: % x", ErrByteOrder, b)
	}
	return nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

func decodeUnits(b []byte, enc Encoding, ord binary.ByteOrder) string {
	switch enc {
	case UTF16:
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, ord.Uint16(b[i:]))
		}
		return string(utf16.Decode(u))
	case UTF32:
		var sb strings.Builder
		for i := 0; i+3 < len(b); i += 4 {
			sb.WriteRune(rune(ord.Uint32(b[i:])))
		}
		return sb.String()
	default:
		return string(b)
	}
}

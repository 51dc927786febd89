// Package sarc reads the SARC archive container: a header, a file
// allocation table of hashed names and data offsets, and a parallel name
// table. Reference: https://mk8.tockdom.com/wiki/SARC_(File_Format)
package sarc

import (
	"errors"
	"fmt"

	"github.com/ecurtin/romtext/internal/bin"
)

var ErrHeaderSize = errors.New("unexpected header size")

const (
	headerLen   = 0x14
	fatEntryOff = 0xc
	fntNamesOff = 0x8
)

// An Entry is one row of the file allocation table paired with its name
// table slot of the same index.
type Entry struct {
	Name       string
	NameHash   uint32
	Attributes uint32
	start, end uint32
}

type Archive struct {
	entries  []Entry
	byName   map[string]int
	data     []byte
	dataOff  uint32
	HashSeed uint32

	fsys *archiveFS // built on demand
}

// New parses an archive over buf. The returned Archive borrows buf; the
// caller must not mutate it.
func New(buf []byte) (*Archive, error) {
	c := bin.New(buf)

	// The byte-order mark sits after the header-size field, so settle
	// the order first and then parse the header from the top.
	c.Seek(0x6)
	if err := c.ByteOrderMark(); err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	c.Seek(0)

	if err := c.Signature("SARC"); err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	hdrLen, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	if hdrLen != headerLen {
		return nil, fmt.Errorf("sarc: %w: have 0x%x, want 0x%x", ErrHeaderSize, hdrLen, headerLen)
	}
	c.Skip(2) // byte order mark, already consumed above
	if _, err := c.U32(); err != nil { // total file size
		return nil, fmt.Errorf("sarc: %w", err)
	}
	dataOff, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	c.Skip(2) // version
	c.Skip(2) // reserved

	a := &Archive{data: buf, dataOff: dataOff}

	// SFAT: file allocation table, entries sorted by name hash
	if err := c.Signature("SFAT"); err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	entOff, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	if entOff != fatEntryOff {
		return nil, fmt.Errorf("sarc: file table: %w: have 0x%x, want 0x%x", ErrHeaderSize, entOff, fatEntryOff)
	}
	count, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	if a.HashSeed, err = c.U32(); err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}

	a.entries = make([]Entry, count)
	for i := range a.entries {
		e := &a.entries[i]
		if e.NameHash, err = c.U32(); err != nil {
			return nil, fmt.Errorf("sarc: file table entry %d: %w", i, err)
		}
		if e.Attributes, err = c.U32(); err != nil {
			return nil, fmt.Errorf("sarc: file table entry %d: %w", i, err)
		}
		if e.start, err = c.U32(); err != nil {
			return nil, fmt.Errorf("sarc: file table entry %d: %w", i, err)
		}
		if e.end, err = c.U32(); err != nil {
			return nil, fmt.Errorf("sarc: file table entry %d: %w", i, err)
		}
	}

	// SFNT: one name per table entry, in the same order
	if err := c.Signature("SFNT"); err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	nameOff, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("sarc: %w", err)
	}
	if nameOff != fntNamesOff {
		return nil, fmt.Errorf("sarc: name table: %w: have 0x%x, want 0x%x", ErrHeaderSize, nameOff, fntNamesOff)
	}
	c.Skip(2) // reserved

	a.byName = make(map[string]int, count)
	for i := range a.entries {
		name, err := c.String(bin.UTF8, -1)
		if err != nil {
			return nil, fmt.Errorf("sarc: name table entry %d: %w", i, err)
		}
		c.Align(4)
		a.entries[i].Name = name
		a.byName[name] = i
	}

	// validate data extents up front so Data can simply slice
	for i := range a.entries {
		e := &a.entries[i]
		start := int64(dataOff) + int64(e.start)
		end := int64(dataOff) + int64(e.end)
		if e.end < e.start || end > int64(len(buf)) {
			return nil, fmt.Errorf("sarc: %q data [0x%x:0x%x]: %w", e.Name, start, end, bin.ErrTruncated)
		}
	}

	return a, nil
}

// Len returns the number of archived files.
func (a *Archive) Len() int { return len(a.entries) }

// Entries returns the file table in its on-disk order.
func (a *Archive) Entries() []Entry { return a.entries }

// Names returns every file name in table order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Data returns the byte slice for the named file. The slice aliases the
// archive buffer.
func (a *Archive) Data(name string) ([]byte, bool) {
	i, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	e := a.entries[i]
	return a.data[a.dataOff+e.start : a.dataOff+e.end], true
}

// Hash computes the file-table name hash used to sort entries.
func Hash(name string, seed uint32) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*seed + uint32(name[i])
	}
	return h
}

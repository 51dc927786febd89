// Package byml decodes the recursive structured value document format:
// two deduplicated string tables plus a tree of typed nodes rooted in an
// array or keyed map. Reference: https://zeldamods.org/wiki/BYML
package byml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/ecurtin/romtext/internal/bin"
)

var ErrNodeType = errors.New("unsupported node type")

type Options struct {
	Quiet bool         // drop soft validation warnings
	Log   *slog.Logger // nil means slog.Default()
}

// Decode parses a whole document and returns its root, which is always
// an Array, a *Hash, or nil for an empty document.
func Decode(buf []byte, opt Options) (Value, error) {
	log := opt.Log
	if log == nil {
		log = slog.Default()
	}
	d := &decoder{c: bin.New(buf), opt: opt, log: log}

	// 2-byte magic doubles as the byte-order mark
	sig, err := d.c.Bytes(2)
	if err != nil {
		return nil, fmt.Errorf("byml: %w", err)
	}
	switch string(sig) {
	case "BY":
		d.c.SetOrder(binary.BigEndian)
	case "YB":
		d.c.SetOrder(binary.LittleEndian)
	default:
		return nil, fmt.Errorf("byml: %w: have %q, want \"BY\" or \"YB\"", bin.ErrByteOrder, sig)
	}
	if _, err := d.c.U16(); err != nil { // version
		return nil, fmt.Errorf("byml: %w", err)
	}
	hashKeyOff, err := d.c.U32()
	if err != nil {
		return nil, fmt.Errorf("byml: %w", err)
	}
	stringOff, err := d.c.U32()
	if err != nil {
		return nil, fmt.Errorf("byml: %w", err)
	}
	rootOff, err := d.c.U32()
	if err != nil {
		return nil, fmt.Errorf("byml: %w", err)
	}

	if d.hashKeys, err = d.stringTable(hashKeyOff); err != nil {
		return nil, err
	}
	if d.strings, err = d.stringTable(stringOff); err != nil {
		return nil, err
	}
	return d.root(rootOff)
}

type decoder struct {
	c        *bin.Cursor
	hashKeys []string
	strings  []string
	opt      Options
	log      *slog.Logger
}

func (d *decoder) warn(msg string, args ...any) {
	if !d.opt.Quiet {
		d.log.Warn(msg, args...)
	}
}

// stringTable reads one table; a zero offset means the table is absent.
func (d *decoder) stringTable(start uint32) ([]string, error) {
	if start == 0 {
		return nil, nil
	}
	d.c.Seek(int(start))
	t, err := d.c.U8()
	if err != nil {
		return nil, fmt.Errorf("byml: string table at 0x%x: %w", start, err)
	}
	if NodeType(t) != TypeStringTable {
		return nil, fmt.Errorf("byml: string table at 0x%x: %w: have %s, want %s",
			start, ErrNodeType, NodeType(t), TypeStringTable)
	}
	count, err := d.c.U24()
	if err != nil {
		return nil, fmt.Errorf("byml: string table at 0x%x: %w", start, err)
	}
	offsets, err := d.c.U32s(int(count))
	if err != nil {
		return nil, fmt.Errorf("byml: string table at 0x%x: %w", start, err)
	}
	table := make([]string, count)
	for i, off := range offsets {
		d.c.Seek(int(start) + int(off))
		if table[i], err = d.c.String(bin.UTF8, -1); err != nil {
			return nil, fmt.Errorf("byml: string table entry %d: %w", i, err)
		}
	}
	return table, nil
}

func (d *decoder) root(start uint32) (Value, error) {
	if start == 0 {
		return nil, nil
	}
	path := nodePath{}.push("root")
	d.c.Seek(int(start))
	t, err := d.c.U8()
	if err != nil {
		return nil, fmt.Errorf("byml: root: %w", err)
	}
	d.c.Skip(-1)
	switch NodeType(t) {
	case TypeArray:
		return d.array(path)
	case TypeHash:
		return d.hash(path)
	}
	return nil, fmt.Errorf("byml: %w: invalid root node type %s", ErrNodeType, NodeType(t))
}

// entry decodes one container slot: offset types store a u32 pointer to
// the payload, everything else sits inline in the 4-byte slot.
func (d *decoder) entry(t NodeType, path nodePath) (Value, error) {
	if t.isOffset() {
		off, err := d.c.U32()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		d.c.Seek(int(off))
	}
	return d.value(t, path)
}

func (d *decoder) value(t NodeType, path nodePath) (Value, error) {
	switch t {
	case TypeString:
		idx, err := d.c.U32()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		s, err := d.lookup(d.strings, "string", idx, path)
		return String(s), err
	case TypeBinary:
		n, err := d.c.U32()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		b, err := d.c.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		return Binary(slices.Clone(b)), nil
	case TypeArray:
		return d.array(path)
	case TypeHash:
		return d.hash(path)
	case TypeBool:
		v, err := d.c.U32()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		if v > 1 {
			d.warn("boolOutOfRange", "path", path.String(), "value", v)
		}
		return Bool(v != 0), nil
	case TypeI32:
		v, err := d.c.I32()
		return I32(v), pathErr(err, path)
	case TypeU32:
		v, err := d.c.U32()
		return U32(v), pathErr(err, path)
	case TypeF32:
		v, err := d.c.F32()
		return F32(v), pathErr(err, path)
	case TypeI64:
		v, err := d.c.I64()
		return I64(v), pathErr(err, path)
	case TypeU64:
		v, err := d.c.U64()
		return U64(v), pathErr(err, path)
	case TypeF64:
		v, err := d.c.F64()
		return F64(v), pathErr(err, path)
	case TypeNull:
		v, err := d.c.U32()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		if v != 0 {
			d.warn("nullNonZero", "path", path.String(), "value", v)
		}
		return Null{}, nil
	}
	return nil, fmt.Errorf("byml: %s: %w: 0x%02x", path, ErrNodeType, byte(t))
}

func (d *decoder) array(path nodePath) (Value, error) {
	self, err := d.c.U8()
	if err != nil {
		return nil, fmt.Errorf("byml: %s: %w", path, err)
	}
	if NodeType(self) != TypeArray {
		d.warn("containerTypeMismatch", "path", path.String(),
			"have", NodeType(self).String(), "want", TypeArray.String())
	}
	count, err := d.c.U24()
	if err != nil {
		return nil, fmt.Errorf("byml: %s: %w", path, err)
	}
	types, err := d.c.Bytes(int(count))
	if err != nil {
		return nil, fmt.Errorf("byml: %s: %w", path, err)
	}
	types = slices.Clone(types) // the cursor seeks away below
	d.c.Align(4)
	start := d.c.Pos()

	out := make(Array, 0, count)
	for i, tb := range types {
		d.c.Seek(start + i*4)
		v, err := d.entry(NodeType(tb), path.push("["+strconv.Itoa(i)+"]"))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) hash(path nodePath) (Value, error) {
	self, err := d.c.U8()
	if err != nil {
		return nil, fmt.Errorf("byml: %s: %w", path, err)
	}
	if NodeType(self) != TypeHash {
		d.warn("containerTypeMismatch", "path", path.String(),
			"have", NodeType(self).String(), "want", TypeHash.String())
	}
	count, err := d.c.U24()
	if err != nil {
		return nil, fmt.Errorf("byml: %s: %w", path, err)
	}
	start := d.c.Pos()

	h := &Hash{entries: make([]HashEntry, 0, count)}
	for i := 0; i < int(count); i++ {
		d.c.Seek(start + i*8)
		keyIdx, err := d.c.U24()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		key, err := d.lookup(d.hashKeys, "hash key", keyIdx, path)
		if err != nil {
			return nil, err
		}
		t, err := d.c.U8()
		if err != nil {
			return nil, fmt.Errorf("byml: %s: %w", path, err)
		}
		v, err := d.entry(NodeType(t), path.push("["+strconv.Quote(key)+"]"))
		if err != nil {
			return nil, err
		}
		h.entries = append(h.entries, HashEntry{Key: key, Value: v})
	}
	return h, nil
}

func (d *decoder) lookup(table []string, what string, idx uint32, path nodePath) (string, error) {
	if table == nil {
		return "", fmt.Errorf("byml: %s: no %s table in document: %w", path, what, bin.ErrIndexRange)
	}
	if int(idx) >= len(table) {
		return "", fmt.Errorf("byml: %s: %s table index %d of %d: %w",
			path, what, idx, len(table), bin.ErrIndexRange)
	}
	return table[idx], nil
}

func pathErr(err error, path nodePath) error {
	if err != nil {
		return fmt.Errorf("byml: %s: %w", path, err)
	}
	return nil
}

// nodePath is the root-to-node chain carried through the recursive
// descent for diagnostics. push copies, so sibling branches never share
// backing storage.
type nodePath struct {
	segs []string
}

func (p nodePath) push(seg string) nodePath {
	return nodePath{append(slices.Clip(p.segs), seg)}
}

func (p nodePath) String() string {
	return strings.Join(p.segs, "")
}

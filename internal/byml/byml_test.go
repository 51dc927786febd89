package byml

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/ecurtin/romtext/internal/bin"
)

// doc assembles a document with explicit byte runs; offsets in the
// fixtures below are hand-computed and pinned by the assertions.
func doc(ord binary.AppendByteOrder, magic string, hashKeyOff, stringOff, rootOff uint32, body []byte) []byte {
	b := []byte(magic)
	b = ord.AppendUint16(b, 2) // version
	b = ord.AppendUint32(b, hashKeyOff)
	b = ord.AppendUint32(b, stringOff)
	b = ord.AppendUint32(b, rootOff)
	return append(b, body...)
}

func u24(ord binary.AppendByteOrder, v uint32) []byte {
	q := ord.AppendUint32(nil, v)
	if ord == binary.AppendByteOrder(binary.LittleEndian) {
		return q[:3]
	}
	return q[1:]
}

// oneKeyDoc is {"key": 42} with the hash key table at 0x10 and the root
// hash at 0x1c.
func oneKeyDoc(ord binary.AppendByteOrder, magic string, keyIdx uint32) []byte {
	var body []byte
	body = append(body, byte(TypeStringTable))
	body = append(body, u24(ord, 1)...)
	body = ord.AppendUint32(body, 8) // string 0, relative to table start
	body = append(body, "key\x00"...)

	body = append(body, byte(TypeHash))
	body = append(body, u24(ord, 1)...)
	body = append(body, u24(ord, keyIdx)...)
	body = append(body, byte(TypeI32))
	body = ord.AppendUint32(body, 42)

	return doc(ord, magic, 0x10, 0, 0x1c, body)
}

func TestHashDoc(t *testing.T) {
	v, err := Decode(oneKeyDoc(binary.LittleEndian, "YB", 0), Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	h, ok := v.(*Hash)
	if !ok {
		t.Fatalf("root is %T", v)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d", h.Len())
	}
	got, ok := h.Get("key")
	if !ok || got != I32(42) {
		t.Errorf(`Get("key") = %v, %v`, got, ok)
	}

	again, err := Decode(oneKeyDoc(binary.LittleEndian, "YB", 0), Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, again) {
		t.Error("two decodes of the same document differ")
	}
}

func TestBigEndian(t *testing.T) {
	v, err := Decode(oneKeyDoc(binary.BigEndian, "BY", 0), Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.(*Hash).Get("key"); got != I32(42) {
		t.Errorf("big-endian value = %v", got)
	}
}

func TestArrayWithOffsetNodes(t *testing.T) {
	ord := binary.LittleEndian
	var body []byte
	// string table at 0x10
	body = append(body, byte(TypeStringTable))
	body = append(body, u24(ord, 1)...)
	body = ord.AppendUint32(body, 8)
	body = append(body, "hi\x00"...)
	body = append(body, 0) // pad to 0x1c

	// root array at 0x1c: [string, i64 (out of line), null]
	body = append(body, byte(TypeArray))
	body = append(body, u24(ord, 3)...)
	body = append(body, byte(TypeString), byte(TypeI64), byte(TypeNull))
	body = append(body, 0) // align to 0x24
	body = ord.AppendUint32(body, 0)    // string table index
	body = ord.AppendUint32(body, 0x30) // offset to the i64 payload
	body = ord.AppendUint32(body, 0)    // null

	body = ord.AppendUint64(body, uint64(0xfffffffffffffffb)) // -5 at 0x30

	v, err := Decode(doc(ord, "YB", 0, 0x10, 0x1c, body), Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	want := Array{String("hi"), I64(-5), Null{}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}
}

func TestKeyIndexOutOfRange(t *testing.T) {
	_, err := Decode(oneKeyDoc(binary.LittleEndian, "YB", 5), Options{Quiet: true})
	if !errors.Is(err, bin.ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
	if !strings.Contains(err.Error(), "root") {
		t.Errorf("error lost its path: %v", err)
	}
}

func TestStringWithoutTable(t *testing.T) {
	ord := binary.LittleEndian
	var body []byte
	body = append(body, byte(TypeArray))
	body = append(body, u24(ord, 1)...)
	body = append(body, byte(TypeString))
	body = append(body, 0, 0, 0) // align
	body = ord.AppendUint32(body, 0)
	_, err := Decode(doc(ord, "YB", 0, 0, 0x10, body), Options{Quiet: true})
	if !errors.Is(err, bin.ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
	if !strings.Contains(err.Error(), "no string table") {
		t.Errorf("got %v", err)
	}
}

func TestRootMustBeContainer(t *testing.T) {
	body := []byte{byte(TypeI32), 0, 0, 0}
	_, err := Decode(doc(binary.LittleEndian, "YB", 0, 0, 0x10, body), Options{Quiet: true})
	if !errors.Is(err, ErrNodeType) {
		t.Errorf("got %v, want ErrNodeType", err)
	}
}

func TestBadMagic(t *testing.T) {
	_, err := Decode([]byte("XXxxxxxxxxxxxxxx"), Options{Quiet: true})
	if !errors.Is(err, bin.ErrByteOrder) {
		t.Errorf("got %v, want ErrByteOrder", err)
	}
}

func TestEmptyDoc(t *testing.T) {
	v, err := Decode(doc(binary.LittleEndian, "YB", 0, 0, 0, nil), Options{})
	if err != nil || v != nil {
		t.Errorf("empty doc = %v, %v", v, err)
	}
}

type countHandler struct{ n *int }

func (h countHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h countHandler) Handle(context.Context, slog.Record) error { *h.n++; return nil }
func (h countHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h countHandler) WithGroup(string) slog.Handler             { return h }

// boolTwoDoc is [bool] with the raw word 2, which decodes as true with a
// warning.
func boolTwoDoc() []byte {
	ord := binary.LittleEndian
	var body []byte
	body = append(body, byte(TypeArray))
	body = append(body, u24(ord, 1)...)
	body = append(body, byte(TypeBool))
	body = append(body, 0, 0, 0) // align
	body = ord.AppendUint32(body, 2)
	return doc(ord, "YB", 0, 0, 0x10, body)
}

func TestBoolOutOfRangeWarns(t *testing.T) {
	var warnings int
	v, err := Decode(boolTwoDoc(), Options{Log: slog.New(countHandler{&warnings})})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, Array{Bool(true)}) {
		t.Errorf("got %#v", v)
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}

	warnings = 0
	if _, err := Decode(boolTwoDoc(), Options{Quiet: true, Log: slog.New(countHandler{&warnings})}); err != nil {
		t.Fatal(err)
	}
	if warnings != 0 {
		t.Errorf("quiet decode still warned %d times", warnings)
	}
}

func TestHashJSONPreservesOrder(t *testing.T) {
	h := &Hash{entries: []HashEntry{
		{"zebra", I32(1)},
		{"apple", Array{Bool(false), Null{}}},
	}}
	out, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zebra":1,"apple":[false,null]}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

package byml

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeType is the on-disk type tag of one node.
type NodeType byte

const (
	TypeString      NodeType = 0xA0
	TypeBinary      NodeType = 0xA1
	TypeArray       NodeType = 0xC0
	TypeHash        NodeType = 0xC1
	TypeStringTable NodeType = 0xC2
	TypeBool        NodeType = 0xD0
	TypeI32         NodeType = 0xD1
	TypeF32         NodeType = 0xD2
	TypeU32         NodeType = 0xD3
	TypeI64         NodeType = 0xD4
	TypeU64         NodeType = 0xD5
	TypeF64         NodeType = 0xD6
	TypeNull        NodeType = 0xFF
)

// isOffset reports whether a container slot of this type holds a 4-byte
// offset to out-of-line payload instead of an inline value.
func (t NodeType) isOffset() bool {
	switch t {
	case TypeBinary, TypeArray, TypeHash, TypeI64, TypeU64, TypeF64:
		return true
	}
	return false
}

func (t NodeType) String() string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeBinary:
		return "BINARY"
	case TypeArray:
		return "ARRAY"
	case TypeHash:
		return "HASH"
	case TypeStringTable:
		return "STRING_TABLE"
	case TypeBool:
		return "BOOL"
	case TypeI32:
		return "I32"
	case TypeF32:
		return "F32"
	case TypeU32:
		return "U32"
	case TypeI64:
		return "I64"
	case TypeU64:
		return "U64"
	case TypeF64:
		return "F64"
	case TypeNull:
		return "NULL"
	}
	return fmt.Sprintf("0x%02X", byte(t))
}

// Value is one decoded node. The concrete types below are the full set;
// a switch over them with a default arm covers every document.
type Value interface {
	nodeType() NodeType
}

type (
	String string
	Binary []byte
	Array  []Value
	Bool   bool
	I32    int32
	U32    uint32
	F32    float32
	I64    int64
	U64    uint64
	F64    float64
	Null   struct{}
)

// Hash is a keyed map preserving the key order of the file, which is not
// necessarily sorted.
type Hash struct {
	entries []HashEntry
}

type HashEntry struct {
	Key   string
	Value Value
}

func (String) nodeType() NodeType { return TypeString }
func (Binary) nodeType() NodeType { return TypeBinary }
func (Array) nodeType() NodeType  { return TypeArray }
func (*Hash) nodeType() NodeType  { return TypeHash }
func (Bool) nodeType() NodeType   { return TypeBool }
func (I32) nodeType() NodeType    { return TypeI32 }
func (U32) nodeType() NodeType    { return TypeU32 }
func (F32) nodeType() NodeType    { return TypeF32 }
func (I64) nodeType() NodeType    { return TypeI64 }
func (U64) nodeType() NodeType    { return TypeU64 }
func (F64) nodeType() NodeType    { return TypeF64 }
func (Null) nodeType() NodeType   { return TypeNull }

func (h *Hash) Len() int { return len(h.entries) }

// Entries returns the key/value pairs in file order.
func (h *Hash) Entries() []HashEntry { return h.entries }

func (h *Hash) Get(key string) (Value, bool) {
	for _, e := range h.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (h *Hash) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range h.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

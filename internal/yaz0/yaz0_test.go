package yaz0

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ecurtin/romtext/internal/bin"
)

func header(size uint32) []byte {
	h := make([]byte, 0x10)
	copy(h, "Yaz0")
	binary.BigEndian.PutUint32(h[4:], size)
	return h
}

func TestAllLiterals(t *testing.T) {
	src := append(header(4), 0xF0, 'A', 'B', 'C', 'D')
	got, err := Decompress(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ABCD" {
		t.Errorf("got %q", got)
	}
}

func TestOverlappingRun(t *testing.T) {
	// one literal 'A', then a distance-1 back-reference of length 5:
	// the copy reads bytes it has just written
	src := append(header(6), 0x80, 'A', 0x30, 0x00)
	got, err := Decompress(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "AAAAAA" {
		t.Errorf("got %q", got)
	}
}

func TestLongRun(t *testing.T) {
	// high nibble 0 pulls the length from an extra byte: n+0x12
	src := append(header(1+0x12+0x30), 0x80, 'x', 0x00, 0x00, 0x30)
	got, err := Decompress(src)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat([]byte{'x'}, 1+0x12+0x30)
	if !bytes.Equal(got, want) {
		t.Errorf("got %d bytes %q", len(got), got)
	}
}

func TestBackReferenceBeforeStart(t *testing.T) {
	// distance reaches before the start of the output
	src := append(header(3), 0x00, 0x50, 0x00)
	if _, err := Decompress(src); !errors.Is(err, bin.ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestBadMagic(t *testing.T) {
	if _, err := Decompress([]byte("Yay0\x00\x00\x00\x04")); !errors.Is(err, bin.ErrSignature) {
		t.Errorf("got %v, want ErrSignature", err)
	}
	if IsCompressed([]byte("Yay0")) {
		t.Error("IsCompressed accepted Yay0")
	}
	if !IsCompressed(header(0)) {
		t.Error("IsCompressed rejected a valid header")
	}
}

func TestTruncatedStream(t *testing.T) {
	for _, src := range [][]byte{
		header(4),                           // no control byte
		append(header(4), 0xF0, 'A'),        // literals run out
		append(header(4), 0x00),             // back-reference cut short
		append(header(0x20), 0x00, 0x00, 0x00), // long run missing its length byte
		[]byte("Yaz0\x00\x00"),              // header itself short
	} {
		if _, err := Decompress(src); !errors.Is(err, bin.ErrTruncated) {
			t.Errorf("%x: got %v, want ErrTruncated", src, err)
		}
	}
}

func TestSize(t *testing.T) {
	if n, err := Size(header(0x1234)); err != nil || n != 0x1234 {
		t.Errorf("Size = %#x, %v", n, err)
	}
	if _, err := Size([]byte("nope")); !errors.Is(err, bin.ErrSignature) {
		t.Errorf("Size on garbage = %v", err)
	}
}

package msbt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ecurtin/romtext/internal/bin"
	"github.com/ecurtin/romtext/internal/lms"
	"github.com/ecurtin/romtext/internal/msbp"
)

var le = binary.LittleEndian

func block(tag string, payload []byte) []byte {
	b := []byte(tag)
	b = le.AppendUint32(b, uint32(len(payload)))
	b = append(b, make([]byte, 8)...)
	b = append(b, payload...)
	if rem := len(b) % 0x10; rem != 0 {
		b = append(b, make([]byte, 0x10-rem)...)
	}
	return b
}

func container(sig string, enc byte, blocks ...[]byte) []byte {
	b := []byte(sig)
	b = le.AppendUint16(b, 0xFEFF)
	b = append(b, 0, 0)
	b = append(b, enc, 3)
	b = le.AppendUint16(b, uint16(len(blocks)))
	b = append(b, 0, 0)
	b = le.AppendUint32(b, 0)
	b = append(b, make([]byte, 0x20-len(b))...)
	for _, bl := range blocks {
		b = append(b, bl...)
	}
	le.PutUint32(b[0x12:], uint32(len(b)))
	return b
}

func labelBlock(labels ...lms.Label) []byte {
	b := le.AppendUint32(nil, 1)
	b = le.AppendUint32(b, uint32(len(labels)))
	b = le.AppendUint32(b, 12)
	for _, l := range labels {
		b = append(b, byte(len(l.Name)))
		b = append(b, l.Name...)
		b = le.AppendUint32(b, l.Index)
	}
	return b
}

func u16s(vs ...uint16) []byte {
	var b []byte
	for _, v := range vs {
		b = le.AppendUint16(b, v)
	}
	return b
}

// testProject decodes a minimal catalog: group 0 "System" with the four
// reserved tags, none of them carrying declared parameters.
func testProject(t *testing.T) *msbp.Project {
	t.Helper()

	offsets := func(entries ...[]byte) []byte {
		var b []byte
		b = le.AppendUint16(b, uint16(len(entries)))
		b = append(b, 0, 0)
		off := 4 + 4*len(entries)
		for _, e := range entries {
			b = le.AppendUint32(b, uint32(off))
			off += len(e)
		}
		for _, e := range entries {
			b = append(b, e...)
		}
		return b
	}

	group := u16s(0, 4, 0, 1, 2, 3)
	group = append(group, "System\x00"...)

	tag := func(name string) []byte {
		return append(u16s(0), name+"\x00"...)
	}

	buf := container("MsgPrjBn", 0, // utf-8
		block("TGG2", offsets(group)),
		block("TAG2", offsets(tag("ruby"), tag("font"), tag("wait"), tag("fontIndex"))),
		block("TGP2", offsets()),
		block("TGL2", offsets()),
	)
	p, err := msbp.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// text encodes a utf-16le message from alternating literal runes and raw
// unit slices.
func text(parts ...any) []byte {
	var b []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			for _, r := range v {
				b = le.AppendUint16(b, uint16(r))
			}
		case []uint16:
			b = append(b, u16s(v...)...)
		}
	}
	return le.AppendUint16(b, 0)
}

func textBlock(msgs ...[]byte) []byte {
	var b []byte
	b = le.AppendUint32(b, uint32(len(msgs)))
	off := 4 + 4*len(msgs)
	for _, m := range msgs {
		b = le.AppendUint32(b, uint32(off))
		off += len(m)
	}
	for _, m := range msgs {
		b = append(b, m...)
	}
	return b
}

func testMessageFile() []byte {
	// group 0 tag 0 with two params: replace=7, then the byte length of rt
	ruby := []uint16{0x0E, 0, 0, 2, 7, 4}
	msgs := [][]byte{
		text("Hi"),
		text("A", ruby, "ab", []uint16{'!'}),
		text([]uint16{0x0E, 0, 1, 0}, "no params"),
	}
	lbl1 := labelBlock(
		lms.Label{Name: "Third", Index: 2},
		lms.Label{Name: "First", Index: 0},
		lms.Label{Name: "Second", Index: 1},
	)
	return container("MsgStdBn", 1, block("LBL1", lbl1), block("TXT2", textBlock(msgs...)))
}

func TestDecode(t *testing.T) {
	set, err := Decode(testMessageFile(), testProject(t))
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 3 {
		t.Fatalf("Len = %d", set.Len())
	}

	want := []Message{
		{"First", "Hi"},
		{"Second", "A<System, ruby, (replace: 7, rt: 'ab')>!"},
		{"Third", "<System, font>no params"},
	}
	for i, m := range set.Messages() {
		if m != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, m, want[i])
		}
	}

	got, ok := set.Get("Second")
	if !ok || got != want[1].Text {
		t.Errorf("Get(Second) = %q, %v", got, ok)
	}
	if _, ok := set.Get("Nope"); ok {
		t.Error("phantom label")
	}
}

func TestSystemTagPatchIsIdempotent(t *testing.T) {
	p := testProject(t)
	first, err := Decode(testMessageFile(), p)
	if err != nil {
		t.Fatal(err)
	}
	// a second file against the same catalog sees identical schemas
	second, err := Decode(testMessageFile(), p)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.Get("Second")
	b, _ := second.Get("Second")
	if a != b {
		t.Errorf("decodes diverged: %q vs %q", a, b)
	}

	g, _ := p.Group(0)
	if len(g.Tags[0].Params) != 2 || g.Tags[0].Params[0].Name != "replace" {
		t.Errorf("ruby schema = %v", g.Tags[0].Params)
	}
}

func TestSchemaDrivesParamConsumption(t *testing.T) {
	// an in-stream count of 0 on the two-param ruby schema: the value
	// bytes are still consumed, they just don't render
	msg := text("A", []uint16{0x0E, 0, 0, 0, 7, 4}, "ab", []uint16{'!'})
	buf := container("MsgStdBn", 1,
		block("LBL1", labelBlock(lms.Label{Name: "Only", Index: 0})),
		block("TXT2", textBlock(msg)),
	)
	set, err := Decode(buf, testProject(t))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := set.Get("Only")
	if got != "A<System, ruby>!" {
		t.Errorf("got %q, want the parameter bytes consumed, not echoed", got)
	}
}

func TestNilProject(t *testing.T) {
	if _, err := Decode(testMessageFile(), nil); err == nil {
		t.Error("nil catalog accepted")
	}
}

func TestUnknownBlock(t *testing.T) {
	buf := container("MsgStdBn", 1, block("ATR1", nil))
	_, err := Decode(buf, testProject(t))
	if !errors.Is(err, lms.ErrUnknownBlock) {
		t.Errorf("got %v, want ErrUnknownBlock", err)
	}
}

func TestUnknownTagGroup(t *testing.T) {
	msg := text([]uint16{0x0E, 9, 0, 0})
	buf := container("MsgStdBn", 1,
		block("LBL1", labelBlock(lms.Label{Name: "X", Index: 0})),
		block("TXT2", textBlock(msg)),
	)
	_, err := Decode(buf, testProject(t))
	if !errors.Is(err, bin.ErrIndexRange) {
		t.Errorf("got %v, want ErrIndexRange", err)
	}
}

func TestLabelIndexOutOfRange(t *testing.T) {
	buf := container("MsgStdBn", 1,
		block("LBL1", labelBlock(lms.Label{Name: "X", Index: 5})),
		block("TXT2", textBlock(text("only"))),
	)
	_, err := Decode(buf, testProject(t))
	if !errors.Is(err, bin.ErrIndexRange) {
		t.Errorf("got %v, want ErrIndexRange", err)
	}
}

func TestJSONKeepsTagMarkers(t *testing.T) {
	set, err := Decode(testMessageFile(), testProject(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(set)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "<System") {
		t.Errorf("markers escaped: %s", s)
	}
	want := `{"First":"Hi","Second":"A<System, ruby, (replace: 7, rt: 'ab')>!","Third":"<System, font>no params"}`
	if s != want {
		t.Errorf("got  %s\nwant %s", s, want)
	}
}

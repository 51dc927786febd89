// Package msbt decodes localized message files: per-label text with
// embedded control tags interpreted against a project catalog.
// Reference: https://github.com/kinnay/Nintendo-File-Formats/wiki/MSBT-File-Format
package msbt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/ecurtin/romtext/internal/bin"
	"github.com/ecurtin/romtext/internal/lms"
	"github.com/ecurtin/romtext/internal/msbp"
)

const signature = "MsgStdBn"

// controlUnit introduces an in-text control tag in any encoding.
const controlUnit = 0x0E

var errNoProject = errors.New("msbt: message decoding requires a project catalog")

type Message struct {
	Label string
	Text  string
}

// A MessageSet maps label names to decoded text, in label-index order.
type MessageSet struct {
	messages []Message
}

func (s *MessageSet) Len() int            { return len(s.messages) }
func (s *MessageSet) Messages() []Message { return s.messages }

func (s *MessageSet) Get(label string) (string, bool) {
	for _, m := range s.messages {
		if m.Label == label {
			return m.Text, true
		}
	}
	return "", false
}

func (s *MessageSet) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, m := range s.messages {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeString(&b, m.Label); err != nil {
			return nil, err
		}
		b.WriteByte(':')
		if err := writeString(&b, m.Text); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// writeString appends one JSON string without HTML escaping, so control
// tag markers like <System, ruby> stay readable in the output.
func writeString(b *bytes.Buffer, s string) error {
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.Truncate(b.Len() - 1) // Encode appends a newline
	return nil
}

// Decode parses a message file. The project catalog is required: control
// tags inside the text reference its tag section. The catalog is
// finalized (system tag schemas installed) before any text is read.
func Decode(buf []byte, project *msbp.Project) (*MessageSet, error) {
	if project == nil {
		return nil, errNoProject
	}
	project.FinalizeSystemTags()

	c := bin.New(buf)
	h, err := lms.ReadHeader(c, signature)
	if err != nil {
		return nil, fmt.Errorf("msbt: %w", err)
	}

	var (
		labels     []lms.Label
		texts      []string
		haveLabels bool
		haveTexts  bool
	)
	err = lms.Blocks(c, h, func(tag string, c *bin.Cursor) error {
		switch tag {
		case "LBL1":
			var err error
			labels, err = lms.ReadLabels(c)
			haveLabels = true
			return err
		case "TXT2":
			var err error
			texts, err = readMessages(c, h.Encoding, project)
			haveTexts = true
			return err
		default:
			return fmt.Errorf("msbt: %w: %q", lms.ErrUnknownBlock, tag)
		}
	})
	if err != nil {
		return nil, err
	}

	set := &MessageSet{}
	if haveLabels && haveTexts {
		set.messages = make([]Message, 0, len(labels))
		for _, l := range labels {
			if int(l.Index) >= len(texts) {
				return nil, fmt.Errorf("msbt: label %q: message index %d of %d: %w",
					l.Name, l.Index, len(texts), bin.ErrIndexRange)
			}
			set.messages = append(set.messages, Message{Label: l.Name, Text: texts[l.Index]})
		}
	}
	return set, nil
}

func readMessages(c *bin.Cursor, enc lms.Encoding, project *msbp.Project) ([]string, error) {
	start := c.Pos()
	count, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("msbt: TXT2: %w", err)
	}
	offsets, err := c.U32s(int(count))
	if err != nil {
		return nil, fmt.Errorf("msbt: TXT2: %w", err)
	}
	texts := make([]string, 0, count)
	for i, off := range offsets {
		c.Seek(start + int(off))
		text, err := decodeMessage(c, enc, project)
		if err != nil {
			return nil, fmt.Errorf("msbt: message %d: %w", i, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// decodeMessage scans code units up to the terminating null, rendering
// control tags as bracketed markers inline with the literal text.
func decodeMessage(c *bin.Cursor, enc lms.Encoding, project *msbp.Project) (string, error) {
	var (
		out   strings.Builder
		units []uint16 // pending UTF-16 units, flushed at tags and EOF
	)
	flush := func() {
		if len(units) > 0 {
			out.WriteString(string(utf16.Decode(units)))
			units = units[:0]
		}
	}

	for {
		unit, err := readUnit(c, enc)
		if err != nil {
			return "", err
		}
		switch {
		case unit == 0:
			flush()
			return out.String(), nil
		case unit == controlUnit:
			flush()
			if err := decodeTag(c, enc, project, &out); err != nil {
				return "", err
			}
		default:
			switch enc {
			case lms.UTF16:
				units = append(units, uint16(unit))
			case lms.UTF32:
				out.WriteRune(rune(unit))
			default:
				out.WriteByte(byte(unit))
			}
		}
	}
}

func readUnit(c *bin.Cursor, enc lms.Encoding) (uint32, error) {
	switch enc {
	case lms.UTF16:
		v, err := c.U16()
		return uint32(v), err
	case lms.UTF32:
		return c.U32()
	default:
		v, err := c.U8()
		return uint32(v), err
	}
}

func decodeTag(c *bin.Cursor, enc lms.Encoding, project *msbp.Project, out *strings.Builder) error {
	groupIdx, err := c.U16()
	if err != nil {
		return err
	}
	typeIdx, err := c.U16()
	if err != nil {
		return err
	}
	paramCount, err := c.U16()
	if err != nil {
		return err
	}

	group, ok := project.Group(groupIdx)
	if !ok {
		return fmt.Errorf("control tag group %d: %w", groupIdx, bin.ErrIndexRange)
	}
	if int(typeIdx) >= len(group.Tags) {
		return fmt.Errorf("control tag group %q: tag index %d of %d: %w",
			group.Name, typeIdx, len(group.Tags), bin.ErrIndexRange)
	}
	tag := group.Tags[typeIdx]

	// the declared schema, not the in-stream count, decides how many
	// value bytes follow; the count only gates rendering
	rendered := make([]string, 0, len(tag.Params))
	for _, p := range tag.Params {
		val, err := readParam(c, enc, p)
		if err != nil {
			return fmt.Errorf("tag %q parameter %q: %w", tag.Name, p.Name, err)
		}
		rendered = append(rendered, p.Name+": "+val)
	}

	parts := []string{group.Name, tag.Name}
	if paramCount > 0 {
		parts = append(parts, "("+strings.Join(rendered, ", ")+")")
	}
	out.WriteString("<" + strings.Join(parts, ", ") + ">")
	return nil
}

// readParam consumes one positional parameter value per its declared
// type and returns its textual rendering. String values are quoted.
func readParam(c *bin.Cursor, enc lms.Encoding, p msbp.Param) (string, error) {
	switch p.Type {
	case lms.ParamU8:
		v, err := c.U8()
		return strconv.FormatUint(uint64(v), 10), err
	case lms.ParamU16:
		v, err := c.U16()
		return strconv.FormatUint(uint64(v), 10), err
	case lms.ParamI16:
		v, err := c.I16()
		return strconv.FormatInt(int64(v), 10), err
	case lms.ParamU32:
		v, err := c.U32()
		return strconv.FormatUint(uint64(v), 10), err
	case lms.ParamF32:
		v, err := c.F32()
		return strconv.FormatFloat(float64(v), 'g', -1, 32), err
	case lms.ParamString:
		size, err := c.U16()
		if err != nil {
			return "", err
		}
		s, err := enc.ReadString(c, int(size))
		return "'" + s + "'", err
	case lms.ParamNull:
		return "null", nil
	}
	return "", fmt.Errorf("unsupported parameter type %d", p.Type)
}

// Package msbp decodes the project-definition catalog: colors, control
// tags, styles, and filename lists referenced by message files.
// Reference: https://github.com/kinnay/Nintendo-File-Formats/wiki/MSBP-File-Format
package msbp

import (
	"errors"
	"fmt"

	"github.com/ecurtin/romtext/internal/bin"
	"github.com/ecurtin/romtext/internal/lms"
)

// ErrUnimplemented marks block combinations this decoder refuses by
// design, not malformed input.
var ErrUnimplemented = errors.New("not supported")

const signature = "MsgPrjBn"

type rawGroup struct {
	index      uint16
	name       string
	tagIndices []uint16
}

type rawTag struct {
	name         string
	paramIndices []uint16
}

type blocks struct {
	colors      []Color
	colorLabels []lms.Label
	groups      []rawGroup
	tags        []rawTag
	params      []Param
	tagList     []string
	styles      []Style
	styleLabels []lms.Label
	filenames   []string

	have map[string]bool
}

// Decode parses a whole project file and assembles the catalog.
func Decode(buf []byte) (*Project, error) {
	c := bin.New(buf)
	h, err := lms.ReadHeader(c, signature)
	if err != nil {
		return nil, fmt.Errorf("msbp: %w", err)
	}

	bl := blocks{have: make(map[string]bool)}
	err = lms.Blocks(c, h, func(tag string, c *bin.Cursor) error {
		bl.have[tag] = true
		switch tag {
		case "CLR1":
			return bl.readColors(c)
		case "ATI2":
			return readAttrIndex(c)
		case "ALI2":
			return readAttrLists(c, h.Encoding)
		case "TGG2":
			return bl.readTagGroups(c, h.Encoding)
		case "TAG2":
			return bl.readTags(c, h.Encoding)
		case "TGP2":
			return bl.readTagParams(c, h.Encoding)
		case "TGL2":
			return bl.readTagList(c, h.Encoding)
		case "SYL3":
			return bl.readStyles(c)
		case "CTI1":
			return bl.readFilenames(c, h.Encoding)
		case "CLB1":
			var err error
			bl.colorLabels, err = lms.ReadLabels(c)
			return err
		case "SLB1":
			var err error
			bl.styleLabels, err = lms.ReadLabels(c)
			return err
		case "ALB1":
			_, err := lms.ReadLabels(c)
			return err
		default:
			return fmt.Errorf("msbp: block %q: %w", tag, ErrUnimplemented)
		}
	})
	if err != nil {
		return nil, err
	}
	return bl.assemble()
}

func (bl *blocks) readColors(c *bin.Cursor) error {
	count, err := c.U32()
	if err != nil {
		return fmt.Errorf("msbp: CLR1: %w", err)
	}
	bl.colors = make([]Color, count)
	for i := range bl.colors {
		b, err := c.Bytes(4)
		if err != nil {
			return fmt.Errorf("msbp: CLR1 entry %d: %w", i, err)
		}
		copy(bl.colors[i][:], b)
	}
	return nil
}

// readAttrIndex walks the attribute index entries. The attribute
// sections are decoded for framing but never assembled; see assemble.
func readAttrIndex(c *bin.Cursor) error {
	count, err := c.U32()
	if err != nil {
		return fmt.Errorf("msbp: ATI2: %w", err)
	}
	for i := 0; i < int(count); i++ {
		if _, err := c.Bytes(8); err != nil { // type, pad, index, offset
			return fmt.Errorf("msbp: ATI2 entry %d: %w", i, err)
		}
	}
	return nil
}

func readAttrLists(c *bin.Cursor, enc lms.Encoding) error {
	start := c.Pos()
	count, err := c.U32()
	if err != nil {
		return fmt.Errorf("msbp: ALI2: %w", err)
	}
	offsets, err := c.U32s(int(count))
	if err != nil {
		return fmt.Errorf("msbp: ALI2: %w", err)
	}
	for _, off := range offsets {
		c.Seek(start + int(off))
		itemCount, err := c.U32()
		if err != nil {
			return fmt.Errorf("msbp: ALI2 list: %w", err)
		}
		nameOffsets, err := c.U32s(int(itemCount))
		if err != nil {
			return fmt.Errorf("msbp: ALI2 list: %w", err)
		}
		for _, nameOff := range nameOffsets {
			c.Seek(start + int(nameOff))
			if _, err := enc.ReadString(c, -1); err != nil {
				return fmt.Errorf("msbp: ALI2 item: %w", err)
			}
		}
	}
	return nil
}

// offsetTable reads the u16 count + padding + u32-per-entry offset
// table that heads each tag-catalog block. Offsets are relative to the
// block payload start.
func offsetTable(c *bin.Cursor, block string) (start int, offsets []uint32, err error) {
	start = c.Pos()
	count, err := c.U16()
	if err != nil {
		return 0, nil, fmt.Errorf("msbp: %s: %w", block, err)
	}
	c.Skip(2) // padding
	offsets, err = c.U32s(int(count))
	if err != nil {
		return 0, nil, fmt.Errorf("msbp: %s: %w", block, err)
	}
	return start, offsets, nil
}

func (bl *blocks) readTagGroups(c *bin.Cursor, enc lms.Encoding) error {
	start, offsets, err := offsetTable(c, "TGG2")
	if err != nil {
		return err
	}
	for _, off := range offsets {
		c.Seek(start + int(off))
		var g rawGroup
		if g.index, err = c.U16(); err != nil {
			return fmt.Errorf("msbp: TGG2 group: %w", err)
		}
		tagCount, err := c.U16()
		if err != nil {
			return fmt.Errorf("msbp: TGG2 group %d: %w", g.index, err)
		}
		if g.tagIndices, err = c.U16s(int(tagCount)); err != nil {
			return fmt.Errorf("msbp: TGG2 group %d: %w", g.index, err)
		}
		if g.name, err = enc.ReadString(c, -1); err != nil {
			return fmt.Errorf("msbp: TGG2 group %d: %w", g.index, err)
		}
		bl.groups = append(bl.groups, g)
	}
	return nil
}

func (bl *blocks) readTags(c *bin.Cursor, enc lms.Encoding) error {
	start, offsets, err := offsetTable(c, "TAG2")
	if err != nil {
		return err
	}
	for i, off := range offsets {
		c.Seek(start + int(off))
		var t rawTag
		paramCount, err := c.U16()
		if err != nil {
			return fmt.Errorf("msbp: TAG2 tag %d: %w", i, err)
		}
		if t.paramIndices, err = c.U16s(int(paramCount)); err != nil {
			return fmt.Errorf("msbp: TAG2 tag %d: %w", i, err)
		}
		if t.name, err = enc.ReadString(c, -1); err != nil {
			return fmt.Errorf("msbp: TAG2 tag %d: %w", i, err)
		}
		bl.tags = append(bl.tags, t)
	}
	return nil
}

func (bl *blocks) readTagParams(c *bin.Cursor, enc lms.Encoding) error {
	start, offsets, err := offsetTable(c, "TGP2")
	if err != nil {
		return err
	}
	for i, off := range offsets {
		c.Seek(start + int(off))
		var p Param
		pt, err := c.U8()
		if err != nil {
			return fmt.Errorf("msbp: TGP2 param %d: %w", i, err)
		}
		p.Type = lms.ParamType(pt)
		if p.Type == lms.ParamNull {
			// enumerated choice parameter: inline item list before the name
			c.Skip(1) // padding
			itemCount, err := c.U16()
			if err != nil {
				return fmt.Errorf("msbp: TGP2 param %d: %w", i, err)
			}
			if p.Items, err = c.U16s(int(itemCount)); err != nil {
				return fmt.Errorf("msbp: TGP2 param %d: %w", i, err)
			}
		}
		if p.Name, err = enc.ReadString(c, -1); err != nil {
			return fmt.Errorf("msbp: TGP2 param %d: %w", i, err)
		}
		bl.params = append(bl.params, p)
	}
	return nil
}

func (bl *blocks) readTagList(c *bin.Cursor, enc lms.Encoding) error {
	start, offsets, err := offsetTable(c, "TGL2")
	if err != nil {
		return err
	}
	for i, off := range offsets {
		c.Seek(start + int(off))
		name, err := enc.ReadString(c, -1)
		if err != nil {
			return fmt.Errorf("msbp: TGL2 item %d: %w", i, err)
		}
		bl.tagList = append(bl.tagList, name)
	}
	return nil
}

func (bl *blocks) readStyles(c *bin.Cursor) error {
	count, err := c.U32()
	if err != nil {
		return fmt.Errorf("msbp: SYL3: %w", err)
	}
	bl.styles = make([]Style, count)
	for i := range bl.styles {
		s := &bl.styles[i]
		if s.RegionWidth, err = c.U32(); err != nil {
			return fmt.Errorf("msbp: SYL3 entry %d: %w", i, err)
		}
		if s.LineNum, err = c.U32(); err != nil {
			return fmt.Errorf("msbp: SYL3 entry %d: %w", i, err)
		}
		if s.FontIndex, err = c.U32(); err != nil {
			return fmt.Errorf("msbp: SYL3 entry %d: %w", i, err)
		}
		if s.BaseColorIndex, err = c.I32(); err != nil {
			return fmt.Errorf("msbp: SYL3 entry %d: %w", i, err)
		}
	}
	return nil
}

func (bl *blocks) readFilenames(c *bin.Cursor, enc lms.Encoding) error {
	start := c.Pos()
	count, err := c.U32()
	if err != nil {
		return fmt.Errorf("msbp: CTI1: %w", err)
	}
	offsets, err := c.U32s(int(count))
	if err != nil {
		return fmt.Errorf("msbp: CTI1: %w", err)
	}
	bl.filenames = make([]string, 0, count)
	for i, off := range offsets {
		c.Seek(start + int(off))
		name, err := enc.ReadString(c, -1)
		if err != nil {
			return fmt.Errorf("msbp: CTI1 entry %d: %w", i, err)
		}
		bl.filenames = append(bl.filenames, name)
	}
	return nil
}

func (bl *blocks) all(tags ...string) bool {
	for _, t := range tags {
		if !bl.have[t] {
			return false
		}
	}
	return true
}

// assemble joins complementary blocks into catalog sections. A missing
// block of a pair silently omits that section.
func (bl *blocks) assemble() (*Project, error) {
	p := &Project{byGroup: make(map[uint16]*TagGroup)}

	if bl.all("CLR1", "CLB1") {
		p.Colors = make([]NamedColor, 0, len(bl.colorLabels))
		for _, l := range bl.colorLabels {
			if int(l.Index) >= len(bl.colors) {
				return nil, fmt.Errorf("msbp: color label %q: index %d of %d: %w",
					l.Name, l.Index, len(bl.colors), bin.ErrIndexRange)
			}
			p.Colors = append(p.Colors, NamedColor{Name: l.Name, Color: bl.colors[l.Index]})
		}
	}

	if bl.all("ATI2", "ALB1", "ALI2") {
		return nil, fmt.Errorf("msbp: attribute blocks: %w", ErrUnimplemented)
	}

	if bl.all("TGG2", "TAG2", "TGP2", "TGL2") {
		for _, rg := range bl.groups {
			g := &TagGroup{Index: rg.index, Name: rg.name}
			for _, ti := range rg.tagIndices {
				if int(ti) >= len(bl.tags) {
					return nil, fmt.Errorf("msbp: group %q: tag index %d of %d: %w",
						rg.name, ti, len(bl.tags), bin.ErrIndexRange)
				}
				rt := bl.tags[ti]
				t := &Tag{Name: rt.name}
				for _, pi := range rt.paramIndices {
					if int(pi) >= len(bl.params) {
						return nil, fmt.Errorf("msbp: tag %q: param index %d of %d: %w",
							rt.name, pi, len(bl.params), bin.ErrIndexRange)
					}
					t.Params = append(t.Params, bl.params[pi])
				}
				g.Tags = append(g.Tags, t)
			}
			p.Groups = append(p.Groups, g)
			p.byGroup[g.Index] = g
		}
	}

	if bl.all("SYL3", "SLB1") {
		p.Styles = make([]NamedStyle, 0, len(bl.styleLabels))
		for _, l := range bl.styleLabels {
			if int(l.Index) >= len(bl.styles) {
				return nil, fmt.Errorf("msbp: style label %q: index %d of %d: %w",
					l.Name, l.Index, len(bl.styles), bin.ErrIndexRange)
			}
			p.Styles = append(p.Styles, NamedStyle{Name: l.Name, Style: bl.styles[l.Index]})
		}
	}

	if bl.have["CTI1"] {
		p.Filenames = bl.filenames
		if p.Filenames == nil {
			p.Filenames = []string{}
		}
	}

	return p, nil
}

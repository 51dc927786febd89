package msbp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ecurtin/romtext/internal/lms"
)

// Color is a packed 4-channel RGBA value.
type Color [4]byte

func (c Color) String() string {
	return fmt.Sprintf("0x%02x%02x%02x%02x", c[0], c[1], c[2], c[3])
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Param is one declared control-tag parameter. Items holds the
// enumerated choice values a ParamNull parameter carries inline.
type Param struct {
	Name  string
	Type  lms.ParamType
	Items []uint16
}

type Tag struct {
	Name   string
	Params []Param
}

type TagGroup struct {
	Index uint16
	Name  string
	Tags  []*Tag
}

type Style struct {
	RegionWidth    uint32
	LineNum        uint32
	FontIndex      uint32
	BaseColorIndex int32
}

type NamedColor struct {
	Name  string
	Color Color
}

type NamedStyle struct {
	Name  string
	Style Style
}

// Project is the assembled catalog. Each section is non-nil only when
// its complementary block pair (or quadruple) was present in the file.
// After FinalizeSystemTags the catalog is read-only and safe to share
// across concurrent message decodes.
type Project struct {
	Colors    []NamedColor
	Groups    []*TagGroup
	Styles    []NamedStyle
	Filenames []string

	byGroup map[uint16]*TagGroup
	sysOnce sync.Once
}

// Group looks up a tag group by its catalog index.
func (p *Project) Group(idx uint16) (*TagGroup, bool) {
	g, ok := p.byGroup[idx]
	return g, ok
}

// FinalizeSystemTags installs the hardcoded parameter schemas of the
// reserved system tags in group 0 (ruby text, page-wait percent, font
// index). Project files never carry full shapes for these, so message
// decoding needs this patch applied first. Calling it again is a no-op,
// so any number of message files may share one catalog.
func (p *Project) FinalizeSystemTags() {
	p.sysOnce.Do(func() {
		g, ok := p.byGroup[0]
		if !ok {
			return
		}
		set := func(i int, params []Param) {
			if i >= len(g.Tags) {
				slog.Warn("systemTagMissing", "tag", i, "have", len(g.Tags))
				return
			}
			g.Tags[i].Params = params
		}
		set(0, []Param{
			{Name: "replace", Type: lms.ParamU16},
			{Name: "rt", Type: lms.ParamString},
		})
		set(2, []Param{{Name: "percent", Type: lms.ParamU16}})
		set(3, []Param{{Name: "index", Type: lms.ParamI16}})
	})
}

func (p Param) MarshalJSON() ([]byte, error) {
	type jp struct {
		Name  string   `json:"name"`
		Type  int      `json:"type"`
		Items []uint16 `json:"items,omitempty"`
	}
	return json.Marshal(jp{Name: p.Name, Type: int(p.Type), Items: p.Items})
}

func (t *Tag) MarshalJSON() ([]byte, error) {
	type jt struct {
		Name   string  `json:"name"`
		Params []Param `json:"params"`
	}
	params := t.Params
	if params == nil {
		params = []Param{}
	}
	return json.Marshal(jt{Name: t.Name, Params: params})
}

func (g *TagGroup) MarshalJSON() ([]byte, error) {
	type jg struct {
		Name string `json:"name"`
		Tags []*Tag `json:"tags"`
	}
	tags := g.Tags
	if tags == nil {
		tags = []*Tag{}
	}
	return json.Marshal(jg{Name: g.Name, Tags: tags})
}

func (s Style) MarshalJSON() ([]byte, error) {
	type js struct {
		RegionWidth    uint32 `json:"region_width"`
		LineNum        uint32 `json:"line_num"`
		FontIndex      uint32 `json:"font_index"`
		BaseColorIndex int32  `json:"base_color_index"`
	}
	return json.Marshal(js(s))
}

// MarshalJSON writes the catalog with only the populated sections, each
// in its decode order (label order for colors/styles, file order for
// tag groups and filenames).
func (p *Project) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	section := func(name string) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Quote(name))
		b.WriteByte(':')
	}

	if p.Colors != nil {
		section("colors")
		b.WriteByte('{')
		for i, nc := range p.Colors {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(nc.Name))
			b.WriteByte(':')
			b.WriteString(strconv.Quote(nc.Color.String()))
		}
		b.WriteByte('}')
	}
	if p.Groups != nil {
		section("tags")
		b.WriteByte('{')
		for i, g := range p.Groups {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(strconv.Itoa(int(g.Index))))
			b.WriteByte(':')
			gj, err := json.Marshal(g)
			if err != nil {
				return nil, err
			}
			b.Write(gj)
		}
		b.WriteByte('}')
	}
	if p.Styles != nil {
		section("styles")
		b.WriteByte('{')
		for i, ns := range p.Styles {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(ns.Name))
			b.WriteByte(':')
			sj, err := json.Marshal(ns.Style)
			if err != nil {
				return nil, err
			}
			b.Write(sj)
		}
		b.WriteByte('}')
	}
	if p.Filenames != nil {
		section("filenames")
		fj, err := json.Marshal(p.Filenames)
		if err != nil {
			return nil, err
		}
		b.Write(fj)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

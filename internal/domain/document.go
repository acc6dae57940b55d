package domain

import (
	"encoding/json"
	"fmt"
)

// ElementType discriminates the variants of an Element.
type ElementType string

const (
	ElementTypeCodeEditor ElementType = "code-editor"
	ElementTypeText       ElementType = "text"
)

type TextAlign string

const (
	TextAlignLeft   TextAlign = "left"
	TextAlignCenter TextAlign = "center"
	TextAlignRight  TextAlign = "right"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform carries size, rotation, scale and position of an element.
// AspectRatio is captured when WidthHeightLinked is switched on and is
// meaningless otherwise.
type Transform struct {
	Width             float64  `json:"width"`
	Height            float64  `json:"height"`
	MinWidth          float64  `json:"minWidth"`
	MinHeight         float64  `json:"minHeight"`
	AutoWidth         bool     `json:"autoWidth"`
	AutoHeight        bool     `json:"autoHeight"`
	WidthHeightLinked bool     `json:"widthHeightLinked"`
	AspectRatio       float64  `json:"aspectRatio,omitempty"`
	Rotation          float64  `json:"rotation"`
	Scale             float64  `json:"scale"`
	Position          Position `json:"position"`
}

// ElementData is the variant-specific payload of an Element. Only
// *CodeEditorData and *TextData implement it.
type ElementData interface {
	ElementType() ElementType
	clone() ElementData
}

type CodeEditorData struct {
	Code            string  `json:"code"`
	Language        string  `json:"language"`
	FontSize        float64 `json:"fontSize"`
	LineHeight      float64 `json:"lineHeight"`
	ShowLineNumbers bool    `json:"showLineNumbers"`
	Theme           string  `json:"theme"`
	Padding         float64 `json:"padding"`
}

func (*CodeEditorData) ElementType() ElementType { return ElementTypeCodeEditor }

func (d *CodeEditorData) clone() ElementData {
	c := *d
	return &c
}

// TextData holds a text element. Value is an opaque rich-text string.
type TextData struct {
	Value      string    `json:"value"`
	Align      TextAlign `json:"align"`
	Color      string    `json:"color"`
	Background string    `json:"background,omitempty"`
	FontFamily string    `json:"fontFamily"`
	FontSize   float64   `json:"fontSize"`
	FontWeight int       `json:"fontWeight"`
	Italic     bool      `json:"italic"`
}

func (*TextData) ElementType() ElementType { return ElementTypeText }

func (d *TextData) clone() ElementData {
	c := *d
	return &c
}

// Element is one positioned content unit on the canvas.
type Element struct {
	ID        string
	Name      string
	Transform Transform
	Hidden    bool
	Locked    bool
	Data      ElementData
}

// Type returns the variant tag, or "" when Data is unset.
func (e Element) Type() ElementType {
	if e.Data == nil {
		return ""
	}
	return e.Data.ElementType()
}

// Clone returns a deep copy that shares no memory with e.
func (e Element) Clone() Element {
	c := e
	if e.Data != nil {
		c.Data = e.Data.clone()
	}
	return c
}

type elementHeader struct {
	ID        string      `json:"id"`
	Type      ElementType `json:"type"`
	Name      string      `json:"name"`
	Transform Transform   `json:"transform"`
	Hidden    bool        `json:"hidden"`
	Locked    bool        `json:"locked"`
}

// MarshalJSON flattens the variant fields next to the common ones.
func (e Element) MarshalJSON() ([]byte, error) {
	h := elementHeader{
		ID:        e.ID,
		Type:      e.Type(),
		Name:      e.Name,
		Transform: e.Transform,
		Hidden:    e.Hidden,
		Locked:    e.Locked,
	}
	switch d := e.Data.(type) {
	case *CodeEditorData:
		return json.Marshal(struct {
			elementHeader
			*CodeEditorData
		}{h, d})
	case *TextData:
		return json.Marshal(struct {
			elementHeader
			*TextData
		}{h, d})
	default:
		return nil, fmt.Errorf("marshal element %q: %w", e.ID, ErrUnknownElementType)
	}
}

func (e *Element) UnmarshalJSON(b []byte) error {
	var h elementHeader
	if err := json.Unmarshal(b, &h); err != nil {
		return err
	}

	var data ElementData
	switch h.Type {
	case ElementTypeCodeEditor:
		data = &CodeEditorData{}
	case ElementTypeText:
		data = &TextData{}
	default:
		return fmt.Errorf("element %q type %q: %w", h.ID, h.Type, ErrUnknownElementType)
	}
	if err := json.Unmarshal(b, data); err != nil {
		return fmt.Errorf("decode %s element: %w", h.Type, err)
	}

	*e = Element{
		ID:        h.ID,
		Name:      h.Name,
		Transform: h.Transform,
		Hidden:    h.Hidden,
		Locked:    h.Locked,
		Data:      data,
	}
	return nil
}

// ── Canvas ──────────────────────────────────────────────────

type FillType string

const (
	FillSolid          FillType = "solid"
	FillLinearGradient FillType = "linear-gradient"
)

type GradientStop struct {
	Color  string  `json:"color"`
	Offset float64 `json:"offset"`
}

// Fill is a solid color or a linear gradient, discriminated by Type.
type Fill struct {
	Type  FillType       `json:"type"`
	Color string         `json:"color,omitempty"`
	Angle float64        `json:"angle,omitempty"`
	Stops []GradientStop `json:"stops,omitempty"`
}

type BackgroundImage struct {
	Src     string  `json:"src"`
	Opacity float64 `json:"opacity"`
}

type Background struct {
	Fill  *Fill            `json:"fill,omitempty"`
	Image *BackgroundImage `json:"image,omitempty"`
}

type Canvas struct {
	Width             float64    `json:"width"`
	Height            float64    `json:"height"`
	WidthHeightLinked bool       `json:"widthHeightLinked"`
	AspectRatio       float64    `json:"aspectRatio,omitempty"`
	Padding           float64    `json:"padding"`
	Background        Background `json:"background"`
}

// Clone returns a deep copy of the canvas.
func (c Canvas) Clone() Canvas {
	out := c
	if c.Background.Fill != nil {
		f := *c.Background.Fill
		if c.Background.Fill.Stops != nil {
			f.Stops = append([]GradientStop(nil), c.Background.Fill.Stops...)
		}
		out.Background.Fill = &f
	}
	if c.Background.Image != nil {
		img := *c.Background.Image
		out.Background.Image = &img
	}
	return out
}

// ── Document ────────────────────────────────────────────────

// Document is the full serializable snippet state. Elements are z-ordered:
// index 0 is drawn on top.
type Document struct {
	Canvas   Canvas    `json:"canvas"`
	Elements []Element `json:"elements"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document{
		Canvas:   d.Canvas.Clone(),
		Elements: CloneElements(d.Elements),
	}
}

// CloneElements deep-copies an element sequence, preserving nil.
func CloneElements(els []Element) []Element {
	if els == nil {
		return nil
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = el.Clone()
	}
	return out
}

// DocumentPatch is a partial document. A nil field is absent and left
// untouched when merged; a non-nil Elements slice (even empty) replaces
// the whole sequence.
type DocumentPatch struct {
	Canvas   *Canvas   `json:"canvas,omitempty"`
	Elements []Element `json:"elements"`
}

// Empty reports whether the patch carries no fields.
func (p DocumentPatch) Empty() bool {
	return p.Canvas == nil && p.Elements == nil
}

// Apply returns d with the fields present in p replaced.
func (p DocumentPatch) Apply(d Document) Document {
	out := d.Clone()
	if p.Canvas != nil {
		out.Canvas = p.Canvas.Clone()
	}
	if p.Elements != nil {
		out.Elements = CloneElements(p.Elements)
	}
	return out
}

// Merge layers next over p; fields present in next win.
func (p DocumentPatch) Merge(next DocumentPatch) DocumentPatch {
	out := p
	if next.Canvas != nil {
		out.Canvas = next.Canvas
	}
	if next.Elements != nil {
		out.Elements = next.Elements
	}
	return out
}

// PatchFrom returns a patch carrying every field of d.
func PatchFrom(d Document) DocumentPatch {
	c := d.Canvas.Clone()
	els := CloneElements(d.Elements)
	if els == nil {
		els = []Element{}
	}
	return DocumentPatch{Canvas: &c, Elements: els}
}

package domain

// ElementPatch updates the fields of an element. Exactly one of Code or
// Text may be set, matching the element's variant.
type ElementPatch struct {
	Name   *string `json:"name,omitempty"`
	Hidden *bool   `json:"hidden,omitempty"`
	Locked *bool   `json:"locked,omitempty"`

	Code *CodeEditorPatch `json:"code,omitempty"`
	Text *TextPatch       `json:"text,omitempty"`
}

type CodeEditorPatch struct {
	Code            *string  `json:"code,omitempty"`
	Language        *string  `json:"language,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	LineHeight      *float64 `json:"lineHeight,omitempty"`
	ShowLineNumbers *bool    `json:"showLineNumbers,omitempty"`
	Theme           *string  `json:"theme,omitempty"`
	Padding         *float64 `json:"padding,omitempty"`
}

func (p *CodeEditorPatch) apply(d *CodeEditorData) {
	if p.Code != nil {
		d.Code = *p.Code
	}
	if p.Language != nil {
		d.Language = *p.Language
	}
	if p.FontSize != nil {
		d.FontSize = *p.FontSize
	}
	if p.LineHeight != nil {
		d.LineHeight = *p.LineHeight
	}
	if p.ShowLineNumbers != nil {
		d.ShowLineNumbers = *p.ShowLineNumbers
	}
	if p.Theme != nil {
		d.Theme = *p.Theme
	}
	if p.Padding != nil {
		d.Padding = *p.Padding
	}
}

type TextPatch struct {
	Value      *string    `json:"value,omitempty"`
	Align      *TextAlign `json:"align,omitempty"`
	Color      *string    `json:"color,omitempty"`
	Background *string    `json:"background,omitempty"`
	FontFamily *string    `json:"fontFamily,omitempty"`
	FontSize   *float64   `json:"fontSize,omitempty"`
	FontWeight *int       `json:"fontWeight,omitempty"`
	Italic     *bool      `json:"italic,omitempty"`
}

func (p *TextPatch) apply(d *TextData) {
	if p.Value != nil {
		d.Value = *p.Value
	}
	if p.Align != nil {
		d.Align = *p.Align
	}
	if p.Color != nil {
		d.Color = *p.Color
	}
	if p.Background != nil {
		d.Background = *p.Background
	}
	if p.FontFamily != nil {
		d.FontFamily = *p.FontFamily
	}
	if p.FontSize != nil {
		d.FontSize = *p.FontSize
	}
	if p.FontWeight != nil {
		d.FontWeight = *p.FontWeight
	}
	if p.Italic != nil {
		d.Italic = *p.Italic
	}
}

// ApplyTo returns a copy of e with the patch applied. ok is false when the
// patch carries fields of the other variant; e is then returned unchanged.
func (p ElementPatch) ApplyTo(e Element) (out Element, ok bool) {
	out = e.Clone()
	switch d := out.Data.(type) {
	case *CodeEditorData:
		if p.Text != nil {
			return e, false
		}
		if p.Code != nil {
			p.Code.apply(d)
		}
	case *TextData:
		if p.Code != nil {
			return e, false
		}
		if p.Text != nil {
			p.Text.apply(d)
		}
	default:
		return e, false
	}

	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Hidden != nil {
		out.Hidden = *p.Hidden
	}
	if p.Locked != nil {
		out.Locked = *p.Locked
	}
	return out, true
}

// TransformPatch is a partial transform update. Width and Height interact
// with WidthHeightLinked; see the editor package for the resize rules.
type TransformPatch struct {
	Width             *float64  `json:"width,omitempty"`
	Height            *float64  `json:"height,omitempty"`
	MinWidth          *float64  `json:"minWidth,omitempty"`
	MinHeight         *float64  `json:"minHeight,omitempty"`
	AutoWidth         *bool     `json:"autoWidth,omitempty"`
	AutoHeight        *bool     `json:"autoHeight,omitempty"`
	WidthHeightLinked *bool     `json:"widthHeightLinked,omitempty"`
	Rotation          *float64  `json:"rotation,omitempty"`
	Scale             *float64  `json:"scale,omitempty"`
	Position          *Position `json:"position,omitempty"`
}

// CanvasPatch is a partial canvas update.
type CanvasPatch struct {
	Width             *float64    `json:"width,omitempty"`
	Height            *float64    `json:"height,omitempty"`
	WidthHeightLinked *bool       `json:"widthHeightLinked,omitempty"`
	Padding           *float64    `json:"padding,omitempty"`
	Background        *Background `json:"background,omitempty"`
}

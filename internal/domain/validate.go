package domain

import (
	"fmt"
	"math"
)

// Validate checks the document against the schema rules. Every failure
// wraps ErrInvalidDocument.
func (d Document) Validate() error {
	if err := d.Canvas.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(d.Elements))
	for i, el := range d.Elements {
		if err := el.Validate(); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if seen[el.ID] {
			return fmt.Errorf("%w: duplicate element id %q", ErrInvalidDocument, el.ID)
		}
		seen[el.ID] = true
	}
	return nil
}

func (c Canvas) Validate() error {
	if !positive(c.Width) || !positive(c.Height) {
		return fmt.Errorf("%w: canvas size %vx%v", ErrInvalidDocument, c.Width, c.Height)
	}
	if c.Padding < 0 || !finite(c.Padding) {
		return fmt.Errorf("%w: canvas padding %v", ErrInvalidDocument, c.Padding)
	}
	if f := c.Background.Fill; f != nil {
		switch f.Type {
		case FillSolid:
			if f.Color == "" {
				return fmt.Errorf("%w: solid fill without color", ErrInvalidDocument)
			}
		case FillLinearGradient:
			if len(f.Stops) < 2 {
				return fmt.Errorf("%w: gradient needs at least two stops", ErrInvalidDocument)
			}
		default:
			return fmt.Errorf("%w: fill type %q", ErrInvalidDocument, f.Type)
		}
	}
	if img := c.Background.Image; img != nil {
		if img.Src == "" || img.Opacity < 0 || img.Opacity > 1 {
			return fmt.Errorf("%w: background image", ErrInvalidDocument)
		}
	}
	return nil
}

func (e Element) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: element without id", ErrInvalidDocument)
	}
	switch d := e.Data.(type) {
	case *CodeEditorData:
		if d.FontSize <= 0 {
			return fmt.Errorf("%w: code editor font size %v", ErrInvalidDocument, d.FontSize)
		}
	case *TextData:
		if d.FontSize <= 0 {
			return fmt.Errorf("%w: text font size %v", ErrInvalidDocument, d.FontSize)
		}
		switch d.Align {
		case TextAlignLeft, TextAlignCenter, TextAlignRight:
		default:
			return fmt.Errorf("%w: text align %q", ErrInvalidDocument, d.Align)
		}
	default:
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrUnknownElementType)
	}
	return e.Transform.Validate()
}

func (t Transform) Validate() error {
	for _, v := range []float64{t.Width, t.Height, t.MinWidth, t.MinHeight, t.Rotation, t.Position.X, t.Position.Y} {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite transform value", ErrInvalidDocument)
		}
	}
	if t.MinWidth < 0 || t.MinHeight < 0 {
		return fmt.Errorf("%w: negative minimum size", ErrInvalidDocument)
	}
	if t.Width < t.MinWidth || t.Height < t.MinHeight {
		return fmt.Errorf("%w: size %vx%v below minimum %vx%v",
			ErrInvalidDocument, t.Width, t.Height, t.MinWidth, t.MinHeight)
	}
	if !positive(t.Scale) {
		return fmt.Errorf("%w: scale %v", ErrInvalidDocument, t.Scale)
	}
	return nil
}

func positive(v float64) bool { return v > 0 && finite(v) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

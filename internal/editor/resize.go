package editor

import "snippets/internal/domain"

// box is the part of a canvas or element transform that linked resize
// operates on.
type box struct {
	width, height       float64
	minWidth, minHeight float64
	linked              bool
	ratio               float64
}

// resize applies a link toggle and a width/height update to b.
//
// The ratio is captured from the current size when linking is switched on,
// or on first use when a linked box arrives without one. While linked, a
// single supplied dimension derives the other from the ratio; supplying
// both applies them as given and redefines the ratio. Minimums are
// enforced last.
func resize(b box, link *bool, width, height *float64) box {
	if link != nil {
		switch {
		case *link && !b.linked:
			b.linked = true
			b.ratio = ratioOf(b.width, b.height)
		case !*link:
			b.linked = false
			b.ratio = 0
		}
	}

	if b.linked && b.ratio <= 0 {
		b.ratio = ratioOf(b.width, b.height)
	}

	derive := b.linked && b.ratio > 0
	switch {
	case width != nil && height != nil:
		b.width, b.height = *width, *height
		if b.linked {
			b.ratio = ratioOf(b.width, b.height)
		}
	case width != nil:
		b.width = *width
		if derive {
			b.height = b.width / b.ratio
		}
	case height != nil:
		b.height = *height
		if derive {
			b.width = b.height * b.ratio
		}
	}

	if b.width < b.minWidth {
		b.width = b.minWidth
		if derive {
			b.height = b.width / b.ratio
		}
	}
	if b.height < b.minHeight {
		b.height = b.minHeight
		if derive {
			b.width = b.height * b.ratio
		}
	}
	return b
}

func ratioOf(w, h float64) float64 {
	if h <= 0 {
		return 0
	}
	return w / h
}

// applyTransform merges p into t.
func applyTransform(t domain.Transform, p domain.TransformPatch) domain.Transform {
	if p.MinWidth != nil {
		t.MinWidth = *p.MinWidth
	}
	if p.MinHeight != nil {
		t.MinHeight = *p.MinHeight
	}
	if p.AutoWidth != nil {
		t.AutoWidth = *p.AutoWidth
	}
	if p.AutoHeight != nil {
		t.AutoHeight = *p.AutoHeight
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		t.Scale = *p.Scale
	}
	if p.Position != nil {
		t.Position = *p.Position
	}

	b := resize(box{
		width:     t.Width,
		height:    t.Height,
		minWidth:  t.MinWidth,
		minHeight: t.MinHeight,
		linked:    t.WidthHeightLinked,
		ratio:     t.AspectRatio,
	}, p.WidthHeightLinked, p.Width, p.Height)

	t.Width, t.Height = b.width, b.height
	t.WidthHeightLinked, t.AspectRatio = b.linked, b.ratio
	return t
}

// applyCanvas merges p into c. The canvas has no minimum size beyond 1px.
func applyCanvas(c domain.Canvas, p domain.CanvasPatch) domain.Canvas {
	if p.Padding != nil {
		c.Padding = *p.Padding
	}
	if p.Background != nil {
		c.Background = domain.Canvas{Background: *p.Background}.Clone().Background
	}

	b := resize(box{
		width:     c.Width,
		height:    c.Height,
		minWidth:  1,
		minHeight: 1,
		linked:    c.WidthHeightLinked,
		ratio:     c.AspectRatio,
	}, p.WidthHeightLinked, p.Width, p.Height)

	c.Width, c.Height = b.width, b.height
	c.WidthHeightLinked, c.AspectRatio = b.linked, b.ratio
	return c
}

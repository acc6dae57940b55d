package editor

import "snippets/internal/domain"

// Alignment places an element against the canvas along one axis.
type Alignment string

const (
	AlignStartHorizontal  Alignment = "start-horizontal"
	AlignCenterHorizontal Alignment = "center-horizontal"
	AlignEndHorizontal    Alignment = "end-horizontal"
	AlignStartVertical    Alignment = "start-vertical"
	AlignCenterVertical   Alignment = "center-vertical"
	AlignEndVertical      Alignment = "end-vertical"
)

// Valid reports whether a is one of the six known alignments.
func (a Alignment) Valid() bool {
	switch a {
	case AlignStartHorizontal, AlignCenterHorizontal, AlignEndHorizontal,
		AlignStartVertical, AlignCenterVertical, AlignEndVertical:
		return true
	}
	return false
}

// align returns the new position of an element with transform t on canvas c.
// Only the axis named by a changes. The effective extent is size*scale.
func align(c domain.Canvas, t domain.Transform, a Alignment) domain.Position {
	p := t.Position
	w := t.Width * t.Scale
	h := t.Height * t.Scale

	switch a {
	case AlignStartHorizontal:
		p.X = 0
	case AlignCenterHorizontal:
		p.X = c.Width/2 - w/2
	case AlignEndHorizontal:
		p.X = c.Width - w
	case AlignStartVertical:
		p.Y = 0
	case AlignCenterVertical:
		p.Y = c.Height/2 - h/2
	case AlignEndVertical:
		p.Y = c.Height - h
	}
	return p
}

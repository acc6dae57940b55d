package mcpserver

import (
	"math"

	"snippets/internal/domain"
)

const (
	GridSize = 8.0
	Gap      = 16.0 // space kept between placed elements
)

// LayoutEngine places agent-created elements on the canvas so they don't
// overlap existing ones.
type LayoutEngine struct {
	gridSize float64
	gap      float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		gap:      Gap,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// bounds is the on-canvas extent of an element, scale included.
func bounds(t domain.Transform) rect {
	scale := t.Scale
	if scale <= 0 {
		scale = 1
	}
	return rect{t.Position.X, t.Position.Y, t.Width * scale, t.Height * scale}
}

// NextPosition finds the first free grid position for an element of size
// (newW, newH) inside the canvas padding. Hidden elements do not block.
// When nothing fits it returns the padding corner.
func (le *LayoutEngine) NextPosition(c domain.Canvas, existing []domain.Element, newW, newH float64) domain.Position {
	origin := le.snap(c.Padding)
	occupied := make([]rect, 0, len(existing))
	for _, el := range existing {
		if !el.Hidden {
			occupied = append(occupied, bounds(el.Transform))
		}
	}

	candidate := rect{w: newW, h: newH}
	for y := origin; y+newH <= c.Height-c.Padding; y += le.gridSize {
		for x := origin; x+newW <= c.Width-c.Padding; x += le.gridSize {
			candidate.x, candidate.y = x, y

			overlaps := false
			for _, occ := range occupied {
				padded := rect{
					x: occ.x - le.gap,
					y: occ.y - le.gap,
					w: occ.w + le.gap*2,
					h: occ.h + le.gap*2,
				}
				if candidate.intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return domain.Position{X: x, Y: y}
			}
		}
	}
	return domain.Position{X: origin, Y: origin}
}

// Arrange lays elements out left to right in rows inside the canvas
// padding, wrapping when a row is full. It returns one position per
// element, in order.
func (le *LayoutEngine) Arrange(c domain.Canvas, els []domain.Element) []domain.Position {
	start := le.snap(c.Padding)
	maxX := c.Width - c.Padding
	x, y := start, start
	rowHeight := 0.0

	out := make([]domain.Position, len(els))
	for i, el := range els {
		b := bounds(el.Transform)
		if x > start && x+b.w > maxX {
			x = start
			y += le.snap(rowHeight + le.gap)
			rowHeight = 0
		}
		out[i] = domain.Position{X: x, Y: y}
		if b.h > rowHeight {
			rowHeight = b.h
		}
		x += le.snap(b.w + le.gap)
	}
	return out
}

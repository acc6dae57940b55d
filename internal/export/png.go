// Package export rasterizes snippet documents to PNG and PDF.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"snippets/internal/domain"
	"snippets/internal/richtext"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

const (
	MaxScale = 4
	// maxPixels bounds the raster so a hostile canvas size cannot exhaust memory.
	maxPixels = 64 << 20
)

var ErrTooLarge = errors.New("export: canvas too large")

// renderMu serializes drawing; the cached font faces are not safe for
// concurrent use.
var renderMu sync.Mutex

type Options struct {
	// Scale multiplies the canvas size in pixels; 0 means 1.
	Scale float64
	// Title is stored in PDF metadata.
	Title string
}

func (o Options) scale() float64 {
	switch {
	case o.Scale <= 0:
		return 1
	case o.Scale > MaxScale:
		return MaxScale
	}
	return o.Scale
}

// PNG writes doc as a PNG image.
func PNG(w io.Writer, doc domain.Document, opts Options) error {
	dc, err := render(doc, opts.scale())
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// Render draws doc and returns the image.
func Render(doc domain.Document, opts Options) (image.Image, error) {
	dc, err := render(doc, opts.scale())
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

func render(doc domain.Document, scale float64) (*gg.Context, error) {
	if err := doc.Canvas.Validate(); err != nil {
		return nil, err
	}
	w := int(math.Ceil(doc.Canvas.Width * scale))
	h := int(math.Ceil(doc.Canvas.Height * scale))
	if w*h > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}

	renderMu.Lock()
	defer renderMu.Unlock()

	dc := gg.NewContext(w, h)
	dc.Scale(scale, scale)
	drawBackground(dc, doc.Canvas)

	// Index 0 is the topmost element, so draw from the end.
	for i := len(doc.Elements) - 1; i >= 0; i-- {
		el := doc.Elements[i]
		if el.Hidden || el.Data == nil {
			continue
		}
		if err := drawElement(dc, el); err != nil {
			return nil, fmt.Errorf("draw element %s: %w", el.ID, err)
		}
	}
	return dc, nil
}

// ── Background ──────────────────────────────────────────────

func drawBackground(dc *gg.Context, c domain.Canvas) {
	dc.SetColor(color.White)
	dc.DrawRectangle(0, 0, c.Width, c.Height)
	dc.Fill()

	if f := c.Background.Fill; f != nil {
		switch f.Type {
		case domain.FillSolid:
			dc.SetColor(parseHexColor(f.Color))
		case domain.FillLinearGradient:
			dc.SetFillStyle(linearGradient(f, c.Width, c.Height))
		}
		dc.DrawRectangle(0, 0, c.Width, c.Height)
		dc.Fill()
	}
	if img := c.Background.Image; img != nil {
		src, err := decodeDataURL(img.Src)
		if err == nil {
			drawCover(dc, src, c.Width, c.Height, img.Opacity)
		}
	}
}

// linearGradient follows CSS angles: 0 points up, 90 points right, and the
// gradient line is long enough for the corners to reach the end stops.
func linearGradient(f *domain.Fill, w, h float64) gg.Gradient {
	rad := gg.Radians(f.Angle)
	dx, dy := math.Sin(rad), -math.Cos(rad)
	half := (math.Abs(w*dx) + math.Abs(h*dy)) / 2
	cx, cy := w/2, h/2
	g := gg.NewLinearGradient(cx-dx*half, cy-dy*half, cx+dx*half, cy+dy*half)
	for _, s := range f.Stops {
		g.AddColorStop(s.Offset, parseHexColor(s.Color))
	}
	return g
}

// decodeDataURL accepts data:image/png;base64 and data:image/jpeg;base64
// sources. Remote URLs are not fetched.
func decodeDataURL(src string) (image.Image, error) {
	const prefix = "data:"
	if !strings.HasPrefix(src, prefix) {
		return nil, errors.New("unsupported image source")
	}
	meta, data, ok := strings.Cut(src[len(prefix):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("malformed data url")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

// drawCover scales src to cover w x h, crops the overflow and blends it
// with the given opacity.
func drawCover(dc *gg.Context, src image.Image, w, h, opacity float64) {
	if opacity <= 0 {
		return
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	k := math.Max(w/float64(sb.Dx()), h/float64(sb.Dy()))
	cropW := int(math.Round(w / k))
	cropH := int(math.Round(h / k))
	x0 := sb.Min.X + (sb.Dx()-cropW)/2
	y0 := sb.Min.Y + (sb.Dy()-cropH)/2
	crop := image.Rect(x0, y0, x0+cropW, y0+cropH)

	layer := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(w)), int(math.Ceil(h))))
	a := uint8(math.Round(math.Min(opacity, 1) * 255))
	xdraw.CatmullRom.Scale(layer, layer.Bounds(), src, crop, xdraw.Over, &xdraw.Options{
		SrcMask: image.NewUniform(color.Alpha{A: a}),
	})
	dc.DrawImage(layer, 0, 0)
}

// ── Elements ────────────────────────────────────────────────

func drawElement(dc *gg.Context, el domain.Element) error {
	t := el.Transform
	scale := t.Scale
	if scale <= 0 {
		scale = 1
	}
	cx := t.Position.X + t.Width*scale/2
	cy := t.Position.Y + t.Height*scale/2

	dc.Push()
	defer dc.Pop()
	dc.RotateAbout(gg.Radians(t.Rotation), cx, cy)
	dc.Translate(t.Position.X, t.Position.Y)
	dc.Scale(scale, scale)

	switch d := el.Data.(type) {
	case *domain.CodeEditorData:
		return drawCode(dc, d, t.Width, t.Height)
	case *domain.TextData:
		return drawText(dc, d, t.Width, t.Height)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownElementType, el.Type())
}

type codeTheme struct {
	background, foreground, gutter, bar string
}

var codeThemes = map[string]codeTheme{
	"dark":  {background: "#1e1e2e", foreground: "#cdd6f4", gutter: "#6c7086", bar: "#181825"},
	"light": {background: "#ffffff", foreground: "#1f2328", gutter: "#8c959f", bar: "#f6f8fa"},
}

const (
	cornerRadius = 10
	barHeight    = 32
)

func drawCode(dc *gg.Context, d *domain.CodeEditorData, w, h float64) error {
	theme, ok := codeThemes[d.Theme]
	if !ok {
		theme = codeThemes["dark"]
	}

	dc.DrawRoundedRectangle(0, 0, w, h, cornerRadius)
	dc.Clip()
	defer dc.ResetClip()

	dc.SetHexColor(theme.background)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
	dc.SetHexColor(theme.bar)
	dc.DrawRectangle(0, 0, w, barHeight)
	dc.Fill()
	for i, c := range []string{"#ff5f57", "#febc2e", "#28c840"} {
		dc.SetHexColor(c)
		dc.DrawCircle(18+float64(i)*20, barHeight/2, 6)
		dc.Fill()
	}

	face, err := fontFace(familyMono, false, false, d.FontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	lineHeight := d.FontSize * d.LineHeight
	if lineHeight <= 0 {
		lineHeight = d.FontSize * 1.4
	}
	lines := strings.Split(strings.ReplaceAll(d.Code, "\t", "    "), "\n")

	x := d.Padding
	if d.ShowLineNumbers {
		digits := len(fmt.Sprint(len(lines)))
		gw, _ := dc.MeasureString(strings.Repeat("0", digits))
		dc.SetHexColor(theme.gutter)
		for i := range lines {
			y := barHeight + d.Padding + float64(i)*lineHeight
			dc.DrawStringAnchored(fmt.Sprint(i+1), x+gw, y, 1, 1)
		}
		x += gw + d.FontSize
	}
	dc.SetHexColor(theme.foreground)
	for i, line := range lines {
		y := barHeight + d.Padding + float64(i)*lineHeight
		if y > h {
			break
		}
		dc.DrawStringAnchored(line, x, y, 0, 1)
	}
	return nil
}

func drawText(dc *gg.Context, d *domain.TextData, w, h float64) error {
	if d.Background != "" {
		dc.SetColor(parseHexColor(d.Background))
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
	}

	face, err := fontFace(familyFor(d.FontFamily), d.FontWeight >= 600, d.Italic, d.FontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetColor(parseHexColor(d.Color))

	align := gg.AlignLeft
	switch d.Align {
	case domain.TextAlignCenter:
		align = gg.AlignCenter
	case domain.TextAlignRight:
		align = gg.AlignRight
	}
	dc.DrawStringWrapped(richtext.PlainText(d.Value), 0, 0, 0, 0, w, 1.2, align)
	return nil
}

// parseHexColor accepts #rgb, #rgba, #rrggbb and #rrggbbaa. Anything else
// is black.
func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 || len(s) == 4 {
		var b strings.Builder
		for _, r := range s {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		s = b.String()
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.Black
	}
	var v [4]uint8
	for i := range v {
		n, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.Black
		}
		v[i] = uint8(n)
	}
	return color.NRGBA{R: v[0], G: v[1], B: v[2], A: v[3]}
}

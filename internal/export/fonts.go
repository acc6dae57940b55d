package export

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

type family int

const (
	familySans family = iota
	familyMono
)

// familyFor maps a CSS font-family list onto the bundled Go fonts.
func familyFor(css string) family {
	css = strings.ToLower(css)
	for _, mono := range []string{"mono", "code", "courier", "consolas", "menlo"} {
		if strings.Contains(css, mono) {
			return familyMono
		}
	}
	return familySans
}

type fontKey struct {
	family       family
	bold, italic bool
}

var (
	fontsMu sync.Mutex
	fonts   = map[fontKey]*truetype.Font{}
	faces   = map[faceKey]font.Face{}
)

type faceKey struct {
	fontKey
	size float64
}

func fontData(k fontKey) []byte {
	if k.family == familyMono {
		if k.bold {
			return gomonobold.TTF
		}
		return gomono.TTF
	}
	switch {
	case k.bold && k.italic:
		return gobolditalic.TTF
	case k.bold:
		return gobold.TTF
	case k.italic:
		return goitalic.TTF
	}
	return goregular.TTF
}

// fontFace returns a cached face. Callers draw under renderMu.
func fontFace(f family, bold, italic bool, size float64) (font.Face, error) {
	if size <= 0 {
		size = 14
	}
	fontsMu.Lock()
	defer fontsMu.Unlock()

	fk := fontKey{family: f, bold: bold, italic: italic}
	key := faceKey{fontKey: fk, size: size}
	if face, ok := faces[key]; ok {
		return face, nil
	}
	ttf, ok := fonts[fk]
	if !ok {
		var err error
		ttf, err = truetype.Parse(fontData(fk))
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		fonts[fk] = ttf
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faces[key] = face
	return face, nil
}

package export

import (
	"bytes"
	"fmt"
	"io"

	"snippets/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

// PDF writes doc as a single-page PDF sized to the canvas, in points, with
// the rendered PNG filling the page.
func PDF(w io.Writer, doc domain.Document, opts Options) error {
	var img bytes.Buffer
	if err := PNG(&img, doc, opts); err != nil {
		return err
	}

	width, height := doc.Canvas.Width, doc.Canvas.Height
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.SetCreator("snippets", true)
	if opts.Title != "" {
		p.SetTitle(opts.Title, true)
	}
	p.AddPage()

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("canvas", imgOpts, &img)
	p.ImageOptions("canvas", 0, 0, width, height, false, imgOpts, 0, "")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/sync/errgroup"
)

// importSpec places each page image centered on an A4 page, scaled to fit.
// The images already carry the margins, so they fill the page exactly.
const importSpec = "form:A4, pos:c, sc:1.0"

var disableConfigDir sync.Once

func pdfConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	return model.NewDefaultConfiguration()
}

// ClippedWidth reports how many device pixels of capture lie right of the
// printable band and are dropped by Paginate.
func ClippedWidth(capture image.Image, scale int) int {
	if over := capture.Bounds().Dx() - ContentWidthCSS*scale; over > 0 {
		return over
	}
	return 0
}

// Paginate slices a full-document capture into page-height bands and places
// each band at its margin offset on a white A4 canvas. scale is the device
// pixel ratio of the capture. Content wider than the band is clipped; see
// ClippedWidth.
func Paginate(capture image.Image, scale int) ([]image.Image, error) {
	bounds := capture.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyCapture
	}

	margin := MarginCSS * scale
	pageW, pageH := PageWidthCSS*scale, PageHeightCSS*scale
	bandW, bandH := ContentWidthCSS*scale, ContentHeightCSS*scale

	count := (bounds.Dy() + bandH - 1) / bandH
	pages := make([]image.Image, 0, count)
	for i := 0; i < count; i++ {
		top := bounds.Min.Y + i*bandH
		band := image.Rect(bounds.Min.X, top, bounds.Min.X+bandW, top+bandH).Intersect(bounds)

		canvas := image.NewRGBA(image.Rect(0, 0, pageW, pageH))
		draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
		dst := image.Rect(margin, margin, margin+band.Dx(), margin+band.Dy())
		draw.Draw(canvas, dst, capture, band.Min, draw.Src)
		pages = append(pages, canvas)
	}
	return pages, nil
}

// Assemble encodes page images and writes them as a multi-page A4 PDF.
func Assemble(ctx context.Context, pages []image.Image) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrEmptyCapture
	}

	encoded := make([][]byte, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, page); err != nil {
				return fmt.Errorf("encode page %d: %w", i+1, err)
			}
			encoded[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imp, err := api.Import(importSpec, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("parse import spec: %w", err)
	}

	readers := make([]io.Reader, len(encoded))
	for i, data := range encoded {
		readers[i] = bytes.NewReader(data)
	}

	conf := pdfConfig()
	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, imp, conf); err != nil {
		return nil, fmt.Errorf("assemble pdf: %w", err)
	}

	count, err := api.PageCount(bytes.NewReader(out.Bytes()), conf)
	if err != nil {
		return nil, fmt.Errorf("verify pdf: %w", err)
	}
	if count != len(pages) {
		return nil, fmt.Errorf("assembled %d pages, expected %d", count, len(pages))
	}
	return out.Bytes(), nil
}

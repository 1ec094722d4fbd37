package service

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

const (
	// DefaultThumbnailWidth is used when the caller does not ask for one.
	DefaultThumbnailWidth = 320
	// MaxThumbnailWidth caps the render size a client can request.
	MaxThumbnailWidth = 1200
)

// renderFirstPagePNG rasterizes page one of a PDF to a PNG of roughly the
// requested pixel width. The width is clamped to [1, MaxThumbnailWidth].
func renderFirstPagePNG(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	if width > MaxThumbnailWidth {
		width = MaxThumbnailWidth
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	// Bound reports page size at 72 DPI; scale the render DPI so the output
	// lands near the requested width.
	bound, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("page bounds: %w", err)
	}
	dpi := 72.0
	if bound.Dx() > 0 {
		dpi = 72.0 * float64(width) / float64(bound.Dx())
	}

	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

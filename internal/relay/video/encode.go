package video

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// JPEGEncoder turns frames into JPEG bytes, optionally shrinking frames
// wider than MaxWidth first.
type JPEGEncoder struct {
	Quality  int
	MaxWidth int
}

func (e JPEGEncoder) Encode(f *core.Frame) ([]byte, error) {
	if f.Empty() {
		return nil, core.Errorf(core.KindNoFrameAvailable, "encode", "empty frame")
	}

	var img image.Image = f.Image
	if e.MaxWidth > 0 && f.Width() > e.MaxWidth {
		h := f.Height() * e.MaxWidth / f.Width()
		dst := image.NewRGBA(image.Rect(0, 0, e.MaxWidth, max(h, 1)))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, f.Image, f.Image.Rect, draw.Src, nil)
		img = dst
	}

	quality := e.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	buf.Grow(f.Width() * f.Height() / 4)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package capture

import (
	"image"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// FocusScore returns the variance of the 4-neighbour Laplacian of the
// frame's luma. Sharper frames score higher. Frames smaller than 3x3 score 0.
func FocusScore(f *core.Frame) float64 {
	if f.Empty() {
		return 0
	}
	return laplacianVariance(f.Image)
}

func laplacianVariance(img *image.RGBA) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	gray := luma(img)

	// Welford's running mean/variance over the interior pixels.
	var n, mean, m2 float64
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			i := row + x
			lap := gray[i-w] + gray[i+w] + gray[i-1] + gray[i+1] - 4*gray[i]
			n++
			d := lap - mean
			mean += d / n
			m2 += d * (lap - mean)
		}
	}
	return m2 / n
}

// luma converts to 8-bit-range grayscale with the BT.601 weights.
func luma(img *image.RGBA) []float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			p := src[4*x : 4*x+3]
			out[y*w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return out
}

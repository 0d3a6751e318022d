package core

import (
	"image"
	"time"
)

// Frame is one decoded video frame. A Frame is immutable once handed to the
// frame cell; readers that need to modify pixels must Clone it first.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// NewFrame wraps img as a frame captured at at.
func NewFrame(img *image.RGBA, at time.Time) *Frame {
	return &Frame{Image: img, CapturedAt: at}
}

func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// Empty reports whether the frame carries no pixels.
func (f *Frame) Empty() bool {
	return f.Width() == 0 || f.Height() == 0
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Image != nil {
		img := *f.Image
		img.Pix = append([]uint8(nil), f.Image.Pix...)
		c.Image = &img
	}
	return &c
}

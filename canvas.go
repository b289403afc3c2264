package glyphterm

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Canvas is the drawing surface the renderer paints a frame on.
// Colors are straight (non-premultiplied) RGBA; alpha below 255 blends over
// what is already drawn.
type Canvas interface {
	// Clear fills the whole surface.
	Clear(c color.RGBA)

	// FillRect fills r, blending when c is translucent.
	FillRect(r image.Rectangle, c color.RGBA)

	// CopyRect draws the atlas coverage in src to dst, colored with tint.
	// src and dst have the same size.
	CopyRect(src, dst image.Rectangle, tint color.RGBA)

	// Present shows the finished frame.
	Present()
}

// ImageCanvas is a software Canvas backed by an *image.RGBA.
type ImageCanvas struct {
	img    *image.RGBA
	atlas  *image.Alpha
	frames int
}

var _ Canvas = (*ImageCanvas)(nil)

// NewImageCanvas creates a width×height canvas.
func NewImageCanvas(width, height int) *ImageCanvas {
	return &ImageCanvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// UploadAtlas sets the coverage bitmap CopyRect reads from.
func (c *ImageCanvas) UploadAtlas(atlas *image.Alpha) {
	c.atlas = atlas
}

// Resize reallocates the surface. The contents are lost.
func (c *ImageCanvas) Resize(width, height int) {
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Image returns the surface.
func (c *ImageCanvas) Image() *image.RGBA {
	return c.img
}

// Frames returns the number of presented frames.
func (c *ImageCanvas) Frames() int {
	return c.frames
}

// Clear fills the surface with an opaque c.
func (c *ImageCanvas) Clear(col color.RGBA) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(opaque(col)), image.Point{}, draw.Src)
}

// FillRect fills r, blending over the surface when c is translucent.
func (c *ImageCanvas) FillRect(r image.Rectangle, col color.RGBA) {
	if col.A == 255 {
		draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
		return
	}
	draw.Draw(c.img, r, image.NewUniform(straight(col)), image.Point{}, draw.Over)
}

// CopyRect blends tint through the atlas coverage at src onto dst.
// It draws nothing before UploadAtlas.
func (c *ImageCanvas) CopyRect(src, dst image.Rectangle, tint color.RGBA) {
	if c.atlas == nil {
		return
	}
	draw.DrawMask(c.img, dst, image.NewUniform(straight(tint)), image.Point{}, c.atlas, src.Min, draw.Over)
}

// Present counts the frame.
func (c *ImageCanvas) Present() {
	c.frames++
}

func opaque(c color.RGBA) color.RGBA {
	c.A = 255
	return c
}

func straight(c color.RGBA) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

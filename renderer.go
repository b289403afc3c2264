package glyphterm

import (
	"image"
	"image/color"

	headlessterm "github.com/danielgatis/go-headless-term"
)

// DefaultCursorColor is the translucent block drawn over the cursor cell.
var DefaultCursorColor = color.RGBA{R: 255, G: 255, B: 255, A: 128}

const underlineFlags = headlessterm.CellFlagUnderline |
	headlessterm.CellFlagDoubleUnderline |
	headlessterm.CellFlagCurlyUnderline |
	headlessterm.CellFlagDottedUnderline |
	headlessterm.CellFlagDashedUnderline

// Renderer paints a Grid onto a Canvas using glyphs from an Atlas.
type Renderer struct {
	atlas       *Atlas
	canvas      Canvas
	cellWidth   int
	cellHeight  int
	baseline    int
	cursorColor color.RGBA
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithCursorColor sets the cursor overlay color. Alpha below 255 blends.
func WithCursorColor(c color.RGBA) RendererOption {
	return func(r *Renderer) {
		r.cursorColor = c
	}
}

// NewRenderer creates a renderer drawing atlas glyphs onto canvas. Cell
// geometry comes from the atlas and never changes.
func NewRenderer(atlas *Atlas, canvas Canvas, opts ...RendererOption) *Renderer {
	cw, ch := atlas.CellSize()
	r := &Renderer{
		atlas:       atlas,
		canvas:      canvas,
		cellWidth:   cw,
		cellHeight:  ch,
		baseline:    ch * 3 / 4,
		cursorColor: DefaultCursorColor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CellSize returns the cell dimensions in pixels.
func (r *Renderer) CellSize() (width, height int) {
	return r.cellWidth, r.cellHeight
}

// GridSize returns how many whole cells fit in a width×height drawable,
// at least one in each direction.
func (r *Renderer) GridSize(width, height int) (rows, cols int) {
	return clampSize(height/r.cellHeight, width/r.cellWidth)
}

// Render repaints the whole grid, presents it and clears dirty.
func (r *Renderer) Render(grid Grid, blink BlinkPhase, dirty *DirtySignal) {
	rows, cols := grid.Size()
	_, defaultBG := grid.DefaultColors()
	bounds := image.Rect(0, 0, cols*r.cellWidth, rows*r.cellHeight)

	r.canvas.Clear(defaultBG)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := grid.Cell(row, col)
			if cell.Spacer() {
				continue
			}
			span := r.cellRect(row, col, cellSpan(cell)).Intersect(bounds)

			if !sameRGB(cell.BG, defaultBG) {
				r.canvas.FillRect(span, opaque(cell.BG))
			}
			if cell.Char != ' ' {
				r.drawGlyph(cell.Char, span, cell.FG)
			}
			r.drawDecorations(cell, span)
		}
	}

	crow, ccol, visible := grid.Cursor()
	if blink == BlinkOn && visible && crow >= 0 && crow < rows && ccol >= 0 && ccol < cols {
		r.canvas.FillRect(r.cellRect(crow, ccol, 1).Intersect(bounds), r.cursorColor)
	}

	r.canvas.Present()
	if dirty != nil {
		dirty.clear()
	}
}

// cellRect returns the pixel rectangle of span cells starting at (row, col).
func (r *Renderer) cellRect(row, col, span int) image.Rectangle {
	x := col * r.cellWidth
	y := row * r.cellHeight
	return image.Rect(x, y, x+span*r.cellWidth, y+r.cellHeight)
}

// drawGlyph copies the glyph for ch into the cell, clipped to clip.
// Codepoints the atlas does not cover draw nothing.
func (r *Renderer) drawGlyph(ch rune, clip image.Rectangle, fg color.RGBA) {
	g, ok := r.atlas.Lookup(ch)
	if !ok || g.Empty() {
		return
	}

	origin := image.Pt(clip.Min.X+g.BearingX, clip.Min.Y+r.baseline+g.BearingY)
	dst := image.Rectangle{Min: origin, Max: origin.Add(g.Rect.Size())}
	clipped := dst.Intersect(clip)
	if clipped.Empty() {
		return
	}
	src := image.Rectangle{
		Min: g.Rect.Min.Add(clipped.Min.Sub(dst.Min)),
		Max: g.Rect.Min.Add(clipped.Max.Sub(dst.Min)),
	}
	r.canvas.CopyRect(src, clipped, opaque(fg))
}

// drawDecorations draws underline and strikethrough lines.
func (r *Renderer) drawDecorations(cell Cell, span image.Rectangle) {
	if span.Empty() {
		return
	}
	if cell.Flags&underlineFlags != 0 {
		y := span.Min.Y + r.baseline + 2
		if y >= span.Max.Y {
			y = span.Max.Y - 1
		}
		r.canvas.FillRect(image.Rect(span.Min.X, y, span.Max.X, y+1), opaque(cell.FG))
	}
	if cell.Flags&headlessterm.CellFlagStrike != 0 {
		y := span.Min.Y + r.cellHeight/2
		r.canvas.FillRect(image.Rect(span.Min.X, y, span.Max.X, y+1).Intersect(span), opaque(cell.FG))
	}
}

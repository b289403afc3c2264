package glyphterm

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultAtlasSize is the width and height of the glyph bitmap in pixels.
	DefaultAtlasSize = 2048

	// MaxRangeGlyphs is the largest number of codepoints a single range may hold.
	MaxRangeGlyphs = 4096

	// DefaultGlyphPadding is the gap left between packed glyphs.
	DefaultGlyphPadding = 1
)

var (
	// ErrAtlasFull is returned when a range does not fit into the atlas bitmap.
	ErrAtlasFull = errors.New("glyph atlas is full")

	// ErrOverlappingRanges is returned when two configured ranges share a codepoint.
	ErrOverlappingRanges = errors.New("glyph ranges overlap")

	// ErrEmptyRange is returned for a range with no codepoints.
	ErrEmptyRange = errors.New("glyph range is empty")

	// ErrRangeTooLarge is returned for a range larger than MaxRangeGlyphs.
	ErrRangeTooLarge = errors.New("glyph range exceeds capacity")

	// ErrInvalidPointSize is returned for a point size that yields cells
	// less than one pixel tall.
	ErrInvalidPointSize = errors.New("point size below one pixel")
)

// Range is a contiguous block of codepoints packed into the atlas.
// It covers [First, First+Count).
type Range struct {
	Name  string
	First rune
	Count int
}

// End returns the exclusive upper bound of the range.
func (r Range) End() rune {
	return r.First + rune(r.Count)
}

// Contains returns true if cp lies inside the range.
func (r Range) Contains(cp rune) bool {
	return cp >= r.First && cp < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("%s U+%04X..U+%04X", r.Name, r.First, r.End()-1)
}

// Default ranges cover shell prompts and common terminal UI glyphs.
var (
	RangePrintable = Range{Name: "printable", First: 0x20, Count: 96}
	RangeBox       = Range{Name: "box", First: 0x2500, Count: 128}
	RangePowerline = Range{Name: "powerline", First: 0xE0A0, Count: 96}
	RangeIcons     = Range{Name: "icons", First: 0xE5FA, Count: 3800}
)

// DefaultRanges returns the ranges packed by default, in lookup priority order.
// The first range supplies the reference glyph for the cell width.
func DefaultRanges() []Range {
	return []Range{RangePrintable, RangeBox, RangePowerline, RangeIcons}
}

// Glyph locates one rasterized glyph in the atlas.
type Glyph struct {
	// Rect is the glyph's bitmap in atlas space. Empty for blank or missing glyphs.
	Rect image.Rectangle

	// Advance is the horizontal pen advance in pixels.
	Advance float64

	// BearingX and BearingY offset the bitmap's top-left corner from the pen
	// position on the baseline. BearingY is negative above the baseline.
	BearingX int
	BearingY int
}

// Empty returns true if the glyph has no pixels to draw.
func (g Glyph) Empty() bool {
	return g.Rect.Empty()
}

// Atlas is an immutable packed glyph bitmap with per-range glyph tables.
type Atlas struct {
	bitmap     *image.Alpha
	ranges     []Range
	glyphs     [][]Glyph
	pointSize  float64
	cellWidth  int
	cellHeight int
}

type atlasConfig struct {
	width   int
	height  int
	padding int
}

// AtlasOption configures BuildAtlas.
type AtlasOption func(*atlasConfig)

// WithAtlasSize sets the atlas bitmap dimensions.
func WithAtlasSize(width, height int) AtlasOption {
	return func(c *atlasConfig) {
		c.width = width
		c.height = height
	}
}

// WithPadding sets the gap in pixels between packed glyphs.
func WithPadding(padding int) AtlasOption {
	return func(c *atlasConfig) {
		c.padding = padding
	}
}

// rasterized is a glyph bitmap waiting to be packed.
type rasterized struct {
	index int
	mask  *image.Alpha
}

// BuildAtlas rasterizes every codepoint of every range at pointSize and packs
// the ranges, in order, into one bitmap. It fails if the ranges are invalid or
// if any range does not fit.
func BuildAtlas(fontBytes []byte, pointSize float64, ranges []Range, opts ...AtlasOption) (*Atlas, error) {
	cfg := atlasConfig{
		width:   DefaultAtlasSize,
		height:  DefaultAtlasSize,
		padding: DefaultGlyphPadding,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if math.IsNaN(pointSize) || pointSize < 1 {
		return nil, fmt.Errorf("point size %v: %w", pointSize, ErrInvalidPointSize)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no glyph ranges: %w", ErrEmptyRange)
	}
	if err := validateRanges(ranges); err != nil {
		return nil, err
	}

	ft, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	// 72 DPI makes one point one pixel, so the cell height equals the point size.
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    pointSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	a := &Atlas{
		bitmap:     image.NewAlpha(image.Rect(0, 0, cfg.width, cfg.height)),
		ranges:     append([]Range(nil), ranges...),
		glyphs:     make([][]Glyph, len(ranges)),
		pointSize:  pointSize,
		cellHeight: int(pointSize),
	}

	packer := newSkyline(cfg.width, cfg.height)
	var buf sfnt.Buffer

	for ri, rng := range ranges {
		table := make([]Glyph, rng.Count)
		pending := make([]rasterized, 0, rng.Count)

		for i := 0; i < rng.Count; i++ {
			cp := rng.First + rune(i)

			idx, err := ft.GlyphIndex(&buf, cp)
			if err != nil || idx == 0 {
				// Not in the font: keep the slot, draw nothing.
				continue
			}

			dr, mask, maskp, advance, ok := face.Glyph(fixed.Point26_6{}, cp)
			if !ok {
				continue
			}
			table[i] = Glyph{
				Advance:  fixedToFloat(advance),
				BearingX: dr.Min.X,
				BearingY: dr.Min.Y,
			}
			if dr.Empty() {
				continue
			}

			// The face reuses its mask buffer, so copy before the next call.
			m := image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
			draw.Draw(m, m.Bounds(), mask, maskp, draw.Src)
			pending = append(pending, rasterized{index: i, mask: m})
		}

		// Tallest first keeps the skyline flat.
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].mask.Rect.Dy() > pending[j].mask.Rect.Dy()
		})

		for _, p := range pending {
			w, h := p.mask.Rect.Dx(), p.mask.Rect.Dy()
			pos, ok := packer.Insert(w+cfg.padding, h+cfg.padding)
			if !ok {
				return nil, fmt.Errorf("pack %s into %dx%d: %w", rng, cfg.width, cfg.height, ErrAtlasFull)
			}
			dst := image.Rect(pos.X, pos.Y, pos.X+w, pos.Y+h)
			draw.Draw(a.bitmap, dst, p.mask, image.Point{}, draw.Src)
			table[p.index].Rect = dst
		}

		a.glyphs[ri] = table
	}

	ref := a.glyphs[0][0]
	a.cellWidth = int(math.Ceil(ref.Advance))
	if a.cellWidth < 1 {
		a.cellWidth = int(math.Ceil(pointSize / 2))
	}

	return a, nil
}

// validateRanges checks sizes and pairwise disjointness.
func validateRanges(ranges []Range) error {
	for _, r := range ranges {
		if r.Count <= 0 {
			return fmt.Errorf("%s: %w", r.Name, ErrEmptyRange)
		}
		if r.Count > MaxRangeGlyphs {
			return fmt.Errorf("%s has %d codepoints, max %d: %w", r, r.Count, MaxRangeGlyphs, ErrRangeTooLarge)
		}
	}

	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].First < sorted[j].First })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].First < sorted[i-1].End() {
			return fmt.Errorf("%s and %s: %w", sorted[i-1], sorted[i], ErrOverlappingRanges)
		}
	}
	return nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// Lookup returns the glyph for cp. Ranges are tested in configured order.
// Returns false if no range covers cp.
func (a *Atlas) Lookup(cp rune) (Glyph, bool) {
	for i, r := range a.ranges {
		if r.Contains(cp) {
			return a.glyphs[i][cp-r.First], true
		}
	}
	return Glyph{}, false
}

// Bitmap returns the packed coverage bitmap. Callers must not modify it.
func (a *Atlas) Bitmap() *image.Alpha {
	return a.bitmap
}

// Ranges returns a copy of the configured ranges.
func (a *Atlas) Ranges() []Range {
	return append([]Range(nil), a.ranges...)
}

// CellSize returns the fixed cell dimensions in pixels.
func (a *Atlas) CellSize() (width, height int) {
	return a.cellWidth, a.cellHeight
}

// PointSize returns the size the atlas was rasterized at.
func (a *Atlas) PointSize() float64 {
	return a.pointSize
}

package glyphterm

import (
	"image/color"

	headlessterm "github.com/danielgatis/go-headless-term"
)

// Palette holds the concrete colors used to resolve engine colors.
type Palette struct {
	// Indexed is the 256-color table: 16 named, 216 cube, 24 grayscale.
	Indexed [256]color.RGBA

	// Foreground and Background are the default text and screen colors.
	Foreground color.RGBA
	Background color.RGBA
}

// DefaultPalette returns the engine's 256-color table with white on black defaults.
func DefaultPalette() Palette {
	return Palette{
		Indexed:    headlessterm.DefaultPalette,
		Foreground: color.RGBA{255, 255, 255, 255},
		Background: color.RGBA{0, 0, 0, 255},
	}
}

// Resolve converts an engine color (default, named, indexed or direct) to RGBA.
// A nil color resolves to the default foreground or background.
func (p *Palette) Resolve(c color.Color, fg bool) color.RGBA {
	if c == nil {
		return p.fallback(fg)
	}

	switch v := c.(type) {
	case color.RGBA:
		v.A = 255
		return v
	case *color.RGBA:
		out := *v
		out.A = 255
		return out
	case *headlessterm.IndexedColor:
		if v.Index >= 0 && v.Index < 256 {
			return p.Indexed[v.Index]
		}
		return p.fallback(fg)
	case *headlessterm.NamedColor:
		return p.resolveNamed(v.Name, fg)
	default:
		r, g, b, _ := c.RGBA()
		return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
	}
}

func (p *Palette) resolveNamed(name int, fg bool) color.RGBA {
	switch {
	case name >= 0 && name < 16:
		return p.Indexed[name]
	case name == headlessterm.NamedColorForeground:
		return p.Foreground
	case name == headlessterm.NamedColorBackground:
		return p.Background
	case name == headlessterm.NamedColorCursor:
		return p.Foreground
	case name >= headlessterm.NamedColorDimBlack && name <= headlessterm.NamedColorDimWhite:
		return dim(p.Indexed[name-headlessterm.NamedColorDimBlack])
	case name == headlessterm.NamedColorBrightForeground:
		return p.Indexed[15]
	case name == headlessterm.NamedColorDimForeground:
		return dim(p.Foreground)
	default:
		return p.fallback(fg)
	}
}

func (p *Palette) fallback(fg bool) color.RGBA {
	if fg {
		return p.Foreground
	}
	return p.Background
}

// dim scales a color to two thirds brightness.
func dim(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * 0.66),
		G: uint8(float64(c.G) * 0.66),
		B: uint8(float64(c.B) * 0.66),
		A: 255,
	}
}

func sameRGB(a, b color.RGBA) bool {
	return a.R == b.R && a.G == b.G && a.B == b.B
}

package glyphterm

import (
	"image/color"
	"testing"

	headlessterm "github.com/danielgatis/go-headless-term"
)

func TestPaletteResolve(t *testing.T) {
	p := DefaultPalette()

	tests := []struct {
		name string
		c    color.Color
		fg   bool
		want color.RGBA
	}{
		{"nil fg", nil, true, p.Foreground},
		{"nil bg", nil, false, p.Background},
		{"direct", color.RGBA{1, 2, 3, 0}, true, color.RGBA{1, 2, 3, 255}},
		{"direct pointer", &color.RGBA{4, 5, 6, 10}, false, color.RGBA{4, 5, 6, 255}},
		{"indexed", &headlessterm.IndexedColor{Index: 42}, true, p.Indexed[42]},
		{"named red", &headlessterm.NamedColor{Name: 1}, true, p.Indexed[1]},
		{"named bright white", &headlessterm.NamedColor{Name: 15}, true, p.Indexed[15]},
		{"default fg", &headlessterm.NamedColor{Name: headlessterm.NamedColorForeground}, true, p.Foreground},
		{"default bg", &headlessterm.NamedColor{Name: headlessterm.NamedColorBackground}, false, p.Background},
		{"dim red", &headlessterm.NamedColor{Name: headlessterm.NamedColorDimRed}, true, dim(p.Indexed[1])},
		{"gray", color.Gray{Y: 0x80}, true, color.RGBA{0x80, 0x80, 0x80, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Resolve(tt.c, tt.fg)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPaletteCustomDefaults(t *testing.T) {
	fg := color.RGBA{200, 200, 200, 255}
	bg := color.RGBA{20, 20, 30, 255}
	e := NewEngine(2, 2, WithDefaultColors(fg, bg))

	gotFG, gotBG := e.DefaultColors()
	if gotFG != fg || gotBG != bg {
		t.Errorf("expected %v/%v, got %v/%v", fg, bg, gotFG, gotBG)
	}
	if c := e.Cell(0, 0); c.FG != fg || c.BG != bg {
		t.Errorf("expected blank cell in the custom defaults, got %+v", c)
	}
}

func TestDim(t *testing.T) {
	got := dim(color.RGBA{100, 200, 0, 255})
	want := color.RGBA{66, 132, 0, 255}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

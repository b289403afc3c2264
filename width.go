package glyphterm

import "github.com/unilibs/uniwidth"

// cellSpan returns how many columns a cell's character occupies. The wide
// flag set by the engine wins; otherwise the rune's display width decides.
func cellSpan(c Cell) int {
	if c.Wide() || uniwidth.RuneWidth(c.Char) == 2 {
		return 2
	}
	return 1
}

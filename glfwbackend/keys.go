package glfwbackend

import (
	"github.com/danielgatis/go-glyphterm"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var namedKeys = map[glfw.Key]glyphterm.Key{
	glfw.KeyEnter:     glyphterm.KeyEnter,
	glfw.KeyKPEnter:   glyphterm.KeyEnter,
	glfw.KeyBackspace: glyphterm.KeyBackspace,
	glfw.KeyTab:       glyphterm.KeyTab,
	glfw.KeyEscape:    glyphterm.KeyEscape,
	glfw.KeyUp:        glyphterm.KeyUp,
	glfw.KeyDown:      glyphterm.KeyDown,
	glfw.KeyRight:     glyphterm.KeyRight,
	glfw.KeyLeft:      glyphterm.KeyLeft,
	glfw.KeyPageUp:    glyphterm.KeyPageUp,
	glfw.KeyPageDown:  glyphterm.KeyPageDown,
	glfw.KeyHome:      glyphterm.KeyHome,
	glfw.KeyEnd:       glyphterm.KeyEnd,
	glfw.KeyInsert:    glyphterm.KeyInsert,
	glfw.KeyDelete:    glyphterm.KeyDelete,
}

// convertKey maps a GLFW key to a glyphterm key. Printable keys that can
// combine with Control map to KeyRune with their unshifted character.
func convertKey(key glfw.Key) (glyphterm.Key, rune) {
	if k, ok := namedKeys[key]; ok {
		return k, 0
	}
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return glyphterm.KeyRune, 'a' + rune(key-glfw.KeyA)
	case key == glfw.KeySpace:
		return glyphterm.KeyRune, ' '
	case key == glfw.KeyLeftBracket:
		return glyphterm.KeyRune, '['
	case key == glfw.KeyBackslash:
		return glyphterm.KeyRune, '\\'
	case key == glfw.KeyRightBracket:
		return glyphterm.KeyRune, ']'
	}
	return glyphterm.KeyUnknown, 0
}

func convertMods(mods glfw.ModifierKey) glyphterm.ModMask {
	var m glyphterm.ModMask
	if mods&glfw.ModShift != 0 {
		m |= glyphterm.ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= glyphterm.ModControl
	}
	if mods&glfw.ModAlt != 0 {
		m |= glyphterm.ModAlt
	}
	if mods&glfw.ModSuper != 0 {
		m |= glyphterm.ModSuper
	}
	return m
}

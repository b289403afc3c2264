package glyphterm

// EncodeKey returns the bytes a key press sends to the shell, or nil if the
// key produces no input here (plain characters arrive as text events).
// appCursor selects the DECCKM application encoding for arrow keys.
func EncodeKey(key Key, r rune, mods ModMask, appCursor bool) []byte {
	switch key {
	case KeyEnter:
		return []byte{'\r'}
	case KeyBackspace:
		return []byte{0x7f}
	case KeyTab:
		return []byte{'\t'}
	case KeyEscape:
		return []byte{0x1b}
	case KeyUp:
		return cursorKey('A', appCursor)
	case KeyDown:
		return cursorKey('B', appCursor)
	case KeyRight:
		return cursorKey('C', appCursor)
	case KeyLeft:
		return cursorKey('D', appCursor)
	case KeyPageUp:
		return []byte("\x1b[5~")
	case KeyPageDown:
		return []byte("\x1b[6~")
	case KeyHome:
		return []byte("\x1b[H")
	case KeyEnd:
		return []byte("\x1b[F")
	case KeyInsert:
		return []byte("\x1b[2~")
	case KeyDelete:
		return []byte("\x1b[3~")
	case KeyRune:
		if mods.Has(ModControl) {
			if b, ok := controlByte(r); ok {
				return []byte{b}
			}
		}
	}
	return nil
}

func cursorKey(final byte, appCursor bool) []byte {
	if appCursor {
		return []byte{0x1b, 'O', final}
	}
	return []byte{0x1b, '[', final}
}

// controlByte maps Ctrl+key to its C0 code by masking the ASCII code with
// 0x1F. Defined for space, @, letters and [ \ ].
func controlByte(r rune) (byte, bool) {
	switch {
	case r == ' ' || r == '@':
		return 0, true
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= 'A' && r <= 'Z', r == '[', r == '\\', r == ']':
		return byte(r) & 0x1f, true
	}
	return 0, false
}

package glyphterm

import "fmt"

// EventType identifies a backend event.
type EventType int

const (
	// EventQuit asks the loop to stop.
	EventQuit EventType = iota
	// EventResize carries the new drawable size in pixels.
	EventResize
	// EventText carries UTF-8 text typed by the user.
	EventText
	// EventKey is a key press that may map to a control sequence.
	EventKey
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventQuit:
		return "quit"
	case EventResize:
		return "resize"
	case EventText:
		return "text"
	case EventKey:
		return "key"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ModMask is a set of held modifier keys.
type ModMask uint8

// Modifier keys.
const (
	ModShift ModMask = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// Has returns true if all of m2 is held.
func (m ModMask) Has(m2 ModMask) bool {
	return m&m2 == m2
}

// Key is a non-text key. KeyRune carries its character in Event.Rune.
type Key int

// Keys the backend reports. KeyUnknown keys are not forwarded.
const (
	KeyUnknown Key = iota
	// KeyRune is a printable key, sent as a key event so Ctrl combinations
	// can be encoded.
	KeyRune
	KeyEnter
	KeyBackspace
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyPageUp
	KeyPageDown
	KeyHome
	KeyEnd
	KeyInsert
	KeyDelete
)

// Event is one input or window event from the display backend.
//
// Resize carries the new drawable size in pixels. Text carries committed
// UTF-8 text. Key carries a key press; for KeyRune, Rune is the unshifted
// character of the key.
type Event struct {
	Type   EventType
	Width  int
	Height int
	Text   string
	Key    Key
	Rune   rune
	Mods   ModMask
}

// QuitEvent returns a quit event.
func QuitEvent() Event { return Event{Type: EventQuit} }

// ResizeEvent returns a resize event for a drawable of width×height pixels.
func ResizeEvent(width, height int) Event {
	return Event{Type: EventResize, Width: width, Height: height}
}

// TextEvent returns a text event.
func TextEvent(text string, mods ModMask) Event {
	return Event{Type: EventText, Text: text, Mods: mods}
}

// KeyEvent returns a key-down event.
func KeyEvent(key Key, r rune, mods ModMask) Event {
	return Event{Type: EventKey, Key: key, Rune: r, Mods: mods}
}

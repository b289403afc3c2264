package glyphterm

// DirtySignal records that the grid needs repainting. The event loop sets it;
// only the renderer clears it, after a completed paint.
type DirtySignal struct {
	set bool
}

// Set marks the grid as needing a repaint.
func (d *DirtySignal) Set() {
	d.set = true
}

// IsSet returns true if a repaint is pending.
func (d *DirtySignal) IsSet() bool {
	return d.set
}

func (d *DirtySignal) clear() {
	d.set = false
}

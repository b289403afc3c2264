package glyphterm

import "image"

// skyline is a bottom-left skyline rectangle packer over a fixed-size area.
// The skyline is a list of horizontal segments sorted by x that together
// cover the full width; each segment records the lowest free y above it.
type skyline struct {
	width  int
	height int
	nodes  []skylineNode
}

type skylineNode struct {
	x, y, width int
}

func newSkyline(width, height int) *skyline {
	return &skyline{
		width:  width,
		height: height,
		nodes:  []skylineNode{{x: 0, y: 0, width: width}},
	}
}

// Insert reserves a w×h rectangle and returns its top-left corner.
// Returns false if the rectangle does not fit anywhere.
func (s *skyline) Insert(w, h int) (image.Point, bool) {
	if w <= 0 || h <= 0 {
		return image.Point{}, true
	}
	if w > s.width || h > s.height {
		return image.Point{}, false
	}

	bestIndex := -1
	bestY, bestBottom, bestWidth := 0, s.height+1, s.width+1
	for i := range s.nodes {
		y, ok := s.fit(i, w, h)
		if !ok {
			continue
		}
		bottom := y + h
		if bottom < bestBottom || (bottom == bestBottom && s.nodes[i].width < bestWidth) {
			bestIndex = i
			bestY = y
			bestBottom = bottom
			bestWidth = s.nodes[i].width
		}
	}
	if bestIndex < 0 {
		return image.Point{}, false
	}

	pos := image.Point{X: s.nodes[bestIndex].x, Y: bestY}
	s.place(bestIndex, pos, w, h)
	return pos, true
}

// fit returns the y at which a w×h rectangle can sit when its left edge is
// aligned with node i.
func (s *skyline) fit(i, w, h int) (int, bool) {
	x := s.nodes[i].x
	if x+w > s.width {
		return 0, false
	}
	y := s.nodes[i].y
	remaining := w
	for j := i; remaining > 0; j++ {
		if j >= len(s.nodes) {
			return 0, false
		}
		if s.nodes[j].y > y {
			y = s.nodes[j].y
		}
		if y+h > s.height {
			return 0, false
		}
		remaining -= s.nodes[j].width
	}
	return y, true
}

// place raises the skyline under a rectangle placed at pos.
func (s *skyline) place(i int, pos image.Point, w, h int) {
	node := skylineNode{x: pos.X, y: pos.Y + h, width: w}
	s.nodes = append(s.nodes, skylineNode{})
	copy(s.nodes[i+1:], s.nodes[i:])
	s.nodes[i] = node

	// Trim or drop the segments now shadowed by the new one.
	for j := i + 1; j < len(s.nodes); {
		prev := s.nodes[j-1]
		end := prev.x + prev.width
		if s.nodes[j].x >= end {
			break
		}
		shrink := end - s.nodes[j].x
		s.nodes[j].x += shrink
		s.nodes[j].width -= shrink
		if s.nodes[j].width > 0 {
			break
		}
		s.nodes = append(s.nodes[:j], s.nodes[j+1:]...)
	}

	// Merge neighbors at the same height.
	for j := 0; j < len(s.nodes)-1; {
		if s.nodes[j].y == s.nodes[j+1].y {
			s.nodes[j].width += s.nodes[j+1].width
			s.nodes = append(s.nodes[:j+1], s.nodes[j+2:]...)
			continue
		}
		j++
	}
}

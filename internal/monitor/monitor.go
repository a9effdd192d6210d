// Package monitor holds the display domain types shared by the registry, the
// dimming backends and the engine.
package monitor

import "fmt"

// ID identifies a monitor across enumerations. On X11 it is the RandR output
// name, e.g. "DP-1".
type ID string

// Point is a position in root-window (virtual screen) coordinates.
type Point struct {
	X, Y int
}

// Rect is an axis-aligned rectangle in root-window coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether p lies inside r. The right and bottom edges are
// exclusive so adjacent monitors never both contain the same pixel.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Covers reports whether r fully contains o.
func (r Rect) Covers(o Rect) bool {
	return r.X <= o.X && r.Y <= o.Y &&
		r.X+r.Width >= o.X+o.Width &&
		r.Y+r.Height >= o.Y+o.Height
}

// Intersect returns the overlapping area of r and o; the zero Rect when they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}

	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Area returns width * height.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Monitor is one attached display output.
type Monitor struct {
	ID       ID
	Index    int
	Name     string
	Geometry Rect
	Primary  bool
	// Internal marks built-in panels (eDP, LVDS, DSI) driven through the
	// kernel backlight interface instead of DDC/CI.
	Internal bool
	// DDCDisplay is the ddcutil display number; 0 when unknown.
	DDCDisplay              int
	SupportsHardwareDimming bool
}

func (m Monitor) String() string {
	return fmt.Sprintf("%s(%d) %s", m.ID, m.Index, m.Geometry)
}

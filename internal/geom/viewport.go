package geom

import "math"

const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// Viewport maps world coordinates to screen coordinates: translate by the pan
// offset, then scale by zoom.
type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// NewViewport returns the identity viewport.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN and non-positive values map
// to 1.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Pan returns the pan offset as a point.
func (v Viewport) Pan() Point {
	return Point{X: v.PanX, Y: v.PanY}
}

// SetPan replaces the pan offset.
func (v *Viewport) SetPan(p Point) {
	v.PanX, v.PanY = p.X, p.Y
}

// SetZoom sets the zoom factor, clamped.
func (v *Viewport) SetZoom(z float64) {
	v.Zoom = ClampZoom(z)
}

// ZoomAt changes zoom while keeping the world point under screen fixed.
func (v *Viewport) ZoomAt(screen Point, z float64) {
	anchor := v.ToWorld(screen)
	v.SetZoom(z)
	v.PanX = screen.X - anchor.X*v.Zoom
	v.PanY = screen.Y - anchor.Y*v.Zoom
}

// Matrix returns the world→screen matrix.
func (v Viewport) Matrix() Matrix2D {
	return Translate(v.PanX, v.PanY).Multiply(Scale(v.zoom(), v.zoom()))
}

// ToWorld converts a screen point to world space.
func (v Viewport) ToWorld(screen Point) Point {
	return Point{
		X: (screen.X - v.PanX) / v.zoom(),
		Y: (screen.Y - v.PanY) / v.zoom(),
	}
}

// ToScreen converts a world point to screen space.
func (v Viewport) ToScreen(world Point) Point {
	return v.Matrix().Apply(world)
}

// VisibleWorld returns the world-space rect covered by a screen of the given size.
func (v Viewport) VisibleWorld(width, height float64) Rect {
	return RectFromCorners(v.ToWorld(Point{}), v.ToWorld(Point{X: width, Y: height}))
}

// zoom guards against a zero-value Viewport.
func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}

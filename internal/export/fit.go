package export

import (
	"math"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/render"
)

// FitPadding is the screen margin kept around the content when fitting.
const FitPadding = 40.0

// ForExport strips the interactive overlays from a frame.
func ForExport(f render.Frame) render.Frame {
	f.Draft = nil
	f.Guides = nil
	f.ShowGuides = false
	return f
}

// FitFrame re-frames f so every object is visible, centered with padding.
// An empty board keeps its viewport.
func FitFrame(f render.Frame) render.Frame {
	var bounds geom.Rect
	for _, o := range f.Objects {
		b := o.Bounds()
		if b.IsEmpty() {
			b = b.Expand(1)
		}
		bounds = bounds.Union(b)
	}
	if bounds.IsEmpty() {
		return f
	}

	availW := math.Max(f.Width-2*FitPadding, 1)
	availH := math.Max(f.Height-2*FitPadding, 1)
	zoom := geom.ClampZoom(math.Min(availW/bounds.Width, availH/bounds.Height))

	c := bounds.Center()
	v := geom.Viewport{Zoom: zoom}
	v.SetPan(geom.Pt(f.Width/2-c.X*zoom, f.Height/2-c.Y*zoom))
	f.Viewport = v
	return f
}

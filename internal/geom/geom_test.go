package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportRoundTrip(t *testing.T) {
	viewports := []Viewport{
		NewViewport(),
		{PanX: 120, PanY: -40, Zoom: 2.5},
		{PanX: -3.3, PanY: 7.7, Zoom: 0.1},
		{PanX: 1000, PanY: 1000, Zoom: 5},
	}
	points := []Point{{0, 0}, {12.5, -7}, {-1000, 3333.3}, {0.001, 0.002}}

	for _, v := range viewports {
		for _, p := range points {
			got := v.ToWorld(v.ToScreen(p))
			assert.InDelta(t, p.X, got.X, 1e-9)
			assert.InDelta(t, p.Y, got.Y, 1e-9)
		}
	}
}

func TestToWorld(t *testing.T) {
	v := Viewport{PanX: 100, PanY: 50, Zoom: 2}
	assert.Equal(t, Pt(50, 25), v.ToWorld(Pt(200, 100)))
	assert.Equal(t, Pt(200, 100), v.ToScreen(Pt(50, 25)))
}

func TestClampZoom(t *testing.T) {
	v := NewViewport()
	v.SetZoom(7.5)
	assert.Equal(t, 5.0, v.Zoom)
	v.SetZoom(0.01)
	assert.Equal(t, 0.1, v.Zoom)
	v.SetZoom(1.25)
	assert.Equal(t, 1.25, v.Zoom)
	assert.Equal(t, 1.0, ClampZoom(0))
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	v := Viewport{PanX: 30, PanY: 10, Zoom: 1}
	screen := Pt(400, 300)
	before := v.ToWorld(screen)

	v.ZoomAt(screen, 2)
	after := v.ToWorld(screen)

	require.Equal(t, 2.0, v.Zoom)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestMatrixRoundTripsThroughSlice(t *testing.T) {
	m := Translate(10, 20).Multiply(Scale(3, 3))
	assert.Equal(t, Pt(13, 26), m.Apply(Pt(1, 2)))
	assert.Equal(t, 3.0, m.ScaleFactor())
	assert.Equal(t, m, FromSlice(m.ToSlice()))
	assert.Equal(t, Identity(), FromSlice(nil))
}

func TestRectNormalizeAndContains(t *testing.T) {
	r := Rect{X: 100, Y: 50, Width: -100, Height: -50}.Normalize()
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 100, Height: 50}, r)
	assert.True(t, r.Contains(Pt(100, 50)))
	assert.False(t, r.Contains(Pt(101, 50)))
	assert.True(t, r.Expand(10).Contains(Pt(105, 55)))
}

func TestSegmentDist(t *testing.T) {
	assert.InDelta(t, 5.0, SegmentDist(Pt(5, 5), Pt(0, 0), Pt(10, 0)), 1e-9)
	assert.InDelta(t, 5.0, SegmentDist(Pt(-3, 4), Pt(0, 0), Pt(10, 0)), 1e-9)
	assert.InDelta(t, 5.0, SegmentDist(Pt(3, 4), Pt(0, 0), Pt(0, 0)), 1e-9)
}

// Package snapping computes grid snaps and alignment guides for shape tools.
// Everything here is advisory: nothing mutates the scene.
package snapping

import (
	"cmp"
	"math"
	"slices"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

const (
	// GridPitch is the grid spacing in world units.
	GridPitch = 20.0
	// SnapThreshold is how close an axis must be to a grid line to snap.
	SnapThreshold = 8.0
	// GuideThreshold is how close an axis must be to a candidate line for a
	// guide to show.
	GuideThreshold = 10.0
)

// Orientation of a guide line.
type Orientation string

const (
	// Vertical guides sit at an x position.
	Vertical Orientation = "vertical"
	// Horizontal guides sit at a y position.
	Horizontal Orientation = "horizontal"
)

// Guide is a dashed alignment line at a world-space position.
type Guide struct {
	Orientation Orientation `json:"orientation"`
	Position    float64     `json:"position"`
}

// SnapToGrid moves each axis of p onto the nearest grid line when it lies
// within SnapThreshold of it. Axes are snapped independently.
func SnapToGrid(p geom.Point) geom.Point {
	return geom.Point{X: snapAxis(p.X), Y: snapAxis(p.Y)}
}

func snapAxis(v float64) float64 {
	g := nearestGridLine(v)
	if math.Abs(v-g) <= SnapThreshold {
		return g
	}
	return v
}

func nearestGridLine(v float64) float64 {
	return math.Round(v/GridPitch) * GridPitch
}

// Edges returns the x and y candidate lines an object contributes to guide
// detection. Sticky notes offer their left, right and center x and their
// top, bottom and middle y; rectangles and lines offer their start and end
// coordinates. Other kinds contribute nothing.
func Edges(o scene.Object) (xs, ys []float64) {
	switch v := o.(type) {
	case scene.StickyNote:
		b := v.Bounds()
		c := b.Center()
		return []float64{b.X, b.X + b.Width, c.X}, []float64{b.Y, b.Y + b.Height, c.Y}
	case scene.Rect:
		return []float64{v.Start.X, v.End.X}, []float64{v.Start.Y, v.End.Y}
	case scene.Line:
		return []float64{v.Start.X, v.End.X}, []float64{v.Start.Y, v.End.Y}
	}
	return nil, nil
}

// Guides collects every candidate line within GuideThreshold of p: object
// edges from Edges plus the nearest grid line on each axis. The result is
// deduplicated and ordered vertical first, then by position.
func Guides(p geom.Point, objects []scene.Object) []Guide {
	seen := make(map[Guide]struct{})
	var out []Guide
	add := func(o Orientation, pos, axis float64) {
		if math.Abs(pos-axis) >= GuideThreshold {
			return
		}
		g := Guide{Orientation: o, Position: pos}
		if _, dup := seen[g]; dup {
			return
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}

	for _, o := range objects {
		xs, ys := Edges(o)
		for _, x := range xs {
			add(Vertical, x, p.X)
		}
		for _, y := range ys {
			add(Horizontal, y, p.Y)
		}
	}
	add(Vertical, nearestGridLine(p.X), p.X)
	add(Horizontal, nearestGridLine(p.Y), p.Y)

	slices.SortFunc(out, func(a, b Guide) int {
		if a.Orientation != b.Orientation {
			if a.Orientation == Vertical {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

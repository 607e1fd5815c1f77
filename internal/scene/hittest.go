package scene

import "github.com/wmorrison76/LucccaHosp-sub009/internal/geom"

// HitThreshold is how far outside an object the eraser still catches it.
const HitThreshold = 10.0

// HitMode selects the containment rule.
type HitMode int

const (
	// HitErase expands every object's hit region by HitThreshold.
	HitErase HitMode = iota
	// HitOpen uses exact containment of media placeholders only.
	HitOpen
)

// HitTest resolves p to the object it addresses. Objects are scanned from
// the end of the slice: the last painted object is on top and wins. A
// non-empty kinds list restricts the candidates.
func HitTest(p geom.Point, objects []Object, mode HitMode, kinds ...Kind) (Object, bool) {
	for i := len(objects) - 1; i >= 0; i-- {
		o := objects[i]
		if len(kinds) > 0 && !hasKind(kinds, o.Kind()) {
			continue
		}
		if hits(o, p, mode) {
			return o, true
		}
	}
	return nil, false
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func hits(o Object, p geom.Point, mode HitMode) bool {
	if mode == HitOpen {
		m, ok := o.(Media)
		return ok && m.Bounds().Contains(p)
	}

	slack := HitThreshold + o.Header().Style.Resolved().StrokeWidth/2
	switch v := o.(type) {
	case StickyNote, Media, Rect, Text:
		return v.Bounds().Expand(HitThreshold).Contains(p)
	case Circle:
		return p.Dist(v.Start) <= v.Radius()+HitThreshold
	case Line:
		return geom.SegmentDist(p, v.Start, v.End) <= slack
	case Stroke:
		if len(v.Points) == 1 {
			return p.Dist(v.Points[0]) <= slack
		}
		for i := 1; i < len(v.Points); i++ {
			if geom.SegmentDist(p, v.Points[i-1], v.Points[i]) <= slack {
				return true
			}
		}
	}
	return false
}

// Package scene is the whiteboard's in-memory model: an insertion-ordered
// document of drawable objects plus the operations that mutate it. It knows
// nothing about rendering or history; callers observe changes through
// Document.OnChange.
package scene

import (
	"slices"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
)

// Kind discriminates the drawable variants on the wire.
type Kind string

const (
	KindStroke Kind = "stroke"
	KindLine   Kind = "line"
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindText   Kind = "text"
	KindSticky Kind = "sticky"
	KindMedia  Kind = "media"
)

// MediaKind classifies a media placeholder.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaPDF   MediaKind = "pdf"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaModel MediaKind = "model"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaPDF, MediaVideo, MediaAudio, MediaModel:
		return true
	}
	return false
}

// Defaults applied when an object omits optional style fields.
const (
	DefaultColor       = "#00d9ff"
	DefaultStrokeWidth = 3.0
	DefaultOpacity     = 1.0
	DefaultFontSize    = 16
	DefaultStickyColor = "#fff59d"

	HighlighterOpacity = 0.4

	StickySize = 150.0
)

// Style holds the optional presentation fields shared by every variant.
// Zero values mean "not set".
type Style struct {
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
}

// Resolved returns the style with defaults filled in.
func (s Style) Resolved() Style {
	if s.Color == "" {
		s.Color = DefaultColor
	}
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = DefaultStrokeWidth
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		s.Opacity = DefaultOpacity
	}
	return s
}

// Base is embedded in every variant.
type Base struct {
	ID    int64 `json:"id"`
	Style Style `json:"style"`
}

// Header returns the shared id and style.
func (b Base) Header() Base { return b }

// Object is the closed set of drawable variants. The unexported methods keep
// implementations inside this package.
type Object interface {
	Header() Base
	Kind() Kind
	// Bounds is the normalized world-space bounding box.
	Bounds() geom.Rect
	withID(id int64) Object
	clone() Object
}

// Stroke is freehand ink. A highlighter is a stroke at HighlighterOpacity.
type Stroke struct {
	Base
	Points []geom.Point `json:"points"`
}

func (Stroke) Kind() Kind { return KindStroke }

func (s Stroke) Bounds() geom.Rect {
	if len(s.Points) == 0 {
		return geom.Rect{}
	}
	minX, minY := s.Points[0].X, s.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range s.Points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return geom.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (s Stroke) withID(id int64) Object {
	s.ID = id
	return s
}

func (s Stroke) clone() Object {
	s.Points = slices.Clone(s.Points)
	return s
}

// Line is a straight segment.
type Line struct {
	Base
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

func (Line) Kind() Kind { return KindLine }
func (l Line) Bounds() geom.Rect { return geom.RectFromCorners(l.Start, l.End) }
func (l Line) withID(id int64) Object {
	l.ID = id
	return l
}
func (l Line) clone() Object { return l }

// Rect is an outlined rectangle between two opposite corners. Width and
// height may be negative.
type Rect struct {
	Base
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

func (Rect) Kind() Kind { return KindRect }
func (r Rect) Bounds() geom.Rect { return geom.RectFromCorners(r.Start, r.End) }
func (r Rect) withID(id int64) Object {
	r.ID = id
	return r
}
func (r Rect) clone() Object { return r }

// Circle is centered on Start; the radius is the distance to End.
type Circle struct {
	Base
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

func (Circle) Kind() Kind { return KindCircle }

// Radius returns |End - Start|.
func (c Circle) Radius() float64 { return c.Start.Dist(c.End) }

func (c Circle) Bounds() geom.Rect {
	r := c.Radius()
	return geom.Rect{X: c.Start.X - r, Y: c.Start.Y - r, Width: 2 * r, Height: 2 * r}
}

func (c Circle) withID(id int64) Object {
	c.ID = id
	return c
}
func (c Circle) clone() Object { return c }

// Text is a single text run whose baseline starts at Origin.
type Text struct {
	Base
	Origin   geom.Point `json:"origin"`
	Body     string     `json:"body"`
	FontSize int        `json:"fontSize,omitempty"`
}

func (Text) Kind() Kind { return KindText }

// Size returns the font size with the default applied.
func (t Text) Size() int {
	if t.FontSize <= 0 {
		return DefaultFontSize
	}
	return t.FontSize
}

// Bounds approximates the run as 0.6em per rune, one line tall above the baseline.
func (t Text) Bounds() geom.Rect {
	size := float64(t.Size())
	width := 0.6 * size * float64(len([]rune(t.Body)))
	return geom.Rect{X: t.Origin.X, Y: t.Origin.Y - size, Width: width, Height: size * 1.2}
}

func (t Text) withID(id int64) Object {
	t.ID = id
	return t
}
func (t Text) clone() Object { return t }

// StickyNote has a fixed StickySize square footprint anchored at Origin.
type StickyNote struct {
	Base
	Origin     geom.Point `json:"origin"`
	Body       string     `json:"body"`
	Background string     `json:"backgroundColor,omitempty"`
}

func (StickyNote) Kind() Kind { return KindSticky }

func (n StickyNote) Bounds() geom.Rect {
	return geom.Rect{X: n.Origin.X, Y: n.Origin.Y, Width: StickySize, Height: StickySize}
}

// Fill returns the background with the default applied.
func (n StickyNote) Fill() string {
	if n.Background == "" {
		return DefaultStickyColor
	}
	return n.Background
}

func (n StickyNote) withID(id int64) Object {
	n.ID = id
	return n
}
func (n StickyNote) clone() Object { return n }

// Media is a placeholder for an image, document, video, audio clip or 3D
// model. SourceRef is opaque to the scene; the media loader resolves it.
type Media struct {
	Base
	MediaKind MediaKind  `json:"kind"`
	Origin    geom.Point `json:"origin"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	SourceRef string     `json:"sourceRef"`
}

func (Media) Kind() Kind { return KindMedia }

func (m Media) Bounds() geom.Rect {
	return geom.Rect{X: m.Origin.X, Y: m.Origin.Y, Width: m.Width, Height: m.Height}.Normalize()
}

func (m Media) withID(id int64) Object {
	m.ID = id
	return m
}
func (m Media) clone() Object { return m }

// Clone returns a deep copy of o.
func Clone(o Object) Object {
	if o == nil {
		return nil
	}
	return o.clone()
}

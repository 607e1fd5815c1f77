// Package render turns a board frame into drawing operations. Compile emits a
// draw-command list for a browser canvas; Execute replays the same list on a
// Surface so the server can rasterize or print an identical picture.
package render

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/snapping"
)

// Colors and dash patterns used by the renderer.
const (
	DefaultBackground = "#1a1a2e"
	GridColor         = "#26264a"
	GuideColor        = "#ff4f8b"
	StickyTextColor   = "#333333"
	MediaFill         = "#23233b"
	MediaFrame        = "#8a8ab0"
)

var (
	previewDash = []float64{6, 4}
	guideDash   = []float64{4, 4}
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "clear", "path", "text", "image", "save", "transform", "restore"
	ObjectID    int64         `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width in world units
	Opacity     float64       `json:"opacity,omitempty"`     // Global alpha
	Dash        []float64     `json:"dash,omitempty"`        // Line dash in screen pixels
	Text        string        `json:"text,omitempty"`
	X           float64       `json:"x,omitempty"`
	Y           float64       `json:"y,omitempty"`
	FontSize    float64       `json:"fontSize,omitempty"`
	ImageSrc    string        `json:"imageSrc,omitempty"` // Media sourceRef
	ImageWidth  float64       `json:"imageWidth,omitempty"`
	ImageHeight float64       `json:"imageHeight,omitempty"`
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["Z"], and
// ["A", cx, cy, r] for a full circle.
type PathCommand []interface{}

// Frame is everything one redraw depends on.
type Frame struct {
	Objects    []scene.Object
	Viewport   geom.Viewport
	Draft      scene.Object
	Guides     []snapping.Guide
	ShowGuides bool
	Width      float64
	Height     float64
	Background string
}

// Compile generates the draw command buffer for a frame in painter's order:
// background, screen-space grid, then the viewport transform wrapping the
// committed objects, the dashed preview and the dashed guides.
func Compile(f Frame) []DrawCommand {
	bg := f.Background
	if bg == "" {
		bg = DefaultBackground
	}

	commands := []DrawCommand{{Op: "clear", Fill: bg}}
	if grid := gridPath(f.Width, f.Height); len(grid) > 0 {
		commands = append(commands, DrawCommand{Op: "path", Path: grid, Stroke: GridColor, StrokeWidth: 1, Opacity: 1})
	}

	commands = append(commands,
		DrawCommand{Op: "save"},
		DrawCommand{Op: "transform", Transform: f.Viewport.Matrix().ToSlice()},
	)

	for _, o := range f.Objects {
		commands = compileObject(o, nil, commands)
	}
	if f.Draft != nil {
		commands = compileObject(f.Draft, previewDash, commands)
	}
	if f.ShowGuides && len(f.Guides) > 0 {
		commands = append(commands, compileGuides(f)...)
	}

	return append(commands, DrawCommand{Op: "restore"})
}

func gridPath(width, height float64) []PathCommand {
	if width <= 0 || height <= 0 {
		return nil
	}
	var path []PathCommand
	for x := 0.0; x <= width; x += snapping.GridPitch {
		path = append(path, PathCommand{"M", x, 0.0}, PathCommand{"L", x, height})
	}
	for y := 0.0; y <= height; y += snapping.GridPitch {
		path = append(path, PathCommand{"M", 0.0, y}, PathCommand{"L", width, y})
	}
	return path
}

// compileObject appends the per-kind draw routine for o. A non-nil dash marks
// a preview.
func compileObject(o scene.Object, dash []float64, commands []DrawCommand) []DrawCommand {
	h := o.Header()
	st := h.Style.Resolved()
	stroked := func(path []PathCommand) DrawCommand {
		return DrawCommand{
			Op:          "path",
			ObjectID:    h.ID,
			Path:        path,
			Stroke:      st.Color,
			StrokeWidth: st.StrokeWidth,
			Opacity:     st.Opacity,
			Dash:        dash,
		}
	}

	switch v := o.(type) {
	case scene.Stroke:
		if len(v.Points) == 0 {
			return commands
		}
		path := []PathCommand{{"M", v.Points[0].X, v.Points[0].Y}}
		if len(v.Points) == 1 {
			path = append(path, PathCommand{"L", v.Points[0].X, v.Points[0].Y})
		}
		for _, p := range v.Points[1:] {
			path = append(path, PathCommand{"L", p.X, p.Y})
		}
		return append(commands, stroked(path))

	case scene.Line:
		return append(commands, stroked([]PathCommand{
			{"M", v.Start.X, v.Start.Y},
			{"L", v.End.X, v.End.Y},
		}))

	case scene.Rect:
		return append(commands, stroked(rectPath(geom.RectFromCorners(v.Start, v.End))))

	case scene.Circle:
		return append(commands, stroked([]PathCommand{{"A", v.Start.X, v.Start.Y, v.Radius()}}))

	case scene.Text:
		return append(commands, DrawCommand{
			Op:       "text",
			ObjectID: h.ID,
			Text:     v.Body,
			X:        v.Origin.X,
			Y:        v.Origin.Y,
			FontSize: float64(v.Size()),
			Fill:     st.Color,
			Opacity:  st.Opacity,
		})

	case scene.StickyNote:
		commands = append(commands, DrawCommand{
			Op:       "path",
			ObjectID: h.ID,
			Path:     rectPath(v.Bounds()),
			Fill:     v.Fill(),
			Opacity:  st.Opacity,
			Dash:     dash,
		})
		for i, line := range strings.Split(v.Body, "\n") {
			commands = append(commands, DrawCommand{
				Op:       "text",
				ObjectID: h.ID,
				Text:     line,
				X:        v.Origin.X + 10,
				Y:        v.Origin.Y + 24 + float64(i)*18,
				FontSize: 14,
				Fill:     StickyTextColor,
				Opacity:  st.Opacity,
			})
		}
		return commands

	case scene.Media:
		b := v.Bounds()
		commands = append(commands,
			DrawCommand{
				Op:          "path",
				ObjectID:    h.ID,
				Path:        rectPath(b),
				Fill:        MediaFill,
				Stroke:      MediaFrame,
				StrokeWidth: 2,
				Opacity:     1,
				Dash:        dash,
			},
			DrawCommand{
				Op:       "text",
				ObjectID: h.ID,
				Text:     strings.ToUpper(string(v.MediaKind)),
				X:        b.X + 8,
				Y:        b.Y + 20,
				FontSize: 12,
				Fill:     MediaFrame,
				Opacity:  1,
			},
		)
		if v.MediaKind == scene.MediaImage && v.SourceRef != "" {
			commands = append(commands, DrawCommand{
				Op:          "image",
				ObjectID:    h.ID,
				ImageSrc:    v.SourceRef,
				X:           b.X,
				Y:           b.Y,
				ImageWidth:  b.Width,
				ImageHeight: b.Height,
				Opacity:     st.Opacity,
			})
		}
		return commands
	}
	return commands
}

func rectPath(r geom.Rect) []PathCommand {
	return []PathCommand{
		{"M", r.X, r.Y},
		{"L", r.X + r.Width, r.Y},
		{"L", r.X + r.Width, r.Y + r.Height},
		{"L", r.X, r.Y + r.Height},
		{"Z"},
	}
}

// compileGuides spans every guide across the visible world area. Widths are
// divided by zoom so guides stay one pixel wide on screen.
func compileGuides(f Frame) []DrawCommand {
	visible := f.Viewport.VisibleWorld(math.Max(f.Width, 1), math.Max(f.Height, 1))
	path := make([]PathCommand, 0, 2*len(f.Guides))
	for _, g := range f.Guides {
		switch g.Orientation {
		case snapping.Vertical:
			path = append(path,
				PathCommand{"M", g.Position, visible.Y},
				PathCommand{"L", g.Position, visible.Y + visible.Height})
		case snapping.Horizontal:
			path = append(path,
				PathCommand{"M", visible.X, g.Position},
				PathCommand{"L", visible.X + visible.Width, g.Position})
		}
	}
	zoom := f.Viewport.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return []DrawCommand{{
		Op:          "path",
		Path:        path,
		Stroke:      GuideColor,
		StrokeWidth: 1 / zoom,
		Opacity:     1,
		Dash:        guideDash,
	}}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

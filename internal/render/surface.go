package render

import (
	"image"
	"image/color"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
)

// Pen describes how a shape is painted. A zero Stroke or Fill alpha skips
// that part.
type Pen struct {
	Stroke color.NRGBA
	Fill   color.NRGBA
	Width  float64
	Dash   []float64
}

// Surface is a drawing backend. All coordinates are in device space; Execute
// applies the command transforms before calling it.
type Surface interface {
	Clear(bg color.NRGBA)
	// Polyline draws one subpath. Closed subpaths may be filled.
	Polyline(pts []geom.Point, closed bool, pen Pen)
	Circle(center geom.Point, r float64, pen Pen)
	Text(s string, at geom.Point, size float64, c color.NRGBA)
	Image(img image.Image, dst geom.Rect, opacity float64)
}

// Images resolves media sources for image commands. Lookup must not block:
// a source that is not ready yet reports false and the command is skipped,
// leaving only the media chrome.
type Images interface {
	Lookup(ref string) (image.Image, bool)
}

// Execute replays commands on s. images may be nil.
func Execute(commands []DrawCommand, s Surface, images Images) {
	m := geom.Identity()
	var stack []geom.Matrix2D

	for _, cmd := range commands {
		switch cmd.Op {
		case "clear":
			s.Clear(ParseColor(cmd.Fill, 1))
		case "save":
			stack = append(stack, m)
		case "restore":
			if n := len(stack); n > 0 {
				m = stack[n-1]
				stack = stack[:n-1]
			}
		case "transform":
			m = m.Multiply(geom.FromSlice(cmd.Transform))
		case "path":
			executePath(cmd, m, s)
		case "text":
			if cmd.Text == "" {
				continue
			}
			s.Text(cmd.Text, m.Apply(geom.Pt(cmd.X, cmd.Y)), cmd.FontSize*m.ScaleFactor(), ParseColor(cmd.Fill, cmd.Opacity))
		case "image":
			if images == nil {
				continue
			}
			img, ok := images.Lookup(cmd.ImageSrc)
			if !ok {
				continue
			}
			dst := geom.RectFromCorners(
				m.Apply(geom.Pt(cmd.X, cmd.Y)),
				m.Apply(geom.Pt(cmd.X+cmd.ImageWidth, cmd.Y+cmd.ImageHeight)),
			)
			s.Image(img, dst, opacityOr1(cmd.Opacity))
		}
	}
}

func executePath(cmd DrawCommand, m geom.Matrix2D, s Surface) {
	scale := m.ScaleFactor()
	pen := Pen{
		Width: cmd.StrokeWidth * scale,
		Dash:  cmd.Dash,
	}
	if cmd.Stroke != "" {
		pen.Stroke = ParseColor(cmd.Stroke, cmd.Opacity)
	}
	if cmd.Fill != "" {
		pen.Fill = ParseColor(cmd.Fill, cmd.Opacity)
	}

	var sub []geom.Point
	flush := func(closed bool) {
		if len(sub) > 0 {
			s.Polyline(sub, closed, pen)
		}
		sub = nil
	}

	for _, pc := range cmd.Path {
		if len(pc) == 0 {
			continue
		}
		op, _ := pc[0].(string)
		args := floats(pc[1:])
		switch {
		case op == "M" && len(args) >= 2:
			flush(false)
			sub = append(sub, m.Apply(geom.Pt(args[0], args[1])))
		case op == "L" && len(args) >= 2:
			sub = append(sub, m.Apply(geom.Pt(args[0], args[1])))
		case op == "Z":
			flush(true)
		case op == "A" && len(args) >= 3:
			flush(false)
			s.Circle(m.Apply(geom.Pt(args[0], args[1])), args[2]*scale, pen)
		}
	}
	flush(false)
}

// floats converts path arguments, accepting the numeric types a PathCommand
// may carry after a JSON round trip.
func floats(args []interface{}) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case float64:
			out = append(out, v)
		case float32:
			out = append(out, float64(v))
		case int:
			out = append(out, float64(v))
		case int64:
			out = append(out, float64(v))
		}
	}
	return out
}

func opacityOr1(o float64) float64 {
	if o <= 0 || o > 1 {
		return 1
	}
	return o
}

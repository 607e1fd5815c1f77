package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/render"
)

// PDF is a render.Surface that draws onto a single vector PDF page sized to
// the frame, one point per screen pixel.
type PDF struct {
	doc       *gofpdf.Fpdf
	translate func(string) string
	width     float64
	height    float64
	images    int
}

// NewPDF starts a one-page document of width×height points.
func NewPDF(width, height float64) *PDF {
	width, height = math.Max(width, 1), math.Max(height, 1)
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	doc.AddPage()
	doc.SetLineCapStyle("round")
	doc.SetLineJoinStyle("round")
	doc.SetFont("Helvetica", "", 12)

	return &PDF{
		doc:       doc,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
		width:     width,
		height:    height,
	}
}

func (p *PDF) Clear(bg color.NRGBA) {
	p.setAlpha(bg.A)
	p.doc.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
	p.doc.Rect(0, 0, p.width, p.height, "F")
}

func (p *PDF) Polyline(pts []geom.Point, closed bool, pen render.Pen) {
	if len(pts) == 0 {
		return
	}
	if closed && pen.Fill.A > 0 {
		p.setFill(pen.Fill)
		p.trace(pts, true)
		p.doc.DrawPath("F")
	}
	if p.setStroke(pen) {
		p.trace(pts, closed)
		p.doc.DrawPath("D")
	}
}

func (p *PDF) trace(pts []geom.Point, closed bool) {
	p.doc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		p.doc.LineTo(pt.X, pt.Y)
	}
	if len(pts) == 1 {
		p.doc.LineTo(pts[0].X, pts[0].Y)
	}
	if closed {
		p.doc.ClosePath()
	}
}

func (p *PDF) Circle(center geom.Point, r float64, pen render.Pen) {
	if pen.Fill.A > 0 {
		p.setFill(pen.Fill)
		p.doc.Circle(center.X, center.Y, r, "F")
	}
	if p.setStroke(pen) {
		p.doc.Circle(center.X, center.Y, r, "D")
	}
}

func (p *PDF) Text(s string, at geom.Point, size float64, c color.NRGBA) {
	if size <= 0 {
		return
	}
	p.setAlpha(c.A)
	p.doc.SetTextColor(int(c.R), int(c.G), int(c.B))
	p.doc.SetFontSize(size)
	p.doc.Text(at.X, at.Y, p.translate(s))
}

// Image embeds img as a PNG. The PDF viewer does the scaling.
func (p *PDF) Image(img image.Image, dst geom.Rect, opacity float64) {
	if dst.IsEmpty() {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return
	}
	p.images++
	name := fmt.Sprintf("media-%d", p.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.doc.RegisterImageOptionsReader(name, opts, &buf)

	p.doc.SetAlpha(opacity, "Normal")
	p.doc.ImageOptions(name, dst.X, dst.Y, dst.Width, dst.Height, false, opts, 0, "")
	p.doc.SetAlpha(1, "Normal")
}

func (p *PDF) setFill(c color.NRGBA) {
	p.setAlpha(c.A)
	p.doc.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func (p *PDF) setStroke(pen render.Pen) bool {
	if pen.Stroke.A == 0 || pen.Width <= 0 {
		return false
	}
	p.setAlpha(pen.Stroke.A)
	p.doc.SetDrawColor(int(pen.Stroke.R), int(pen.Stroke.G), int(pen.Stroke.B))
	p.doc.SetLineWidth(pen.Width)
	p.doc.SetDashPattern(pen.Dash, 0)
	return true
}

func (p *PDF) setAlpha(a uint8) {
	p.doc.SetAlpha(float64(a)/255, "Normal")
}

// WriteTo finishes the document.
func (p *PDF) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := p.doc.Output(cw); err != nil {
		return cw.n, fmt.Errorf("write pdf: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

// WritePDF renders a frame as a one-page PDF.
func WritePDF(w io.Writer, f render.Frame, images render.Images) error {
	p := NewPDF(f.Width, f.Height)
	render.Execute(render.Compile(f), p, images)
	_, err := p.WriteTo(w)
	return err
}

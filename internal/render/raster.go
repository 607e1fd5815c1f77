package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
)

var (
	parseFont = sync.OnceValues(func() (*truetype.Font, error) {
		return truetype.Parse(goregular.TTF)
	})

	facesMu sync.Mutex
	faces   = map[int]font.Face{}
)

// fontFace returns a cached Go Regular face at the nearest whole point size.
func fontFace(size float64) (font.Face, error) {
	pt := max(1, int(math.Round(size)))

	facesMu.Lock()
	defer facesMu.Unlock()
	if f, ok := faces[pt]; ok {
		return f, nil
	}
	ttf, err := parseFont()
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	f := truetype.NewFace(ttf, &truetype.Options{
		Size:    float64(pt),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faces[pt] = f
	return f, nil
}

// Raster is a Surface backed by a gg context.
type Raster struct {
	dc *gg.Context
}

// NewRaster allocates a width×height canvas.
func NewRaster(width, height int) *Raster {
	return &Raster{dc: gg.NewContext(max(width, 1), max(height, 1))}
}

func (r *Raster) Clear(bg color.NRGBA) {
	r.dc.SetColor(bg)
	r.dc.Clear()
}

func (r *Raster) Polyline(pts []geom.Point, closed bool, pen Pen) {
	if len(pts) == 0 {
		return
	}
	r.dc.NewSubPath()
	r.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r.dc.LineTo(p.X, p.Y)
	}
	if closed {
		r.dc.ClosePath()
	}
	r.paint(pen, closed)
}

func (r *Raster) Circle(center geom.Point, radius float64, pen Pen) {
	r.dc.NewSubPath()
	r.dc.DrawCircle(center.X, center.Y, radius)
	r.paint(pen, true)
}

func (r *Raster) paint(pen Pen, fillable bool) {
	if fillable && pen.Fill.A > 0 {
		r.dc.SetColor(pen.Fill)
		r.dc.FillPreserve()
	}
	if pen.Stroke.A > 0 && pen.Width > 0 {
		r.dc.SetColor(pen.Stroke)
		r.dc.SetLineWidth(pen.Width)
		r.dc.SetLineCap(gg.LineCapRound)
		r.dc.SetLineJoin(gg.LineJoinRound)
		r.dc.SetDash(pen.Dash...)
		r.dc.StrokePreserve()
	}
	r.dc.ClearPath()
}

func (r *Raster) Text(s string, at geom.Point, size float64, c color.NRGBA) {
	face, err := fontFace(size)
	if err != nil {
		return
	}
	r.dc.SetFontFace(face)
	r.dc.SetColor(c)
	r.dc.DrawString(s, at.X, at.Y)
}

func (r *Raster) Image(img image.Image, dst geom.Rect, opacity float64) {
	w, h := int(math.Round(dst.Width)), int(math.Round(dst.Height))
	if w <= 0 || h <= 0 {
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	target, ok := r.dc.Image().(*image.RGBA)
	if !ok {
		r.dc.DrawImage(scaled, int(dst.X), int(dst.Y))
		return
	}
	at := image.Pt(int(math.Round(dst.X)), int(math.Round(dst.Y)))
	mask := image.NewUniform(color.Alpha{A: uint8(255 * opacityOr1(opacity))})
	draw.DrawMask(target, scaled.Bounds().Add(at), scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

// Picture returns the rendered image.
func (r *Raster) Picture() image.Image {
	return r.dc.Image()
}

// Rasterize renders a frame to an image of the frame's size.
func Rasterize(f Frame, images Images) image.Image {
	r := NewRaster(int(math.Ceil(f.Width)), int(math.Ceil(f.Height)))
	Execute(Compile(f), r, images)
	return r.Picture()
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

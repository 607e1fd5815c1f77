package scene

import "github.com/wmorrison76/LucccaHosp-sub009/internal/geom"

// NewSampleEnvelope returns the welcome board offered to new users: a few
// sticky notes, a frame around them and a connector.
func NewSampleEnvelope() Envelope {
	frame := Style{Color: "#7c83fd", StrokeWidth: 2}
	return Envelope{
		Zoom: 1,
		Objects: []Object{
			Rect{
				Base:  Base{ID: 1, Style: frame},
				Start: geom.Pt(80, 80),
				End:   geom.Pt(600, 300),
			},
			StickyNote{
				Base:   Base{ID: 2},
				Origin: geom.Pt(100, 120),
				Body:   "Welcome!\nPick a tool and draw.",
			},
			StickyNote{
				Base:       Base{ID: 3},
				Origin:     geom.Pt(420, 120),
				Body:       "Right-drag to pan,\nwheel to zoom.",
				Background: "#b9fbc0",
			},
			Line{
				Base:  Base{ID: 4, Style: frame},
				Start: geom.Pt(250, 195),
				End:   geom.Pt(420, 195),
			},
			Text{
				Base:     Base{ID: 5, Style: Style{Color: "#ffffff"}},
				Origin:   geom.Pt(80, 60),
				Body:     "Getting started",
				FontSize: 24,
			},
		},
	}
}

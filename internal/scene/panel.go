package scene

import (
	"slices"
	"sort"
)

// PanelKind names what a floating panel shows.
type PanelKind string

const (
	PanelMediaViewer PanelKind = "media-viewer"
	PanelNotes       PanelKind = "notes"
)

// Panel is a floating overlay positioned in screen space. It is not part of
// the document, but its id and z-index come from the document's allocator.
type Panel struct {
	ID       int64     `json:"id"`
	Kind     PanelKind `json:"kind"`
	Title    string    `json:"title"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Z        int64     `json:"z"`
	ObjectID int64     `json:"objectId,omitempty"`
}

// Panels is the set of open panels.
type Panels struct {
	ids   *IDAllocator
	items []Panel
}

// NewPanels returns an empty panel set sharing ids.
func NewPanels(ids *IDAllocator) *Panels {
	return &Panels{ids: ids}
}

// Open adds a panel on top of the others. The id and z fields of p are
// overwritten.
func (ps *Panels) Open(p Panel) Panel {
	p.ID = ps.ids.Next()
	p.Z = ps.ids.Next()
	ps.items = append(ps.items, p)
	return p
}

// Focus raises a panel above every other panel.
func (ps *Panels) Focus(id int64) bool {
	for i := range ps.items {
		if ps.items[i].ID == id {
			ps.items[i].Z = ps.ids.Next()
			return true
		}
	}
	return false
}

// Move repositions a panel in screen space.
func (ps *Panels) Move(id int64, x, y float64) bool {
	for i := range ps.items {
		if ps.items[i].ID == id {
			ps.items[i].X, ps.items[i].Y = x, y
			return true
		}
	}
	return false
}

// Close removes a panel.
func (ps *Panels) Close(id int64) bool {
	n := len(ps.items)
	ps.items = slices.DeleteFunc(ps.items, func(p Panel) bool { return p.ID == id })
	return len(ps.items) != n
}

// CloseForObject closes every panel bound to a document object.
func (ps *Panels) CloseForObject(objectID int64) {
	ps.items = slices.DeleteFunc(ps.items, func(p Panel) bool { return p.ObjectID == objectID })
}

// List returns the panels ordered bottom to top.
func (ps *Panels) List() []Panel {
	out := slices.Clone(ps.items)
	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

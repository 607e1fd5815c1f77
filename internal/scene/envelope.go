package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
)

// ExportVersion is written into structured exports.
const ExportVersion = "1.0"

// Envelope is the persisted state of one board: the objects, the viewport and
// the collaboration metadata that rides along with them.
type Envelope struct {
	Objects      []Object
	Zoom         float64
	Pan          geom.Point
	Participants json.RawMessage
	ChatMessages json.RawMessage
	IsLocked     bool
}

type wireEnvelope struct {
	Objects      []json.RawMessage `json:"objects"`
	Zoom         float64           `json:"zoom"`
	Pan          geom.Point        `json:"pan"`
	Participants json.RawMessage   `json:"participants,omitempty"`
	ChatMessages json.RawMessage   `json:"chatMessages,omitempty"`
	IsLocked     bool              `json:"isLocked"`
}

// Viewport returns the envelope's pan and zoom as a viewport.
func (e Envelope) Viewport() geom.Viewport {
	v := geom.NewViewport()
	v.SetPan(e.Pan)
	v.SetZoom(e.Zoom)
	return v
}

// MarshalJSON writes the tagged wire form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	objs, err := EncodeObjects(e.Objects)
	if err != nil {
		return nil, err
	}
	zoom := e.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return json.Marshal(wireEnvelope{
		Objects:      objs,
		Zoom:         zoom,
		Pan:          e.Pan,
		Participants: e.Participants,
		ChatMessages: e.ChatMessages,
		IsLocked:     e.IsLocked,
	})
}

// UnmarshalJSON is Hydrate without the diagnostics.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	env, _ := Hydrate(data)
	*e = env
	return nil
}

// Hydrate decodes a persisted board. Each field is decoded on its own and
// falls back to its default when missing or malformed: no objects, zoom 1,
// pan at the origin. The envelope is always usable; err lists every field
// that fell back.
func Hydrate(data []byte) (Envelope, error) {
	env := Envelope{Zoom: 1}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}

	var errs []error
	if raw, ok := fields["objects"]; ok && !isNull(raw) {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			errs = append(errs, fmt.Errorf("objects: %w", err))
		} else {
			objs, err := DecodeObjects(list)
			if err != nil {
				errs = append(errs, err)
			}
			env.Objects = objs
		}
	}

	if raw, ok := fields["zoom"]; ok && !isNull(raw) {
		var z float64
		if err := json.Unmarshal(raw, &z); err != nil || math.IsNaN(z) || z <= 0 {
			errs = append(errs, fmt.Errorf("zoom: invalid value %s", raw))
		} else {
			env.Zoom = geom.ClampZoom(z)
		}
	}

	if raw, ok := fields["pan"]; ok && !isNull(raw) {
		var p geom.Point
		if err := json.Unmarshal(raw, &p); err != nil {
			errs = append(errs, fmt.Errorf("pan: %w", err))
		} else {
			env.Pan = p
		}
	}

	if raw, ok := fields["participants"]; ok && json.Valid(raw) && !isNull(raw) {
		env.Participants = raw
	}
	if raw, ok := fields["chatMessages"]; ok && json.Valid(raw) && !isNull(raw) {
		env.ChatMessages = raw
	}
	if raw, ok := fields["isLocked"]; ok {
		if err := json.Unmarshal(raw, &env.IsLocked); err != nil {
			errs = append(errs, fmt.Errorf("isLocked: %w", err))
		}
	}

	return env, errors.Join(errs...)
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Export is the structured, versioned export of a board.
type Export struct {
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Objects   []json.RawMessage `json:"objects"`
	Zoom      float64           `json:"zoom"`
	Pan       geom.Point        `json:"pan"`
}

// NewExport builds a structured export of objects seen through v.
func NewExport(objects []Object, v geom.Viewport, now time.Time) (Export, error) {
	objs, err := EncodeObjects(objects)
	if err != nil {
		return Export{}, fmt.Errorf("encode objects: %w", err)
	}
	return Export{
		Timestamp: now.UTC(),
		Version:   ExportVersion,
		Objects:   objs,
		Zoom:      v.Zoom,
		Pan:       v.Pan(),
	}, nil
}

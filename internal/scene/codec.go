package scene

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The wire form of an object is its variant's fields plus a "type"
// discriminator, e.g. {"type":"rect","id":3,"style":{},"start":{..},"end":{..}}.

// MarshalObject encodes o with its type tag.
func MarshalObject(o Object) ([]byte, error) {
	switch v := o.(type) {
	case Stroke:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Stroke
		}{KindStroke, v})
	case Line:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Line
		}{KindLine, v})
	case Rect:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Rect
		}{KindRect, v})
	case Circle:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Circle
		}{KindCircle, v})
	case Text:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Text
		}{KindText, v})
	case StickyNote:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			StickyNote
		}{KindSticky, v})
	case Media:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Media
		}{KindMedia, v})
	default:
		return nil, fmt.Errorf("unknown object %T", o)
	}
}

// UnmarshalObject decodes a tagged object.
func UnmarshalObject(data []byte) (Object, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode object type: %w", err)
	}

	switch head.Type {
	case KindStroke:
		return decodeAs[Stroke](data)
	case KindLine:
		return decodeAs[Line](data)
	case KindRect:
		return decodeAs[Rect](data)
	case KindCircle:
		return decodeAs[Circle](data)
	case KindText:
		return decodeAs[Text](data)
	case KindSticky:
		return decodeAs[StickyNote](data)
	case KindMedia:
		m, err := decodeAs[Media](data)
		if err != nil {
			return nil, err
		}
		if !m.(Media).MediaKind.Valid() {
			return nil, fmt.Errorf("unknown media kind %q", m.(Media).MediaKind)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown object type %q", head.Type)
	}
}

func decodeAs[T Object](data []byte) (Object, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", v.Kind(), err)
	}
	return v, nil
}

// EncodeObjects encodes a list of objects in order.
func EncodeObjects(objs []Object) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(objs))
	for _, o := range objs {
		data, err := MarshalObject(o)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// DecodeObjects decodes what it can. Malformed entries are skipped and
// reported together in the returned error; the slice is always usable.
func DecodeObjects(raw []json.RawMessage) ([]Object, error) {
	var errs []error
	out := make([]Object, 0, len(raw))
	for i, r := range raw {
		o, err := UnmarshalObject(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("object %d: %w", i, err))
			continue
		}
		out = append(out, o)
	}
	return out, errors.Join(errs...)
}

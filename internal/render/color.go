package render

import (
	"image/color"
	"strconv"
	"strings"
)

// ParseColor reads "#rgb", "#rrggbb" or "#rrggbbaa" and multiplies the alpha
// by opacity. Anything unreadable falls back to scene.DefaultColor's value so
// a malformed object still draws.
func ParseColor(hex string, opacity float64) color.NRGBA {
	c, ok := parseHex(hex)
	if !ok {
		c = color.NRGBA{R: 0x00, G: 0xd9, B: 0xff, A: 0xff}
	}
	c.A = uint8(float64(c.A) * opacityOr1(opacity))
	return c
}

func parseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

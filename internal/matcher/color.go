package matcher

import (
	"encoding/hex"
	"fmt"
	"strings"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

// Color is an exact RGB target.
type Color struct {
	R, G, B uint8
}

// ParseHex parses "#RRGGBB" (the leading '#' is optional, case-insensitive).
func ParseHex(s string) (Color, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) != 6 {
		return Color{}, apperr.Newf(apperr.CodeInvalidArgument, "color %q: want #RRGGBB", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Color{}, apperr.Wrapf(err, apperr.CodeInvalidArgument, "color %q", s)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}

// Hex formats the color as lowercase "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// Within reports whether (r, g, b) differs from c by at most tolerance on
// every channel.
func (c Color) Within(r, g, b uint8, tolerance int) bool {
	return absDiff(r, c.R) <= tolerance &&
		absDiff(g, c.G) <= tolerance &&
		absDiff(b, c.B) <= tolerance
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

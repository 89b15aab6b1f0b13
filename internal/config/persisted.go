package config

import (
	"encoding/json"
	"image"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/matcher"
)

// ColorsKey is the JSON key holding the saved color list.
const ColorsKey = "colors_to_click"

// Position is a saved screen point, stored as a two-element [x, y] array.
type Position = image.Point

type colorFile struct {
	Colors []string `json:"colors_to_click"`
}

// ParseColors parses "#RRGGBB" strings in order.
func ParseColors(list []string) ([]matcher.Color, error) {
	colors := make([]matcher.Color, 0, len(list))
	for _, s := range list {
		c, err := matcher.ParseHex(s)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeConfigInvalid, "invalid target color")
		}
		colors = append(colors, c)
	}
	return colors, nil
}

// ParseColorFile reads {"colors_to_click": ["#RRGGBB", ...]}. A missing key
// yields an empty list.
func ParseColorFile(data []byte) ([]matcher.Color, error) {
	var f colorFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfigInvalid, "malformed colors file")
	}
	return ParseColors(f.Colors)
}

// ParsePositionFile reads [[x, y], ...].
func ParsePositionFile(data []byte) ([]Position, error) {
	var raw [][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfigInvalid, "malformed positions file")
	}
	positions := make([]Position, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, apperr.Newf(apperr.CodeConfigInvalid, "position %d has %d values, want 2", i, len(pair))
		}
		positions = append(positions, Position{X: pair[0], Y: pair[1]})
	}
	return positions, nil
}

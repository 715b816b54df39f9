// skeleton-office-tools - flatten annotations into PDF documents
// Copyright (C) 2026  The skeleton-office-tools authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package annotation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a color in the DeviceRGB color space.
// All components are in the range [0, 1].
type Color struct {
	R, G, B float64
}

// Black is the default annotation color.
var Black = Color{}

var errInvalidColor = errors.New("invalid color")

// ParseColor parses a color given in the form "#rrggbb".
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return Color{}, fmt.Errorf("%w %q", errInvalidColor, s)
	}
	x, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w %q", errInvalidColor, s)
	}
	return Color{
		R: float64(x>>16&0xFF) / 255,
		G: float64(x>>8&0xFF) / 255,
		B: float64(x&0xFF) / 255,
	}, nil
}

// Hex returns the color in the form "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", toByte(c.R), toByte(c.G), toByte(c.B))
}

func (c Color) String() string {
	return c.Hex()
}

func toByte(x float64) uint8 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(math.Round(x * 255))
}

// MarshalText implements the [encoding.TextMarshaler] interface.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
// The empty string gives black.
func (c *Color) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*c = Black
		return nil
	}
	col, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = col
	return nil
}

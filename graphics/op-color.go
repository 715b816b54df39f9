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

package graphics

import (
	"fmt"
	"math"
)

// SetFillRGB sets the fill color in the DeviceRGB color space.
// Components are clamped to the range [0, 1].
//
// This implements the PDF graphics operator "rg".
func (w *Writer) SetFillRGB(r, g, b float64) {
	if !w.isValid("SetFillRGB", objPage|objText) {
		return
	}

	_, w.Err = fmt.Fprintln(w.Content,
		w.coord(clamp01(r)), w.coord(clamp01(g)), w.coord(clamp01(b)), "rg")
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Min(math.Max(x, 0), 1)
}

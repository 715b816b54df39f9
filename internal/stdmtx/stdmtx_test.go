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

package stdmtx

import (
	"math"
	"testing"
)

// TestWidths checks that all widths are plausible glyph space values
// and fit inside the font bounding box.
func TestWidths(t *testing.T) {
	F := Helvetica
	bboxWidth := F.FontBBox.Dx()
	for r, w := range F.Width {
		q := math.Sqrt(1000)
		if w < 500/q || w > 500*q {
			t.Errorf("%q: implausible width %f", r, w)
		}
		if w > bboxWidth+F.FontBBox.LLx+200 {
			t.Errorf("%q: width %f exceeds bbox %v", r, w, F.FontBBox)
		}
	}
}

func TestGlyphWidth(t *testing.T) {
	cases := map[rune]float64{
		'H':      722,
		'i':      222,
		' ':      278,
		'7':      556,
		'é':      556,
		'中':      556, // not in the font
	}
	for r, want := range cases {
		if got := Helvetica.GlyphWidth(r); got != want {
			t.Errorf("GlyphWidth(%q) = %g, want %g", r, got, want)
		}
	}
}

func TestVerticalMetrics(t *testing.T) {
	F := Helvetica
	if !(F.Descent < 0 && F.Ascent > F.XHeight && F.Ascent <= F.FontBBox.URy) {
		t.Errorf("inconsistent vertical metrics: %v", F)
	}
}

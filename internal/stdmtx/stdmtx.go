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

// Package stdmtx contains font metrics for the built-in Helvetica font.
//
// The values are taken from the Adobe Font Metrics file for Helvetica and
// are given in PDF glyph space units (1/1000 of the font size).
package stdmtx

import "github.com/opensaas-skeletons/skeleton-office-tools/pdf"

// FontData contains the metrics of a standard font.
type FontData struct {
	FontName     string
	FontFamily   string
	IsFixedPitch bool
	IsSerif      bool
	IsSymbolic   bool
	FontBBox     pdf.Rectangle
	ItalicAngle  float64
	Ascent       float64
	Descent      float64
	CapHeight    float64
	XHeight      float64
	StemV        float64
	StemH        float64

	// DefaultWidth is used for characters not listed in Width.
	DefaultWidth float64
	Width        map[rune]float64
}

// GlyphWidth returns the width of the glyph for r.
func (f *FontData) GlyphWidth(r rune) float64 {
	if w, ok := f.Width[r]; ok {
		return w
	}
	return f.DefaultWidth
}

// Helvetica contains the metrics of the Helvetica font.
var Helvetica = &FontData{
	FontName:    "Helvetica",
	FontFamily:  "Helvetica",
	IsSerif:     false,
	FontBBox:    pdf.Rectangle{LLx: -166, LLy: -225, URx: 1000, URy: 931},
	ItalicAngle: 0,
	Ascent:      718,
	Descent:     -207,
	CapHeight:   718,
	XHeight:     523,
	StemV:       88,
	StemH:       76,

	DefaultWidth: 556,
	Width:        helveticaWidths(),
}

func helveticaWidths() map[rune]float64 {
	res := map[rune]float64{
		' ': 278, '!': 278, '"': 355, '#': 556, '$': 556, '%': 889, '&': 667,
		'\'': 191, '(': 333, ')': 333, '*': 389, '+': 584, ',': 278, '-': 333,
		'.': 278, '/': 278, ':': 278, ';': 278, '<': 584, '=': 584, '>': 584,
		'?': 556, '@': 1015,

		'A': 667, 'B': 667, 'C': 722, 'D': 722, 'E': 667, 'F': 611, 'G': 778,
		'H': 722, 'I': 278, 'J': 500, 'K': 667, 'L': 556, 'M': 833, 'N': 722,
		'O': 778, 'P': 667, 'Q': 778, 'R': 722, 'S': 667, 'T': 611, 'U': 722,
		'V': 667, 'W': 944, 'X': 667, 'Y': 667, 'Z': 611,

		'[': 278, '\\': 278, ']': 278, '^': 469, '_': 556, '`': 333,

		'a': 556, 'b': 556, 'c': 500, 'd': 556, 'e': 556, 'f': 278, 'g': 556,
		'h': 556, 'i': 222, 'j': 222, 'k': 500, 'l': 222, 'm': 833, 'n': 556,
		'o': 556, 'p': 556, 'q': 556, 'r': 333, 's': 500, 't': 278, 'u': 556,
		'v': 500, 'w': 722, 'x': 500, 'y': 500, 'z': 500,

		'{': 334, '|': 260, '}': 334, '~': 584,

		// WinAnsiEncoding, 0x80-0x9F
		'€': 556, '‚': 222, 'ƒ': 556, '„': 333, '…': 1000, '†': 556, '‡': 556,
		'ˆ': 333, '‰': 1000, 'Š': 667, '‹': 333, 'Œ': 1000, 'Ž': 611,
		'‘': 222, '’': 222, '“': 333, '”': 333, '•': 350, '–': 556, '—': 1000,
		'˜': 333, '™': 1000, 'š': 500, '›': 333, 'œ': 944, 'ž': 500, 'Ÿ': 667,

		// Latin-1 supplement
		'\u00a0': 278, '¡': 333, '¢': 556, '£': 556, '¤': 556, '¥': 556,
		'¦': 260, '§': 556, '¨': 333, '©': 737, 'ª': 370, '«': 556, '¬': 584,
		'\u00ad': 333, '®': 737, '¯': 333, '°': 400, '±': 584, '²': 333,
		'³': 333, '´': 333, 'µ': 556, '¶': 537, '·': 278, '¸': 333, '¹': 333,
		'º': 365, '»': 556, '¼': 834, '½': 834, '¾': 834, '¿': 611,
		'Æ': 1000, 'Ç': 722, 'Ð': 722, 'Ñ': 722, '×': 584, 'Ø': 778,
		'Ý': 667, 'Þ': 667, 'ß': 611, 'æ': 889, 'ç': 500, 'ð': 556,
		'ñ': 556, '÷': 584, 'ø': 611, 'ý': 500, 'þ': 556, 'ÿ': 500,
	}
	for c := '0'; c <= '9'; c++ {
		res[c] = 556
	}
	// accented letters have the width of the base letter
	groups := []struct {
		letters string
		width   float64
	}{
		{"ÀÁÂÃÄÅ", 667},
		{"ÈÉÊË", 667},
		{"ÌÍÎÏ", 278},
		{"ÒÓÔÕÖ", 778},
		{"ÙÚÛÜ", 722},
		{"àáâãäå", 556},
		{"èéêë", 556},
		{"ìíîï", 278},
		{"òóôõö", 556},
		{"ùúûü", 556},
	}
	for _, g := range groups {
		for _, r := range g.letters {
			res[r] = g.width
		}
	}
	return res
}

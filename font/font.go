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

// Package font defines the interface shared by the fonts used to draw
// annotation text.
//
// Two implementations exist: the built-in Helvetica font in
// [github.com/opensaas-skeletons/skeleton-office-tools/font/standard] and
// embedded TrueType fonts in
// [github.com/opensaas-skeletons/skeleton-office-tools/font/truetype].
package font

import "github.com/opensaas-skeletons/skeleton-office-tools/pdf"

// Font represents a font which can be used to draw text.
//
// All calls to Encode must happen before Embed is called: fonts which are
// embedded as a subset only include the glyphs seen by Encode.
type Font interface {
	// PostScriptName returns the PostScript name of the font.
	PostScriptName() string

	// Ascent returns the height of the font above the baseline, in
	// PDF units, for the given font size.
	Ascent(size float64) float64

	// Width returns the advance width of text, in PDF units.
	Width(text string, size float64) float64

	// Encode converts text into the character codes used in the
	// content stream.
	Encode(text string) []byte

	// Embed writes the font dictionary, and all objects it depends on,
	// to w.  The reference of the font dictionary is returned.
	// On error, no objects are written unless w itself failed.
	Embed(w *pdf.Writer) (pdf.Reference, error)
}

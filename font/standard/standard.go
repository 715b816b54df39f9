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

// Package standard implements the built-in Helvetica font.
//
// The font is not embedded into the PDF file; every PDF viewer provides
// a metric-compatible replacement.  Text is encoded using
// WinAnsiEncoding, characters outside this encoding are shown as "?".
package standard

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/opensaas-skeletons/skeleton-office-tools/internal/stdmtx"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Font is a standard font using WinAnsiEncoding.
type Font struct {
	metrics *stdmtx.FontData
}

// Helvetica returns the Helvetica font.
func Helvetica() *Font {
	return &Font{metrics: stdmtx.Helvetica}
}

// PostScriptName implements the [font.Font] interface.
func (f *Font) PostScriptName() string {
	return f.metrics.FontName
}

// Ascent implements the [font.Font] interface.
func (f *Font) Ascent(size float64) float64 {
	return f.metrics.Ascent * size / 1000
}

// Width implements the [font.Font] interface.
func (f *Font) Width(text string, size float64) float64 {
	var w float64
	for _, c := range f.Encode(text) {
		w += f.metrics.GlyphWidth(charmap.Windows1252.DecodeByte(c))
	}
	return w * size / 1000
}

// Encode implements the [font.Font] interface.
func (f *Font) Encode(text string) []byte {
	res := make([]byte, 0, len(text))
	for _, r := range text {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		res = append(res, c)
	}
	return res
}

// Embed implements the [font.Font] interface.
func (f *Font) Embed(w *pdf.Writer) (pdf.Reference, error) {
	ref := w.Alloc()
	dict := pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name(f.metrics.FontName),
		"Encoding": pdf.Name("WinAnsiEncoding"),
	}
	err := w.Put(ref, dict)
	if err != nil {
		return 0, err
	}
	return ref, nil
}

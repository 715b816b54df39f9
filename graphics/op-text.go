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
	"errors"
	"fmt"

	"seehuhn.de/go/geom/matrix"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// TextStart starts a new text object.
//
// This implements the PDF graphics operator "BT".
func (w *Writer) TextStart() {
	if !w.isValid("TextStart", objPage) {
		return
	}
	w.currentObject = objText

	w.nesting = append(w.nesting, pairTypeBT)
	w.matrixSet = false

	_, w.Err = fmt.Fprintln(w.Content, "BT")
}

// TextEnd ends the current text object.
//
// This implements the PDF graphics operator "ET".
func (w *Writer) TextEnd() {
	if !w.isValid("TextEnd", objText) {
		return
	}
	w.currentObject = objPage

	if len(w.nesting) == 0 || w.nesting[len(w.nesting)-1] != pairTypeBT {
		w.Err = errors.New("TextEnd: no matching TextStart")
		return
	}
	w.nesting = w.nesting[:len(w.nesting)-1]

	_, w.Err = fmt.Fprintln(w.Content, "ET")
}

// TextSetFont sets the font and font size.  The font is given by the
// reference of its font dictionary; a resource name is allocated as needed.
//
// This implements the PDF graphics operator "Tf".
func (w *Writer) TextSetFont(font pdf.Reference, size float64) {
	if !w.isValid("TextSetFont", objText|objPage) {
		return
	}
	if font == 0 {
		w.Err = errors.New("TextSetFont: missing font reference")
		return
	}

	name := w.fontResourceName(font)
	w.Err = name.PDF(w.Content)
	if w.Err != nil {
		return
	}
	_, w.Err = fmt.Fprintln(w.Content, "", w.coord(size), "Tf")
	w.fontSet = true
}

// FontName returns the resource name used for the given font,
// or the empty name if the font has not been used.
func (w *Writer) FontName(font pdf.Reference) pdf.Name {
	return w.resName[font]
}

// TextSetMatrix replaces the current text matrix and line matrix.
//
// This implements the PDF graphics operator "Tm".
func (w *Writer) TextSetMatrix(M matrix.Matrix) {
	if !w.isValid("TextSetMatrix", objText) {
		return
	}

	w.matrixSet = true

	_, w.Err = fmt.Fprintln(w.Content, w.coord(M[0]), w.coord(M[1]), w.coord(M[2]), w.coord(M[3]), w.coord(M[4]), w.coord(M[5]), "Tm")
}

// TextShowRaw shows an already encoded text, given as a hex string.
//
// This implements the PDF graphics operator "Tj".
func (w *Writer) TextShowRaw(s []byte) {
	if !w.isValid("TextShowRaw", objText) {
		return
	}
	if !w.fontSet || !w.matrixSet {
		w.Err = errors.New("TextShowRaw: font or text matrix not set")
		return
	}

	w.Err = pdf.HexString(s).PDF(w.Content)
	if w.Err != nil {
		return
	}
	_, w.Err = fmt.Fprintln(w.Content, " Tj")
}

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

// Package transform converts annotation positions from display space into
// the coordinate system of a PDF page.
//
// Display space has its origin at the top left corner of the page as it is
// shown to the user, i.e. after the page rotation has been applied, with
// the y axis pointing down.  PDF page space is the unrotated default user
// space of the page, with the y axis pointing up.
package transform

import (
	"sync/atomic"

	"seehuhn.de/go/geom/matrix"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf/pagetree"
)

// Point is a position in display space.
type Point struct {
	X, Y float64
}

// Result is the position of a text baseline in PDF page space.
type Result struct {
	PDFX, PDFY float64

	// TextRotation is the counter-clockwise rotation of the text in
	// PDF page space, in degrees.  This is one of 0, 90, 180 and 270.
	TextRotation int

	// Fallback is set if the page rotation is not a multiple of 90
	// degrees.  In this case the page is treated as unrotated.
	Fallback bool
}

// ToPDF converts the top left corner p of a text annotation into the start
// of the text baseline in PDF page space.  The ascent is the height of the
// font above the baseline, in PDF units.
func ToPDF(p Point, ascent float64, g pagetree.PageGeometry) Result {
	var res Result
	switch {
	case g.NonRightAngle():
		res.Fallback = true
		fallthrough
	case g.Rotation == 0:
		res.PDFX = g.X + p.X
		res.PDFY = g.Y + g.Height - p.Y - ascent
	case g.Rotation == 90:
		res.PDFX = g.X + p.Y
		res.PDFY = g.Y + p.X + ascent
	case g.Rotation == 180:
		res.PDFX = g.X + g.Width - p.X
		res.PDFY = g.Y + p.Y + ascent
	case g.Rotation == 270:
		res.PDFX = g.X + g.Height - p.Y
		res.PDFY = g.Y + g.Width - p.X - ascent
	}
	if !res.Fallback {
		res.TextRotation = g.Rotation
	}
	return res
}

// TextMatrix returns the text matrix which places text at the position
// given by r.  The rotation is exact, no trigonometric functions are
// evaluated.
func TextMatrix(r Result) matrix.Matrix {
	var rot matrix.Matrix
	switch r.TextRotation {
	case 90:
		rot = matrix.Matrix{0, 1, -1, 0, 0, 0}
	case 180:
		rot = matrix.Matrix{-1, 0, 0, -1, 0, 0}
	case 270:
		rot = matrix.Matrix{0, -1, 1, 0, 0, 0}
	default:
		rot = matrix.Identity
	}
	return rot.Mul(matrix.Translate(r.PDFX, r.PDFY))
}

// Counter counts the conversions which had to fall back to the unrotated
// formula.  A Counter is safe for concurrent use.
type Counter struct {
	fallbacks atomic.Int64
}

// ToPDF calls the package level [ToPDF] and records fallbacks.
func (c *Counter) ToPDF(p Point, ascent float64, g pagetree.PageGeometry) Result {
	res := ToPDF(p, ascent, g)
	if res.Fallback {
		c.fallbacks.Add(1)
	}
	return res
}

// FallbackCount returns the number of fallbacks recorded so far.
func (c *Counter) FallbackCount() int64 {
	return c.fallbacks.Load()
}

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

// Package pagetree reads the page tree of a PDF document.
//
// Attributes which can be inherited from the ancestors of a page
// (Resources, MediaBox, CropBox and Rotate) are resolved, so that
// each returned [Page] carries its effective values.
package pagetree

import (
	"errors"
	"math"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

var errInvalidPageTree = errors.New("invalid page tree")

// maxDepth limits the nesting depth of the page tree.
const maxDepth = 64

// Page describes one page of a document.
type Page struct {
	// Ref is the reference of the page dictionary.  This is zero if
	// the page dictionary is (incorrectly) stored as a direct object.
	Ref pdf.Reference

	// Dict is the page dictionary, as stored in the file.
	Dict pdf.Dict

	// MediaBox is the effective media box.  If neither the page nor its
	// ancestors specify a media box, US Letter is used and
	// DefaultMediaBox is set.
	MediaBox        pdf.Rectangle
	DefaultMediaBox bool

	// CropBox is the effective crop box, or nil if none is set.
	CropBox *pdf.Rectangle

	// Rotate is the effective value of the /Rotate entry, in degrees.
	// The value is given as found in the file, and may not be a
	// multiple of 90.
	Rotate int

	// Resources is the effective resource dictionary, or nil.
	Resources pdf.Dict
}

// Letter is the default page size.
var Letter = pdf.Rectangle{URx: 612, URy: 792}

type inherited struct {
	resources pdf.Object
	mediaBox  pdf.Object
	cropBox   pdf.Object
	rotate    pdf.Object
}

func (inh inherited) update(node pdf.Dict) inherited {
	if obj, ok := node["Resources"]; ok {
		inh.resources = obj
	}
	if obj, ok := node["MediaBox"]; ok {
		inh.mediaBox = obj
	}
	if obj, ok := node["CropBox"]; ok {
		inh.cropBox = obj
	}
	if obj, ok := node["Rotate"]; ok {
		inh.rotate = obj
	}
	return inh
}

// FindPages returns the pages of the document in order.
func FindPages(r pdf.Getter, catalog pdf.Dict) ([]*Page, error) {
	root := catalog["Pages"]
	if root == nil {
		return nil, errInvalidPageTree
	}

	type todoItem struct {
		node  pdf.Object
		inh   inherited
		depth int
	}

	var res []*Page
	todo := []todoItem{{node: root}}
	seen := map[pdf.Reference]bool{}
	if ref, ok := root.(pdf.Reference); ok {
		seen[ref] = true
	}
	for len(todo) > 0 {
		k := len(todo) - 1
		item := todo[k]
		todo = todo[:k]

		node, err := pdf.GetDict(r, item.node)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		inh := item.inh.update(node)

		tp, _ := pdf.GetName(r, node["Type"])
		kids, _ := pdf.GetArray(r, node["Kids"])
		isPages := tp == "Pages" || tp != "Page" && kids != nil
		if !isPages {
			ref, _ := item.node.(pdf.Reference)
			page, err := newPage(r, ref, node, inh)
			if err != nil {
				return nil, err
			}
			res = append(res, page)
			continue
		}

		if item.depth >= maxDepth {
			return nil, &pdf.MalformedFileError{Err: errInvalidPageTree}
		}
		for i := len(kids) - 1; i >= 0; i-- {
			kid := kids[i]
			if kidRef, ok := kid.(pdf.Reference); ok {
				if seen[kidRef] {
					continue
				}
				seen[kidRef] = true
			}
			todo = append(todo, todoItem{node: kid, inh: inh, depth: item.depth + 1})
		}
	}

	return res, nil
}

func newPage(r pdf.Getter, ref pdf.Reference, dict pdf.Dict, inh inherited) (*Page, error) {
	page := &Page{
		Ref:  ref,
		Dict: dict,
	}

	mediaBox, err := pdf.GetRectangle(r, inh.mediaBox)
	if err != nil || mediaBox == nil || mediaBox.IsZero() {
		page.MediaBox = Letter
		page.DefaultMediaBox = true
	} else {
		page.MediaBox = *mediaBox
	}

	cropBox, err := pdf.GetRectangle(r, inh.cropBox)
	if err == nil && cropBox != nil && !cropBox.IsZero() {
		page.CropBox = cropBox
	}

	if inh.rotate != nil {
		rot, err := pdf.GetNumber(r, inh.rotate)
		if err == nil && !math.IsNaN(rot) && math.Abs(rot) < 1e6 {
			page.Rotate = int(math.Round(rot))
		}
	}

	resources, err := pdf.GetDict(r, inh.resources)
	if err != nil {
		return nil, err
	}
	page.Resources = resources

	return page, nil
}

// PageGeometry describes the visible area of a page and its orientation.
type PageGeometry struct {
	X, Y          float64 // lower left corner of the media box
	Width, Height float64

	// Rotation is the clockwise page rotation, one of 0, 90, 180 and 270.
	Rotation int

	// RawRotation is the /Rotate value, reduced to the range [0, 360).
	RawRotation int
}

// NewGeometry returns the geometry for a page with the given media box and
// /Rotate value.  Values of rotate which are not multiples of 90 give
// Rotation 0; use [PageGeometry.NonRightAngle] to detect this case.
func NewGeometry(mediaBox pdf.Rectangle, rotate int) PageGeometry {
	raw := rotate % 360
	if raw < 0 {
		raw += 360
	}
	g := PageGeometry{
		X:           mediaBox.LLx,
		Y:           mediaBox.LLy,
		Width:       mediaBox.Dx(),
		Height:      mediaBox.Dy(),
		RawRotation: raw,
	}
	if raw%90 == 0 {
		g.Rotation = raw
	}
	return g
}

// NonRightAngle reports whether the page has a rotation which is not
// a multiple of 90 degrees.
func (g PageGeometry) NonRightAngle() bool {
	return g.RawRotation%90 != 0
}

// Geometry returns the geometry of the page.
func (p *Page) Geometry() PageGeometry {
	return NewGeometry(p.MediaBox, p.Rotate)
}

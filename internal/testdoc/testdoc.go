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

// Package testdoc builds small PDF documents for use in tests.
package testdoc

import (
	"bytes"
	"fmt"

	"github.com/mattetti/filebuffer"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Page describes one page of a generated document.
type Page struct {
	MediaBox pdf.Rectangle
	Rotate   pdf.Object // nil to omit the entry
	Content  string     // nil content stream if empty

	// Resources, if set, is stored in the page dictionary.
	Resources pdf.Dict
}

// Letter is the MediaBox of a US Letter page.
var Letter = pdf.Rectangle{URx: 612, URy: 792}

// Options controls the structure of a generated document.
type Options struct {
	Pages []Page

	// Inherit moves MediaBox and Rotate of the first page to the
	// page tree root, to be inherited by all pages without own values.
	Inherit bool

	// Extras adds an outline, an AcroForm field, an embedded file,
	// a JavaScript open action and an Info dictionary.
	Extras bool

	// ObjectStreams stores the page dictionaries in an object stream
	// and uses a cross-reference stream instead of an xref table.
	ObjectStreams bool
}

// Build returns a document with the given pages.
func Build(pages ...Page) []byte {
	return BuildWith(Options{Pages: pages})
}

// BuildWith returns a document described by opt.
func BuildWith(opt Options) []byte {
	if opt.ObjectStreams {
		return buildCompressed(opt)
	}

	buf := filebuffer.New(nil)
	w, err := pdf.NewWriter(buf, pdf.V1_7)
	if err != nil {
		panic(err)
	}

	catalogRef := w.Alloc()
	pagesRef := w.Alloc()
	objs := makeObjects(opt, catalogRef, pagesRef, w.Alloc)
	for _, o := range objs {
		err = w.Put(o.ref, o.obj)
		if err != nil {
			panic(err)
		}
	}
	trailer := pdf.Dict{"Root": catalogRef}
	if opt.Extras {
		trailer["Info"] = objs[len(objs)-1].ref
		trailer["ID"] = pdf.Array{pdf.String("0123456789abcdef"), pdf.String("0123456789abcdef")}
	}
	err = w.Close(trailer)
	if err != nil {
		panic(err)
	}
	return buf.Buff.Bytes()
}

type object struct {
	ref pdf.Reference
	obj pdf.Object
}

func makeObjects(opt Options, catalogRef, pagesRef pdf.Reference, alloc func() pdf.Reference) []object {
	var objs []object

	var kids pdf.Array
	var pageObjs []object
	for i, p := range opt.Pages {
		pageRef := alloc()
		kids = append(kids, pageRef)
		page := pdf.Dict{
			"Type":   pdf.Name("Page"),
			"Parent": pagesRef,
		}
		if !(opt.Inherit && i == 0) {
			if !p.MediaBox.IsZero() {
				page["MediaBox"] = p.MediaBox
			}
			if p.Rotate != nil {
				page["Rotate"] = p.Rotate
			}
		}
		if p.Resources != nil {
			page["Resources"] = p.Resources
		}
		if p.Content != "" {
			contentRef := alloc()
			page["Contents"] = contentRef
			objs = append(objs, object{contentRef, pdf.NewStream(nil, []byte(p.Content))})
		}
		pageObjs = append(pageObjs, object{pageRef, page})
	}

	pages := pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": pdf.Integer(len(kids)),
	}
	if opt.Inherit && len(opt.Pages) > 0 {
		pages["MediaBox"] = opt.Pages[0].MediaBox
		if opt.Pages[0].Rotate != nil {
			pages["Rotate"] = opt.Pages[0].Rotate
		}
	}
	catalog := pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": pagesRef,
	}

	if opt.Extras && len(pageObjs) > 0 {
		outlineRef := alloc()
		itemRef := alloc()
		objs = append(objs,
			object{outlineRef, pdf.Dict{
				"Type":  pdf.Name("Outlines"),
				"First": itemRef,
				"Last":  itemRef,
				"Count": pdf.Integer(1),
			}},
			object{itemRef, pdf.Dict{
				"Title":  pdf.TextString("Chapter 1"),
				"Parent": outlineRef,
				"Dest":   pdf.Array{pageObjs[0].ref, pdf.Name("Fit")},
			}},
		)
		catalog["Outlines"] = outlineRef

		fieldRef := alloc()
		objs = append(objs, object{fieldRef, pdf.Dict{
			"FT": pdf.Name("Tx"),
			"T":  pdf.TextString("name"),
			"V":  pdf.TextString("Jane Doe"),
		}})
		catalog["AcroForm"] = pdf.Dict{"Fields": pdf.Array{fieldRef}}

		fileRef := alloc()
		objs = append(objs, object{fileRef, pdf.NewStream(pdf.Dict{
			"Type": pdf.Name("EmbeddedFile"),
		}, []byte("attachment data"))})
		catalog["Names"] = pdf.Dict{
			"EmbeddedFiles": pdf.Dict{
				"Names": pdf.Array{
					pdf.String("notes.txt"),
					pdf.Dict{
						"Type": pdf.Name("Filespec"),
						"F":    pdf.String("notes.txt"),
						"EF":   pdf.Dict{"F": fileRef},
					},
				},
			},
		}
		catalog["OpenAction"] = pdf.Dict{
			"S":  pdf.Name("JavaScript"),
			"JS": pdf.String("app.alert('hello');"),
		}
	}

	objs = append(objs, object{catalogRef, catalog}, object{pagesRef, pages})
	objs = append(objs, pageObjs...)

	if opt.Extras {
		infoRef := alloc()
		objs = append(objs, object{infoRef, pdf.Dict{
			"Title":    pdf.TextString("Test Document"),
			"Producer": pdf.TextString("testdoc"),
		}})
	}
	return objs
}

// buildCompressed writes a PDF 1.5 file where the catalog, the page tree and
// all page dictionaries are stored in an object stream, indexed by a
// cross-reference stream.
func buildCompressed(opt Options) []byte {
	next := uint32(1)
	alloc := func() pdf.Reference {
		ref := pdf.NewReference(next, 0)
		next++
		return ref
	}
	catalogRef := alloc()
	pagesRef := alloc()
	objs := makeObjects(opt, catalogRef, pagesRef, alloc)
	objStmRef := alloc()
	xrefRef := alloc()

	out := &bytes.Buffer{}
	out.WriteString("%PDF-1.5\n%\x80\x80\x80\x80\n")

	type entry struct {
		tp   byte
		a, b int
	}
	entries := make([]entry, next)

	// Streams must be stored as top-level objects.
	var inStm []object
	for _, o := range objs {
		if _, isStream := o.obj.(*pdf.Stream); isStream {
			entries[o.ref.Number()] = entry{1, out.Len(), 0}
			fmt.Fprintf(out, "%d 0 obj\n", o.ref.Number())
			if err := o.obj.PDF(out); err != nil {
				panic(err)
			}
			out.WriteString("\nendobj\n")
			continue
		}
		inStm = append(inStm, o)
	}

	head := &bytes.Buffer{}
	body := &bytes.Buffer{}
	for i, o := range inStm {
		fmt.Fprintf(head, "%d %d ", o.ref.Number(), body.Len())
		if err := o.obj.PDF(body); err != nil {
			panic(err)
		}
		body.WriteString("\n")
		entries[o.ref.Number()] = entry{2, int(objStmRef.Number()), i}
	}
	data := append(head.Bytes(), body.Bytes()...)
	stm, err := pdf.NewCompressedStream(pdf.Dict{
		"Type":  pdf.Name("ObjStm"),
		"N":     pdf.Integer(len(inStm)),
		"First": pdf.Integer(head.Len()),
	}, data)
	if err != nil {
		panic(err)
	}
	entries[objStmRef.Number()] = entry{1, out.Len(), 0}
	fmt.Fprintf(out, "%d 0 obj\n", objStmRef.Number())
	if err := stm.PDF(out); err != nil {
		panic(err)
	}
	out.WriteString("\nendobj\n")

	// xref stream with PNG-Up predictor, as written by many producers
	xrefPos := out.Len()
	entries[xrefRef.Number()] = entry{1, xrefPos, 0}
	const columns = 1 + 4 + 2
	var raw []byte
	prev := make([]byte, columns)
	for i, e := range entries {
		row := make([]byte, columns)
		switch {
		case i == 0:
			row[0] = 0
			row[5], row[6] = 0xFF, 0xFF
		case e.tp == 0:
			row[0] = 0
		default:
			row[0] = e.tp
			row[1] = byte(e.a >> 24)
			row[2] = byte(e.a >> 16)
			row[3] = byte(e.a >> 8)
			row[4] = byte(e.a)
			row[5] = byte(e.b >> 8)
			row[6] = byte(e.b)
		}
		raw = append(raw, 2)
		for j := range row {
			raw = append(raw, row[j]-prev[j])
		}
		prev = row
	}
	xrefDict := pdf.Dict{
		"Type": pdf.Name("XRef"),
		"Size": pdf.Integer(next),
		"W":    pdf.Array{pdf.Integer(1), pdf.Integer(4), pdf.Integer(2)},
		"Root": catalogRef,
		"DecodeParms": pdf.Dict{
			"Predictor": pdf.Integer(12),
			"Columns":   pdf.Integer(columns),
		},
	}
	xrefStm, err := pdf.NewCompressedStream(xrefDict, raw)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(out, "%d 0 obj\n", xrefRef.Number())
	if err := xrefStm.PDF(out); err != nil {
		panic(err)
	}
	fmt.Fprintf(out, "\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefPos)

	return out.Bytes()
}

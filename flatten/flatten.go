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

package flatten

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/mattetti/filebuffer"
	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/registry"
	"github.com/opensaas-skeletons/skeleton-office-tools/graphics"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf/pagetree"
	"github.com/opensaas-skeletons/skeleton-office-tools/transform"
)

// Flatten draws the annotations into the source document and returns the
// resulting document.
//
// Signature placements are drawn using the signature records in sigs.
// Annotations which cannot be drawn (empty text, missing pages, unknown
// signatures) are skipped and listed in the result; they do not cause
// an error.  If a signature font cannot be used, Helvetica is used
// instead and a warning is logged.
//
// The same input always gives the same output.
func (e *Engine) Flatten(ctx context.Context, source []byte, anns []annotation.Annotation, sigs []annotation.SignatureRecord) (res *Result, err error) {
	defer func() {
		if err != nil {
			e.setState(Failed)
		} else {
			e.setState(Serialized)
		}
	}()

	e.setState(Loading)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := pdf.NewReader(filebuffer.New(source), int64(len(source)))
	if err != nil {
		return nil, malformed(err)
	}
	if r.Repaired {
		e.Log.Warn("cross-reference information was reconstructed")
	}
	catalog, err := r.Catalog()
	if err != nil {
		return nil, malformed(err)
	}
	pages, err := pagetree.FindPages(r, catalog)
	if err != nil {
		return nil, malformed(err)
	}

	ops, skipped := e.plan(pages, anns, sigs)
	for _, s := range skipped {
		e.Log.WithFields(logrus.Fields{
			"page":       s.Page,
			"annotation": s.ID,
		}).WithError(s.Err).Info("annotation skipped")
	}
	res = &Result{Skipped: skipped}

	e.setState(Embedding)
	out := filebuffer.New([]byte{})
	ver := r.Version
	if ver < pdf.V1_4 {
		ver = pdf.V1_4
	}
	w, err := pdf.NewWriter(out, ver)
	if err != nil {
		return nil, err
	}
	w.Reserve(r.MaxObjectNumber())

	fonts := e.Registry.NewResolver(e.Log)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := op.font(fonts)
		for _, line := range op.lines {
			f.Encode(line)
		}
	}
	err = fonts.Embed(w)
	if err != nil {
		return nil, err
	}

	e.setState(Writing)
	replaced := make(map[pdf.Reference]pdf.Object)
	for start := 0; start < len(ops); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + 1
		for end < len(ops) && ops[end].page == ops[start].page {
			end++
		}
		page := pages[ops[start].page]
		dict, err := e.drawPage(ctx, r, w, fonts, page, ops[start:end], res)
		if err != nil {
			return nil, err
		}
		replaced[page.Ref] = dict
		res.PagesTouched++
		start = end
	}

	err = copyObjects(ctx, r, w, replaced)
	if err != nil {
		return nil, err
	}
	err = w.Close(r.Trailer())
	if err != nil {
		return nil, err
	}

	res.Data = out.Buff.Bytes()
	return res, nil
}

// drawPage writes the content streams for the annotations on one page,
// and returns the new page dictionary.
func (e *Engine) drawPage(ctx context.Context, r pdf.Getter, w *pdf.Writer, fonts *registry.Resolver, page *pagetree.Page, ops []*drawOp, res *Result) (pdf.Dict, error) {
	contents, err := contentStreams(r, page.Dict["Contents"])
	if err != nil {
		return nil, malformed(err)
	}
	resources := page.Resources.Clone()
	if resources == nil {
		resources = pdf.Dict{}
	}
	fontDict, err := pdf.GetDict(r, resources["Font"])
	if err != nil {
		return nil, malformed(err)
	}

	buf := &bytes.Buffer{}
	gw := graphics.NewWriter(buf, fontDict.Clone())
	gw.PopOuterState()

	geom := page.Geometry()
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := op.font(fonts)
		ref := fonts.Ref(f)
		ascent := f.Ascent(op.size)
		lead := lineSpacing * op.size

		gw.PushGraphicsState()
		gw.TextStart()
		gw.TextSetFont(ref, op.size)
		gw.SetFillRGB(op.color.R, op.color.G, op.color.B)
		for i, line := range op.lines {
			p := transform.Point{X: op.x, Y: op.y + float64(i)*lead}
			var pos transform.Result
			if i == 0 {
				pos = e.Transform.ToPDF(p, ascent, geom)
				if pos.Fallback {
					res.Fallbacks++
					e.Log.WithFields(logrus.Fields{
						"page":       op.page + 1,
						"annotation": op.id,
						"rotate":     geom.RawRotation,
					}).Warn("unsupported page rotation, placing annotation as if unrotated")
				}
			} else {
				pos = transform.ToPDF(p, ascent, geom)
			}
			if line == "" {
				continue
			}
			gw.TextSetMatrix(transform.TextMatrix(pos))
			gw.TextShowRaw(f.Encode(line))
		}
		gw.TextEnd()
		gw.PopGraphicsState()
		res.Drawn++
	}
	err = gw.Close()
	if err != nil {
		return nil, err
	}

	before, err := pdf.NewCompressedStream(nil, []byte("q\n"))
	if err != nil {
		return nil, err
	}
	after, err := pdf.NewCompressedStream(nil, buf.Bytes())
	if err != nil {
		return nil, err
	}
	beforeRef := w.Alloc()
	afterRef := w.Alloc()
	if err := w.Put(beforeRef, before); err != nil {
		return nil, err
	}
	if err := w.Put(afterRef, after); err != nil {
		return nil, err
	}

	newContents := make(pdf.Array, 0, len(contents)+2)
	newContents = append(newContents, beforeRef)
	newContents = append(newContents, contents...)
	newContents = append(newContents, afterRef)

	resources["Font"] = gw.Fonts
	dict := page.Dict.Clone()
	dict["Contents"] = newContents
	dict["Resources"] = resources
	return dict, nil
}

// contentStreams returns the content streams of a page.
func contentStreams(r pdf.Getter, obj pdf.Object) (pdf.Array, error) {
	switch obj := obj.(type) {
	case nil:
		return nil, nil
	case pdf.Array:
		return obj, nil
	case pdf.Reference:
		val, err := r.Get(obj)
		if err != nil {
			return nil, err
		}
		switch val := val.(type) {
		case pdf.Array:
			return val, nil
		case *pdf.Stream:
			return pdf.Array{obj}, nil
		case nil:
			return nil, nil
		}
		return nil, fmt.Errorf("invalid page contents %s", obj)
	default:
		return nil, fmt.Errorf("invalid page contents of type %T", obj)
	}
}

// copyObjects copies all objects from r to w.  Objects listed in replaced
// are written with their new value instead.  Cross-reference streams and
// object streams are not copied; the objects inside object streams are
// written as ordinary objects.
func copyObjects(ctx context.Context, r *pdf.Reader, w *pdf.Writer, replaced map[pdf.Reference]pdf.Object) error {
	for i, ref := range r.Objects() {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if obj, ok := replaced[ref]; ok {
			if err := w.Put(ref, obj); err != nil {
				return err
			}
			continue
		}

		obj, err := r.Get(ref)
		if err != nil {
			return malformed(err)
		}
		if stm, ok := obj.(*pdf.Stream); ok {
			switch stm.Dict["Type"] {
			case pdf.Name("XRef"), pdf.Name("ObjStm"):
				continue
			}
			data, err := io.ReadAll(stm.R)
			if err != nil {
				return malformed(err)
			}
			obj = pdf.NewStream(stm.Dict.Clone(), data)
		}
		if err := w.Put(ref, obj); err != nil {
			return err
		}
	}
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedDocument, pdf.Wrap(err, 0))
}

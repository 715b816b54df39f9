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
	"errors"
	"io"
	"strings"
	"testing"

	dpdf "github.com/digitorus/pdf"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/registry"
	"github.com/opensaas-skeletons/skeleton-office-tools/internal/testdoc"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf/pagetree"
)

const original = "BT /F1 12 Tf 72 720 Td (Original) Tj ET"

var helvetica = pdf.Dict{
	"F1": pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	},
}

func letterPage(rotate int) testdoc.Page {
	p := testdoc.Page{
		MediaBox:  testdoc.Letter,
		Content:   original,
		Resources: pdf.Dict{"Font": helvetica},
	}
	if rotate != 0 {
		p.Rotate = pdf.Integer(rotate)
	}
	return p
}

func newEngine(reg *registry.Registry) (*Engine, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(reg, logger), hook
}

func text(page int, x, y float64, s string) *annotation.Text {
	return &annotation.Text{
		Envelope: annotation.Envelope{ID: s, PageNumber: page, X: x, Y: y},
		Text:     s,
		FontSize: 14,
	}
}

// flattened gives access to the pages of an output document.
type flattened struct {
	r     *pdf.Reader
	pages []*pagetree.Page
}

func open(t *testing.T, data []byte) *flattened {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := r.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	pages, err := pagetree.FindPages(r, catalog)
	if err != nil {
		t.Fatal(err)
	}
	return &flattened{r: r, pages: pages}
}

// contents returns the decoded content streams of a page.
func (f *flattened) contents(t *testing.T, pageNo int) []string {
	t.Helper()
	a, err := pdf.GetArray(f.r, f.pages[pageNo].Dict["Contents"])
	if err != nil {
		// a single content stream
		a = pdf.Array{f.pages[pageNo].Dict["Contents"]}
	}
	var res []string
	for _, obj := range a {
		obj, err := pdf.Resolve(f.r, obj)
		if err != nil {
			t.Fatal(err)
		}
		stm, ok := obj.(*pdf.Stream)
		if !ok {
			t.Fatalf("expected stream, got %T", obj)
		}
		body, err := pdf.DecodeStream(f.r, stm)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, string(data))
	}
	return res
}

// font returns the font dictionary used under the given resource name.
func (f *flattened) font(t *testing.T, pageNo int, name pdf.Name) pdf.Dict {
	t.Helper()
	fonts, err := pdf.GetDict(f.r, f.pages[pageNo].Resources["Font"])
	if err != nil {
		t.Fatal(err)
	}
	dict, err := pdf.GetDict(f.r, fonts[name])
	if err != nil {
		t.Fatal(err)
	}
	return dict
}

func TestEndToEnd(t *testing.T) {
	src := testdoc.BuildWith(testdoc.Options{
		Pages:  []testdoc.Page{letterPage(0)},
		Extras: true,
	})
	e, _ := newEngine(nil)

	res, err := e.Flatten(context.Background(), src,
		[]annotation.Annotation{text(1, 100, 100, "Hello")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drawn != 1 || res.PagesTouched != 1 || len(res.Skipped) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if e.State() != Serialized {
		t.Errorf("state is %s", e.State())
	}

	out := open(t, res.Data)
	got := out.contents(t, 0)
	// Helvetica has ascent 718/1000, so at 14pt the baseline is 10.052
	// below the top of the annotation.
	want := []string{
		"q\n",
		original,
		"Q\nq\nBT\n/F2 14 Tf\n0 0 0 rg\n1 0 0 1 100 681.948 Tm\n<48656C6C6F> Tj\nET\nQ\n",
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}

	if base := out.font(t, 0, "F1")["BaseFont"]; base != pdf.Name("Helvetica") {
		t.Errorf("original font lost: %v", base)
	}
	f2 := out.font(t, 0, "F2")
	if f2["Subtype"] != pdf.Name("Type1") || f2["Encoding"] != pdf.Name("WinAnsiEncoding") {
		t.Errorf("unexpected font dict %v", f2)
	}
}

func TestPreserved(t *testing.T) {
	src := testdoc.BuildWith(testdoc.Options{
		Pages:  []testdoc.Page{letterPage(0), letterPage(0)},
		Extras: true,
	})
	e, _ := newEngine(nil)
	res, err := e.Flatten(context.Background(), src,
		[]annotation.Annotation{text(2, 50, 50, "Second page")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// parse the output with an independent implementation
	r, err := dpdf.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatal(err)
	}
	if n := r.NumPage(); n != 2 {
		t.Fatalf("%d pages, expected 2", n)
	}
	if n := r.Page(1).V.Key("Contents").Len(); n != 0 {
		t.Errorf("first page has %d content streams", n)
	}
	if n := r.Page(2).V.Key("Contents").Len(); n != 3 {
		t.Errorf("second page has %d content streams", n)
	}

	root := r.Trailer().Key("Root")
	if title := root.Key("Outlines").Key("First").Key("Title").Text(); title != "Chapter 1" {
		t.Errorf("outline title %q", title)
	}
	if v := root.Key("AcroForm").Key("Fields").Index(0).Key("V").Text(); v != "Jane Doe" {
		t.Errorf("form field value %q", v)
	}
	files := root.Key("Names").Key("EmbeddedFiles").Key("Names")
	if files.Len() != 2 || files.Index(0).RawString() != "notes.txt" {
		t.Errorf("attachments lost: %v", files)
	}
	if js := root.Key("OpenAction").Key("JS").RawString(); js != "app.alert('hello');" {
		t.Errorf("script lost: %q", js)
	}
	if title := r.Trailer().Key("Info").Key("Title").Text(); title != "Test Document" {
		t.Errorf("info title %q", title)
	}

	// the first page is unchanged
	out := open(t, res.Data)
	if d := cmp.Diff([]string{original}, out.contents(t, 0)); d != "" {
		t.Error(d)
	}
}

func TestObjectStreams(t *testing.T) {
	src := testdoc.BuildWith(testdoc.Options{
		Pages:         []testdoc.Page{letterPage(0)},
		ObjectStreams: true,
		Inherit:       true,
	})
	e, _ := newEngine(nil)
	res, err := e.Flatten(context.Background(), src,
		[]annotation.Annotation{text(1, 100, 100, "x")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := open(t, res.Data)
	if len(out.pages) != 1 {
		t.Fatalf("%d pages", len(out.pages))
	}
	if n := len(out.contents(t, 0)); n != 3 {
		t.Errorf("%d content streams", n)
	}
	for _, ref := range out.r.Objects() {
		obj, _ := out.r.Get(ref)
		if stm, ok := obj.(*pdf.Stream); ok && stm.Dict["Type"] == pdf.Name("ObjStm") {
			t.Errorf("object stream %s copied", ref)
		}
	}
}

func TestEmptyText(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	e, _ := newEngine(nil)
	res, err := e.Flatten(context.Background(), src, []annotation.Annotation{
		text(1, 10, 10, ""),
		&annotation.Text{Envelope: annotation.Envelope{ID: "nl", PageNumber: 1}, Text: "\n"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drawn != 0 || res.PagesTouched != 0 || res.SkippedBy(ErrEmptyText) != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	out := open(t, res.Data)
	if len(out.pages) != 1 {
		t.Fatalf("%d pages", len(out.pages))
	}
	if d := cmp.Diff([]string{original}, out.contents(t, 0)); d != "" {
		t.Error(d)
	}
}

func TestSkipped(t *testing.T) {
	src := testdoc.Build(letterPage(0), letterPage(0))
	sigs := []annotation.SignatureRecord{
		{ID: "s1", Name: "Jane Doe", FontFamily: "Go Italic"},
	}
	anns := []annotation.Annotation{
		&annotation.Signature{
			Envelope:    annotation.Envelope{ID: "dangling", PageNumber: 1},
			SignatureID: "deleted",
		},
		text(0, 10, 10, "page zero"),
		text(3, 10, 10, "page three"),
		text(1, 10, 10, "ok"),
		&annotation.Signature{
			Envelope:    annotation.Envelope{ID: "sig", PageNumber: 2, X: 10, Y: 10},
			SignatureID: "s1",
		},
	}
	e, hook := newEngine(nil)
	res, err := e.Flatten(context.Background(), src, anns, sigs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drawn != 2 || res.PagesTouched != 2 {
		t.Errorf("drawn %d on %d pages", res.Drawn, res.PagesTouched)
	}
	if n := res.SkippedBy(ErrDanglingSignature); n != 1 {
		t.Errorf("%d dangling signatures", n)
	}
	if n := res.SkippedBy(ErrPageOutOfRange); n != 2 {
		t.Errorf("%d pages out of range", n)
	}
	for _, entry := range hook.AllEntries() {
		if entry.Level <= logrus.WarnLevel {
			t.Errorf("unexpected warning %q", entry.Message)
		}
	}
}

func TestSignatureFont(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	sigs := []annotation.SignatureRecord{{
		ID:         "s1",
		Name:       "Jane Doe",
		FontFamily: "Go Italic",
		Color:      annotation.Color{B: 1},
	}}
	anns := []annotation.Annotation{
		&annotation.Signature{
			Envelope:    annotation.Envelope{ID: "a", PageNumber: 1, X: 100, Y: 100},
			SignatureID: "s1",
		},
	}
	e, hook := newEngine(nil)
	res, err := e.Flatten(context.Background(), src, anns, sigs)
	if err != nil {
		t.Fatal(err)
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected log entries %v", hook.Entries)
	}

	out := open(t, res.Data)
	streams := out.contents(t, 0)
	ops := streams[len(streams)-1]
	if !strings.Contains(ops, "/F2 24 Tf\n0 0 1 rg\n") {
		t.Errorf("unexpected content %q", ops)
	}
	f2 := out.font(t, 0, "F2")
	if f2["Subtype"] != pdf.Name("Type0") || f2["Encoding"] != pdf.Name("Identity-H") {
		t.Errorf("unexpected font dict %v", f2)
	}
	if base, _ := f2["BaseFont"].(pdf.Name); !strings.Contains(string(base), "+") {
		t.Errorf("base font %q has no subset tag", base)
	}
}

func TestFontFallback(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	reg := registry.Default()
	reg.Add("Broken", registry.Source{Data: []byte("not a font")})
	sigs := []annotation.SignatureRecord{
		{ID: "s1", Name: "Jane Doe", FontFamily: "Broken"},
		{ID: "s2", Name: "John Doe", FontFamily: "Broken"},
	}
	var anns []annotation.Annotation
	for i, id := range []string{"s1", "s2", "s1"} {
		anns = append(anns, &annotation.Signature{
			Envelope:    annotation.Envelope{ID: string(rune('a' + i)), PageNumber: 1, Y: float64(50 * i)},
			SignatureID: id,
		})
	}

	e, hook := newEngine(reg)
	res, err := e.Flatten(context.Background(), src, anns, sigs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drawn != 3 {
		t.Errorf("%d annotations drawn", res.Drawn)
	}

	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		warnings++
		err, _ := entry.Data[logrus.ErrorKey].(error)
		if entry.Data["family"] != "Broken" || !errors.Is(err, registry.ErrFontEmbed) {
			t.Errorf("unexpected warning %v", entry.Data)
		}
	}
	if warnings != 1 {
		t.Errorf("%d warnings, expected 1", warnings)
	}

	out := open(t, res.Data)
	if sub := out.font(t, 0, "F2")["Subtype"]; sub != pdf.Name("Type1") {
		t.Errorf("fallback font has subtype %v", sub)
	}
	if _, exists := out.font(t, 0, "F3")["Subtype"]; exists {
		t.Error("more than one font added")
	}
}

func TestRotation(t *testing.T) {
	src := testdoc.Build(letterPage(90), letterPage(45))
	e, hook := newEngine(nil)
	res, err := e.Flatten(context.Background(), src, []annotation.Annotation{
		text(1, 100, 100, "a"),
		text(2, 100, 100, "b"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallbacks != 1 || e.Transform.FallbackCount() != 1 {
		t.Errorf("%d fallbacks, counter %d", res.Fallbacks, e.Transform.FallbackCount())
	}

	out := open(t, res.Data)
	rotated := out.contents(t, 0)[2]
	if !strings.Contains(rotated, "0 1 -1 0 100 110.052 Tm") {
		t.Errorf("unexpected content %q", rotated)
	}
	unrotated := out.contents(t, 1)[2]
	if !strings.Contains(unrotated, "1 0 0 1 100 681.948 Tm") {
		t.Errorf("unexpected content %q", unrotated)
	}

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["rotate"] == 45 {
			warned = true
		}
	}
	if !warned {
		t.Error("fallback not logged")
	}
}

func TestMultiline(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	e, _ := newEngine(nil)
	res, err := e.Flatten(context.Background(), src,
		[]annotation.Annotation{text(1, 100, 100, "one\n\nthree")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ops := open(t, res.Data).contents(t, 0)[2]
	want := "Q\nq\nBT\n/F2 14 Tf\n0 0 0 rg\n" +
		"1 0 0 1 100 681.948 Tm\n<6F6E65> Tj\n" +
		"1 0 0 1 100 648.348 Tm\n<7468726565> Tj\n" +
		"ET\nQ\n"
	if d := cmp.Diff(want, ops); d != "" {
		t.Error(d)
	}
}

func TestOrder(t *testing.T) {
	src := testdoc.Build(letterPage(0), letterPage(0))
	anns := []annotation.Annotation{
		text(2, 10, 10, "c"),
		text(1, 10, 10, "a"),
		text(2, 10, 10, "d"),
		text(1, 10, 10, "b"),
	}
	e, _ := newEngine(nil)

	res1, err := e.Flatten(context.Background(), src, anns, nil)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := e.Flatten(context.Background(), src, anns, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(res1.Data, res2.Data) {
		t.Error("output is not deterministic")
	}

	out := open(t, res1.Data)
	for i, pair := range [][2]string{{"<61> Tj", "<62> Tj"}, {"<63> Tj", "<64> Tj"}} {
		ops := out.contents(t, i)[2]
		a, b := strings.Index(ops, pair[0]), strings.Index(ops, pair[1])
		if a < 0 || b < 0 || a > b {
			t.Errorf("page %d: wrong order in %q", i+1, ops)
		}
	}
}

func TestMalformed(t *testing.T) {
	e, _ := newEngine(nil)
	_, err := e.Flatten(context.Background(), []byte("%PDF-1.7\nthis is not a PDF file"), nil, nil)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("wrong error %v", err)
	}
	var m *pdf.MalformedFileError
	if !errors.As(err, &m) {
		t.Errorf("%v does not wrap a MalformedFileError", err)
	}
	if e.State() != Failed {
		t.Errorf("state is %s", e.State())
	}
}

func TestEncrypted(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	// add an /Encrypt entry to the trailer
	src = bytes.Replace(src, []byte("trailer\n<<"), []byte("trailer\n<</Encrypt 1 0 R"), 1)

	e, _ := newEngine(nil)
	_, err := e.Flatten(context.Background(), src, nil, nil)
	if !errors.Is(err, ErrMalformedDocument) || !errors.Is(err, pdf.ErrEncrypted) {
		t.Errorf("wrong error %v", err)
	}
}

func TestCanceled(t *testing.T) {
	src := testdoc.Build(letterPage(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newEngine(nil)
	_, err := e.Flatten(ctx, src, []annotation.Annotation{text(1, 0, 0, "x")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error %v", err)
	}
	if e.State() != Failed {
		t.Errorf("state is %s", e.State())
	}
}

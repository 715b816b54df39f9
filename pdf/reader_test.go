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

package pdf_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattetti/filebuffer"

	"github.com/opensaas-skeletons/skeleton-office-tools/internal/testdoc"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

func open(t *testing.T, data []byte) *pdf.Reader {
	t.Helper()
	r, err := pdf.NewReader(filebuffer.New(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func pageDicts(t *testing.T, r *pdf.Reader) []pdf.Dict {
	t.Helper()
	catalog, err := r.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	pages, err := pdf.GetDict(r, catalog["Pages"])
	if err != nil {
		t.Fatal(err)
	}
	kids, err := pdf.GetArray(r, pages["Kids"])
	if err != nil {
		t.Fatal(err)
	}
	var res []pdf.Dict
	for _, kid := range kids {
		page, err := pdf.GetDict(r, kid)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, page)
	}
	return res
}

func TestWriteRead(t *testing.T) {
	data := testdoc.Build(
		testdoc.Page{MediaBox: testdoc.Letter, Content: "0 0 m 10 10 l S"},
		testdoc.Page{MediaBox: pdf.Rectangle{URx: 842, URy: 595}, Rotate: pdf.Integer(90)},
	)
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Errorf("wrong header %q", data[:10])
	}

	r := open(t, data)
	if r.Version != pdf.V1_7 {
		t.Errorf("wrong version %s", r.Version)
	}
	if r.Repaired {
		t.Error("file unexpectedly repaired")
	}

	pages := pageDicts(t, r)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	box, err := pdf.GetRectangle(r, pages[1]["MediaBox"])
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(&pdf.Rectangle{URx: 842, URy: 595}, box); d != "" {
		t.Errorf("wrong MediaBox (-want +got):\n%s", d)
	}
	if pages[1]["Rotate"] != pdf.Integer(90) {
		t.Errorf("wrong rotation %v", pages[1]["Rotate"])
	}

	stm, err := pdf.Resolve(r, pages[0]["Contents"])
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(stm.(*pdf.Stream).R)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "0 0 m 10 10 l S" {
		t.Errorf("wrong content %q", body)
	}

	refs := r.Objects()
	if len(refs) != 5 {
		t.Errorf("expected 5 objects, got %d", len(refs))
	}
	if r.MaxObjectNumber() != 5 {
		t.Errorf("wrong max object number %d", r.MaxObjectNumber())
	}
}

func TestObjectStreams(t *testing.T) {
	data := testdoc.BuildWith(testdoc.Options{
		Pages: []testdoc.Page{
			{MediaBox: testdoc.Letter, Content: "BT ET"},
			{MediaBox: testdoc.Letter},
			{MediaBox: testdoc.Letter, Rotate: pdf.Integer(180)},
		},
		ObjectStreams: true,
	})

	r := open(t, data)
	if r.Version != pdf.V1_5 {
		t.Errorf("wrong version %s", r.Version)
	}
	pages := pageDicts(t, r)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[2]["Rotate"] != pdf.Integer(180) {
		t.Errorf("wrong rotation %v", pages[2]["Rotate"])
	}

	types := map[pdf.Name]int{}
	for _, ref := range r.Objects() {
		obj, err := r.Get(ref)
		if err != nil {
			t.Fatalf("%s: %v", ref, err)
		}
		if stm, ok := obj.(*pdf.Stream); ok {
			tp, _ := stm.Dict["Type"].(pdf.Name)
			types[tp]++
		}
	}
	want := map[pdf.Name]int{"ObjStm": 1, "XRef": 1, "": 1}
	if d := cmp.Diff(want, types); d != "" {
		t.Errorf("wrong stream types (-want +got):\n%s", d)
	}
}

func TestRepair(t *testing.T) {
	data := testdoc.Build(testdoc.Page{MediaBox: testdoc.Letter})

	// point startxref into the middle of the file
	idx := bytes.LastIndex(data, []byte("startxref"))
	broken := append([]byte{}, data[:idx]...)
	broken = append(broken, []byte("startxref\n20\n%%EOF\n")...)

	r := open(t, broken)
	if !r.Repaired {
		t.Error("expected the file to be repaired")
	}
	if len(pageDicts(t, r)) != 1 {
		t.Error("page lost during repair")
	}
}

func TestRepairTrailer(t *testing.T) {
	data := testdoc.BuildWith(testdoc.Options{
		Pages:  []testdoc.Page{{MediaBox: testdoc.Letter}},
		Extras: true,
	})
	want := open(t, data).Trailer()

	idx := bytes.LastIndex(data, []byte("startxref"))
	broken := append([]byte{}, data[:idx]...)
	broken = append(broken, []byte("startxref\n20\n%%EOF\n")...)

	r := open(t, broken)
	if !r.Repaired {
		t.Fatal("expected the file to be repaired")
	}
	got := r.Trailer()
	for _, key := range []pdf.Name{"Root", "Info", "ID"} {
		if d := cmp.Diff(want[key], got[key]); d != "" {
			t.Errorf("/%s not recovered from the trailer (-want +got):\n%s", key, d)
		}
	}
}

// failingWriter accepts the first ok calls to Write and fails afterwards.
type failingWriter struct {
	ok int
}

var errWrite = errors.New("write failed")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.ok <= 0 {
		return 0, errWrite
	}
	w.ok--
	return len(p), nil
}

func TestWriterErr(t *testing.T) {
	fw := &failingWriter{ok: 1}
	w, err := pdf.NewWriter(fw, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	if w.Err() != nil {
		t.Errorf("unexpected error %v", w.Err())
	}

	err = w.Put(w.Alloc(), pdf.Integer(1))
	if !errors.Is(err, errWrite) {
		t.Errorf("expected write error, got %v", err)
	}
	if !errors.Is(w.Err(), errWrite) {
		t.Errorf("Err() = %v", w.Err())
	}

	// later writes fail even if the underlying writer recovers
	fw.ok = 100
	err = w.Put(w.Alloc(), pdf.Integer(2))
	if !errors.Is(err, errWrite) {
		t.Errorf("expected sticky write error, got %v", err)
	}
}

func TestEncrypted(t *testing.T) {
	data := testdoc.Build(testdoc.Page{MediaBox: testdoc.Letter})
	data = bytes.Replace(data, []byte("trailer\n<<"),
		[]byte("trailer\n<<\n/Encrypt 1 0 R"), 1)

	_, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, pdf.ErrEncrypted) {
		t.Errorf("expected ErrEncrypted, got %v", err)
	}
	var malformed *pdf.MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected a MalformedFileError, got %T", err)
	}
}

func TestNotPDF(t *testing.T) {
	for _, in := range []string{"", "hello world", "%PDF-9.9\n", "%PDF-1.4\ngarbage"} {
		_, err := pdf.NewReader(strings.NewReader(in), int64(len(in)))
		var malformed *pdf.MalformedFileError
		if !errors.As(err, &malformed) {
			t.Errorf("%q: expected a MalformedFileError, got %v", in, err)
		}
	}
}

func TestWriterFreeEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := pdf.NewWriter(buf, pdf.V1_4)
	if err != nil {
		t.Fatal(err)
	}
	w.Reserve(4)
	catalog := w.Alloc()
	if catalog.Number() != 5 {
		t.Errorf("Alloc ignored Reserve: got %s", catalog)
	}
	pages := pdf.NewReference(2, 0)
	err = w.Put(pages, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{},
		"Count": pdf.Integer(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(catalog, pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pages})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Put(pages, pdf.Dict{}); err == nil {
		t.Error("writing an object twice should fail")
	}
	err = w.Close(pdf.Dict{"Root": catalog})
	if err != nil {
		t.Fatal(err)
	}

	r := open(t, buf.Bytes())
	got := r.Objects()
	want := []pdf.Reference{pages, catalog}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("wrong objects (-want +got):\n%s", d)
	}
}

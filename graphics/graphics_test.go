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
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/matrix"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

func TestTextObject(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, nil)
	font := pdf.NewReference(7, 0)

	w.PushGraphicsState()
	w.TextStart()
	w.TextSetFont(font, 14)
	w.SetFillRGB(1, 0, 0.5)
	w.TextSetMatrix(matrix.Translate(100, 681))
	w.TextShowRaw([]byte("Hi"))
	w.TextEnd()
	w.PopGraphicsState()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := "q\nBT\n/F1 14 Tf\n1 0 .5 rg\n1 0 0 1 100 681 Tm\n<4869> Tj\nET\nQ\n"
	if d := cmp.Diff(want, buf.String()); d != "" {
		t.Error(d)
	}
	if w.Fonts["F1"] != font {
		t.Errorf("font not in resources: %v", w.Fonts)
	}
}

func TestFontNames(t *testing.T) {
	existing := pdf.Dict{
		"F1": pdf.NewReference(1, 0),
		"F2": pdf.NewReference(2, 0),
	}
	w := NewWriter(io.Discard, existing)
	a := pdf.NewReference(10, 0)
	b := pdf.NewReference(11, 0)

	w.TextSetFont(a, 10)
	w.TextSetFont(b, 10)
	w.TextSetFont(a, 12)
	if w.Err != nil {
		t.Fatal(w.Err)
	}

	nameA, nameB := w.FontName(a), w.FontName(b)
	if nameA == nameB || nameA == "F1" || nameA == "F2" || nameB == "F1" || nameB == "F2" {
		t.Errorf("bad names %q, %q", nameA, nameB)
	}
	if len(existing) != 4 {
		t.Errorf("expected 4 fonts, got %d", len(existing))
	}

	// an existing entry is reused
	w.TextSetFont(pdf.NewReference(2, 0), 10)
	if name := w.FontName(pdf.NewReference(2, 0)); name != "F2" {
		t.Errorf("expected F2, got %q", name)
	}
}

func TestPopOuterState(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, nil)
	w.PopOuterState()
	w.PushGraphicsState()
	w.PopGraphicsState()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Q\nq\nQ\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	w = NewWriter(io.Discard, nil)
	w.PushGraphicsState()
	w.PopOuterState()
	if w.Err == nil {
		t.Error("PopOuterState inside q did not fail")
	}
}

func TestInvalidSequences(t *testing.T) {
	cases := map[string]func(w *Writer){
		"Tj outside BT": func(w *Writer) {
			w.TextShowRaw([]byte("x"))
		},
		"Tj without font": func(w *Writer) {
			w.TextStart()
			w.TextSetMatrix(matrix.Identity)
			w.TextShowRaw([]byte("x"))
		},
		"Tm outside BT": func(w *Writer) {
			w.TextSetMatrix(matrix.Identity)
		},
		"unbalanced Q": func(w *Writer) {
			w.PopGraphicsState()
		},
		"q inside BT": func(w *Writer) {
			w.TextStart()
			w.PushGraphicsState()
		},
		"missing font": func(w *Writer) {
			w.TextSetFont(0, 12)
		},
	}
	for name, f := range cases {
		w := NewWriter(io.Discard, nil)
		f(w)
		if w.Err == nil {
			t.Errorf("%s: no error", name)
		}
	}

	w := NewWriter(io.Discard, nil)
	w.TextStart()
	if w.Close() == nil {
		t.Error("unclosed BT not detected")
	}
}

func TestColorClamp(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, nil)
	w.SetFillRGB(-1, 2, 0.25)
	if buf.String() != "0 1 .25 rg\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

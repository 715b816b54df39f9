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

package truetype

import (
	"bytes"
	"errors"
	"io"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/mattetti/filebuffer"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyph"

	"github.com/opensaas-skeletons/skeleton-office-tools/font"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

var _ font.Font = (*Font)(nil)

func TestMetrics(t *testing.T) {
	F, err := Parse(goitalic.TTF)
	if err != nil {
		t.Fatal(err)
	}
	if name := F.PostScriptName(); !strings.HasPrefix(name, "Go") || strings.Contains(name, " ") {
		t.Errorf("unexpected name %q", name)
	}

	desc := F.Descriptor()
	if !(desc.Ascent > 500 && desc.Ascent < 1200) {
		t.Errorf("implausible ascent %g", desc.Ascent)
	}
	if desc.Descent >= 0 {
		t.Errorf("descent %g should be negative", desc.Descent)
	}
	if desc.FontBBox.IsZero() || desc.FontBBox.URy <= desc.FontBBox.LLy {
		t.Errorf("bad font bbox %v", desc.FontBBox)
	}

	if a := F.Ascent(10); a != desc.Ascent/100 {
		t.Errorf("Ascent(10) = %g", a)
	}

	w1 := F.Width("i", 10)
	w2 := F.Width("W", 10)
	if !(w1 > 0 && w2 > w1) {
		t.Errorf("implausible widths %g %g", w1, w2)
	}
	if w := F.Width("iW", 10); math.Abs(w-(w1+w2)) > 1e-9 {
		t.Errorf("widths not additive: %g != %g", w, w1+w2)
	}
}

func TestEncode(t *testing.T) {
	F, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	codes := F.Encode("AbA")
	if len(codes) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(codes))
	}
	if !bytes.Equal(codes[0:2], codes[4:6]) {
		t.Errorf("same rune, different codes: %x", codes)
	}
	if codes[0] == 0 && codes[1] == 0 {
		t.Error("'A' mapped to .notdef")
	}
	if !bytes.Equal(codes[0:4], []byte{0, 1, 0, 2}) {
		t.Errorf("codes not assigned in order of use: %x", codes)
	}
	if used := F.Used(); len(used) != 2 {
		t.Errorf("expected 2 used glyphs, got %v", used)
	}

	// characters without glyph map to .notdef and are not recorded
	codes = F.Encode("\U0010FFFD")
	if !bytes.Equal(codes, []byte{0, 0}) {
		t.Errorf("unexpected code %x", codes)
	}
	if used := F.Used(); len(used) != 2 {
		t.Errorf("expected 2 used glyphs, got %v", used)
	}
}

func TestEmbed(t *testing.T) {
	F, err := Parse(goitalic.TTF)
	if err != nil {
		t.Fatal(err)
	}
	F.SetScript(true)
	F.Encode("Jane Doe")

	buf := filebuffer.New(nil)
	w, err := pdf.NewWriter(buf, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := F.Embed(w)
	if err != nil {
		t.Fatal(err)
	}
	catalog := w.Alloc()
	err = w.Put(catalog, pdf.Dict{"Type": pdf.Name("Catalog"), "F": ref})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close(pdf.Dict{"Root": catalog})
	if err != nil {
		t.Fatal(err)
	}

	data := buf.Buff.Bytes()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	fontDict, err := pdf.GetDict(r, ref)
	if err != nil {
		t.Fatal(err)
	}
	if fontDict["Subtype"] != pdf.Name("Type0") || fontDict["Encoding"] != pdf.Name("Identity-H") {
		t.Errorf("wrong font dict %v", fontDict)
	}
	baseFont, _ := fontDict["BaseFont"].(pdf.Name)
	if !regexp.MustCompile(`^[A-Z]{6}\+`).MatchString(string(baseFont)) {
		t.Errorf("missing subset tag in %q", baseFont)
	}
	if _, ok := fontDict["ToUnicode"].(pdf.Reference); !ok {
		t.Error("missing ToUnicode")
	}

	kids, err := pdf.GetArray(r, fontDict["DescendantFonts"])
	if err != nil || len(kids) != 1 {
		t.Fatalf("bad DescendantFonts: %v %v", kids, err)
	}
	cidFont, err := pdf.GetDict(r, kids[0])
	if err != nil {
		t.Fatal(err)
	}
	if cidFont["Subtype"] != pdf.Name("CIDFontType2") || cidFont["CIDToGIDMap"] != pdf.Name("Identity") {
		t.Errorf("wrong CIDFont dict %v", cidFont)
	}
	if _, ok := cidFont["W"].(pdf.Array); !ok {
		t.Error("missing /W")
	}

	desc, err := pdf.GetDict(r, cidFont["FontDescriptor"])
	if err != nil {
		t.Fatal(err)
	}
	flags, _ := desc["Flags"].(pdf.Integer)
	if font.Flags(flags)&font.FlagScript == 0 {
		t.Errorf("script flag not set: %b", flags)
	}
	obj, err := r.Get(desc["FontFile2"].(pdf.Reference))
	if err != nil {
		t.Fatal(err)
	}
	stm, ok := obj.(*pdf.Stream)
	if !ok {
		t.Fatalf("FontFile2 is %T", obj)
	}
	decoded, err := pdf.DecodeStream(r, stm)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if int(stm.Dict["Length1"].(pdf.Integer)) != len(body) {
		t.Errorf("Length1 %v does not match data length %d", stm.Dict["Length1"], len(body))
	}
	if len(body) >= len(goitalic.TTF) {
		t.Error("font file was not subsetted")
	}

	// the glyph for CID n must be at position n in the embedded font
	sub, err := sfnt.Read(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	used := F.Used()
	if sub.NumGlyphs() != len(used)+1 {
		t.Errorf("embedded font has %d glyphs, want %d", sub.NumGlyphs(), len(used)+1)
	}
	for _, cid := range used {
		got := sub.GlyphWidth(glyph.ID(cid))
		want := F.sf.GlyphWidth(F.gids[cid])
		if got != want {
			t.Errorf("CID %d: width %g, want %g", cid, got, want)
		}
	}
}

func TestEmbedStable(t *testing.T) {
	F, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	first := F.Encode("Jane Doe")

	buf := filebuffer.New(nil)
	w, err := pdf.NewWriter(buf, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	_, err = F.Embed(w)
	if err != nil {
		t.Fatal(err)
	}
	if second := F.Encode("Jane Doe"); !bytes.Equal(first, second) {
		t.Errorf("codes changed: %x != %x", first, second)
	}
}

func TestEmbedBuildsBeforeWriting(t *testing.T) {
	F, err := Parse(goitalic.TTF)
	if err != nil {
		t.Fatal(err)
	}
	F.Encode("Jane Doe")

	buf := filebuffer.New(nil)
	w, err := pdf.NewWriter(buf, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	before := buf.Buff.Len()
	objs, err := F.objects(w)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Buff.Len() != before {
		t.Error("objects were written before construction finished")
	}
	if len(objs) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(objs))
	}
	seen := make(map[pdf.Reference]bool)
	for _, o := range objs {
		if seen[o.ref] {
			t.Errorf("reference %s used twice", o.ref)
		}
		seen[o.ref] = true
	}
	fontDict := objs[0].obj.(pdf.Dict)
	if fontDict["Subtype"] != pdf.Name("Type0") {
		t.Errorf("first object is not the font dictionary: %v", fontDict)
	}
}

type shortWriter struct {
	n int
}

var errDiskFull = errors.New("disk full")

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		k := w.n
		w.n = 0
		return k, errDiskFull
	}
	w.n -= len(p)
	return len(p), nil
}

func TestEmbedWriteError(t *testing.T) {
	F, err := Parse(goitalic.TTF)
	if err != nil {
		t.Fatal(err)
	}
	F.Encode("Jane Doe")

	w, err := pdf.NewWriter(&shortWriter{n: 64}, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	_, err = F.Embed(w)
	if !errors.Is(err, errDiskFull) {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("not a font"))
	if err == nil {
		t.Error("garbage accepted")
	}
}

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

// Package truetype embeds TrueType fonts as composite fonts.
//
// Fonts are embedded as a Type0 font with a CIDFontType2 descendant, using
// the Identity-H encoding.  Character codes are two-byte CIDs, assigned in
// the order glyphs are first used.  The embedded font file is a subset
// containing exactly these glyphs, with the glyph for CID n at position n,
// so that the identity CIDToGIDMap applies.
package truetype

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/slices"
	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"

	"github.com/opensaas-skeletons/skeleton-office-tools/font"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/subset"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/tounicode"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Font is a TrueType font.
type Font struct {
	sf   *sfnt.Font
	cmap cmap.Subtable

	name string
	desc font.Descriptor

	// gids[cid] is the glyph shown for the character code cid.
	gids []glyph.ID
	cids map[glyph.ID]uint16
	text map[uint16][]rune
}

var (
	errNoGlyphs = errors.New("font has no glyphs")
	errNotGlyf  = errors.New("font has no TrueType outlines")
)

// Parse loads a TrueType font from the contents of a font file.
func Parse(data []byte) (*Font, error) {
	sf, err := sfnt.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if !sf.IsGlyf() {
		return nil, errNotGlyf
	}
	if sf.NumGlyphs() == 0 {
		return nil, errNoGlyphs
	}
	enc, err := sf.CMapTable.GetBest()
	if err != nil {
		return nil, err
	}

	f := &Font{
		sf:   sf,
		cmap: enc,
		name: sanitize(sf.PostScriptName()),
		gids: []glyph.ID{0},
		cids: map[glyph.ID]uint16{0: 0},
		text: make(map[uint16][]rune),
	}

	q := 1000 / float64(sf.UnitsPerEm)
	bbox := sf.FontBBoxPDF()
	f.desc = font.Descriptor{
		FontName: f.name,
		FontBBox: pdf.Rectangle{
			LLx: math.Round(bbox.LLx),
			LLy: math.Round(bbox.LLy),
			URx: math.Round(bbox.URx),
			URy: math.Round(bbox.URy),
		},
		Ascent:       math.Round(float64(sf.Ascent) * q),
		Descent:      math.Round(float64(sf.Descent) * q),
		CapHeight:    math.Round(float64(sf.CapHeight) * q),
		XHeight:      math.Round(float64(sf.XHeight) * q),
		ItalicAngle:  sf.ItalicAngle,
		IsFixedPitch: sf.IsFixedPitch(),
		IsItalic:     sf.IsItalic || sf.ItalicAngle != 0,
		IsSymbolic:   true,
	}
	if f.desc.CapHeight <= 0 {
		f.desc.CapHeight = f.desc.Ascent
	}
	f.desc.StemV = stemV(f.desc.IsItalic)

	return f, nil
}

// PostScriptName implements the [font.Font] interface.
func (f *Font) PostScriptName() string {
	return f.name
}

// Descriptor returns the font descriptor information.
func (f *Font) Descriptor() font.Descriptor {
	return f.desc
}

// SetScript marks the font as resembling cursive handwriting.
func (f *Font) SetScript(isScript bool) {
	f.desc.IsScript = isScript
}

// Ascent implements the [font.Font] interface.
func (f *Font) Ascent(size float64) float64 {
	return f.desc.Ascent * size / 1000
}

// Width implements the [font.Font] interface.
func (f *Font) Width(text string, size float64) float64 {
	var w float64
	for _, r := range text {
		w += f.glyphWidth(f.glyph(r))
	}
	return w * size / 1000
}

// Encode implements the [font.Font] interface.
// Each glyph gets a new CID the first time it is seen; later calls
// return the same codes for the same text.
func (f *Font) Encode(text string) []byte {
	res := make([]byte, 0, 2*len(text))
	for _, r := range text {
		cid := f.cid(r)
		res = append(res, byte(cid>>8), byte(cid))
	}
	return res
}

func (f *Font) cid(r rune) uint16 {
	gid := f.glyph(r)
	if cid, seen := f.cids[gid]; seen {
		return cid
	}
	if len(f.gids) > math.MaxUint16 {
		return 0
	}
	cid := uint16(len(f.gids))
	f.gids = append(f.gids, gid)
	f.cids[gid] = cid
	f.text[cid] = []rune{r}
	return cid
}

func (f *Font) glyph(r rune) glyph.ID {
	gid := f.cmap.Lookup(r)
	if int(gid) >= f.sf.NumGlyphs() {
		return 0
	}
	return gid
}

// glyphWidth returns the advance width of a glyph in PDF glyph space units.
func (f *Font) glyphWidth(gid glyph.ID) float64 {
	return math.Round(f.sf.GlyphWidthPDF(gid))
}

// Used returns the character codes assigned by Encode, in increasing order.
func (f *Font) Used() []uint16 {
	res := make([]uint16, 0, len(f.gids)-1)
	for cid := 1; cid < len(f.gids); cid++ {
		res = append(res, uint16(cid))
	}
	return res
}

type object struct {
	ref pdf.Reference
	obj pdf.Object
}

// Embed implements the [font.Font] interface.
//
// All objects are constructed before the first one is written, so that
// an error leaves w unchanged unless writing itself fails.
func (f *Font) Embed(w *pdf.Writer) (pdf.Reference, error) {
	objs, err := f.objects(w)
	if err != nil {
		return 0, err
	}
	for _, o := range objs {
		err = w.Put(o.ref, o.obj)
		if err != nil {
			return 0, err
		}
	}
	return objs[0].ref, nil
}

// objects returns the objects making up the embedded font.  The first
// entry is the Type0 font dictionary.
func (f *Font) objects(w *pdf.Writer) ([]object, error) {
	glyphs := slices.Clone(f.gids)

	// The subset only needs the outlines and metrics.  Character mapping
	// and layout tables are dropped, so no ligature glyphs are added.
	orig := f.sf.Clone()
	orig.CMapTable = nil
	orig.Gdef = nil
	orig.Gsub = nil
	orig.Gpos = nil
	sub := orig.Subset(glyphs)

	buf := &bytes.Buffer{}
	_, err := sub.WriteTrueTypePDF(buf)
	if err != nil {
		return nil, err
	}
	fontData := buf.Bytes()
	fontName := subset.Tag(glyphs, f.sf.NumGlyphs()) + "+" + f.name

	fontFile, err := pdf.NewCompressedStream(pdf.Dict{
		"Length1": pdf.Integer(len(fontData)),
	}, fontData)
	if err != nil {
		return nil, err
	}

	used := f.Used()
	var mm []tounicode.Mapping
	for _, cid := range used {
		mm = append(mm, tounicode.Mapping{Code: cid, Text: f.text[cid]})
	}
	toUnicode, err := tounicode.Stream(mm)
	if err != nil {
		return nil, err
	}

	fontRef := w.Alloc()
	cidFontRef := w.Alloc()
	descRef := w.Alloc()
	fileRef := w.Alloc()
	toUnicodeRef := w.Alloc()

	desc := f.desc
	desc.FontName = fontName
	desc.FontFile2 = fileRef

	cidFont := pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("CIDFontType2"),
		"BaseFont": pdf.Name(fontName),
		"CIDSystemInfo": pdf.Dict{
			"Registry":   pdf.String("Adobe"),
			"Ordering":   pdf.String("Identity"),
			"Supplement": pdf.Integer(0),
		},
		"FontDescriptor": descRef,
		"CIDToGIDMap":    pdf.Name("Identity"),
	}
	if ww := f.widthArray(used); len(ww) > 0 {
		cidFont["W"] = ww
	}
	if dw := f.glyphWidth(0); dw != 1000 {
		cidFont["DW"] = pdf.Number(dw)
	}

	fontDict := pdf.Dict{
		"Type":            pdf.Name("Font"),
		"Subtype":         pdf.Name("Type0"),
		"BaseFont":        pdf.Name(fontName),
		"Encoding":        pdf.Name("Identity-H"),
		"DescendantFonts": pdf.Array{cidFontRef},
		"ToUnicode":       toUnicodeRef,
	}

	return []object{
		{fontRef, fontDict},
		{cidFontRef, cidFont},
		{descRef, desc.AsDict()},
		{fileRef, fontFile},
		{toUnicodeRef, toUnicode},
	}, nil
}

// widthArray returns the /W array for the given CIDs.  Runs of
// consecutive CIDs share one entry.
func (f *Font) widthArray(cids []uint16) pdf.Array {
	var res pdf.Array
	i := 0
	for i < len(cids) {
		j := i + 1
		for j < len(cids) && cids[j] == cids[j-1]+1 {
			j++
		}
		var ww pdf.Array
		for _, cid := range cids[i:j] {
			ww = append(ww, pdf.Number(f.glyphWidth(f.gids[cid])))
		}
		res = append(res, pdf.Integer(cids[i]), ww)
		i = j
	}
	return res
}

// stemV returns an estimate for the StemV entry of the font descriptor.
// TrueType fonts do not record this value.
func stemV(isItalic bool) float64 {
	if isItalic {
		return 70
	}
	return 80
}

// sanitize removes characters which are not allowed in PostScript names.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r > 32 && r < 127 && !strings.ContainsRune("[](){}<>/%", r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Font"
	}
	return b.String()
}

func (f *Font) String() string {
	return fmt.Sprintf("truetype.Font(%s)", f.name)
}

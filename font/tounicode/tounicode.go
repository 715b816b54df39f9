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

// Package tounicode writes ToUnicode CMaps for fonts with two-byte
// character codes.
//
// See section 9.10.3 of PDF 32000-1:2008 and Adobe Technical Note #5411.
package tounicode

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"unicode/utf16"

	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Mapping describes the unicode text corresponding to a character code.
type Mapping struct {
	Code uint16
	Text []rune
}

// Encode returns the text of a ToUnicode CMap for the given mappings.
// Mappings with empty text are ignored.  If a code appears more than once,
// the first mapping is used.
func Encode(mm []Mapping) []byte {
	mm = normalize(mm)

	data := &cmapData{
		Registry:   "Adobe",
		Ordering:   "UCS",
		Supplement: 0,
	}

	// consecutive codes mapped to consecutive single characters
	// are combined into ranges
	pos := 0
	for pos < len(mm) {
		next := pos + 1
		for next < len(mm) && canExtend(mm[next-1], mm[next]) {
			next++
		}
		if next > pos+1 {
			data.Ranges = append(data.Ranges, bfRange{
				From: mm[pos].Code,
				To:   mm[next-1].Code,
				Text: mm[pos].Text,
			})
		} else {
			data.Chars = append(data.Chars, bfChar{
				Code: mm[pos].Code,
				Text: mm[pos].Text,
			})
		}
		pos = next
	}

	buf := &bytes.Buffer{}
	err := cmapTmpl.Execute(buf, data)
	if err != nil {
		// The template and its arguments are fixed.
		panic(err)
	}
	return buf.Bytes()
}

// Stream returns a compressed ToUnicode CMap stream for the given mappings.
func Stream(mm []Mapping) (*pdf.Stream, error) {
	return pdf.NewCompressedStream(nil, Encode(mm))
}

func normalize(mm []Mapping) []Mapping {
	res := make([]Mapping, 0, len(mm))
	seen := make(map[uint16]bool, len(mm))
	for _, m := range mm {
		if len(m.Text) == 0 || seen[m.Code] {
			continue
		}
		seen[m.Code] = true
		res = append(res, m)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res
}

// canExtend reports whether b can follow a in a bfrange.  Ranges must not
// cross a boundary where the high byte of the code changes.
func canExtend(a, b Mapping) bool {
	return len(a.Text) == 1 && len(b.Text) == 1 &&
		b.Code == a.Code+1 &&
		b.Text[0] == a.Text[0]+1 &&
		a.Code>>8 == b.Code>>8 &&
		a.Text[0]&0xFF != 0xFF
}

type cmapData struct {
	Registry   string
	Ordering   string
	Supplement int
	Chars      []bfChar
	Ranges     []bfRange
}

type bfChar struct {
	Code uint16
	Text []rune
}

func (bfc bfChar) String() string {
	return fmt.Sprintf("<%04X> <%s>", bfc.Code, utf16Hex(bfc.Text))
}

type bfRange struct {
	From, To uint16
	Text     []rune
}

func (bfr bfRange) String() string {
	return fmt.Sprintf("<%04X> <%04X> <%s>", bfr.From, bfr.To, utf16Hex(bfr.Text))
}

func utf16Hex(text []rune) string {
	var buf []byte
	for _, x := range utf16.Encode(text) {
		buf = append(buf, byte(x>>8), byte(x))
	}
	return fmt.Sprintf("%02X", buf)
}

const chunkSize = 100

func chunks[T any](x []T) [][]T {
	var res [][]T
	for len(x) >= chunkSize {
		res = append(res, x[:chunkSize])
		x = x[chunkSize:]
	}
	if len(x) > 0 {
		res = append(res, x)
	}
	return res
}

var cmapTmpl = template.Must(template.New("CMap").Funcs(template.FuncMap{
	"charChunks":  chunks[bfChar],
	"rangeChunks": chunks[bfRange],
}).Parse(
	`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo 3 dict dup begin
/Registry ({{.Registry}}) def
/Ordering ({{.Ordering}}) def
/Supplement {{.Supplement}} def
end def
/CMapName /{{.Registry}}-{{.Ordering}}-{{printf "%03d" .Supplement}} def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
{{range charChunks .Chars -}}
{{len .}} beginbfchar
{{range . -}}
{{.}}
{{end -}}
endbfchar
{{end -}}
{{range rangeChunks .Ranges -}}
{{len .}} beginbfrange
{{range . -}}
{{.}}
{{end -}}
endbfrange
{{end -}}
endcmap
CMapName currentdict /CMap defineresource pop
end
end
`))

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
	"fmt"
	"io"
	"strconv"

	"github.com/opensaas-skeletons/skeleton-office-tools/internal/float"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Writer writes a PDF content stream.
type Writer struct {
	Content io.Writer
	Err     error

	// Fonts is the /Font sub-dictionary of the resource dictionary used by
	// the content stream.  Entries are added as fonts are selected.
	Fonts pdf.Dict

	currentObject objectType
	nesting       []pairType
	resName       map[pdf.Reference]pdf.Name

	fontSet   bool
	matrixSet bool
}

type pairType byte

const (
	pairTypeQ  pairType = iota + 1 // q ... Q
	pairTypeBT                     // BT ... ET
)

// NewWriter allocates a new Writer object.  If fonts is nil, a new font
// dictionary is allocated.  Names already present in fonts are never
// reused for new fonts.
func NewWriter(out io.Writer, fonts pdf.Dict) *Writer {
	if fonts == nil {
		fonts = pdf.Dict{}
	}
	return &Writer{
		Content:       out,
		Fonts:         fonts,
		currentObject: objPage,
		resName:       make(map[pdf.Reference]pdf.Name),
	}
}

// isValid returns true, if the current graphics object is one of the given
// types and if w.Err is nil.  Otherwise it sets w.Err and returns false.
func (w *Writer) isValid(cmd string, ss objectType) bool {
	if w.Err != nil {
		return false
	}

	if w.currentObject&ss != 0 {
		return true
	}

	w.Err = fmt.Errorf("unexpected state %q for %q", w.currentObject, cmd)
	return false
}

// Close checks that all graphics state and text objects were closed.
func (w *Writer) Close() error {
	if w.Err != nil {
		return w.Err
	}
	if len(w.nesting) > 0 {
		return fmt.Errorf("%d unclosed graphics state or text objects", len(w.nesting))
	}
	return nil
}

func (w *Writer) coord(x float64) string {
	return float.Format(x, 4)
}

// fontResourceName returns the name under which the font ref can be
// used in the content stream.  If needed, the font is added to w.Fonts.
func (w *Writer) fontResourceName(ref pdf.Reference) pdf.Name {
	if name, ok := w.resName[ref]; ok {
		return name
	}
	for name, obj := range w.Fonts {
		if obj == ref {
			w.resName[ref] = name
			return name
		}
	}

	name := generateName("F", w.Fonts)
	w.Fonts[name] = ref
	w.resName[ref] = name
	return name
}

// generateName returns a name of the form prefix+number which is not yet
// used in dict.
func generateName(prefix pdf.Name, dict pdf.Dict) pdf.Name {
	var name pdf.Name
	for k := len(dict) + 1; ; k++ {
		name = prefix + pdf.Name(strconv.Itoa(k))
		if _, isUsed := dict[name]; !isUsed {
			break
		}
	}
	return name
}

// See Figure 9 (p. 113) of PDF 32000-1:2008.
type objectType int

const (
	objPage objectType = 1 << iota
	objText
)

func (s objectType) String() string {
	switch s {
	case objPage:
		return "page"
	case objText:
		return "text"
	default:
		return fmt.Sprintf("objectType(%d)", s)
	}
}

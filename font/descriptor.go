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

package font

import "github.com/opensaas-skeletons/skeleton-office-tools/pdf"

// Descriptor represents a PDF font descriptor.
//
// See section 9.8.1 of PDF 32000-1:2008.
type Descriptor struct {
	FontName   string
	FontFamily string

	IsFixedPitch bool // flag
	IsSerif      bool // flag
	IsSymbolic   bool // flag
	IsScript     bool // flag
	IsItalic     bool // flag
	IsAllCap     bool // flag
	IsSmallCap   bool // flag
	ForceBold    bool // flag

	FontBBox    pdf.Rectangle
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	XHeight     float64 // optional (default: 0)
	StemV       float64
	StemH       float64 // optional (default: 0)

	// FontFile2 is the reference of an embedded TrueType font program,
	// or 0 if the font is not embedded.
	FontFile2 pdf.Reference
}

// Flags represents PDF Font Descriptor Flags.
// See section 9.8.2 of PDF 32000-1:2008.
type Flags uint32

// Possible values for PDF Font Descriptor Flags.
const (
	FlagFixedPitch  Flags = 1 << 0
	FlagSerif       Flags = 1 << 1
	FlagSymbolic    Flags = 1 << 2
	FlagScript      Flags = 1 << 3
	FlagNonsymbolic Flags = 1 << 5
	FlagItalic      Flags = 1 << 6
	FlagAllCap      Flags = 1 << 16
	FlagSmallCap    Flags = 1 << 17
	FlagForceBold   Flags = 1 << 18
)

// Flags returns the font descriptor flags.
func (d *Descriptor) Flags() Flags {
	var flags Flags
	if d.IsFixedPitch {
		flags |= FlagFixedPitch
	}
	if d.IsSerif {
		flags |= FlagSerif
	}
	if d.IsSymbolic {
		flags |= FlagSymbolic
	} else {
		flags |= FlagNonsymbolic
	}
	if d.IsScript {
		flags |= FlagScript
	}
	if d.IsItalic {
		flags |= FlagItalic
	}
	if d.IsAllCap {
		flags |= FlagAllCap
	}
	if d.IsSmallCap {
		flags |= FlagSmallCap
	}
	if d.ForceBold {
		flags |= FlagForceBold
	}
	return flags
}

// AsDict converts the font descriptor into a PDF dictionary.
func (d *Descriptor) AsDict() pdf.Dict {
	dict := pdf.Dict{
		"Type":        pdf.Name("FontDescriptor"),
		"FontName":    pdf.Name(d.FontName),
		"Flags":       pdf.Integer(d.Flags()),
		"FontBBox":    d.FontBBox,
		"ItalicAngle": pdf.Number(d.ItalicAngle),
		"Ascent":      pdf.Number(d.Ascent),
		"Descent":     pdf.Number(d.Descent),
		"CapHeight":   pdf.Number(d.CapHeight),
		"StemV":       pdf.Number(d.StemV),
	}
	if d.FontFamily != "" {
		dict["FontFamily"] = pdf.TextString(d.FontFamily)
	}
	if d.XHeight != 0 {
		dict["XHeight"] = pdf.Number(d.XHeight)
	}
	if d.StemH != 0 {
		dict["StemH"] = pdf.Number(d.StemH)
	}
	if d.FontFile2 != 0 {
		dict["FontFile2"] = d.FontFile2
	}
	return dict
}

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

package pdf

import (
	"errors"
	"fmt"
	"io"
)

// Writer represents a PDF file open for writing.
// Objects are written in the order of calls to [Writer.Put];
// a classic cross-reference table is written by [Writer.Close].
type Writer struct {
	Version Version

	w       *posWriter
	xref    map[uint32]*xRefEntry
	nextRef uint32
	closed  bool
}

// NewWriter prepares a PDF file for writing.
func NewWriter(w io.Writer, ver Version) (*Writer, error) {
	verString, err := ver.ToString()
	if err != nil {
		return nil, err
	}

	pdf := &Writer{
		Version: ver,

		w:       &posWriter{w: w},
		nextRef: 1,
		xref:    make(map[uint32]*xRefEntry),
	}
	pdf.xref[0] = &xRefEntry{
		Pos:        -1,
		Generation: 65535,
	}

	_, err = fmt.Fprintf(pdf.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verString)
	if err != nil {
		return nil, err
	}

	return pdf, nil
}

// Alloc allocates an object number for an indirect object.
func (pdf *Writer) Alloc() Reference {
	res := NewReference(pdf.nextRef, 0)
	pdf.nextRef++
	return res
}

// Reserve makes sure that object numbers up to and including n
// are never returned by [Writer.Alloc].
func (pdf *Writer) Reserve(n uint32) {
	if n >= pdf.nextRef {
		pdf.nextRef = n + 1
	}
}

// Put writes obj to the file, as the indirect object ref.
func (pdf *Writer) Put(ref Reference, obj Object) error {
	if pdf.closed {
		return errors.New("write after close")
	}
	if pdf.w.err != nil {
		return pdf.w.err
	}
	number := ref.Number()
	if _, seen := pdf.xref[number]; seen {
		return fmt.Errorf("object %s already written", ref)
	}
	pdf.Reserve(number)

	if obj == nil {
		// missing objects are treated as null
		pdf.xref[number] = &xRefEntry{Pos: -1, Generation: ref.Generation()}
		return nil
	}

	pos := pdf.w.pos
	_, err := fmt.Fprintf(pdf.w, "%d %d obj\n", number, ref.Generation())
	if err != nil {
		return err
	}
	err = obj.PDF(pdf.w)
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\nendobj\n"))
	if err != nil {
		return err
	}

	pdf.xref[number] = &xRefEntry{Pos: pos, Generation: ref.Generation()}
	return nil
}

// Err returns the first error reported by the underlying io.Writer.
// Once this is non-nil, the output is incomplete and all further
// calls to [Writer.Put] fail.
func (pdf *Writer) Err() error {
	return pdf.w.err
}

// Close writes the cross-reference table and the trailer.  The entries
// /Root, /Info and /ID are taken from trailer, /Size is computed.
// The underlying io.Writer is not closed.
func (pdf *Writer) Close(trailer Dict) error {
	if pdf.closed {
		return errors.New("writer already closed")
	}
	if pdf.w.err != nil {
		return pdf.w.err
	}
	if _, ok := trailer["Root"].(Reference); !ok {
		return errors.New("missing /Root")
	}

	xRefDict := Dict{
		"Size": Integer(pdf.nextRef),
	}
	for _, key := range []Name{"Root", "Info", "ID"} {
		if val, ok := trailer[key]; ok {
			xRefDict[key] = val
		}
	}

	xRefPos := pdf.w.pos
	err := pdf.writeXRefTable(xRefDict)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(pdf.w, "\nstartxref\n%d\n%%%%EOF\n", xRefPos)
	if err != nil {
		return err
	}
	pdf.closed = true
	return nil
}

func (pdf *Writer) writeXRefTable(xRefDict Dict) error {
	_, err := fmt.Fprintf(pdf.w, "xref\n0 %d\n", pdf.nextRef)
	if err != nil {
		return err
	}
	for i := uint32(0); i < pdf.nextRef; i++ {
		entry := pdf.xref[i]
		if entry != nil && entry.Pos >= 0 {
			_, err = fmt.Fprintf(pdf.w, "%010d %05d n\r\n",
				entry.Pos, entry.Generation)
		} else if i == 0 {
			_, err = pdf.w.Write([]byte("0000000000 65535 f\r\n"))
		} else {
			// free object
			_, err = pdf.w.Write([]byte("0000000000 00001 f\r\n"))
		}
		if err != nil {
			return err
		}
	}

	_, err = pdf.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	return xRefDict.PDF(pdf.w)
}

type posWriter struct {
	w   io.Writer
	pos int64
	err error
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}

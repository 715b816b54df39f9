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
	"bytes"
	"errors"
	"io"
	"sort"
)

// maxRepairSize limits the size of files which are scanned in full when the
// cross-reference information is broken.
const maxRepairSize = 1 << 30

// reconstructXRef builds a cross-reference table by scanning the file for
// "n g obj" headers.  Later definitions of an object replace earlier ones,
// as is the case for incremental updates.
func (r *Reader) reconstructXRef() (map[uint32]*xRefEntry, Dict, error) {
	if r.size > maxRepairSize {
		return nil, nil, &MalformedFileError{Err: errors.New("file too large to repair")}
	}
	data := make([]byte, r.size)
	n, err := r.r.ReadAt(data, 0)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	data = data[:n]

	xref := make(map[uint32]*xRefEntry)
	xref[0] = &xRefEntry{Pos: -1, Generation: 65535}
	for _, hdr := range findObjectHeaders(data) {
		xref[hdr.number] = &xRefEntry{Pos: hdr.pos, Generation: hdr.generation}
	}

	// Install the new table before reading objects, so that indirect
	// stream lengths can be resolved.
	r.xref = xref

	trailer := Dict{}
	for _, pos := range findAll(data, []byte("trailer")) {
		s := r.scannerAt(int64(pos + 7))
		if s.SkipWhiteSpace() != nil {
			continue
		}
		dict, err := s.ReadDict()
		if err != nil {
			continue
		}
		for _, key := range []Name{"Root", "Encrypt", "Info", "ID"} {
			if val, ok := dict[key]; ok {
				trailer[key] = val
			}
		}
	}

	numbers := make([]uint32, 0, len(xref))
	for number := range xref {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	var catalog Reference
	for _, number := range numbers {
		entry := xref[number]
		if entry.IsFree() || entry.InStream != 0 {
			continue
		}
		ref := NewReference(number, entry.Generation)
		obj, err := r.Get(ref)
		if err != nil {
			continue
		}
		switch obj := obj.(type) {
		case *Stream:
			switch obj.Dict["Type"] {
			case Name("XRef"):
				for _, key := range []Name{"Root", "Encrypt", "Info", "ID"} {
					if val, ok := obj.Dict[key]; ok {
						trailer[key] = val
					}
				}
			case Name("ObjStm"):
				contents, err := r.objStmContents(number)
				if err != nil {
					continue
				}
				for inner := range contents.idx {
					if xref[inner] == nil {
						xref[inner] = &xRefEntry{InStream: number}
					}
				}
			}
		case Dict:
			if obj["Type"] == Name("Catalog") {
				catalog = ref
			}
		}
	}

	if _, ok := trailer["Root"].(Reference); !ok {
		if catalog == 0 {
			for _, number := range numbers {
				entry := xref[number]
				if entry.IsFree() || entry.InStream == 0 {
					continue
				}
				obj, err := r.Get(NewReference(number, 0))
				if err != nil {
					continue
				}
				if dict, ok := obj.(Dict); ok && dict["Type"] == Name("Catalog") {
					catalog = NewReference(number, 0)
					break
				}
			}
		}
		if catalog == 0 {
			return nil, nil, &MalformedFileError{Err: ErrNoCatalog}
		}
		trailer["Root"] = catalog
	}

	return xref, trailer, nil
}

type objectHeader struct {
	number     uint32
	generation uint16
	pos        int64
}

func findObjectHeaders(data []byte) []objectHeader {
	var res []objectHeader
	for _, pos := range findAll(data, []byte("obj")) {
		if pos >= 3 && bytes.Equal(data[pos-3:pos], []byte("end")) {
			continue
		}
		after := pos + 3
		if after < len(data) && !isSpace[data[after]] && !isDelimiter[data[after]] {
			continue
		}

		j := pos - 1
		j = skipSpaceBack(data, j)
		genEnd := j + 1
		for j >= 0 && data[j] >= '0' && data[j] <= '9' {
			j--
		}
		genStart := j + 1
		if genStart == genEnd || j < 0 || !isSpace[data[j]] {
			continue
		}
		j = skipSpaceBack(data, j)
		numEnd := j + 1
		for j >= 0 && data[j] >= '0' && data[j] <= '9' {
			j--
		}
		numStart := j + 1
		if numStart == numEnd || j >= 0 && !isSpace[data[j]] && !isDelimiter[data[j]] {
			continue
		}

		number, ok1 := parseUint(data[numStart:numEnd], 1<<31)
		gen, ok2 := parseUint(data[genStart:genEnd], 65535)
		if !ok1 || !ok2 || number == 0 {
			continue
		}
		res = append(res, objectHeader{
			number:     uint32(number),
			generation: uint16(gen),
			pos:        int64(numStart),
		})
	}
	return res
}

func skipSpaceBack(data []byte, j int) int {
	for j >= 0 && isSpace[data[j]] {
		j--
	}
	return j
}

func parseUint(digits []byte, max uint64) (uint64, bool) {
	if len(digits) > 10 {
		return 0, false
	}
	var x uint64
	for _, c := range digits {
		x = 10*x + uint64(c-'0')
	}
	return x, x <= max
}

func findAll(data, pat []byte) []int {
	var res []int
	start := 0
	for {
		idx := bytes.Index(data[start:], pat)
		if idx < 0 {
			return res
		}
		res = append(res, start+idx)
		start += idx + len(pat)
	}
}

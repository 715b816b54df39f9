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
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Getter represents a PDF file opened for reading.
type Getter interface {
	// Get reads an indirect object.  Missing or free objects
	// are returned as nil, without an error.
	Get(ref Reference) (Object, error)
}

// Reader represents a pdf file opened for reading.
// Use [NewReader] to create a new Reader.
type Reader struct {
	// Version is the PDF version used in this file.  This is specified in
	// the initial comment at the start of the file, and may be overridden by
	// the /Version entry in the document catalog.
	Version Version

	// Repaired is set if the cross-reference information of the file
	// was broken and had to be reconstructed by scanning the file.
	Repaired bool

	size int64
	r    io.ReaderAt

	level int

	xref    map[uint32]*xRefEntry
	trailer Dict

	objStmCache map[uint32]*objStm
}

// NewReader creates a new Reader object.
func NewReader(data io.ReaderAt, size int64) (*Reader, error) {
	r := &Reader{
		size:        size,
		r:           data,
		objStmCache: make(map[uint32]*objStm),
	}

	s := r.scannerAt(0)
	version, err := s.readHeaderVersion()
	if err != nil {
		return nil, err
	}
	r.Version = version

	xref, trailer, err := r.readXRef()
	if err == nil {
		r.xref = xref
		r.trailer = trailer
		var root Dict
		root, err = GetDict(r, trailer["Root"])
		if err == nil && root == nil {
			err = ErrNoCatalog
		}
	}
	if err != nil {
		// The cross-reference information is damaged.  Try to recover
		// by scanning the whole file for objects.
		xref, trailer, repairErr := r.reconstructXRef()
		if repairErr != nil {
			return nil, Wrap(err, 0)
		}
		r.xref = xref
		r.trailer = trailer
		r.Repaired = true
	}

	if _, isEncrypted := r.trailer["Encrypt"]; isEncrypted {
		return nil, &MalformedFileError{Err: ErrEncrypted}
	}

	root, err := GetDict(r, r.trailer["Root"])
	if err != nil {
		return nil, Wrap(err, 0)
	}
	if root == nil {
		return nil, &MalformedFileError{Err: ErrNoCatalog}
	}
	if verName, ok := root["Version"].(Name); ok {
		catVersion, err := ParseVersion(string(verName))
		if err == nil && catVersion > r.Version {
			r.Version = catVersion
		}
	}

	return r, nil
}

// Trailer returns the trailer dictionary of the file.
// Only the entries /Root, /Info and /ID are included.
func (r *Reader) Trailer() Dict {
	return r.trailer
}

// Catalog returns the document catalog.
func (r *Reader) Catalog() (Dict, error) {
	return GetDict(r, r.trailer["Root"])
}

// Objects returns the references of all objects in the file which are
// in use, ordered by object number.
func (r *Reader) Objects() []Reference {
	res := make([]Reference, 0, len(r.xref))
	for number, entry := range r.xref {
		if number == 0 || entry.IsFree() {
			continue
		}
		res = append(res, NewReference(number, entry.Generation))
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Number() < res[j].Number()
	})
	return res
}

// MaxObjectNumber returns the largest object number used in the file.
func (r *Reader) MaxObjectNumber() uint32 {
	var max uint32
	for number, entry := range r.xref {
		if !entry.IsFree() && number > max {
			max = number
		}
	}
	return max
}

// Get implements the [Getter] interface.
func (r *Reader) Get(ref Reference) (Object, error) {
	return r.doGet(ref, true)
}

func (r *Reader) doGet(ref Reference, canStream bool) (Object, error) {
	entry := r.xref[ref.Number()]
	if entry.IsFree() || entry.Generation != ref.Generation() {
		return nil, nil
	}

	if entry.InStream != 0 {
		if !canStream {
			return nil, &MalformedFileError{
				Err: errors.New("object streams inside streams not allowed"),
			}
		}
		return r.getFromObjectStream(ref.Number(), entry.InStream)
	}

	s := r.scannerAt(entry.Pos)
	obj, fileRef, err := s.ReadIndirectObject()
	if err != nil {
		return nil, Wrap(err, entry.Pos)
	}
	if fileRef != ref {
		return nil, &MalformedFileError{
			Pos: entry.Pos,
			Err: fmt.Errorf("xref corrupted: found %s instead of %s", fileRef, ref),
		}
	}

	return obj, nil
}

type objStm struct {
	data []byte
	idx  map[uint32]int
}

func (r *Reader) objStmContents(number uint32) (*objStm, error) {
	if res, ok := r.objStmCache[number]; ok {
		return res, nil
	}

	sRef := NewReference(number, 0)
	container, err := r.doGet(sRef, false)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("wrong type for object stream"),
		}
	}

	N, ok := stream.Dict["N"].(Integer)
	if !ok || N < 0 || N > 1_000_000 {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("no valid /N for ObjStm"),
		}
	}
	first, ok := stream.Dict["First"].(Integer)
	if !ok || first < 0 {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("no valid /First for ObjStm"),
		}
	}

	decoded, err := DecodeStream(r, stream)
	if err != nil {
		return nil, Wrap(err, r.errPos(sRef))
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, Wrap(err, r.errPos(sRef))
	}
	if int(first) > len(data) {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("ObjStm too short"),
		}
	}

	s := newScanner(bytes.NewReader(data[:first]), 0, nil, r.safeGetInt)
	idx := make(map[uint32]int, N)
	for i := 0; i < int(N); i++ {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		no, err := s.ReadInteger()
		if err != nil {
			return nil, Wrap(err, r.errPos(sRef))
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		offs, err := s.ReadInteger()
		if err != nil {
			return nil, Wrap(err, r.errPos(sRef))
		}
		if no < 0 || offs < 0 || int(first)+int(offs) > len(data) {
			return nil, &MalformedFileError{
				Pos: r.errPos(sRef),
				Err: errors.New("invalid ObjStm index"),
			}
		}
		idx[uint32(no)] = int(first) + int(offs)
	}

	res := &objStm{data: data, idx: idx}
	r.objStmCache[number] = res
	return res, nil
}

func (r *Reader) getFromObjectStream(number uint32, container uint32) (Object, error) {
	contents, err := r.objStmContents(container)
	if err != nil {
		return nil, err
	}
	offs, ok := contents.idx[number]
	if !ok {
		return nil, &MalformedFileError{
			Pos: r.errPos(NewReference(container, 0)),
			Err: errors.New("object missing from stream"),
		}
	}

	s := newScanner(bytes.NewReader(contents.data[offs:]), 0, nil, r.safeGetInt)
	obj, err := s.ReadObject()
	if err != nil {
		return nil, err
	}
	if a, isInt := obj.(Integer); isInt {
		// Objects in streams can be references, too.
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, _ := s.Peek(1)
		if len(buf) > 0 && buf[0] >= '0' && buf[0] <= '9' {
			b, err := s.ReadInteger()
			if err == nil {
				s.SkipWhiteSpace()
				if s.SkipString("R") == nil {
					obj = NewReference(uint32(a), uint16(b))
				}
			}
		}
	}
	return obj, nil
}

func (r *Reader) safeGetInt(obj Object) (Integer, error) {
	if x, ok := obj.(Integer); ok {
		return x, nil
	}

	if r.level > 2 {
		return 0, &MalformedFileError{
			Err: errors.New("too many nested references for stream length"),
		}
	}
	r.level++
	defer func() { r.level-- }()

	ref, ok := obj.(Reference)
	if !ok || r.xref == nil {
		return 0, errors.New("missing stream length")
	}
	val, err := r.Get(ref)
	if err != nil {
		return 0, err
	}
	x, ok := val.(Integer)
	if !ok {
		return 0, errors.New("wrong type for stream length")
	}
	return x, nil
}

func (r *Reader) scannerAt(pos int64) *scanner {
	return newScanner(io.NewSectionReader(r.r, pos, r.size-pos), pos,
		r.r, r.safeGetInt)
}

func (r *Reader) errPos(ref Reference) int64 {
	if r.xref == nil {
		return 0
	}

	number := ref.Number()
	gen := ref.Generation()
	for i := 0; i < 4; i++ {
		entry := r.xref[number]
		if entry.IsFree() || entry.Generation != gen {
			return 0
		}
		if entry.InStream == 0 {
			return entry.Pos
		}
		number = entry.InStream
		gen = 0
	}
	return 0
}

// Version represent the version of PDF standard used in a file.
type Version int

// Constants for the known PDF versions.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
	tooHighVersion
)

// ParseVersion parses a PDF version string.
func ParseVersion(verString string) (Version, error) {
	switch verString {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	case "1.2":
		return V1_2, nil
	case "1.3":
		return V1_3, nil
	case "1.4":
		return V1_4, nil
	case "1.5":
		return V1_5, nil
	case "1.6":
		return V1_6, nil
	case "1.7":
		return V1_7, nil
	case "2.0":
		return V2_0, nil
	}
	return 0, errVersion
}

// ToString returns the string representation of ver, e.g. "1.7".
// If ver does not correspond to a supported PDF version, and error is
// returned.
func (ver Version) ToString() (string, error) {
	if ver >= V1_0 && ver <= V1_7 {
		return "1." + string([]byte{byte(ver - V1_0 + '0')}), nil
	}
	if ver == V2_0 {
		return "2.0", nil
	}
	return "", errVersion
}

func (ver Version) String() string {
	versionString, err := ver.ToString()
	if err != nil {
		versionString = "pdf.Version(" + strconv.Itoa(int(ver)) + ")"
	}
	return versionString
}

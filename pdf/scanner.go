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
	"strconv"
)

const scannerBufSize = 1024

// scanner reads PDF objects from an input stream.  Positions reported by the
// scanner are absolute file offsets, computed from the base offset
// the scanner was created with.
type scanner struct {
	r         io.Reader
	buf       []byte
	used, pos int

	// ra gives random access to the whole file, for reading stream data.
	// This is nil inside object streams, where streams are not allowed.
	ra io.ReaderAt

	getInt func(Object) (Integer, error)

	base  int64
	total int64
}

func newScanner(r io.Reader, base int64, ra io.ReaderAt, getInt func(Object) (Integer, error)) *scanner {
	return &scanner{
		r:      r,
		buf:    make([]byte, scannerBufSize),
		ra:     ra,
		getInt: getInt,
		base:   base,
	}
}

// currentPos returns the absolute file offset of the next unread byte.
func (s *scanner) currentPos() int64 {
	return s.base + s.total + int64(s.pos)
}

// bytesRead returns the number of bytes consumed since the scanner
// was created.
func (s *scanner) bytesRead() int64 {
	return s.total + int64(s.pos)
}

// ReadIndirectObject reads an object of the form "n g obj ... endobj".
func (s *scanner) ReadIndirectObject() (Object, Reference, error) {
	// Some files point the xref entries at the end of the previous line.
	// Try to fix this up by skipping any leading white space.
	err := s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	number, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	generation, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	if number < 0 || number > 1<<31 || generation < 0 || generation > 65535 {
		return nil, 0, &MalformedFileError{
			Pos: s.currentPos(),
			Err: errors.New("invalid object number"),
		}
	}
	ref := NewReference(uint32(number), uint16(generation))

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipString("obj")
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	obj, err := s.ReadObject()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	if a, ok := obj.(Integer); ok {
		// Check whether this is the start of a reference to an indirect
		// object.
		buf, err := s.Peek(6)
		if err != nil {
			return nil, 0, err
		}
		if !bytes.Equal(buf, []byte("endobj")) {
			b, err := s.ReadInteger()
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipWhiteSpace()
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipString("R")
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipWhiteSpace()
			if err != nil {
				return nil, 0, err
			}
			obj = NewReference(uint32(a), uint16(b))
		}
	}

	// A missing "endobj" is a common defect.  Accept the object anyway.
	buf, _ := s.Peek(6)
	if bytes.Equal(buf, []byte("endobj")) {
		s.pos += 6
	}

	return obj, ref, nil
}

// ReadObject reads a direct object.  It is the caller's responsibility to
// check whether an Integer is the start of a reference.
func (s *scanner) ReadObject() (Object, error) {
	buf, err := s.Peek(5) // len("false") == 5
	if err == nil {
		// Below, we return `err` if we cannot detect an object.  Use
		// &MalformedFileError{} when there was no problem reading the input.
		if len(buf) < 5 {
			err = &MalformedFileError{Pos: s.currentPos(), Err: io.ErrUnexpectedEOF}
		} else {
			err = &MalformedFileError{
				Pos: s.currentPos(),
				Err: fmt.Errorf("unexpected input %q", buf),
			}
		}
	}

	switch {
	case len(buf) == 0:
		// Test this first, so that we can use buf[0] in the following cases.
		return nil, err
	case bytes.HasPrefix(buf, []byte("null")):
		s.pos += 4
		return nil, nil
	case bytes.HasPrefix(buf, []byte("true")):
		s.pos += 4
		return Bool(true), nil
	case bytes.HasPrefix(buf, []byte("false")):
		s.pos += 5
		return Bool(false), nil
	case buf[0] == '/':
		return s.ReadName()
	case buf[0] >= '0' && buf[0] <= '9', buf[0] == '+', buf[0] == '-', buf[0] == '.':
		return s.ReadNumber()
	case bytes.HasPrefix(buf, []byte("<<")):
		dict, err := s.ReadDict()
		if err != nil {
			return nil, err
		}

		// check whether this is the start of a stream
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, _ = s.Peek(6) // len("stream") == 6
		if !bytes.HasPrefix(buf, []byte("stream")) {
			return dict, nil
		}
		return s.ReadStreamData(dict)
	case buf[0] == '(':
		s.pos++
		return s.ReadQuotedString()
	case buf[0] == '<':
		s.pos++
		return s.ReadHexString()
	case buf[0] == '[':
		s.pos++
		return s.ReadArray()
	}
	return nil, err
}

// ReadInteger reads an integer.
func (s *scanner) ReadInteger() (Integer, error) {
	first := true
	var res []byte
	err := s.ScanBytes(func(c byte) bool {
		if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return 0, err
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return 0, &MalformedFileError{
			Pos: s.currentPos(),
			Err: err,
		}
	}
	return Integer(x), nil
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	hasDot := false
	first := true
	var res []byte
	err := s.ScanBytes(func(c byte) bool {
		if !hasDot && c == '.' {
			hasDot = true
			res = append(res, c)
		} else if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return nil, err
	}

	if hasDot {
		if len(res) == 1 || len(res) == 2 && (res[0] == '-' || res[0] == '+') {
			// "." and "-." are used by some writers to mean zero
			return Real(0), nil
		}
		x, err := strconv.ParseFloat(string(res), 64)
		if err != nil {
			return nil, &MalformedFileError{Pos: s.currentPos(), Err: err}
		}
		return Real(x), nil
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return nil, &MalformedFileError{Pos: s.currentPos(), Err: err}
	}
	return Integer(x), nil
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.
func (s *scanner) ReadQuotedString() (String, error) {
	var res []byte
	parentCount := 0
	escape := false
	ignoreLF := false
	isOctal := 0
	octalVal := byte(0)
	err := s.ScanBytes(func(c byte) bool {
		if ignoreLF {
			ignoreLF = false
			if c == '\n' {
				return true
			}
		}
		if isOctal > 0 {
			if c >= '0' && c <= '7' {
				octalVal = octalVal*8 + (c - '0')
				isOctal--
				if isOctal > 0 {
					return true
				}
				res = append(res, octalVal)
				return true
			}
			isOctal = 0
			res = append(res, octalVal)
		}
		if escape {
			escape = false
			switch c {
			case '\n':
				return true
			case '\r':
				ignoreLF = true
				return true
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			}
			if c >= '0' && c <= '7' {
				isOctal = 2
				octalVal = c - '0'
				return true
			}
		} else if c == '\\' {
			escape = true
			return true
		} else if c == '(' {
			parentCount++
		} else if c == ')' {
			if parentCount > 0 {
				parentCount--
			} else {
				return false
			}
		} else if c == '\r' {
			c = '\n'
			ignoreLF = true
		}
		res = append(res, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	if isOctal > 0 {
		res = append(res, octalVal)
	}

	s.pos++ // we have already seen the closing ")".
	return String(res), nil
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angled bracket.
func (s *scanner) ReadHexString() (String, error) {
	var res []byte
	var hexVal byte
	first := true
	err := s.ScanBytes(func(c byte) bool {
		var d byte
		if c >= '0' && c <= '9' {
			d = c - '0'
		} else if c >= 'A' && c <= 'F' {
			d = c - 'A' + 10
		} else if c >= 'a' && c <= 'f' {
			d = c - 'a' + 10
		} else if c == '>' {
			return false
		} else {
			return true
		}
		if first {
			hexVal = d
		} else {
			res = append(res, 16*hexVal+d)
		}
		first = !first
		return true
	})
	if err != nil {
		return nil, err
	}
	if !first {
		res = append(res, 16*hexVal)
	}

	// If we reach the end of the file, the trailing ">" will be missing.
	s.SkipString(">")

	return String(res), nil
}

// ReadName reads a PDF name object.
func (s *scanner) ReadName() (Name, error) {
	err := s.SkipString("/")
	if err != nil {
		return "", err
	}

	hex := 0
	var hexByte byte
	var res []byte
	err = s.ScanBytes(func(c byte) bool {
		if hex > 0 {
			var val byte
			if c >= '0' && c <= '9' {
				val = c - '0'
			} else if c >= 'A' && c <= 'F' {
				val = c - 'A' + 10
			} else if c >= 'a' && c <= 'f' {
				val = c - 'a' + 10
			}
			hexByte = 16*hexByte + val
			hex--
			if hex == 0 {
				res = append(res, hexByte)
			}
		} else if c == '#' {
			hexByte = 0
			hex = 2
		} else if isSpace[c] || isDelimiter[c] {
			return false
		} else {
			res = append(res, c)
		}
		return true
	})
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}

	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	var array Array
	integersSeen := 0
	for {
		err := s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, &MalformedFileError{
				Pos: s.currentPos(),
				Err: io.ErrUnexpectedEOF,
			}
		}
		if buf[0] == ']' {
			break
		}
		if integersSeen >= 2 && buf[0] == 'R' {
			s.pos++
			k := len(array)
			a := array[k-2].(Integer)
			b := array[k-1].(Integer)
			array = append(array[:k-2], NewReference(uint32(a), uint16(b)))
			integersSeen = 0
			continue
		}

		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}

		if _, isInt := obj.(Integer); isInt {
			integersSeen++
		} else {
			integersSeen = 0
		}

		array = append(array, obj)
	}
	s.pos++ // we have already seen the closing "]"

	return array, nil
}

// ReadDict reads a PDF dictionary.
func (s *scanner) ReadDict() (Dict, error) {
	err := s.SkipString("<<")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	dict := make(Dict)
	for {
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, &MalformedFileError{
				Pos: s.currentPos(),
				Err: io.ErrUnexpectedEOF,
			}
		}
		if buf[0] != '/' {
			break
		}

		key, err := s.ReadName()
		if err != nil {
			return nil, err
		}

		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		val, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		// If we found an integer, check whether this is a reference to an
		// indirect object.
		if a, isInt := val.(Integer); isInt {
			buf, err := s.Peek(1)
			if err != nil {
				return nil, err
			}
			if len(buf) == 0 {
				return nil, &MalformedFileError{
					Pos: s.currentPos(),
					Err: io.ErrUnexpectedEOF,
				}
			}
			if buf[0] >= '0' && buf[0] <= '9' {
				b, err := s.ReadInteger()
				if err != nil {
					return nil, err
				}
				err = s.SkipWhiteSpace()
				if err != nil {
					return nil, err
				}
				err = s.SkipString("R")
				if err != nil {
					return nil, err
				}
				err = s.SkipWhiteSpace()
				if err != nil {
					return nil, err
				}

				val = NewReference(uint32(a), uint16(b))
			}
		}

		if val != nil {
			dict[key] = val
		}
	}
	err = s.SkipString(">>")
	if err != nil {
		return nil, err
	}

	return dict, nil
}

// ReadStreamData reads the data of a PDF Stream, starting after the Dict.
// The returned stream refers to the underlying file; the data is not
// copied into memory.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	if s.ra == nil {
		return nil, &MalformedFileError{
			Pos: s.currentPos(),
			Err: errors.New("stream not allowed here"),
		}
	}

	err := s.SkipString("stream")
	if err != nil {
		return nil, err
	}

	buf, err := s.Peek(2)
	if err != nil {
		return nil, err
	}
	if len(buf) >= 1 && buf[0] == '\n' {
		s.pos++
	} else if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		s.pos += 2
	} else if len(buf) >= 1 && buf[0] == '\r' {
		s.pos++
	}

	start := s.currentPos()

	length, err := s.getInt(dict["Length"])
	if err != nil || length < 0 {
		length = -1
	}

	if length >= 0 {
		err = s.Discard(int64(length))
		if err == nil {
			err = s.SkipWhiteSpace()
		}
		if err == nil {
			buf, _ = s.Peek(9)
			if !bytes.Equal(buf, []byte("endstream")) {
				length = -1
			}
		}
		if err != nil {
			length = -1
		}
	}
	if length < 0 {
		// The /Length entry is missing or wrong.  Search for "endstream"
		// instead.
		l, err := findEndStream(s.ra, start)
		if err != nil {
			return nil, err
		}
		length = Integer(l)
		s.seekAbsolute(start + l)
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
	}
	err = s.SkipString("endstream")
	if err != nil {
		return nil, err
	}

	dict["Length"] = length
	return &Stream{
		Dict: dict,
		R:    io.NewSectionReader(s.ra, start, int64(length)),
	}, nil
}

// findEndStream returns the length of the stream data starting at start,
// excluding the end-of-line marker before "endstream".
func findEndStream(ra io.ReaderAt, start int64) (int64, error) {
	const chunk = 4096
	pat := []byte("endstream")
	buf := make([]byte, chunk+len(pat))
	pos := start
	for {
		n, err := ra.ReadAt(buf, pos)
		idx := bytes.Index(buf[:n], pat)
		if idx >= 0 {
			end := pos + int64(idx)
			if end > start && idx > 0 && buf[idx-1] == '\n' {
				end--
				if end > start && idx >= 2 && buf[idx-2] == '\r' {
					end--
				}
			} else if end > start && idx > 0 && buf[idx-1] == '\r' {
				end--
			}
			return end - start, nil
		}
		if err != nil {
			return 0, &MalformedFileError{
				Pos: start,
				Err: errors.New("unterminated stream"),
			}
		}
		pos += chunk
	}
}

// seekAbsolute moves the scanner to the given absolute file position.
// This requires random access to the file.
func (s *scanner) seekAbsolute(pos int64) {
	s.r = io.NewSectionReader(s.ra, pos, 1<<62)
	s.base = pos
	s.total = 0
	s.pos = 0
	s.used = 0
}

func (s *scanner) readHeaderVersion() (Version, error) {
	buf, err := s.Peek(16)
	if err != nil {
		return 0, err
	}

	if !bytes.HasPrefix(buf, []byte("%PDF-")) || len(buf) < 8 {
		return 0, &MalformedFileError{
			Err: errors.New("PDF header not found"),
		}
	}

	end := 5
	for end < len(buf) && (buf[end] == '.' || buf[end] >= '0' && buf[end] <= '9') {
		end++
	}
	version, err := ParseVersion(string(buf[5:end]))
	if err != nil {
		return 0, &MalformedFileError{Pos: 5, Err: err}
	}
	s.pos += end

	return version, nil
}

// refill discards the read part of the buffer and reads as much new data as
// possible.  Once the end of file is reached, s.used will be smaller than the
// buffer size, but no error will be returned.
func (s *scanner) refill() error {
	s.total += int64(s.pos)
	copy(s.buf, s.buf[s.pos:s.used])
	s.used -= s.pos
	s.pos = 0

	n, err := io.ReadFull(s.r, s.buf[s.used:])
	s.used += n

	if s.used > 0 || err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}

	return err
}

// Peek returns a view of the next n bytes of input.  The function panics, if n
// is larger than scannerBufSize.  On EOF, short buffers without an error code
// will be returned.
func (s *scanner) Peek(n int) ([]byte, error) {
	if n > scannerBufSize {
		panic("peek window too large")
	}

	var err error
	if s.pos+n > s.used {
		err = s.refill()
	}

	if s.pos+n > s.used {
		return s.buf[s.pos:s.used], err
	}

	return s.buf[s.pos : s.pos+n], nil
}

// Discard skips the next n bytes of input.
func (s *scanner) Discard(n int64) error {
	if n < 0 {
		panic("negative offset for Discard()")
	}
	unread := int64(s.used - s.pos)
	if n <= unread {
		s.pos += int(n)
		return nil
	}

	n -= unread
	s.total += int64(s.used)
	s.pos = 0
	s.used = 0

	m, err := io.CopyN(io.Discard, s.r, n)
	s.total += m
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// ScanBytes calls accept for every input byte, until accept returns false.
func (s *scanner) ScanBytes(accept func(c byte) bool) error {
	empty := true
	for {
		for s.pos < s.used {
			if !accept(s.buf[s.pos]) {
				return nil
			}
			s.pos++
			empty = false
		}
		err := s.refill()
		if err != nil {
			return err
		}
		if s.used == 0 {
			if empty {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
	}
}

// SkipWhiteSpace skips all input (including comments) until a non-space
// character is found.
func (s *scanner) SkipWhiteSpace() error {
	isComment := false
	err := s.ScanBytes(func(c byte) bool {
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else {
			return isSpace[c]
		}
		return true
	})
	if err == io.ErrUnexpectedEOF {
		// end of input is not an error here
		return nil
	}
	return err
}

// SkipString skips over the given string, or returns an error if the
// input does not start with pat.
func (s *scanner) SkipString(pat string) error {
	patBytes := []byte(pat)
	n := len(patBytes)
	buf, err := s.Peek(n)
	if err != nil {
		return err
	}
	if !bytes.Equal(buf, patBytes) {
		return &MalformedFileError{
			Pos: s.currentPos(),
			Err: fmt.Errorf("expected %q but found %q", pat, string(buf)),
		}
	}
	s.pos += n
	return nil
}

var (
	isSpace = [256]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = [256]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)

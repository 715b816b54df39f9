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
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// DecodeStream returns a reader for the decoded contents of a stream.
// Only the filters needed to read cross-reference and object streams
// are supported: FlateDecode (with or without PNG and TIFF predictors).
func DecodeStream(r Getter, x *Stream) (io.Reader, error) {
	filters, err := getFilters(r, x.Dict)
	if err != nil {
		return nil, err
	}
	var res io.Reader = x.R
	if sec, ok := res.(*io.SectionReader); ok {
		// Start from the beginning, in case the stream was read before.
		res = io.NewSectionReader(sec, 0, sec.Size())
	}
	for _, f := range filters {
		res, err = applyFilter(res, f.name, f.parms)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type filterInfo struct {
	name  Name
	parms Dict
}

func getFilters(r Getter, dict Dict) ([]filterInfo, error) {
	filter, err := Resolve(r, dict["Filter"])
	if err != nil {
		return nil, err
	}
	parms, err := Resolve(r, dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var res []filterInfo
	switch filter := filter.(type) {
	case nil:
		// no filters
	case Name:
		pDict, _ := parms.(Dict)
		res = append(res, filterInfo{filter, pDict})
	case Array:
		pArray, _ := parms.(Array)
		for i, fi := range filter {
			fi, err := Resolve(r, fi)
			if err != nil {
				return nil, err
			}
			name, ok := fi.(Name)
			if !ok {
				return nil, fmt.Errorf("invalid filter name %s", Format(fi))
			}
			var pDict Dict
			if i < len(pArray) {
				p, err := Resolve(r, pArray[i])
				if err != nil {
					return nil, err
				}
				pDict, _ = p.(Dict)
			}
			res = append(res, filterInfo{name, pDict})
		}
	default:
		return nil, fmt.Errorf("invalid /Filter %s", Format(filter))
	}
	return res, nil
}

func applyFilter(r io.Reader, name Name, param Dict) (io.Reader, error) {
	switch name {
	case "FlateDecode", "Fl":
		params := map[string]int{
			"Predictor":        1,
			"Colors":           1,
			"BitsPerComponent": 8,
			"Columns":          1,
		}
		for key := range params {
			if val, ok := param[Name(key)].(Integer); ok {
				params[key] = int(val)
			}
		}
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		bpp := (params["Colors"]*params["BitsPerComponent"] + 7) / 8
		rowBytes := (params["Colors"]*params["BitsPerComponent"]*params["Columns"] + 7) / 8
		if bpp < 1 || rowBytes < 1 {
			return nil, errors.New("invalid predictor parameters")
		}
		switch p := params["Predictor"]; {
		case p == 1:
			return zr, nil
		case p == 2:
			if params["BitsPerComponent"] != 8 {
				return nil, fmt.Errorf("unsupported TIFF predictor depth %d",
					params["BitsPerComponent"])
			}
			return &tiffReader{
				r:    zr,
				bpp:  bpp,
				row:  make([]byte, rowBytes),
				pend: nil,
			}, nil
		case p >= 10 && p <= 15:
			return &pngReader{
				r:    zr,
				bpp:  bpp,
				prev: make([]byte, rowBytes),
				tmp:  make([]byte, 1+rowBytes),
			}, nil
		default:
			return nil, fmt.Errorf("unsupported predictor %d", p)
		}
	default:
		return nil, fmt.Errorf("unsupported filter %q", name)
	}
}

// pngReader undoes the PNG row filters.  Each row starts with a byte
// giving the filter type for this row.
type pngReader struct {
	r    io.Reader
	bpp  int
	prev []byte
	tmp  []byte
	pend []byte
}

func (r *pngReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.tmp)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil {
			return n, err
		}

		cur := r.tmp[1:]
		prev := r.prev
		bpp := r.bpp
		switch r.tmp[0] {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < len(cur); i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := range cur {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := range cur {
				var left int
				if i >= bpp {
					left = int(cur[i-bpp])
				}
				cur[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := range cur {
				var a, c int
				if i >= bpp {
					a = int(cur[i-bpp])
					c = int(prev[i-bpp])
				}
				cur[i] += paeth(a, int(prev[i]), c)
			}
		default:
			return n, fmt.Errorf("malformed PNG predictor %d", r.tmp[0])
		}
		copy(r.prev, cur)
		r.pend = r.prev
	}
	return n, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa := abs(p - a)
	pb := abs(p - b)
	pc := abs(p - c)
	if pa <= pb && pa <= pc {
		return byte(a)
	} else if pb <= pc {
		return byte(b)
	}
	return byte(c)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// tiffReader undoes TIFF predictor 2 for 8-bit components.
type tiffReader struct {
	r    io.Reader
	bpp  int
	row  []byte
	pend []byte
}

func (r *tiffReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.row)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil {
			return n, err
		}
		for i := r.bpp; i < len(r.row); i++ {
			r.row[i] += r.row[i-r.bpp]
		}
		r.pend = r.row
	}
	return n, nil
}

// Compress returns the zlib-compressed form of data, for use with the
// FlateDecode filter.
func Compress(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewCompressedStream creates a FlateDecode-compressed stream.
func NewCompressedStream(dict Dict, data []byte) (*Stream, error) {
	z, err := Compress(data)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		dict = Dict{}
	}
	dict["Filter"] = Name("FlateDecode")
	return NewStream(dict, z), nil
}

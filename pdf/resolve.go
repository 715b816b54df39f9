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
)

// maxResolveDepth limits chains of references to references.
const maxResolveDepth = 16

var errReferenceLoop = errors.New("too many nested references")

// Resolve resolves references to indirect objects.
//
// If obj is a [Reference], the function reads the corresponding object from
// the file and returns the result.  Otherwise, obj is returned unchanged.
func Resolve(r Getter, obj Object) (Object, error) {
	for i := 0; i < maxResolveDepth; i++ {
		ref, isRef := obj.(Reference)
		if !isRef {
			return obj, nil
		}
		if r == nil {
			return nil, fmt.Errorf("cannot resolve %s here", ref)
		}
		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}
	return nil, &MalformedFileError{Err: errReferenceLoop}
}

// GetDict resolves references to indirect objects and makes sure the
// resulting object is a dictionary.  A null object gives a nil dictionary.
func GetDict(r Getter, obj Object) (Dict, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case Dict:
		return x, nil
	case *Stream:
		return x.Dict, nil
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("expected Dict but got %T", obj),
		}
	}
}

// GetArray resolves references to indirect objects and makes sure the
// resulting object is an array.
func GetArray(r Getter, obj Object) (Array, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case Array:
		return x, nil
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("expected Array but got %T", obj),
		}
	}
}

// GetName resolves references to indirect objects and makes sure the
// resulting object is a name.
func GetName(r Getter, obj Object) (Name, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return "", err
	}
	switch x := obj.(type) {
	case nil:
		return "", nil
	case Name:
		return x, nil
	default:
		return "", &MalformedFileError{
			Err: fmt.Errorf("expected Name but got %T", obj),
		}
	}
}

// GetNumber resolves references to indirect objects and makes sure the
// resulting object is an Integer or a Real.
func GetNumber(r Getter, obj Object) (float64, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return float64(x), nil
	default:
		return 0, &MalformedFileError{
			Err: fmt.Errorf("expected number but got %T", obj),
		}
	}
}

// GetRectangle resolves references to indirect objects and converts the
// resulting array into a normalized rectangle.
func GetRectangle(r Getter, obj Object) (*Rectangle, error) {
	a, err := GetArray(r, obj)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	if len(a) != 4 {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("rectangle with %d elements", len(a)),
		}
	}
	var x [4]float64
	for i, ai := range a {
		x[i], err = GetNumber(r, ai)
		if err != nil {
			return nil, err
		}
	}
	rect := Rectangle{LLx: x[0], LLy: x[1], URx: x[2], URy: x[3]}.Normalize()
	return &rect, nil
}

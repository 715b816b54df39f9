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
	"strconv"
)

var (
	errVersion = errors.New("unsupported PDF version")

	// ErrEncrypted is reported when a file uses the PDF security handler.
	// Encrypted documents cannot be rewritten.
	ErrEncrypted = errors.New("encrypted PDF files are not supported")

	// ErrNoCatalog indicates that the trailer has no usable /Root entry.
	ErrNoCatalog = errors.New("document catalog not found")
)

// MalformedFileError indicates that the PDF file could not be parsed.
type MalformedFileError struct {
	Pos int64
	Err error
}

func (err *MalformedFileError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if err.Pos > 0 {
		tail = " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return "not a valid PDF file" + middle + tail
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// Wrap wraps err as a [MalformedFileError], unless it is one already.
func Wrap(err error, pos int64) error {
	if err == nil {
		return nil
	}
	var m *MalformedFileError
	if errors.As(err, &m) {
		return err
	}
	return &MalformedFileError{Pos: pos, Err: err}
}

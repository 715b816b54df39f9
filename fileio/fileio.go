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

// Package fileio reads and writes document files.
//
// Files are written atomically: the data goes to a temporary file in the
// target directory, which is renamed after all data has been written and
// synced.  If anything fails, the target file is left untouched.
package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrWrite is wrapped by all errors returned from the write functions.
var ErrWrite = errors.New("write failed")

// WriteError reports a failed write.
type WriteError struct {
	Path string
	Err  error
}

func (err *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", err.Path, err.Err)
}

func (err *WriteError) Unwrap() []error {
	return []error{ErrWrite, err.Err}
}

// ReadFile returns the contents of the file at path.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic replaces the file at path with data.
func WriteFileAtomic(path string, data []byte) error {
	return WriteRaw(path, bytes.NewReader(data))
}

// WriteRaw replaces the file at path with the data read from r.
// The data is copied as is.
func WriteRaw(path string, r io.Reader) error {
	err := writeRaw(path, r)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeRaw(path string, r io.Reader) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	fd, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := fd.Name()
	defer func() {
		if err != nil {
			fd.Close()
			os.Remove(tmpName)
		}
	}()

	_, err = io.Copy(fd, r)
	if err != nil {
		return err
	}
	err = fd.Sync()
	if err != nil {
		return err
	}
	err = fd.Chmod(0o644)
	if err != nil {
		return err
	}
	err = fd.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// OpenedWith returns the document the program was asked to open, given
// the command line arguments without the program name.  This is the
// first argument which is not a flag.  The file name is not checked: the
// document is identified by its contents when it is read.
func OpenedWith(args []string) (string, bool) {
	flags := true
	for _, arg := range args {
		if flags && arg == "--" {
			flags = false
			continue
		}
		if flags && strings.HasPrefix(arg, "-") {
			continue
		}
		return arg, true
	}
	return "", false
}

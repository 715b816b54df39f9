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

// Package registry maps font family names to font files, and resolves
// the fonts used while drawing annotations.
//
// A [Registry] is created once and passed to the components which need
// it.  For every flatten operation, a [Resolver] is created from the
// registry.  The resolver loads each font family at most once, and falls
// back to Helvetica when a font cannot be used.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
)

var (
	// ErrFontEmbed indicates that a font could not be loaded or embedded.
	ErrFontEmbed = errors.New("font embedding failed")

	// ErrUnknownFamily is used when a family is not in the registry.
	ErrUnknownFamily = errors.New("unknown font family")
)

// EmbedError reports a font family which could not be used.
type EmbedError struct {
	Family string
	Err    error
}

func (err *EmbedError) Error() string {
	return fmt.Sprintf("font %q: %v", err.Family, err.Err)
}

func (err *EmbedError) Unwrap() []error {
	return []error{ErrFontEmbed, err.Err}
}

// Source describes where the font file for a family comes from.
// Exactly one of Data and Load should be set.
type Source struct {
	Data []byte
	Load func() ([]byte, error)

	// Script marks fonts which resemble cursive handwriting.
	Script bool
}

func (src Source) bytes() ([]byte, error) {
	if src.Data != nil {
		return src.Data, nil
	}
	if src.Load != nil {
		return src.Load()
	}
	return nil, errors.New("empty font source")
}

// Registry maps font family names to font sources.
type Registry struct {
	families map[string]Source
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{families: make(map[string]Source)}
}

// Default returns a registry containing the bundled signature fonts.
func Default() *Registry {
	r := New()
	r.Add("Go Italic", Source{Data: goitalic.TTF, Script: true})
	r.Add("Go Medium Italic", Source{Data: gomediumitalic.TTF, Script: true})
	r.Add("Go Bold Italic", Source{Data: gobolditalic.TTF, Script: true})
	r.Add("Go Smallcaps Italic", Source{Data: gosmallcapsitalic.TTF, Script: true})
	return r
}

// Add adds a font family to the registry.  An existing family of the same
// name is replaced.
func (r *Registry) Add(family string, src Source) {
	r.families[family] = src
}

// AddFile adds a font family which is loaded from a TrueType file.
// The file is read when the font is first used.
func (r *Registry) AddFile(family, path string) {
	r.Add(family, Source{
		Load:   func() ([]byte, error) { return os.ReadFile(path) },
		Script: true,
	})
}

// Has reports whether the family is known.
func (r *Registry) Has(family string) bool {
	_, ok := r.families[family]
	return ok
}

// Families returns the names of all font families, in alphabetical order.
func (r *Registry) Families() []string {
	res := make([]string, 0, len(r.families))
	for name := range r.families {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

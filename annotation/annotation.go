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

// Package annotation implements the overlay annotations placed on the pages
// of a document while it is being edited.
//
// There are two kinds of annotations: free text ([Text]) and placements of
// a rendered signature ([Signature]).  Both share the position information
// in [Envelope].  A type switch over the two variants is exhaustive, since
// the [Annotation] interface cannot be implemented outside this package.
//
// Positions are given in display space: the origin is at the top left
// corner of the displayed page, with the page rotation already applied.
package annotation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the variant of an annotation.
type Kind string

// The annotation kinds.
const (
	KindText      Kind = "text"
	KindSignature Kind = "signature"
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindText, KindSignature:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	// ErrUnknownKind is returned for annotation kinds other than "text"
	// and "signature".
	ErrUnknownKind = errors.New("unknown annotation kind")

	errKindMismatch = errors.New("fields do not match annotation kind")
)

// Annotation is an overlay annotation on a page.
// The concrete type is either *Text or *Signature.
type Annotation interface {
	// Kind returns the kind of the annotation.
	Kind() Kind

	// GetEnvelope returns the fields common to all annotations.
	GetEnvelope() *Envelope

	// Clone returns a deep copy of the annotation.
	Clone() Annotation

	isAnnotation()
}

var (
	_ Annotation = (*Text)(nil)
	_ Annotation = (*Signature)(nil)
)

// Envelope contains the fields shared by all annotations.
type Envelope struct {
	// ID identifies the annotation.  IDs are never reused.
	ID string

	// PageNumber is the 1-based number of the page the annotation is on.
	PageNumber int

	// X and Y give the top left corner of the annotation, in display
	// space.
	X, Y float64

	// Width and Height give the size of the bounding box.  These values
	// are not used for text layout.
	Width, Height float64
}

// Text is a free text annotation.
type Text struct {
	Envelope

	// Text is the text to draw.  Empty text is not drawn.
	Text string

	// FontSize is the font size in PDF units.
	FontSize float64

	Color Color
}

// Kind implements the [Annotation] interface.
func (a *Text) Kind() Kind { return KindText }

// GetEnvelope implements the [Annotation] interface.
func (a *Text) GetEnvelope() *Envelope { return &a.Envelope }

// Clone implements the [Annotation] interface.
func (a *Text) Clone() Annotation {
	c := *a
	return &c
}

func (a *Text) isAnnotation() {}

// Signature is the placement of a signature on a page.
type Signature struct {
	Envelope

	// SignatureID refers to a [SignatureRecord].
	SignatureID string
}

// Kind implements the [Annotation] interface.
func (a *Signature) Kind() Kind { return KindSignature }

// GetEnvelope implements the [Annotation] interface.
func (a *Signature) GetEnvelope() *Envelope { return &a.Envelope }

// Clone implements the [Annotation] interface.
func (a *Signature) Clone() Annotation {
	c := *a
	return &c
}

func (a *Signature) isAnnotation() {}

// SignatureRecord is a named, reusable signature.
// Records are immutable after creation, but can be deleted.
type SignatureRecord struct {
	ID string

	// Name is the text drawn for the signature.
	Name string

	// FontFamily is the font family used to draw the name.
	FontFamily string

	Color Color
}

// DefaultSignatureSize is the font size used for signature placements
// without a height.
const DefaultSignatureSize = 24

// FontSize returns the font size used to draw the signature.  The
// height of the placement is used as the font size, restricted by l.
func (a *Signature) FontSize(l Limits) float64 {
	if a.Height <= 0 {
		return l.Clamp(DefaultSignatureSize)
	}
	return l.Clamp(a.Height)
}

// NewID returns a new, random annotation or signature ID.
func NewID() string {
	return uuid.NewString()
}

// Limits gives the range of allowed font sizes.
type Limits struct {
	MinFontSize float64
	MaxFontSize float64
}

// DefaultLimits are the font size limits used if nothing else is configured.
var DefaultLimits = Limits{MinFontSize: 6, MaxFontSize: 72}

// DefaultFontSize is used for new text annotations without a font size.
const DefaultFontSize = 14

// Clamp restricts size to the range of allowed font sizes.
func (l Limits) Clamp(size float64) float64 {
	if size < l.MinFontSize {
		return l.MinFontSize
	}
	if size > l.MaxFontSize {
		return l.MaxFontSize
	}
	return size
}

// Lookup finds a signature record by ID.
func Lookup(sigs []SignatureRecord, id string) (*SignatureRecord, bool) {
	for i := range sigs {
		if sigs[i].ID == id {
			return &sigs[i], true
		}
	}
	return nil, false
}

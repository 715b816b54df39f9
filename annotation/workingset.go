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

package annotation

import (
	"fmt"
	"sync"
)

// Fields holds the kind-specific fields of a new annotation.
// The concrete type is either TextFields or SignatureFields.
type Fields interface {
	kind() Kind
}

// TextFields are the fields of a new text annotation.
type TextFields struct {
	Text string

	// FontSize is the font size.  Zero selects DefaultFontSize.
	FontSize float64

	Color         Color
	Width, Height float64
}

func (TextFields) kind() Kind { return KindText }

// SignatureFields are the fields of a new signature placement.
type SignatureFields struct {
	SignatureID   string
	Width, Height float64
}

func (SignatureFields) kind() Kind { return KindSignature }

// Patch describes a change to an annotation.  Only non-nil fields are
// applied.  Fields which do not exist for the kind of the annotation
// are ignored.
type Patch struct {
	PageNumber    *int
	X, Y          *float64
	Width, Height *float64

	Text     *string
	FontSize *float64
	Color    *Color

	SignatureID *string
}

// WorkingSet holds the annotations of the open document, in insertion
// order.  The working set is the source of truth while a document is
// edited; the store only holds the state of the last save.
//
// A WorkingSet is safe for concurrent use.
type WorkingSet struct {
	Limits Limits

	mu       sync.Mutex
	items    []Annotation
	selected string
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet(limits Limits) *WorkingSet {
	return &WorkingSet{Limits: limits}
}

// Create adds a new annotation to the working set and returns a copy of it.
// The annotation receives a new ID.
func (ws *WorkingSet) Create(kind Kind, pageNumber int, x, y float64, extra Fields) (Annotation, error) {
	if extra == nil || extra.kind() != kind {
		return nil, fmt.Errorf("%w: %q", errKindMismatch, kind)
	}

	env := Envelope{
		ID:         NewID(),
		PageNumber: pageNumber,
		X:          x,
		Y:          y,
	}

	var a Annotation
	switch f := extra.(type) {
	case TextFields:
		env.Width, env.Height = f.Width, f.Height
		size := f.FontSize
		if size == 0 {
			size = DefaultFontSize
		}
		a = &Text{
			Envelope: env,
			Text:     f.Text,
			FontSize: ws.Limits.Clamp(size),
			Color:    f.Color,
		}
	case SignatureFields:
		env.Width, env.Height = f.Width, f.Height
		a = &Signature{
			Envelope:    env,
			SignatureID: f.SignatureID,
		}
	}

	ws.mu.Lock()
	ws.items = append(ws.items, a)
	ws.mu.Unlock()

	return a.Clone(), nil
}

// Update applies a patch to the annotation with the given ID.
// If no such annotation exists, Update does nothing and returns false.
// Font sizes are clamped, coordinates are not.
func (ws *WorkingSet) Update(id string, patch Patch) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	idx := ws.index(id)
	if idx < 0 {
		return false
	}
	a := ws.items[idx]

	env := a.GetEnvelope()
	if patch.PageNumber != nil {
		env.PageNumber = *patch.PageNumber
	}
	if patch.X != nil {
		env.X = *patch.X
	}
	if patch.Y != nil {
		env.Y = *patch.Y
	}
	if patch.Width != nil {
		env.Width = *patch.Width
	}
	if patch.Height != nil {
		env.Height = *patch.Height
	}

	switch a := a.(type) {
	case *Text:
		if patch.Text != nil {
			a.Text = *patch.Text
		}
		if patch.FontSize != nil {
			a.FontSize = ws.Limits.Clamp(*patch.FontSize)
		}
		if patch.Color != nil {
			a.Color = *patch.Color
		}
	case *Signature:
		if patch.SignatureID != nil {
			a.SignatureID = *patch.SignatureID
		}
	}
	return true
}

// Remove deletes the annotation with the given ID.  Removing an annotation
// which does not exist is not an error.  If the annotation was selected,
// the selection is cleared.
func (ws *WorkingSet) Remove(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if idx := ws.index(id); idx >= 0 {
		ws.items = append(ws.items[:idx], ws.items[idx+1:]...)
	}
	if ws.selected == id {
		ws.selected = ""
	}
}

// Get returns a copy of the annotation with the given ID.
func (ws *WorkingSet) Get(id string) (Annotation, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	idx := ws.index(id)
	if idx < 0 {
		return nil, false
	}
	return ws.items[idx].Clone(), true
}

// All returns copies of all annotations, in insertion order.
func (ws *WorkingSet) All() []Annotation {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	res := make([]Annotation, len(ws.items))
	for i, a := range ws.items {
		res[i] = a.Clone()
	}
	return res
}

// Len returns the number of annotations in the working set.
func (ws *WorkingSet) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}

// Replace replaces the contents of the working set, for example after
// a document has been loaded.  Text font sizes are clamped.  The selection
// is cleared.
func (ws *WorkingSet) Replace(list []Annotation) {
	items := make([]Annotation, 0, len(list))
	for _, a := range list {
		a = a.Clone()
		if t, ok := a.(*Text); ok {
			t.FontSize = ws.Limits.Clamp(t.FontSize)
		}
		items = append(items, a)
	}

	ws.mu.Lock()
	ws.items = items
	ws.selected = ""
	ws.mu.Unlock()
}

// Clear removes all annotations and clears the selection.
func (ws *WorkingSet) Clear() {
	ws.Replace(nil)
}

// Visible returns the annotations which are shown to the user: all text
// annotations, and the signature placements which refer to one of the
// given signatures.
func (ws *WorkingSet) Visible(sigs []SignatureRecord) []Annotation {
	var res []Annotation
	for _, a := range ws.All() {
		if s, ok := a.(*Signature); ok {
			if _, found := Lookup(sigs, s.SignatureID); !found {
				continue
			}
		}
		res = append(res, a)
	}
	return res
}

// Select selects the annotation with the given ID.  If no such annotation
// exists, the selection is not changed and false is returned.
func (ws *WorkingSet) Select(id string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.index(id) < 0 {
		return false
	}
	ws.selected = id
	return true
}

// Selected returns the ID of the selected annotation, if any.
func (ws *WorkingSet) Selected() (string, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.selected, ws.selected != ""
}

// Deselect clears the selection.
func (ws *WorkingSet) Deselect() {
	ws.mu.Lock()
	ws.selected = ""
	ws.mu.Unlock()
}

func (ws *WorkingSet) index(id string) int {
	for i, a := range ws.items {
		if a.GetEnvelope().ID == id {
			return i
		}
	}
	return -1
}

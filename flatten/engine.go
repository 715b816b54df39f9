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

// Package flatten draws annotations into the pages of a PDF document.
//
// Flattening rewrites the whole document: every object of the source file
// is copied to the output, with the same object number.  Pages which
// receive annotations get two new content streams.  The first one saves
// the graphics state before the original content is drawn, the second one
// restores it and draws the annotations on top.  Nothing else in the
// document is changed, so that form fields, outlines, attachments and
// scripts are preserved.
package flatten

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/registry"
	"github.com/opensaas-skeletons/skeleton-office-tools/transform"
)

var (
	// ErrMalformedDocument is returned if the source document cannot be
	// parsed, or if it is encrypted.  The error wraps the
	// [*pdf.MalformedFileError] which describes the problem.
	ErrMalformedDocument = errors.New("malformed PDF document")

	// ErrDanglingSignature marks signature placements which refer to
	// a signature which does not exist.
	ErrDanglingSignature = errors.New("signature not found")

	// ErrPageOutOfRange marks annotations on pages which do not exist.
	ErrPageOutOfRange = errors.New("page number out of range")

	// ErrEmptyText marks annotations without text.
	ErrEmptyText = errors.New("empty text")

	// ErrDirectPage marks annotations on pages which are stored as
	// direct objects and cannot be replaced.
	ErrDirectPage = errors.New("page dictionary is not an indirect object")
)

// State describes the progress of a flatten operation.
type State int32

// These are the states of an [Engine].
const (
	Idle State = iota
	Loading
	Embedding
	Writing
	Serialized
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Embedding:
		return "embedding"
	case Writing:
		return "writing"
	case Serialized:
		return "serialized"
	case Failed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Engine flattens annotations into PDF documents.
//
// An Engine can be used for more than one document, but calls to
// [Engine.Flatten] must not overlap.
type Engine struct {
	// Registry provides the fonts used for signatures.
	Registry *registry.Registry

	// Log receives warnings about skipped annotations and font problems.
	Log logrus.FieldLogger

	// Limits restricts the font sizes used for drawing.
	Limits annotation.Limits

	// Transform converts annotation positions and counts the pages
	// with unsupported rotations.
	Transform transform.Counter

	state atomic.Int32
}

// New returns a new Engine.  If reg is nil, the bundled fonts are used.
// If log is nil, the standard logger is used.
func New(reg *registry.Registry, log logrus.FieldLogger) *Engine {
	if reg == nil {
		reg = registry.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		Registry: reg,
		Log:      log,
		Limits:   annotation.DefaultLimits,
	}
}

// State returns the state of the current or most recent flatten operation.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Result is the outcome of a successful flatten operation.
type Result struct {
	// Data is the complete output document.
	Data []byte

	// PagesTouched is the number of pages which received new content.
	PagesTouched int

	// Drawn is the number of annotations drawn.
	Drawn int

	// Skipped lists the annotations which were not drawn.
	Skipped []Skip

	// Fallbacks is the number of annotations on pages with a rotation
	// which is not a multiple of 90 degrees.  These annotations are
	// placed as if the page was unrotated.
	Fallbacks int
}

// Skip describes an annotation which was not drawn.
type Skip struct {
	ID   string
	Page int
	Err  error
}

// SkippedBy returns the number of annotations skipped for the given reason.
func (r *Result) SkippedBy(reason error) int {
	n := 0
	for _, s := range r.Skipped {
		if errors.Is(s.Err, reason) {
			n++
		}
	}
	return n
}

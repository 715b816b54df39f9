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

package flatten

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/font"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/registry"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf/pagetree"
)

// lineSpacing is the distance between the baselines of consecutive lines,
// relative to the font size.
const lineSpacing = 1.2

// drawOp is a single annotation, ready to be drawn.
type drawOp struct {
	id    string
	page  int // 0-based
	x, y  float64
	lines []string
	size  float64
	color annotation.Color

	// family is the font family for signatures, and empty for text
	// annotations.
	family string
}

// font returns the font used to draw op.
func (op *drawOp) font(res *registry.Resolver) font.Font {
	if op.family == "" {
		return res.Text()
	}
	return res.Signature(op.family)
}

// plan converts the annotations into draw operations, ordered by page.
// Within a page, the order of anns is kept.  Annotations which cannot be
// drawn are returned as skipped.
func (e *Engine) plan(pages []*pagetree.Page, anns []annotation.Annotation, sigs []annotation.SignatureRecord) ([]*drawOp, []Skip) {
	sorted := slices.Clone(anns)
	slices.SortStableFunc(sorted, func(a, b annotation.Annotation) int {
		return a.GetEnvelope().PageNumber - b.GetEnvelope().PageNumber
	})

	var ops []*drawOp
	var skipped []Skip
	for _, a := range sorted {
		env := a.GetEnvelope()
		skip := func(err error) {
			skipped = append(skipped, Skip{ID: env.ID, Page: env.PageNumber, Err: err})
		}

		if env.PageNumber < 1 || env.PageNumber > len(pages) {
			skip(ErrPageOutOfRange)
			continue
		}
		if pages[env.PageNumber-1].Ref == 0 {
			skip(ErrDirectPage)
			continue
		}

		op := &drawOp{
			id:   env.ID,
			page: env.PageNumber - 1,
			x:    env.X,
			y:    env.Y,
		}
		var text string
		switch a := a.(type) {
		case *annotation.Text:
			text = a.Text
			op.size = e.Limits.Clamp(a.FontSize)
			op.color = a.Color
		case *annotation.Signature:
			sig, ok := annotation.Lookup(sigs, a.SignatureID)
			if !ok {
				skip(ErrDanglingSignature)
				continue
			}
			text = sig.Name
			op.size = a.FontSize(e.Limits)
			op.color = sig.Color
			op.family = sig.FontFamily
		}

		op.lines = splitLines(text)
		if op.lines == nil {
			skip(ErrEmptyText)
			continue
		}
		ops = append(ops, op)
	}
	return ops, skipped
}

// splitLines splits text at line breaks.  If all lines are empty,
// nil is returned.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if line != "" {
			return lines
		}
	}
	return nil
}

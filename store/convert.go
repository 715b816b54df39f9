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

package store

import (
	"fmt"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
)

// RowsFromAnnotations converts annotations into rows for the given document.
func RowsFromAnnotations(documentKey string, anns []annotation.Annotation) []AnnotationRow {
	rows := make([]AnnotationRow, 0, len(anns))
	for _, a := range anns {
		env := a.GetEnvelope()
		row := AnnotationRow{
			ID:          env.ID,
			DocumentKey: documentKey,
			PageNumber:  env.PageNumber,
			Kind:        string(a.Kind()),
			X:           env.X,
			Y:           env.Y,
			Width:       env.Width,
			Height:      env.Height,
		}
		switch a := a.(type) {
		case *annotation.Text:
			row.TextContent = a.Text
			row.FontSize = a.FontSize
			row.Color = a.Color.Hex()
		case *annotation.Signature:
			row.SignatureID = a.SignatureID
		}
		rows = append(rows, row)
	}
	return rows
}

// AnnotationsFromRows converts stored rows back into annotations.
// Rows with an unknown kind or an invalid color give an error.
func AnnotationsFromRows(rows []AnnotationRow) ([]annotation.Annotation, error) {
	res := make([]annotation.Annotation, 0, len(rows))
	for _, row := range rows {
		kind, err := annotation.ParseKind(row.Kind)
		if err != nil {
			return nil, fmt.Errorf("annotation %s: %w", row.ID, err)
		}
		env := annotation.Envelope{
			ID:         row.ID,
			PageNumber: row.PageNumber,
			X:          row.X,
			Y:          row.Y,
			Width:      row.Width,
			Height:     row.Height,
		}
		switch kind {
		case annotation.KindText:
			a := &annotation.Text{
				Envelope: env,
				Text:     row.TextContent,
				FontSize: row.FontSize,
			}
			if err := a.Color.UnmarshalText([]byte(row.Color)); err != nil {
				return nil, fmt.Errorf("annotation %s: %w", row.ID, err)
			}
			res = append(res, a)
		case annotation.KindSignature:
			res = append(res, &annotation.Signature{
				Envelope:    env,
				SignatureID: row.SignatureID,
			})
		}
	}
	return res, nil
}

// SignaturesFromRows converts stored signatures into signature records.
func SignaturesFromRows(rows []SignatureRow) ([]annotation.SignatureRecord, error) {
	res := make([]annotation.SignatureRecord, 0, len(rows))
	for _, row := range rows {
		rec := annotation.SignatureRecord{
			ID:         row.ID,
			Name:       row.Name,
			FontFamily: row.FontFamily,
		}
		if err := rec.Color.UnmarshalText([]byte(row.Color)); err != nil {
			return nil, fmt.Errorf("signature %s: %w", row.ID, err)
		}
		res = append(res, rec)
	}
	return res, nil
}

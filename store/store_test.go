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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
)

func TestConvert(t *testing.T) {
	anns := []annotation.Annotation{
		&annotation.Text{
			Envelope: annotation.Envelope{ID: "a", PageNumber: 1, X: 10, Y: 20, Width: 100, Height: 16},
			Text:     "Hello",
			FontSize: 14,
			Color:    annotation.Color{R: 1},
		},
		&annotation.Signature{
			Envelope:    annotation.Envelope{ID: "b", PageNumber: 2, X: 1, Y: 2},
			SignatureID: "s1",
		},
	}

	rows := RowsFromAnnotations("/tmp/doc.pdf", anns)
	wantRows := []AnnotationRow{
		{ID: "a", DocumentKey: "/tmp/doc.pdf", PageNumber: 1, Kind: "text",
			X: 10, Y: 20, Width: 100, Height: 16,
			TextContent: "Hello", FontSize: 14, Color: "#ff0000"},
		{ID: "b", DocumentKey: "/tmp/doc.pdf", PageNumber: 2, Kind: "signature",
			X: 1, Y: 2, SignatureID: "s1"},
	}
	if d := cmp.Diff(wantRows, rows); d != "" {
		t.Error(d)
	}

	back, err := AnnotationsFromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(anns, back); d != "" {
		t.Error(d)
	}
}

func TestConvertErrors(t *testing.T) {
	_, err := AnnotationsFromRows([]AnnotationRow{{ID: "x", Kind: "highlight"}})
	if !errors.Is(err, annotation.ErrUnknownKind) {
		t.Errorf("unknown kind: got %v", err)
	}
	_, err = AnnotationsFromRows([]AnnotationRow{{ID: "x", Kind: "text", Color: "red"}})
	if err == nil {
		t.Error("invalid color accepted")
	}
	_, err = SignaturesFromRows([]SignatureRow{{ID: "x", Color: "#12"}})
	if err == nil {
		t.Error("invalid signature color accepted")
	}
}

func TestSortSignatures(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []SignatureRow{
		{ID: "c", CreatedAt: t0.Add(time.Hour)},
		{ID: "b", CreatedAt: t0},
		{ID: "a", CreatedAt: t0},
	}
	SortSignatures(rows)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if d := cmp.Diff([]string{"a", "b", "c"}, ids); d != "" {
		t.Error(d)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("load", nil) != nil {
		t.Error("nil error wrapped")
	}
	base := errors.New("connection refused")
	err := Wrap("load", base)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, base) {
		t.Errorf("bad wrapping: %v", err)
	}
	if Wrap("replace", err) != err {
		t.Error("error wrapped twice")
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New(context.Background(), &Conf{Type: "cassandra"})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("unexpected error %v", err)
	}
}

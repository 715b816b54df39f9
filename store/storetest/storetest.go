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

// Package storetest contains tests which every storage backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

// Run runs the backend tests against gw.  Document keys are randomized,
// so that the tests can run against a shared database.
func Run(t *testing.T, gw store.Gateway) {
	t.Run("ReplaceAnnotations", func(t *testing.T) { testReplace(t, gw) })
	t.Run("EmptyKey", func(t *testing.T) { testEmptyKey(t, gw) })
	t.Run("Signatures", func(t *testing.T) { testSignatures(t, gw) })
}

func rows(key string, n int) []store.AnnotationRow {
	var res []store.AnnotationRow
	for i := 0; i < n; i++ {
		row := store.AnnotationRow{
			ID:          uuid.NewString(),
			DocumentKey: key,
			PageNumber:  i%3 + 1,
			X:           float64(10 * i),
			Y:           float64(20 * i),
			Width:       100,
			Height:      16,
		}
		if i%2 == 0 {
			row.Kind = "text"
			row.TextContent = fmt.Sprintf("text %d", i)
			row.FontSize = 14
			row.Color = "#102030"
		} else {
			row.Kind = "signature"
			row.SignatureID = "sig"
		}
		res = append(res, row)
	}
	return res
}

func testReplace(t *testing.T, gw store.Gateway) {
	ctx := context.Background()
	key := "/docs/" + uuid.NewString() + ".pdf"
	other := "/docs/" + uuid.NewString() + ".pdf"

	otherRows := rows(other, 2)
	if err := gw.ReplaceAnnotations(ctx, other, otherRows); err != nil {
		t.Fatal(err)
	}

	first := rows(key, 5)
	if err := gw.ReplaceAnnotations(ctx, key, first); err != nil {
		t.Fatal(err)
	}
	got, err := gw.LoadAnnotations(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(first, got); d != "" {
		t.Error(d)
	}

	second := rows(key, 3)
	if err := gw.ReplaceAnnotations(ctx, key, second); err != nil {
		t.Fatal(err)
	}
	got, err = gw.LoadAnnotations(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(second, got); d != "" {
		t.Error(d)
	}

	got, err = gw.LoadAnnotations(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(otherRows, got); d != "" {
		t.Errorf("other document changed: %s", d)
	}

	if err := gw.ReplaceAnnotations(ctx, key, nil); err != nil {
		t.Fatal(err)
	}
	got, err = gw.LoadAnnotations(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("%d rows left after clearing", len(got))
	}
}

func testEmptyKey(t *testing.T, gw store.Gateway) {
	ctx := context.Background()
	if err := gw.ReplaceAnnotations(ctx, "", rows("", 2)); err != nil {
		t.Fatal(err)
	}
	got, err := gw.LoadAnnotations(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("%d rows for empty key", len(got))
	}
}

func testSignatures(t *testing.T, gw store.Gateway) {
	ctx := context.Background()
	name := "Jane " + uuid.NewString()

	id1, err := gw.SaveSignature(ctx, name, "Go Italic", "#000080")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := gw.SaveSignature(ctx, name+" 2", "Go Bold Italic", "#000000")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("bad IDs %q, %q", id1, id2)
	}

	all, err := gw.LoadSignatures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pos1, pos2 := -1, -1
	for i, row := range all {
		switch row.ID {
		case id1:
			pos1 = i
			if row.Name != name || row.FontFamily != "Go Italic" || row.Color != "#000080" {
				t.Errorf("wrong signature %+v", row)
			}
		case id2:
			pos2 = i
		}
	}
	if pos1 < 0 || pos2 < 0 || pos1 > pos2 {
		t.Errorf("signatures missing or out of order: %d, %d", pos1, pos2)
	}

	for _, id := range []string{id1, id1, id2} {
		if err := gw.DeleteSignature(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	all, err = gw.LoadSignatures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range all {
		if row.ID == id1 || row.ID == id2 {
			t.Errorf("signature %s not deleted", row.ID)
		}
	}
}

// CheckError verifies that err wraps [store.ErrPersistence].
func CheckError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Error("expected an error")
		return
	}
	if !errors.Is(err, store.ErrPersistence) {
		t.Errorf("error %v does not wrap ErrPersistence", err)
	}
}

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

package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/fileio"
	"github.com/opensaas-skeletons/skeleton-office-tools/flatten"
	"github.com/opensaas-skeletons/skeleton-office-tools/internal/testdoc"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
	"github.com/opensaas-skeletons/skeleton-office-tools/store"
	"github.com/opensaas-skeletons/skeleton-office-tools/store/memstore"
)

func setup(t *testing.T) (*Session, *memstore.Store, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db := memstore.New()
	s := New(db, flatten.New(nil, logger), logger)

	dir := t.TempDir()
	path := filepath.Join(dir, "in.pdf")
	doc := testdoc.Build(testdoc.Page{MediaBox: testdoc.Letter, Content: "0 0 m 10 10 l S"})
	err := os.WriteFile(path, doc, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return s, db, path
}

func addText(t *testing.T, s *Session, msg string) annotation.Annotation {
	t.Helper()
	a, err := s.Annotations.Create(annotation.KindText, 1, 100, 100,
		annotation.TextFields{Text: msg})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func checkPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid output: %v", err)
	}
}

func TestSaveAndReopen(t *testing.T) {
	s, db, path := setup(t)
	ctx := context.Background()
	err := s.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	key, _ := filepath.Abs(path)
	if s.DocumentKey() != key || s.Name() != "in.pdf" {
		t.Errorf("unexpected document %q %q", s.Name(), s.DocumentKey())
	}

	a := addText(t, s, "hello")
	out := filepath.Join(filepath.Dir(path), "out.pdf")
	res, err := s.Save(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drawn != 1 || res.PagesTouched != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	checkPDF(t, out)
	if s.Pending() != nil {
		t.Error("output still pending after successful write")
	}

	rows, err := db.LoadAnnotations(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != a.GetEnvelope().ID {
		t.Errorf("unexpected rows %v", rows)
	}

	logger, _ := test.NewNullLogger()
	s2 := New(db, flatten.New(nil, logger), logger)
	err = s2.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(s.Annotations.All(), s2.Annotations.All()); d != "" {
		t.Errorf("annotations differ after reopening (-want +got):\n%s", d)
	}
}

func TestBusy(t *testing.T) {
	s, _, path := setup(t)
	err := s.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	s.busy.Store(true)
	_, err = s.Save(context.Background(), path)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("unexpected error %v", err)
	}
	if !errors.Is(s.RetryWrite(path), ErrBusy) {
		t.Error("retry not rejected")
	}

	s.busy.Store(false)
	_, err = s.Save(context.Background(), path)
	if err != nil {
		t.Error(err)
	}
	if s.Busy() {
		t.Error("busy flag not cleared")
	}
}

func TestNoDocument(t *testing.T) {
	s, _, path := setup(t)
	_, err := s.Save(context.Background(), path)
	if !errors.Is(err, ErrNoDocument) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPersistenceFailure(t *testing.T) {
	s, db, path := setup(t)
	ctx := context.Background()
	err := s.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	addText(t, s, "one")
	addText(t, s, "two")
	before := s.Annotations.All()

	db.Fail = errors.New("connection lost")
	out := filepath.Join(filepath.Dir(path), "out.pdf")
	_, err = s.Save(ctx, out)
	if !errors.Is(err, store.ErrPersistence) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("output written despite persistence failure")
	}
	if d := cmp.Diff(before, s.Annotations.All()); d != "" {
		t.Errorf("working set modified (-want +got):\n%s", d)
	}
}

func TestWriteFailure(t *testing.T) {
	s, _, path := setup(t)
	ctx := context.Background()
	err := s.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	addText(t, s, "hello")

	dir := filepath.Dir(path)
	_, err = s.Save(ctx, filepath.Join(dir, "missing", "out.pdf"))
	if !errors.Is(err, fileio.ErrWrite) {
		t.Fatalf("unexpected error %v", err)
	}
	pending := s.Pending()
	if pending == nil {
		t.Fatal("no pending output")
	}

	out := filepath.Join(dir, "out.pdf")
	err = s.RetryWrite(out)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pending) {
		t.Error("retry wrote different data")
	}
	if !errors.Is(s.RetryWrite(out), ErrNothingPending) {
		t.Error("second retry not rejected")
	}
}

func TestSignatures(t *testing.T) {
	s, _, path := setup(t)
	ctx := context.Background()
	err := s.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	blue := annotation.Color{B: 1}
	rec, err := s.CreateSignature(ctx, "  Jane Doe ", "Go Italic", blue)
	if err != nil {
		t.Fatal(err)
	}
	want := []annotation.SignatureRecord{*rec}
	if d := cmp.Diff(want, s.Signatures()); d != "" {
		t.Errorf("unexpected signatures (-want +got):\n%s", d)
	}
	if rec.Name != "Jane Doe" {
		t.Errorf("name not trimmed: %q", rec.Name)
	}

	_, err = s.Annotations.Create(annotation.KindSignature, 1, 50, 50,
		annotation.SignatureFields{SignatureID: rec.ID, Height: 30})
	if err != nil {
		t.Fatal(err)
	}
	addText(t, s, "note")
	if n := len(s.Visible()); n != 2 {
		t.Errorf("%d visible annotations, expected 2", n)
	}

	err = s.DeleteSignature(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Signatures()) != 0 {
		t.Error("signature not deleted")
	}
	if n := len(s.Visible()); n != 1 {
		t.Errorf("%d visible annotations, expected 1", n)
	}

	res, err := s.Save(ctx, filepath.Join(filepath.Dir(path), "out.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if res.SkippedBy(flatten.ErrDanglingSignature) != 1 || res.Drawn != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	_, err = s.CreateSignature(ctx, " ", "Go Italic", blue)
	if err == nil {
		t.Error("empty name accepted")
	}
}

func TestOpenBytes(t *testing.T) {
	s, db, _ := setup(t)
	ctx := context.Background()
	doc := testdoc.Build(testdoc.Page{MediaBox: testdoc.Letter})
	s.OpenBytes("scan.pdf", doc)
	if s.DocumentKey() != "" {
		t.Errorf("unexpected key %q", s.DocumentKey())
	}
	addText(t, s, "hello")

	out := filepath.Join(t.TempDir(), "scan.pdf")
	_, err := s.Save(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	checkPDF(t, out)

	rows, err := db.LoadAnnotations(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("annotations stored for unsaved document: %v", rows)
	}

	s.Close()
	if s.Annotations.Len() != 0 || s.Name() != "" {
		t.Error("session not cleared")
	}
}

func TestOpenFailureKeepsDocument(t *testing.T) {
	s, db, path := setup(t)
	ctx := context.Background()
	err := s.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	addText(t, s, "keep me")

	db.Fail = errors.New("offline")
	err = s.Open(ctx, path)
	if !errors.Is(err, store.ErrPersistence) {
		t.Errorf("unexpected error %v", err)
	}
	if s.Annotations.Len() != 1 {
		t.Error("working set lost")
	}

	err = s.Open(ctx, filepath.Join(filepath.Dir(path), "missing.pdf"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected error %v", err)
	}
}

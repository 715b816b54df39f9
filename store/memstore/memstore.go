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

// Package memstore implements an in-memory [store.Gateway].
//
// The store is used for tests and when no database is configured.
// All data is lost when the process exits.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

func init() {
	store.RegisterFactory("memory", func(context.Context, *store.Conf) (store.Client, error) {
		return New(), nil
	})
}

// Store is an in-memory gateway.  A Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	annotations map[string][]store.AnnotationRow
	signatures  []store.SignatureRow

	// Fail, if set, is returned (wrapped) by all operations.
	Fail error
}

var _ store.Client = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		annotations: make(map[string][]store.AnnotationRow),
	}
}

// LoadAnnotations implements the [store.Gateway] interface.
func (s *Store) LoadAnnotations(ctx context.Context, documentKey string) ([]store.AnnotationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "load annotations"); err != nil {
		return nil, err
	}
	if documentKey == "" {
		return nil, nil
	}
	return slices.Clone(s.annotations[documentKey]), nil
}

// ReplaceAnnotations implements the [store.Gateway] interface.
func (s *Store) ReplaceAnnotations(ctx context.Context, documentKey string, rows []store.AnnotationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "replace annotations"); err != nil {
		return err
	}
	if documentKey == "" {
		return nil
	}
	if len(rows) == 0 {
		delete(s.annotations, documentKey)
		return nil
	}
	s.annotations[documentKey] = slices.Clone(rows)
	return nil
}

// LoadSignatures implements the [store.Gateway] interface.
func (s *Store) LoadSignatures(ctx context.Context) ([]store.SignatureRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "load signatures"); err != nil {
		return nil, err
	}
	return slices.Clone(s.signatures), nil
}

// SaveSignature implements the [store.Gateway] interface.
func (s *Store) SaveSignature(ctx context.Context, name, fontFamily, color string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "save signature"); err != nil {
		return "", err
	}
	row := store.SignatureRow{
		ID:         uuid.NewString(),
		Name:       name,
		FontFamily: fontFamily,
		Color:      color,
		CreatedAt:  time.Now(),
	}
	s.signatures = append(s.signatures, row)
	return row.ID, nil
}

// DeleteSignature implements the [store.Gateway] interface.
func (s *Store) DeleteSignature(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "delete signature"); err != nil {
		return err
	}
	s.signatures = slices.DeleteFunc(s.signatures, func(row store.SignatureRow) bool {
		return row.ID == id
	})
	return nil
}

// Close implements the [store.Client] interface.
func (s *Store) Close() error {
	return nil
}

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap(op, err)
	}
	return store.Wrap(op, s.Fail)
}

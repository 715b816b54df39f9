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

// Package session manages the editing of a single document.
//
// A [Session] holds the bytes of the open document, the annotations the
// user has placed on it, and the list of known signatures.  Saving a
// session flattens the annotations into the document, records the
// annotations in the store and writes the result to disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/fileio"
	"github.com/opensaas-skeletons/skeleton-office-tools/flatten"
	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

var (
	// ErrBusy is returned by [Session.Save] and [Session.RetryWrite]
	// while another save is in progress.
	ErrBusy = errors.New("save already in progress")

	// ErrNoDocument is returned if no document is open.
	ErrNoDocument = errors.New("no document open")

	// ErrNothingPending is returned by [Session.RetryWrite] if there is
	// no output left over from a failed write.
	ErrNothingPending = errors.New("no pending output")

	errEmptyName = errors.New("empty signature name")
)

// Session is the editing state of one document.
// The methods of a Session can be called concurrently.
type Session struct {
	// Annotations holds the annotations of the open document.
	Annotations *annotation.WorkingSet

	store  store.Gateway
	engine *flatten.Engine
	log    logrus.FieldLogger

	busy atomic.Bool

	mu      sync.Mutex
	name    string
	key     string
	source  []byte
	pending []byte
	sigs    []annotation.SignatureRecord
}

// New creates a new session without an open document.
// If log is nil, the standard logger is used.
func New(gw store.Gateway, engine *flatten.Engine, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		Annotations: annotation.NewWorkingSet(engine.Limits),
		store:       gw,
		engine:      engine,
		log:         log,
	}
}

// Open reads a document from disk, together with the annotations stored
// for it and the list of signatures.  If anything fails, the previously
// open document is kept.
func (s *Session) Open(ctx context.Context, path string) error {
	data, err := fileio.ReadFile(path)
	if err != nil {
		return err
	}
	key, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	rows, err := s.store.LoadAnnotations(ctx, key)
	if err != nil {
		return err
	}
	anns, err := store.AnnotationsFromRows(rows)
	if err != nil {
		return store.Wrap("load annotations", err)
	}
	sigs, err := s.loadSignatures(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = filepath.Base(path)
	s.key = key
	s.source = data
	s.pending = nil
	s.sigs = sigs
	s.Annotations.Replace(anns)

	s.log.WithFields(logrus.Fields{
		"document":    key,
		"annotations": len(anns),
	}).Debug("document opened")
	return nil
}

// OpenBytes opens a document which is held in memory.  Such a document has
// no document key, so annotations are not loaded from or saved to the
// store.
func (s *Session) OpenBytes(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.key = ""
	s.source = data
	s.pending = nil
	s.Annotations.Clear()
}

// Name returns the name of the open document.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// DocumentKey returns the key under which the annotations of the open
// document are stored.  Documents opened with [Session.OpenBytes] have
// an empty key.
func (s *Session) DocumentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Busy reports whether a save is in progress.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Save flattens the annotations into the document and writes the result
// to target.
//
// The annotations are stored before the file is written.  If storing
// fails, nothing is written.  If writing fails, the flattened document is
// kept and can be written using [Session.RetryWrite].
func (s *Session) Save(ctx context.Context, target string) (*flatten.Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	source := s.source
	key := s.key
	sigs := s.sigs
	s.mu.Unlock()
	if source == nil {
		return nil, ErrNoDocument
	}
	anns := s.Annotations.All()

	res, err := s.engine.Flatten(ctx, source, anns, sigs)
	if err != nil {
		return nil, err
	}

	err = s.store.ReplaceAnnotations(ctx, key, store.RowsFromAnnotations(key, anns))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pending = res.Data
	s.mu.Unlock()

	err = s.write(target)
	if err != nil {
		return res, err
	}

	s.log.WithFields(logrus.Fields{
		"target":  target,
		"pages":   res.PagesTouched,
		"drawn":   res.Drawn,
		"skipped": len(res.Skipped),
	}).Info("document saved")
	return res, nil
}

// Pending returns the output of the last save, if writing it failed.
func (s *Session) Pending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// RetryWrite writes the output of a failed save to target.  The
// annotations are not flattened or stored again.
func (s *Session) RetryWrite(target string) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return s.write(target)
}

func (s *Session) write(target string) error {
	s.mu.Lock()
	data := s.pending
	s.mu.Unlock()
	if data == nil {
		return ErrNothingPending
	}

	err := fileio.WriteFileAtomic(target, data)
	if err != nil {
		s.log.WithError(err).WithField("target", target).Warn("cannot write document")
		return err
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// Signatures returns the known signatures, oldest first.
func (s *Session) Signatures() []annotation.SignatureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]annotation.SignatureRecord(nil), s.sigs...)
}

// Visible returns the annotations which are shown to the user.
// Placements of deleted signatures are not included.
func (s *Session) Visible() []annotation.Annotation {
	return s.Annotations.Visible(s.Signatures())
}

// CreateSignature stores a new signature.
func (s *Session) CreateSignature(ctx context.Context, name, fontFamily string, color annotation.Color) (*annotation.SignatureRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errEmptyName
	}
	id, err := s.store.SaveSignature(ctx, name, fontFamily, color.Hex())
	if err != nil {
		return nil, err
	}
	err = s.RefreshSignatures(ctx)
	if err != nil {
		return nil, err
	}
	return &annotation.SignatureRecord{
		ID:         id,
		Name:       name,
		FontFamily: fontFamily,
		Color:      color,
	}, nil
}

// DeleteSignature removes a signature.  Placements of the signature stay
// in the working set, but are no longer shown or drawn.
func (s *Session) DeleteSignature(ctx context.Context, id string) error {
	err := s.store.DeleteSignature(ctx, id)
	if err != nil {
		return err
	}
	return s.RefreshSignatures(ctx)
}

// RefreshSignatures reloads the list of signatures from the store.
func (s *Session) RefreshSignatures(ctx context.Context) error {
	sigs, err := s.loadSignatures(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sigs = sigs
	s.mu.Unlock()
	return nil
}

func (s *Session) loadSignatures(ctx context.Context) ([]annotation.SignatureRecord, error) {
	rows, err := s.store.LoadSignatures(ctx)
	if err != nil {
		return nil, err
	}
	sigs, err := store.SignaturesFromRows(rows)
	if err != nil {
		return nil, store.Wrap("load signatures", fmt.Errorf("invalid signature: %w", err))
	}
	return sigs, nil
}

// Close releases the open document.  Signatures are kept.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = ""
	s.key = ""
	s.source = nil
	s.pending = nil
	s.Annotations.Clear()
}

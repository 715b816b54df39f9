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

// Package store defines how annotations and signatures are persisted.
//
// A [Gateway] stores the annotations of each document under a document
// key (normally the path of the document), and a global list of
// signatures.  Annotations are always replaced as a whole, when the user
// saves a document.
//
// Implementations live in the sub-packages.  They register themselves
// with [RegisterFactory], so that a [Client] can be created from a
// [Conf] using [New].
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Gateway is the interface implemented by the storage backends.
//
// An empty document key denotes a document which has never been saved.
// For such documents, LoadAnnotations returns no rows and
// ReplaceAnnotations does nothing.
//
// All errors returned by a Gateway wrap [ErrPersistence].
type Gateway interface {
	// LoadAnnotations returns the annotations stored for a document,
	// in the order they were stored.
	LoadAnnotations(ctx context.Context, documentKey string) ([]AnnotationRow, error)

	// ReplaceAnnotations replaces all annotations of a document.
	// Annotations of other documents are not affected.
	ReplaceAnnotations(ctx context.Context, documentKey string, rows []AnnotationRow) error

	// LoadSignatures returns all signatures, oldest first.
	LoadSignatures(ctx context.Context) ([]SignatureRow, error)

	// SaveSignature stores a new signature and returns its ID.
	SaveSignature(ctx context.Context, name, fontFamily, color string) (string, error)

	// DeleteSignature removes a signature.  Deleting a signature which
	// does not exist is not an error.
	DeleteSignature(ctx context.Context, id string) error
}

// Client is a Gateway which holds resources, like a connection pool.
type Client interface {
	Gateway
	Close() error
}

// AnnotationRow is the stored form of an annotation.
type AnnotationRow struct {
	ID          string  `json:"id"`
	DocumentKey string  `json:"document_key"`
	PageNumber  int     `json:"page_number"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	TextContent string  `json:"text_content,omitempty"`
	FontSize    float64 `json:"font_size,omitempty"`
	Color       string  `json:"color,omitempty"`
	SignatureID string  `json:"signature_id,omitempty"`
}

// SignatureRow is the stored form of a signature.
type SignatureRow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FontFamily string    `json:"font_family"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"created_at"`
}

// SortSignatures orders signatures by creation time.  Signatures created
// at the same time are ordered by ID.
func SortSignatures(rows []SignatureRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}

// ErrPersistence is wrapped by all errors returned from a [Gateway].
var ErrPersistence = errors.New("persistence failure")

// Error reports a failed storage operation.
type Error struct {
	Op  string
	Err error
}

func (err *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", err.Op, err.Err)
}

func (err *Error) Unwrap() []error {
	return []error{ErrPersistence, err.Err}
}

// Wrap wraps err as an [*Error] for the given operation.
// If err is nil, nil is returned.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Conf describes the storage backend to use.
type Conf struct {
	Type string `json:"type"` // memory, pgsql, mysql or redis
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	PW   string `json:"pw"`
	DB   string `json:"db"`
	TZ   string `json:"tz"`  // connection time zone
	DSN  string `json:"dsn"` // overrides the connection parameters above

	// Addr is the "host:port" address of a Redis server.  If this is
	// empty, Host and Port are used.
	Addr string `json:"addr"`

	// RedisDB selects the Redis database.
	RedisDB int `json:"redis_db"`
}

// Factory creates a Client from a configuration.
type Factory func(ctx context.Context, conf *Conf) (Client, error)

var (
	factoryMu sync.Mutex
	factories = map[string]Factory{}
)

// RegisterFactory makes a storage backend available under the given type.
func RegisterFactory(storeType string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[storeType] = f
}

// New creates a Client for the backend given by conf.Type.
// The backend package must have been imported.
func New(ctx context.Context, conf *Conf) (Client, error) {
	factoryMu.Lock()
	f, ok := factories[conf.Type]
	factoryMu.Unlock()
	if !ok {
		return nil, Wrap("open", fmt.Errorf("unsupported store type %q", conf.Type))
	}
	c, err := f(ctx, conf)
	if err != nil {
		return nil, Wrap("open", err)
	}
	return c, nil
}

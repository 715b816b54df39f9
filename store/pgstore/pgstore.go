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

// Package pgstore implements a [store.Gateway] backed by PostgreSQL.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

func init() {
	store.RegisterFactory("pgsql", func(ctx context.Context, conf *store.Conf) (store.Client, error) {
		s, err := Open(ctx, conf, nil)
		if err != nil {
			return nil, err
		}
		err = s.EnsureSchema(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS annotations (
	document_key TEXT NOT NULL,
	seq INTEGER NOT NULL,
	id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	kind TEXT NOT NULL,
	x DOUBLE PRECISION NOT NULL,
	y DOUBLE PRECISION NOT NULL,
	width DOUBLE PRECISION NOT NULL,
	height DOUBLE PRECISION NOT NULL,
	text_content TEXT NOT NULL DEFAULT '',
	font_size DOUBLE PRECISION NOT NULL DEFAULT 0,
	color TEXT NOT NULL DEFAULT '',
	signature_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_key, id)
);
CREATE TABLE IF NOT EXISTS signatures (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	font_family TEXT NOT NULL,
	color TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

var annotationColumns = []string{
	"document_key", "seq", "id", "page_number", "kind",
	"x", "y", "width", "height",
	"text_content", "font_size", "color", "signature_id",
}

// Store is a gateway backed by a PostgreSQL connection pool.
type Store struct {
	Pool *pgxpool.Pool
	log  logrus.FieldLogger
}

var _ store.Client = (*Store)(nil)

// DSN returns the connection string for conf.
func DSN(conf *store.Conf) string {
	if conf.DSN != "" {
		return conf.DSN
	}
	tz := conf.TZ
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		conf.Host, conf.Port, conf.User, conf.PW, conf.DB, tz,
	)
}

// Open connects to the database described by conf.
func Open(ctx context.Context, conf *store.Conf, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	config, err := pgxpool.ParseConfig(DSN(conf))
	if err != nil {
		return nil, store.Wrap("parse config", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 3 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, store.Wrap("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, store.Wrap("ping", err)
	}
	log.WithField("store", "pgsql").Info("database connection established")
	return &Store{Pool: pool, log: log}, nil
}

// EnsureSchema creates the tables, if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return store.Wrap("create schema", err)
}

// Close implements the [store.Client] interface.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

// LoadAnnotations implements the [store.Gateway] interface.
func (s *Store) LoadAnnotations(ctx context.Context, documentKey string) ([]store.AnnotationRow, error) {
	if documentKey == "" {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, document_key, page_number, kind, x, y, width, height,
			text_content, font_size, color, signature_id
		FROM annotations WHERE document_key = $1 ORDER BY seq`, documentKey)
	if err != nil {
		return nil, store.Wrap("load annotations", err)
	}
	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.AnnotationRow, error) {
		var a store.AnnotationRow
		err := row.Scan(&a.ID, &a.DocumentKey, &a.PageNumber, &a.Kind,
			&a.X, &a.Y, &a.Width, &a.Height,
			&a.TextContent, &a.FontSize, &a.Color, &a.SignatureID)
		return a, err
	})
	if err != nil {
		return nil, store.Wrap("load annotations", err)
	}
	return res, nil
}

// ReplaceAnnotations implements the [store.Gateway] interface.
// The old rows are deleted and the new rows are copied in, in a single
// transaction.
func (s *Store) ReplaceAnnotations(ctx context.Context, documentKey string, rows []store.AnnotationRow) error {
	if documentKey == "" {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM annotations WHERE document_key = $1`, documentKey)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"annotations"}, annotationColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				a := rows[i]
				return []any{
					documentKey, i, a.ID, a.PageNumber, a.Kind,
					a.X, a.Y, a.Width, a.Height,
					a.TextContent, a.FontSize, a.Color, a.SignatureID,
				}, nil
			}))
		return err
	})
	return store.Wrap("replace annotations", err)
}

// LoadSignatures implements the [store.Gateway] interface.
func (s *Store) LoadSignatures(ctx context.Context) ([]store.SignatureRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, font_family, color, created_at
		FROM signatures ORDER BY seq`)
	if err != nil {
		return nil, store.Wrap("load signatures", err)
	}
	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SignatureRow, error) {
		var sig store.SignatureRow
		err := row.Scan(&sig.ID, &sig.Name, &sig.FontFamily, &sig.Color, &sig.CreatedAt)
		return sig, err
	})
	if err != nil {
		return nil, store.Wrap("load signatures", err)
	}
	return res, nil
}

// SaveSignature implements the [store.Gateway] interface.
func (s *Store) SaveSignature(ctx context.Context, name, fontFamily, color string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO signatures (id, name, font_family, color, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, name, fontFamily, color, time.Now())
	if err != nil {
		return "", store.Wrap("save signature", err)
	}
	return id, nil
}

// DeleteSignature implements the [store.Gateway] interface.
func (s *Store) DeleteSignature(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM signatures WHERE id = $1`, id)
	return store.Wrap("delete signature", err)
}

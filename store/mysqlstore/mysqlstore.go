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

// Package mysqlstore implements a [store.Gateway] backed by MySQL or
// MariaDB.
package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

func init() {
	store.RegisterFactory("mysql", func(ctx context.Context, conf *store.Conf) (store.Client, error) {
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

var schema = []string{`
CREATE TABLE IF NOT EXISTS annotations (
	document_key VARCHAR(512) NOT NULL,
	seq INT NOT NULL,
	id VARCHAR(64) NOT NULL,
	page_number INT NOT NULL,
	kind VARCHAR(16) NOT NULL,
	x DOUBLE NOT NULL,
	y DOUBLE NOT NULL,
	width DOUBLE NOT NULL,
	height DOUBLE NOT NULL,
	text_content TEXT NOT NULL,
	font_size DOUBLE NOT NULL DEFAULT 0,
	color VARCHAR(7) NOT NULL DEFAULT '',
	signature_id VARCHAR(64) NOT NULL DEFAULT '',
	PRIMARY KEY (document_key, id)
)`, `
CREATE TABLE IF NOT EXISTS signatures (
	seq BIGINT NOT NULL AUTO_INCREMENT,
	id VARCHAR(64) NOT NULL,
	name TEXT NOT NULL,
	font_family VARCHAR(255) NOT NULL,
	color VARCHAR(7) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	PRIMARY KEY (seq),
	UNIQUE KEY (id)
)`,
}

// Store is a gateway backed by a MySQL database.
type Store struct {
	DB  *sql.DB
	log logrus.FieldLogger
}

var _ store.Client = (*Store)(nil)

// Config returns the driver configuration for conf.
func Config(conf *store.Conf) (*mysql.Config, error) {
	var cfg *mysql.Config
	if conf.DSN != "" {
		var err error
		cfg, err = mysql.ParseDSN(conf.DSN)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = mysql.NewConfig()
		cfg.User = conf.User
		cfg.Passwd = conf.PW
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		cfg.DBName = conf.DB
		if conf.TZ != "" {
			loc, err := time.LoadLocation(conf.TZ)
			if err != nil {
				return nil, err
			}
			cfg.Loc = loc
		}
	}
	cfg.ParseTime = true
	return cfg, nil
}

// Open connects to the database described by conf.
func Open(ctx context.Context, conf *store.Conf, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg, err := Config(conf)
	if err != nil {
		return nil, store.Wrap("parse config", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, store.Wrap("connect", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, store.Wrap("ping", err)
	}
	log.WithField("store", "mysql").Info("database connection established")
	return &Store{DB: db, log: log}, nil
}

// EnsureSchema creates the tables, if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return store.Wrap("create schema", err)
		}
	}
	return nil
}

// Close implements the [store.Client] interface.
func (s *Store) Close() error {
	return s.DB.Close()
}

// LoadAnnotations implements the [store.Gateway] interface.
func (s *Store) LoadAnnotations(ctx context.Context, documentKey string) ([]store.AnnotationRow, error) {
	if documentKey == "" {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, document_key, page_number, kind, x, y, width, height,
			text_content, font_size, color, signature_id
		FROM annotations WHERE document_key = ? ORDER BY seq`, documentKey)
	if err != nil {
		return nil, store.Wrap("load annotations", err)
	}
	defer rows.Close()

	var res []store.AnnotationRow
	for rows.Next() {
		var a store.AnnotationRow
		err := rows.Scan(&a.ID, &a.DocumentKey, &a.PageNumber, &a.Kind,
			&a.X, &a.Y, &a.Width, &a.Height,
			&a.TextContent, &a.FontSize, &a.Color, &a.SignatureID)
		if err != nil {
			return nil, store.Wrap("load annotations", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("load annotations", err)
	}
	return res, nil
}

// ReplaceAnnotations implements the [store.Gateway] interface.
// The old rows are deleted and the new rows are inserted in a single
// transaction.
func (s *Store) ReplaceAnnotations(ctx context.Context, documentKey string, rows []store.AnnotationRow) error {
	if documentKey == "" {
		return nil
	}
	return store.Wrap("replace annotations", s.replace(ctx, documentKey, rows))
}

func (s *Store) replace(ctx context.Context, documentKey string, rows []store.AnnotationRow) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM annotations WHERE document_key = ?`, documentKey)
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO annotations (document_key, seq, id, page_number, kind,
				x, y, width, height, text_content, font_size, color, signature_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, a := range rows {
			_, err = stmt.ExecContext(ctx, documentKey, i, a.ID, a.PageNumber, a.Kind,
				a.X, a.Y, a.Width, a.Height,
				a.TextContent, a.FontSize, a.Color, a.SignatureID)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadSignatures implements the [store.Gateway] interface.
func (s *Store) LoadSignatures(ctx context.Context) ([]store.SignatureRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, font_family, color, created_at
		FROM signatures ORDER BY seq`)
	if err != nil {
		return nil, store.Wrap("load signatures", err)
	}
	defer rows.Close()

	var res []store.SignatureRow
	for rows.Next() {
		var sig store.SignatureRow
		err := rows.Scan(&sig.ID, &sig.Name, &sig.FontFamily, &sig.Color, &sig.CreatedAt)
		if err != nil {
			return nil, store.Wrap("load signatures", err)
		}
		res = append(res, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("load signatures", err)
	}
	return res, nil
}

// SaveSignature implements the [store.Gateway] interface.
func (s *Store) SaveSignature(ctx context.Context, name, fontFamily, color string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO signatures (id, name, font_family, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, name, fontFamily, color, time.Now())
	if err != nil {
		return "", store.Wrap("save signature", err)
	}
	return id, nil
}

// DeleteSignature implements the [store.Gateway] interface.
func (s *Store) DeleteSignature(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM signatures WHERE id = ?`, id)
	return store.Wrap("delete signature", err)
}

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

// Package redisstore implements a [store.Gateway] backed by Redis.
//
// The annotations of a document are stored as a JSON list under the key
// "<prefix>annotations:<document key>".  Signatures are stored as JSON
// values in the hash "<prefix>signatures", and their order is kept in
// the sorted set "<prefix>signatures:order".
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

func init() {
	store.RegisterFactory("redis", func(ctx context.Context, conf *store.Conf) (store.Client, error) {
		return Open(ctx, conf, nil)
	})
}

// DefaultPrefix is prepended to all keys.
const DefaultPrefix = "office-tools:"

// Store is a gateway backed by a Redis server.
type Store struct {
	Client *redis.Client

	// Prefix is prepended to all keys.
	Prefix string

	log logrus.FieldLogger
}

var _ store.Client = (*Store)(nil)

// Options returns the client options for conf.
func Options(conf *store.Conf) *redis.Options {
	addr := conf.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", conf.Host, conf.Port)
	}
	return &redis.Options{
		Addr:     addr,
		Username: conf.User,
		Password: conf.PW,
		DB:       conf.RedisDB,
	}
}

// Open connects to the Redis server described by conf.
func Open(ctx context.Context, conf *store.Conf, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := redis.NewClient(Options(conf))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, store.Wrap("ping", err)
	}
	log.WithField("store", "redis").Info("redis connection established")
	return &Store{Client: client, Prefix: DefaultPrefix, log: log}, nil
}

// Close implements the [store.Client] interface.
func (s *Store) Close() error {
	return s.Client.Close()
}

func (s *Store) annotationKey(documentKey string) string {
	return s.Prefix + "annotations:" + documentKey
}

func (s *Store) signatureKey() string {
	return s.Prefix + "signatures"
}

func (s *Store) orderKey() string {
	return s.Prefix + "signatures:order"
}

func (s *Store) seqKey() string {
	return s.Prefix + "signatures:seq"
}

// LoadAnnotations implements the [store.Gateway] interface.
func (s *Store) LoadAnnotations(ctx context.Context, documentKey string) ([]store.AnnotationRow, error) {
	if documentKey == "" {
		return nil, nil
	}
	data, err := s.Client.Get(ctx, s.annotationKey(documentKey)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, store.Wrap("load annotations", err)
	}

	var rows []store.AnnotationRow
	err = json.Unmarshal(data, &rows)
	if err != nil {
		return nil, store.Wrap("load annotations", err)
	}
	return rows, nil
}

// ReplaceAnnotations implements the [store.Gateway] interface.
// The old list is replaced in a MULTI/EXEC transaction.
func (s *Store) ReplaceAnnotations(ctx context.Context, documentKey string, rows []store.AnnotationRow) error {
	if documentKey == "" {
		return nil
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return store.Wrap("replace annotations", err)
	}
	key := s.annotationKey(documentKey)
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(rows) > 0 {
			pipe.Set(ctx, key, data, 0)
		}
		return nil
	})
	return store.Wrap("replace annotations", err)
}

// LoadSignatures implements the [store.Gateway] interface.
func (s *Store) LoadSignatures(ctx context.Context) ([]store.SignatureRow, error) {
	ids, err := s.Client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, store.Wrap("load signatures", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.Client.HMGet(ctx, s.signatureKey(), ids...).Result()
	if err != nil {
		return nil, store.Wrap("load signatures", err)
	}

	res := make([]store.SignatureRow, 0, len(vals))
	for i, val := range vals {
		str, ok := val.(string)
		if !ok {
			// deleted concurrently
			continue
		}
		var row store.SignatureRow
		if err := json.Unmarshal([]byte(str), &row); err != nil {
			return nil, store.Wrap("load signatures", fmt.Errorf("signature %s: %w", ids[i], err))
		}
		res = append(res, row)
	}
	return res, nil
}

// SaveSignature implements the [store.Gateway] interface.
func (s *Store) SaveSignature(ctx context.Context, name, fontFamily, color string) (string, error) {
	row := store.SignatureRow{
		ID:         uuid.NewString(),
		Name:       name,
		FontFamily: fontFamily,
		Color:      color,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return "", store.Wrap("save signature", err)
	}

	seq, err := s.Client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return "", store.Wrap("save signature", err)
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.signatureKey(), row.ID, data)
		pipe.ZAdd(ctx, s.orderKey(), redis.Z{Score: float64(seq), Member: row.ID})
		return nil
	})
	if err != nil {
		return "", store.Wrap("save signature", err)
	}
	return row.ID, nil
}

// DeleteSignature implements the [store.Gateway] interface.
func (s *Store) DeleteSignature(ctx context.Context, id string) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.signatureKey(), id)
		pipe.ZRem(ctx, s.orderKey(), id)
		return nil
	})
	return store.Wrap("delete signature", err)
}

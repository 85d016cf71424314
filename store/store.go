// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store provides the default on-disk persistence adapters the
// Peer Manager calls through its host-provided saveBlocks/savePeers
// hooks (spec.md §6), plus the wallet seed file spvwalletd keeps. It is backed by
// goleveldb, the storage engine the teacher's database package wires up.
package store

import (
	"encoding/json"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// Store is a small key-value wrapper around a leveldb handle, used to
// persist serialized headers, peer addresses, and wallet state between
// runs.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) the leveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening store at %s", dir)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutJSON marshals v and stores it under key.
func (s *Store) PutJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshaling value")
	}
	return s.db.Put([]byte(key), b, nil)
}

// GetJSON loads the value stored under key into v.
func (s *Store) GetJSON(key string, v interface{}) error {
	b, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "reading value")
	}
	return json.Unmarshal(b, v)
}

// Delete removes key, if present.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

// IteratePrefix calls fn for every key with the given prefix, in key
// order, stopping early if fn returns false.
func (s *Store) IteratePrefix(prefix string, fn func(key string, value []byte) bool) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for ok := iter.Seek([]byte(prefix)); ok; ok = iter.Next() {
		key := string(iter.Key())
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			break
		}
		if !fn(key, iter.Value()) {
			break
		}
	}
	return iter.Error()
}

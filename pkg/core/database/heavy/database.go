// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package heavy

import (
	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Durable commits: a Put must survive a process crash before the commit is
// considered successful, so fsync stays on.
var writeOptions = &opt.WriteOptions{Sync: true}

// DB is a LevelDB-backed implementation of database.DB.
type DB struct {
	storage *leveldb.DB
	path    string
}

// NewDatabase opens (or creates) a LevelDB store at path, recovering a
// corrupted manifest when possible.
func NewDatabase(path string) (*DB, error) {
	storage, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		storage, err = leveldb.RecoverFile(path, nil)
	}

	if err != nil {
		return nil, err
	}

	return &DB{storage: storage, path: path}, nil
}

// Get fetches the value for a key.
func (db *DB) Get(key []byte) ([]byte, error) {
	value, err := db.storage.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, database.ErrKeyNotFound
	}

	return value, err
}

// Put sets the value for a key, synced to disk before returning.
func (db *DB) Put(key, value []byte) error {
	return db.storage.Put(key, value, writeOptions)
}

// Delete removes a key.
func (db *DB) Delete(key []byte) error {
	return db.storage.Delete(key, writeOptions)
}

// IteratePrefix walks all entries under a key prefix.
func (db *DB) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	iter := db.storage.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)

		if !fn(key, value) {
			break
		}
	}

	return iter.Error()
}

// Close releases the LevelDB handle.
func (db *DB) Close() error {
	return db.storage.Close()
}

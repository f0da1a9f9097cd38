// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

// Package lite provides a memory-only database.DB, suited to tests and
// ephemeral nodes. Data does not survive a restart.
package lite

import (
	"bytes"
	"sort"
	"sync"

	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	log "github.com/sirupsen/logrus"
)

// DriverName is the unique identifier for the lite driver.
const DriverName = "lite"

type driver struct{}

func (d *driver) Open(path string) (database.DB, error) {
	return NewDatabase(), nil
}

func (d *driver) Name() string {
	return DriverName
}

func init() {
	if err := database.Register(&driver{}); err != nil {
		log.Panic(err)
	}
}

// DB is an in-memory implementation of database.DB.
type DB struct {
	lock sync.RWMutex
	data map[string][]byte
}

// NewDatabase returns an empty in-memory store.
func NewDatabase() *DB {
	return &DB{data: make(map[string][]byte)}
}

// Get fetches the value for a key.
func (db *DB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	value, ok := db.data[string(key)]
	if !ok {
		return nil, database.ErrKeyNotFound
	}

	return append([]byte(nil), value...), nil
}

// Put sets the value for a key.
func (db *DB) Put(key, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes a key.
func (db *DB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	delete(db.data, string(key))
	return nil
}

// IteratePrefix walks all entries under a key prefix in lexical key order,
// matching the ordering guarantee of the heavy driver.
func (db *DB) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	db.lock.RLock()

	keys := make([]string, 0)
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	type entry struct {
		key   []byte
		value []byte
	}

	entries := make([]entry, len(keys))
	for i, k := range keys {
		entries[i] = entry{[]byte(k), append([]byte(nil), db.data[k]...)}
	}
	db.lock.RUnlock()

	for _, e := range entries {
		if !fn(e.key, e.value) {
			break
		}
	}

	return nil
}

// Close is a no-op for the in-memory store.
func (db *DB) Close() error {
	return nil
}

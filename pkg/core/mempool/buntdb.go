// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package mempool

import (
	"encoding/json"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/tidwall/buntdb"
)

const (
	entryPrefix = "mp:"
	seqIndex    = "seq_index"
)

// diskPool is a buntdb-backed pool. Pending transactions survive a node
// restart, entries are iterated in insertion order via an index on the
// monotonic seq field.
type diskPool struct {
	db *buntdb.DB
}

// Create opens/creates the buntdb file with the EverySecond sync policy and
// builds the insertion-order index.
func (m *diskPool) Create(path string) error {
	db, err := buntdb.Open(path)
	if err != nil {
		return err
	}

	var config buntdb.Config
	if err := db.ReadConfig(&config); err != nil {
		_ = db.Close()
		return err
	}

	config.SyncPolicy = buntdb.EverySecond
	if err := db.SetConfig(config); err != nil {
		_ = db.Close()
		return err
	}

	if err := db.CreateIndex(seqIndex, entryPrefix+"*", buntdb.IndexJSON("seq")); err != nil && err != buntdb.ErrIndexExists {
		_ = db.Close()
		return err
	}

	m.db = db
	return nil
}

// Put adds an entry keyed by its transaction hash.
func (m *diskPool) Put(t TxDesc) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}

	key := entryPrefix + t.Tx.CalculateHash()

	return m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(raw), nil)
		return err
	})
}

// Contains returns true if the hash is in the pool.
func (m *diskPool) Contains(hash string) bool {
	found := false

	_ = m.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(entryPrefix + hash)
		found = err == nil
		return nil
	})

	return found
}

// Delete removes an entry.
func (m *diskPool) Delete(hash string) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(entryPrefix + hash)
		return err
	})

	if err == buntdb.ErrNotFound {
		return nil
	}

	return err
}

// Clone copies all pending transactions in insertion order.
func (m *diskPool) Clone() []transactions.Transaction {
	txs := make([]transactions.Transaction, 0)

	_ = m.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(seqIndex, func(key, value string) bool {
			var t TxDesc
			if err := json.Unmarshal([]byte(value), &t); err != nil {
				return true
			}

			txs = append(txs, t.Tx)
			return true
		})
	})

	return txs
}

// Len returns the number of entries.
func (m *diskPool) Len() int {
	count := 0

	_ = m.db.View(func(tx *buntdb.Tx) error {
		var err error
		count, err = tx.Len()
		return err
	})

	return count
}

// Range iterates entries in insertion order.
func (m *diskPool) Range(fn func(hash string, t TxDesc) (bool, error)) error {
	var rangeErr error

	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(seqIndex, func(key, value string) bool {
			var t TxDesc
			if err := json.Unmarshal([]byte(value), &t); err != nil {
				rangeErr = err
				return false
			}

			done, err := fn(key[len(entryPrefix):], t)
			if err != nil {
				rangeErr = err
				return false
			}

			return !done
		})
	})

	if rangeErr != nil {
		return rangeErr
	}

	return err
}

// Close syncs and closes the backing file.
func (m *diskPool) Close() {
	_ = m.db.Close()
}

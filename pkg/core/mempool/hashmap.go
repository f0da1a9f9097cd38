// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package mempool

import (
	"sync"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
)

// HashMap is the default in-memory pool backend.
type HashMap struct {
	lock sync.RWMutex

	data  map[string]TxDesc
	order []string

	Capacity uint32
}

// Create preallocates the map. The path argument is unused for the
// in-memory backend.
func (m *HashMap) Create(path string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data = make(map[string]TxDesc, m.Capacity)
	m.order = make([]string, 0, m.Capacity)
	return nil
}

// Put adds an entry keyed by its transaction hash.
func (m *HashMap) Put(t TxDesc) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	hash := t.Tx.CalculateHash()
	if _, ok := m.data[hash]; !ok {
		m.order = append(m.order, hash)
	}

	m.data[hash] = t
	return nil
}

// Contains returns true if the hash is in the pool.
func (m *HashMap) Contains(hash string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	_, ok := m.data[hash]
	return ok
}

// Delete removes an entry.
func (m *HashMap) Delete(hash string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.data[hash]; !ok {
		return nil
	}

	delete(m.data, hash)

	for i, h := range m.order {
		if h == hash {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	return nil
}

// Clone copies all pending transactions in insertion order.
func (m *HashMap) Clone() []transactions.Transaction {
	m.lock.RLock()
	defer m.lock.RUnlock()

	txs := make([]transactions.Transaction, 0, len(m.order))
	for _, hash := range m.order {
		txs = append(txs, m.data[hash].Tx)
	}

	return txs
}

// Len returns the number of entries.
func (m *HashMap) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.data)
}

// Range iterates entries in insertion order.
func (m *HashMap) Range(fn func(hash string, t TxDesc) (bool, error)) error {
	m.lock.RLock()
	order := append([]string(nil), m.order...)
	data := make(map[string]TxDesc, len(m.data))
	for k, v := range m.data {
		data[k] = v
	}
	m.lock.RUnlock()

	for _, hash := range order {
		done, err := fn(hash, data[hash])
		if err != nil {
			return err
		}

		if done {
			break
		}
	}

	return nil
}

// Close is a no-op for the in-memory backend.
func (m *HashMap) Close() {}

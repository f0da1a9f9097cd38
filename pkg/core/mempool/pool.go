// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package mempool

import (
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
)

// TxDesc couples a pending transaction with its pool metadata.
type TxDesc struct {
	Tx transactions.Transaction `json:"tx"`

	// point in time the tx entered the pool.
	Received time.Time `json:"received"`

	// monotonic insertion counter; the pool's iteration order.
	Seq uint64 `json:"seq"`
}

// Pool stores verified pending transactions, preserving insertion order.
type Pool interface {
	// Create instantiates the underlying data storage.
	Create(path string) error
	// Put adds an entry keyed by its transaction hash.
	Put(t TxDesc) error
	// Contains returns true if the hash is in the pool.
	Contains(hash string) bool
	// Delete removes an entry. Unknown hashes are not an error.
	Delete(hash string) error
	// Clone copies all pending transactions in insertion order.
	Clone() []transactions.Transaction
	// Len returns the number of entries.
	Len() int
	// Range iterates entries in insertion order; return true to stop.
	Range(fn func(hash string, t TxDesc) (bool, error)) error
	// Close releases the backend.
	Close()
}

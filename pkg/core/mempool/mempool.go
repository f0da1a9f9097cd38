// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package mempool

import (
	"errors"
	"sync"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "mempool")

const (
	backendHashMap  = "hashmap"
	backendDiskPool = "diskpool"
)

var (
	// ErrAlreadyExists a transaction with the same hash is already pending.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientBalance the sender's committed balance cannot cover
	// the transaction.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPoolFull the pool reached its configured entry cap.
	ErrPoolFull = errors.New("mempool is full")
)

// BalanceSource is the committed-state view transactions are validated
// against. Unconfirmed mempool effects deliberately do not count; a same
// sender race resolves at block-assembly time as a skip.
type BalanceSource interface {
	GetBalance(addr string) decimal.Decimal
}

// Config selects and sizes the pool backend.
type Config struct {
	// PoolType is "hashmap" (default) or "diskpool".
	PoolType string
	// DiskPoolDir is the buntdb file path for the diskpool backend.
	DiskPoolDir string
	// MaxTxs caps pending entries; zero means unbounded.
	MaxTxs int
	// PreallocTxs sizes the hashmap backend.
	PreallocTxs uint32
}

// Mempool holds locally-validated transactions awaiting inclusion. It has
// its own lock, independent of the chain commit lock: membership may change
// between a snapshot and the commit that consumes it.
type Mempool struct {
	lock     sync.Mutex
	verified Pool
	seq      uint64

	balances BalanceSource
	cfg      Config
}

// New instantiates the mempool with the configured backend.
func New(cfg Config, balances BalanceSource) (*Mempool, error) {
	m := &Mempool{balances: balances, cfg: cfg}

	switch cfg.PoolType {
	case backendDiskPool:
		m.verified = new(diskPool)
	case backendHashMap, "":
		m.verified = &HashMap{Capacity: cfg.PreallocTxs}
	default:
		log.WithField("pool", cfg.PoolType).Warn("unknown pool type, using hashmap")
		m.verified = &HashMap{Capacity: cfg.PreallocTxs}
	}

	if err := m.verified.Create(cfg.DiskPoolDir); err != nil {
		return nil, err
	}

	// Resume the insertion counter past any entries the diskpool restored.
	_ = m.verified.Range(func(hash string, t TxDesc) (bool, error) {
		if t.Seq >= m.seq {
			m.seq = t.Seq + 1
		}

		return false, nil
	})

	log.WithField("backend", cfg.PoolType).
		WithField("restored", m.verified.Len()).
		Info("running")

	return m, nil
}

// Add validates a transaction and queues it. The returned error classifies
// the rejection; a rejected transaction never enters the pool.
func (m *Mempool) Add(tx transactions.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.cfg.MaxTxs > 0 && m.verified.Len() >= m.cfg.MaxTxs {
		log.WithField("max_txs", m.cfg.MaxTxs).Warn("mempool is full, dropping transaction")
		return ErrPoolFull
	}

	hash := tx.CalculateHash()
	if m.verified.Contains(hash) {
		return ErrAlreadyExists
	}

	if !tx.IsIssuance() {
		if m.balances.GetBalance(tx.From).Cmp(tx.Cost()) < 0 {
			return ErrInsufficientBalance
		}
	}

	t := TxDesc{Tx: tx, Received: time.Now(), Seq: m.seq}
	if err := m.verified.Put(t); err != nil {
		return err
	}

	m.seq++

	log.WithField("txid", hash).
		WithField("txtype", tx.Type.String()).
		Trace("accepted transaction")

	return nil
}

// Snapshot copies all pending transactions in insertion order without
// removing them. Used for speculative block assembly.
func (m *Mempool) Snapshot() []transactions.Transaction {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.verified.Clone()
}

// Remove drops entries that were committed in a block.
func (m *Mempool) Remove(hashes []string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, hash := range hashes {
		_ = m.verified.Delete(hash)
	}
}

// Contains reports whether a transaction hash is pending.
func (m *Mempool) Contains(hash string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.verified.Contains(hash)
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.verified.Len()
}

// Close releases the pool backend.
func (m *Mempool) Close() {
	m.verified.Close()
}

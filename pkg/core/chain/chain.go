// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package chain

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/consensus"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	"github.com/dinari-network/dinari-blockchain/pkg/core/ledger"
	"github.com/dinari-network/dinari-blockchain/pkg/core/mempool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "chain")

var (
	// ErrWrongValidator the producer is not entitled to the next height.
	ErrWrongValidator = errors.New("validator not authorized for height")
	// ErrPrevHashMismatch the block does not link to the local tip.
	ErrPrevHashMismatch = errors.New("previous hash does not match chain tip")
	// ErrHeightMismatch the block height is not the next expected one.
	ErrHeightMismatch = errors.New("block height does not match chain height")
	// ErrBlockNotFound no block with the given hash is stored.
	ErrBlockNotFound = errors.New("block not found")
	// ErrTxNotFound no transaction with the given hash is stored.
	ErrTxNotFound = errors.New("transaction not found")
)

// Broadcaster delivers locally-produced blocks and accepted transactions to
// peers. Wire-level transport is the network layer's concern.
type Broadcaster interface {
	BroadcastBlock(blk *block.Block) error
	BroadcastTransaction(tx transactions.Transaction) error
}

// State is the single source of truth for what block comes next. It advances
// exactly once per committed block, inside the commit critical section.
type State struct {
	Height        uint64          `json:"height"`
	LastBlockHash string          `json:"last_block_hash"`
	TotalSupply   decimal.Decimal `json:"total_supply"`
	TotalTxCount  uint64          `json:"total_transactions"`
}

// Allocation is one genesis issuance pair. Order matters: allocations are
// turned into issuance transactions in the order given.
type Allocation struct {
	Address string
	Amount  decimal.Decimal
}

// Genesis seeds balances and the initial validator set at height 0. All
// nodes of a network must share the same genesis, timestamp included, or
// their block-0 hashes diverge and no peer block will ever link.
type Genesis struct {
	Allocations []Allocation
	Validators  []string
	Timestamp   int64
}

// Config tunes block assembly.
type Config struct {
	// BlockGasLimit is stamped on every assembled block.
	BlockGasLimit uint64
}

// DefaultConfig returns the block assembly defaults.
func DefaultConfig() Config {
	return Config{BlockGasLimit: 10_000_000}
}

// Chain ties the ledger, mempool and validator registry together behind a
// single commit lock. All state transitions, local production and blocks
// relayed by peers alike, serialize through that lock.
type Chain struct {
	mu sync.RWMutex

	db       database.DB
	ledger   *ledger.Ledger
	pool     *mempool.Mempool
	registry *consensus.Registry
	bcast    Broadcaster

	cfg   Config
	state State
}

// New restores the chain from the database, or bootstraps a genesis block
// when the database holds no chain state yet.
func New(db database.DB, l *ledger.Ledger, pool *mempool.Mempool, registry *consensus.Registry, bcast Broadcaster, cfg Config, gen Genesis) (*Chain, error) {
	c := &Chain{
		db:       db,
		ledger:   l,
		pool:     pool,
		registry: registry,
		bcast:    bcast,
		cfg:      cfg,
	}

	raw, err := db.Get(database.ChainStateKey())
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &c.state); err != nil {
			return nil, errors.Wrap(err, "chain state corrupted")
		}
		if err := c.restoreBalances(); err != nil {
			return nil, err
		}
		log.WithField("height", c.state.Height).
			WithField("tip", c.state.LastBlockHash).
			Info("chain state restored")
		return c, nil
	case errors.Is(err, database.ErrKeyNotFound):
		if err := c.bootstrap(gen); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Wrap(err, "reading chain state")
	}
}

func (c *Chain) restoreBalances() error {
	raw, err := c.db.Get(database.BalancesKey())
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil
		}
		return errors.Wrap(err, "reading balances")
	}
	return c.ledger.LoadBalances(raw)
}

// bootstrap commits block 0: issuance transactions for every genesis
// allocation, produced by the reserved issuance address.
func (c *Chain) bootstrap(gen Genesis) error {
	for _, addr := range gen.Validators {
		if err := c.registry.AddValidator(addr, addr, "genesis"); err != nil {
			return errors.Wrapf(err, "seeding validator %s", addr)
		}
	}

	now := gen.Timestamp
	if now == 0 {
		now = time.Now().Unix()
	}

	txs := make([]transactions.Transaction, 0, len(gen.Allocations))
	for i, alloc := range gen.Allocations {
		tx := transactions.Transaction{
			From:      transactions.IssuanceAddress,
			To:        alloc.Address,
			Amount:    alloc.Amount,
			GasLimit:  21000,
			Nonce:     uint64(i),
			Timestamp: now,
			Type:      transactions.Transfer,
		}
		txs = append(txs, tx)
	}

	res := c.ledger.ApplyBatch(txs)
	if len(res.Skipped) > 0 {
		return errors.Errorf("genesis allocation rejected: %v", res.Skipped[0].Err)
	}

	blk := &block.Block{
		Index:     0,
		Txs:       txs,
		Timestamp: now,
		PrevHash:  block.GenesisPrevHash,
		Validator: transactions.IssuanceAddress,
		GasUsed:   res.GasUsed,
		GasLimit:  c.cfg.BlockGasLimit,
	}
	blk.SetHash()

	if err := c.persistCommit(blk); err != nil {
		return errors.Wrap(err, "committing genesis block")
	}
	c.advance(blk)

	log.WithField("hash", blk.Hash).
		WithField("allocations", len(gen.Allocations)).
		Info("genesis block committed")
	return nil
}

// Info returns a copy of the chain state.
func (c *Chain) Info() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Height returns the next block height to be produced.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Height
}

// GetBalance returns the committed balance for an address.
func (c *Chain) GetBalance(addr string) decimal.Decimal {
	return c.ledger.GetBalance(addr)
}

// PendingCount reports how many verified transactions await inclusion.
func (c *Chain) PendingCount() int {
	return c.pool.Len()
}

// SubmitTransaction admits a transaction into the mempool and gossips it.
// The transaction is not committed until a block includes it.
func (c *Chain) SubmitTransaction(tx transactions.Transaction) (string, error) {
	if err := c.pool.Add(tx); err != nil {
		return "", err
	}
	hash := tx.CalculateHash()
	if c.bcast != nil {
		if err := c.bcast.BroadcastTransaction(tx); err != nil {
			log.WithError(err).WithField("hash", hash).
				Warn("could not gossip transaction")
		}
	}
	return hash, nil
}

// GetBlock looks a committed block up by hash.
func (c *Chain) GetBlock(hash string) (*block.Block, error) {
	raw, err := c.db.Get(database.BlockKey(hash))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return block.Unmarshal(raw)
}

// GetTransaction looks a committed transaction up by hash.
func (c *Chain) GetTransaction(hash string) (transactions.Transaction, error) {
	var tx transactions.Transaction
	raw, err := c.db.Get(database.TxKey(hash))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return tx, ErrTxNotFound
		}
		return tx, err
	}
	if err := json.Unmarshal(raw, &tx); err != nil {
		return tx, errors.Wrap(err, "transaction record corrupted")
	}
	return tx, nil
}

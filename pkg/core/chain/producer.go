// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package chain

import (
	"encoding/json"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	"github.com/pkg/errors"
)

// Produce assembles, applies and commits the next block on behalf of the
// given validator. The whole transition runs under the commit lock; on any
// persistence failure the balance map, the staged contract state and the
// chain state all roll back to their pre-commit values, so a failed Produce
// leaves no trace.
//
// Skipped transactions still make it into the block. They entered the
// system, were charged their flat gas and are recorded as failed; dropping
// them silently would let a peer replay them forever.
func (c *Chain) Produce(validator string) (*block.Block, error) {
	c.mu.Lock()

	if !c.registry.ValidateForHeight(validator, c.state.Height) {
		c.mu.Unlock()
		return nil, errors.Wrapf(ErrWrongValidator, "%s at height %d", validator, c.state.Height)
	}

	txs := c.pool.Snapshot()

	snapshot := c.ledger.Snapshot()
	res := c.ledger.ApplyBatch(txs)

	blk := block.New(c.state.Height, c.state.LastBlockHash, validator, txs)
	blk.GasUsed = res.GasUsed
	blk.GasLimit = c.cfg.BlockGasLimit
	blk.SetHash()

	if err := c.persistCommit(blk); err != nil {
		c.ledger.Restore(snapshot)
		c.ledger.RollbackContracts()
		c.mu.Unlock()
		return nil, errors.Wrap(err, "persisting block")
	}

	c.advance(blk)
	c.finalize(blk)
	c.mu.Unlock()

	log.WithField("height", blk.Index).
		WithField("hash", blk.Hash).
		WithField("txs", len(blk.Txs)).
		WithField("skipped", len(res.Skipped)).
		WithField("gas", blk.GasUsed).
		Info("block produced")

	if c.bcast != nil {
		if err := c.bcast.BroadcastBlock(blk); err != nil {
			log.WithError(err).WithField("hash", blk.Hash).
				Warn("could not gossip block")
		}
	}
	return blk, nil
}

// AcceptExternal validates a block relayed by a peer against the local tip
// and commits it through the same path as local production. The block is
// taken as-is; its hash seals its contents.
func (c *Chain) AcceptExternal(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk.Index != c.state.Height {
		return errors.Wrapf(ErrHeightMismatch, "got %d, expected %d", blk.Index, c.state.Height)
	}
	if blk.PrevHash != c.state.LastBlockHash {
		return ErrPrevHashMismatch
	}
	if !c.registry.ValidateForHeight(blk.Validator, blk.Index) {
		return errors.Wrapf(ErrWrongValidator, "%s at height %d", blk.Validator, blk.Index)
	}
	if err := blk.VerifyHash(); err != nil {
		return err
	}

	snapshot := c.ledger.Snapshot()
	c.ledger.ApplyBatch(blk.Txs)

	if err := c.persistCommit(blk); err != nil {
		c.ledger.Restore(snapshot)
		c.ledger.RollbackContracts()
		return errors.Wrap(err, "persisting block")
	}

	c.advance(blk)
	c.finalize(blk)

	log.WithField("height", blk.Index).
		WithField("hash", blk.Hash).
		WithField("validator", blk.Validator).
		Info("external block accepted")
	return nil
}

// persistCommit writes the block record, every transaction record, the
// balance map and the staged contract state, then the chain state. The chain
// state write is the commit point: a crash before it leaves the old state
// authoritative and the orphaned records harmless. Callers undo the contract
// flush through RollbackContracts when the sequence errors out.
func (c *Chain) persistCommit(blk *block.Block) error {
	rawBlk, err := block.Marshal(blk)
	if err != nil {
		return err
	}
	if err := c.db.Put(database.BlockKey(blk.Hash), rawBlk); err != nil {
		return err
	}

	for _, tx := range blk.Txs {
		rawTx, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		if err := c.db.Put(database.TxKey(tx.CalculateHash()), rawTx); err != nil {
			return err
		}
	}

	rawBal, err := c.ledger.MarshalBalances()
	if err != nil {
		return err
	}
	if err := c.db.Put(database.BalancesKey(), rawBal); err != nil {
		return err
	}

	if err := c.ledger.CommitContracts(); err != nil {
		return err
	}

	next := State{
		Height:        blk.Index + 1,
		LastBlockHash: blk.Hash,
		TotalSupply:   c.ledger.TotalSupply(),
		TotalTxCount:  c.state.TotalTxCount + uint64(len(blk.Txs)),
	}
	rawState, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := c.db.Put(database.ChainStateKey(), rawState); err != nil {
		return err
	}

	c.ledger.AcceptContracts()
	return nil
}

// advance moves the in-memory chain state past the committed block.
func (c *Chain) advance(blk *block.Block) {
	c.state.Height = blk.Index + 1
	c.state.LastBlockHash = blk.Hash
	c.state.TotalSupply = c.ledger.TotalSupply()
	c.state.TotalTxCount += uint64(len(blk.Txs))
}

// finalize drains committed transactions from the mempool, credits the
// producer's record and runs the epoch review on epoch boundaries.
func (c *Chain) finalize(blk *block.Block) {
	c.pool.Remove(blk.TxHashes())
	c.registry.OnBlockProduced(blk.Validator, time.Unix(blk.Timestamp, 0))

	if n := c.registry.EpochLength(); n > 0 && c.state.Height%n == 0 {
		c.registry.ReviewEpoch(c.state.Height)
	}
}

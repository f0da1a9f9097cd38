// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package p2p

import (
	"testing"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChain records what the processor fed into it.
type fakeChain struct {
	height uint64
	txs    []transactions.Transaction
	blocks []*block.Block
	reject error
}

func (c *fakeChain) SubmitTransaction(tx transactions.Transaction) (string, error) {
	if c.reject != nil {
		return "", c.reject
	}

	c.txs = append(c.txs, tx)
	return tx.CalculateHash(), nil
}

func (c *fakeChain) AcceptExternal(blk *block.Block) error {
	if c.reject != nil {
		return c.reject
	}

	c.blocks = append(c.blocks, blk)
	c.height = blk.Index + 1
	return nil
}

func (c *fakeChain) Height() uint64 { return c.height }

func TestPeerTransactionAdmitted(t *testing.T) {
	chain := &fakeChain{}
	p := NewProcessor(chain, NewDupeMap(0))

	tx := mockTx(0)
	require.NoError(t, p.OnPeerTransaction(tx))
	require.Len(t, chain.txs, 1)

	// the duplicate relay dies here without touching the chain
	require.NoError(t, p.OnPeerTransaction(tx))
	assert.Len(t, chain.txs, 1)
}

func TestPeerTransactionRejected(t *testing.T) {
	chain := &fakeChain{reject: errors.New("insufficient balance")}
	p := NewProcessor(chain, NewDupeMap(0))

	assert.Error(t, p.OnPeerTransaction(mockTx(0)))
	assert.Empty(t, chain.txs)
}

func TestRejectedTransactionRetriedFromGossip(t *testing.T) {
	chain := &fakeChain{reject: errors.New("mempool is full")}
	p := NewProcessor(chain, NewDupeMap(0))

	tx := mockTx(0)
	require.Error(t, p.OnPeerTransaction(tx))

	// the rejection did not poison the filter: once the pool drains, the
	// same transaction is admitted from a later relay
	chain.reject = nil
	require.NoError(t, p.OnPeerTransaction(tx))
	require.Len(t, chain.txs, 1)

	// and only then do duplicates die
	require.NoError(t, p.OnPeerTransaction(tx))
	assert.Len(t, chain.txs, 1)
}

func TestPeerBlockAccepted(t *testing.T) {
	chain := &fakeChain{height: 1}
	p := NewProcessor(chain, NewDupeMap(1))

	blk := &block.Block{Index: 1, Hash: "aa"}
	require.NoError(t, p.OnPeerBlock(blk))
	require.Len(t, chain.blocks, 1)
	assert.Equal(t, uint64(2), chain.Height())

	// echoed block is dropped silently
	require.NoError(t, p.OnPeerBlock(blk))
	assert.Len(t, chain.blocks, 1)
}

func TestPeerBlockRejected(t *testing.T) {
	chain := &fakeChain{reject: errors.New("previous hash does not match chain tip")}
	p := NewProcessor(chain, NewDupeMap(1))

	assert.Error(t, p.OnPeerBlock(&block.Block{Index: 7, Hash: "bb"}))
	assert.Empty(t, chain.blocks)
}

func TestProcessorWithoutDupeMap(t *testing.T) {
	chain := &fakeChain{height: 1}
	p := NewProcessor(chain, nil)

	tx := mockTx(0)
	require.NoError(t, p.OnPeerTransaction(tx))
	require.NoError(t, p.OnPeerTransaction(tx))

	// with no filter, dedup falls to the chain's own admission checks
	assert.Len(t, chain.txs, 2)
}

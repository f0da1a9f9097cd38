// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package p2p

import (
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
)

// ChainSync is the slice of the chain the processor needs. Satisfied by
// chain.Chain.
type ChainSync interface {
	SubmitTransaction(tx transactions.Transaction) (string, error)
	AcceptExternal(blk *block.Block) error
	Height() uint64
}

// Processor feeds inbound gossip into the node. Duplicates are filtered
// before touching the chain, so a message looping between peers dies here.
type Processor struct {
	chain ChainSync
	dupes *DupeMap
}

// NewProcessor wires inbound handling to the local chain.
func NewProcessor(chain ChainSync, dupes *DupeMap) *Processor {
	return &Processor{chain: chain, dupes: dupes}
}

// OnPeerTransaction handles a transaction relayed by a peer. Admission runs
// the same mempool checks as a local submission. The hash is recorded only
// after admission succeeds, so a transiently rejected transaction can still
// come back through gossip.
func (p *Processor) OnPeerTransaction(tx transactions.Transaction) error {
	hash := tx.CalculateHash()
	if p.dupes != nil && p.dupes.Seen(hash) {
		return nil
	}

	if _, err := p.chain.SubmitTransaction(tx); err != nil {
		log.WithError(err).WithField("hash", hash).
			Debug("peer transaction rejected")
		return err
	}

	if p.dupes != nil {
		p.dupes.Record(hash)
	}
	return nil
}

// OnPeerBlock handles a block relayed by a peer.
func (p *Processor) OnPeerBlock(blk *block.Block) error {
	if p.dupes != nil && p.dupes.Seen(blk.Hash) {
		return nil
	}

	if err := p.chain.AcceptExternal(blk); err != nil {
		log.WithError(err).
			WithField("height", blk.Index).
			WithField("hash", blk.Hash).
			Debug("peer block rejected")
		return err
	}

	if p.dupes != nil {
		p.dupes.Record(blk.Hash)
		p.dupes.UpdateHeight(blk.Index)
	}
	return nil
}

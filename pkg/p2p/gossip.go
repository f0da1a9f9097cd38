// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var log = logger.WithField("process", "p2p")

// PeerWriter is one connected peer's outbound half. Implementations own the
// wire format and the connection lifecycle.
type PeerWriter interface {
	Addr() string
	WriteBlock(blk *block.Block) error
	WriteTransaction(tx transactions.Transaction) error
}

// Gossiper fans messages out to every registered peer, rate limited so a
// burst of submissions cannot saturate slow links. A failing peer is logged
// and skipped; gossip is best effort.
type Gossiper struct {
	lock    sync.RWMutex
	peers   map[string]PeerWriter
	limiter *rate.Limiter
	dupes   *DupeMap
}

// NewGossiper returns a gossiper allowing msgsPerSec outbound fan-outs.
func NewGossiper(msgsPerSec int, dupes *DupeMap) *Gossiper {
	if msgsPerSec <= 0 {
		msgsPerSec = 60
	}
	return &Gossiper{
		peers:   make(map[string]PeerWriter),
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(msgsPerSec)), 1),
		dupes:   dupes,
	}
}

// Register adds a peer to the fan-out set, replacing any previous writer
// registered under the same address.
func (g *Gossiper) Register(w PeerWriter) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.peers[w.Addr()] = w
}

// Unregister removes a peer from the fan-out set.
func (g *Gossiper) Unregister(addr string) {
	g.lock.Lock()
	defer g.lock.Unlock()
	delete(g.peers, addr)
}

// PeerCount returns how many peers are registered.
func (g *Gossiper) PeerCount() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return len(g.peers)
}

// BroadcastBlock relays a committed block to every peer and moves the
// duplicate window up to the block's height.
func (g *Gossiper) BroadcastBlock(blk *block.Block) error {
	if g.dupes != nil {
		g.dupes.UpdateHeight(blk.Index)
		g.dupes.CanFwd(blk.Hash)
	}
	if err := g.limiter.Wait(context.Background()); err != nil {
		return err
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	for addr, w := range g.peers {
		if err := w.WriteBlock(blk); err != nil {
			log.WithError(err).WithField("peer", addr).
				Warn("could not relay block")
		}
	}
	return nil
}

// BroadcastTransaction relays an admitted transaction to every peer.
func (g *Gossiper) BroadcastTransaction(tx transactions.Transaction) error {
	if g.dupes != nil {
		g.dupes.CanFwd(tx.CalculateHash())
	}
	if err := g.limiter.Wait(context.Background()); err != nil {
		return err
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	for addr, w := range g.peers {
		if err := w.WriteTransaction(tx); err != nil {
			log.WithError(err).WithField("peer", addr).
				Warn("could not relay transaction")
		}
	}
	return nil
}

// NopBroadcaster is a Broadcaster that discards everything. Used by nodes
// running without networking and by tests.
type NopBroadcaster struct{}

// BroadcastBlock drops the block.
func (NopBroadcaster) BroadcastBlock(*block.Block) error { return nil }

// BroadcastTransaction drops the transaction.
func (NopBroadcaster) BroadcastTransaction(transactions.Transaction) error { return nil }

// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsWithoutLoad(t *testing.T) {
	// consumers must see sane values even when Load was never called
	r := Get()

	assert.Equal(t, "testnet", r.General.Network)
	assert.Equal(t, "heavy", r.Database.Driver)
	assert.Equal(t, "hashmap", r.Mempool.PoolType)
	assert.Equal(t, uint64(100), r.Consensus.EpochLength)
	assert.Equal(t, 5, r.Consensus.MaxMissedBlocks)
	assert.Equal(t, 50.0, r.Consensus.ReputationThreshold)
	assert.Equal(t, uint64(15), r.Scheduler.IntervalSecs)
	assert.True(t, r.Consensus.RotateValidators)
}

func TestMock(t *testing.T) {
	m := new(Registry)
	setDefaults(m)
	m.General.Network = "devnet"
	m.Consensus.EpochLength = 7

	Mock(m)

	defer func() {
		fresh := new(Registry)
		setDefaults(fresh)
		Mock(fresh)
	}()

	assert.Equal(t, "devnet", Get().General.Network)
	assert.Equal(t, uint64(7), Get().Consensus.EpochLength)

	// Get returns a copy: mutating it does not leak back
	got := Get()
	got.General.Network = "mutated"
	assert.Equal(t, "devnet", Get().General.Network)
}

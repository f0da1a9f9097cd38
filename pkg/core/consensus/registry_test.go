// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package consensus

import (
	"testing"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/database/lite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()

	r, err := NewRegistry(cfg, nil)
	require.NoError(t, err)

	return r
}

func seed(t *testing.T, r *Registry, addrs ...string) {
	t.Helper()

	for _, addr := range addrs {
		require.NoError(t, r.AddValidator(addr, addr, "genesis"))
	}
}

func TestAddValidator(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	seed(t, r, "v1")

	info, ok := r.Info("v1")
	require.True(t, ok)

	assert.True(t, info.IsActive)
	assert.Equal(t, StartingReputation, info.Reputation)
	assert.Equal(t, "genesis", info.AddedBy)

	assert.ErrorIs(t, r.AddValidator("v1", "v1", "genesis"), ErrAlreadyValidator)
}

func TestMaxValidators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxValidators = 2

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")

	assert.ErrorIs(t, r.AddValidator("v3", "v3", "v1"), ErrMaxValidators)
}

func TestRemoveValidatorKeepsMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinValidators = 1

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1")

	assert.ErrorIs(t, r.RemoveValidator("v1", "admin"), ErrMinValidators)
	assert.ErrorIs(t, r.RemoveValidator("ghost", "admin"), ErrUnknownValidator)

	seed(t, r, "v2")
	require.NoError(t, r.RemoveValidator("v1", "admin"))

	_, ok := r.Info("v1")
	assert.False(t, ok)
	assert.Equal(t, []string{"v2"}, r.ActiveValidators())
}

func TestRemoveInactiveValidatorAtMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinValidators = 1

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")
	require.NoError(t, r.Deactivate("v2", "maintenance"))

	// v1 is the only active validator, but removing the inactive v2 does
	// not touch the active count
	require.NoError(t, r.RemoveValidator("v2", "admin"))

	_, ok := r.Info("v2")
	assert.False(t, ok)
	assert.Equal(t, []string{"v1"}, r.ActiveValidators())

	assert.ErrorIs(t, r.RemoveValidator("v1", "admin"), ErrMinValidators)
}

func TestRoundRobinFairness(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	seed(t, r, "v1", "v2", "v3")

	turns := make(map[string]int)
	for h := uint64(0); h < 9; h++ {
		v, err := r.CurrentValidator(h)
		require.NoError(t, err)
		turns[v]++
	}

	// with a static set, 9 heights split exactly three ways
	assert.Equal(t, map[string]int{"v1": 3, "v2": 3, "v3": 3}, turns)
}

func TestCurrentValidatorDeterministic(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	seed(t, r, "v1", "v2")

	v1, err := r.CurrentValidator(4)
	require.NoError(t, err)
	v2, err := r.CurrentValidator(4)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.True(t, r.ValidateForHeight(v1, 4))

	other, err := r.CurrentValidator(5)
	require.NoError(t, err)
	assert.NotEqual(t, v1, other)
	assert.False(t, r.ValidateForHeight(v1, 5))
}

func TestInactiveValidatorsSkipped(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	seed(t, r, "v1", "v2", "v3")

	require.NoError(t, r.Deactivate("v2", "maintenance"))

	active := r.ActiveValidators()
	assert.Equal(t, []string{"v1", "v3"}, active)

	for h := uint64(0); h < 10; h++ {
		v, err := r.CurrentValidator(h)
		require.NoError(t, err)
		assert.NotEqual(t, "v2", v)
	}
}

func TestOnBlockProducedRaisesReputation(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	seed(t, r, "v1")

	// already at the ceiling: stays clamped
	r.OnBlockProduced("v1", time.Now())
	info, _ := r.Info("v1")
	assert.Equal(t, MaxReputation, info.Reputation)
	assert.Equal(t, uint64(1), info.BlocksMined)

	// a produced block clears the consecutive-miss counter
	r.OnMissedTurn("v1", 1)
	r.OnBlockProduced("v1", time.Now())

	info, _ = r.Info("v1")
	assert.Equal(t, 0, info.MissedBlocks)
	assert.True(t, info.IsActive)
}

func TestConsecutiveMissesDeactivate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissedBlocks = 5

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")

	for i := uint64(0); i < 4; i++ {
		r.OnMissedTurn("v1", i)
	}

	info, _ := r.Info("v1")
	require.True(t, info.IsActive)
	assert.Equal(t, StartingReputation-4*missedReputationLoss, info.Reputation)

	r.OnMissedTurn("v1", 4)

	info, _ = r.Info("v1")
	assert.False(t, info.IsActive)
	assert.Equal(t, []string{"v2"}, r.ActiveValidators())
}

func TestLowReputationDeactivates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissedBlocks = 1000 // isolate the reputation path
	cfg.ReputationThreshold = 98.0

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")

	r.OnMissedTurn("v1", 0)
	r.OnMissedTurn("v1", 1)

	info, _ := r.Info("v1")
	require.True(t, info.IsActive)

	// 100 - 3 < 98
	r.OnMissedTurn("v1", 2)

	info, _ = r.Info("v1")
	assert.False(t, info.IsActive)
}

func TestReputationBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissedBlocks = 1000
	cfg.ReputationThreshold = -1 // never deactivate for this test

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1")

	for i := uint64(0); i < 200; i++ {
		r.OnMissedTurn("v1", i)
	}

	info, _ := r.Info("v1")
	assert.Equal(t, MinReputation, info.Reputation)
}

func TestEpochReviewRotatesOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RotateValidators = true

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2", "v3")

	r.ReviewEpoch(100)

	assert.Equal(t, uint64(1), r.Epoch())
	assert.Equal(t, []string{"v2", "v3", "v1"}, r.ActiveValidators())
}

func TestEpochReviewReactivatesRecovered(t *testing.T) {
	cfg := DefaultConfig()

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")

	require.NoError(t, r.Deactivate("v1", "maintenance"))

	// reputation still at the ceiling, so the review recovers it
	r.ReviewEpoch(100)

	info, _ := r.Info("v1")
	assert.True(t, info.IsActive)
	assert.Equal(t, 0, info.MissedBlocks)
}

func TestEpochReviewDeactivatesSilent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValidatorTimeout = time.Minute
	cfg.ReputationThreshold = 200 // block the recovery path

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1", "v2")

	// v1 produced long ago; v2 never produced and is left alone
	r.OnBlockProduced("v1", time.Now().Add(-time.Hour))

	r.ReviewEpoch(100)

	v1, _ := r.Info("v1")
	v2, _ := r.Info("v2")
	assert.False(t, v1.IsActive)
	assert.True(t, v2.IsActive)
}

func TestSelfHealInjectsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultValidators = []string{"fallback"}

	r := newTestRegistry(t, cfg)

	// empty set heals on demand
	active := r.ActiveValidators()
	require.Equal(t, []string{"fallback"}, active)

	info, ok := r.Info("fallback")
	require.True(t, ok)
	assert.Equal(t, "self-heal", info.AddedBy)

	v, err := r.CurrentValidator(7)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestSelfHealReactivatesExisting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultValidators = []string{"v1"}

	r := newTestRegistry(t, cfg)
	seed(t, r, "v1")

	require.NoError(t, r.Deactivate("v1", "poor performance"))

	r.SelfHeal()

	info, _ := r.Info("v1")
	assert.True(t, info.IsActive)
	assert.GreaterOrEqual(t, info.Reputation, cfg.ReputationThreshold)
}

func TestNoValidatorsWithoutDefaults(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())

	_, err := r.CurrentValidator(0)
	assert.ErrorIs(t, err, ErrNoValidators)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	db := lite.NewDatabase()
	cfg := DefaultConfig()

	r, err := NewRegistry(cfg, db)
	require.NoError(t, err)

	require.NoError(t, r.AddValidator("v1", "node one", "genesis"))
	require.NoError(t, r.AddValidator("v2", "node two", "v1"))
	r.OnBlockProduced("v1", time.Now())
	r.ReviewEpoch(100)

	restored, err := NewRegistry(cfg, db)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), restored.Epoch())
	assert.Equal(t, r.ActiveValidators(), restored.ActiveValidators())

	info, ok := restored.Info("v1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), info.BlocksMined)
	assert.Equal(t, "node one", info.Name)
}

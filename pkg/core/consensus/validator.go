// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package consensus

import "time"

// Reputation bounds. Every validator starts at the ceiling and is nudged
// up/down by produced and missed blocks.
const (
	StartingReputation = 100.0
	MaxReputation      = 100.0
	MinReputation      = 0.0

	producedReputationGain = 0.1
	missedReputationLoss   = 1.0
)

// ValidatorInfo tracks one authorized block producer.
type ValidatorInfo struct {
	Address       string  `json:"address"`
	Name          string  `json:"name"`
	AddedAt       int64   `json:"added_at"`
	AddedBy       string  `json:"added_by"`
	IsActive      bool    `json:"is_active"`
	BlocksMined   uint64  `json:"blocks_mined"`
	LastBlockTime int64   `json:"last_block_time"`
	Reputation    float64 `json:"reputation_score"`
	MissedBlocks  int     `json:"missed_blocks"`
}

func newValidator(addr, name, addedBy string) *ValidatorInfo {
	return &ValidatorInfo{
		Address:    addr,
		Name:       name,
		AddedAt:    time.Now().Unix(),
		AddedBy:    addedBy,
		IsActive:   true,
		Reputation: StartingReputation,
	}
}

// Config bounds and tunes the validator set.
type Config struct {
	// MinValidators is the floor below which removal is refused.
	MinValidators int
	// MaxValidators caps the set size.
	MaxValidators int
	// EpochLength is the number of blocks between performance reviews.
	EpochLength uint64
	// ValidatorTimeout deactivates validators silent for longer than this.
	ValidatorTimeout time.Duration
	// ReputationThreshold is the score below which a validator is
	// deactivated, and at or above which it may be reactivated.
	ReputationThreshold float64
	// MaxMissedBlocks deactivates a validator after this many consecutive
	// missed turns.
	MaxMissedBlocks int
	// RotateValidators moves the rotation head to the tail each epoch.
	RotateValidators bool
	// DefaultValidators is the self-healing fallback set injected when the
	// active set would otherwise be empty.
	DefaultValidators []string
}

// DefaultConfig mirrors the usual PoA network parameters.
func DefaultConfig() Config {
	return Config{
		MinValidators:       1,
		MaxValidators:       21,
		EpochLength:         100,
		ValidatorTimeout:    5 * time.Minute,
		ReputationThreshold: 50.0,
		MaxMissedBlocks:     5,
		RotateValidators:    true,
	}
}

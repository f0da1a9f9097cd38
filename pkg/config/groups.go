// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package config

type generalConfiguration struct {
	Network string
}

type loggerConfiguration struct {
	Level  string
	Output string
	Format string
}

// pkg/core/database package configs.
type databaseConfiguration struct {
	Driver string
	Dir    string
}

// pkg/core/mempool package configs.
type mempoolConfiguration struct {
	PoolType    string
	DiskPoolDir string
	MaxTxs      uint32
	PreallocTxs uint32
}

// pkg/core/consensus package configs. ValidatorAddress is the identity this
// node produces blocks under.
type consensusConfiguration struct {
	ValidatorAddress string

	MinValidators        int
	MaxValidators        int
	EpochLength          uint64
	ValidatorTimeoutSecs uint64
	ReputationThreshold  float64
	MaxMissedBlocks      int
	RotateValidators     bool
	DefaultValidators    []string
}

// pkg/core/scheduler package configs.
type schedulerConfiguration struct {
	IntervalSecs     uint64
	MinSpacingSecs   uint64
	ErrorBackoffSecs uint64
	SelfHealAfter    int
}

// pkg/core/chain package configs.
type chainConfiguration struct {
	BlockGasLimit uint64
}

type networkConfiguration struct {
	GossipRate       int
	MaxDupeMapItems  uint32
	MaxDupeMapExpire uint32
}

// genesisAllocation is one issuance pair. Order in the config file is the
// order the issuance transactions are applied in.
type genesisAllocation struct {
	Address string
	Amount  string
}

type genesisConfiguration struct {
	Allocations []genesisAllocation
	Validators  []string
	Timestamp   int64
}

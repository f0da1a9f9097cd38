// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package config

// A single point of constants definition
const (
	// NodeVersion is the semver version of this node build.
	NodeVersion = "0.1.0"

	// DefaultGenesisSupply is issued to the treasury when no genesis
	// allocations are configured.
	DefaultGenesisSupply = "1000000"

	// DefaultTreasuryAddress receives DefaultGenesisSupply.
	DefaultTreasuryAddress = "dinari-treasury"
)

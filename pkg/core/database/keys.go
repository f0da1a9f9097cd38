// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package database

// Key namespaces. Prefix-based so IteratePrefix can scan one record family.
const (
	blockPrefix    = "block:"
	txPrefix       = "tx:"
	contractPrefix = "contract:"

	chainStateKey = "chain:state"
	validatorsKey = "validators"
	balancesKey   = "balances"
)

// BlockKey returns the storage key of a block record.
func BlockKey(hash string) []byte {
	return []byte(blockPrefix + hash)
}

// BlockPrefix returns the prefix shared by all block records.
func BlockPrefix() []byte {
	return []byte(blockPrefix)
}

// TxKey returns the storage key of a transaction record.
func TxKey(hash string) []byte {
	return []byte(txPrefix + hash)
}

// TxPrefix returns the prefix shared by all transaction records.
func TxPrefix() []byte {
	return []byte(txPrefix)
}

// ContractKey returns the storage key of a contract record.
func ContractKey(address string) []byte {
	return []byte(contractPrefix + address)
}

// ChainStateKey returns the key of the single chain-state record.
func ChainStateKey() []byte {
	return []byte(chainStateKey)
}

// ValidatorsKey returns the key of the validator-set record.
func ValidatorsKey() []byte {
	return []byte(validatorsKey)
}

// BalancesKey returns the key of the balance-map record.
func BalancesKey() []byte {
	return []byte(balancesKey)
}

// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package contracts

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrContractNotFound no contract is deployed at the given address.
	ErrContractNotFound = errors.New("contract not found")
	// ErrFunctionNotFound the contract does not expose the function.
	ErrFunctionNotFound = errors.New("function not found")
)

// Call describes a single contract invocation.
type Call struct {
	Contract string
	Function string
	Args     []string
	Caller   string
	Value    decimal.Decimal
}

// Result carries the return value and the gas consumed by an invocation.
type Result struct {
	Value   string
	GasUsed uint64
}

// StateAccess is the narrow balance primitive the ledger exposes to contract
// execution. All effects are applied within the scope of the surrounding
// batch, so they roll back with it.
type StateAccess interface {
	// Balance returns the committed-or-staged balance of an address.
	Balance(addr string) decimal.Decimal
	// Credit adds to an address balance, creating it on first credit.
	Credit(addr string, amount decimal.Decimal)
	// Debit subtracts from an address balance. Fails rather than driving
	// the balance negative.
	Debit(addr string, amount decimal.Decimal) error
}

// Executor is the contract-execution collaborator consumed by the ledger. A
// failing call skips only the transaction carrying it; the returned gas is
// folded into the block total either way. Deploy and Execute stage their
// mutations; the chain drives Commit, Accept and Rollback from its block
// commit sequence so contract state shares the fate of the block.
type Executor interface {
	// Deploy registers contract code and returns its derived address.
	Deploy(code, deployer string, value decimal.Decimal, timestamp int64) (addr string, gasUsed uint64, err error)
	// Execute runs one function of a deployed contract.
	Execute(call Call, state StateAccess) (Result, error)
	// Commit persists the mutations staged since the last Accept.
	Commit() error
	// Accept seals a committed stage, dropping its undo data.
	Accept()
	// Rollback undoes the staged mutations, flushed or not.
	Rollback()
}

// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package transactions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IssuanceAddress is the reserved sender of genesis allocations. Transactions
// from this address bypass the balance check and increase total supply.
const IssuanceAddress = "genesis"

var (
	// ErrMissingAddress one of the transaction endpoints is empty.
	ErrMissingAddress = errors.New("missing from or to address")
	// ErrNonPositiveAmount the transaction carries a zero or negative amount.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrNegativeGasPrice the gas price is negative.
	ErrNegativeGasPrice = errors.New("gas price must not be negative")
	// ErrMissingContract a contract-kind transaction has no contract address.
	ErrMissingContract = errors.New("missing contract address")
)

// TxType tags the closed set of transaction kinds. ApplyBatch matches it
// exhaustively, so adding a kind is a compile-time decision.
type TxType uint8

const (
	// Transfer moves value between two accounts.
	Transfer TxType = iota
	// ContractDeploy registers contract code and credits its address.
	ContractDeploy
	// ContractCall invokes a function on a deployed contract.
	ContractCall
)

func (t TxType) String() string {
	switch t {
	case Transfer:
		return "transfer"
	case ContractDeploy:
		return "contract_deploy"
	case ContractCall:
		return "contract_call"
	}

	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Transaction is a single ledger mutation. Signature verification is the
// wallet layer's concern; the field is carried opaquely.
type Transaction struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	GasPrice        decimal.Decimal `json:"gas_price"`
	GasLimit        uint64          `json:"gas_limit"`
	Nonce           uint64          `json:"nonce"`
	Timestamp       int64           `json:"timestamp"`
	Type            TxType          `json:"type"`
	Payload         string          `json:"payload,omitempty"`
	ContractAddress string          `json:"contract_address,omitempty"`
	Signature       string          `json:"signature,omitempty"`
}

// New returns a plain transfer with the timestamp set to now.
func New(from, to string, amount, gasPrice decimal.Decimal, gasLimit, nonce uint64) Transaction {
	return Transaction{
		From:      from,
		To:        to,
		Amount:    amount,
		GasPrice:  gasPrice,
		GasLimit:  gasLimit,
		Nonce:     nonce,
		Timestamp: time.Now().Unix(),
		Type:      Transfer,
	}
}

// CalculateHash returns the hex-encoded sha256 digest over the canonical
// field concatenation. The hash is the transaction identity used as the
// mempool and storage key.
func (t Transaction) CalculateHash() string {
	data := fmt.Sprintf("%s%s%s%s%d%d%d%s%s%s",
		t.From, t.To, t.Amount.String(), t.GasPrice.String(),
		t.GasLimit, t.Nonce, t.Timestamp, t.Type.String(),
		t.Payload, t.ContractAddress)

	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}

// Cost is the full debit a sender must cover: amount plus the nominal gas
// charge gasPrice*gasLimit.
func (t Transaction) Cost() decimal.Decimal {
	gas := t.GasPrice.Mul(decimal.NewFromInt(int64(t.GasLimit)))
	return t.Amount.Add(gas)
}

// IsIssuance reports whether the sender is the reserved issuance address.
func (t Transaction) IsIssuance() bool {
	return t.From == IssuanceAddress
}

// Validate applies the static rules every transaction must satisfy before it
// may enter the mempool. Balance checks are the mempool's concern.
func (t Transaction) Validate() error {
	if t.From == "" || t.To == "" {
		return ErrMissingAddress
	}

	if t.Amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	if t.GasPrice.Sign() < 0 {
		return ErrNegativeGasPrice
	}

	// Deploys derive their address at execution time; only calls must
	// already point at a contract.
	if t.Type == ContractCall && t.ContractAddress == "" {
		return ErrMissingContract
	}

	return nil
}

// Marshal encodes the transaction for persistence.
func Marshal(t Transaction) ([]byte, error) {
	return json.Marshal(t)
}

// Unmarshal decodes a persisted transaction.
func Unmarshal(data []byte) (Transaction, error) {
	var t Transaction
	err := json.Unmarshal(data, &t)
	return t, err
}

// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/dinari-network/dinari-blockchain/pkg/core/contracts"
	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "ledger")

var (
	// ErrInsufficientBalance the sender cannot cover amount plus gas.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoExecutor a contract transaction arrived but no executor is wired.
	ErrNoExecutor = errors.New("no contract executor configured")
	// ErrBadPayload a contract call payload could not be parsed.
	ErrBadPayload = errors.New("malformed contract call payload")
)

// skippedTxGas is the flat charge a skipped transaction contributes to the
// block gas tally. Kept from the reference behavior; no payer is actually
// debited for a skipped transfer.
const skippedTxGas = 21000

// TxError records a transaction that was skipped during batch application.
type TxError struct {
	Hash string
	Err  error
}

// BatchResult aggregates the outcome of one ApplyBatch run.
type BatchResult struct {
	GasUsed uint64
	Applied int
	Skipped []TxError
}

// Ledger owns the authoritative account balances. Mutations happen only
// through ApplyBatch; a batch is atomic in effect, readers observe either the
// pre-batch or the fully-processed state.
type Ledger struct {
	lock     sync.RWMutex
	balances map[string]decimal.Decimal
	executor contracts.Executor
}

// New returns a ledger with no balances. The executor may be nil, in which
// case contract transactions are skipped.
func New(executor contracts.Executor) *Ledger {
	return &Ledger{
		balances: make(map[string]decimal.Decimal),
		executor: executor,
	}
}

// GetBalance returns the committed balance of an address, zero for unknown
// addresses.
func (l *Ledger) GetBalance(addr string) decimal.Decimal {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.balances[addr]
}

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() decimal.Decimal {
	l.lock.RLock()
	defer l.lock.RUnlock()

	total := decimal.Zero
	for _, b := range l.balances {
		total = total.Add(b)
	}

	return total
}

// Snapshot returns a copy of the balance map, used by the chain to roll back
// a failed commit.
func (l *Ledger) Snapshot() map[string]decimal.Decimal {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return cloneBalances(l.balances)
}

// Restore replaces the balance map with a previously taken snapshot.
func (l *Ledger) Restore(snapshot map[string]decimal.Decimal) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.balances = cloneBalances(snapshot)
}

// CommitContracts flushes contract state staged during ApplyBatch to
// storage. Part of the chain's durable commit sequence.
func (l *Ledger) CommitContracts() error {
	if l.executor == nil {
		return nil
	}

	return l.executor.Commit()
}

// AcceptContracts seals the flushed contract state once the commit point has
// been written.
func (l *Ledger) AcceptContracts() {
	if l.executor != nil {
		l.executor.Accept()
	}
}

// RollbackContracts undoes staged contract state after a failed commit.
func (l *Ledger) RollbackContracts() {
	if l.executor != nil {
		l.executor.Rollback()
	}
}

// ApplyBatch processes transactions in order against a staging copy of the
// balances and swaps it in atomically at the end. A transaction whose sender
// cannot cover amount+gas at its turn is skipped, recorded, and charged the
// flat gas fee against the block tally; processing continues.
func (l *Ledger) ApplyBatch(txs []transactions.Transaction) BatchResult {
	l.lock.Lock()
	defer l.lock.Unlock()

	staging := &batchState{balances: cloneBalances(l.balances)}

	var res BatchResult

	for _, tx := range txs {
		hash := tx.CalculateHash()

		gas, err := l.applyOne(staging, tx)
		res.GasUsed += gas

		if err != nil {
			res.Skipped = append(res.Skipped, TxError{Hash: hash, Err: err})

			log.WithField("txid", hash).
				WithError(err).
				Warn("transaction skipped during batch")
			continue
		}

		res.Applied++
	}

	l.balances = staging.balances
	return res
}

// applyOne settles a single transaction against the staging state, returning
// the gas it contributes to the block.
func (l *Ledger) applyOne(staging *batchState, tx transactions.Transaction) (uint64, error) {
	switch tx.Type {
	case transactions.Transfer:
		return l.applyTransfer(staging, tx)
	case transactions.ContractDeploy:
		return l.applyDeploy(staging, tx)
	case transactions.ContractCall:
		return l.applyCall(staging, tx)
	}

	return skippedTxGas, errors.New("unknown transaction type")
}

func (l *Ledger) applyTransfer(staging *batchState, tx transactions.Transaction) (uint64, error) {
	if tx.IsIssuance() {
		staging.Credit(tx.To, tx.Amount)
		return 0, nil
	}

	if staging.Balance(tx.From).Cmp(tx.Cost()) < 0 {
		return skippedTxGas, ErrInsufficientBalance
	}

	// The checked debit cannot fail after the explicit cost comparison.
	_ = staging.Debit(tx.From, tx.Cost())
	staging.Credit(tx.To, tx.Amount)

	return tx.GasLimit, nil
}

func (l *Ledger) applyDeploy(staging *batchState, tx transactions.Transaction) (uint64, error) {
	if l.executor == nil {
		return skippedTxGas, ErrNoExecutor
	}

	if !tx.IsIssuance() && staging.Balance(tx.From).Cmp(tx.Cost()) < 0 {
		return skippedTxGas, ErrInsufficientBalance
	}

	addr, gas, err := l.executor.Deploy(tx.Payload, tx.From, tx.Amount, tx.Timestamp)
	if err != nil {
		return skippedTxGas, err
	}

	if !tx.IsIssuance() {
		_ = staging.Debit(tx.From, tx.Cost())
	}

	// The deployed contract holds any value sent along.
	if tx.Amount.Sign() > 0 {
		staging.Credit(addr, tx.Amount)
	}

	log.WithField("contract", addr).
		WithField("deployer", tx.From).
		Debug("deploy settled")

	return gas, nil
}

func (l *Ledger) applyCall(staging *batchState, tx transactions.Transaction) (uint64, error) {
	if l.executor == nil {
		return skippedTxGas, ErrNoExecutor
	}

	function, args, err := parseCallPayload(tx.Payload)
	if err != nil {
		return skippedTxGas, err
	}

	if staging.Balance(tx.From).Cmp(tx.Cost()) < 0 {
		return skippedTxGas, ErrInsufficientBalance
	}

	// The contract may move funds through StateAccess, so effects have to
	// be revertible if the call fails: run it against a scratch copy.
	scratch := &batchState{balances: cloneBalances(staging.balances)}

	_ = scratch.Debit(tx.From, tx.Cost())
	if tx.Amount.Sign() > 0 {
		scratch.Credit(tx.ContractAddress, tx.Amount)
	}

	res, err := l.executor.Execute(contracts.Call{
		Contract: tx.ContractAddress,
		Function: function,
		Args:     args,
		Caller:   tx.From,
		Value:    tx.Amount,
	}, scratch)
	if err != nil {
		// The call's gas is still charged to the block.
		return res.GasUsed, err
	}

	staging.balances = scratch.balances
	return res.GasUsed, nil
}

// parseCallPayload splits the "function:arg1:arg2:..." call encoding.
func parseCallPayload(payload string) (string, []string, error) {
	if payload == "" {
		return "", nil, ErrBadPayload
	}

	parts := strings.Split(payload, ":")
	return parts[0], parts[1:], nil
}

// MarshalBalances encodes the balance map for persistence under the
// balances key. Amounts serialize as strings to keep full precision.
func (l *Ledger) MarshalBalances() ([]byte, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := make(map[string]string, len(l.balances))
	for addr, b := range l.balances {
		out[addr] = b.String()
	}

	return json.Marshal(out)
}

// LoadBalances replaces the balance map from its persisted encoding.
func (l *Ledger) LoadBalances(raw []byte) error {
	in := make(map[string]string)
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}

	balances := make(map[string]decimal.Decimal, len(in))
	for addr, s := range in {
		b, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}

		balances[addr] = b
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	l.balances = balances
	return nil
}

func cloneBalances(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

// batchState is the staging balance view one batch mutates. It implements
// contracts.StateAccess so contract execution folds into the same scope.
type batchState struct {
	balances map[string]decimal.Decimal
}

func (s *batchState) Balance(addr string) decimal.Decimal {
	return s.balances[addr]
}

func (s *batchState) Credit(addr string, amount decimal.Decimal) {
	s.balances[addr] = s.balances[addr].Add(amount)
}

func (s *batchState) Debit(addr string, amount decimal.Decimal) error {
	next := s.balances[addr].Sub(amount)
	if next.Sign() < 0 {
		return ErrInsufficientBalance
	}

	s.balances[addr] = next
	return nil
}

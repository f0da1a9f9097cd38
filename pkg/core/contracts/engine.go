// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "contracts")

// Flat charges, mirroring the fixed per-call cost of the reference engine.
const (
	deployGas = 2000
	callGas   = 1000
)

// Contract is a deployed unit: opaque code, an owner and a key/value state.
type Contract struct {
	Address   string            `json:"address"`
	Code      string            `json:"code"`
	Owner     string            `json:"owner"`
	State     map[string]string `json:"state"`
	CreatedAt int64             `json:"created_at"`
}

// Engine is an in-process Executor. Instead of evaluating contract source, it
// dispatches a closed set of built-in functions against the contract's
// key/value state and the ledger's balance primitives. Mutations stage in
// memory and reach the contract: namespace only through Commit, so they share
// the fate of the block that carries them.
type Engine struct {
	lock sync.Mutex
	db   database.DB

	// staged holds records mutated since the last Accept, keyed by address.
	// prev keeps the stored encoding each staged record replaces, nil for a
	// fresh deployment, so Rollback can put storage back exactly.
	staged map[string]*Contract
	prev   map[string][]byte
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(db database.DB) *Engine {
	return &Engine{
		db:     db,
		staged: make(map[string]*Contract),
		prev:   make(map[string][]byte),
	}
}

// Deploy stages contract code. The address is derived from the digest of
// code, deployer and timestamp, so redeploying the same code yields a fresh
// address.
func (e *Engine) Deploy(code, deployer string, value decimal.Decimal, timestamp int64) (string, uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", code, deployer, timestamp)))
	addr := "0x" + hex.EncodeToString(digest[:])[:40]

	c := &Contract{
		Address:   addr,
		Code:      code,
		Owner:     deployer,
		State:     make(map[string]string),
		CreatedAt: timestamp,
	}

	if _, ok := e.staged[addr]; !ok {
		raw, err := e.db.Get(database.ContractKey(addr))
		if err != nil && err != database.ErrKeyNotFound {
			return "", 0, err
		}
		e.prev[addr] = raw
	}
	e.staged[addr] = c

	log.WithField("contract", addr).
		WithField("owner", deployer).
		Info("contract deployed")

	return addr, deployGas, nil
}

// Execute dispatches one built-in function against a deployed contract.
func (e *Engine) Execute(call Call, state StateAccess) (Result, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	c, prevRaw, err := e.workingCopy(call.Contract)
	if err != nil {
		return Result{GasUsed: callGas}, err
	}

	value, err := e.dispatch(c, call, state)
	if err != nil {
		return Result{GasUsed: callGas}, err
	}

	if _, ok := e.staged[call.Contract]; !ok {
		e.prev[call.Contract] = prevRaw
	}
	e.staged[call.Contract] = c

	return Result{Value: value, GasUsed: callGas}, nil
}

// Commit writes the staged records to storage. The stage is kept until
// Accept or Rollback, so a failure higher up the commit sequence can still
// undo the writes. A partial flush reverts itself before returning.
func (e *Engine) Commit() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	for addr, c := range e.staged {
		raw, err := json.Marshal(c)
		if err == nil {
			err = e.db.Put(database.ContractKey(addr), raw)
		}

		if err != nil {
			e.undo()
			return err
		}
	}

	return nil
}

// Accept drops the stage and its undo data once the surrounding block commit
// went through.
func (e *Engine) Accept() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.staged = make(map[string]*Contract)
	e.prev = make(map[string][]byte)
}

// Rollback puts storage back to its last accepted contents and drops the
// stage. Safe to call whether or not Commit ran.
func (e *Engine) Rollback() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.undo()
	e.staged = make(map[string]*Contract)
	e.prev = make(map[string][]byte)
}

func (e *Engine) undo() {
	for addr := range e.staged {
		key := database.ContractKey(addr)

		if raw := e.prev[addr]; raw != nil {
			if err := e.db.Put(key, raw); err != nil {
				log.WithError(err).WithField("contract", addr).
					Warn("could not restore contract record")
			}
			continue
		}

		if err := e.db.Delete(key); err != nil {
			log.WithError(err).WithField("contract", addr).
				Warn("could not drop contract record")
		}
	}
}

func (e *Engine) dispatch(c *Contract, call Call, state StateAccess) (string, error) {
	switch call.Function {
	case "set":
		if len(call.Args) != 2 {
			return "", fmt.Errorf("set: want 2 args, got %d", len(call.Args))
		}

		c.State[call.Args[0]] = call.Args[1]
		return call.Args[1], nil

	case "get":
		if len(call.Args) != 1 {
			return "", fmt.Errorf("get: want 1 arg, got %d", len(call.Args))
		}

		return c.State[call.Args[0]], nil

	case "transfer":
		// Move funds held by the contract to a recipient.
		if len(call.Args) != 2 {
			return "", fmt.Errorf("transfer: want 2 args, got %d", len(call.Args))
		}

		amount, err := decimal.NewFromString(call.Args[1])
		if err != nil || amount.Sign() <= 0 {
			return "", fmt.Errorf("transfer: bad amount %q", call.Args[1])
		}

		if err := state.Debit(c.Address, amount); err != nil {
			return "", err
		}

		state.Credit(call.Args[0], amount)
		return amount.String(), nil

	case "mint":
		// Owner-gated issuance to an arbitrary address.
		if call.Caller != c.Owner {
			return "", fmt.Errorf("mint: caller %s is not the owner", call.Caller)
		}

		if len(call.Args) != 2 {
			return "", fmt.Errorf("mint: want 2 args, got %d", len(call.Args))
		}

		amount, err := decimal.NewFromString(call.Args[1])
		if err != nil || amount.Sign() <= 0 {
			return "", fmt.Errorf("mint: bad amount %q", call.Args[1])
		}

		state.Credit(call.Args[0], amount)
		return amount.String(), nil

	case "balance":
		if len(call.Args) != 1 {
			return "", fmt.Errorf("balance: want 1 arg, got %d", len(call.Args))
		}

		return state.Balance(call.Args[0]).String(), nil
	}

	return "", ErrFunctionNotFound
}

// workingCopy returns the record a call may mutate. Staged records are handed
// out directly so mutations within one batch accumulate; committed records
// come back as a fresh copy together with their stored encoding.
func (e *Engine) workingCopy(addr string) (*Contract, []byte, error) {
	if c, ok := e.staged[addr]; ok {
		return c, nil, nil
	}

	raw, err := e.db.Get(database.ContractKey(addr))
	if err == database.ErrKeyNotFound {
		return nil, nil, ErrContractNotFound
	}

	if err != nil {
		return nil, nil, err
	}

	c := new(Contract)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, nil, err
	}

	return c, raw, nil
}

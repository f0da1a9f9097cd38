// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package consensus

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "consensus")

var (
	// ErrAlreadyValidator the address is already in the set.
	ErrAlreadyValidator = errors.New("validator already exists")
	// ErrUnknownValidator the address is not in the set.
	ErrUnknownValidator = errors.New("validator not found")
	// ErrMaxValidators the set is at its configured maximum.
	ErrMaxValidators = errors.New("maximum validators reached")
	// ErrMinValidators removal would drop the active set below minimum.
	ErrMinValidators = errors.New("minimum validator count would be breached")
	// ErrNoValidators no active validator is available even after healing.
	ErrNoValidators = errors.New("no active validators")
)

// Registry is the authoritative validator set: rotation order, activity and
// reputation. The set is persisted under the validators key after every
// mutation so a restarted node resumes with the same membership.
type Registry struct {
	lock sync.RWMutex

	cfg        Config
	db         database.DB
	validators map[string]*ValidatorInfo
	order      []string
	epoch      uint64
}

// registryState is the persisted encoding.
type registryState struct {
	Validators map[string]*ValidatorInfo `json:"validators"`
	Order      []string                  `json:"order"`
	Epoch      uint64                    `json:"epoch"`
}

// NewRegistry loads the persisted validator set, if any. A nil db keeps the
// registry memory-only.
func NewRegistry(cfg Config, db database.DB) (*Registry, error) {
	r := &Registry{
		cfg:        cfg,
		db:         db,
		validators: make(map[string]*ValidatorInfo),
	}

	if db != nil {
		raw, err := db.Get(database.ValidatorsKey())

		switch err {
		case nil:
			var state registryState
			if err := json.Unmarshal(raw, &state); err != nil {
				return nil, err
			}

			r.validators = state.Validators
			r.order = state.Order
			r.epoch = state.Epoch
		case database.ErrKeyNotFound:
			// fresh node
		default:
			return nil, err
		}
	}

	log.WithField("validators", len(r.validators)).Info("registry loaded")
	return r, nil
}

// AddValidator admits a new validator. Gating the caller (addedBy must be an
// existing validator) is enforced at the node surface; the registry records
// who vouched.
func (r *Registry) AddValidator(addr, name, addedBy string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.validators[addr]; ok {
		return ErrAlreadyValidator
	}

	if len(r.validators) >= r.cfg.MaxValidators {
		return ErrMaxValidators
	}

	r.validators[addr] = newValidator(addr, name, addedBy)
	r.order = append(r.order, addr)

	log.WithField("validator", addr).
		WithField("added_by", addedBy).
		Info("validator added")

	return r.persist()
}

// RemoveValidator drops a validator entirely. Refused when removing an
// active validator would take the active count below the configured minimum;
// inactive validators can always be removed.
func (r *Registry) RemoveValidator(addr, removedBy string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	v, ok := r.validators[addr]
	if !ok {
		return ErrUnknownValidator
	}

	if v.IsActive && len(r.activeLockedNoHeal()) <= r.cfg.MinValidators {
		return ErrMinValidators
	}

	delete(r.validators, addr)

	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.WithField("validator", addr).
		WithField("removed_by", removedBy).
		Info("validator removed")

	return r.persist()
}

// Deactivate temporarily disables a validator.
func (r *Registry) Deactivate(addr, reason string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.deactivateLocked(addr, reason)
}

func (r *Registry) deactivateLocked(addr, reason string) error {
	v, ok := r.validators[addr]
	if !ok {
		return ErrUnknownValidator
	}

	v.IsActive = false

	log.WithField("validator", addr).
		WithField("reason", reason).
		Warn("validator deactivated")

	return r.persist()
}

// Activate re-enables a validator.
func (r *Registry) Activate(addr string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	v, ok := r.validators[addr]
	if !ok {
		return ErrUnknownValidator
	}

	v.IsActive = true
	log.WithField("validator", addr).Info("validator reactivated")

	return r.persist()
}

// ActiveValidators returns the active addresses in stable rotation order.
// If the set would be empty, the registry self-heals first.
func (r *Registry) ActiveValidators() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.activeLocked()
}

func (r *Registry) activeLocked() []string {
	active := r.activeLockedNoHeal()
	if len(active) == 0 && len(r.cfg.DefaultValidators) > 0 {
		r.selfHealLocked()
		active = r.activeLockedNoHeal()
	}

	return active
}

func (r *Registry) activeLockedNoHeal() []string {
	active := make([]string, 0, len(r.order))
	for _, addr := range r.order {
		if v, ok := r.validators[addr]; ok && v.IsActive {
			active = append(active, addr)
		}
	}

	return active
}

// CurrentValidator returns the validator whose turn it is at the given
// height: deterministic round-robin over the current active set.
func (r *Registry) CurrentValidator(height uint64) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	active := r.activeLocked()
	if len(active) == 0 {
		return "", ErrNoValidators
	}

	return active[height%uint64(len(active))], nil
}

// ValidateForHeight reports whether addr is active and entitled to produce
// the block at the given height.
func (r *Registry) ValidateForHeight(addr string, height uint64) bool {
	expected, err := r.CurrentValidator(height)
	if err != nil {
		return false
	}

	return expected == addr
}

// OnBlockProduced records a successful turn: counters, timing and a small
// reputation gain.
func (r *Registry) OnBlockProduced(addr string, timestamp time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()

	v, ok := r.validators[addr]
	if !ok {
		return
	}

	v.BlocksMined++
	v.LastBlockTime = timestamp.Unix()
	v.MissedBlocks = 0

	v.Reputation += producedReputationGain
	if v.Reputation > MaxReputation {
		v.Reputation = MaxReputation
	}

	if err := r.persist(); err != nil {
		log.WithError(err).Error("failed to persist validator stats")
	}
}

// OnMissedTurn penalizes a validator that failed to produce at its height.
// Enough consecutive misses, or a reputation below threshold, deactivates it.
func (r *Registry) OnMissedTurn(addr string, height uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	v, ok := r.validators[addr]
	if !ok {
		return
	}

	v.MissedBlocks++

	v.Reputation -= missedReputationLoss
	if v.Reputation < MinReputation {
		v.Reputation = MinReputation
	}

	log.WithField("validator", addr).
		WithField("height", height).
		WithField("missed", v.MissedBlocks).
		Warn("validator missed turn")

	if v.MissedBlocks >= r.cfg.MaxMissedBlocks || v.Reputation < r.cfg.ReputationThreshold {
		_ = r.deactivateLocked(addr, "poor performance")
		return
	}

	if err := r.persist(); err != nil {
		log.WithError(err).Error("failed to persist validator stats")
	}
}

// ReviewEpoch runs the per-epoch maintenance: silence-timeout deactivation,
// reputation-recovery reactivation and optional rotation of the round-robin
// order.
func (r *Registry) ReviewEpoch(height uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.epoch++

	if r.cfg.RotateValidators && len(r.order) > 1 {
		r.order = append(r.order[1:], r.order[0])
	}

	now := time.Now().Unix()
	timeout := int64(r.cfg.ValidatorTimeout / time.Second)

	for addr, v := range r.validators {
		// Validators that never produced are left alone.
		if v.IsActive && v.LastBlockTime > 0 && now-v.LastBlockTime > timeout {
			_ = r.deactivateLocked(addr, "timeout, no recent blocks")
			continue
		}

		if !v.IsActive && v.Reputation >= r.cfg.ReputationThreshold {
			v.IsActive = true
			v.MissedBlocks = 0
			log.WithField("validator", addr).Info("validator reactivated")
		}
	}

	log.WithField("epoch", r.epoch).
		WithField("height", height).
		Info("epoch review completed")

	if err := r.persist(); err != nil {
		log.WithError(err).Error("failed to persist validator set")
	}
}

// EpochLength exposes the review cadence to the chain.
func (r *Registry) EpochLength() uint64 {
	return r.cfg.EpochLength
}

// SelfHeal force-injects the configured default validator set. The scheduler
// triggers this after repeated production failures.
func (r *Registry) SelfHeal() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.selfHealLocked()
}

func (r *Registry) selfHealLocked() {
	if len(r.cfg.DefaultValidators) == 0 {
		log.Warn("self-heal requested but no default validators configured")
		return
	}

	log.WithField("defaults", len(r.cfg.DefaultValidators)).
		Warn("validator set exhausted, injecting defaults")

	for _, addr := range r.cfg.DefaultValidators {
		if v, ok := r.validators[addr]; ok {
			v.IsActive = true
			v.MissedBlocks = 0

			if v.Reputation < r.cfg.ReputationThreshold {
				v.Reputation = r.cfg.ReputationThreshold
			}

			continue
		}

		if len(r.validators) >= r.cfg.MaxValidators {
			continue
		}

		r.validators[addr] = newValidator(addr, addr, "self-heal")
		r.order = append(r.order, addr)
	}

	if err := r.persist(); err != nil {
		log.WithError(err).Error("failed to persist validator set")
	}
}

// Info returns a copy of one validator's record.
func (r *Registry) Info(addr string) (ValidatorInfo, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	v, ok := r.validators[addr]
	if !ok {
		return ValidatorInfo{}, false
	}

	return *v, true
}

// Validators returns a copy of the full set, keyed by address.
func (r *Registry) Validators() map[string]ValidatorInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make(map[string]ValidatorInfo, len(r.validators))
	for addr, v := range r.validators {
		out[addr] = *v
	}

	return out
}

// Epoch returns the current epoch counter.
func (r *Registry) Epoch() uint64 {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.epoch
}

func (r *Registry) persist() error {
	if r.db == nil {
		return nil
	}

	raw, err := json.Marshal(registryState{
		Validators: r.validators,
		Order:      r.order,
		Epoch:      r.epoch,
	})
	if err != nil {
		return err
	}

	return r.db.Put(database.ValidatorsKey(), raw)
}

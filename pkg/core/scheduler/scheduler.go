// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package scheduler

import (
	"sync"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/block"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithField("process", "scheduler")

// Producer commits blocks. Satisfied by chain.Chain.
type Producer interface {
	Produce(validator string) (*block.Block, error)
	PendingCount() int
	Height() uint64
}

// ValidatorSource resolves whose turn it is and records the outcome.
// Satisfied by consensus.Registry.
type ValidatorSource interface {
	CurrentValidator(height uint64) (string, error)
	OnMissedTurn(addr string, height uint64)
	SelfHeal()
}

// Config tunes the production loop.
type Config struct {
	// Interval is the regular block cadence.
	Interval time.Duration
	// MinSpacing is how soon after the previous block the loop may fire
	// early when transactions are waiting.
	MinSpacing time.Duration
	// ErrorBackoff is the pause after a failed production attempt.
	ErrorBackoff time.Duration
	// SelfHealAfter is how many consecutive failures trigger a registry
	// self-heal. Zero disables it.
	SelfHealAfter int
}

// DefaultConfig returns the production loop defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      15 * time.Second,
		MinSpacing:    2 * time.Second,
		ErrorBackoff:  5 * time.Second,
		SelfHealAfter: 3,
	}
}

// Scheduler drives block production on a fixed cadence, firing early when
// the mempool is non-empty. It is single-shot: once stopped it cannot be
// restarted.
type Scheduler struct {
	cfg      Config
	producer Producer
	source   ValidatorSource

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// New returns a stopped scheduler. Zero config fields fall back to defaults.
func New(cfg Config, producer Producer, source ValidatorSource) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = def.MinSpacing
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}

	return &Scheduler{
		cfg:      cfg,
		producer: producer,
		source:   source,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the production loop.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop signals the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	var (
		lastBlock time.Time
		failures  int
	)

	for {
		select {
		case <-s.quit:
			return
		case <-timer.C:
		}

		if err := s.tick(); err != nil {
			failures++
			log.WithError(err).WithField("failures", failures).
				Warn("block production failed")

			if s.cfg.SelfHealAfter > 0 && failures >= s.cfg.SelfHealAfter {
				log.Warn("repeated production failures, healing validator set")
				s.source.SelfHeal()
				failures = 0
			}
			timer.Reset(s.cfg.ErrorBackoff)
			continue
		}

		failures = 0
		lastBlock = time.Now()
		timer.Reset(s.next(lastBlock))
	}
}

// next decides how long to sleep before the following attempt. With work
// waiting in the mempool the loop only honors the minimum spacing.
func (s *Scheduler) next(lastBlock time.Time) time.Duration {
	if s.producer.PendingCount() == 0 {
		return s.cfg.Interval
	}
	wait := s.cfg.MinSpacing - time.Since(lastBlock)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// tick runs one production attempt for whoever owns the current height.
func (s *Scheduler) tick() error {
	height := s.producer.Height()

	validator, err := s.source.CurrentValidator(height)
	if err != nil {
		return err
	}

	if _, err := s.producer.Produce(validator); err != nil {
		s.source.OnMissedTurn(validator, height)
		return err
	}
	return nil
}

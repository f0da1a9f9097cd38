// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/chain"
	"github.com/dinari-network/dinari-blockchain/pkg/core/consensus"
	"github.com/dinari-network/dinari-blockchain/pkg/core/contracts"
	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	"github.com/dinari-network/dinari-blockchain/pkg/core/ledger"
	"github.com/dinari-network/dinari-blockchain/pkg/core/mempool"
	"github.com/dinari-network/dinari-blockchain/pkg/core/scheduler"
	"github.com/dinari-network/dinari-blockchain/pkg/p2p"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	cfg "github.com/dinari-network/dinari-blockchain/pkg/config"

	// database driver registration
	_ "github.com/dinari-network/dinari-blockchain/pkg/core/database/heavy"
	_ "github.com/dinari-network/dinari-blockchain/pkg/core/database/lite"
)

var log *logrus.Entry

func action(ctx *cli.Context) error {
	// check arguments
	if arguments := ctx.Args(); len(arguments) > 0 {
		return fmt.Errorf("failed to read command argument: %q", arguments[0])
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Loading all node configurations. Fail-fast if critical error occurs
	if err := cfg.Load(ctx.GlobalString(ConfigFlag.Name)); err != nil {
		log.WithError(err).Fatal("could not load config")
	}

	datadir := ctx.GlobalString(DataDirFlag.Name)
	if datadir == "" {
		datadir = "."
	}

	// Set up logging.
	// Any subsystem should be initialized after config and logger loading
	if err := setupLogging(ctx.GlobalString(VerbosityFlag.Name)); err != nil {
		return err
	}

	log.WithField("file", cfg.Get().UsedConfigFile).Info("loaded config file")
	log.WithField("network", cfg.Get().General.Network).Info("selected network")

	node, err := assemble(datadir)
	if err != nil {
		log.WithError(err).Fatal("could not assemble node")
	}

	node.sched.Start()
	log.Info("initialization complete")

	// Wait until the interrupt signal is received from an OS signal.
	<-interrupt

	node.close()

	time.Sleep(time.Second)
	log.Info("terminated")
	return nil
}

func setupLogging(verbosity string) error {
	level := cfg.Get().Logger.Level
	if verbosity != "" {
		level = verbosity
	}
	if level != "" {
		lv, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logrus.SetLevel(lv)
	}

	if cfg.Get().Logger.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if output := cfg.Get().Logger.Output; output != "" && output != "stdout" {
		logFile, err := os.Create(output + ".log")
		if err != nil {
			return err
		}
		logrus.SetOutput(logFile)
	}
	return nil
}

// node bundles everything that needs an ordered shutdown.
type node struct {
	db    database.DB
	pool  *mempool.Mempool
	sched *scheduler.Scheduler
}

func (n *node) close() {
	n.sched.Stop()
	n.pool.Close()

	if err := n.db.Close(); err != nil {
		log.WithError(err).Warn("could not close database")
	}
}

// assemble builds the component graph bottom-up: storage, executor, ledger,
// registry, mempool, chain, gossip, scheduler.
func assemble(datadir string) (*node, error) {
	r := cfg.Get()

	drv, err := database.From(r.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := drv.Open(filepath.Join(datadir, r.Database.Dir))
	if err != nil {
		return nil, err
	}

	l := ledger.New(contracts.NewEngine(db))

	registry, err := consensus.NewRegistry(consensusConfig(r), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	pool, err := mempool.New(mempool.Config{
		PoolType:    r.Mempool.PoolType,
		DiskPoolDir: filepath.Join(datadir, r.Mempool.DiskPoolDir),
		MaxTxs:      int(r.Mempool.MaxTxs),
		PreallocTxs: r.Mempool.PreallocTxs,
	}, l)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	gossip := p2p.NewGossiper(r.Network.GossipRate, p2p.NewDupeMap(0))

	c, err := chain.New(db, l, pool, registry, gossip,
		chain.Config{BlockGasLimit: r.Chain.BlockGasLimit}, genesisConfig(r))
	if err != nil {
		pool.Close()
		_ = db.Close()
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{
		Interval:      time.Duration(r.Scheduler.IntervalSecs) * time.Second,
		MinSpacing:    time.Duration(r.Scheduler.MinSpacingSecs) * time.Second,
		ErrorBackoff:  time.Duration(r.Scheduler.ErrorBackoffSecs) * time.Second,
		SelfHealAfter: r.Scheduler.SelfHealAfter,
	}, c, registry)

	return &node{db: db, pool: pool, sched: sched}, nil
}

func consensusConfig(r cfg.Registry) consensus.Config {
	c := consensus.DefaultConfig()
	c.MinValidators = r.Consensus.MinValidators
	c.MaxValidators = r.Consensus.MaxValidators
	c.EpochLength = r.Consensus.EpochLength
	c.ValidatorTimeout = time.Duration(r.Consensus.ValidatorTimeoutSecs) * time.Second
	c.ReputationThreshold = r.Consensus.ReputationThreshold
	c.MaxMissedBlocks = r.Consensus.MaxMissedBlocks
	c.RotateValidators = r.Consensus.RotateValidators
	c.DefaultValidators = r.Consensus.DefaultValidators

	if len(c.DefaultValidators) == 0 && r.Consensus.ValidatorAddress != "" {
		c.DefaultValidators = []string{r.Consensus.ValidatorAddress}
	}
	return c
}

// genesisConfig turns the configured allocations into the bootstrap
// issuance set, falling back to the default treasury grant.
func genesisConfig(r cfg.Registry) chain.Genesis {
	gen := chain.Genesis{
		Validators: r.Genesis.Validators,
		Timestamp:  r.Genesis.Timestamp,
	}

	for _, alloc := range r.Genesis.Allocations {
		amount, err := decimal.NewFromString(alloc.Amount)
		if err != nil {
			log.WithError(err).WithField("address", alloc.Address).
				Fatal("malformed genesis allocation amount")
		}
		gen.Allocations = append(gen.Allocations, chain.Allocation{
			Address: alloc.Address,
			Amount:  amount,
		})
	}

	if len(gen.Allocations) == 0 {
		amount, _ := decimal.NewFromString(cfg.DefaultGenesisSupply)
		gen.Allocations = []chain.Allocation{
			{Address: cfg.DefaultTreasuryAddress, Amount: amount},
		}
	}

	if len(gen.Validators) == 0 && r.Consensus.ValidatorAddress != "" {
		gen.Validators = []string{r.Consensus.ValidatorAddress}
	}
	return gen
}

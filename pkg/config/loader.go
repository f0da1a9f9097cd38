// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config package should avoid importing any dinari packages in order to
// prevent any cyclic-dependency issues

const (
	// current working dir
	searchPath1 = "."
	// home datadir
	searchPath2 = "$HOME/.dinari/"

	// name for the config file. Does not include extension.
	configFileName = "dinari"
)

var r *Registry

// Registry stores all loaded configurations according to the config order
// NB It should be cheap to be copied by value
type Registry struct {
	UsedConfigFile string

	// All configuration groups
	General   generalConfiguration
	Logger    loggerConfiguration
	Database  databaseConfiguration
	Mempool   mempoolConfiguration
	Consensus consensusConfiguration
	Scheduler schedulerConfiguration
	Chain     chainConfiguration
	Network   networkConfiguration
	Genesis   genesisConfiguration
}

// Load makes an attempt to read and unmarshal any configs from flag, env and
// dinari config file.
//
// It uses the following precedence order. Each item takes precedence over the item below it:
//   - flag
//   - env
//   - config
//   - default
//
// Dinari configuration file can be in form of TOML, JSON, YAML, HCL or Java
// properties config files. A non-empty confFile skips the search paths.
func Load(confFile string) error {
	r = new(Registry)
	setDefaults(r)

	if err := r.init(confFile); err != nil {
		return err
	}

	// Validation and defaulting should be done by the consumers (packages) as
	// they will be the best at knowing what they expect
	return nil
}

// Get returns registry by value in order to avoid further modifications after
// initial configuration loading
func Get() Registry {
	return *r
}

// Mock should be used only in test packages. It could be useful when a unit
// test needs to be rerun with configs different from the default ones.
func Mock(m *Registry) {
	r = m
}

func (r *Registry) init(confFile string) error {
	// Make an attempt to find dinari.toml/dinari.json/dinari.yaml in any of
	// the provided paths below
	viper.SetConfigName(configFileName)

	// search paths
	viper.AddConfigPath(searchPath1)
	viper.AddConfigPath(searchPath2)

	// Initialize and parse flags
	flagFile, err := loadFlags()
	if err != nil {
		return err
	}
	if confFile == "" {
		confFile = flagFile
	}

	// confPath is overwritten by the one from command line
	if len(confFile) > 0 {
		viper.SetConfigFile(confFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		// A node can run entirely on flags, env and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %s", err)
		}
	}

	defineENV()

	// Unmarshal all configurations from all conf levels to the registry struct
	if err := viper.Unmarshal(&r); err != nil {
		return fmt.Errorf("unable to decode into struct, %v", err)
	}

	r.UsedConfigFile = viper.ConfigFileUsed()

	return nil
}

func loadFlags() (string, error) {
	// ContinueOnError: flags owned by the outer CLI layer must not abort
	// config loading.
	pflag.CommandLine.Init("Dinari node", pflag.ContinueOnError)

	pflag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", "Dinari node")
		pflag.PrintDefaults()
	}

	// Define all supported flags.
	defineFlags()
	configFile := pflag.String("config", "", "Set path to the config file")

	// Bind all command line parameters to their corresponding file configs
	//
	// e.g CLI argument `--logger.level="warn"` will overwrite the value from
	// `[logger] level = "info"` in the loaded config file
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return "", fmt.Errorf("unable bind pflags, %v", err)
	}

	// Unknown flags belong to the CLI layer. Parse what we can.
	_ = pflag.CommandLine.Parse(os.Args[1:])

	return *configFile, nil
}

// define a set of flags as bindings to config file settings
// The settings that are needed to be passed frequently by CLI should be added here
func defineFlags() {
	_ = pflag.StringP("logger.level", "l", "", "override logger.level settings in config file")
	_ = pflag.StringP("general.network", "n", "testnet", "override general.network settings in config file")
	_ = pflag.StringP("database.dir", "b", "chain", "sets the blockchain database directory")
	_ = pflag.StringP("database.driver", "d", "", "sets the blockchain database driver")
	_ = pflag.StringP("consensus.validatoraddress", "v", "", "sets the local validator address")
	_ = pflag.Uint64P("scheduler.intervalsecs", "i", 0, "override the block production interval in seconds")
}

// define a set of environment variables as bindings to config file settings
func defineENV() {
	// Bind config key general.network to ENV var DINARI_GENERAL_NETWORK
	if err := viper.BindEnv("general.network", "DINARI_GENERAL_NETWORK"); err != nil {
		fmt.Printf("defineENV %v", err)
	}

	if err := viper.BindEnv("logger.level", "DINARI_LOGGER_LEVEL"); err != nil {
		fmt.Printf("defineENV %v", err)
	}

	if err := viper.BindEnv("consensus.validatoraddress", "DINARI_VALIDATOR_ADDRESS"); err != nil {
		fmt.Printf("defineENV %v", err)
	}
}

func setDefaults(r *Registry) {
	r.General.Network = "testnet"
	r.Logger.Level = "info"
	r.Logger.Output = "stdout"
	r.Database.Driver = "heavy"
	r.Database.Dir = "chain"
	r.Mempool.PoolType = "hashmap"
	r.Mempool.MaxTxs = 10000
	r.Consensus.MinValidators = 1
	r.Consensus.MaxValidators = 21
	r.Consensus.EpochLength = 100
	r.Consensus.ValidatorTimeoutSecs = 300
	r.Consensus.ReputationThreshold = 50
	r.Consensus.MaxMissedBlocks = 5
	r.Consensus.RotateValidators = true
	r.Scheduler.IntervalSecs = 15
	r.Scheduler.MinSpacingSecs = 2
	r.Scheduler.ErrorBackoffSecs = 5
	r.Scheduler.SelfHealAfter = 3
	r.Chain.BlockGasLimit = 10_000_000
	r.Network.GossipRate = 60
}

func init() {
	// By default Registry should be empty but not nil. In that way, consumers
	// (packages) can use their default values on unit testing
	r = new(Registry)
	setDefaults(r)
}

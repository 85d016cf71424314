// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config parses spvwalletd's command-line and file configuration,
// following the same jessevdk/go-flags network-selection pattern the
// teacher's wallet subcommand config used.
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "spvwalletd.conf"
	defaultDataDirname    = "data"
	defaultLogFilename    = "spvwalletd.log"
	defaultMaxLogRolls    = 8

	defaultMaxPeers          = 3
	defaultConnectTimeout    = 10
	defaultHandshakeTimeout  = 10
	defaultPublishTimeout    = 60
	defaultMaxOrphanHeaders  = 10000
	defaultMaxUnrelayedTxes  = 10000
)

// NetworkFlags selects exactly one of mainnet/testnet/simnet, mirroring
// the mutually-exclusive network flags the teacher's wallet CLI exposes.
type NetworkFlags struct {
	MainNet bool `long:"mainnet" description:"Use the main network"`
	TestNet bool `long:"testnet" description:"Use the test network"`
	SimNet  bool `long:"simnet" description:"Use the simulation test network"`
}

// Net resolves the selected network name, defaulting to mainnet.
func (n *NetworkFlags) Net() string {
	switch {
	case n.TestNet:
		return "testnet"
	case n.SimNet:
		return "simnet"
	default:
		return "mainnet"
	}
}

// Config is spvwalletd's full resolved configuration.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store wallet data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	NetworkFlags

	ConnectPeers []string `long:"connect" description:"Connect only to the specified peers at startup"`
	AddPeers     []string `long:"addpeer" description:"Add a peer to connect with at startup"`
	MaxPeers     int      `long:"maxpeers" description:"Max number of download-pool peers"`

	ConnectTimeoutSeconds   int `long:"conntimeout" description:"Per-peer connect timeout in seconds"`
	HandshakeTimeoutSeconds int `long:"handshaketimeout" description:"Per-peer version handshake timeout in seconds"`
	PublishTimeoutSeconds   int `long:"publishtimeout" description:"Transaction publish timeout in seconds"`

	MaxOrphanHeaders int `long:"maxorphanheaders" description:"Max orphan headers kept while syncing"`
	MaxUnrelayedTxes int `long:"maxunrelayedtxes" description:"Max unrelayed transactions tracked for GC"`

	EarliestKeyTime int64 `long:"birthday" description:"Unix timestamp of the wallet's earliest key"`

	DebugLevel string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error"`
}

// defaultHomeDir returns the OS-appropriate application data directory.
func defaultHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, ".spvwalletd")
}

// Default returns a Config populated with spvwalletd's defaults, before
// any flags or config file are applied.
func Default() *Config {
	home := defaultHomeDir()
	return &Config{
		ConfigFile:              filepath.Join(home, defaultConfigFilename),
		DataDir:                 filepath.Join(home, defaultDataDirname),
		LogDir:                  home,
		MaxPeers:                defaultMaxPeers,
		ConnectTimeoutSeconds:   defaultConnectTimeout,
		HandshakeTimeoutSeconds: defaultHandshakeTimeout,
		PublishTimeoutSeconds:   defaultPublishTimeout,
		MaxOrphanHeaders:        defaultMaxOrphanHeaders,
		MaxUnrelayedTxes:        defaultMaxUnrelayedTxes,
		DebugLevel:              "info",
	}
}

// Load parses the command line (and, if present, the resolved config
// file) into a Config seeded with Default's values.
func Load(args []string) (*Config, error) {
	cfg := Default()

	preCfg := &Config{}
	preParser := flags.NewParser(preCfg, flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	iniParser := flags.NewIniParser(flags.NewParser(cfg, flags.Default))
	if err := iniParser.ParseFile(cfg.ConfigFile); err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(err, "parsing config file")
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if !cfg.MainNet && !cfg.TestNet && !cfg.SimNet {
		cfg.MainNet = true
	} else if (cfg.MainNet && cfg.TestNet) || (cfg.MainNet && cfg.SimNet) || (cfg.TestNet && cfg.SimNet) {
		return nil, errors.New("config: mainnet, testnet and simnet are mutually exclusive")
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}
	return cfg, nil
}

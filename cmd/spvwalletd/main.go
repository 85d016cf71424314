// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kaspanet/spvwallet/addrmgr"
	"github.com/kaspanet/spvwallet/chaincfg"
	"github.com/kaspanet/spvwallet/config"
	"github.com/kaspanet/spvwallet/dnsseed"
	"github.com/kaspanet/spvwallet/logs"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/peermanager"
	"github.com/kaspanet/spvwallet/store"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/wallet"
	"github.com/kaspanet/spvwallet/wire"
)

var log = logs.Logger(logs.TagWallet)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spvwalletd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	if err := logs.InitLogRotator(filepath.Join(cfg.LogDir, "spvwalletd.log"), 8); err != nil {
		return err
	}
	if err := logs.SetLevel(cfg.DebugLevel); err != nil {
		return err
	}

	params := paramsForNet(cfg.Net())
	log.Infof("spvwalletd starting on %s", params.Name)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	w := newWallet(cfg, params, db)
	mgr := newPeerManager(cfg, params, w, db)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for _, host := range cfg.ConnectPeers {
		if err := mgr.Connect(host); err != nil {
			log.Warnf("connecting to %s: %v", host, err)
		}
	}
	if len(cfg.ConnectPeers) == 0 {
		if err := mgr.Connect(""); err != nil {
			log.Warnf("connecting to peers: %v", err)
		}
	}

	<-interrupt
	log.Infof("spvwalletd shutting down")
	mgr.Disconnect()
	return nil
}

func paramsForNet(netName string) *chaincfg.Params {
	switch netName {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "simnet":
		return &chaincfg.SimNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func newWallet(cfg *config.Config, params *chaincfg.Params, db *store.Store) *wallet.Wallet {
	seed := make([]byte, 32)
	if err := db.GetJSON("walletseed", &seed); err != nil {
		for i := range seed {
			seed[i] = byte(time.Now().UnixNano() >> uint(i%8*8))
		}
		_ = db.PutJSON("walletseed", seed)
	}

	keyChain := newDevKeyChain(params.Name, seed)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var processed int32
	callbacks := wallet.Callbacks{
		BalanceChanged: func(balance int64) {
			log.Debugf("balance changed: %d", balance)
		},
		TxAdded: func(t *txn.Transaction) {
			hash := t.Hash()
			log.Debugf("transaction added: %s", hash.String())
			if atomic.AddInt32(&processed, 1)%50 == 0 {
				log.Infof("processed %d wallet transactions", processed)
			}
		},
	}

	return wallet.New(keyChain, 20, rng, callbacks)
}

func newPeerManager(cfg *config.Config, params *chaincfg.Params, w *wallet.Wallet, db *store.Store) *peermanager.Manager {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	addressManager := addrmgr.New(rng)

	var bootstrap []addrmgr.NetAddress
	if err := db.GetJSON("peeraddrs", &bootstrap); err == nil {
		netAddrs := make([]*addrmgr.NetAddress, len(bootstrap))
		for i := range bootstrap {
			netAddrs[i] = &bootstrap[i]
		}
		addressManager.AddMany(netAddrs)
	}

	host := peermanager.Host{
		SyncStarted: func() {
			log.Infof("sync started")
		},
		SyncStopped: func(err error) {
			log.Warnf("sync stopped: %v", err)
		},
		SaveBlocks: func(replace bool, blocks []*peermanager.BlockRecord) {
			_ = db.PutJSON("headtip", blocks)
		},
		SavePeers: func(replace bool, peers []*peermanager.PeerRecord) {
			netAddrs := make([]*addrmgr.NetAddress, 0, len(peers))
			for _, p := range peers {
				ip := net.ParseIP(p.Host)
				if ip == nil {
					continue
				}
				netAddrs = append(netAddrs, &addrmgr.NetAddress{
					IP:        ip,
					Port:      p.Port,
					Services:  p.Services,
					Timestamp: p.Timestamp,
				})
			}
			addressManager.AddMany(netAddrs)
			_ = db.PutJSON("peeraddrs", addressManager.All())
		},
		NetworkIsReachable: func() bool { return true },
	}

	var mgr *peermanager.Manager
	dial := func(hostAddr string, port uint16) *peer.Peer {
		return peer.New(peer.Config{
			Host:      hostAddr,
			Port:      port,
			Listener:  mgr,
			Transport: newTCPTransport(),
		})
	}

	mgr = peermanager.New(params, w, host, dial, rng)
	mgr.SeedAddrs(toPeerRecords(addressManager.All()))

	if cfg.MaxOrphanHeaders > 0 {
		mgr.SetMaxOrphanHeaders(cfg.MaxOrphanHeaders)
	}

	if cfg.EarliestKeyTime > 0 {
		mgr.SetEarliestKeyTime(time.Unix(cfg.EarliestKeyTime, 0))
	}

	if len(params.DNSSeeds) > 0 {
		go dnsseed.Seed(params, net.LookupIP, rng, func(addrs []*wire.NetAddress) {
			converted := make([]*addrmgr.NetAddress, 0, len(addrs))
			for _, a := range addrs {
				converted = append(converted, &addrmgr.NetAddress{
					IP:        a.IP,
					Port:      a.Port,
					Services:  uint64(a.Services),
					Timestamp: a.Timestamp,
				})
			}
			addressManager.AddMany(converted)
			mgr.SeedAddrs(toPeerRecords(converted))
		})
	}

	return mgr
}

func toPeerRecords(addrs []*addrmgr.NetAddress) []peermanager.PeerRecord {
	out := make([]peermanager.PeerRecord, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, peermanager.PeerRecord{
			Host:      a.IP.String(),
			Port:      a.Port,
			Services:  a.Services,
			Timestamp: a.Timestamp,
		})
	}
	return out
}

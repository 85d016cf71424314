// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dnsseed resolves a network's DNS seed hostnames into
// candidate peer addresses. Per spec.md §4.3/§5, the first configured
// seed is queried synchronously on the goroutine that calls Seed; the
// rest are dispatched to detached worker goroutines.
package dnsseed

import (
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/kaspanet/spvwallet/chaincfg"
	"github.com/kaspanet/spvwallet/wire"
)

// LookupFunc resolves a hostname to a set of IPs. Exists so tests can
// inject a fake resolver instead of touching the network.
type LookupFunc func(host string) ([]net.IP, error)

// OnSeed is invoked once per seed hostname that resolves successfully,
// with addresses timestamped per the bias rule below.
type OnSeed func(addrs []*wire.NetAddress)

const (
	secondsIn3Days = 24 * 60 * 60 * 3
	secondsIn4Days = 24 * 60 * 60 * 4
)

// Seed resolves params.DNSSeeds. The first seed is resolved on the
// calling goroutine (synchronous per spec.md §4.3); the rest are spawned
// as detached goroutines. seedFn is invoked once per hostname that
// resolves addresses, which may therefore happen concurrently — callers
// must synchronize within seedFn if needed.
func Seed(params *chaincfg.Params, lookup LookupFunc, rng *rand.Rand, seedFn OnSeed) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(params.DNSSeeds) == 0 {
		return
	}

	resolve := func(host string) {
		seedPeers, err := lookup(host)
		if err != nil || len(seedPeers) == 0 {
			return
		}

		intPort, _ := strconv.Atoi(params.DefaultPort)
		addrs := make([]*wire.NetAddress, len(seedPeers))
		for i, ip := range seedPeers {
			// Seed with a timestamp randomly selected between 3 and 7
			// days ago, the same bias connmgr.SeedFromDNS applies, so
			// freshly-seeded peers don't dominate recency-weighted
			// selection over genuinely-recent ones.
			ts := time.Now().Add(-time.Duration(secondsIn3Days+rng.Intn(secondsIn4Days)) * time.Second)
			addrs[i] = wire.NewNetAddressTimestamp(ts, params.RequiredServices, ip, uint16(intPort))
		}
		seedFn(addrs)
	}

	resolve(params.DNSSeeds[0])

	for _, host := range params.DNSSeeds[1:] {
		host := host
		go resolve(host)
	}
}

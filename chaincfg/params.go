// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg supplies the chain-parameter contract named in
// spec.md §4.4: magic number, standard port, DNS seeds, checkpoints,
// service-bit requirements and a difficulty-verification predicate.
package chaincfg

import (
	"errors"
	"math/big"
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/wire"
)

// Checkpoint identifies a known good point in the block chain. A block
// discovered at a checkpointed height must match it bit-for-bit
// (spec.md §3, Chain invariant).
type Checkpoint struct {
	Height    uint32
	Hash      *chainhash.Hash
	Timestamp time.Time
	Bits      uint32
}

// BlockSet is the minimal read-only view of the locally known chain that
// a difficulty-verification predicate needs: header lookup by hash.
type BlockSet interface {
	HeaderByHash(hash chainhash.Hash) (*wire.BlockHeader, bool)
}

// VerifyDifficultyFunc verifies that header.Bits is the difficulty the
// chain rules require at header's height, given the blocks it
// descends from. This is the "chain-params' verifyDifficulty" hook of
// spec.md §4.3 step 4; the actual retarget algorithm is chain-specific
// and supplied by the network's Params value, not by this package.
type VerifyDifficultyFunc func(header *wire.BlockHeader, height uint32, blocks BlockSet) error

// Params defines a Bitcoin-family network by the parameters the Peer
// Manager and Wallet need to operate against it.
type Params struct {
	Name string

	Net BitcoinNet

	DefaultPort string

	// DNSSeeds lists hostnames to resolve for bootstrap peers. The first
	// is queried synchronously by dnsseed.Seed; the rest are resolved on
	// detached workers (spec.md §4.4, §5).
	DNSSeeds []string

	GenesisHash  chainhash.Hash
	GenesisBlock wire.BlockHeader

	PowLimit     *big.Int
	PowLimitBits uint32

	// BlockDifficultyInterval is the fixed block count between
	// difficulty adjustments (spec.md's BLOCK_DIFFICULTY_INTERVAL,
	// chain-dependent).
	BlockDifficultyInterval uint32

	// Checkpoints, ordered oldest to newest.
	Checkpoints []Checkpoint

	// RequiredServices are the service bits the Peer Manager requires
	// of a peer before selecting it as the download peer.
	RequiredServices wire.ServiceFlag

	// VerifyDifficulty is invoked at every difficulty-transition
	// boundary during chain verification (spec.md §4.3 step 4).
	VerifyDifficulty VerifyDifficultyFunc
}

// BitcoinNet is re-exported for convenience so callers need not import
// wire just to read Params.Net.
type BitcoinNet = wire.BitcoinNet

// CheckpointAt returns the checkpoint at height, if one is configured.
func (p *Params) CheckpointAt(height uint32) (Checkpoint, bool) {
	for _, cp := range p.Checkpoints {
		if cp.Height == height {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// IsDifficultyTransition reports whether height is a boundary at which
// the chain's difficulty may change.
func (p *Params) IsDifficultyTransition(height uint32) bool {
	if p.BlockDifficultyInterval == 0 {
		return false
	}
	return height%p.BlockDifficultyInterval == 0
}

var (
	// ErrDuplicateNet is returned by Register when a network has
	// already been registered.
	ErrDuplicateNet = errors.New("duplicate network")

	registeredNets = make(map[wire.BitcoinNet]struct{})
)

// Register records params as a known network. Library code should
// register networks during process init, mirroring dagconfig.Register.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}
	return nil
}

func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	mustRegister(&MainNetParams)
	mustRegister(&TestNet3Params)
	mustRegister(&SimNetParams)
}

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"fmt"
	"math/big"
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/wire"
)

var bigOne = big.NewInt(1)

// mainPowLimit is the highest proof of work value a block can have for
// the main network. It is the value 2^224 - 1.
var mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

const mainDifficultyInterval = 2016
const targetTimePerBlock = time.Minute * 10

func genesisHeader(bits uint32, ts time.Time) wire.BlockHeader {
	return wire.BlockHeader{
		Version:   1,
		PrevBlock: chainhash.Hash{},
		Timestamp: ts,
		Bits:      bits,
		Nonce:     0,
	}
}

var mainNetGenesis = genesisHeader(BigToCompact(mainPowLimit), time.Unix(1231006505, 0))

// standardRetarget implements the classic Bitcoin difficulty-adjustment
// rule: every BlockDifficultyInterval blocks, compare the actual time
// taken against the target and rescale the previous difficulty by that
// ratio, clamped to [1/4, 4] of the previous target.
func standardRetarget(params *Params) VerifyDifficultyFunc {
	return func(header *wire.BlockHeader, height uint32, blocks BlockSet) error {
		if !params.IsDifficultyTransition(height) {
			return nil
		}

		windowStartHeight := height - params.BlockDifficultyInterval
		prevHeader, ok := blocks.HeaderByHash(header.PrevBlock)
		if !ok {
			return fmt.Errorf("chaincfg: unknown prev block at height %d", height)
		}

		// Walk back BlockDifficultyInterval headers to find the start
		// of the retarget window. blocks is expected to expose enough
		// history to do this for any transition it is asked to verify.
		cur := prevHeader
		for h := height - 1; h > windowStartHeight; h-- {
			next, ok := blocks.HeaderByHash(cur.PrevBlock)
			if !ok {
				return fmt.Errorf("chaincfg: missing header for retarget window at height %d", h-1)
			}
			cur = next
		}

		actualTimespan := prevHeader.Timestamp.Sub(cur.Timestamp)
		targetTimespan := targetTimePerBlock * time.Duration(params.BlockDifficultyInterval)

		adjustedTimespan := actualTimespan
		if adjustedTimespan < targetTimespan/4 {
			adjustedTimespan = targetTimespan / 4
		} else if adjustedTimespan > targetTimespan*4 {
			adjustedTimespan = targetTimespan * 4
		}

		oldTarget := CompactToBig(prevHeader.Bits)
		newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(adjustedTimespan)))
		newTarget.Div(newTarget, big.NewInt(int64(targetTimespan)))
		if newTarget.Cmp(params.PowLimit) > 0 {
			newTarget = params.PowLimit
		}

		wantBits := BigToCompact(newTarget)
		if header.Bits != wantBits {
			return fmt.Errorf("chaincfg: block at height %d has bits %08x, want %08x",
				height, header.Bits, wantBits)
		}
		return nil
	}
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "8333",
	DNSSeeds: []string{
		"seed.spvwallet.example",
	},
	GenesisBlock:            mainNetGenesis,
	GenesisHash:             mainNetGenesis.BlockHash(),
	PowLimit:                mainPowLimit,
	PowLimitBits:            BigToCompact(mainPowLimit),
	BlockDifficultyInterval: mainDifficultyInterval,
	RequiredServices:        wire.SFNodeNetwork | wire.SFNodeBloom,
}

// TestNet3Params defines the network parameters for the test network.
var TestNet3Params = Params{
	Name:        "testnet3",
	Net:         wire.TestNet3,
	DefaultPort: "18333",
	DNSSeeds: []string{
		"testnet-seed.spvwallet.example",
	},
	GenesisBlock:            genesisHeader(BigToCompact(mainPowLimit), time.Unix(1296688602, 0)),
	GenesisHash:             genesisHeader(BigToCompact(mainPowLimit), time.Unix(1296688602, 0)).BlockHash(),
	PowLimit:                mainPowLimit,
	PowLimitBits:            BigToCompact(mainPowLimit),
	BlockDifficultyInterval: mainDifficultyInterval,
	RequiredServices:        wire.SFNodeNetwork | wire.SFNodeBloom,
}

// SimNetParams defines the network parameters for a private simulation
// network. There must be no DNS seeds; peers are specified explicitly.
var SimNetParams = Params{
	Name:                    "simnet",
	Net:                     wire.SimNet,
	DefaultPort:             "18555",
	DNSSeeds:                nil,
	GenesisBlock:            genesisHeader(0x207fffff, time.Unix(1401292357, 0)),
	GenesisHash:             genesisHeader(0x207fffff, time.Unix(1401292357, 0)).BlockHash(),
	PowLimit:                new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne),
	PowLimitBits:            0x207fffff,
	BlockDifficultyInterval: 144,
	RequiredServices:        wire.SFNodeNetwork,
}

func init() {
	MainNetParams.VerifyDifficulty = standardRetarget(&MainNetParams)
	TestNet3Params.VerifyDifficulty = standardRetarget(&TestNet3Params)
	SimNetParams.VerifyDifficulty = standardRetarget(&SimNetParams)
}

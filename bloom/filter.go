// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements the probabilistic filter the Peer Manager
// installs on its peers (spec.md §4.3): insertion, containment and
// serialization. The bloom-filter data structure is named an external
// collaborator in spec.md §1, but the Peer Manager's false-positive-rate
// tracking and rebuild logic need a concrete filter to drive, so this
// package ships a real, minimal implementation rather than a bare
// interface.
package bloom

import (
	"encoding/binary"
	"math"
)

// Flags control how a peer should update the filter as it finds matches.
type Flags byte

const (
	// BloomUpdateNone never adds outpoints to the filter on match.
	BloomUpdateNone Flags = 0

	// BloomUpdateAll adds the outpoint of every matched output.
	BloomUpdateAll Flags = 1

	// BloomUpdateP2PubkeyOnly only adds outpoints for P2PK/multisig
	// matches.
	BloomUpdateP2PubkeyOnly Flags = 2
)

const (
	ln2Squared = math.Ln2 * math.Ln2

	// maxFilterSize caps the serialized filter at 36KB, matching the
	// standard peer-protocol bloom filter limit.
	maxFilterSize = 36000

	// maxHashFuncs caps the number of hash rounds per insertion.
	maxHashFuncs = 50
)

// Filter is a probabilistic set used to ask peers for only the
// transactions relevant to the wallet.
type Filter struct {
	bits       []byte
	hashFuncs  uint32
	tweak      uint32
	flags      Flags
}

// NewFilter creates a filter sized for elements entries at the given
// false-positive rate, seeded with tweak (spec.md §4.3: "seed the filter
// with the peer's hash").
func NewFilter(elements int, fpRate float64, tweak uint32, flags Flags) *Filter {
	if elements <= 0 {
		elements = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.0001
	}

	dataLen := -1.0 * float64(elements) * math.Log(fpRate) / ln2Squared
	numBits := uint32(math.Min(dataLen, maxFilterSize*8))

	numHashFuncs := float64(numBits) / float64(elements) * math.Ln2
	hashFuncs := uint32(math.Min(numHashFuncs, maxHashFuncs))
	if hashFuncs < 1 {
		hashFuncs = 1
	}

	numBytes := (numBits + 7) / 8
	if numBytes == 0 {
		numBytes = 1
	}

	return &Filter{
		bits:      make([]byte, numBytes),
		hashFuncs: hashFuncs,
		tweak:     tweak,
		flags:     flags,
	}
}

// hash computes the i'th bloom hash of data using the Bitcoin murmur3
// seed convention: seed = i*0xFBA4C795 + tweak.
func (f *Filter) hash(i uint32, data []byte) uint32 {
	seed := i*0xfba4c795 + f.tweak
	return murmur3(data, seed) % (uint32(len(f.bits)) * 8)
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	if len(f.bits) == 0 {
		return
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Matches reports whether data may be a member of the filter. False
// positives are expected; false negatives are not.
func (f *Filter) Matches(data []byte) bool {
	if len(f.bits) == 0 {
		return false
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// MatchesOutPoint reports whether the outpoint (txHash||index-LE) is a
// member of the filter (spec.md §4.3: UTXO outpoints are inserted
// tx-hash ‖ index-LE).
func (f *Filter) MatchesOutPoint(txHash [32]byte, index uint32) bool {
	buf := make([]byte, 36)
	copy(buf, txHash[:])
	binary.LittleEndian.PutUint32(buf[32:], index)
	return f.Matches(buf)
}

// HashFuncs returns the number of hash rounds the filter uses, for
// serialization via the peer sendFilterload contract.
func (f *Filter) HashFuncs() uint32 { return f.hashFuncs }

// Tweak returns the filter's seed tweak.
func (f *Filter) Tweak() uint32 { return f.tweak }

// FilterFlags returns the filter's update flags.
func (f *Filter) FilterFlags() Flags { return f.flags }

// Bytes returns the raw filter bit array for serialization.
func (f *Filter) Bytes() []byte { return f.bits }

// murmur3 is the 32-bit murmur3 hash used by the standard bloom filter
// wire format.
func murmur3(data []byte, seed uint32) uint32 {
	const c1, c2 = 0xcc9e2d51, 0x1b873593
	h := seed
	nblocks := len(data) / 4

	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4:])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2

		h ^= k
		h = (h << 13) | (h >> 19)
		h = h*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
	}

	h ^= uint32(len(data))
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16

	return h
}

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
)

// BlockHeader defines the fields of a block header used to identify a
// block and tie it to its predecessor.
type BlockHeader struct {
	Version       int32
	PrevBlock     chainhash.Hash
	MerkleRoot    chainhash.Hash
	Timestamp     time.Time
	Bits          uint32
	Nonce         uint32
}

// BlockHash computes the block identifier hash for the header. Double
// SHA-256 itself is the excluded hashing collaborator, reached here only
// through chainhash.DoubleHashH.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := make([]byte, 0, 80)
	buf = appendUint32LE(buf, uint32(h.Version))
	buf = append(buf, h.PrevBlock[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = appendUint32LE(buf, uint32(h.Timestamp.Unix()))
	buf = appendUint32LE(buf, h.Bits)
	buf = appendUint32LE(buf, h.Nonce)
	return chainhash.DoubleHashH(buf)
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// PartialMerkleTree is the parsed shape of a merkleblock's embedded
// partial merkle tree. Parsing the flag/hash encoding and verifying the
// tree actually hashes to MerkleRoot is the excluded merkle-block
// collaborator (spec.md §1); MsgMerkleBlock carries the tree as
// received, and a MatchedTxHashes function supplied by that collaborator
// reduces it to the transaction hashes that matched the installed filter.
type PartialMerkleTree struct {
	NumTransactions uint32
	Hashes          []chainhash.Hash
	Flags           []byte
}

// MatchedTxHashes returns the transaction hashes the embedded partial
// merkle tree proved are present in the block, as computed by the
// collaborator that parsed it.
type MatchedTxHashes func(tree *PartialMerkleTree, root chainhash.Hash) ([]chainhash.Hash, error)

// MsgMerkleBlock implements the contract a SPV client receives from a
// peer after a bloom-filtered block request: a header plus the partial
// merkle tree naming which of the block's transactions matched the
// installed filter.
type MsgMerkleBlock struct {
	Header          BlockHeader
	TotalTx         uint32
	PartialMerkle   PartialMerkleTree
}

// BlockHash is a convenience forward to the embedded header's hash.
func (m *MsgMerkleBlock) BlockHash() chainhash.Hash {
	return m.Header.BlockHash()
}

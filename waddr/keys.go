// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddr

// Signer produces an ECDSA/secp256k1 signature over a 32-byte digest and
// exposes the matching compressed public key. It stands in for the
// excluded secp256k1 signing collaborator (spec.md §1): txn.Sign drives
// this interface but never touches curve arithmetic itself.
type Signer interface {
	// PublicKey returns the compressed public key bytes.
	PublicKey() []byte

	// Sign returns a DER-encoded signature over digest.
	Sign(digest [32]byte) ([]byte, error)

	// Wipe zeroes any in-memory key material. Called once a batch of
	// signing is complete (spec.md §4.2, SignTransaction).
	Wipe()
}

// KeyChain derives deterministic addresses and signers from a master
// public/private key pair. It stands in for the excluded BIP-32/BIP-39
// derivation collaborator (spec.md §1): the Wallet calls it by chain
// index and never performs derivation math itself.
type KeyChain interface {
	// AddressAt returns the address at the given chain/index, deriving
	// it deterministically from the master public key only.
	AddressAt(internal bool, index uint32) (Address, error)

	// SignerAt derives the private key at the given chain/index from
	// seed and returns a Signer bound to it. Returns an error if seed
	// does not match the chain's master key.
	SignerAt(internal bool, index uint32, seed []byte) (Signer, error)

	// Prefix is the network prefix addresses from this chain encode
	// with (passed through to Address.IsForPrefix / String).
	Prefix() string
}

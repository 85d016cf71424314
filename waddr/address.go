// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package waddr supplies the address encoding contract consumed by the
// Wallet and Transaction: textual addresses, and the key-material
// interfaces standing in for the excluded ECDSA/secp256k1 and BIP-32
// collaborators (spec.md §1).
package waddr

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/ripemd160"
)

// Address is the destination a transaction output may pay to.
type Address interface {
	// String returns the textual form of the address.
	String() string

	// ScriptAddress returns the raw bytes (the hash160) to embed in a
	// txout's script.
	ScriptAddress() []byte

	// IsForPrefix reports whether the address belongs to the named
	// network prefix.
	IsForPrefix(prefix string) bool
}

var (
	// ErrWrongHashLength is returned when a hash160 of the wrong size
	// is supplied to one of the address constructors.
	ErrWrongHashLength = errors.New("waddr: hash must be 20 bytes")
)

// Hash160 returns RIPEMD160(SHA256(b)), the standard pay-to-pubkey-hash
// digest. SHA-256 and RIPEMD-160 are the excluded hashing collaborators,
// consumed here only via the standard library and golang.org/x/crypto.
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	ripe := ripemd160.New()
	ripe.Write(sum[:])
	return ripe.Sum(nil)
}

// AddressPubKeyHash is a pay-to-pubkey-hash (P2PKH) address: the 75-byte
// textual address named in spec.md's data model for TxOut/TxIn.
type AddressPubKeyHash struct {
	prefix string
	hash   [ripemd160.Size]byte
}

// NewAddressPubKeyHash returns a new AddressPubKeyHash. pkHash must be 20
// bytes (a Hash160 digest).
func NewAddressPubKeyHash(prefix string, pkHash []byte) (*AddressPubKeyHash, error) {
	if len(pkHash) != ripemd160.Size {
		return nil, ErrWrongHashLength
	}
	a := &AddressPubKeyHash{prefix: prefix}
	copy(a.hash[:], pkHash)
	return a, nil
}

// NewAddressPubKeyHashFromPublicKey hashes publicKey and wraps the
// result as an AddressPubKeyHash.
func NewAddressPubKeyHashFromPublicKey(publicKey []byte, prefix string) (*AddressPubKeyHash, error) {
	return NewAddressPubKeyHash(prefix, Hash160(publicKey))
}

// String implements Address.
func (a *AddressPubKeyHash) String() string {
	return encodeAddress(a.prefix, pubKeyHashVersion, a.hash[:])
}

// ScriptAddress implements Address.
func (a *AddressPubKeyHash) ScriptAddress() []byte {
	return a.hash[:]
}

// IsForPrefix implements Address.
func (a *AddressPubKeyHash) IsForPrefix(prefix string) bool {
	return a.prefix == prefix
}

// Hash160 returns the underlying pubkey hash array.
func (a *AddressPubKeyHash) Hash160() *[ripemd160.Size]byte {
	return &a.hash
}

// AddressScriptHash is a pay-to-script-hash (P2SH) address.
type AddressScriptHash struct {
	prefix string
	hash   [ripemd160.Size]byte
}

// NewAddressScriptHashFromHash returns a new AddressScriptHash.
// scriptHash must be 20 bytes.
func NewAddressScriptHashFromHash(prefix string, scriptHash []byte) (*AddressScriptHash, error) {
	if len(scriptHash) != ripemd160.Size {
		return nil, ErrWrongHashLength
	}
	a := &AddressScriptHash{prefix: prefix}
	copy(a.hash[:], scriptHash)
	return a, nil
}

// String implements Address.
func (a *AddressScriptHash) String() string {
	return encodeAddress(a.prefix, scriptHashVersion, a.hash[:])
}

// ScriptAddress implements Address.
func (a *AddressScriptHash) ScriptAddress() []byte {
	return a.hash[:]
}

// IsForPrefix implements Address.
func (a *AddressScriptHash) IsForPrefix(prefix string) bool {
	return a.prefix == prefix
}

const (
	pubKeyHashVersion byte = 0x00
	scriptHashVersion byte = 0x05
)

// encodeAddress renders a textual address. Base58Check encoding is the
// excluded collaborator (spec.md §1); this wraps it with a small,
// dependency-free stand-in so the package is self-contained for tests
// that only need stable, round-trippable address strings, not genuine
// mainnet-compatible encoding.
func encodeAddress(prefix string, version byte, hash []byte) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 0, len(prefix)+4+len(hash)*2)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, hextable[version>>4], hextable[version&0x0f])
	buf = append(buf, ':')
	for _, b := range hash {
		buf = append(buf, hextable[b>>4], hextable[b&0x0f])
	}
	return string(buf)
}

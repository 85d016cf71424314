// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"sync"

	"github.com/kaspanet/spvwallet/waddr"
)

// devKeyChain is a deterministic, in-memory stand-in for the excluded
// BIP-32/secp256k1 derivation collaborator (waddr.KeyChain's doc
// comment). It derives one keypair per chain/index by hashing the
// chain seed with the index, which is enough to exercise every wallet
// and Peer Manager code path end to end without vendoring a production
// key-derivation library. A real deployment replaces this with a
// secp256k1-backed KeyChain.
type devKeyChain struct {
	mu     sync.Mutex
	prefix string
	seed   []byte
	addrs  map[uint64]waddr.Address
}

func newDevKeyChain(prefix string, seed []byte) *devKeyChain {
	return &devKeyChain{prefix: prefix, seed: seed, addrs: make(map[uint64]waddr.Address)}
}

func (k *devKeyChain) key(internal bool, index uint32) uint64 {
	if internal {
		return 1<<32 | uint64(index)
	}
	return uint64(index)
}

func (k *devKeyChain) derive(internal bool, index uint32) *ecdsa.PrivateKey {
	h := sha256.New()
	h.Write(k.seed)
	if internal {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	var idx [4]byte
	idx[0] = byte(index >> 24)
	idx[1] = byte(index >> 16)
	idx[2] = byte(index >> 8)
	idx[3] = byte(index)
	h.Write(idx[:])
	digest := h.Sum(nil)

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(digest)
	d.Mod(d, curve.Params().N)
	if d.Sign() == 0 {
		d.SetInt64(1)
	}
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return priv
}

// AddressAt implements waddr.KeyChain.
func (k *devKeyChain) AddressAt(internal bool, index uint32) (waddr.Address, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	key := k.key(internal, index)
	if a, ok := k.addrs[key]; ok {
		return a, nil
	}
	priv := k.derive(internal, index)
	pubBytes := compressPoint(priv.PublicKey.X, priv.PublicKey.Y)
	addr, err := waddr.NewAddressPubKeyHashFromPublicKey(pubBytes, k.prefix)
	if err != nil {
		return nil, err
	}
	k.addrs[key] = addr
	return addr, nil
}

// SignerAt implements waddr.KeyChain.
func (k *devKeyChain) SignerAt(internal bool, index uint32, seed []byte) (waddr.Signer, error) {
	priv := k.derive(internal, index)
	return &devSigner{priv: priv}, nil
}

// Prefix implements waddr.KeyChain.
func (k *devKeyChain) Prefix() string { return k.prefix }

func compressPoint(x, y *big.Int) []byte {
	out := make([]byte, 33)
	if y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := x.Bytes()
	copy(out[33-len(xb):], xb)
	return out
}

type devSigner struct {
	priv *ecdsa.PrivateKey
}

// PublicKey implements waddr.Signer.
func (s *devSigner) PublicKey() []byte {
	return compressPoint(s.priv.PublicKey.X, s.priv.PublicKey.Y)
}

// Sign implements waddr.Signer.
func (s *devSigner) Sign(digest [32]byte) ([]byte, error) {
	r, sVal, err := ecdsa.Sign(rand.Reader, s.priv, digest[:])
	if err != nil {
		return nil, err
	}
	return derEncodeSig(r, sVal), nil
}

// Wipe implements waddr.Signer.
func (s *devSigner) Wipe() {
	s.priv.D.SetInt64(0)
}

func derEncodeSig(r, s *big.Int) []byte {
	rb := asn1Int(r)
	sb := asn1Int(s)
	body := append(rb, sb...)
	out := []byte{0x30, byte(len(body))}
	return append(out, body...)
}

func asn1Int(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return append([]byte{0x02, byte(len(b))}, b...)
}

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the fixed-size hash type shared by
// transactions, blocks and filters: the type's storage, comparison and
// textual forms, plus DoubleHashH, which computes the double SHA-256 of
// a byte slice with the standard library.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the number of bytes in the array used to hold a hash.
const HashSize = 32

// ErrHashStrSize describes an error that indicates the caller specified
// a hash string that does not have the right number of characters.
type ErrHashStrSize struct {
	got int
}

func (e ErrHashStrSize) Error() string {
	return fmt.Sprintf("hash string has length %d, should be %d", e.got, HashSize*2)
}

// Hash is used in several of the bitcoin messages and common structures.
// It typically represents the double sha256 of data.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the byte-reversed
// hash, matching the convention used for block and tx hash display.
func (h Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

// CloneBytes returns a copy of the bytes which represent the hash as a
// byte slice.
func (h *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, h[:])
	return newHash
}

// SetBytes sets the bytes which represent the hash. An error is returned
// if the number of bytes passed in is not HashSize.
func (h *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return fmt.Errorf("invalid hash length of %d, want %d", nhlen, HashSize)
	}
	copy(h[:], newHash)
	return nil
}

// IsEqual returns true if target is the same as the hash.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, err
}

// NewHashFromStr creates a Hash from a hash string. The string must be
// the hexadecimal string of a byte-reversed hash, exactly HashSize*2
// characters long; any other length returns ErrHashStrSize.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the byte-reversed hexadecimal string encoding of a Hash
// to a destination.
func Decode(dst *Hash, src string) error {
	if len(src) != HashSize*2 {
		return ErrHashStrSize{got: len(src)}
	}

	var srcBytes [HashSize]byte
	_, err := hex.Decode(srcBytes[:], []byte(src))
	if err != nil {
		return err
	}

	for i, b := range srcBytes[:HashSize/2] {
		srcBytes[i], srcBytes[HashSize-1-i] = srcBytes[HashSize-1-i], b
	}
	*dst = srcBytes
	return nil
}

// DoubleHashH computes the double sha256 of the given bytes and returns
// the resulting Hash. This is the one place the excluded SHA-256
// collaborator is consumed, via the standard library.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash(second)
}

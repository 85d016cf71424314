// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/kaspanet/spvwallet/chainhash"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name string
		in   chainhash.Hash
		want string
	}{
		{
			name: "zero hash",
			in:   chainhash.Hash{},
			want: strings.Repeat("00", chainhash.HashSize),
		},
		{
			name: "leading byte set is displayed last",
			in:   chainhash.Hash{0x01},
			want: strings.Repeat("00", chainhash.HashSize-1) + "01",
		},
	}

	for _, test := range tests {
		got := test.in.String()
		if got != test.want {
			t.Errorf("%s: String() = %s, want %s\n%s", test.name, got, test.want, spew.Sdump(test.in))
		}
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	var h chainhash.Hash
	for i := range h {
		h[i] = byte(i)
	}

	got, err := chainhash.NewHashFromStr(h.String())
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}
	if !got.IsEqual(&h) {
		t.Errorf("round trip mismatch: got %s, want %s", got, spew.Sdump(h))
	}
}

func TestNewHashFromStrBadSize(t *testing.T) {
	_, err := chainhash.NewHashFromStr("deadbeef")
	if err == nil {
		t.Fatal("expected ErrHashStrSize, got nil")
	}
	if _, ok := err.(chainhash.ErrHashStrSize); !ok {
		t.Errorf("expected ErrHashStrSize, got %T", err)
	}
}

func TestSetBytesBadLength(t *testing.T) {
	var h chainhash.Hash
	if err := h.SetBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error setting undersized byte slice")
	}
}

func TestIsEqualNilHandling(t *testing.T) {
	var a, b *chainhash.Hash
	if !a.IsEqual(b) {
		t.Error("two nil hashes should be equal")
	}
	h := chainhash.Hash{0x01}
	if h.IsEqual(nil) {
		t.Error("non-nil hash should not equal nil")
	}
}

func TestDoubleHashHDeterministic(t *testing.T) {
	data := []byte("spvwallet")
	h1 := chainhash.DoubleHashH(data)
	h2 := chainhash.DoubleHashH(data)
	if !bytes.Equal(h1[:], h2[:]) {
		t.Errorf("DoubleHashH not deterministic: %s vs %s", h1, h2)
	}

	other := chainhash.DoubleHashH([]byte("different"))
	if h1.IsEqual(&other) {
		t.Error("distinct inputs produced the same hash")
	}
}

func TestCloneBytesIsIndependentCopy(t *testing.T) {
	h := chainhash.Hash{0xAA}
	clone := h.CloneBytes()
	clone[0] = 0xBB
	if h[0] != 0xAA {
		t.Error("mutating CloneBytes output mutated the original hash")
	}
}

// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddr_test

import (
	"bytes"
	"testing"

	"github.com/kaspanet/spvwallet/waddr"
)

func TestHash160Length(t *testing.T) {
	h := waddr.Hash160([]byte("a public key"))
	if len(h) != 20 {
		t.Fatalf("Hash160 returned %d bytes, want 20", len(h))
	}
}

func TestNewAddressPubKeyHashRejectsWrongLength(t *testing.T) {
	_, err := waddr.NewAddressPubKeyHash("test", []byte{0x01, 0x02})
	if err != waddr.ErrWrongHashLength {
		t.Fatalf("got err %v, want ErrWrongHashLength", err)
	}
}

func TestAddressPubKeyHashRoundTrip(t *testing.T) {
	hash := bytes.Repeat([]byte{0xAB}, 20)
	addr, err := waddr.NewAddressPubKeyHash("mainnet", hash)
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}

	if !bytes.Equal(addr.ScriptAddress(), hash) {
		t.Errorf("ScriptAddress() = %x, want %x", addr.ScriptAddress(), hash)
	}
	if !addr.IsForPrefix("mainnet") {
		t.Error("IsForPrefix(\"mainnet\") = false, want true")
	}
	if addr.IsForPrefix("testnet") {
		t.Error("IsForPrefix(\"testnet\") = true, want false")
	}
	if addr.String() == "" {
		t.Error("String() returned empty address")
	}
}

func TestNewAddressPubKeyHashFromPublicKeyIsDeterministic(t *testing.T) {
	pub := bytes.Repeat([]byte{0x02}, 33)
	a1, err := waddr.NewAddressPubKeyHashFromPublicKey(pub, "test")
	if err != nil {
		t.Fatalf("NewAddressPubKeyHashFromPublicKey: %v", err)
	}
	a2, err := waddr.NewAddressPubKeyHashFromPublicKey(pub, "test")
	if err != nil {
		t.Fatalf("NewAddressPubKeyHashFromPublicKey: %v", err)
	}
	if a1.String() != a2.String() {
		t.Error("deriving an address from the same public key twice produced different addresses")
	}
}

func TestAddressScriptHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0xCD}, 20)
	addr, err := waddr.NewAddressScriptHashFromHash("test", hash)
	if err != nil {
		t.Fatalf("NewAddressScriptHashFromHash: %v", err)
	}
	if !bytes.Equal(addr.ScriptAddress(), hash) {
		t.Errorf("ScriptAddress() = %x, want %x", addr.ScriptAddress(), hash)
	}
}

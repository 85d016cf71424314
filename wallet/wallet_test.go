// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/waddr"
	"github.com/kaspanet/spvwallet/wallet"
)

// fakeAddress is a minimal waddr.Address for tests that only need a
// stable, comparable identity, not real script encoding.
type fakeAddress struct {
	id string
}

func (a *fakeAddress) String() string            { return a.id }
func (a *fakeAddress) ScriptAddress() []byte      { return []byte(a.id) }
func (a *fakeAddress) IsForPrefix(p string) bool  { return true }

// fakeKeyChain derives one fakeAddress per chain/index deterministically,
// standing in for a real waddr.KeyChain in tests that never need to sign.
type fakeKeyChain struct {
	prefix string
}

func (k *fakeKeyChain) AddressAt(internal bool, index uint32) (waddr.Address, error) {
	return &fakeAddress{id: fmt.Sprintf("%s-%v-%d", k.prefix, internal, index)}, nil
}

func (k *fakeKeyChain) SignerAt(internal bool, index uint32, seed []byte) (waddr.Signer, error) {
	return nil, fmt.Errorf("fakeKeyChain: signing not supported")
}

func (k *fakeKeyChain) Prefix() string { return k.prefix }

func newTestWallet(t *testing.T, gapLimit uint32) *wallet.Wallet {
	t.Helper()
	return wallet.New(&fakeKeyChain{prefix: "test"}, gapLimit, rand.New(rand.NewSource(1)), wallet.Callbacks{})
}

func TestNewDerivesGapLimitAddresses(t *testing.T) {
	w := newTestWallet(t, 5)
	addrs := w.AllAddrs()
	if len(addrs) != 10 {
		t.Fatalf("AllAddrs() = %d addresses, want 10 (5 external + 5 internal)", len(addrs))
	}
}

func TestReceiveAddressIsFirstExternal(t *testing.T) {
	w := newTestWallet(t, 3)
	addr := w.ReceiveAddress()
	if addr == nil {
		t.Fatal("ReceiveAddress returned nil")
	}
	if !w.ContainsAddress(addr) {
		t.Error("ReceiveAddress returned an address the wallet does not recognize as its own")
	}
}

func TestRegisterTransactionCreditsBalance(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()

	tx := txn.New(nil, []*txn.TxOut{{Amount: 50000, Address: recv}}, 0)
	tx.BlockHeight = 100
	if _, err := tx.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	touched := w.RegisterTransaction(tx)
	if !touched {
		t.Fatal("RegisterTransaction reported false for a tx paying a wallet address")
	}
	if got := w.Balance(); got != 50000 {
		t.Errorf("Balance() = %d, want 50000", got)
	}
	if !w.AddressIsUsed(recv) {
		t.Error("AddressIsUsed(recv) = false after a tx paid it")
	}
}

func TestRegisterTransactionIgnoresForeignTx(t *testing.T) {
	w := newTestWallet(t, 5)
	foreign := &fakeAddress{id: "not-ours"}
	tx := txn.New(nil, []*txn.TxOut{{Amount: 1000, Address: foreign}}, 0)
	tx.BlockHeight = 100
	if _, err := tx.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if w.RegisterTransaction(tx) {
		t.Error("RegisterTransaction should report false for a tx touching no wallet address")
	}
	if w.Balance() != 0 {
		t.Errorf("Balance() = %d, want 0", w.Balance())
	}
}

func TestRegisterTransactionIsIdempotent(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()
	tx := txn.New(nil, []*txn.TxOut{{Amount: 1000, Address: recv}}, 0)
	tx.BlockHeight = 100
	if _, err := tx.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	w.RegisterTransaction(tx)
	w.RegisterTransaction(tx)

	if got := w.Balance(); got != 1000 {
		t.Errorf("Balance() after registering the same tx twice = %d, want 1000", got)
	}
	if got := len(w.Transactions()); got != 1 {
		t.Errorf("Transactions() has %d entries, want 1", got)
	}
}

func TestRemoveTransactionDebitsBalance(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()
	tx := txn.New(nil, []*txn.TxOut{{Amount: 1000, Address: recv}}, 0)
	tx.BlockHeight = txn.TxUnconfirmed
	if _, err := tx.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	w.RegisterTransaction(tx)
	if w.Balance() != 1000 {
		t.Fatalf("precondition: Balance() = %d, want 1000", w.Balance())
	}

	w.RemoveTransaction(tx.Hash())
	if got := w.Balance(); got != 0 {
		t.Errorf("Balance() after RemoveTransaction = %d, want 0", got)
	}
	if w.ContainsTransaction(tx.Hash()) {
		t.Error("ContainsTransaction is still true after RemoveTransaction")
	}
}

func TestRemoveTransactionCascadesToDependents(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()

	parent := txn.New(nil, []*txn.TxOut{{Amount: 10000, Address: recv}}, 0)
	parent.BlockHeight = txn.TxUnconfirmed
	if _, err := parent.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.RegisterTransaction(parent)

	change := w.UnusedAddrs(true, 1)[0]
	child := txn.New(
		[]*txn.TxIn{{PrevTxHash: parent.Hash(), PrevIndex: 0, Amount: 10000, Address: recv}},
		[]*txn.TxOut{{Amount: 9000, Address: change}},
		0,
	)
	child.BlockHeight = txn.TxUnconfirmed
	if _, err := child.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.RegisterTransaction(child)

	if got := w.Balance(); got != 9000 {
		t.Fatalf("precondition: Balance() = %d, want 9000", got)
	}

	w.RemoveTransaction(parent.Hash())

	if w.ContainsTransaction(parent.Hash()) {
		t.Error("parent still present after RemoveTransaction")
	}
	if w.ContainsTransaction(child.Hash()) {
		t.Error("child spending the removed parent should have been removed too")
	}
	if got := w.Balance(); got != 0 {
		t.Errorf("Balance() after cascading removal = %d, want 0", got)
	}
}

func TestUpdateTransactionsSetsHeightAndTimestamp(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()
	tx := txn.New(nil, []*txn.TxOut{{Amount: 1000, Address: recv}}, 0)
	tx.BlockHeight = txn.TxUnconfirmed
	if _, err := tx.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.RegisterTransaction(tx)

	w.UpdateTransactions([]chainhash.Hash{tx.Hash()}, 42, 123456)

	txs := w.Transactions()
	if len(txs) != 1 {
		t.Fatalf("Transactions() has %d entries, want 1", len(txs))
	}
	if txs[0].BlockHeight != 42 || txs[0].Timestamp != 123456 {
		t.Errorf("tx after UpdateTransactions = height %d, timestamp %d, want 42/123456",
			txs[0].BlockHeight, txs[0].Timestamp)
	}
}

func TestTxUnconfirmedBeforeFiltersByHeight(t *testing.T) {
	w := newTestWallet(t, 5)
	recv := w.ReceiveAddress()

	confirmed := txn.New(nil, []*txn.TxOut{{Amount: 1000, Address: recv}}, 0)
	confirmed.BlockHeight = 10
	if _, err := confirmed.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.RegisterTransaction(confirmed)

	unconfirmed := txn.New(nil, []*txn.TxOut{{Amount: 2000, Address: recv}}, 1)
	unconfirmed.BlockHeight = txn.TxUnconfirmed
	if _, err := unconfirmed.Serialize(); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.RegisterTransaction(unconfirmed)

	got := w.TxUnconfirmedBefore(txn.TxUnconfirmed)
	if len(got) != 1 || got[0].Hash() != unconfirmed.Hash() {
		t.Errorf("TxUnconfirmedBefore(TxUnconfirmed) returned %d txs, want exactly the unconfirmed one", len(got))
	}

	got = w.TxUnconfirmedBefore(5)
	if len(got) != 2 {
		t.Errorf("TxUnconfirmedBefore(5) returned %d txs, want both (confirmed at 10 and unconfirmed)", len(got))
	}
}

func TestSetFeePerKb(t *testing.T) {
	w := newTestWallet(t, 5)
	w.SetFeePerKb(5000)
	if got := w.FeePerKb(); got != 5000 {
		t.Errorf("FeePerKb() = %d, want 5000", got)
	}
}

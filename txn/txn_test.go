// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txn_test

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/waddr"
)

// fakeSigner is a minimal waddr.Signer good enough to drive txn.Sign
// without touching real curve arithmetic.
type fakeSigner struct {
	pub    []byte
	wiped  bool
}

func (s *fakeSigner) PublicKey() []byte { return s.pub }

func (s *fakeSigner) Sign(digest [32]byte) ([]byte, error) {
	// Not a real signature, just a deterministic stand-in derived from
	// the digest, enough to exercise scriptSig construction.
	return append([]byte{0x30, 0x02}, digest[:2]...), nil
}

func (s *fakeSigner) Wipe() { s.wiped = true }

func p2pkhScript(hash160 []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x76) // OP_DUP
	buf.WriteByte(0xa9) // OP_HASH160
	buf.Write(hash160)
	buf.WriteByte(0x88) // OP_EQUALVERIFY
	buf.WriteByte(0xac) // OP_CHECKSIG
	return buf.Bytes()
}

func newTestInput(addr waddr.Address, amount int64) *txn.TxIn {
	return &txn.TxIn{
		PrevTxHash:  chainhash.Hash{0x01},
		PrevIndex:   0,
		Amount:      amount,
		Sequence:    0xffffffff,
		PriorScript: p2pkhScript(addr.ScriptAddress()),
	}
}

func TestNewSetsUnconfirmed(t *testing.T) {
	tx := txn.New(nil, nil, 0)
	if tx.BlockHeight != txn.TxUnconfirmed {
		t.Errorf("New() BlockHeight = %d, want TxUnconfirmed", tx.BlockHeight)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	addr, err := waddr.NewAddressPubKeyHash("test", bytes.Repeat([]byte{0x11}, 20))
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}

	in := newTestInput(addr, 5000)
	out := &txn.TxOut{Amount: 4500, Script: p2pkhScript(addr.ScriptAddress())}
	tx := txn.New([]*txn.TxIn{in}, []*txn.TxOut{out}, 0)

	data, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	parsed, err := txn.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.LockTime != tx.LockTime {
		t.Errorf("LockTime = %d, want %d", parsed.LockTime, tx.LockTime)
	}
	if len(parsed.Inputs) != 1 || len(parsed.Outputs) != 1 {
		t.Fatalf("unexpected shape after round trip: %s", spew.Sdump(parsed))
	}
	if parsed.Outputs[0].Amount != out.Amount {
		t.Errorf("Outputs[0].Amount = %d, want %d", parsed.Outputs[0].Amount, out.Amount)
	}
	if parsed.Hash() != tx.Hash() {
		t.Errorf("hash mismatch after round trip: got %s, want %s", parsed.Hash(), tx.Hash())
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	if _, err := txn.Parse([]byte{0x01, 0x00, 0x00}); err == nil {
		t.Fatal("expected an error parsing a truncated transaction")
	}
}

func TestParseRejectsZeroInputs(t *testing.T) {
	tx := txn.New(nil, []*txn.TxOut{{Amount: 100, Script: []byte{0x01}}}, 0)
	data, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := txn.Parse(data); err == nil {
		t.Fatal("expected an error parsing a transaction with zero inputs")
	}
}

func TestSignMarksIsSigned(t *testing.T) {
	addr, err := waddr.NewAddressPubKeyHash("test", bytes.Repeat([]byte{0x22}, 20))
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}
	in := newTestInput(addr, 5000)
	out := &txn.TxOut{Amount: 4500, Script: p2pkhScript(addr.ScriptAddress())}
	tx := txn.New([]*txn.TxIn{in}, []*txn.TxOut{out}, 0)

	if tx.IsSigned() {
		t.Fatal("freshly constructed transaction should not be signed")
	}

	signer := &fakeSigner{pub: bytes.Repeat([]byte{0x03}, 33)}
	candidates := []txn.Candidate{{Address: addr, Signer: signer}}
	if err := txn.Sign(tx, candidates, txn.SigHashAll); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !tx.IsSigned() {
		t.Error("Sign did not mark the transaction as fully signed")
	}
	if len(in.ScriptSig) == 0 {
		t.Error("Sign did not populate the input's scriptSig")
	}
}

func TestSignLeavesUnmatchedInputsUnsigned(t *testing.T) {
	owned, err := waddr.NewAddressPubKeyHash("test", bytes.Repeat([]byte{0x33}, 20))
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}
	foreign, err := waddr.NewAddressPubKeyHash("test", bytes.Repeat([]byte{0x44}, 20))
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}

	ownedIn := newTestInput(owned, 1000)
	foreignIn := newTestInput(foreign, 1000)
	out := &txn.TxOut{Amount: 1500, Script: p2pkhScript(owned.ScriptAddress())}
	tx := txn.New([]*txn.TxIn{ownedIn, foreignIn}, []*txn.TxOut{out}, 0)

	signer := &fakeSigner{pub: bytes.Repeat([]byte{0x03}, 33)}
	candidates := []txn.Candidate{{Address: owned, Signer: signer}}
	if err := txn.Sign(tx, candidates, txn.SigHashAll); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if tx.IsSigned() {
		t.Error("IsSigned should be false when one input has no matching candidate")
	}
	if len(ownedIn.Signature) == 0 {
		t.Error("the input matching a candidate should still have been signed")
	}
	if len(foreignIn.Signature) != 0 {
		t.Error("the input with no matching candidate should remain unsigned")
	}
}

func TestFeeForSizeUsesHigherOfStandardOrScaled(t *testing.T) {
	size := 250
	standard := txn.StandardFee(size)
	if got := txn.FeeForSize(0, size); got != standard {
		t.Errorf("FeeForSize(0, %d) = %d, want the standard fee %d", size, got, standard)
	}

	// A very high advertised rate should push the fee above the
	// standard floor.
	high := txn.FeeForSize(1_000_000, size)
	if high <= standard {
		t.Errorf("FeeForSize with a high feePerKb = %d, want more than the standard fee %d", high, standard)
	}
}

func TestSizeUsesEstimateForUnsignedInputs(t *testing.T) {
	in := &txn.TxIn{PrevTxHash: chainhash.Hash{0x01}}
	out := &txn.TxOut{Amount: 1000, Script: bytes.Repeat([]byte{0x01}, 25)}
	tx := txn.New([]*txn.TxIn{in}, []*txn.TxOut{out}, 0)

	estimate := txn.TxOverheadEstimate(1, 1)
	if got := tx.Size(); got != estimate {
		t.Errorf("Size() on an unsigned tx = %d, want the overhead estimate %d", got, estimate)
	}
}

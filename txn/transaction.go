// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txn implements the value record, serialization, signing and
// size/fee helpers of spec.md §4.1: construction, canonical and BIP-143
// serialization, signing against a set of candidate keys, and size/fee
// estimation.
package txn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/waddr"
	"github.com/kaspanet/spvwallet/wire"
)

// TxUnconfirmed is the sentinel block height for a transaction that has
// not yet been confirmed in a block (spec.md's TX_UNCONFIRMED).
const TxUnconfirmed = math.MaxInt32

// TxMaxSize is the largest serialized transaction size the Wallet will
// build or accept as non-pending.
const TxMaxSize = 100000

// TxFeePerKB is the default fee rate, in satoshis per kilobyte.
const TxFeePerKB = 1000

// TxMinOutputAmount is the dust threshold below which an output makes a
// transaction pending (spec.md §3).
const TxMinOutputAmount = 546

// TxMaxLockHeight is the boundary below which LockTime is interpreted as
// a block height rather than a unix timestamp (spec.md §3).
const TxMaxLockHeight = 500000000

// Hash type flags for the signing digest (spec.md §4.1).
const (
	SigHashAll          uint32 = 1
	SigHashNone         uint32 = 2
	SigHashSingle       uint32 = 3
	SigHashAnyOneCanPay uint32 = 0x80
	SigHashForkID       uint32 = 0x40
)

// rbfSequenceThreshold is the largest sequence number that signals
// replace-by-fee per BIP-125: any input sequence below this value
// indicates the sender is opting into RBF.
const rbfSequenceThreshold = 0xfffffffe

// TxOut is a transaction output: an amount and the script that locks it.
type TxOut struct {
	Amount  int64
	Script  []byte
	Address waddr.Address // derived, not serialized
}

// TxIn is a transaction input: a previous outpoint plus unlocking data.
type TxIn struct {
	PrevTxHash  chainhash.Hash
	PrevIndex   uint32
	Amount      int64 // may be 0 if unknown; only used in the BIP-143 digest path
	ScriptSig   []byte
	Signature   []byte // set once Sign has produced a signature for this input
	Sequence    uint32
	Address     waddr.Address // derived, not serialized

	// PriorScript is the scriptPubKey of the output this input spends.
	// It is not part of the wire serialization; it is the scriptCode
	// used by both sighash algorithms and is populated by the caller
	// (the Wallet knows it from the UTXO being spent) before signing.
	PriorScript []byte
}

// IsRBF reports whether the input's sequence number signals
// replace-by-fee.
func (in *TxIn) IsRBF() bool {
	return in.Sequence < rbfSequenceThreshold
}

// EnablesLockTime reports whether the input's sequence number is final
// enough to leave the transaction's LockTime in effect (any value other
// than the max sequence keeps it live, spec.md §3).
func (in *TxIn) EnablesLockTime() bool {
	return in.Sequence < math.MaxUint32
}

// Transaction is the value record of spec.md's data model: version,
// inputs, outputs, lock time, plus the derived hash/height/timestamp the
// Wallet tracks once the transaction is registered.
type Transaction struct {
	Version     int32
	Inputs      []*TxIn
	Outputs     []*TxOut
	LockTime    uint32
	BlockHeight uint32
	Timestamp   uint32

	hash    chainhash.Hash
	hasHash bool
}

// New returns an unsigned, unregistered transaction with the given
// inputs and outputs.
func New(inputs []*TxIn, outputs []*TxOut, lockTime uint32) *Transaction {
	return &Transaction{
		Version:     1,
		Inputs:      inputs,
		Outputs:     outputs,
		LockTime:    lockTime,
		BlockHeight: TxUnconfirmed,
	}
}

// Hash returns the transaction's double-SHA256 id. It is only valid
// after Serialize (directly or via Sign) has been called at least once;
// calling it before that returns the zero hash.
func (t *Transaction) Hash() chainhash.Hash {
	return t.hash
}

// IsSigned reports whether every input carries a signature.
func (t *Transaction) IsSigned() bool {
	if len(t.Inputs) == 0 {
		return false
	}
	for _, in := range t.Inputs {
		if len(in.Signature) == 0 {
			return false
		}
	}
	return true
}

// Serialize writes the canonical legacy encoding of the transaction:
// version, inputs, outputs, lock time, each length-prefixed with the
// Bitcoin variable-length integer (spec.md §4.1). As a side effect it
// (re)computes and caches the transaction hash.
func (t *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.serializeTo(&buf, -1, 0); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	t.hash = chainhash.DoubleHashH(b)
	t.hasHash = true
	return b, nil
}

// serializeTo writes the transaction to w. When sigHashIndex >= 0, the
// serialization is for the legacy sighash of that input: every other
// input's script is blanked, and sigHashIndex's script is replaced by
// scriptCode.
func (t *Transaction) serializeTo(w *bytes.Buffer, sigHashIndex int, hashType uint32) error {
	writeUint32LE(w, uint32(t.Version))

	if err := wire.WriteVarInt(w, uint64(len(t.Inputs))); err != nil {
		return err
	}
	for i, in := range t.Inputs {
		w.Write(in.PrevTxHash[:])
		writeUint32LE(w, in.PrevIndex)

		script := in.ScriptSig
		if sigHashIndex >= 0 {
			if i == sigHashIndex {
				script = in.PriorScript
			} else {
				script = nil
			}
		} else if len(in.Signature) == 0 {
			script = nil
		}
		if err := wire.WriteVarInt(w, uint64(len(script))); err != nil {
			return err
		}
		w.Write(script)

		writeUint32LE(w, in.Sequence)
	}

	outs := t.Outputs
	if sigHashIndex >= 0 {
		outs = pruneOutputsForSigHash(t.Outputs, sigHashIndex, hashType)
	}
	if err := wire.WriteVarInt(w, uint64(len(outs))); err != nil {
		return err
	}
	for _, out := range outs {
		writeUint64LE(w, uint64(out.Amount))
		if err := wire.WriteVarInt(w, uint64(len(out.Script))); err != nil {
			return err
		}
		w.Write(out.Script)
	}

	writeUint32LE(w, t.LockTime)
	return nil
}

// pruneOutputsForSigHash implements the SIGHASH_NONE/SIGHASH_SINGLE
// output-pruning rules for the legacy digest.
func pruneOutputsForSigHash(outs []*TxOut, index int, hashType uint32) []*TxOut {
	base := hashType & 0x1f
	switch base {
	case SigHashNone:
		return nil
	case SigHashSingle:
		if index >= len(outs) {
			return nil
		}
		pruned := make([]*TxOut, index+1)
		for i := 0; i < index; i++ {
			pruned[i] = &TxOut{Amount: -1}
		}
		pruned[index] = outs[index]
		return pruned
	default:
		return outs
	}
}

// Parse decodes a legacy-serialized transaction. It fails (returns a
// nil transaction) when the byte stream is truncated or declares zero
// inputs, matching spec.md §4.1's error contract.
func Parse(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	t := &Transaction{BlockHeight: TxUnconfirmed}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errTruncated
	}
	t.Version = int32(version)

	numIn, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, errTruncated
	}
	if numIn == 0 {
		return nil, errNoInputs
	}
	t.Inputs = make([]*TxIn, numIn)
	for i := range t.Inputs {
		in := &TxIn{}
		if _, err := readFull(r, in.PrevTxHash[:]); err != nil {
			return nil, errTruncated
		}
		if err := binary.Read(r, binary.LittleEndian, &in.PrevIndex); err != nil {
			return nil, errTruncated
		}
		scriptLen, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, errTruncated
		}
		in.ScriptSig = make([]byte, scriptLen)
		if _, err := readFull(r, in.ScriptSig); err != nil {
			return nil, errTruncated
		}
		if len(in.ScriptSig) > 0 {
			in.Signature = in.ScriptSig
		}
		if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
			return nil, errTruncated
		}
		t.Inputs[i] = in
	}

	numOut, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, errTruncated
	}
	t.Outputs = make([]*TxOut, numOut)
	for i := range t.Outputs {
		out := &TxOut{}
		var amount uint64
		if err := binary.Read(r, binary.LittleEndian, &amount); err != nil {
			return nil, errTruncated
		}
		out.Amount = int64(amount)
		scriptLen, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, errTruncated
		}
		out.Script = make([]byte, scriptLen)
		if _, err := readFull(r, out.Script); err != nil {
			return nil, errTruncated
		}
		t.Outputs[i] = out
	}

	if err := binary.Read(r, binary.LittleEndian, &t.LockTime); err != nil {
		return nil, errTruncated
	}

	t.hash = chainhash.DoubleHashH(data)
	t.hasHash = true
	return t, nil
}

var (
	errTruncated = errors.New("txn: truncated transaction")
	errNoInputs  = errors.New("txn: transaction has no inputs")
)

func readFull(r *bytes.Reader, p []byte) (int, error) {
	n, err := r.Read(p)
	if err == nil && n != len(p) {
		err = errTruncated
	}
	return n, err
}

func writeUint32LE(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeUint64LE(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

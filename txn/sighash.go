// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txn

import (
	"bytes"
	"errors"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/wire"
)

// SigHash computes the digest that must be signed for input i under
// hashType, choosing BIP-143 or legacy encoding per spec.md §4.1.
func (t *Transaction) SigHash(i int, hashType uint32) (chainhash.Hash, error) {
	if i < 0 || i >= len(t.Inputs) {
		return chainhash.Hash{}, errors.New("txn: sighash input index out of range")
	}
	if hashType&SigHashForkID != 0 {
		return t.sigHashWitnessV0(i, hashType), nil
	}
	return t.sigHashLegacy(i, hashType)
}

func (t *Transaction) sigHashLegacy(i int, hashType uint32) (chainhash.Hash, error) {
	var buf bytes.Buffer
	if err := t.serializeTo(&buf, i, hashType); err != nil {
		return chainhash.Hash{}, err
	}
	writeUint32LE(&buf, hashType)
	return chainhash.DoubleHashH(buf.Bytes()), nil
}

func (t *Transaction) sigHashWitnessV0(i int, hashType uint32) chainhash.Hash {
	in := t.Inputs[i]
	base := hashType & 0x1f
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0

	hPrevouts := zeroHash
	if !anyoneCanPay {
		var b bytes.Buffer
		for _, in := range t.Inputs {
			b.Write(in.PrevTxHash[:])
			writeUint32LE(&b, in.PrevIndex)
		}
		hPrevouts = chainhash.DoubleHashH(b.Bytes())
	}

	hSequence := zeroHash
	if !anyoneCanPay && base != SigHashNone && base != SigHashSingle {
		var b bytes.Buffer
		for _, in := range t.Inputs {
			writeUint32LE(&b, in.Sequence)
		}
		hSequence = chainhash.DoubleHashH(b.Bytes())
	}

	hOutputs := zeroHash
	switch {
	case base == SigHashSingle:
		if i < len(t.Outputs) {
			var b bytes.Buffer
			writeUint64LE(&b, uint64(t.Outputs[i].Amount))
			wireWriteVarBytes(&b, t.Outputs[i].Script)
			hOutputs = chainhash.DoubleHashH(b.Bytes())
		}
	case base != SigHashNone:
		var b bytes.Buffer
		for _, out := range t.Outputs {
			writeUint64LE(&b, uint64(out.Amount))
			wireWriteVarBytes(&b, out.Script)
		}
		hOutputs = chainhash.DoubleHashH(b.Bytes())
	}

	var b bytes.Buffer
	writeUint32LE(&b, uint32(t.Version))
	b.Write(hPrevouts[:])
	b.Write(hSequence[:])
	b.Write(in.PrevTxHash[:])
	writeUint32LE(&b, in.PrevIndex)
	wireWriteVarBytes(&b, in.PriorScript)
	writeUint64LE(&b, uint64(in.Amount))
	writeUint32LE(&b, in.Sequence)
	b.Write(hOutputs[:])
	writeUint32LE(&b, t.LockTime)
	writeUint32LE(&b, hashType)

	return chainhash.DoubleHashH(b.Bytes())
}

var zeroHash chainhash.Hash

func wireWriteVarBytes(b *bytes.Buffer, data []byte) {
	_ = wire.WriteVarInt(b, uint64(len(data)))
	b.Write(data)
}

// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txn

import "math"

// compactInputSize is the estimated serialized size of one P2PKH input
// once signed: 32-byte prevhash + 4-byte index + ~107-byte scriptSig
// (1-byte push + ~71-byte DER sig + 1-byte hashtype + 1-byte push +
// 33-byte compressed pubkey) + 4-byte sequence, plus the 1-byte varint
// that precedes the script.
const compactInputSize = 32 + 4 + 1 + 107 + 4

// txOverhead is the fixed per-transaction serialization overhead: 4-byte
// version + 4-byte lock time, plus 1 byte for each of the input/output
// count varints in the common case.
const txOverhead = 4 + 4 + 1 + 1

// Size returns the actual serialized size of the transaction if every
// input is signed, otherwise an estimate using compactInputSize for any
// unsigned input (spec.md §4.1).
func (t *Transaction) Size() int {
	if t.IsSigned() {
		data, err := t.Serialize()
		if err == nil {
			return len(data)
		}
	}

	size := txOverhead
	for _, in := range t.Inputs {
		if len(in.Signature) > 0 {
			size += 32 + 4 + 1 + len(in.ScriptSig) + 4
		} else {
			size += compactInputSize
		}
	}
	for _, out := range t.Outputs {
		size += 8 + 1 + len(out.Script)
	}
	return size
}

// compactOutputSize estimates a P2PKH output's serialized size: 8-byte
// amount + 1-byte script-length varint + 25-byte standard script.
const compactOutputSize = 8 + 1 + 25

// TxOverheadEstimate estimates the serialized size of a transaction
// with numInputs unsigned compact inputs and numOutputs standard
// outputs, for sizing fee estimates before a transaction is built.
func TxOverheadEstimate(numInputs, numOutputs int) int {
	return txOverhead + numInputs*compactInputSize + numOutputs*compactOutputSize
}

// StandardFee returns the minimum fee for a transaction of the given
// size at the default TxFeePerKB rate: ceil(size/1000) * TX_FEE_PER_KB.
func StandardFee(size int) int64 {
	return int64(math.Ceil(float64(size)/1000.0)) * TxFeePerKB
}

// FeeForSize computes the fee rule of spec.md §4.2:
// max(ceil(size/1000)*TX_FEE_PER_KB, ceil(size*feePerKb/1000/100)*100).
func FeeForSize(feePerKb uint64, size int) int64 {
	standard := StandardFee(size)
	scaled := math.Ceil(float64(size)*float64(feePerKb)/1000.0/100.0) * 100
	if int64(scaled) > standard {
		return int64(scaled)
	}
	return standard
}

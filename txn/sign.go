// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txn

import (
	"bytes"

	"github.com/kaspanet/spvwallet/waddr"
)

// opEqualVerify is the scriptPubKey opcode that marks a pay-to-pubkey-
// hash script (as opposed to a bare pay-to-pubkey script). Script
// execution itself is the excluded txscript collaborator; Sign only
// needs to distinguish these two standard shapes to build a scriptSig.
const opEqualVerify = 0x88

// Candidate is one key available to Sign: a signer plus the address it
// corresponds to, so Sign can match it against each input's prior
// output script.
type Candidate struct {
	Address waddr.Address
	Signer  waddr.Signer
}

// Sign iterates the transaction's inputs, matching each input's prior
// output script against every candidate's address. Matched inputs are
// signed and given a scriptSig; after every input that can be signed is
// signed, the transaction hash is recomputed over the fully signed
// serialization. hashType should include SigHashForkID when BIP-143
// digests are desired.
//
// Sign never errors for partially-matched key sets: spec.md's contract
// is "signed=false" when some input remains unsigned, which the caller
// observes via IsSigned after Sign returns.
func Sign(t *Transaction, candidates []Candidate, hashType uint32) error {
	for i, in := range t.Inputs {
		if len(in.Signature) > 0 {
			continue
		}
		candidate, ok := matchCandidate(in, candidates)
		if !ok {
			continue
		}

		digest, err := t.SigHash(i, hashType)
		if err != nil {
			return err
		}
		sig, err := candidate.Signer.Sign(digest)
		if err != nil {
			return err
		}
		sigWithType := append(append([]byte{}, sig...), byte(hashType))

		isP2PKH := bytes.IndexByte(in.PriorScript, opEqualVerify) >= 0
		in.ScriptSig = buildScriptSig(sigWithType, candidate.Signer.PublicKey(), isP2PKH)
		in.Signature = in.ScriptSig
	}

	if _, err := t.Serialize(); err != nil {
		return err
	}
	return nil
}

func matchCandidate(in *TxIn, candidates []Candidate) (Candidate, bool) {
	for _, c := range candidates {
		if c.Address == nil {
			continue
		}
		if bytes.Equal(c.Address.ScriptAddress(), extractHash160(in.PriorScript)) {
			return c, true
		}
	}
	return Candidate{}, false
}

// extractHash160 pulls the 20-byte hash out of a standard P2PKH/P2SH
// script (the same bytes Address.ScriptAddress returns), by taking the
// last 20 bytes before a trailing opcode. Script parsing proper is the
// excluded txscript collaborator; this is the minimal shape-matching
// Sign needs.
func extractHash160(script []byte) []byte {
	const hashLen = 20
	if len(script) < hashLen {
		return nil
	}
	// Standard scripts place the hash immediately before OP_EQUALVERIFY
	// OP_CHECKSIG (P2PKH, 2 trailing opcodes) or OP_EQUAL (P2SH, 1
	// trailing opcode).
	if len(script) >= hashLen+2 && script[len(script)-2] == opEqualVerify {
		return script[len(script)-2-hashLen : len(script)-2]
	}
	return script[len(script)-1-hashLen : len(script)-1]
}

func buildScriptSig(sig, pubKey []byte, includePubKey bool) []byte {
	var buf bytes.Buffer
	pushData(&buf, sig)
	if includePubKey {
		pushData(&buf, pubKey)
	}
	return buf.Bytes()
}

func pushData(buf *bytes.Buffer, data []byte) {
	n := len(data)
	switch {
	case n < 0x4c:
		buf.WriteByte(byte(n))
	case n <= 0xff:
		buf.WriteByte(0x4c)
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(0x4d)
		buf.WriteByte(byte(n))
		buf.WriteByte(byte(n >> 8))
	}
	buf.Write(data)
}

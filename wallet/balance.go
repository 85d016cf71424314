// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
)

// recomputeBalance implements spec.md §4.2's "Balance recomputation":
// a single linear pass over the sorted transaction list producing a
// globally consistent UTXO set, invalid/pending classification, running
// balance, and balance history. Must be called with w.mu held.
func (w *Wallet) recomputeBalance() {
	spent := make(map[utxo]bool)
	invalid := make(map[chainhash.Hash]bool)
	pending := make(map[chainhash.Hash]bool)
	var utxos []utxoEntry

	var running int64
	var totalSent, totalReceived int64
	hist := make([]int64, 0, len(w.transactions))

	for _, t := range w.transactions {
		hash := t.Hash()
		beforeTx := running
		isInvalid := false
		for _, in := range t.Inputs {
			key := utxo{hash: in.PrevTxHash, index: in.PrevIndex}
			if spent[key] {
				isInvalid = true
				break
			}
			if invalid[in.PrevTxHash] {
				isInvalid = true
				break
			}
		}
		if isInvalid {
			invalid[hash] = true
			hist = append(hist, running)
			continue
		}

		for _, in := range t.Inputs {
			spent[utxo{hash: in.PrevTxHash, index: in.PrevIndex}] = true
		}

		// Size, dust, RBF, lockTime and pending-ancestor checks only gate
		// pending status while a tx is still unconfirmed; a confirmed tx
		// is never pending regardless of its shape.
		if t.BlockHeight == txn.TxUnconfirmed {
			isPending := t.Size() > txn.TxMaxSize
			if !isPending {
				for _, out := range t.Outputs {
					if out.Amount < txn.TxMinOutputAmount {
						isPending = true
						break
					}
				}
			}
			if !isPending {
				now := uint32(time.Now().Unix())
				for _, in := range t.Inputs {
					if in.IsRBF() {
						isPending = true
						break
					}
					if in.EnablesLockTime() {
						if t.LockTime < txn.TxMaxLockHeight && t.LockTime > w.currentHeight+1 {
							isPending = true
							break
						}
						if t.LockTime >= txn.TxMaxLockHeight && t.LockTime > now {
							isPending = true
							break
						}
					}
				}
			}
			if !isPending {
				for _, in := range t.Inputs {
					if pending[in.PrevTxHash] {
						isPending = true
						break
					}
				}
			}
			if isPending {
				pending[hash] = true
			}
		}

		for i, out := range t.Outputs {
			if out.Address == nil {
				continue
			}
			if _, ok := w.allAddrs[out.Address.String()]; !ok {
				continue
			}
			utxos = append(utxos, utxoEntry{utxo: utxo{hash: hash, index: uint32(i)}, amount: out.Amount})
			running += out.Amount
		}
		for _, in := range t.Inputs {
			if in.Address == nil {
				continue
			}
			if _, ok := w.allAddrs[in.Address.String()]; !ok {
				continue
			}
			running -= in.Amount
		}

		if delta := running - beforeTx; delta > 0 {
			totalReceived += delta
		} else if delta < 0 {
			totalSent += -delta
		}

		hist = append(hist, running)
	}

	// Remove any UTXOs that are themselves spent by a later-in-order tx
	// (handles out-of-order ordering per spec.md §4.2), preserving the
	// wallet-order of the entries that remain.
	live := utxos[:0]
	for _, e := range utxos {
		if !spent[e.utxo] {
			live = append(live, e)
		}
	}

	w.invalid = invalid
	w.pending = pending
	w.utxos = live
	w.balance = running
	w.balanceHist = hist
	w.totalSent = totalSent
	w.totalReceived = totalReceived
}

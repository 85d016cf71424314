// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/waddr"
)

// touchesWallet reports whether tx pays to, or spends from, any address
// this wallet has derived.
func (w *Wallet) touchesWallet(t *txn.Transaction) bool {
	for _, out := range t.Outputs {
		if out.Address != nil {
			if _, ok := w.allAddrs[out.Address.String()]; ok {
				return true
			}
		}
	}
	for _, in := range t.Inputs {
		if prev, ok := w.allTx[in.PrevTxHash]; ok {
			if int(in.PrevIndex) < len(prev.Outputs) {
				out := prev.Outputs[in.PrevIndex]
				if out.Address != nil {
					if _, ok := w.allAddrs[out.Address.String()]; ok {
						return true
					}
				}
			}
		}
	}
	return false
}

// insertSorted inserts t into w.transactions keeping the ordering
// invariant of spec.md §3: a tx appears after every tx it spends from
// and after every tx of lower block height.
func (w *Wallet) insertSorted(t *txn.Transaction) {
	idx := sort.Search(len(w.transactions), func(i int) bool {
		return !txPrecedes(w.transactions[i], t)
	})
	w.transactions = append(w.transactions, nil)
	copy(w.transactions[idx+1:], w.transactions[idx:])
	w.transactions[idx] = t
}

// txPrecedes reports whether a must be ordered before b: a has strictly
// lower confirmed height, or b spends one of a's outputs.
func txPrecedes(a, b *txn.Transaction) bool {
	if a.BlockHeight != txn.TxUnconfirmed && b.BlockHeight != txn.TxUnconfirmed {
		if a.BlockHeight != b.BlockHeight {
			return a.BlockHeight < b.BlockHeight
		}
	} else if a.BlockHeight != txn.TxUnconfirmed && b.BlockHeight == txn.TxUnconfirmed {
		return true
	} else if a.BlockHeight == txn.TxUnconfirmed && b.BlockHeight != txn.TxUnconfirmed {
		return false
	}
	ah := a.Hash()
	for _, in := range b.Inputs {
		if in.PrevTxHash == ah {
			return true
		}
	}
	return false
}

// RegisterTransaction inserts t if it is new and touches the wallet, or
// retains a non-touching unconfirmed tx for future invalid/CPFP
// detection. Returns true if t's hash was already registered (a
// retained non-wallet tx included) or t was newly inserted as a wallet
// tx; false otherwise.
func (w *Wallet) RegisterTransaction(t *txn.Transaction) bool {
	w.mu.Lock()

	hash := t.Hash()
	if _, ok := w.allTx[hash]; ok {
		w.mu.Unlock()
		return true
	}

	touches := w.touchesWallet(t)
	if !touches {
		if t.BlockHeight == txn.TxUnconfirmed {
			w.allTx[hash] = t
		}
		w.mu.Unlock()
		return false
	}

	w.allTx[hash] = t
	w.insertSorted(t)
	for _, out := range t.Outputs {
		if out.Address != nil {
			w.usedAddrs[out.Address.String()] = struct{}{}
			w.markUsed(out.Address)
		}
	}
	w.extendChain(false, w.gapLimit)
	w.extendChain(true, w.gapLimit)

	w.recomputeBalance()
	newBalance := w.balance
	cbTxAdded := w.callbacks.TxAdded
	cbBalance := w.callbacks.BalanceChanged
	w.mu.Unlock()

	if cbTxAdded != nil {
		cbTxAdded(t)
	}
	if cbBalance != nil {
		cbBalance(newBalance)
	}
	return true
}

// markUsed advances lastUsed{External,Internal} if addr is found on
// either chain at a higher index than currently recorded.
func (w *Wallet) markUsed(addr waddr.Address) {
	for i, a := range w.external {
		if a.String() == addr.String() {
			if i > w.lastUsedExternal {
				w.lastUsedExternal = i
			}
			return
		}
	}
	for i, a := range w.internal {
		if a.String() == addr.String() {
			if i > w.lastUsedInternal {
				w.lastUsedInternal = i
			}
			return
		}
	}
}

// RemoveTransaction removes hash and, recursively, every transaction
// that spends one of its outputs, then rebalances once and fires
// txDeleted for each removed tx (spec.md §9: precompute under lock,
// avoid re-entrant mutation).
func (w *Wallet) RemoveTransaction(hash chainhash.Hash) {
	w.mu.Lock()

	toRemove := w.collectDependents(hash)
	if len(toRemove) == 0 {
		w.mu.Unlock()
		return
	}

	type removal struct {
		hash            chainhash.Hash
		notifyUser      bool
		recommendRescan bool
	}
	var removed []removal
	for _, h := range toRemove {
		t := w.allTx[h]
		if t == nil {
			continue
		}
		recommendRescan := w.wasConfirmedSend(t)
		delete(w.allTx, h)
		for i, existing := range w.transactions {
			if existing.Hash() == h {
				w.transactions = append(w.transactions[:i], w.transactions[i+1:]...)
				break
			}
		}
		removed = append(removed, removal{hash: h, notifyUser: true, recommendRescan: recommendRescan})
	}

	w.recomputeBalance()
	newBalance := w.balance
	cbDeleted := w.callbacks.TxDeleted
	cbBalance := w.callbacks.BalanceChanged
	w.mu.Unlock()

	for _, r := range removed {
		if cbDeleted != nil {
			cbDeleted(r.hash, r.notifyUser, r.recommendRescan)
		}
	}
	if cbBalance != nil {
		cbBalance(newBalance)
	}
}

// wasConfirmedSend reports whether t spent only confirmed inputs,
// meaning its removal should recommend a rescan (spec.md §4.2).
func (w *Wallet) wasConfirmedSend(t *txn.Transaction) bool {
	if len(t.Inputs) == 0 {
		return false
	}
	for _, in := range t.Inputs {
		prev, ok := w.allTx[in.PrevTxHash]
		if !ok || prev.BlockHeight == txn.TxUnconfirmed {
			return false
		}
	}
	return true
}

// collectDependents returns hash plus every transaction (transitively)
// spending one of its outputs, in removal order (dependents first).
func (w *Wallet) collectDependents(hash chainhash.Hash) []chainhash.Hash {
	if _, ok := w.allTx[hash]; !ok {
		return nil
	}
	var out []chainhash.Hash
	var visit func(h chainhash.Hash)
	seen := make(map[chainhash.Hash]bool)
	visit = func(h chainhash.Hash) {
		if seen[h] {
			return
		}
		seen[h] = true
		for _, t := range w.allTx {
			for _, in := range t.Inputs {
				if in.PrevTxHash == h {
					visit(t.Hash())
				}
			}
		}
		out = append(out, h)
	}
	visit(hash)
	// reverse so dependents (appended first via DFS post-order) are
	// removed before the transaction they depend on
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// UpdateTransactions sets the block height and timestamp for the named
// transactions, re-inserts them to keep the ordering invariant, and
// rebalances if any were previously pending or invalid.
func (w *Wallet) UpdateTransactions(hashes []chainhash.Hash, height uint32, timestamp uint32) {
	w.mu.Lock()

	if height != txn.TxUnconfirmed && height > w.currentHeight {
		w.currentHeight = height
	}

	for _, h := range hashes {
		t, ok := w.allTx[h]
		if !ok {
			continue
		}
		t.BlockHeight = height
		t.Timestamp = timestamp
		for i, existing := range w.transactions {
			if existing.Hash() == h {
				w.transactions = append(w.transactions[:i], w.transactions[i+1:]...)
				break
			}
		}
		w.insertSorted(t)
	}

	w.recomputeBalance()
	cbUpdated := w.callbacks.TxUpdated
	cbBalance := w.callbacks.BalanceChanged
	newBalance := w.balance
	w.mu.Unlock()

	if cbUpdated != nil {
		cbUpdated(hashes, height, timestamp)
	}
	if cbBalance != nil {
		cbBalance(newBalance)
	}
}

// SetTxUnconfirmedAfter marks every transaction with blockHeight >
// height as unconfirmed (spec.md §4.3 reorg handling) and rebalances.
func (w *Wallet) SetTxUnconfirmedAfter(height uint32) {
	w.mu.Lock()
	w.currentHeight = height
	var affected []chainhash.Hash
	for _, t := range w.transactions {
		if t.BlockHeight != txn.TxUnconfirmed && t.BlockHeight > height {
			t.BlockHeight = txn.TxUnconfirmed
			t.Timestamp = 0
			affected = append(affected, t.Hash())
		}
	}
	w.recomputeBalance()
	cbBalance := w.callbacks.BalanceChanged
	newBalance := w.balance
	w.mu.Unlock()

	if cbBalance != nil && len(affected) > 0 {
		cbBalance(newBalance)
	}
}

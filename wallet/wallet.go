// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the Wallet State Engine (spec.md §4.2): it
// derives address chains from a caller-supplied key chain, owns the set
// of registered transactions and the UTXO set they imply, and answers
// balance and history queries under a single mutex, firing host
// callbacks only after releasing it.
package wallet

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/waddr"
)

// gapLimit unused addresses are kept ahead of the last used address on
// each chain (glossary: "Gap limit").
const defaultGapLimit = 20

// Callbacks are invoked after the wallet's mutex has been released
// (spec.md §5), never while a state-changing call still holds it.
type Callbacks struct {
	BalanceChanged func(balance int64)
	TxAdded        func(tx *txn.Transaction)
	TxUpdated      func(hashes []chainhash.Hash, height uint32, timestamp uint32)
	TxDeleted      func(hash chainhash.Hash, notifyUser, recommendRescan bool)
}

type utxo struct {
	hash  chainhash.Hash
	index uint32
}

// utxoEntry pairs a utxo with its amount, kept in wallet order (the
// order recomputeBalance's pass over w.transactions produced it) so
// UTXO selection is deterministic rather than dependent on map
// iteration order (spec.md §9).
type utxoEntry struct {
	utxo
	amount int64
}

// Wallet is a concurrent, ordered multiset of transactions together
// with the address chains and UTXO set they derive, per spec.md §4.2.
type Wallet struct {
	mu sync.Mutex

	keyChain waddr.KeyChain
	gapLimit uint32
	rand     *rand.Rand

	external []waddr.Address
	internal []waddr.Address
	// lastUsed{External,Internal} is the highest chain index that
	// appears as some registered tx's output address, or -1 if none.
	lastUsedExternal int
	lastUsedInternal int

	allAddrs map[string]struct{}
	usedAddrs map[string]struct{}

	allTx        map[chainhash.Hash]*txn.Transaction
	transactions []*txn.Transaction // sorted per spec.md §3's ordering invariant

	utxos        []utxoEntry
	invalid      map[chainhash.Hash]bool
	pending      map[chainhash.Hash]bool

	// currentHeight is the highest confirmed blockHeight seen via
	// UpdateTransactions (reset to the given height by
	// SetTxUnconfirmedAfter), used to decide whether a block-height LockTime
	// still lies in the future (spec.md §3).
	currentHeight uint32

	balance        int64
	balanceHist    []int64
	totalSent      int64
	totalReceived  int64
	feePerKb       uint64

	callbacks Callbacks
}

// New returns an empty wallet deriving addresses from keyChain. rng
// seeds the output-shuffle entropy (spec.md §9: "inject a PRNG" for
// deterministic tests); nil uses a process-seeded source.
func New(keyChain waddr.KeyChain, gapLimit uint32, rng *rand.Rand, cb Callbacks) *Wallet {
	if gapLimit == 0 {
		gapLimit = defaultGapLimit
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	w := &Wallet{
		keyChain:         keyChain,
		gapLimit:         gapLimit,
		rand:             rng,
		lastUsedExternal: -1,
		lastUsedInternal: -1,
		allAddrs:         make(map[string]struct{}),
		usedAddrs:        make(map[string]struct{}),
		allTx:            make(map[chainhash.Hash]*txn.Transaction),
		invalid:          make(map[chainhash.Hash]bool),
		pending:          make(map[chainhash.Hash]bool),
		feePerKb:         uint64(txn.TxFeePerKB),
		callbacks:        cb,
	}
	w.extendChain(false, gapLimit)
	w.extendChain(true, gapLimit)
	return w
}

// extendChain derives addresses onto the internal (change) or external
// (receive) chain until gapLimit unused trail the last used one.
func (w *Wallet) extendChain(internal bool, gapLimit uint32) {
	chain := &w.external
	lastUsed := w.lastUsedExternal
	if internal {
		chain = &w.internal
		lastUsed = w.lastUsedInternal
	}

	need := lastUsed + 1 + int(gapLimit) - len(*chain)
	for need > 0 {
		idx := uint32(len(*chain))
		addr, err := w.keyChain.AddressAt(internal, idx)
		if err != nil {
			return
		}
		*chain = append(*chain, addr)
		w.allAddrs[addr.String()] = struct{}{}
		need--
	}
}

// Balance returns the current wallet balance.
func (w *Wallet) Balance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// TotalSent returns the lifetime total of value sent from the wallet.
func (w *Wallet) TotalSent() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalSent
}

// TotalReceived returns the lifetime total of value received.
func (w *Wallet) TotalReceived() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalReceived
}

// FeePerKb returns the fee rate new transactions are built against.
func (w *Wallet) FeePerKb() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feePerKb
}

// SetFeePerKb updates the fee rate new transactions are built against.
func (w *Wallet) SetFeePerKb(v uint64) {
	w.mu.Lock()
	w.feePerKb = v
	w.mu.Unlock()
}

// UnusedAddrs extends the requested chain until gapLimit contiguous
// unused addresses follow the last used one, and returns up to
// gapLimit of them in chain order.
func (w *Wallet) UnusedAddrs(internal bool, gapLimit uint32) []waddr.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.extendChain(internal, gapLimit)

	chain, lastUsed := w.external, w.lastUsedExternal
	if internal {
		chain, lastUsed = w.internal, w.lastUsedInternal
	}
	start := lastUsed + 1
	end := start + int(gapLimit)
	if end > len(chain) {
		end = len(chain)
	}
	if start >= end {
		return nil
	}
	out := make([]waddr.Address, end-start)
	copy(out, chain[start:end])
	return out
}

// ReceiveAddress returns the first unused external address.
func (w *Wallet) ReceiveAddress() waddr.Address {
	addrs := w.UnusedAddrs(false, 1)
	if len(addrs) == 0 {
		return nil
	}
	return addrs[0]
}

// AllAddrs returns every address the wallet has derived on either
// chain.
func (w *Wallet) AllAddrs() []waddr.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]waddr.Address, 0, len(w.external)+len(w.internal))
	out = append(out, w.external...)
	out = append(out, w.internal...)
	return out
}

// ContainsAddress reports whether addr was derived by this wallet.
func (w *Wallet) ContainsAddress(addr waddr.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.allAddrs[addr.String()]
	return ok
}

// AddressIsUsed reports whether addr has appeared as an output of any
// registered transaction.
func (w *Wallet) AddressIsUsed(addr waddr.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.usedAddrs[addr.String()]
	return ok
}

// UTXOs returns every currently unspent, wallet-owned output.
func (w *Wallet) UTXOs() []*txn.TxIn {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*txn.TxIn, 0, len(w.utxos))
	for _, e := range w.utxos {
		out = append(out, &txn.TxIn{PrevTxHash: e.hash, PrevIndex: e.index, Amount: e.amount})
	}
	return out
}

// Transactions returns every registered transaction in spec.md §3's
// sorted order. Callers must not mutate the returned slice's elements.
func (w *Wallet) Transactions() []*txn.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*txn.Transaction, len(w.transactions))
	copy(out, w.transactions)
	return out
}

// TxUnconfirmedBefore returns every transaction confirmed at or after
// height, plus every still-unconfirmed transaction (TxUnconfirmed is
// always >= any finite height). Passing txn.TxUnconfirmed itself
// selects only the unconfirmed set, which is what the Peer Manager's
// mempool GC needs; passing a recent block height also pulls in
// recently-confirmed transactions, which the filter-install path needs
// to re-cover their spent outpoints.
func (w *Wallet) TxUnconfirmedBefore(height uint32) []*txn.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*txn.Transaction
	for _, t := range w.transactions {
		if t.BlockHeight >= height {
			out = append(out, t)
		}
	}
	return out
}

// ContainsTransaction reports whether tx's hash is registered.
func (w *Wallet) ContainsTransaction(hash chainhash.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.allTx[hash]
	return ok
}

// TransactionIsValid reports whether hash is a known, non-invalid
// transaction.
func (w *Wallet) TransactionIsValid(hash chainhash.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.allTx[hash]; !ok {
		return false
	}
	return !w.invalid[hash]
}

// TransactionIsPending reports whether hash is classified pending.
func (w *Wallet) TransactionIsPending(hash chainhash.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[hash]
}

// TransactionIsVerified reports whether hash is confirmed (has a real
// block height) or has been seen acknowledged by enough peers to be
// treated as zero-conf verified (non-zero timestamp while unconfirmed).
func (w *Wallet) TransactionIsVerified(hash chainhash.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.allTx[hash]
	if !ok {
		return false
	}
	return t.BlockHeight != txn.TxUnconfirmed || t.Timestamp != 0
}

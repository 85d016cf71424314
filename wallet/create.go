// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/pkg/errors"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/waddr"
)

// ErrInsufficientFunds is returned when no combination of UTXOs covers
// the requested amount plus fee.
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// ErrNotSigned is returned by operations that require a fully signed
// transaction.
var ErrNotSigned = errors.New("wallet: transaction not signed")

// CreateTransaction builds an unsigned transaction paying amount to
// addr, selecting UTXOs and adding a change output as needed.
func (w *Wallet) CreateTransaction(amount int64, addr waddr.Address) (*txn.Transaction, error) {
	return w.CreateTxForOutputs([]*txn.TxOut{{Amount: amount, Address: addr}})
}

// CreateOpsTransaction is CreateTransaction with an additional
// ops-fee output prepended, per spec.md §4.2.
func (w *Wallet) CreateOpsTransaction(amount int64, addr waddr.Address, opsFee int64, opsAddr waddr.Address) (*txn.Transaction, error) {
	outs := []*txn.TxOut{
		{Amount: opsFee, Address: opsAddr},
		{Amount: amount, Address: addr},
	}
	return w.CreateTxForOutputs(outs)
}

// CreateTxForOutputs builds an unsigned transaction paying the given
// outputs, selecting wallet UTXOs in wallet order until the requested
// amount plus an estimated fee is covered, adding a change output when
// the residual exceeds MinOutputAmount, and shuffling the final output
// order. If the built transaction exceeds TxMaxSize it is recursively
// rebuilt with either a reduced final-output amount or one fewer
// output, per spec.md §4.2.
func (w *Wallet) CreateTxForOutputs(outputs []*txn.TxOut) (*txn.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createTxForOutputsLocked(outputs)
}

func (w *Wallet) createTxForOutputsLocked(outputs []*txn.TxOut) (*txn.Transaction, error) {
	var target int64
	for _, o := range outputs {
		target += o.Amount
	}

	type candidate struct {
		hash   chainhash.Hash
		index  uint32
		amount int64
	}
	candidates := make([]candidate, 0, len(w.utxos))
	for _, e := range w.utxos {
		candidates = append(candidates, candidate{hash: e.hash, index: e.index, amount: e.amount})
	}

	var selected []candidate
	var total int64
	estimatedInputs := 0
	for _, c := range candidates {
		selected = append(selected, c)
		total += c.amount
		estimatedInputs++

		size := txn.TxOverheadEstimate(estimatedInputs, len(outputs)+1)
		fee := w.feeForSize(size)
		if total >= target+fee {
			break
		}
	}

	size := txn.TxOverheadEstimate(len(selected), len(outputs)+1)
	fee := w.feeForSize(size)
	if total < target+fee {
		return nil, ErrInsufficientFunds
	}

	ins := make([]*txn.TxIn, len(selected))
	for i, c := range selected {
		ins[i] = &txn.TxIn{PrevTxHash: c.hash, PrevIndex: c.index, Amount: c.amount, Sequence: 0xffffffff}
		if prev, ok := w.allTx[c.hash]; ok && int(c.index) < len(prev.Outputs) {
			ins[i].Address = prev.Outputs[c.index].Address
			ins[i].PriorScript = prev.Outputs[c.index].Script
		}
	}

	outs := make([]*txn.TxOut, len(outputs))
	copy(outs, outputs)

	residual := total - target - fee
	if residual >= txn.TxMinOutputAmount {
		changeAddrs := w.UnusedAddrsLocked(true, 1)
		var changeAddr waddr.Address
		if len(changeAddrs) > 0 {
			changeAddr = changeAddrs[0]
		}
		outs = append(outs, &txn.TxOut{Amount: residual, Address: changeAddr})
	}

	w.rand.Shuffle(len(outs), func(i, j int) { outs[i], outs[j] = outs[j], outs[i] })

	t := txn.New(ins, outs, 0)
	t.BlockHeight = txn.TxUnconfirmed

	if t.Size() <= txn.TxMaxSize {
		return t, nil
	}

	// Oversize: shrink the last output if it alone can absorb the
	// shortfall plus MinOutputAmount, else drop one output entirely.
	if len(outs) == 0 {
		return nil, errors.New("wallet: transaction too large with no outputs to shrink")
	}
	last := outs[len(outs)-1]
	shortfall := int64(t.Size() - txn.TxMaxSize)
	if last.Amount-shortfall >= txn.TxMinOutputAmount {
		reduced := make([]*txn.TxOut, len(outputs))
		copy(reduced, outputs)
		if len(reduced) > 0 {
			lastIdx := len(reduced) - 1
			cp := *reduced[lastIdx]
			cp.Amount -= shortfall
			reduced[lastIdx] = &cp
		}
		return w.createTxForOutputsLocked(reduced)
	}
	if len(outputs) > 1 {
		return w.createTxForOutputsLocked(outputs[:len(outputs)-1])
	}
	return nil, errors.New("wallet: transaction too large and cannot be reduced further")
}

// UnusedAddrsLocked is UnusedAddrs for callers already holding w.mu.
func (w *Wallet) UnusedAddrsLocked(internal bool, gapLimit uint32) []waddr.Address {
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

func (w *Wallet) feeForSize(size int) int64 {
	return txn.FeeForSize(w.feePerKb, size)
}

// SignTransaction derives the private key for each input whose prior
// output address was derived by this wallet, signs, and wipes key
// material from memory afterward.
func (w *Wallet) SignTransaction(t *txn.Transaction, hashType uint32) error {
	w.mu.Lock()
	var candidates []txn.Candidate
	for _, in := range t.Inputs {
		addr := in.Address
		if addr == nil {
			continue
		}
		internal, index, ok := w.chainIndexOf(addr)
		if !ok {
			continue
		}
		signer, err := w.keyChain.SignerAt(internal, index, nil)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		candidates = append(candidates, txn.Candidate{Address: addr, Signer: signer})
	}
	w.mu.Unlock()

	err := txn.Sign(t, candidates, hashType)
	for _, c := range candidates {
		c.Signer.Wipe()
	}
	if err != nil {
		return err
	}
	if !t.IsSigned() {
		return ErrNotSigned
	}
	return nil
}

// chainIndexOf reports the (internal, index) chain position of addr, if
// it was derived by this wallet.
func (w *Wallet) chainIndexOf(addr waddr.Address) (internal bool, index uint32, ok bool) {
	for i, a := range w.external {
		if a.String() == addr.String() {
			return false, uint32(i), true
		}
	}
	for i, a := range w.internal {
		if a.String() == addr.String() {
			return true, uint32(i), true
		}
	}
	return false, 0, false
}

// AmountReceivedFromTx returns the sum of t's outputs paying wallet
// addresses.
func (w *Wallet) AmountReceivedFromTx(t *txn.Transaction) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sum int64
	for _, out := range t.Outputs {
		if out.Address != nil {
			if _, ok := w.allAddrs[out.Address.String()]; ok {
				sum += out.Amount
			}
		}
	}
	return sum
}

// AmountSentByTx returns the sum of t's inputs spending wallet outputs.
func (w *Wallet) AmountSentByTx(t *txn.Transaction) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sum int64
	for _, in := range t.Inputs {
		if in.Address != nil {
			if _, ok := w.allAddrs[in.Address.String()]; ok {
				sum += in.Amount
			}
		}
	}
	return sum
}

// FeeForTx returns the difference between t's input and output totals.
func (w *Wallet) FeeForTx(t *txn.Transaction) int64 {
	var in, out int64
	for _, i := range t.Inputs {
		in += i.Amount
	}
	for _, o := range t.Outputs {
		out += o.Amount
	}
	return in - out
}

// BalanceAfterTx returns the wallet's balance immediately after t, if
// t is registered.
func (w *Wallet) BalanceAfterTx(t *txn.Transaction) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	hash := t.Hash()
	for i, existing := range w.transactions {
		if existing.Hash() == hash {
			return w.balanceHist[i], true
		}
	}
	return 0, false
}

// FeeForTxSize returns the minimum fee for a transaction of the given
// size at the wallet's current fee rate.
func (w *Wallet) FeeForTxSize(size int) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeForSize(size)
}

// FeeForTxAmount estimates the fee that CreateTransaction(amount, ...)
// would charge for a typical one-output-plus-change payment.
func (w *Wallet) FeeForTxAmount(amount int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := txn.TxOverheadEstimate(1, 2)
	return w.feeForSize(size)
}

// MinOutputAmount returns the minimum amount any output of a created
// transaction may carry.
func (w *Wallet) MinOutputAmount() int64 {
	return txn.TxMinOutputAmount
}

// MaxOutputAmount returns the largest amount a single-output
// CreateTransaction could currently send: the sum of all UTXOs minus
// the fee CreateTransaction charges when it spends every one of them,
// whose size estimate always allows for a change output (SPEC_FULL.md
// §C.2).
func (w *Wallet) MaxOutputAmount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	count := 0
	for _, e := range w.utxos {
		total += e.amount
		count++
	}
	if count == 0 {
		return 0
	}
	size := txn.TxOverheadEstimate(count, 2)
	fee := w.feeForSize(size)
	max := total - fee
	if max < 0 {
		return 0
	}
	return max
}

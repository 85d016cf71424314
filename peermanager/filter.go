// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager

import (
	"encoding/binary"

	"github.com/kaspanet/spvwallet/bloom"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/txn"
	"github.com/kaspanet/spvwallet/wallet"
)

// filterRecentSpendWindow is how many blocks back installFilter looks
// for wallet outpoints spent by recent transactions, in addition to the
// still-unspent UTXO set, so a reorg that un-spends one of them is
// still matched by the installed filter (spec.md §4.3).
const filterRecentSpendWindow = 100

// installFilter builds a bloom filter covering every wallet address,
// every UTXO outpoint, and recent spends, then sends it to p via
// sendFilterload (spec.md §4.3 "Bloom filter installation").
func (m *Manager) installFilter(p *peer.Peer) {
	m.mu.Lock()
	w := m.wallet
	var cutoff uint32
	if m.lastBlock != nil && m.lastBlock.height > filterRecentSpendWindow {
		cutoff = m.lastBlock.height - filterRecentSpendWindow
	}
	m.mu.Unlock()

	// Request extra unused addresses ahead of time to minimize
	// rebuilds, per spec.md §4.3.
	w.UnusedAddrs(false, 100)
	w.UnusedAddrs(true, 100)

	addrs := w.AllAddrs()
	utxos := w.UTXOs()
	recentSpends := recentlySpentOutpoints(w, cutoff)

	elements := len(addrs) + len(utxos) + len(recentSpends)
	if elements == 0 {
		elements = 1
	}

	tweak := tweakFromHost(p.Host())
	filter := bloom.NewFilter(elements, bloom.DefaultFalsePositiveRate, tweak, bloom.BloomUpdateAll)
	for _, a := range addrs {
		filter.Add(a.ScriptAddress())
	}
	for _, u := range utxos {
		filter.Add(outpointBytes(u.PrevTxHash[:], u.PrevIndex))
	}
	for _, o := range recentSpends {
		filter.Add(outpointBytes(o.PrevTxHash[:], o.PrevIndex))
	}

	m.mu.Lock()
	m.filter = filter
	m.mu.Unlock()

	_ = p.SendFilterload(filter.Bytes(), filter.HashFuncs(), filter.Tweak(), byte(filter.FilterFlags()))
}

// recentlySpentOutpoints returns the previous outpoints spent, by
// wallet-owned inputs, of every transaction confirmed at or after
// cutoff or still unconfirmed: a reorg can un-confirm a spend, and the
// filter must still match the original funding transaction when that
// happens.
func recentlySpentOutpoints(w *wallet.Wallet, cutoff uint32) []*txn.TxIn {
	var out []*txn.TxIn
	for _, t := range w.TxUnconfirmedBefore(cutoff) {
		for _, in := range t.Inputs {
			if in.Address == nil || !w.ContainsAddress(in.Address) {
				continue
			}
			out = append(out, in)
		}
	}
	return out
}

func outpointBytes(hash []byte, index uint32) []byte {
	buf := make([]byte, 36)
	copy(buf, hash)
	binary.LittleEndian.PutUint32(buf[32:], index)
	return buf
}

// tweakFromHost derives a deterministic per-peer filter seed from the
// peer's address, as spec.md §4.3 requires ("seed the filter with the
// peer's hash").
func tweakFromHost(host string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(host); i++ {
		h ^= uint32(host[i])
		h *= 16777619
	}
	return h
}

// rebuildFilter reinstalls the filter on the download peer via the
// ping-pong handshake of spec.md §4.3 ("Filter updates are ordered via
// a ping-pong handshake").
func (m *Manager) rebuildFilter() {
	m.mu.Lock()
	p := m.downloadPeer
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.SetNeedsFilterUpdate(true)
	p.SendPing(func(err error) {
		if err != nil {
			return
		}
		m.installFilter(p)
		p.SetNeedsFilterUpdate(false)
		p.SendPing(func(err error) {
			if err != nil {
				return
			}
			m.mu.Lock()
			syncing := m.state == StateSyncing
			m.mu.Unlock()
			if syncing {
				m.requestSync(p)
			} else {
				p.SendMempool(func(error) {})
			}
		})
	})
}

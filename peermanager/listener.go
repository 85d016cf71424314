// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager

import (
	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/txn"
)

// Manager implements peer.Listener: every event a session's Transport
// decodes off the wire arrives here, on that session's own goroutine
// (spec.md §5, "each peer session runs its own I/O thread").

// OnConnected completes the version/verack handshake bookkeeping once
// the Transport reports the remote end is ready.
func (m *Manager) OnConnected(p *peer.Peer) {
	m.onPeerConnected(p)
}

// OnDisconnected handles a session tearing down, whether from a local
// Disconnect call or a Transport-level error.
func (m *Manager) OnDisconnected(p *peer.Peer, err error) {
	m.onPeerDisconnected(p.Host(), err)
}

// OnVersion records the peer's advertised height and services once its
// version message is decoded.
func (m *Manager) OnVersion(p *peer.Peer, version uint32, lastBlock uint32, services uint64) {
	p.SetVersionInfo(version, lastBlock, services)
	m.mu.Lock()
	if lastBlock > m.estimatedHeight {
		m.estimatedHeight = lastBlock
	}
	m.mu.Unlock()
}

// OnTx decodes a relayed transaction and registers it with the wallet
// if it touches a wallet address (spec.md §4.3).
func (m *Manager) OnTx(p *peer.Peer, txBytes []byte) {
	t, err := txn.Parse(txBytes)
	if err != nil {
		m.MarkMisbehaving(p.Host())
		return
	}
	m.wallet.RegisterTransaction(t)
	m.OnTxRelayed(p.Host(), t.Hash())
}

// OnInv requests any inventory items not already known and counts a peer announcing a tx we already
// hold as a relay of that tx (spec.md §4.3): a bare inv is as much a
// relay signal as the full tx would be.
func (m *Manager) OnInv(p *peer.Peer, items []peer.InvItem) {
	var want []peer.InvItem
	var alreadyKnown []chainhash.Hash
	m.mu.Lock()
	for _, item := range items {
		if item.IsBlock {
			if _, known := m.blocks[item.Hash]; !known {
				want = append(want, item)
			}
			continue
		}
		if m.wallet.ContainsTransaction(item.Hash) {
			alreadyKnown = append(alreadyKnown, item.Hash)
		} else {
			want = append(want, item)
		}
		if m.txRequests[item.Hash] == nil {
			m.txRequests[item.Hash] = make(map[string]bool)
		}
		m.txRequests[item.Hash][p.Host()] = true
	}
	m.mu.Unlock()

	if len(want) > 0 {
		_ = p.SendGetdata(want)
	}
	for _, hash := range alreadyKnown {
		m.OnTxRelayed(p.Host(), hash)
	}
}

// OnGetData records that p asked for one of our published transactions;
// the actual bytes are served by the Transport's own relay cache
// (spec.md §1's excluded wire-framing collaborator).
func (m *Manager) OnGetData(p *peer.Peer, items []peer.InvItem) {
	m.mu.Lock()
	for _, item := range items {
		if item.IsBlock {
			continue
		}
		if m.txRequests[item.Hash] == nil {
			m.txRequests[item.Hash] = make(map[string]bool)
		}
		m.txRequests[item.Hash][p.Host()] = true
	}
	m.mu.Unlock()
}

// OnReject marks the sending peer as misbehaving; a peer that rejects
// our own traffic for protocol reasons is no longer a useful download
// candidate.
func (m *Manager) OnReject(p *peer.Peer, reason string) {
	m.MarkMisbehaving(p.Host())
}

var _ peer.Listener = (*Manager)(nil)

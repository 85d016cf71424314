// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager

import (
	"context"

	"github.com/kaspanet/spvwallet/peer"
)

// Connect tops the manager up to MaxConnectCount sessions against cached
// or seeded peer addresses, sampled with bias toward recent timestamps
// (spec.md §4.3). Already-connected peers are left alone; only enough
// new candidates to fill the remaining slots are dialed.
func (m *Manager) Connect(fixedPeer string) error {
	m.mu.Lock()
	if m.host.NetworkIsReachable != nil && !m.host.NetworkIsReachable() {
		m.mu.Unlock()
		return ENETUNREACH
	}

	need := MaxConnectCount - len(m.connected)
	if need <= 0 && fixedPeer == "" {
		m.mu.Unlock()
		return nil
	}

	maxCount := need
	var candidates []PeerRecord
	if fixedPeer != "" {
		maxCount = 1
		candidates = []PeerRecord{{Host: fixedPeer, Port: portFromString(m.params.DefaultPort)}}
	} else {
		candidates = m.sampleAddrsLocked(maxCount)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setState(StateConnecting)
	m.mu.Unlock()

	for _, c := range candidates {
		c := c
		go m.connectOne(ctx, c)
	}
	return nil
}

// sampleAddrsLocked returns up to n candidate addresses from the
// manager's cache. Must be called with m.mu held.
func (m *Manager) sampleAddrsLocked(n int) []PeerRecord {
	if n > len(m.cachedAddrs) {
		n = len(m.cachedAddrs)
	}
	idxs := m.rand.Perm(len(m.cachedAddrs))[:n]
	out := make([]PeerRecord, 0, n)
	for _, i := range idxs {
		out = append(out, m.cachedAddrs[i])
	}
	return out
}

func portFromString(s string) uint16 {
	var p uint16
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		p = p*10 + uint16(c-'0')
	}
	return p
}

// connectOne dials one candidate peer and wires its listener callbacks
// back into the manager. Runs on its own goroutine per spec.md §5's
// "each peer session runs its own I/O thread".
func (m *Manager) connectOne(ctx context.Context, rec PeerRecord) {
	p := m.dial(rec.Host, rec.Port)
	if p == nil {
		m.onPeerDisconnected(rec.Host, ETIMEDOUT)
		return
	}
	p.ScheduleDisconnect(ProtocolTimeout)
	if err := p.Connect(ctx); err != nil {
		m.onPeerDisconnected(rec.Host, err)
		return
	}

	m.mu.Lock()
	m.connected[p.Host()] = p
	m.mu.Unlock()

	m.onPeerConnected(p)
}

// onPeerConnected handles spec.md §4.3's peer-connected transition:
// optionally select as download peer, install the filter, and begin or
// continue sync. The peer's service bits and reported height are not
// checked.
func (m *Manager) onPeerConnected(p *peer.Peer) {
	m.mu.Lock()

	p.SetEarliestKeyTime(m.earliestKeyTime)
	selectAsDownload := m.downloadPeer == nil || (p.LastBlock() > m.downloadPeer.LastBlock() && p.PingTime() < m.downloadPeer.PingTime())
	if selectAsDownload {
		m.downloadPeer = p
		if p.LastBlock() > m.estimatedHeight {
			m.estimatedHeight = p.LastBlock()
		}
	}
	if len(m.connected) >= 1 {
		m.setState(StateConnecting)
	}
	startSync := selectAsDownload
	cbStarted := m.host.SyncStarted
	m.mu.Unlock()

	if cbStarted != nil {
		cbStarted()
	}

	if startSync {
		m.installFilter(p)
		m.requestSync(p)
	}
}

// onPeerDisconnected handles spec.md §4.3's disconnected transition.
func (m *Manager) onPeerDisconnected(host string, err error) {
	m.mu.Lock()
	delete(m.connected, host)
	delete(m.peerFees, host)

	wasDownload := m.downloadPeer != nil && m.downloadPeer.Host() == host
	if wasDownload {
		m.downloadPeer = nil
	}

	m.connectFailureCount++
	exhausted := m.connectFailureCount >= MaxConnectFailures
	if exhausted {
		m.cachedAddrs = nil
	}

	if len(m.connected) == 0 {
		m.setState(StateIdle)
	}
	cbStopped := m.host.SyncStopped
	m.mu.Unlock()

	if exhausted && cbStopped != nil {
		cbStopped(err)
		return
	}
	if !exhausted {
		m.Connect("")
	}
}

// Disconnect tears down every session and disables auto-reconnect, per
// spec.md §5 ("connectFailureCount = MAX so auto-reconnect does not
// fire"). Blocks until every session has fully disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.connectFailureCount = MaxConnectFailures
	if m.cancel != nil {
		m.cancel()
	}
	peers := make([]*peer.Peer, 0, len(m.connected))
	for _, p := range m.connected {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
	for _, p := range peers {
		<-p.Done()
	}

	m.mu.Lock()
	m.connected = make(map[string]*peer.Peer)
	m.downloadPeer = nil
	m.setState(StateIdle)
	m.mu.Unlock()
}

// MarkMisbehaving records a protocol violation from host (spec.md §4.3
// EPROTO handling): the peer is evicted, and after MisbehaviorThreshold
// violations the peer cache is wiped (SPEC_FULL.md §C.4).
func (m *Manager) MarkMisbehaving(host string) {
	m.mu.Lock()
	m.misbehaviorCount[host]++
	wipe := m.misbehaviorCount[host] >= MisbehaviorThreshold
	if wipe {
		m.cachedAddrs = nil
	}
	p := m.connected[host]
	m.mu.Unlock()

	if p != nil {
		p.Disconnect()
	}
}

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager

import (
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/txn"
)

// maxUnrelayedTxes bounds how many stale unconfirmed transactions the
// GC pass below will remove in one sweep (spec.md §9 open question:
// "what bounds the unrelayed-tx set", resolved in DESIGN.md with a
// per-sweep bound of 10000).
const maxUnrelayedTxes = 10000

// PublishTx relays a signed transaction to every connected peer other
// than the download peer (so it can observe relay back), and invokes
// cb exactly once on resolution or timeout (spec.md §4.3
// "Transaction publication").
func (m *Manager) PublishTx(hash chainhash.Hash, raw []byte, cb func(err error)) {
	m.mu.Lock()
	if len(m.connected) == 0 {
		exhausted := m.connectFailureCount >= MaxConnectFailures
		reachable := m.host.NetworkIsReachable == nil || m.host.NetworkIsReachable()
		m.mu.Unlock()
		if exhausted || !reachable {
			cb(ENOTCONN)
			return
		}
	} else {
		m.mu.Unlock()
	}

	m.mu.Lock()
	req := &PublishRequest{hash: hash, raw: raw, completion: cb, peersLeft: make(map[string]bool)}
	targets := make([]*peer.Peer, 0, len(m.connected))
	for host, p := range m.connected {
		if m.downloadPeer != nil && host == m.downloadPeer.Host() {
			continue
		}
		req.peersLeft[host] = true
		targets = append(targets, p)
	}
	m.publishes[hash] = req
	m.mu.Unlock()

	for _, p := range targets {
		p.ScheduleDisconnect(ProtocolTimeout)
		_ = p.SendInv([]peer.InvItem{{IsBlock: false, Hash: hash}})
	}

	time.AfterFunc(ProtocolTimeout, func() {
		m.timeoutPublish(hash)
	})
}

func (m *Manager) timeoutPublish(hash chainhash.Hash) {
	m.mu.Lock()
	req, ok := m.publishes[hash]
	if !ok || req.resolved {
		m.mu.Unlock()
		return
	}
	req.resolved = true
	delete(m.publishes, hash)
	m.mu.Unlock()

	req.completion(ETIMEDOUT)
}

// OnTxRelayed records that host relayed or acknowledged knowledge of
// hash, resolving any pending publish exactly once and promoting the
// transaction to "verified 0-conf" once enough peers have relayed it
// (spec.md §4.3 "Relay-count tracking").
func (m *Manager) OnTxRelayed(host string, hash chainhash.Hash) {
	m.mu.Lock()
	if m.txRelays[hash] == nil {
		m.txRelays[hash] = make(map[string]bool)
	}
	m.txRelays[hash][host] = true
	delete(m.txRequests[hash], host)

	req, pending := m.publishes[hash]
	if pending && !req.resolved {
		delete(req.peersLeft, host)
		req.resolved = true
		delete(m.publishes, hash)
	} else {
		pending = false
	}

	verified := len(m.txRelays[hash]) >= MaxConnectCount
	m.mu.Unlock()

	if pending {
		req.completion(nil)
	}
	if verified && !m.wallet.TransactionIsVerified(hash) {
		m.wallet.UpdateTransactions([]chainhash.Hash{hash}, txn.TxUnconfirmed, uint32(time.Now().Unix()))
	}
}

// OnFeeFilter handles a peer's feefilter advertisement: find the
// second-highest across connected peers, and raise the wallet's fee
// rate to 1.5x that if it is above both the default rate and the
// wallet's current rate (spec.md §4.3 "Fee advertisements"). No upper
// ceiling is applied to the new rate.
func (m *Manager) OnFeeFilter(p *peer.Peer, feePerKb uint64) {
	host := p.Host()
	m.mu.Lock()
	m.peerFees[host] = feePerKb
	fees := make([]uint64, 0, len(m.peerFees))
	for _, f := range m.peerFees {
		fees = append(fees, f)
	}
	m.mu.Unlock()

	if len(fees) < 2 {
		return
	}
	sortDescending(fees)
	second := fees[1]
	candidate := second + second/2

	current := m.wallet.FeePerKb()
	if candidate > uint64(txn.TxFeePerKB) && candidate > current {
		m.wallet.SetFeePerKb(candidate)
	}
}

func sortDescending(v []uint64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] < v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

// OnMempoolDrained is called once a peer's mempool relay finishes (the
// ping/pong round after a mempool request). Once every connected peer
// (at least MaxConnectCount) has reached this state, GC unconfirmed
// wallet transactions nothing reported knowledge of, and walk back any
// transaction still short of MaxConnectCount relayers to "unverified"
// (spec.md §4.3 "Unrelayed-tx GC"): relay can regress after a reorg or
// a peer churn, so a partially-relayed tx isn't fully verified either.
func (m *Manager) OnMempoolDrained(host string) {
	m.mu.Lock()
	m.mempoolDrained[host] = true
	ready := len(m.mempoolDrained) >= MaxConnectCount && len(m.mempoolDrained) >= len(m.connected)
	var unrelayed []chainhash.Hash
	var partial []chainhash.Hash
	if ready {
		for _, t := range m.wallet.TxUnconfirmedBefore(txn.TxUnconfirmed) {
			h := t.Hash()
			relayers := len(m.txRelays[h])
			if relayers == 0 {
				if _, pending := m.publishes[h]; pending {
					continue
				}
				unrelayed = append(unrelayed, h)
				if len(unrelayed) >= maxUnrelayedTxes {
					break
				}
				continue
			}
			if relayers < MaxConnectCount && t.Timestamp != 0 {
				partial = append(partial, h)
			}
		}
	}
	m.mu.Unlock()

	if !ready {
		return
	}
	for _, h := range unrelayed {
		m.wallet.RemoveTransaction(h)
	}
	if len(partial) > 0 {
		m.wallet.UpdateTransactions(partial, txn.TxUnconfirmed, 0)
	}
}

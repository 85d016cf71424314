// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager

import (
	"time"

	"github.com/kaspanet/spvwallet/bloom"
	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/wire"
)

// requestSync asks p for headers up to a one-week cutoff before
// earliestKeyTime if the wallet is behind, else loads the mempool
// (spec.md §4.3).
func (m *Manager) requestSync(p *peer.Peer) {
	m.mu.Lock()
	behind := m.lastBlock == nil || m.lastBlock.height < m.estimatedHeight
	locator := m.locatorLocked()
	if behind {
		m.setState(StateSyncing)
	} else {
		m.setState(StateSynced)
	}
	m.mu.Unlock()

	p.SetCurrentBlockHeight(m.currentHeight())

	if behind {
		var stop chainhash.Hash
		_ = p.SendGetheaders(locator, stop)
		return
	}
	p.SendMempool(func(error) {})
}

func (m *Manager) currentHeight() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastBlock == nil {
		return 0
	}
	return m.lastBlock.height
}

// Locator returns the current block locator (spec.md §4.3, exported for
// orphan-triggered getblocks requests).
func (m *Manager) Locator() []chainhash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locatorLocked()
}

// locatorLocked builds a block locator: the 10 most recent blocks, then
// exponentially spaced ancestors (step *= 2), ending with the genesis
// hash (spec.md §4.3 "Locator algorithm"). Must be called with m.mu
// held.
func (m *Manager) locatorLocked() []chainhash.Hash {
	if m.lastBlock == nil {
		return []chainhash.Hash{m.params.GenesisHash}
	}

	var out []chainhash.Hash
	node := m.lastBlock
	step := uint32(1)
	count := 0
	for node != nil {
		out = append(out, node.hash)
		count++
		if count >= 10 {
			step *= 2
		}
		if node.height == 0 {
			return out
		}
		var target uint32
		if step > node.height {
			target = 0
		} else {
			target = node.height - step
		}
		node = m.findAncestorLocked(node, target)
	}
	out = append(out, m.params.GenesisHash)
	return out
}

// findAncestorLocked walks prevHash links from node back to height
// targetHeight. Must be called with m.mu held.
func (m *Manager) findAncestorLocked(node *blockNode, targetHeight uint32) *blockNode {
	for node != nil && node.height > targetHeight {
		prev, ok := m.blocks[node.prevHash]
		if !ok {
			return nil
		}
		node = prev
	}
	return node
}

// HeaderMsg is the minimal shape of one relayed block header, the part
// of the wire header message the Peer Manager consumes (spec.md §4.4).
type HeaderMsg struct {
	Hash      chainhash.Hash
	PrevHash  chainhash.Hash
	Timestamp time.Time
	Bits      uint32
}

// OnHeaders is called by the transport when a peer relays headers.
func (m *Manager) OnHeaders(p *peer.Peer, headers []HeaderMsg) {
	for _, h := range headers {
		m.ingestBlock(p, h.Hash, h.PrevHash, h.Timestamp, h.Bits, nil)
	}
}

// OnMerkleBlock is called by the transport when a peer relays a merkle
// block matching the installed filter.
func (m *Manager) OnMerkleBlock(p *peer.Peer, block *peer.MerkleBlockMsg) {
	falsePositives := 0
	for _, hash := range block.MatchedTxes {
		if !m.wallet.ContainsTransaction(hash) {
			falsePositives++
		}
	}
	m.fpEstimator.Observe(int(block.TotalTx), falsePositives)
	if m.fpEstimator.ExceedsDisconnectThreshold() {
		m.fpEstimator.Reset(bloom.ReducedFalsePositiveRate)
		m.onPeerDisconnected(p.Host(), EPROTO)
		p.Disconnect()
		return
	}
	m.ingestBlock(p, block.BlockHash, block.PrevBlockHash, block.Timestamp, block.Bits, block.MatchedTxes)
}

// ingestBlock implements spec.md §4.3's block-ingestion algorithm:
// staleness check, orphan handling, difficulty/checkpoint verification,
// main-chain extension or fork adoption, and orphan re-chaining.
func (m *Manager) ingestBlock(p *peer.Peer, hash, prevHash chainhash.Hash, timestamp time.Time, bits uint32, matchedTxes []chainhash.Hash) {
	m.mu.Lock()

	cutoff := m.earliestKeyTime.Add(-oneWeek).Add(2 * time.Hour)
	if !m.earliestKeyTime.IsZero() && timestamp.After(cutoff) && m.lastBlock == nil {
		m.mu.Unlock()
		return
	}

	if _, known := m.blocks[hash]; known {
		m.mu.Unlock()
		m.applyMatchedTxes(hash, timestamp, matchedTxes)
		return
	}

	var zero chainhash.Hash
	prevNode, havePrev := m.blocks[prevHash]
	if !havePrev && prevHash != zero {
		if time.Since(timestamp) > oneWeek {
			m.mu.Unlock()
			return
		}
		node := &blockNode{hash: hash, prevHash: prevHash, timestamp: timestamp, bits: bits}
		if m.maxOrphanHeaders > 0 && len(m.orphans) >= m.maxOrphanHeaders {
			m.evictOrphanLocked()
		}
		m.orphans[prevHash] = node
		m.orphanOrder = append(m.orphanOrder, prevHash)
		synced := m.state == StateSynced
		locator := m.locatorLocked()
		m.mu.Unlock()
		if synced {
			_ = p.SendGetblocks(locator, chainhash.Hash{})
		}
		return
	}

	var height uint32
	if prevNode != nil {
		height = prevNode.height + 1
	}

	if cp, ok := m.checkpoints[height]; ok {
		if *cp.Hash != hash {
			m.mu.Unlock()
			return
		}
	}

	if m.params.IsDifficultyTransition(height) && m.params.VerifyDifficulty != nil {
		hdr := &wire.BlockHeader{Timestamp: timestamp, Bits: bits}
		if err := m.params.VerifyDifficulty(hdr, height, &blockSetAdapter{m}); err != nil {
			m.mu.Unlock()
			return
		}
	}

	node := &blockNode{hash: hash, prevHash: prevHash, height: height, timestamp: timestamp, bits: bits}
	m.blocks[hash] = node

	isExtension := m.lastBlock == nil || prevHash == m.lastBlock.hash
	var joinHeight uint32
	reorged := false
	if isExtension {
		m.lastBlock = node
	} else if m.lastBlock != nil && height > m.lastBlock.height {
		joinHeight = m.findJoinHeightLocked(node)
		reorged = true
		m.lastBlock = node
	}

	synced := m.lastBlock != nil && m.lastBlock.height >= m.estimatedHeight
	if synced {
		m.setState(StateSynced)
	}
	m.mu.Unlock()

	if reorged {
		m.wallet.SetTxUnconfirmedAfter(joinHeight)
	}

	m.applyMatchedTxes(hash, timestamp, matchedTxes)
	m.chainOrphansFrom(p, hash)

	if synced {
		p.SendMempool(func(error) {})
	}
}

// evictOrphanLocked drops the oldest still-present orphan to keep the
// pool under maxOrphanHeaders, skipping order entries whose orphan was
// already consumed by chainOrphansFrom. Must be called with m.mu held.
func (m *Manager) evictOrphanLocked() {
	for len(m.orphanOrder) > 0 {
		oldest := m.orphanOrder[0]
		m.orphanOrder = m.orphanOrder[1:]
		if _, ok := m.orphans[oldest]; ok {
			delete(m.orphans, oldest)
			return
		}
	}
}

// findJoinHeightLocked walks node's ancestry back to find the height at
// which the new fork diverged from the previous main chain. Must be
// called with m.mu held.
func (m *Manager) findJoinHeightLocked(node *blockNode) uint32 {
	seen := make(map[chainhash.Hash]bool)
	for n := node; n != nil; {
		seen[n.hash] = true
		if n.height == 0 {
			break
		}
		n = m.blocks[n.prevHash]
	}
	for n := m.lastBlock; n != nil; {
		if seen[n.hash] {
			return n.height
		}
		if n.height == 0 {
			return 0
		}
		n = m.blocks[n.prevHash]
	}
	return 0
}

// applyMatchedTxes feeds wallet-relevant transaction hashes confirmed
// in this block back to the wallet via UpdateTransactions.
func (m *Manager) applyMatchedTxes(blockHash chainhash.Hash, timestamp time.Time, matchedTxes []chainhash.Hash) {
	if len(matchedTxes) == 0 {
		return
	}
	m.mu.Lock()
	node := m.blocks[blockHash]
	m.mu.Unlock()
	if node == nil {
		return
	}
	m.wallet.UpdateTransactions(matchedTxes, node.height, uint32(timestamp.Unix()))
}

// chainOrphansFrom re-chains any orphan keyed by hash now that hash is
// known, recursively (spec.md §4.3 step 8).
func (m *Manager) chainOrphansFrom(p *peer.Peer, hash chainhash.Hash) {
	m.mu.Lock()
	child, ok := m.orphans[hash]
	if ok {
		delete(m.orphans, hash)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.ingestBlock(p, child.hash, child.prevHash, child.timestamp, child.bits, nil)
}

// blockSetAdapter exposes the verified chain as a chaincfg.BlockSet for
// difficulty verification.
type blockSetAdapter struct {
	m *Manager
}

func (b *blockSetAdapter) HeaderByHash(hash chainhash.Hash) (*wire.BlockHeader, bool) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	node, ok := b.m.blocks[hash]
	if !ok {
		return nil, false
	}
	return &wire.BlockHeader{
		PrevBlock: node.prevHash,
		Timestamp: node.timestamp,
		Bits:      node.bits,
	}, true
}

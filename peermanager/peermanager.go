// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peermanager implements the Peer Manager (spec.md §4.3): it
// maintains a bounded pool of peer sessions, drives header/merkle-block
// synchronization against one download peer, installs bloom filters
// covering the wallet's addresses and UTXOs, publishes wallet
// transactions, and tracks relay counts, all under a single
// manager-wide mutex that is released before any host callback fires
// (spec.md §5's "collect changes under lock, drain outside lock").
package peermanager

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kaspanet/spvwallet/bloom"
	"github.com/kaspanet/spvwallet/chaincfg"
	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/wallet"
)

// State is the Peer Manager's overall synchronization state (spec.md
// §4.3 "States (Peer Manager level)").
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSyncing
	StateSynced
)

const (
	// MaxConnectCount bounds the connected-peer pool (spec.md §6
	// PEER_MAX_CONNECTIONS).
	MaxConnectCount = 3

	// ProtocolTimeout is the default per-peer response deadline.
	ProtocolTimeout = 20 * time.Second

	// MaxConnectFailures disables auto-reconnect once reached and
	// triggers a peer-cache wipe.
	MaxConnectFailures = 20

	// MisbehaviorThreshold wipes the peer cache once a peer accrues
	// this many protocol violations.
	MisbehaviorThreshold = 10

	// DefaultMaxOrphanHeaders bounds the orphan header pool kept while
	// syncing; the oldest orphan is evicted once the cap is reached
	// (spec.md §9 open question, resolved in DESIGN.md).
	DefaultMaxOrphanHeaders = 10000

	oneWeek = 7 * 24 * time.Hour
)

// Errno mirrors spec.md §7's POSIX-style error surface.
type Errno int

const (
	ErrnoNone Errno = iota
	ENOTCONN
	ETIMEDOUT
	EPROTO
	EINVAL
	ENETUNREACH
)

func (e Errno) Error() string {
	switch e {
	case ENOTCONN:
		return "not connected"
	case ETIMEDOUT:
		return "timed out"
	case EPROTO:
		return "protocol violation"
	case EINVAL:
		return "invalid argument"
	case ENETUNREACH:
		return "network unreachable"
	default:
		return "no error"
	}
}

// Host is the set of outbound callbacks the Peer Manager invokes,
// always after releasing its mutex (spec.md §6).
type Host struct {
	SyncStarted        func()
	SyncStopped        func(err error)
	TxStatusUpdate      func()
	SaveBlocks          func(replace bool, blocks []*BlockRecord)
	SavePeers           func(replace bool, peers []*PeerRecord)
	NetworkIsReachable  func() bool
	ThreadCleanup       func()
}

// BlockRecord is the persisted shape of a verified header, passed to
// Host.SaveBlocks.
type BlockRecord struct {
	Hash       chainhash.Hash
	PrevHash   chainhash.Hash
	Height     uint32
	Timestamp  time.Time
	Bits       uint32
}

// PeerRecord is the persisted shape of a candidate peer address,
// passed to Host.SavePeers.
type PeerRecord struct {
	Host      string
	Port      uint16
	Services  uint64
	Timestamp time.Time
}

// Dialer creates peer sessions on demand; production code backs this
// with a real Transport over net.Dial, tests inject a fake.
type Dialer func(host string, port uint16) *peer.Peer

// blockNode is one verified or candidate header in the in-memory chain,
// keyed by hash with a secondary index by prevHash for orphans
// (spec.md §9: "two indices into one owning store").
type blockNode struct {
	hash      chainhash.Hash
	prevHash  chainhash.Hash
	height    uint32
	timestamp time.Time
	bits      uint32
}

// PublishRequest is one transaction awaiting relay confirmation.
type PublishRequest struct {
	hash       chainhash.Hash
	raw        []byte
	completion func(err error)
	peersLeft  map[string]bool
	resolved   bool
}

// Manager is the Peer Manager: a concurrent state machine coordinating
// peer sessions, chain verification, filter installation, and
// transaction publication (spec.md §4.3).
type Manager struct {
	mu sync.Mutex

	params *chaincfg.Params
	wallet *wallet.Wallet
	host   Host
	dial   Dialer
	rand   *rand.Rand

	state State

	connected    map[string]*peer.Peer
	downloadPeer *peer.Peer

	cachedAddrs []PeerRecord
	connectFailureCount int
	misbehaviorCount     map[string]int

	blocks     map[chainhash.Hash]*blockNode
	orphans    map[chainhash.Hash]*blockNode // keyed by prevHash
	orphanOrder []chainhash.Hash             // prevHash keys, oldest first, for cap eviction
	maxOrphanHeaders int
	checkpoints map[uint32]*chaincfg.Checkpoint
	lastBlock  *blockNode

	estimatedHeight uint32
	earliestKeyTime time.Time

	filter      *bloom.Filter
	fpEstimator *bloom.RateEstimator

	txRelays   map[chainhash.Hash]map[string]bool
	txRequests map[chainhash.Hash]map[string]bool

	peerFees       map[string]uint64
	mempoolDrained map[string]bool

	publishes map[chainhash.Hash]*PublishRequest

	cancel context.CancelFunc
}

// New constructs an idle Peer Manager bound to w and params. rng seeds
// peer-selection entropy (spec.md §9, deterministic-test injection).
func New(params *chaincfg.Params, w *wallet.Wallet, host Host, dial Dialer, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{
		params:       params,
		wallet:       w,
		host:         host,
		dial:         dial,
		rand:         rng,
		connected:    make(map[string]*peer.Peer),
		misbehaviorCount: make(map[string]int),
		blocks:       make(map[chainhash.Hash]*blockNode),
		orphans:      make(map[chainhash.Hash]*blockNode),
		maxOrphanHeaders: DefaultMaxOrphanHeaders,
		checkpoints:  make(map[uint32]*chaincfg.Checkpoint),
		fpEstimator:  bloom.NewRateEstimator(bloom.DefaultFalsePositiveRate),
		txRelays:     make(map[chainhash.Hash]map[string]bool),
		txRequests:   make(map[chainhash.Hash]map[string]bool),
		peerFees:       make(map[string]uint64),
		mempoolDrained: make(map[string]bool),
		publishes:    make(map[chainhash.Hash]*PublishRequest),
	}
	for _, cp := range params.Checkpoints {
		cpCopy := cp
		m.checkpoints[cp.Height] = &cpCopy
	}
	return m
}

// State returns the manager's current synchronization state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SyncProgress returns the fraction of the estimated chain height that
// has been verified, in [0, 1] (SPEC_FULL.md §C.5 supplement).
func (m *Manager) SyncProgress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.estimatedHeight == 0 {
		return 0
	}
	var height uint32
	if m.lastBlock != nil {
		height = m.lastBlock.height
	}
	if height >= m.estimatedHeight {
		return 1
	}
	return float64(height) / float64(m.estimatedHeight)
}

func (m *Manager) setState(s State) {
	m.state = s
}

// SetEarliestKeyTime records the wallet's birthday: until the first
// block is accepted, ingestion skips blocks timestamped later than one
// week before it plus two hours (spec.md §4.3).
func (m *Manager) SetEarliestKeyTime(t time.Time) {
	m.mu.Lock()
	m.earliestKeyTime = t
	m.mu.Unlock()
}

// SetMaxOrphanHeaders overrides DefaultMaxOrphanHeaders, typically from
// config.Config.MaxOrphanHeaders.
func (m *Manager) SetMaxOrphanHeaders(n int) {
	m.mu.Lock()
	m.maxOrphanHeaders = n
	m.mu.Unlock()
}

// SeedAddrs adds candidate peer addresses to the manager's working
// connect pool, typically loaded from the host's persistent address
// book or resolved via DNS seeding at startup (spec.md §4.3, §6).
func (m *Manager) SeedAddrs(records []PeerRecord) {
	m.mu.Lock()
	m.cachedAddrs = append(m.cachedAddrs, records...)
	m.mu.Unlock()
}

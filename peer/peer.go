// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements one session's send/receive surface and status
// (spec.md §6, "Peer session contract (collaborator)"). The wire framing
// of named messages is the excluded collaborator; Peer owns connection
// lifecycle, scheduled disconnect timeouts, and exactly-once ping/pong
// completions, and delegates the actual bytes-on-the-wire encoding to an
// injected Transport.
package peer

import (
	"context"
	"sync"
	"time"

	"github.com/kaspanet/spvwallet/chainhash"
)

// ConnectStatus is the lifecycle state of a peer session.
type ConnectStatus int

const (
	StatusDisconnected ConnectStatus = iota
	StatusConnecting
	StatusConnected
)

// Listener receives events from a Peer on the peer's own goroutine.
// Implementations (the Peer Manager) must not block for long inside
// these callbacks.
type Listener interface {
	OnConnected(p *Peer)
	OnDisconnected(p *Peer, err error)
	OnVersion(p *Peer, version uint32, lastBlock uint32, services uint64)
	OnMerkleBlock(p *Peer, block *MerkleBlockMsg)
	OnTx(p *Peer, txBytes []byte)
	OnInv(p *Peer, items []InvItem)
	OnGetData(p *Peer, items []InvItem)
	OnFeeFilter(p *Peer, feePerKb uint64)
	OnReject(p *Peer, reason string)
}

// InvItem names one relayed or requested piece of inventory.
type InvItem struct {
	IsBlock bool
	Hash    chainhash.Hash
}

// MerkleBlockMsg is the payload of a relayed merkle block: header fields
// plus the transaction hashes the embedded partial merkle tree proved
// matched the installed filter. Parsing/verifying the tree itself is the
// excluded merkle-block collaborator (spec.md §1).
type MerkleBlockMsg struct {
	BlockHash     chainhash.Hash
	PrevBlockHash chainhash.Hash
	Timestamp     time.Time
	Bits          uint32
	TotalTx       uint32
	MatchedTxes   []chainhash.Hash
}

// Transport is the collaborator that actually frames and exchanges named
// messages with a remote peer over the wire (spec.md §1: "the peer wire
// protocol framing ... is treated as a collaborator"). Peer drives it
// but never encodes or decodes wire bytes itself.
type Transport interface {
	Dial(ctx context.Context, addr string) error
	Close() error

	SendFilterload(filter []byte, hashFuncs uint32, tweak uint32, flags byte) error
	SendGetblocks(locators []chainhash.Hash, stopHash chainhash.Hash) error
	SendGetheaders(locators []chainhash.Hash, stopHash chainhash.Hash) error
	SendGetdata(items []InvItem) error
	SendInv(items []InvItem) error
	SendPing(nonce uint64) error
	SendPong(nonce uint64) error
	SendMempool() error
	SendGetaddr() error
	SendFeeFilter(feePerKb uint64) error
}

// Config names a peer session and the callbacks/transport it runs over.
type Config struct {
	Host      string
	Port      uint16
	Listener  Listener
	Transport Transport
}

// Peer is one session's send/receive surface and status.
type Peer struct {
	cfg Config

	mu               sync.Mutex
	status           ConnectStatus
	version          uint32
	lastBlock        uint32
	services         uint64
	feePerKb         uint64
	pingStart        time.Time
	pingTime         time.Duration
	needsFilterUpdate bool
	currentHeight    uint32
	earliestKeyTime  time.Time

	disconnectTimer *time.Timer
	nextNonce       uint64
	pending         map[uint64]func(error)

	closeOnce sync.Once
	done      chan struct{}
}

// New returns a disconnected Peer session bound to cfg.
func New(cfg Config) *Peer {
	return &Peer{
		cfg:     cfg,
		status:  StatusDisconnected,
		pending: make(map[uint64]func(error)),
		done:    make(chan struct{}),
	}
}

// Host returns the peer's network address.
func (p *Peer) Host() string { return p.cfg.Host }

// Equal compares peers by (host, port) identity, per spec.md §6.
func (p *Peer) Equal(other *Peer) bool {
	return other != nil && p.cfg.Host == other.cfg.Host && p.cfg.Port == other.cfg.Port
}

// Connect dials the peer. The transport is expected to perform the
// version handshake and report it back via Listener.OnVersion /
// OnConnected.
func (p *Peer) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.status = StatusConnecting
	p.mu.Unlock()

	addr := p.cfg.Host
	if err := p.cfg.Transport.Dial(ctx, addr); err != nil {
		p.mu.Lock()
		p.status = StatusDisconnected
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.status = StatusConnected
	p.mu.Unlock()
	return nil
}

// Disconnect tears down the session. Safe to call more than once.
func (p *Peer) Disconnect() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.status = StatusDisconnected
		if p.disconnectTimer != nil {
			p.disconnectTimer.Stop()
		}
		pending := p.pending
		p.pending = make(map[uint64]func(error))
		p.mu.Unlock()

		_ = p.cfg.Transport.Close()
		close(p.done)

		for _, cb := range pending {
			cb(errDisconnected)
		}
	})
}

// Done is closed once the peer has fully disconnected.
func (p *Peer) Done() <-chan struct{} { return p.done }

// ConnectStatus returns the current session status.
func (p *Peer) ConnectStatus() ConnectStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Version returns the peer's advertised protocol version.
func (p *Peer) Version() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// LastBlock returns the peer's last reported chain height.
func (p *Peer) LastBlock() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBlock
}

// PingTime returns the round-trip time of the most recently completed
// ping.
func (p *Peer) PingTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pingTime
}

// FeePerKb returns the fee rate the peer last advertised via feefilter.
func (p *Peer) FeePerKb() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feePerKb
}

// SetVersionInfo is called by the transport once the handshake
// completes, recording the peer's advertised version/height/services.
func (p *Peer) SetVersionInfo(version, lastBlock uint32, services uint64) {
	p.mu.Lock()
	p.version = version
	p.lastBlock = lastBlock
	p.services = services
	p.mu.Unlock()
}

// Services returns the peer's advertised service bits.
func (p *Peer) Services() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.services
}

// SetNeedsFilterUpdate marks the peer as awaiting a filter rebuild
// ping-pong round (spec.md §4.3, filter update handshake).
func (p *Peer) SetNeedsFilterUpdate(v bool) {
	p.mu.Lock()
	p.needsFilterUpdate = v
	p.mu.Unlock()
}

// NeedsFilterUpdate reports whether the peer is mid filter-update
// handshake.
func (p *Peer) NeedsFilterUpdate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsFilterUpdate
}

// SetCurrentBlockHeight records the wallet's local chain height, for
// peers that report progress relative to it.
func (p *Peer) SetCurrentBlockHeight(h uint32) {
	p.mu.Lock()
	p.currentHeight = h
	p.mu.Unlock()
}

// SetEarliestKeyTime records the earliest key birth time the wallet
// cares about, trimming how far back this peer needs to send headers.
func (p *Peer) SetEarliestKeyTime(t time.Time) {
	p.mu.Lock()
	p.earliestKeyTime = t
	p.mu.Unlock()
}

// ScheduleDisconnect arms (d > 0) or cancels (d <= 0) a timeout after
// which the peer is forcibly disconnected, per spec.md §5's per-peer
// disconnect deadlines. Re-arming replaces any previous timer.
func (p *Peer) ScheduleDisconnect(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disconnectTimer != nil {
		p.disconnectTimer.Stop()
		p.disconnectTimer = nil
	}
	if d <= 0 {
		return
	}
	p.disconnectTimer = time.AfterFunc(d, func() {
		p.Disconnect()
		if p.cfg.Listener != nil {
			p.cfg.Listener.OnDisconnected(p, errTimedOut)
		}
	})
}

func (p *Peer) SendFilterload(filter []byte, hashFuncs, tweak uint32, flags byte) error {
	return p.cfg.Transport.SendFilterload(filter, hashFuncs, tweak, flags)
}

func (p *Peer) SendGetblocks(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	return p.cfg.Transport.SendGetblocks(locators, stopHash)
}

func (p *Peer) SendGetheaders(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	return p.cfg.Transport.SendGetheaders(locators, stopHash)
}

func (p *Peer) SendGetdata(items []InvItem) error {
	return p.cfg.Transport.SendGetdata(items)
}

func (p *Peer) SendInv(items []InvItem) error {
	return p.cfg.Transport.SendInv(items)
}

func (p *Peer) SendGetaddr() error {
	return p.cfg.Transport.SendGetaddr()
}

// SendPing sends a ping and invokes completion exactly once, either when
// the matching pong is delivered via OnPong or when the peer
// disconnects first. This is the request/continuation pattern spec.md
// §9 calls for in place of the reference core's heap-allocated
// continuation structs.
func (p *Peer) SendPing(completion func(err error)) {
	p.mu.Lock()
	nonce := p.nextNonce
	p.nextNonce++
	p.pending[nonce] = completion
	p.pingStart = time.Now()
	p.mu.Unlock()

	if err := p.cfg.Transport.SendPing(nonce); err != nil {
		p.resolvePending(nonce, err)
	}
}

// OnPong is called by the transport when a pong arrives.
func (p *Peer) OnPong(nonce uint64) {
	p.mu.Lock()
	p.pingTime = time.Since(p.pingStart)
	p.mu.Unlock()
	p.resolvePending(nonce, nil)
}

func (p *Peer) resolvePending(nonce uint64, err error) {
	p.mu.Lock()
	cb, ok := p.pending[nonce]
	if ok {
		delete(p.pending, nonce)
	}
	p.mu.Unlock()
	if ok && cb != nil {
		cb(err)
	}
}

// SendMempool requests the peer's mempool inventory; completion fires
// once the subsequent ping/pong round confirms the mempool reply
// finished relaying, mirroring spec.md §4.3's GC handshake.
func (p *Peer) SendMempool(completion func(err error)) {
	if err := p.cfg.Transport.SendMempool(); err != nil {
		completion(err)
		return
	}
	p.SendPing(completion)
}

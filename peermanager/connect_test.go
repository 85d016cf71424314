// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermanager_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/kaspanet/spvwallet/chaincfg"
	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
	"github.com/kaspanet/spvwallet/peermanager"
	"github.com/kaspanet/spvwallet/waddr"
	"github.com/kaspanet/spvwallet/wallet"
)

// fakeTransport is a no-op peer.Transport: Dial always succeeds
// immediately unless dialErr is set, and every send just records that it
// happened.
type fakeTransport struct {
	dialErr error
	sent    []string
}

func (t *fakeTransport) Dial(ctx context.Context, addr string) error { return t.dialErr }
func (t *fakeTransport) Close() error                                { return nil }
func (t *fakeTransport) SendFilterload(filter []byte, hashFuncs, tweak uint32, flags byte) error {
	t.sent = append(t.sent, "filterload")
	return nil
}
func (t *fakeTransport) SendGetblocks(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	t.sent = append(t.sent, "getblocks")
	return nil
}
func (t *fakeTransport) SendGetheaders(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	t.sent = append(t.sent, "getheaders")
	return nil
}
func (t *fakeTransport) SendGetdata(items []peer.InvItem) error {
	t.sent = append(t.sent, "getdata")
	return nil
}
func (t *fakeTransport) SendInv(items []peer.InvItem) error {
	t.sent = append(t.sent, "inv")
	return nil
}
func (t *fakeTransport) SendPing(nonce uint64) error {
	t.sent = append(t.sent, "ping")
	return nil
}
func (t *fakeTransport) SendPong(nonce uint64) error {
	t.sent = append(t.sent, "pong")
	return nil
}
func (t *fakeTransport) SendMempool() error {
	t.sent = append(t.sent, "mempool")
	return nil
}
func (t *fakeTransport) SendGetaddr() error {
	t.sent = append(t.sent, "getaddr")
	return nil
}
func (t *fakeTransport) SendFeeFilter(feePerKb uint64) error {
	t.sent = append(t.sent, "feefilter")
	return nil
}

// fakeAddress and fakeKeyChain give the test wallet a stable, signing-free
// identity, mirroring the wallet package's own test doubles.
type fakeAddress struct{ id string }

func (a *fakeAddress) String() string           { return a.id }
func (a *fakeAddress) ScriptAddress() []byte     { return []byte(a.id) }
func (a *fakeAddress) IsForPrefix(p string) bool { return true }

type fakeKeyChain struct{ prefix string }

func (k *fakeKeyChain) AddressAt(internal bool, index uint32) (waddr.Address, error) {
	return &fakeAddress{id: fmt.Sprintf("%s-%v-%d", k.prefix, internal, index)}, nil
}
func (k *fakeKeyChain) SignerAt(internal bool, index uint32, seed []byte) (waddr.Signer, error) {
	return nil, fmt.Errorf("signing not supported")
}
func (k *fakeKeyChain) Prefix() string { return k.prefix }

func testParams() *chaincfg.Params {
	return &chaincfg.Params{
		Name:        "testsuite",
		DefaultPort: "18333",
		GenesisHash: chainhash.Hash{0xAA},
	}
}

func newTestWallet() *wallet.Wallet {
	return wallet.New(&fakeKeyChain{prefix: "pm"}, 5, rand.New(rand.NewSource(1)), wallet.Callbacks{})
}

// newTestManager builds a Manager whose dial func hands out *peer.Peer
// sessions backed by fakeTransport, recording every peer it creates so
// tests can reach into the real connectOne path (the only way a host
// actually lands in the manager's connected set) instead of bypassing it.
func newTestManager(host peermanager.Host) (*peermanager.Manager, map[string]*fakeTransport, map[string]*peer.Peer) {
	transports := make(map[string]*fakeTransport)
	peers := make(map[string]*peer.Peer)
	dial := func(h string, port uint16) *peer.Peer {
		ft := &fakeTransport{}
		transports[h] = ft
		p := peer.New(peer.Config{Host: h, Port: port, Transport: ft})
		peers[h] = p
		return p
	}
	m := peermanager.New(testParams(), newTestWallet(), host, dial, rand.New(rand.NewSource(7)))
	return m, transports, peers
}

func TestStateStartsIdle(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{})
	if got := m.State(); got != peermanager.StateIdle {
		t.Errorf("State() = %v, want StateIdle", got)
	}
}

func TestConnectMovesToConnecting(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{})
	m.SeedAddrs([]peermanager.PeerRecord{{Host: "1.2.3.4", Port: 8333}})

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := m.State(); got != peermanager.StateConnecting {
		t.Errorf("State() after Connect = %v, want StateConnecting", got)
	}
}

func TestConnectReportsUnreachableNetwork(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{NetworkIsReachable: func() bool { return false }})
	m.SeedAddrs([]peermanager.PeerRecord{{Host: "1.2.3.4", Port: 8333}})

	if err := m.Connect(""); err != peermanager.ENETUNREACH {
		t.Errorf("Connect on an unreachable network = %v, want ENETUNREACH", err)
	}
}

func TestConnectToppedUpCallDialsNoOneWithoutCachedAddrs(t *testing.T) {
	started := make(chan struct{}, 10)
	m, _, _ := newTestManager(peermanager.Host{SyncStarted: func() { started <- struct{}{} }})

	if err := m.Connect("1.1.1.1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("SyncStarted never fired for the first connect")
	}

	// A second call tops the manager up toward MaxConnectCount rather
	// than refusing outright, but with no cached addrs to sample from
	// it has nothing to dial.
	if err := m.Connect(""); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	select {
	case <-started:
		t.Fatal("SyncStarted fired again with no cached addrs to dial")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectTopsUpRemainingSlots(t *testing.T) {
	started := make(chan struct{}, 10)
	m, _, _ := newTestManager(peermanager.Host{SyncStarted: func() { started <- struct{}{} }})
	m.SeedAddrs([]peermanager.PeerRecord{{Host: "1.1.1.1", Port: 8333}})

	if err := m.Connect("1.1.1.1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("SyncStarted never fired for the first connect")
	}

	m.SeedAddrs([]peermanager.PeerRecord{{Host: "1.1.1.2", Port: 8333}})
	if err := m.Connect(""); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Connect should have topped up toward MaxConnectCount using the newly cached addr")
	}
}

func TestOnConnectedSelectsFirstPeerAsDownload(t *testing.T) {
	var started int
	var sawFilterload bool
	m, _, _ := newTestManager(peermanager.Host{
		SyncStarted: func() { started++ },
	})
	ft := &fakeTransport{}
	p := peer.New(peer.Config{Host: "1.1.1.1", Port: 8333, Transport: ft})
	p.SetVersionInfo(70015, 100, 1)

	m.OnConnected(p)

	if started != 1 {
		t.Errorf("SyncStarted fired %d times, want 1", started)
	}
	for _, s := range ft.sent {
		if s == "filterload" {
			sawFilterload = true
		}
	}
	if !sawFilterload {
		t.Error("the first connected peer should have been selected as download peer and received a filterload")
	}
}

func TestOnConnectedKeepsBetterDownloadPeer(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{})

	first := peer.New(peer.Config{Host: "1.1.1.1", Port: 8333, Transport: &fakeTransport{}})
	first.SetVersionInfo(70015, 500, 1)
	m.OnConnected(first)

	secondFt := &fakeTransport{}
	second := peer.New(peer.Config{Host: "2.2.2.2", Port: 8333, Transport: secondFt})
	second.SetVersionInfo(70015, 100, 1) // lower height, should not take over
	m.OnConnected(second)

	for _, s := range secondFt.sent {
		if s == "filterload" {
			t.Error("a peer reporting a lower height than the current download peer should not take over")
		}
	}
}

func TestOnDisconnectedTriggersReconnectWhenDownloadPeerDrops(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{})
	m.SeedAddrs([]peermanager.PeerRecord{{Host: "3.3.3.3", Port: 8333}})

	p := peer.New(peer.Config{Host: "3.3.3.3", Port: 8333, Transport: &fakeTransport{}})
	m.OnConnected(p)

	m.OnDisconnected(p, peermanager.ETIMEDOUT)

	// onPeerDisconnected re-enters Connect(""), which (since no peers are
	// connected) should move state back to StateConnecting rather than
	// leaving it Idle, as long as connectFailureCount has not yet hit
	// MaxConnectFailures.
	if got := m.State(); got != peermanager.StateConnecting {
		t.Errorf("State() after losing the download peer = %v, want Connecting", got)
	}
}

func TestOnDisconnectedExhaustionStopsSync(t *testing.T) {
	var stoppedErr error
	var stopped bool
	m, _, _ := newTestManager(peermanager.Host{
		SyncStopped: func(err error) { stopped = true; stoppedErr = err },
	})

	host := "4.4.4.4"
	for i := 0; i < peermanager.MaxConnectFailures; i++ {
		p := peer.New(peer.Config{Host: host, Port: 8333, Transport: &fakeTransport{}})
		m.OnConnected(p)
		m.OnDisconnected(p, peermanager.ETIMEDOUT)
	}

	if !stopped {
		t.Fatal("SyncStopped should fire once connectFailureCount reaches MaxConnectFailures")
	}
	if stoppedErr != peermanager.ETIMEDOUT {
		t.Errorf("SyncStopped err = %v, want ETIMEDOUT", stoppedErr)
	}
}

func TestMarkMisbehavingDisconnectsPeer(t *testing.T) {
	started := make(chan struct{}, 1)
	m, _, peers := newTestManager(peermanager.Host{SyncStarted: func() { started <- struct{}{} }})

	if err := m.Connect("5.5.5.5"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("peer never reached connected state")
	}

	m.MarkMisbehaving("5.5.5.5")

	p := peers["5.5.5.5"]
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("MarkMisbehaving should disconnect the offending peer")
	}
}

func TestMarkMisbehavingUnknownHostIsSafe(t *testing.T) {
	m, _, _ := newTestManager(peermanager.Host{})
	m.MarkMisbehaving("9.9.9.9") // must not panic even though no such peer is connected
}

func TestDisconnectTearsDownEveryPeer(t *testing.T) {
	started := make(chan struct{}, 10)
	m, _, _ := newTestManager(peermanager.Host{SyncStarted: func() { started <- struct{}{} }})
	m.SeedAddrs([]peermanager.PeerRecord{
		{Host: "6.6.6.1", Port: 8333},
		{Host: "6.6.6.2", Port: 8333},
	})

	if err := m.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 2 peers reached connected state", i)
		}
	}

	done := make(chan struct{})
	go func() {
		m.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return")
	}

	if m.State() != peermanager.StateIdle {
		t.Errorf("State() after Disconnect = %v, want StateIdle", m.State())
	}
}

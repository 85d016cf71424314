// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr_test

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/kaspanet/spvwallet/addrmgr"
)

func newTestManager() *addrmgr.Manager {
	return addrmgr.New(rand.New(rand.NewSource(1)))
}

func TestAddAndLen(t *testing.T) {
	m := newTestManager()
	m.Add(&addrmgr.NetAddress{IP: net.ParseIP("1.2.3.4"), Port: 8333, Timestamp: time.Now()})
	m.Add(&addrmgr.NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 8333, Timestamp: time.Now()})

	if got := m.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestAddKeepsNewerTimestamp(t *testing.T) {
	m := newTestManager()
	ip := net.ParseIP("1.2.3.4")
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: newer, Services: 7})
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: older, Services: 1})

	all := m.All()
	if len(all) != 1 {
		t.Fatalf("expected one merged address, got %d", len(all))
	}
	if !all[0].Timestamp.Equal(newer) {
		t.Errorf("Add overwrote a newer timestamp with an older one: got %v, want %v", all[0].Timestamp, newer)
	}
	if all[0].Services != 7 {
		t.Errorf("Services = %d, want 7 (from the newer record)", all[0].Services)
	}
}

func TestRemove(t *testing.T) {
	m := newTestManager()
	ip := net.ParseIP("1.2.3.4")
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: time.Now()})
	m.Remove(ip, 8333)
	if got := m.Len(); got != 0 {
		t.Fatalf("Len() after Remove = %d, want 0", got)
	}
}

func TestBanRemovesFromKnown(t *testing.T) {
	m := newTestManager()
	ip := net.ParseIP("1.2.3.4")
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: time.Now()})

	if err := m.Ban(ip, 8333); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if got := m.Len(); got != 0 {
		t.Errorf("banned address still counted in Len(): %d", got)
	}
}

func TestBanUnknownAddress(t *testing.T) {
	m := newTestManager()
	err := m.Ban(net.ParseIP("9.9.9.9"), 8333)
	if err == nil {
		t.Fatal("expected an error banning an address the manager never saw")
	}
}

func TestMarkMisbehavingIncrements(t *testing.T) {
	m := newTestManager()
	ip := net.ParseIP("1.2.3.4")
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: time.Now()})

	if got := m.MarkMisbehaving(ip, 8333); got != 1 {
		t.Errorf("first MarkMisbehaving = %d, want 1", got)
	}
	if got := m.MarkMisbehaving(ip, 8333); got != 2 {
		t.Errorf("second MarkMisbehaving = %d, want 2", got)
	}
}

func TestMarkMisbehavingUnknownIsNoop(t *testing.T) {
	m := newTestManager()
	if got := m.MarkMisbehaving(net.ParseIP("9.9.9.9"), 8333); got != 0 {
		t.Errorf("MarkMisbehaving on unknown address = %d, want 0", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := newTestManager()
	ip := net.ParseIP("1.2.3.4")
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: time.Now()})
	_ = m.Ban(ip, 8333)

	m.Reset()

	if got := m.Len(); got != 0 {
		t.Errorf("Len() after Reset = %d, want 0", got)
	}
	// A previously-banned address should be re-addable after a reset.
	m.Add(&addrmgr.NetAddress{IP: ip, Port: 8333, Timestamp: time.Now()})
	if got := m.Len(); got != 1 {
		t.Errorf("Len() after re-adding post-reset = %d, want 1", got)
	}
}

func TestSampleReturnsAllWhenNExceedsPopulation(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 3; i++ {
		m.Add(&addrmgr.NetAddress{IP: net.IPv4(127, 0, 0, byte(i + 1)), Port: 8333, Timestamp: time.Now()})
	}

	sample := m.Sample(10)
	if len(sample) != 3 {
		t.Fatalf("Sample(10) over 3 known addresses returned %d", len(sample))
	}
}

func TestSampleBoundsCount(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 20; i++ {
		m.Add(&addrmgr.NetAddress{IP: net.IPv4(127, 0, 0, byte(i+1)), Port: 8333, Timestamp: time.Now()})
	}

	sample := m.Sample(5)
	if len(sample) != 5 {
		t.Fatalf("Sample(5) over 20 known addresses returned %d", len(sample))
	}

	seen := make(map[string]bool)
	for _, a := range sample {
		key := a.IP.String()
		if seen[key] {
			t.Errorf("Sample returned duplicate address %s", key)
		}
		seen[key] = true
	}
}

func TestSamplePrefersRecentAndWellBehaved(t *testing.T) {
	m := addrmgr.New(rand.New(rand.NewSource(42)))

	stale := &addrmgr.NetAddress{IP: net.ParseIP("1.1.1.1"), Port: 8333, Timestamp: time.Now().Add(-30 * 24 * time.Hour)}
	fresh := &addrmgr.NetAddress{IP: net.ParseIP("2.2.2.2"), Port: 8333, Timestamp: time.Now(), LastConnected: time.Now()}
	m.Add(stale)
	m.Add(fresh)

	freshPicks := 0
	const trials = 200
	for i := 0; i < trials; i++ {
		sample := m.Sample(1)
		if len(sample) == 1 && sample[0].IP.Equal(fresh.IP) {
			freshPicks++
		}
	}

	if freshPicks <= trials/2 {
		t.Errorf("expected Sample to favor the fresh, well-connected address; picked it %d/%d times", freshPicks, trials)
	}
}

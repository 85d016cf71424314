// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr provides a concurrency-safe cache of candidate peer
// addresses for the Peer Manager, grounded on the teacher's
// addressmanager package: add/remove/ban, and random selection biased
// toward recently-seen, well-behaved peers (spec.md §4.3's "sampled
// with bias toward recent timestamps").
package addrmgr

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrAddressNotFound is returned by operations on an address the
// manager does not know about.
var ErrAddressNotFound = errors.New("addrmgr: address not found")

// NetAddress is the persisted shape of a peer record (spec.md §6):
// address, port, service bitmask, last-seen timestamp, plus the
// bookkeeping SPEC_FULL.md §C.6 adds (last-connected time and
// misbehavior count) to bias reconnection toward peers that have been
// both recent and well-behaved.
type NetAddress struct {
	IP            net.IP
	Port          uint16
	Services      uint64
	Timestamp     time.Time
	Flags         uint32

	LastConnected    time.Time
	MisbehaviorCount int
}

type addrKey string

func keyFor(ip net.IP, port uint16) addrKey {
	b := make([]byte, 0, net.IPv6len+2)
	b = append(b, ip.To16()...)
	b = append(b, byte(port), byte(port>>8))
	return addrKey(b)
}

// Manager caches candidate peer addresses.
type Manager struct {
	mu      sync.Mutex
	rand    *rand.Rand
	known   map[addrKey]*NetAddress
	banned  map[addrKey]*NetAddress
}

// New returns an empty address manager. rng may be nil, in which case a
// process-global source is used; tests should inject a seeded *rand.Rand
// per spec.md §9's "inject a PRNG" note for determinism.
func New(rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		rand:   rng,
		known:  make(map[addrKey]*NetAddress),
		banned: make(map[addrKey]*NetAddress),
	}
}

// Add inserts or updates an address, keeping the newer timestamp.
func (m *Manager) Add(addr *NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(addr.IP, addr.Port)
	if existing, ok := m.known[key]; ok {
		if addr.Timestamp.After(existing.Timestamp) {
			existing.Timestamp = addr.Timestamp
			existing.Services = addr.Services
		}
		return
	}
	cp := *addr
	m.known[key] = &cp
}

// AddMany inserts or updates a batch of addresses.
func (m *Manager) AddMany(addrs []*NetAddress) {
	for _, a := range addrs {
		m.Add(a)
	}
}

// Remove drops an address from the cache entirely.
func (m *Manager) Remove(ip net.IP, port uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := keyFor(ip, port)
	delete(m.known, key)
	delete(m.banned, key)
}

// MarkConnected records a successful connection, used to bias future
// selection toward peers that have worked before.
func (m *Manager) MarkConnected(ip net.IP, port uint16, when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.known[keyFor(ip, port)]; ok {
		a.LastConnected = when
	}
}

// MarkMisbehaving increments an address's misbehavior count. Returns the
// new count.
func (m *Manager) MarkMisbehaving(ip net.IP, port uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.known[keyFor(ip, port)]; ok {
		a.MisbehaviorCount++
		return a.MisbehaviorCount
	}
	return 0
}

// Ban moves an address into the banned set.
func (m *Manager) Ban(ip net.IP, port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := keyFor(ip, port)
	a, ok := m.known[key]
	if !ok {
		return errors.Wrapf(ErrAddressNotFound, "address %s:%d is not registered", ip, port)
	}
	delete(m.known, key)
	m.banned[key] = a
	return nil
}

// Reset clears every known and banned address. The Peer Manager calls
// this after repeated connection failures or excessive misbehavior
// (spec.md §4.3).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known = make(map[addrKey]*NetAddress)
	m.banned = make(map[addrKey]*NetAddress)
}

// Len returns the number of known, non-banned addresses.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.known)
}

// All returns every known, non-banned address, for persistence via the
// host's savePeers callback.
func (m *Manager) All() []*NetAddress {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*NetAddress, 0, len(m.known))
	for _, a := range m.known {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// score weighs an address by recency and a small bonus for peers that
// have connected successfully before, implementing spec.md §4.3's
// "sampled with bias toward recent timestamps" and SPEC_FULL.md §C.6's
// quality bonus.
func score(a *NetAddress, now time.Time) float64 {
	age := now.Sub(a.Timestamp).Hours()
	if age < 0 {
		age = 0
	}
	s := 1.0 / (1.0 + age/24.0)
	if !a.LastConnected.IsZero() {
		s *= 1.5
	}
	s /= float64(1 + a.MisbehaviorCount)
	return s
}

// Sample returns up to n non-banned addresses, chosen with weighted
// probability favoring higher-scoring (recent, well-behaved) peers.
func (m *Manager) Sample(n int) []*NetAddress {
	m.mu.Lock()
	candidates := make([]*NetAddress, 0, len(m.known))
	for _, a := range m.known {
		cp := *a
		candidates = append(candidates, &cp)
	}
	rng := m.rand
	m.mu.Unlock()

	if n >= len(candidates) {
		shuffle(rng, candidates)
		return candidates
	}

	now := time.Now()
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, a := range candidates {
		weights[i] = score(a, now)
		total += weights[i]
	}

	result := make([]*NetAddress, 0, n)
	chosen := make(map[int]bool, n)
	for len(result) < n && len(result) < len(candidates) {
		if total <= 0 {
			break
		}
		r := rng.Float64() * total
		acc := 0.0
		for i, w := range weights {
			if chosen[i] {
				continue
			}
			acc += w
			if r <= acc {
				chosen[i] = true
				result = append(result, candidates[i])
				total -= w
				break
			}
		}
	}
	return result
}

func shuffle(rng *rand.Rand, addrs []*NetAddress) {
	rng.Shuffle(len(addrs), func(i, j int) {
		addrs[i], addrs[j] = addrs[j], addrs[i]
	})
}

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom_test

import (
	"testing"

	"github.com/kaspanet/spvwallet/bloom"
)

func TestFilterAddAndMatch(t *testing.T) {
	f := bloom.NewFilter(10, bloom.DefaultFalsePositiveRate, 0, bloom.BloomUpdateAll)

	present := []byte("an address the wallet owns")
	f.Add(present)

	if !f.Matches(present) {
		t.Error("filter does not match data it was given")
	}
}

func TestFilterMatchesOutPoint(t *testing.T) {
	f := bloom.NewFilter(5, bloom.DefaultFalsePositiveRate, 0xdeadbeef, bloom.BloomUpdateAll)

	var txHash [32]byte
	txHash[0] = 0x01
	f.Add(append(append([]byte{}, txHash[:]...), 0, 0, 0, 0))

	if !f.MatchesOutPoint(txHash, 0) {
		t.Error("MatchesOutPoint should match an outpoint that was added")
	}
	if f.MatchesOutPoint(txHash, 1) {
		t.Error("MatchesOutPoint matched an outpoint at a different index that was never added")
	}
}

func TestFilterDegenerateSize(t *testing.T) {
	// Zero elements and an out-of-range rate should clamp to sane
	// defaults rather than panic or divide by zero.
	f := bloom.NewFilter(0, 0, 0, bloom.BloomUpdateNone)
	if len(f.Bytes()) == 0 {
		t.Fatal("degenerate filter has no backing storage")
	}
	if f.HashFuncs() == 0 {
		t.Error("degenerate filter has zero hash rounds")
	}
}

func TestFilterAccessors(t *testing.T) {
	f := bloom.NewFilter(10, bloom.DefaultFalsePositiveRate, 42, bloom.BloomUpdateP2PubkeyOnly)
	if f.Tweak() != 42 {
		t.Errorf("Tweak() = %d, want 42", f.Tweak())
	}
	if f.FilterFlags() != bloom.BloomUpdateP2PubkeyOnly {
		t.Errorf("FilterFlags() = %v, want BloomUpdateP2PubkeyOnly", f.FilterFlags())
	}
}

func TestRateEstimatorThresholds(t *testing.T) {
	e := bloom.NewRateEstimator(bloom.DefaultFalsePositiveRate)
	if e.ExceedsDisconnectThreshold() {
		t.Fatal("freshly seeded estimator should not exceed the disconnect threshold")
	}

	// Feed a long run of blocks that are all false positives; the rate
	// should climb well past 10x the default.
	for i := 0; i < 2000; i++ {
		e.Observe(100, 100)
	}
	if !e.ExceedsDisconnectThreshold() {
		t.Errorf("estimator did not climb past the disconnect threshold after sustained false positives, rate=%v", e.Rate)
	}

	e.Reset(bloom.ReducedFalsePositiveRate)
	if e.Rate != bloom.ReducedFalsePositiveRate {
		t.Errorf("Reset did not set Rate, got %v", e.Rate)
	}
	if e.ExceedsRebuildThreshold() {
		t.Error("estimator should not exceed the rebuild threshold immediately after Reset")
	}
}

func TestRateEstimatorIgnoresEmptyBlocks(t *testing.T) {
	e := bloom.NewRateEstimator(bloom.DefaultFalsePositiveRate)
	before := e.Rate
	e.Observe(0, 0)
	if e.Rate != before {
		t.Error("Observe should ignore blocks reporting zero transactions")
	}
}

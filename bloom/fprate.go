// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

// DefaultFalsePositiveRate is the filter false-positive rate requested
// under normal operation.
const DefaultFalsePositiveRate = 0.0005

// ReducedFalsePositiveRate is the rate the Peer Manager falls back to
// after disconnecting a download peer whose observed false-positive
// rate ran away (spec.md §4.3 step 1, §8 scenario 6).
const ReducedFalsePositiveRate = 0.00005

// RateEstimator tracks the observed false-positive rate of an installed
// filter with a low-pass filter weighted by each block's transaction
// count against a moving average of transactions-per-block, mirroring
// the "1% low pass filter" of the BWPeerManager reference core.
type RateEstimator struct {
	Rate              float64
	averageTxPerBlock float64
}

// NewRateEstimator returns an estimator seeded at the given preferred
// rate (typically DefaultFalsePositiveRate).
func NewRateEstimator(preferredRate float64) *RateEstimator {
	return &RateEstimator{Rate: preferredRate, averageTxPerBlock: 1}
}

// Observe folds in one block's outcome: totalTx transactions in the
// block, of which falsePositives did not belong to the wallet.
func (e *RateEstimator) Observe(totalTx, falsePositives int) {
	if totalTx <= 0 {
		return
	}
	e.averageTxPerBlock = e.averageTxPerBlock*0.999 + float64(totalTx)*0.001
	if e.averageTxPerBlock <= 0 {
		e.averageTxPerBlock = float64(totalTx)
	}
	e.Rate = e.Rate*(1.0-0.01*float64(totalTx)/e.averageTxPerBlock) +
		0.01*float64(falsePositives)/e.averageTxPerBlock
}

// ExceedsDisconnectThreshold reports whether the rate has run away far
// enough that the download peer should be disconnected and the filter
// reset to the reduced rate (> 10x the default rate).
func (e *RateEstimator) ExceedsDisconnectThreshold() bool {
	return e.Rate > DefaultFalsePositiveRate*10.0
}

// ExceedsRebuildThreshold reports whether the rate is elevated enough
// that, combined with being far behind tip, the filter should be
// rebuilt rather than torn down (> 10x the reduced rate).
func (e *RateEstimator) ExceedsRebuildThreshold() bool {
	return e.Rate > ReducedFalsePositiveRate*10.0
}

// Reset sets the tracked rate back to rate (used after a disconnect
// triggered by ExceedsDisconnectThreshold).
func (e *RateEstimator) Reset(rate float64) {
	e.Rate = rate
}

package state

import "fmt"

// FeeAccumulator tracks the conversion hand-off latch for the fee pool.
// The pool balance itself lives in the ledger (system:fee_pool:TOKEN account);
// this struct owns the staging state: at most one conversion may be in flight,
// and the drained amount is remembered so a failed conversion can be credited
// back in full.
// Not thread-safe — only accessed under the engine lock.
type FeeAccumulator struct {
	inFlight       bool
	inFlightAmount int64
}

func NewFeeAccumulator() *FeeAccumulator {
	return &FeeAccumulator{}
}

// InFlight reports whether a conversion hand-off is pending.
func (a *FeeAccumulator) InFlight() bool {
	return a.inFlight
}

// InFlightAmount returns the fee-asset amount currently handed off.
func (a *FeeAccumulator) InFlightAmount() int64 {
	return a.inFlightAmount
}

// BeginConversion latches the hand-off. Fails if one is already pending —
// a second drain while the first is unresolved would double-spend the pool.
func (a *FeeAccumulator) BeginConversion(amount int64) error {
	if a.inFlight {
		return fmt.Errorf("conversion already in flight for %d units", a.inFlightAmount)
	}
	if amount <= 0 {
		return fmt.Errorf("conversion amount must be positive, got %d", amount)
	}
	a.inFlight = true
	a.inFlightAmount = amount
	return nil
}

// CommitConversion releases the latch after the gateway confirmed success.
func (a *FeeAccumulator) CommitConversion() {
	a.inFlight = false
	a.inFlightAmount = 0
}

// AbortConversion releases the latch after a gateway failure. The caller is
// responsible for the compensating credit-back of InFlightAmount first.
func (a *FeeAccumulator) AbortConversion() {
	a.inFlight = false
	a.inFlightAmount = 0
}

// Restore directly sets the latch state (snapshot restore only).
func (a *FeeAccumulator) Restore(inFlight bool, amount int64) {
	a.inFlight = inFlight
	a.inFlightAmount = amount
}

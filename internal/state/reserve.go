package state

import "fmt"

// Reserve tracks the liquidity-provisioning state for the reserve account.
// The reserve balance lives in the ledger (system:reserve:WBTC account); this
// struct owns the threshold and the venue-call latch. The reserve is debited
// only after the venue confirms, so a failed call leaves the balance intact.
// Not thread-safe — only accessed under the engine lock.
type Reserve struct {
	threshold      int64
	inFlight       bool
	inFlightAmount int64
}

func NewReserve(threshold int64) *Reserve {
	return &Reserve{threshold: threshold}
}

// Threshold returns the minimum reserve balance that triggers provisioning.
func (r *Reserve) Threshold() int64 {
	return r.threshold
}

// InFlight reports whether a venue call is pending.
func (r *Reserve) InFlight() bool {
	return r.inFlight
}

// InFlightAmount returns the amount offered to the venue.
func (r *Reserve) InFlightAmount() int64 {
	return r.inFlightAmount
}

// BeginProvisioning latches a venue call for the given amount.
func (r *Reserve) BeginProvisioning(amount int64) error {
	if r.inFlight {
		return fmt.Errorf("liquidity provisioning already in flight for %d units", r.inFlightAmount)
	}
	if amount < r.threshold {
		return fmt.Errorf("amount %d below liquidity threshold %d", amount, r.threshold)
	}
	r.inFlight = true
	r.inFlightAmount = amount
	return nil
}

// CommitProvisioning releases the latch after venue confirmation. The caller
// debits the reserve by InFlightAmount — not by the current balance, which may
// have grown while the call was out.
func (r *Reserve) CommitProvisioning() {
	r.inFlight = false
	r.inFlightAmount = 0
}

// AbortProvisioning releases the latch after a venue failure. No debit
// happened, so no compensation is needed; the next cadence retries.
func (r *Reserve) AbortProvisioning() {
	r.inFlight = false
	r.inFlightAmount = 0
}

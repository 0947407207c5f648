package state

import "time"

// RewardsPool tracks the epoch boundary for reward distribution.
// The pending settlement-asset balance lives in the ledger
// (system:rewards_pending:WBTC account); this struct owns the time-lock:
// a distribution may fire only when a full interval has elapsed since the
// last successful firing.
// Not thread-safe — only accessed under the engine lock.
type RewardsPool struct {
	lastDistribution time.Time
	epoch            int64
}

func NewRewardsPool() *RewardsPool {
	return &RewardsPool{}
}

// LastDistribution returns the instant of the last successful firing.
// Zero until the first distribution, so a fresh engine fires immediately.
func (p *RewardsPool) LastDistribution() time.Time {
	return p.lastDistribution
}

// Epoch returns the number of distributions fired so far.
func (p *RewardsPool) Epoch() int64 {
	return p.epoch
}

// Due reports whether the interval has elapsed at now.
func (p *RewardsPool) Due(now time.Time, interval time.Duration) bool {
	return now.Sub(p.lastDistribution) >= interval
}

// MarkDistributed records a successful firing. Called only after every payout
// credit has been applied — never before, so a crash mid-distribution leaves
// the time-lock open and a retry recomputes from a fresh snapshot.
func (p *RewardsPool) MarkDistributed(now time.Time) {
	p.lastDistribution = now
	p.epoch++
}

// Restore directly sets the epoch state (snapshot restore only).
func (p *RewardsPool) Restore(lastDistribution time.Time, epoch int64) {
	p.lastDistribution = lastDistribution
	p.epoch = epoch
}

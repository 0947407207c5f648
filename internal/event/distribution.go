package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RewardPayout is one holder's credit inside a distribution event.
type RewardPayout struct {
	HolderID uuid.UUID
	Balance  int64 // Snapshot balance, token scale
	Payout   int64 // Settlement scale
}

// RewardsDistributed records one epoch's split of the rewards pending pool:
// half pro-rata to holders, half to the reserve, flooring residual carried
// forward in the pending pool.
// Idempotency key: "distribution:{epoch_id}".
type RewardsDistributed struct {
	EpochID      int64
	Pending      int64 // Pool balance at the snapshot, settlement scale
	HolderShare  int64
	ReserveShare int64
	Residual     int64
	TotalSupply  int64 // Snapshot supply basis, token scale
	Payouts      []RewardPayout
	Timestamp    time.Time
}

func (r *RewardsDistributed) IdempotencyKey() string {
	return fmt.Sprintf("distribution:%d", r.EpochID)
}

func (r *RewardsDistributed) EventType() EventType {
	return EventTypeRewardsDistributed
}

func (r *RewardsDistributed) SourceSequence() int64 {
	return r.EpochID
}

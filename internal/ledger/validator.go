package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced before application
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidateSupplyConservation verifies the sum of holder wallets plus system
// holdings equals circulating supply — no value created or lost by the fee path.
func (v *InvariantValidator) ValidateSupplyConservation(assetID AssetID) error {
	_, holderTotal := v.tracker.HolderBalances(assetID)

	var system int64
	for key, balance := range v.tracker.Snapshot() {
		if key.AssetID == assetID && key.Scope == AccountScopeSystem {
			system += balance
		}
	}

	supply := v.tracker.TotalSupply(assetID)
	if holderTotal+system != supply {
		assetName, _ := GetAssetName(assetID)
		return fmt.Errorf("supply conservation violated for %s: holders=%d system=%d supply=%d",
			assetName, holderTotal, system, supply)
	}

	return nil
}

// ValidateHolderNonNegative checks a holder wallet >= 0
func (v *InvariantValidator) ValidateHolderNonNegative(holderID uuid.UUID, assetID AssetID) error {
	key := NewHolderAccountKey(holderID, assetID)
	return v.tracker.ValidateNonNegative(key)
}

// ValidatePoolsNonNegative checks the fee pool, rewards pending, and reserve
// accounts are all >= 0 — a negative pool means a double-spend slipped through.
func (v *InvariantValidator) ValidatePoolsNonNegative() error {
	for _, key := range []AccountKey{FeePoolKey(), RewardsPendingKey(), ReserveKey()} {
		if err := v.tracker.ValidateNonNegative(key); err != nil {
			return err
		}
	}
	return nil
}

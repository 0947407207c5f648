package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances.
// Not thread-safe — callers serialize access under the engine lock.
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// SetBalance directly sets an account balance (snapshot restore only)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// GetWalletBalance returns a holder's wallet balance for an asset
func (bt *BalanceTracker) GetWalletBalance(holderID uuid.UUID, assetID AssetID) int64 {
	return bt.GetBalance(NewHolderAccountKey(holderID, assetID))
}

// HolderBalance is one entry of a balance snapshot.
type HolderBalance struct {
	HolderID [16]byte // UUID binary
	Balance  int64
}

// HolderBalances captures every holder wallet with balance > 0 for an asset,
// plus the total across them. This is the atomic snapshot basis for
// proportional distribution: the caller takes it under the same exclusion as
// transfers, so no settling transfer is split across the snapshot boundary.
func (bt *BalanceTracker) HolderBalances(assetID AssetID) ([]HolderBalance, int64) {
	holders := make([]HolderBalance, 0)
	var total int64

	for key, balance := range bt.balances {
		if key.Scope != AccountScopeHolder || key.SubType != SubTypeWallet || key.AssetID != assetID {
			continue
		}
		if balance <= 0 {
			continue
		}
		holders = append(holders, HolderBalance{HolderID: key.EntityID, Balance: balance})
		total += balance
	}

	return holders, total
}

// TotalSupply returns the circulating supply of an asset: everything issued
// through external:mint that has not left circulation through an external
// boundary account.
func (bt *BalanceTracker) TotalSupply(assetID AssetID) int64 {
	var external int64
	for key, balance := range bt.balances {
		if key.AssetID != assetID || key.Scope != AccountScopeExternal {
			continue
		}
		external += balance
	}
	return -external
}

// === Invariant Checks ===

// ValidateSufficientBalance checks if a holder wallet covers a required amount
func (bt *BalanceTracker) ValidateSufficientBalance(holderID uuid.UUID, assetID AssetID, required int64) error {
	balance := bt.GetWalletBalance(holderID, assetID)
	if balance < required {
		return fmt.Errorf("insufficient balance: have=%d, need=%d", balance, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for persistence)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}

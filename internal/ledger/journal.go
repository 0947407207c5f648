package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeMint JournalType = iota
	JournalTypeTransfer
	JournalTypeTransferFee
	JournalTypeConversionOut
	JournalTypeConversionIn
	JournalTypeConversionRevert
	JournalTypeRewardPayout
	JournalTypeReserveFund
	JournalTypeLiquidityAdd
	JournalTypeAdjustment
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeMint:
		return "mint"
	case JournalTypeTransfer:
		return "transfer"
	case JournalTypeTransferFee:
		return "transfer_fee"
	case JournalTypeConversionOut:
		return "conversion_out"
	case JournalTypeConversionIn:
		return "conversion_in"
	case JournalTypeConversionRevert:
		return "conversion_revert"
	case JournalTypeRewardPayout:
		return "reward_payout"
	case JournalTypeReserveFund:
		return "reserve_fund"
	case JournalTypeLiquidityAdd:
		return "liquidity_add"
	case JournalTypeAdjustment:
		return "adjustment"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry.
// DebitAccount receives the amount, CreditAccount pays it — each entry is a
// balanced transfer by construction.
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups entries settled as one logical unit
	EventRef      string      // Idempotency key of source operation
	Sequence      int64       // Global event sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	AssetID       AssetID     // Asset being moved
	Amount        int64       // Smallest-unit amount (ALWAYS positive)
	JournalType   JournalType // Entry type
	Timestamp     int64       // Epoch microseconds
}

// Batch represents a set of journal entries applied as a single logical unit.
// A fee-bearing transfer is one batch (principal + fee entries); a distribution
// firing is one batch (all payouts + reserve funding). Either the whole batch
// applies or none of it does.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed.
// Each entry is individually balanced (one positive amount moving from credit
// account to debit account), so Σ debits == Σ credits holds per entry and
// therefore for the whole batch.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.AssetID != j.AssetID || j.CreditAccount.AssetID != j.AssetID {
			return fmt.Errorf("journal %s moves asset %d across accounts of a different asset", j.JournalID, j.AssetID)
		}
	}

	return nil
}

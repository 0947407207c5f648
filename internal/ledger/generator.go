package ledger

import (
	"fmt"

	"github.com/google/uuid"

	fpmath "RewardsLedger/internal/math"
)

// JournalGenerator creates balanced journal batches from operations
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // Reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence aligns the generator after snapshot restore or replay.
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// GenerateMint creates journals for supply issuance.
// Moves funds: external:mint → holder:wallet. The mint account goes negative;
// its magnitude is the circulating supply.
func (jg *JournalGenerator) GenerateMint(
	mintID uuid.UUID,
	recipientID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  mintID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      mintID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewHolderAccountKey(recipientID, AssetToken),
		CreditAccount: NewExternalAccountKey(SubTypeExternalMint, AssetToken),
		AssetID:       AssetToken,
		Amount:        amount,
		JournalType:   JournalTypeMint,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateTransfer creates journals for a wallet-to-wallet transfer.
// The sender is debited the full amount: net to the recipient, fee to the
// fee pool. Pre-check: sender must cover net + fee.
func (jg *JournalGenerator) GenerateTransfer(
	transferID uuid.UUID,
	senderID uuid.UUID,
	recipientID uuid.UUID,
	fee int64,
	net int64,
	timestamp int64,
) (*Batch, error) {
	// PRE-CHECK: sender covers the full amount before any entry applies
	if err := jg.balanceTracker.ValidateSufficientBalance(senderID, AssetToken, fee+net); err != nil {
		return nil, fmt.Errorf("transfer pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  transferID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 2),
	}

	// Journal 1: Principal (net of fee)
	principal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      transferID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewHolderAccountKey(recipientID, AssetToken),
		CreditAccount: NewHolderAccountKey(senderID, AssetToken),
		AssetID:       AssetToken,
		Amount:        net,
		JournalType:   JournalTypeTransfer,
		Timestamp:     timestamp,
	}
	batch.Journals = append(batch.Journals, principal)

	// Journal 2: Fee withholding (buy/sell only)
	if fee > 0 {
		feeJournal := Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      transferID.String(),
			Sequence:      jg.sequence,
			DebitAccount:  FeePoolKey(),
			CreditAccount: NewHolderAccountKey(senderID, AssetToken),
			AssetID:       AssetToken,
			Amount:        fee,
			JournalType:   JournalTypeTransferFee,
			Timestamp:     timestamp,
		}
		batch.Journals = append(batch.Journals, feeJournal)
	}

	jg.sequence++
	return batch, nil
}

// GenerateConversionOut drains the fee pool toward the swap boundary.
// Moves funds: system:fee_pool → external:swap (fee asset side).
func (jg *JournalGenerator) GenerateConversionOut(
	conversionID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateNonNegative(FeePoolKey()); err != nil {
		return nil, err
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  conversionID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      conversionID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalSwap, AssetToken),
		CreditAccount: FeePoolKey(),
		AssetID:       AssetToken,
		Amount:        amount,
		JournalType:   JournalTypeConversionOut,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateConversionIn credits the settlement proceeds of a confirmed swap.
// Moves funds: external:swap (settlement side) → system:rewards_pending.
func (jg *JournalGenerator) GenerateConversionIn(
	conversionID uuid.UUID,
	settledAmount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()
	eventRef := conversionID.String() + ":settle"

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  RewardsPendingKey(),
		CreditAccount: NewExternalAccountKey(SubTypeExternalSwap, AssetWBTC),
		AssetID:       AssetWBTC,
		Amount:        settledAmount,
		JournalType:   JournalTypeConversionIn,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateConversionRevert returns a drained amount to the fee pool after a
// failed swap. Exact mirror of the drain: no value created or lost.
func (jg *JournalGenerator) GenerateConversionRevert(
	conversionID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()
	eventRef := conversionID.String() + ":revert"

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  FeePoolKey(),
		CreditAccount: NewExternalAccountKey(SubTypeExternalSwap, AssetToken),
		AssetID:       AssetToken,
		Amount:        amount,
		JournalType:   JournalTypeConversionRevert,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateDistribution creates the single batch for one epoch firing: every
// holder payout plus the reserve funding, all against rewards_pending. The
// flooring residual stays in rewards_pending untouched and carries forward.
func (jg *JournalGenerator) GenerateDistribution(
	epochID int64,
	dist *fpmath.Distribution,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()
	eventRef := fmt.Sprintf("distribution:%d", epochID)

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, len(dist.Payouts)+1),
	}

	for _, p := range dist.Payouts {
		journal := Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewHolderAccountKey(uuid.UUID(p.HolderID), AssetWBTC),
			CreditAccount: RewardsPendingKey(),
			AssetID:       AssetWBTC,
			Amount:        p.Payout,
			JournalType:   JournalTypeRewardPayout,
			Timestamp:     timestamp,
		}
		batch.Journals = append(batch.Journals, journal)
	}

	if dist.ReserveShare > 0 {
		journal := Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  ReserveKey(),
			CreditAccount: RewardsPendingKey(),
			AssetID:       AssetWBTC,
			Amount:        dist.ReserveShare,
			JournalType:   JournalTypeReserveFund,
			Timestamp:     timestamp,
		}
		batch.Journals = append(batch.Journals, journal)
	}

	jg.sequence++
	return batch, nil
}

// GenerateLiquidityAdd debits the reserve after venue confirmation.
// Moves funds: system:reserve → external:liquidity.
func (jg *JournalGenerator) GenerateLiquidityAdd(
	provisionID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  provisionID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      provisionID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalLiquidity, AssetWBTC),
		CreditAccount: ReserveKey(),
		AssetID:       AssetWBTC,
		Amount:        amount,
		JournalType:   JournalTypeLiquidityAdd,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

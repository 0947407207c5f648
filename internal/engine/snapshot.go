package engine

import (
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/event"
	"RewardsLedger/internal/ledger"
)

// StateSnapshot is the full recoverable engine state at one sequence point.
// Balances are keyed by account path so the snapshot survives type renumbering.
type StateSnapshot struct {
	Sequence           int64            `json:"sequence"`
	PrevHash           [32]byte         `json:"prev_hash"`
	Balances           map[string]int64 `json:"balances"`
	LastDistribution   int64            `json:"last_distribution_us"`
	DistributionEpoch  int64            `json:"distribution_epoch"`
	ConversionInFlight bool             `json:"conversion_in_flight"`
	ConversionAmount   int64            `json:"conversion_amount"`
}

// SnapshotState captures the engine state atomically.
func (e *Engine) SnapshotState() *StateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw := e.tracker.Snapshot()
	balances := make(map[string]int64, len(raw))
	for key, balance := range raw {
		if balance == 0 {
			continue
		}
		balances[key.AccountPath()] = balance
	}

	return &StateSnapshot{
		Sequence:           e.sequence,
		PrevHash:           e.hasher.GetPrevHash(),
		Balances:           balances,
		LastDistribution:   e.rewardsPool.LastDistribution().UnixMicro(),
		DistributionEpoch:  e.rewardsPool.Epoch(),
		ConversionInFlight: e.accumulator.InFlight(),
		ConversionAmount:   e.accumulator.InFlightAmount(),
	}
}

// RestoreState loads a snapshot into a fresh engine. Must run before any
// operation is accepted.
func (e *Engine) RestoreState(s *StateSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for path, balance := range s.Balances {
		e.tracker.SetBalance(ledger.ParseAccountPath(path), balance)
	}

	e.sequence = s.Sequence
	e.journalGen.SetSequence(s.Sequence)
	e.hasher.Restore(s.PrevHash)
	e.rewardsPool.Restore(time.UnixMicro(s.LastDistribution), s.DistributionEpoch)
	e.accumulator.Restore(s.ConversionInFlight, s.ConversionAmount)
}

// ReplayJournal re-applies one persisted journal entry during recovery.
// Validation is skipped: the entry already passed it when first applied.
func (e *Engine) ReplayJournal(debitPath, creditPath string, amount int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracker.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.ParseAccountPath(debitPath),
		CreditAccount: ledger.ParseAccountPath(creditPath),
		Amount:        amount,
	})
}

// RestoreChainTip aligns the sequence and hash chain with the last persisted
// envelope after journal replay.
func (e *Engine) RestoreChainTip(nextSequence int64, prevHash [32]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = nextSequence
	e.journalGen.SetSequence(nextSequence)
	e.hasher.Restore(prevHash)
}

// RestoreEpoch aligns the distribution clock with the last persisted
// RewardsDistributed event.
func (e *Engine) RestoreEpoch(lastDistribution time.Time, epoch int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rewardsPool.Restore(lastDistribution, epoch)
}

// MarkConversionInFlight relatches a drain found unresolved during replay
// (a ConversionStarted without a matching settle or revert).
func (e *Engine) MarkConversionInFlight(amount int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.accumulator.Restore(true, amount)
}

// RecoverInFlightConversion resolves a conversion that was in flight when the
// process died. The gateway outcome is unknowable, so the drain is reverted;
// a settlement that did land upstream must be reconciled manually against the
// gateway reference.
func (e *Engine) RecoverInFlightConversion(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.accumulator.InFlight() {
		return nil
	}

	amount := e.accumulator.InFlightAmount()
	conversionID := uuid.New()

	batch, err := e.journalGen.GenerateConversionRevert(conversionID, amount, now.UnixMicro())
	if err != nil {
		return err
	}

	e.commit(&event.ConversionReverted{
		ConversionID: conversionID,
		TokenAmount:  amount,
		Reason:       "conversion in flight at restart, outcome unknown",
		SourceSeq:    e.sequence,
		Timestamp:    now,
	}, batch)
	e.accumulator.AbortConversion()

	e.logger.Warn().
		Int64("amount", amount).
		Msg("reverted conversion left in flight by previous run")

	if e.metrics != nil {
		e.metrics.ConversionsReverted.Inc()
	}

	return nil
}

// WarmIdempotency preloads recent dedup keys after restart.
func (e *Engine) WarmIdempotency(compositeKeys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.idempotency.Warm(compositeKeys)
}

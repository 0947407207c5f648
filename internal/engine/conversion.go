package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/event"
	"RewardsLedger/internal/ledger"
)

// ConversionGateway swaps drained fee-asset for the settlement asset. The call
// runs outside the engine lock; implementations may block on the network.
type ConversionGateway interface {
	Convert(ctx context.Context, conversionID uuid.UUID, tokenAmount int64) (settledAmount int64, ref string, err error)
}

// ConversionResult reports a settled conversion.
type ConversionResult struct {
	ConversionID  uuid.UUID
	TokenAmount   int64
	SettledAmount int64
	GatewayRef    string
	Sequence      int64
}

// ConvertFees drains the fee pool, hands the amount to the gateway, and either
// credits the proceeds to the rewards pending pool or reverts the drain.
//
// The call is staged in three phases. Phase 1 drains the pool and latches the
// hand-off under the lock, so a concurrent attempt fails fast with
// ErrConversionInProgress and transfers that settle meanwhile accrue into a
// fresh pool. Phase 2 calls the gateway unlocked. Phase 3 retakes the lock and
// settles or reverts; the revert restores the exact drained amount, so no fee
// is ever lost to a gateway failure.
//
// A nil result with nil error means the pool was empty and nothing happened.
func (e *Engine) ConvertFees(ctx context.Context, now time.Time) (*ConversionResult, error) {
	// Phase 1: drain and latch
	e.mu.Lock()

	if e.accumulator.InFlight() {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.ConversionRejected.WithLabelValues("in_progress").Inc()
		}
		return nil, fmt.Errorf("%w: %d units already handed off", ErrConversionInProgress, e.accumulator.InFlightAmount())
	}

	amount := e.tracker.GetBalance(ledger.FeePoolKey())
	if amount <= 0 {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.ConversionRejected.WithLabelValues("empty_pool").Inc()
		}
		return nil, nil
	}

	conversionID := uuid.New()

	if err := e.accumulator.BeginConversion(amount); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	batch, err := e.journalGen.GenerateConversionOut(conversionID, amount, now.UnixMicro())
	if err != nil {
		e.accumulator.AbortConversion()
		e.mu.Unlock()
		return nil, err
	}

	e.commit(&event.ConversionStarted{
		ConversionID: conversionID,
		TokenAmount:  amount,
		SourceSeq:    e.sequence,
		Timestamp:    now,
	}, batch)

	if e.metrics != nil {
		e.metrics.ConversionsStarted.Inc()
		e.metrics.FeePoolBalance.Set(float64(e.tracker.GetBalance(ledger.FeePoolKey())))
	}
	e.mu.Unlock()

	// Phase 2: gateway call, unlocked
	gwStart := time.Now()
	settled, ref, gwErr := e.gateway.Convert(ctx, conversionID, amount)
	if e.metrics != nil {
		e.metrics.ConversionDuration.Observe(time.Since(gwStart).Seconds())
	}

	if gwErr == nil && settled < 1 {
		gwErr = fmt.Errorf("gateway returned non-positive settlement amount %d", settled)
	}

	// Phase 3: settle or revert
	e.mu.Lock()
	defer e.mu.Unlock()

	if gwErr != nil {
		revert, err := e.journalGen.GenerateConversionRevert(conversionID, amount, now.UnixMicro())
		if err != nil {
			panic(fmt.Sprintf("FATAL: conversion revert generation failed, fee pool short by %d: %v", amount, err))
		}

		e.commit(&event.ConversionReverted{
			ConversionID: conversionID,
			TokenAmount:  amount,
			Reason:       gwErr.Error(),
			SourceSeq:    e.sequence,
			Timestamp:    now,
		}, revert)
		e.accumulator.AbortConversion()

		e.logger.Warn().
			Str("conversion_id", conversionID.String()).
			Int64("amount", amount).
			Err(gwErr).
			Msg("conversion reverted, drained fees returned to pool")

		if e.metrics != nil {
			e.metrics.ConversionsReverted.Inc()
			e.metrics.FeePoolBalance.Set(float64(e.tracker.GetBalance(ledger.FeePoolKey())))
		}

		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, gwErr)
	}

	settle, err := e.journalGen.GenerateConversionIn(conversionID, settled, now.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: conversion settle generation failed for confirmed swap %s: %v", conversionID, err))
	}

	seq := e.commit(&event.FeesConverted{
		ConversionID:  conversionID,
		TokenAmount:   amount,
		SettledAmount: settled,
		GatewayRef:    ref,
		SourceSeq:     e.sequence,
		Timestamp:     now,
	}, settle)
	e.accumulator.CommitConversion()

	e.logger.Info().
		Str("conversion_id", conversionID.String()).
		Int64("token_amount", amount).
		Int64("settled_amount", settled).
		Str("gateway_ref", ref).
		Msg("fees converted")

	if e.metrics != nil {
		e.metrics.ConversionsSettled.Inc()
		e.metrics.RewardsPendingBalance.Set(float64(e.tracker.GetBalance(ledger.RewardsPendingKey())))
	}

	return &ConversionResult{
		ConversionID:  conversionID,
		TokenAmount:   amount,
		SettledAmount: settled,
		GatewayRef:    ref,
		Sequence:      seq,
	}, nil
}

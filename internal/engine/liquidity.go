package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/event"
	"RewardsLedger/internal/ledger"
)

// LiquidityVenue deploys reserve settlement-asset as liquidity. The call runs
// outside the engine lock; implementations may block on the network.
type LiquidityVenue interface {
	AddLiquidity(ctx context.Context, provisionID uuid.UUID, amount int64) (ref string, err error)
}

// LiquidityResult reports a confirmed deployment.
type LiquidityResult struct {
	ProvisionID uuid.UUID
	Amount      int64
	VenueRef    string
	Sequence    int64
}

// ProvisionLiquidity deploys the full reserve balance to the venue when it
// meets the threshold. The reserve is debited only after the venue confirms:
// a failed call leaves the balance untouched and the next attempt retries.
// The offered amount is fixed at latch time, so reserve growth during the
// venue call stays behind for the next round.
func (e *Engine) ProvisionLiquidity(ctx context.Context, now time.Time) (*LiquidityResult, error) {
	e.mu.Lock()

	if e.reserve.InFlight() {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.LiquiditySkipped.WithLabelValues("in_progress").Inc()
		}
		return nil, fmt.Errorf("%w: %d units already offered", ErrLiquidityInProgress, e.reserve.InFlightAmount())
	}

	balance := e.tracker.GetBalance(ledger.ReserveKey())
	if balance < e.reserve.Threshold() {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.LiquiditySkipped.WithLabelValues("below_threshold").Inc()
		}
		return nil, fmt.Errorf("%w: have %d, need %d", ErrLiquidityBelowThreshold, balance, e.reserve.Threshold())
	}

	provisionID := uuid.New()

	if err := e.reserve.BeginProvisioning(balance); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	ref, venueErr := e.venue.AddLiquidity(ctx, provisionID, balance)

	e.mu.Lock()
	defer e.mu.Unlock()

	if venueErr != nil {
		e.reserve.AbortProvisioning()

		e.logger.Warn().
			Str("provision_id", provisionID.String()).
			Int64("amount", balance).
			Err(venueErr).
			Msg("liquidity venue call failed, reserve untouched")

		if e.metrics != nil {
			e.metrics.LiquidityFailures.Inc()
		}

		return nil, fmt.Errorf("%w: %v", ErrLiquidityVenueFailed, venueErr)
	}

	batch, err := e.journalGen.GenerateLiquidityAdd(provisionID, balance, now.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: liquidity debit generation failed for confirmed deployment %s: %v", provisionID, err))
	}

	seq := e.commit(&event.LiquidityAdded{
		ProvisionID: provisionID,
		Amount:      balance,
		VenueRef:    ref,
		SourceSeq:   e.sequence,
		Timestamp:   now,
	}, batch)
	e.reserve.CommitProvisioning()

	e.logger.Info().
		Str("provision_id", provisionID.String()).
		Int64("amount", balance).
		Str("venue_ref", ref).
		Msg("liquidity added")

	if e.metrics != nil {
		e.metrics.LiquidityAdded.Inc()
		e.metrics.ReserveBalance.Set(float64(e.tracker.GetBalance(ledger.ReserveKey())))
	}

	return &LiquidityResult{
		ProvisionID: provisionID,
		Amount:      balance,
		VenueRef:    ref,
		Sequence:    seq,
	}, nil
}

package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/event"
	"RewardsLedger/internal/ledger"
	fpmath "RewardsLedger/internal/math"
)

// DistributionResult reports one epoch firing.
type DistributionResult struct {
	EpochID      int64
	Pending      int64
	HolderShare  int64
	ReserveShare int64
	Residual     int64
	HolderCount  int
	TotalSupply  int64
	Sequence     int64
}

// Tick attempts a distribution firing at now. If the interval since the last
// firing has not elapsed, nothing changes and ErrDistributionSkipped is
// returned. Otherwise the pending pool is split in one atomic batch: the
// holder share pro-rata by snapshot balances, the rest to the reserve, the
// flooring residual left in the pending pool for the next epoch.
//
// The snapshot, the split computation, and the batch application all happen
// under the engine lock, so no transfer settles between snapshot and payout.
func (e *Engine) Tick(now time.Time) (*DistributionResult, error) {
	start := time.Now()
	opType := event.EventTypeRewardsDistributed.String()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rewardsPool.Due(now, e.cfg.DistributionInterval) {
		if e.metrics != nil {
			e.metrics.DistributionsSkipped.WithLabelValues("not_due").Inc()
		}
		return nil, fmt.Errorf("%w: %s since last firing, interval is %s",
			ErrDistributionSkipped,
			now.Sub(e.rewardsPool.LastDistribution()),
			e.cfg.DistributionInterval)
	}

	pending := e.tracker.GetBalance(ledger.RewardsPendingKey())
	holders, holderTotal := e.tracker.HolderBalances(ledger.AssetToken)

	stakes := make([]fpmath.HolderStake, len(holders))
	for i, h := range holders {
		stakes[i] = fpmath.HolderStake{HolderID: h.HolderID, Balance: h.Balance}
	}

	dist, err := fpmath.ComputeDistribution(pending, e.cfg.HolderShareBasisPoints, stakes, holderTotal)
	if err != nil {
		e.reject(opType, "compute")
		return nil, err
	}

	epochID := e.rewardsPool.Epoch() + 1

	batch, err := e.journalGen.GenerateDistribution(epochID, dist, now.UnixMicro())
	if err != nil {
		e.reject(opType, "generate")
		return nil, err
	}

	balanceByHolder := make(map[[16]byte]int64, len(stakes))
	for _, s := range stakes {
		balanceByHolder[s.HolderID] = s.Balance
	}

	payouts := make([]event.RewardPayout, 0, len(dist.Payouts))
	for _, p := range dist.Payouts {
		payouts = append(payouts, event.RewardPayout{
			HolderID: uuid.UUID(p.HolderID),
			Balance:  balanceByHolder[p.HolderID],
			Payout:   p.Payout,
		})
	}

	evt := &event.RewardsDistributed{
		EpochID:      epochID,
		Pending:      pending,
		HolderShare:  dist.HolderShare,
		ReserveShare: dist.ReserveShare,
		Residual:     dist.Residual,
		TotalSupply:  holderTotal,
		Payouts:      payouts,
		Timestamp:    now,
	}

	seq := e.commit(evt, batch)
	e.rewardsPool.MarkDistributed(now)

	e.logger.Info().
		Int64("epoch", epochID).
		Int64("pending", pending).
		Int64("holder_share", dist.HolderShare).
		Int64("reserve_share", dist.ReserveShare).
		Int64("residual", dist.Residual).
		Int("holders", len(payouts)).
		Msg("distribution fired")

	if e.metrics != nil {
		e.metrics.DistributionsFired.Inc()
		e.metrics.DistributionPayouts.Add(float64(len(payouts)))
		e.metrics.DistributionHolders.Observe(float64(len(stakes)))
		e.metrics.DistributionResidual.Set(float64(dist.Residual))
		e.metrics.DistributionDuration.Observe(time.Since(start).Seconds())
		e.metrics.RewardsPendingBalance.Set(float64(e.tracker.GetBalance(ledger.RewardsPendingKey())))
		e.metrics.ReserveBalance.Set(float64(e.tracker.GetBalance(ledger.ReserveKey())))
	}
	e.recordApplied(opType, start)

	return &DistributionResult{
		EpochID:      epochID,
		Pending:      pending,
		HolderShare:  dist.HolderShare,
		ReserveShare: dist.ReserveShare,
		Residual:     dist.Residual,
		HolderCount:  len(payouts),
		TotalSupply:  holderTotal,
		Sequence:     seq,
	}, nil
}

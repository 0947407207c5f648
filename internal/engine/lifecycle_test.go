package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/ledger"
	fpmath "RewardsLedger/internal/math"
)

// Full pipeline: fee withholding -> conversion -> distribution -> liquidity.
func TestLifecycle_FeesToLiquidity(t *testing.T) {
	h := newTestEngine(t)
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	a, b := uuid.New(), uuid.New()
	h.mint(t, a, 2000)

	// Buy transfer withholds 5%: fee 100, net 1900.
	receipt := h.transfer(t, a, b, fpmath.TransferKindBuy, 2000)
	if receipt.Fee != 100 {
		t.Fatalf("fee: got %d, want 100", receipt.Fee)
	}

	// Convert the pool; the gateway settles exactly the liquidity threshold
	// doubled so the holder half leaves the reserve half at the threshold.
	h.gateway.convert = func(ctx context.Context, conversionID uuid.UUID, tokenAmount int64) (int64, string, error) {
		return 20_000_000, "swap-lifecycle", nil
	}
	if _, err := h.eng.ConvertFees(context.Background(), base); err != nil {
		t.Fatalf("convert: %v", err)
	}

	// First firing: b is the only positive holder, so the whole holder share
	// lands in b's settlement wallet and the rest funds the reserve.
	result, err := h.eng.Tick(base)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if result.HolderShare != 10_000_000 || result.ReserveShare != 10_000_000 {
		t.Fatalf("split: got holder=%d reserve=%d, want 10000000 each",
			result.HolderShare, result.ReserveShare)
	}
	if got := h.eng.HolderBalance(b, ledger.AssetWBTC); got != 10_000_000 {
		t.Errorf("holder payout: got %d, want 10000000", got)
	}

	// Reserve hit the threshold exactly; provisioning deploys it all.
	liq, err := h.eng.ProvisionLiquidity(context.Background(), base)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if liq.Amount != 10_000_000 {
		t.Errorf("deployed: got %d, want 10000000", liq.Amount)
	}

	stats := h.eng.Stats()
	if stats.FeePool != 0 || stats.RewardsPending != 0 || stats.Reserve != 0 {
		t.Errorf("pools not drained: fee=%d pending=%d reserve=%d",
			stats.FeePool, stats.RewardsPending, stats.Reserve)
	}
	if stats.TotalSupply != 2000 {
		t.Errorf("token supply: got %d, want 2000", stats.TotalSupply)
	}
	if stats.DistributionEpoch != 1 {
		t.Errorf("epoch: got %d, want 1", stats.DistributionEpoch)
	}
}

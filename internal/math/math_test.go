package math_test

import (
	"testing"

	fpmath "RewardsLedger/internal/math"
)

// ============================================================================
// Test: MulDivFloor
// ============================================================================

func TestMulDivFloor_Basic(t *testing.T) {
	got, err := fpmath.MulDivFloor(1000, 500, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 50 {
		t.Errorf("got %d, want 50", got)
	}
}

func TestMulDivFloor_Floors(t *testing.T) {
	// 7 * 500 / 10000 = 0.35 -> 0
	got, err := fpmath.MulDivFloor(7, 500, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestMulDivFloor_LargeIntermediate(t *testing.T) {
	// The raw product overflows int64; the int128 intermediate must not.
	a := int64(9_000_000_000_000_000_000)
	got, err := fpmath.MulDivFloor(a, 5000, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != a/2 {
		t.Errorf("got %d, want %d", got, a/2)
	}
}

func TestMulDivFloor_NegativeInput(t *testing.T) {
	if _, err := fpmath.MulDivFloor(-1, 500, 10_000); err == nil {
		t.Error("negative a should error")
	}
	if _, err := fpmath.MulDivFloor(1, -500, 10_000); err == nil {
		t.Error("negative b should error")
	}
	if _, err := fpmath.MulDivFloor(1, 500, 0); err == nil {
		t.Error("zero denom should error")
	}
}

func TestMulDivFloor_ResultOverflow(t *testing.T) {
	max := int64(9_223_372_036_854_775_807)
	if _, err := fpmath.MulDivFloor(max, 2, 1); err == nil {
		t.Error("result exceeding int64 should error")
	}
}

// ============================================================================
// Test: CheckedAdd / CheckedSub
// ============================================================================

func TestCheckedAdd_Overflow(t *testing.T) {
	max := int64(9_223_372_036_854_775_807)

	if got, err := fpmath.CheckedAdd(max-1, 1); err != nil || got != max {
		t.Errorf("got (%d, %v), want (%d, nil)", got, err, max)
	}
	if _, err := fpmath.CheckedAdd(max, 1); err == nil {
		t.Error("overflow should error")
	}
}

func TestCheckedSub_Underflow(t *testing.T) {
	min := int64(-9_223_372_036_854_775_808)

	if got, err := fpmath.CheckedSub(min+1, 1); err != nil || got != min {
		t.Errorf("got (%d, %v), want (%d, nil)", got, err, min)
	}
	if _, err := fpmath.CheckedSub(min, 1); err == nil {
		t.Error("underflow should error")
	}
}

// ============================================================================
// Test: ComputeFee
// ============================================================================

func TestComputeFee_Buy(t *testing.T) {
	fee, net, err := fpmath.ComputeFee(1000, fpmath.TransferKindBuy, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 50 {
		t.Errorf("fee: got %d, want 50", fee)
	}
	if net != 950 {
		t.Errorf("net: got %d, want 950", net)
	}
}

func TestComputeFee_Sell(t *testing.T) {
	fee, net, err := fpmath.ComputeFee(1000, fpmath.TransferKindSell, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 50 || net != 950 {
		t.Errorf("got fee=%d net=%d, want fee=50 net=950", fee, net)
	}
}

func TestComputeFee_PlainPaysNothing(t *testing.T) {
	fee, net, err := fpmath.ComputeFee(1000, fpmath.TransferKindPlain, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 0 {
		t.Errorf("fee: got %d, want 0", fee)
	}
	if net != 1000 {
		t.Errorf("net: got %d, want 1000", net)
	}
}

func TestComputeFee_SmallAmountFloorsToZero(t *testing.T) {
	// 19 * 500 / 10000 = 0.95 -> fee 0, full amount delivered
	fee, net, err := fpmath.ComputeFee(19, fpmath.TransferKindBuy, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 0 || net != 19 {
		t.Errorf("got fee=%d net=%d, want fee=0 net=19", fee, net)
	}
}

func TestComputeFee_FeeNeverExceedsAmount(t *testing.T) {
	fee, net, err := fpmath.ComputeFee(1, fpmath.TransferKindBuy, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee+net != 1 {
		t.Errorf("fee %d + net %d != amount 1", fee, net)
	}
}

func TestComputeFee_InvalidAmount(t *testing.T) {
	if _, _, err := fpmath.ComputeFee(0, fpmath.TransferKindBuy, 500); err != fpmath.ErrInvalidAmount {
		t.Errorf("amount 0: got %v, want ErrInvalidAmount", err)
	}
	if _, _, err := fpmath.ComputeFee(-5, fpmath.TransferKindBuy, 500); err != fpmath.ErrInvalidAmount {
		t.Errorf("amount -5: got %v, want ErrInvalidAmount", err)
	}
}

func TestComputeFee_InvalidBasisPoints(t *testing.T) {
	if _, _, err := fpmath.ComputeFee(1000, fpmath.TransferKindBuy, -1); err == nil {
		t.Error("negative bps should error")
	}
	if _, _, err := fpmath.ComputeFee(1000, fpmath.TransferKindBuy, 10_001); err == nil {
		t.Error("bps over denominator should error")
	}
}

func TestComputeFee_Conservation(t *testing.T) {
	for _, amount := range []int64{1, 19, 20, 999, 1000, 1001, 123_456_789} {
		fee, net, err := fpmath.ComputeFee(amount, fpmath.TransferKindSell, 500)
		if err != nil {
			t.Fatalf("amount %d: unexpected error: %v", amount, err)
		}
		if fee+net != amount {
			t.Errorf("amount %d: fee %d + net %d != amount", amount, fee, net)
		}
	}
}

// ============================================================================
// Test: ParseTransferKind
// ============================================================================

func TestParseTransferKind(t *testing.T) {
	cases := []struct {
		in   string
		want fpmath.TransferKind
		ok   bool
	}{
		{"buy", fpmath.TransferKindBuy, true},
		{"sell", fpmath.TransferKindSell, true},
		{"plain", fpmath.TransferKindPlain, true},
		{"", fpmath.TransferKindPlain, true},
		{"swap", fpmath.TransferKindPlain, false},
	}

	for _, c := range cases {
		got, ok := fpmath.ParseTransferKind(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseTransferKind(%q): got (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

// ============================================================================
// Test: ComputeDistribution
// ============================================================================

func holderID(b byte) [16]byte {
	var id [16]byte
	id[15] = b
	return id
}

func TestComputeDistribution_EvenSplit(t *testing.T) {
	holders := []fpmath.HolderStake{
		{HolderID: holderID(1), Balance: 600},
		{HolderID: holderID(2), Balance: 300},
		{HolderID: holderID(3), Balance: 100},
	}

	dist, err := fpmath.ComputeDistribution(100_000_000, 5000, holders, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dist.HolderShare != 50_000_000 {
		t.Errorf("holder share: got %d, want 50000000", dist.HolderShare)
	}
	if dist.ReserveShare != 50_000_000 {
		t.Errorf("reserve share: got %d, want 50000000", dist.ReserveShare)
	}
	if len(dist.Payouts) != 3 {
		t.Fatalf("got %d payouts, want 3", len(dist.Payouts))
	}

	wantPayouts := []int64{30_000_000, 15_000_000, 5_000_000}
	for i, want := range wantPayouts {
		if dist.Payouts[i].Payout != want {
			t.Errorf("payout %d: got %d, want %d", i, dist.Payouts[i].Payout, want)
		}
	}
	if dist.Residual != 0 {
		t.Errorf("residual: got %d, want 0", dist.Residual)
	}
}

func TestComputeDistribution_FlooringResidual(t *testing.T) {
	holders := []fpmath.HolderStake{
		{HolderID: holderID(1), Balance: 1},
		{HolderID: holderID(2), Balance: 1},
		{HolderID: holderID(3), Balance: 1},
	}

	// holderShare = floor(101 * 5000 / 10000) = 50
	// each payout = floor(50 * 1 / 3) = 16, paid = 48, residual = 2
	dist, err := fpmath.ComputeDistribution(101, 5000, holders, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dist.HolderShare != 50 {
		t.Errorf("holder share: got %d, want 50", dist.HolderShare)
	}
	if dist.ReserveShare != 51 {
		t.Errorf("reserve share: got %d, want 51", dist.ReserveShare)
	}
	for i, p := range dist.Payouts {
		if p.Payout != 16 {
			t.Errorf("payout %d: got %d, want 16", i, p.Payout)
		}
	}
	if dist.Residual != 2 {
		t.Errorf("residual: got %d, want 2", dist.Residual)
	}
}

func TestComputeDistribution_Conservation(t *testing.T) {
	holders := []fpmath.HolderStake{
		{HolderID: holderID(9), Balance: 7},
		{HolderID: holderID(4), Balance: 13},
		{HolderID: holderID(7), Balance: 31},
	}

	for _, pending := range []int64{0, 1, 99, 100, 12_345, 9_999_999} {
		dist, err := fpmath.ComputeDistribution(pending, 5000, holders, 51)
		if err != nil {
			t.Fatalf("pending %d: unexpected error: %v", pending, err)
		}

		if dist.HolderShare+dist.ReserveShare != pending {
			t.Errorf("pending %d: holder %d + reserve %d != pending",
				pending, dist.HolderShare, dist.ReserveShare)
		}

		var paid int64
		for _, p := range dist.Payouts {
			paid += p.Payout
		}
		if paid+dist.Residual != dist.HolderShare {
			t.Errorf("pending %d: paid %d + residual %d != holder share %d",
				pending, paid, dist.Residual, dist.HolderShare)
		}
	}
}

func TestComputeDistribution_DeterministicOrder(t *testing.T) {
	holders := []fpmath.HolderStake{
		{HolderID: holderID(3), Balance: 100},
		{HolderID: holderID(1), Balance: 100},
		{HolderID: holderID(2), Balance: 100},
	}

	dist, err := fpmath.ComputeDistribution(3000, 10_000, holders, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dist.Payouts) != 3 {
		t.Fatalf("got %d payouts, want 3", len(dist.Payouts))
	}
	for i := 0; i < 3; i++ {
		if dist.Payouts[i].HolderID != holderID(byte(i+1)) {
			t.Errorf("payout %d not in ID order", i)
		}
	}
}

func TestComputeDistribution_ZeroSupply(t *testing.T) {
	dist, err := fpmath.ComputeDistribution(1000, 5000, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dist.Payouts) != 0 {
		t.Errorf("got %d payouts, want 0", len(dist.Payouts))
	}
	// With nobody to pay, the whole holder share carries forward.
	if dist.Residual != 500 {
		t.Errorf("residual: got %d, want 500", dist.Residual)
	}
	if dist.ReserveShare != 500 {
		t.Errorf("reserve share: got %d, want 500", dist.ReserveShare)
	}
}

func TestComputeDistribution_DustHolderSkipped(t *testing.T) {
	holders := []fpmath.HolderStake{
		{HolderID: holderID(1), Balance: 999_999},
		{HolderID: holderID(2), Balance: 1},
	}

	// Holder 2's payout floors to 0 and must be skipped, not emitted.
	dist, err := fpmath.ComputeDistribution(100, 10_000, holders, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dist.Payouts) != 1 {
		t.Fatalf("got %d payouts, want 1", len(dist.Payouts))
	}
	if dist.Payouts[0].HolderID != holderID(1) {
		t.Error("remaining payout should belong to the large holder")
	}
}

package math

import "sort"

// HolderStake is one holder's balance at the snapshot instant.
type HolderStake struct {
	HolderID [16]byte // UUID binary
	Balance  int64
}

// HolderPayout is one holder's computed reward.
type HolderPayout struct {
	HolderID [16]byte
	Payout   int64
}

// Distribution is the computed split of a rewards pool for one epoch.
// Conservation holds by construction:
//
//	HolderShare + ReserveShare == Pending
//	Σ Payouts + Residual      == HolderShare
//
// so ReserveShare + Σ Payouts + Residual == Pending — nothing minted, nothing
// burned, the residual carries into the next epoch.
type Distribution struct {
	Pending      int64
	HolderShare  int64
	ReserveShare int64
	Payouts      []HolderPayout
	Residual     int64
}

// ComputeDistribution splits pending settlement asset between holders and the
// reserve. holderShareBasisPoints of pending goes to holders (floored); the
// reserve absorbs the split rounding. Each holder receives
// floor(holderShare × balance / totalSupply); the per-holder flooring residual
// is carried forward, never discarded.
//
// Holders are sorted by ID so the payout order (and therefore the journal
// order and state hash) is deterministic regardless of map iteration order.
func ComputeDistribution(
	pending int64,
	holderShareBasisPoints int64,
	holders []HolderStake,
	totalSupply int64,
) (*Distribution, error) {
	holderShare, err := MulDivFloor(pending, holderShareBasisPoints, BasisPointDenominator)
	if err != nil {
		return nil, err
	}
	reserveShare := pending - holderShare

	sort.Slice(holders, func(i, j int) bool {
		for k := 0; k < 16; k++ {
			if holders[i].HolderID[k] != holders[j].HolderID[k] {
				return holders[i].HolderID[k] < holders[j].HolderID[k]
			}
		}
		return false
	})

	payouts := make([]HolderPayout, 0, len(holders))
	var paid int64

	if totalSupply > 0 {
		for _, h := range holders {
			if h.Balance <= 0 {
				continue
			}

			payout, err := MulDivFloor(holderShare, h.Balance, totalSupply)
			if err != nil {
				return nil, err
			}
			if payout == 0 {
				continue
			}

			payouts = append(payouts, HolderPayout{HolderID: h.HolderID, Payout: payout})
			paid += payout
		}
	}

	return &Distribution{
		Pending:      pending,
		HolderShare:  holderShare,
		ReserveShare: reserveShare,
		Payouts:      payouts,
		Residual:     holderShare - paid,
	}, nil
}

package math

import "errors"

// TransferKind classifies a transfer for fee purposes.
type TransferKind int32

const (
	TransferKindPlain TransferKind = iota
	TransferKindBuy
	TransferKindSell
)

func (k TransferKind) String() string {
	switch k {
	case TransferKindBuy:
		return "buy"
	case TransferKindSell:
		return "sell"
	default:
		return "plain"
	}
}

// ParseTransferKind maps a wire string to a TransferKind.
func ParseTransferKind(s string) (TransferKind, bool) {
	switch s {
	case "buy":
		return TransferKindBuy, true
	case "sell":
		return TransferKindSell, true
	case "plain", "":
		return TransferKindPlain, true
	}
	return TransferKindPlain, false
}

// ErrInvalidAmount reports a zero, negative, or overflowing transfer amount.
var ErrInvalidAmount = errors.New("invalid amount")

// ComputeFee computes the withheld fee and the net amount delivered for a
// classified transfer. Buy and sell transfers pay floor(amount × bps / 10000);
// plain transfers pay nothing. Pure, deterministic, integer-only.
func ComputeFee(amount int64, kind TransferKind, feeBasisPoints int64) (fee int64, net int64, err error) {
	if amount < 1 {
		return 0, 0, ErrInvalidAmount
	}
	if feeBasisPoints < 0 || feeBasisPoints > BasisPointDenominator {
		return 0, 0, ErrInvalidAmount
	}

	if kind != TransferKindBuy && kind != TransferKindSell {
		return 0, amount, nil
	}

	fee, err = MulDivFloor(amount, feeBasisPoints, BasisPointDenominator)
	if err != nil {
		return 0, 0, ErrInvalidAmount
	}

	net = amount - fee
	if net < 0 {
		return 0, 0, ErrInvalidAmount
	}

	return fee, net, nil
}

package escrow

import "github.com/shopspring/decimal"

// feeRate is the platform's cut of every settled transaction: 2%.
var feeRate = decimal.RequireFromString("0.02")

// ComputeFee returns the platform fee for a transaction amount in integer
// currency units: max(round(amount * 0.02), 0). Rounding is half away from
// zero, so with non-negative amounts a .5 boundary always rounds up
// (amount=25 -> fee=1). The result is clamped to [0, amount].
func ComputeFee(amount int64) int64 {
	fee := decimal.NewFromInt(amount).Mul(feeRate).Round(0).IntPart()
	if fee < 0 {
		return 0
	}
	if fee > amount {
		return amount
	}
	return fee
}

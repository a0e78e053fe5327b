package payment

import "github.com/shopspring/decimal"

// feeScale is the number of decimal places kept on the percentage part of a fee.
const feeScale = 2

// CalculateFee returns the fee and net amount for a charge.
//
// fee = round(amount * rate, 2) + fixedFee, net = amount - fee.
// Rounding is half away from zero, i.e. HALF_UP for non-negative amounts.
// Callers reject negative inputs before calling.
func CalculateFee(amount, rate, fixedFee decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(rate).Round(feeScale).Add(fixedFee)
	net = amount.Sub(fee)
	return fee, net
}

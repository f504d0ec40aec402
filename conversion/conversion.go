// Package conversion holds the fixed-point arithmetic that prices print and
// burn against a cert. Every result truncates toward zero.
package conversion

import (
	"github.com/holiman/uint256"
	kylan "github.com/lightsparkdev/kylan-go"
)

// Burn is the outcome of redeeming stable units against a cert.
type Burn struct {
	// Gross is the secure amount released from the treasury.
	Gross uint64
	// Fee is the part of Gross sent to the taxman.
	Fee uint64
	// Net is the part of Gross returned to the caller.
	Net uint64
}

// mulDiv returns x*y/d computed in 256 bits, failing if the result needs more than 64.
func mulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, kylan.NewError(kylan.KindInvalidRateParameters, "division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, kylan.NewError(kylan.KindOverflow, "%d * %d / %d does not fit in 64 bits", x, y, d)
	}
	return z.Uint64(), nil
}

// StableValue returns amount * price / Precision: the stable units a deposit of
// amount secure units is worth.
func StableValue(amount, price uint64) (uint64, error) {
	return mulDiv(amount, price, kylan.Precision)
}

// SecureValue returns amount * Precision / price: the secure units that amount
// stable units redeem for, before fees.
func SecureValue(amount, price uint64) (uint64, error) {
	if price == 0 {
		return 0, kylan.NewError(kylan.KindInvalidRateParameters, "price must be positive")
	}
	return mulDiv(amount, kylan.Precision, price)
}

// PrintAmount returns the stable units minted for depositing amount secure units.
func PrintAmount(amount, price uint64) (uint64, error) {
	if amount == 0 {
		return 0, kylan.NewError(kylan.KindInvalidAmount, "amount must be positive")
	}
	if price == 0 {
		return 0, kylan.NewError(kylan.KindInvalidRateParameters, "price must be positive")
	}
	minted, err := StableValue(amount, price)
	if err != nil {
		return 0, err
	}
	if minted == 0 {
		return 0, kylan.NewError(kylan.KindInvalidAmount, "amount %d is too small to print at price %d", amount, price)
	}
	return minted, nil
}

// BurnAmount splits the redemption of amount stable units into the fee and the
// net returned to the caller.
func BurnAmount(amount, price, fee uint64) (Burn, error) {
	if amount == 0 {
		return Burn{}, kylan.NewError(kylan.KindInvalidAmount, "amount must be positive")
	}
	if fee > kylan.Precision {
		return Burn{}, kylan.NewError(kylan.KindInvalidRateParameters, "fee %d exceeds precision %d", fee, kylan.Precision)
	}
	gross, err := SecureValue(amount, price)
	if err != nil {
		return Burn{}, err
	}
	if gross == 0 {
		return Burn{}, kylan.NewError(kylan.KindInvalidAmount, "amount %d is too small to burn at price %d", amount, price)
	}
	feeAmount, err := mulDiv(gross, fee, kylan.Precision)
	if err != nil {
		return Burn{}, err
	}
	return Burn{Gross: gross, Fee: feeAmount, Net: gross - feeAmount}, nil
}
